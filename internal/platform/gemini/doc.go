// Package gemini implements the summary.Summarizer interface using Google's
// Gemini API. It maps API failures onto the summary package's error
// taxonomy so callers can distinguish transient failures, which are safe to
// retry, from permanent ones such as safety blocks or malformed responses.
package gemini
