package summary

import "errors"

// Common errors returned by the summary package
var (
	// ErrSummarizationFailed is returned when summarization fails for any general reason
	ErrSummarizationFailed = errors.New("failed to summarize text")

	// ErrEmptyText is returned when the input text is empty or whitespace only
	ErrEmptyText = errors.New("cannot summarize empty text")

	// ErrInvalidResponse is returned when the LLM response cannot be parsed or is malformed
	ErrInvalidResponse = errors.New("invalid response from language model")

	// ErrContentBlocked is returned when the LLM blocks the content due to safety filters
	ErrContentBlocked = errors.New("content blocked by language model safety filters")

	// ErrTransientFailure is returned for temporary errors that might resolve on retry
	ErrTransientFailure = errors.New("transient error during summarization")

	// ErrInvalidConfig is returned when the summarizer configuration is invalid
	ErrInvalidConfig = errors.New("invalid summarizer configuration")
)
