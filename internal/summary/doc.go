// Package summary provides interfaces and implementations for producing
// note summaries. It abstracts the details of the summarization backend
// (rule-based truncation or the Gemini LLM), allowing the application to
// summarize user notes without coupling to a specific external service.
package summary
