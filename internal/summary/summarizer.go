package summary

import "context"

// Summarizer defines the interface for producing a summary of a piece of
// text. This interface serves as a boundary between the application core and
// the summarization backend, so the worker pipeline does not care whether
// summaries come from a simple rule or an external LLM service.
type Summarizer interface {
	// Summarize produces a summary of the provided text.
	//
	// Parameters:
	//   - ctx: Context for the operation, which can be used for cancellation
	//   - text: The raw note text to summarize
	//
	// Returns:
	//   - The summary string
	//   - An error if summarization fails (see errors.go for specific types)
	Summarize(ctx context.Context, text string) (string, error)
}
