package summary

import (
	"context"
	"fmt"
	"strings"
)

const (
	// maxSummaryLength is the longest summary the rule-based backend produces.
	maxSummaryLength = 280

	// truncationSuffix marks summaries that were cut short.
	truncationSuffix = "..."
)

// RuleSummarizer is a deterministic, dependency-free Summarizer that
// truncates long text. Text at or under the length limit is returned
// unchanged; longer text is cut so the result, including the suffix, fits
// exactly within the limit. Lengths are counted in runes, not bytes, so
// multi-byte text is never split mid-character.
type RuleSummarizer struct{}

// NewRuleSummarizer creates a new rule-based summarizer.
func NewRuleSummarizer() *RuleSummarizer {
	return &RuleSummarizer{}
}

// Summarize implements the Summarizer interface.
func (s *RuleSummarizer) Summarize(_ context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is empty", ErrEmptyText)
	}

	runes := []rune(text)
	if len(runes) <= maxSummaryLength {
		return text, nil
	}

	cut := maxSummaryLength - len(truncationSuffix)
	return string(runes[:cut]) + truncationSuffix, nil
}
