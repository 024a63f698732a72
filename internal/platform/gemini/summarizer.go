package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/digestly/digestly-api/internal/config"
	"github.com/digestly/digestly-api/internal/summary"
	"google.golang.org/genai"
)

// promptTemplate frames the note text for the model. The instruction asks
// for a single short paragraph so the result fits the summary column without
// post-processing.
const promptTemplate = "Summarize the following note in a single short paragraph. " +
	"Respond with the summary only, no preamble.\n\n%s"

// GeminiSummarizer implements the summary.Summarizer interface using
// Google's Gemini API.
type GeminiSummarizer struct {
	// logger is used for structured logging
	logger *slog.Logger

	// client is the Gemini API client for making requests
	client *genai.Client

	// model is the name of the Gemini model to use
	model string
}

// NewGeminiSummarizer creates a new instance of GeminiSummarizer with the
// provided dependencies.
//
// Parameters:
//   - ctx: Context for the operation, which can be used for cancellation
//   - logger: A structured logger for operation logging
//   - cfg: Summarizer configuration containing the API key and model name
//
// Returns:
//   - A properly initialized GeminiSummarizer or an error if initialization fails
func NewGeminiSummarizer(
	ctx context.Context,
	logger *slog.Logger,
	cfg config.SummarizerConfig,
) (*GeminiSummarizer, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", summary.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", summary.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			summary.ErrInvalidConfig, err)
	}

	return &GeminiSummarizer{
		logger: logger,
		client: client,
		model:  cfg.ModelName,
	}, nil
}

// Summarize asks the Gemini model for a summary of the provided text.
//
// API transport failures are wrapped in summary.ErrTransientFailure so the
// caller can retry them. Safety blocks and malformed responses are permanent
// and wrapped in summary.ErrContentBlocked and summary.ErrInvalidResponse
// respectively. Retry policy is the caller's concern.
func (g *GeminiSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: text is empty", summary.ErrEmptyText)
	}

	prompt := fmt.Sprintf(promptTemplate, text)

	g.logger.DebugContext(ctx, "calling Gemini API",
		"model", g.model,
		"text_length", len(text))

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), nil)
	if err != nil {
		g.logger.ErrorContext(ctx, "Gemini API call failed", "error", err)
		return "", fmt.Errorf("%w: %v", summary.ErrTransientFailure, err)
	}

	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no content generated", summary.ErrInvalidResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return "", fmt.Errorf("%w: response stopped by safety filters", summary.ErrContentBlocked)
	}

	result := strings.TrimSpace(resp.Text())
	if result == "" {
		return "", fmt.Errorf("%w: empty response text", summary.ErrInvalidResponse)
	}

	g.logger.DebugContext(ctx, "Gemini API call successful",
		"summary_length", len(result))

	return result, nil
}
