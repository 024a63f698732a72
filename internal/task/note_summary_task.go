package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"github.com/digestly/digestly-api/internal/domain"
	"github.com/digestly/digestly-api/internal/store"
	"github.com/digestly/digestly-api/internal/summary"
)

// Common errors
var (
	ErrNilNoteService = errors.New("note service cannot be nil")
	ErrNilSummarizer  = errors.New("summarizer cannot be nil")
	ErrNilLogger      = errors.New("logger cannot be nil")
	ErrEmptyNoteID    = errors.New("note ID cannot be empty")
)

// NoteService defines the interface for note operations the task needs.
// The service owns the note state machine, the task only drives it.
type NoteService interface {
	// GetNote retrieves a note by its ID
	GetNote(ctx context.Context, noteID uuid.UUID) (*domain.Note, error)

	// ClaimNote atomically moves a note into processing. Returns false when
	// the note is not claimable because another worker already took it or
	// it is already done.
	ClaimNote(ctx context.Context, noteID uuid.UUID) (bool, error)

	// CompleteNote records the summary and marks the note done
	CompleteNote(ctx context.Context, noteID uuid.UUID, summaryText string) error

	// FailNote marks the note failed
	FailNote(ctx context.Context, noteID uuid.UUID) error
}

// RetryConfig controls the backoff applied around summarization attempts.
type RetryConfig struct {
	// MaxAttempts is the total number of summarization attempts, including
	// the first one.
	MaxAttempts int

	// MinWait is the initial backoff delay.
	MinWait time.Duration

	// MaxWait caps the backoff delay between attempts.
	MaxWait time.Duration
}

// DefaultRetryConfig returns a RetryConfig with reasonable defaults
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		MinWait:     1 * time.Second,
		MaxWait:     10 * time.Second,
	}
}

// noteSummaryPayload represents the serialized data stored in the task
type noteSummaryPayload struct {
	NoteID uuid.UUID `json:"note_id"`
}

// NoteSummaryTask implements the Task interface for summarizing a note.
type NoteSummaryTask struct {
	id          uuid.UUID
	noteID      uuid.UUID
	noteService NoteService
	summarizer  summary.Summarizer
	retryCfg    RetryConfig
	logger      *slog.Logger
	status      TaskStatus
}

// NewNoteSummaryTask creates a new note summary task
func NewNoteSummaryTask(
	noteID uuid.UUID,
	noteService NoteService,
	summarizer summary.Summarizer,
	retryCfg RetryConfig,
	logger *slog.Logger,
) (*NoteSummaryTask, error) {
	// Validate dependencies
	if noteService == nil {
		return nil, ErrNilNoteService
	}
	if summarizer == nil {
		return nil, ErrNilSummarizer
	}
	if logger == nil {
		return nil, ErrNilLogger
	}

	// Validate note ID
	if noteID == uuid.Nil {
		return nil, ErrEmptyNoteID
	}

	if retryCfg.MaxAttempts < 1 {
		retryCfg = DefaultRetryConfig()
	}

	return &NoteSummaryTask{
		id:          uuid.New(),
		noteID:      noteID,
		noteService: noteService,
		summarizer:  summarizer,
		retryCfg:    retryCfg,
		logger:      logger.With("task_type", TaskTypeNoteSummary, "note_id", noteID),
		status:      TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *NoteSummaryTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *NoteSummaryTask) Type() string {
	return TaskTypeNoteSummary
}

// Payload returns the task data as a byte slice
func (t *NoteSummaryTask) Payload() []byte {
	payload := noteSummaryPayload{
		NoteID: t.noteID,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		// If marshal fails, return an empty payload with error logged
		t.logger.Error("failed to marshal task payload", "error", err)
		return []byte{}
	}

	return data
}

// Status returns the current task status
func (t *NoteSummaryTask) Status() TaskStatus {
	return t.status
}

// Execute runs the note summary task: claim the note, summarize its text
// with bounded retries, and record the result. Claiming is conditional on
// the note still being queued or failed, which makes redelivery of the same
// note ID a no-op rather than duplicate work.
func (t *NoteSummaryTask) Execute(ctx context.Context) error {
	t.status = TaskStatusProcessing
	t.logger.Info("starting note summary task")

	// Check for context cancellation
	if err := ctx.Err(); err != nil {
		t.status = TaskStatusFailed
		t.logger.Error("task cancelled by context", "error", err)
		return fmt.Errorf("task cancelled by context: %w", err)
	}

	// 1. Claim the note. A failed claim is not an error: another worker got
	// there first or the note is already done. A note that no longer exists
	// is also not an error, the queue entry just outlived its note.
	claimed, err := t.noteService.ClaimNote(ctx, t.noteID)
	if err != nil {
		if errors.Is(err, store.ErrNoteNotFound) {
			t.status = TaskStatusCompleted
			t.logger.Info("note no longer exists, skipping")
			return nil
		}
		t.status = TaskStatusFailed
		t.logger.Error("failed to claim note", "error", err)
		return fmt.Errorf("failed to claim note: %w", err)
	}
	if !claimed {
		t.status = TaskStatusCompleted
		t.logger.Info("note not claimable, skipping")
		return nil
	}

	// 2. Retrieve the note text
	note, err := t.noteService.GetNote(ctx, t.noteID)
	if err != nil {
		if errors.Is(err, store.ErrNoteNotFound) {
			t.status = TaskStatusCompleted
			t.logger.Info("note deleted between claim and read, skipping")
			return nil
		}
		// Store failure, not a summarization failure: abort without a
		// status write rather than record a misleading failed status.
		t.status = TaskStatusFailed
		t.logger.Error("failed to retrieve note", "error", err)
		return fmt.Errorf("failed to retrieve note: %w", err)
	}

	t.logger.Info("claimed note", "user_id", note.UserID, "text_length", len(note.RawText))

	// 3. Summarize with retries
	summaryText, err := t.summarizeWithRetry(ctx, note.RawText)
	if err != nil {
		t.status = TaskStatusFailed
		t.logger.Error("failed to summarize note", "error", err)
		t.markNoteFailed(ctx)
		return fmt.Errorf("failed to summarize note: %w", err)
	}

	// 4. Record the summary and mark the note done
	if err := t.noteService.CompleteNote(ctx, t.noteID, summaryText); err != nil {
		t.status = TaskStatusFailed
		t.logger.Error("failed to record summary", "error", err)
		t.markNoteFailed(ctx)
		return fmt.Errorf("failed to record summary: %w", err)
	}

	t.status = TaskStatusCompleted
	t.logger.Info("note summary task completed successfully",
		"summary_length", len(summaryText))
	return nil
}

// summarizeWithRetry calls the summarizer under capped exponential backoff.
// Only failures not known to be permanent are retried; safety blocks,
// malformed responses, and empty input fail immediately.
func (t *NoteSummaryTask) summarizeWithRetry(ctx context.Context, text string) (string, error) {
	backoff := retry.NewExponential(t.retryCfg.MinWait)
	backoff = retry.WithCappedDuration(t.retryCfg.MaxWait, backoff)
	backoff = retry.WithMaxRetries(uint64(t.retryCfg.MaxAttempts-1), backoff)

	var result string
	attempt := 0

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		summaryText, err := t.summarizer.Summarize(ctx, text)
		if err != nil {
			if isPermanentSummaryError(err) {
				t.logger.Warn("permanent summarization error, not retrying",
					"attempt", attempt,
					"error", err)
				return err
			}

			t.logger.Warn("summarization attempt failed",
				"attempt", attempt,
				"max_attempts", t.retryCfg.MaxAttempts,
				"error", err)
			return retry.RetryableError(err)
		}

		result = summaryText
		return nil
	})
	if err != nil {
		return "", err
	}

	return result, nil
}

// markNoteFailed moves the note to failed, logging rather than failing the
// task if the status write itself goes wrong.
func (t *NoteSummaryTask) markNoteFailed(ctx context.Context) {
	if err := t.noteService.FailNote(ctx, t.noteID); err != nil {
		t.logger.Error("failed to mark note as failed", "error", err)
	}
}

// isPermanentSummaryError reports whether err can never succeed on retry.
func isPermanentSummaryError(err error) bool {
	return errors.Is(err, summary.ErrInvalidResponse) ||
		errors.Is(err, summary.ErrContentBlocked) ||
		errors.Is(err, summary.ErrEmptyText) ||
		errors.Is(err, summary.ErrInvalidConfig)
}
