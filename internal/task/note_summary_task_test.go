package task

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/digestly/digestly-api/internal/domain"
	"github.com/digestly/digestly-api/internal/store"
	"github.com/digestly/digestly-api/internal/summary"
)

// mockNoteService records the state transitions a task drives.
type mockNoteService struct {
	mu sync.Mutex

	note     *domain.Note
	getErr   error
	claimOK  bool
	claimErr error

	claimCalls    int
	completedWith string
	completed     bool
	failed        bool
}

func (m *mockNoteService) GetNote(ctx context.Context, noteID uuid.UUID) (*domain.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.note, nil
}

func (m *mockNoteService) ClaimNote(ctx context.Context, noteID uuid.UUID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.claimCalls++
	if m.claimErr != nil {
		return false, m.claimErr
	}
	return m.claimOK, nil
}

func (m *mockNoteService) CompleteNote(ctx context.Context, noteID uuid.UUID, summaryText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completed = true
	m.completedWith = summaryText
	return nil
}

func (m *mockNoteService) FailNote(ctx context.Context, noteID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed = true
	return nil
}

// mockSummarizer fails a configurable number of times before succeeding.
type mockSummarizer struct {
	mu        sync.Mutex
	failTimes int
	failWith  error
	result    string
	calls     int
}

func (m *mockSummarizer) Summarize(ctx context.Context, text string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.failTimes {
		return "", m.failWith
	}
	return m.result, nil
}

func testNote(t *testing.T) *domain.Note {
	t.Helper()
	note, err := domain.NewNote(uuid.New(), "some note text", nil)
	require.NoError(t, err)
	return note
}

// fastRetryConfig keeps backoff delays negligible in tests.
func fastRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		MinWait:     time.Millisecond,
		MaxWait:     5 * time.Millisecond,
	}
}

func TestNewNoteSummaryTask(t *testing.T) {
	t.Parallel()

	logger := slog.Default()
	svc := &mockNoteService{}
	summarizer := &mockSummarizer{}

	t.Run("valid dependencies", func(t *testing.T) {
		t.Parallel()
		task, err := NewNoteSummaryTask(uuid.New(), svc, summarizer, fastRetryConfig(), logger)
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, task.ID())
		assert.Equal(t, TaskTypeNoteSummary, task.Type())
		assert.Equal(t, TaskStatusPending, task.Status())
	})

	t.Run("nil note service", func(t *testing.T) {
		t.Parallel()
		_, err := NewNoteSummaryTask(uuid.New(), nil, summarizer, fastRetryConfig(), logger)
		require.ErrorIs(t, err, ErrNilNoteService)
	})

	t.Run("nil summarizer", func(t *testing.T) {
		t.Parallel()
		_, err := NewNoteSummaryTask(uuid.New(), svc, nil, fastRetryConfig(), logger)
		require.ErrorIs(t, err, ErrNilSummarizer)
	})

	t.Run("nil logger", func(t *testing.T) {
		t.Parallel()
		_, err := NewNoteSummaryTask(uuid.New(), svc, summarizer, fastRetryConfig(), nil)
		require.ErrorIs(t, err, ErrNilLogger)
	})

	t.Run("empty note ID", func(t *testing.T) {
		t.Parallel()
		_, err := NewNoteSummaryTask(uuid.Nil, svc, summarizer, fastRetryConfig(), logger)
		require.ErrorIs(t, err, ErrEmptyNoteID)
	})
}

func TestNoteSummaryTask_Payload(t *testing.T) {
	t.Parallel()

	noteID := uuid.New()
	task, err := NewNoteSummaryTask(
		noteID,
		&mockNoteService{},
		&mockSummarizer{},
		fastRetryConfig(),
		slog.Default(),
	)
	require.NoError(t, err)

	assert.JSONEq(t, `{"note_id":"`+noteID.String()+`"}`, string(task.Payload()))
}

func TestNoteSummaryTask_Execute(t *testing.T) {
	t.Parallel()

	t.Run("successful summarization", func(t *testing.T) {
		t.Parallel()
		note := testNote(t)
		svc := &mockNoteService{note: note, claimOK: true}
		summarizer := &mockSummarizer{result: "a summary"}

		task, err := NewNoteSummaryTask(note.ID, svc, summarizer, fastRetryConfig(), slog.Default())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))
		assert.Equal(t, TaskStatusCompleted, task.Status())
		assert.True(t, svc.completed)
		assert.Equal(t, "a summary", svc.completedWith)
		assert.False(t, svc.failed)
	})

	t.Run("unclaimable note completes without work", func(t *testing.T) {
		t.Parallel()
		note := testNote(t)
		svc := &mockNoteService{note: note, claimOK: false}
		summarizer := &mockSummarizer{result: "a summary"}

		task, err := NewNoteSummaryTask(note.ID, svc, summarizer, fastRetryConfig(), slog.Default())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))
		assert.Equal(t, TaskStatusCompleted, task.Status())
		assert.Equal(t, 0, summarizer.calls)
		assert.False(t, svc.completed)
		assert.False(t, svc.failed)
	})

	t.Run("claim error fails the task", func(t *testing.T) {
		t.Parallel()
		note := testNote(t)
		svc := &mockNoteService{note: note, claimErr: errors.New("db down")}

		task, err := NewNoteSummaryTask(
			note.ID, svc, &mockSummarizer{}, fastRetryConfig(), slog.Default())
		require.NoError(t, err)

		require.Error(t, task.Execute(context.Background()))
		assert.Equal(t, TaskStatusFailed, task.Status())
	})

	t.Run("missing note completes silently", func(t *testing.T) {
		t.Parallel()
		note := testNote(t)
		summarizer := &mockSummarizer{result: "a summary"}
		svc := &mockNoteService{claimErr: store.ErrNoteNotFound}

		task, err := NewNoteSummaryTask(
			note.ID, svc, summarizer, fastRetryConfig(), slog.Default())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))
		assert.Equal(t, TaskStatusCompleted, task.Status())
		assert.Equal(t, 0, summarizer.calls)
		assert.False(t, svc.failed)
	})

	t.Run("note deleted after claim completes silently", func(t *testing.T) {
		t.Parallel()
		note := testNote(t)
		svc := &mockNoteService{claimOK: true, getErr: store.ErrNoteNotFound}

		task, err := NewNoteSummaryTask(
			note.ID, svc, &mockSummarizer{}, fastRetryConfig(), slog.Default())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))
		assert.Equal(t, TaskStatusCompleted, task.Status())
		assert.False(t, svc.failed)
	})

	t.Run("note read failure aborts without a status write", func(t *testing.T) {
		t.Parallel()
		note := testNote(t)
		svc := &mockNoteService{claimOK: true, getErr: errors.New("db down")}

		task, err := NewNoteSummaryTask(
			note.ID, svc, &mockSummarizer{}, fastRetryConfig(), slog.Default())
		require.NoError(t, err)

		require.Error(t, task.Execute(context.Background()))
		assert.Equal(t, TaskStatusFailed, task.Status())
		assert.False(t, svc.failed)
		assert.False(t, svc.completed)
	})

	t.Run("transient failures are retried to success", func(t *testing.T) {
		t.Parallel()
		note := testNote(t)
		svc := &mockNoteService{note: note, claimOK: true}
		summarizer := &mockSummarizer{
			failTimes: 2,
			failWith:  summary.ErrTransientFailure,
			result:    "eventually works",
		}

		task, err := NewNoteSummaryTask(note.ID, svc, summarizer, fastRetryConfig(), slog.Default())
		require.NoError(t, err)

		require.NoError(t, task.Execute(context.Background()))
		assert.Equal(t, 3, summarizer.calls)
		assert.True(t, svc.completed)
		assert.Equal(t, "eventually works", svc.completedWith)
	})

	t.Run("exhausted retries fail the note", func(t *testing.T) {
		t.Parallel()
		note := testNote(t)
		svc := &mockNoteService{note: note, claimOK: true}
		summarizer := &mockSummarizer{
			failTimes: 10,
			failWith:  summary.ErrTransientFailure,
		}

		task, err := NewNoteSummaryTask(note.ID, svc, summarizer, fastRetryConfig(), slog.Default())
		require.NoError(t, err)

		err = task.Execute(context.Background())
		require.ErrorIs(t, err, summary.ErrTransientFailure)
		assert.Equal(t, TaskStatusFailed, task.Status())
		assert.Equal(t, 3, summarizer.calls)
		assert.True(t, svc.failed)
		assert.False(t, svc.completed)
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		t.Parallel()
		note := testNote(t)
		svc := &mockNoteService{note: note, claimOK: true}
		summarizer := &mockSummarizer{
			failTimes: 10,
			failWith:  summary.ErrContentBlocked,
		}

		task, err := NewNoteSummaryTask(note.ID, svc, summarizer, fastRetryConfig(), slog.Default())
		require.NoError(t, err)

		err = task.Execute(context.Background())
		require.ErrorIs(t, err, summary.ErrContentBlocked)
		assert.Equal(t, 1, summarizer.calls)
		assert.True(t, svc.failed)
	})

	t.Run("cancelled context aborts before claiming", func(t *testing.T) {
		t.Parallel()
		note := testNote(t)
		svc := &mockNoteService{note: note, claimOK: true}

		task, err := NewNoteSummaryTask(
			note.ID, svc, &mockSummarizer{}, fastRetryConfig(), slog.Default())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		require.Error(t, task.Execute(ctx))
		assert.Equal(t, 0, svc.claimCalls)
	})
}

func TestIsPermanentSummaryError(t *testing.T) {
	t.Parallel()

	assert.True(t, isPermanentSummaryError(summary.ErrInvalidResponse))
	assert.True(t, isPermanentSummaryError(summary.ErrContentBlocked))
	assert.True(t, isPermanentSummaryError(summary.ErrEmptyText))
	assert.True(t, isPermanentSummaryError(summary.ErrInvalidConfig))
	assert.False(t, isPermanentSummaryError(summary.ErrTransientFailure))
	assert.False(t, isPermanentSummaryError(errors.New("some other error")))
}
