package task

import (
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFactory(t *testing.T) *NoteSummaryTaskFactory {
	t.Helper()
	return NewNoteSummaryTaskFactory(
		&mockNoteService{},
		&mockSummarizer{},
		fastRetryConfig(),
		slog.Default(),
	)
}

func TestNoteSummaryTaskFactory_CreateTask(t *testing.T) {
	t.Parallel()

	factory := newTestFactory(t)

	t.Run("creates task with note ID payload", func(t *testing.T) {
		t.Parallel()
		noteID := uuid.New()
		task, err := factory.CreateTask(noteID)
		require.NoError(t, err)
		assert.Equal(t, TaskTypeNoteSummary, task.Type())
		assert.JSONEq(t, `{"note_id":"`+noteID.String()+`"}`, string(task.Payload()))
	})

	t.Run("rejects nil note ID", func(t *testing.T) {
		t.Parallel()
		_, err := factory.CreateTask(uuid.Nil)
		require.ErrorIs(t, err, ErrEmptyNoteID)
	})
}

func TestNoteSummaryTaskFactory_Hydrate(t *testing.T) {
	t.Parallel()

	factory := newTestFactory(t)

	t.Run("rebuilds task with persisted ID", func(t *testing.T) {
		t.Parallel()
		taskID := uuid.New()
		noteID := uuid.New()
		payload, err := json.Marshal(noteSummaryPayload{NoteID: noteID})
		require.NoError(t, err)

		task, err := factory.Hydrate(taskID, TaskTypeNoteSummary, payload)
		require.NoError(t, err)

		// The persisted row ID is preserved so status updates after
		// recovery land on the original row.
		assert.Equal(t, taskID, task.ID())
		assert.JSONEq(t, string(payload), string(task.Payload()))
	})

	t.Run("rejects unknown task type", func(t *testing.T) {
		t.Parallel()
		_, err := factory.Hydrate(uuid.New(), "some_other_type", []byte(`{}`))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unknown task type")
	})

	t.Run("rejects malformed payload", func(t *testing.T) {
		t.Parallel()
		_, err := factory.Hydrate(uuid.New(), TaskTypeNoteSummary, []byte(`not json`))
		require.Error(t, err)
	})

	t.Run("rejects payload without note ID", func(t *testing.T) {
		t.Parallel()
		_, err := factory.Hydrate(uuid.New(), TaskTypeNoteSummary, []byte(`{}`))
		require.Error(t, err)
	})
}
