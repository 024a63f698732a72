package task

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/digestly/digestly-api/internal/summary"
)

// NoteSummaryTaskFactory creates NoteSummaryTask instances. It also
// implements Hydrator so the task runner can rebuild executable tasks from
// persisted rows after a restart.
type NoteSummaryTaskFactory struct {
	noteService NoteService
	summarizer  summary.Summarizer
	retryCfg    RetryConfig
	logger      *slog.Logger
}

// NewNoteSummaryTaskFactory creates a new factory for NoteSummaryTasks
func NewNoteSummaryTaskFactory(
	noteService NoteService,
	summarizer summary.Summarizer,
	retryCfg RetryConfig,
	logger *slog.Logger,
) *NoteSummaryTaskFactory {
	return &NoteSummaryTaskFactory{
		noteService: noteService,
		summarizer:  summarizer,
		retryCfg:    retryCfg,
		logger:      logger.With("component", "note_summary_task_factory"),
	}
}

// CreateTask creates a new NoteSummaryTask for the specified note
func (f *NoteSummaryTaskFactory) CreateTask(noteID uuid.UUID) (Task, error) {
	task, err := NewNoteSummaryTask(
		noteID,
		f.noteService,
		f.summarizer,
		f.retryCfg,
		f.logger,
	)
	if err != nil {
		return nil, err
	}
	return task, nil
}

// Hydrate implements the Hydrator interface. It rebuilds a NoteSummaryTask
// from its persisted id, type, and payload, keeping the persisted ID so
// status updates target the original row.
func (f *NoteSummaryTaskFactory) Hydrate(id uuid.UUID, taskType string, payload []byte) (Task, error) {
	if taskType != TaskTypeNoteSummary {
		return nil, fmt.Errorf("unknown task type: %q", taskType)
	}

	var p noteSummaryPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	task, err := NewNoteSummaryTask(
		p.NoteID,
		f.noteService,
		f.summarizer,
		f.retryCfg,
		f.logger,
	)
	if err != nil {
		return nil, err
	}

	task.id = id
	return task, nil
}
