// Package events decouples note creation from the background worker: the
// note service announces that a note needs a summary, and the task layer
// turns the announcement into an executable task.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NoteSummaryRequested signals that a note row was committed and is waiting
// for a summary. It carries the note ID only; the worker reloads the note
// from the store, so the event can never go stale.
type NoteSummaryRequested struct {
	// ID uniquely identifies this event for log correlation.
	ID uuid.UUID

	// NoteID is the note to summarize.
	NoteID uuid.UUID

	// OccurredAt is when the event was emitted.
	OccurredAt time.Time
}

// NewNoteSummaryRequested builds an event for the given note.
func NewNoteSummaryRequested(noteID uuid.UUID) *NoteSummaryRequested {
	return &NoteSummaryRequested{
		ID:         uuid.New(),
		NoteID:     noteID,
		OccurredAt: time.Now(),
	}
}

// EventHandler consumes note summary events.
type EventHandler interface {
	// HandleEvent processes the event. Returning an error tells the emitter
	// the note's summarization was not scheduled.
	HandleEvent(ctx context.Context, event *NoteSummaryRequested) error
}

// EventEmitter publishes note summary events without knowing who consumes
// them, which keeps the service layer free of task-runner wiring.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *NoteSummaryRequested) error
}
