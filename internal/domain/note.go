package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// NoteStatus represents the processing state of a note.
type NoteStatus string

// Possible note status values. A note moves queued -> processing -> done or
// failed; only the background worker transitions a note after creation.
const (
	NoteStatusQueued     NoteStatus = "queued"
	NoteStatusProcessing NoteStatus = "processing"
	NoteStatusDone       NoteStatus = "done"
	NoteStatusFailed     NoteStatus = "failed"
)

// Common validation errors for Note
var (
	ErrEmptyNoteID       = errors.New("note ID cannot be empty")
	ErrEmptyNoteUserID   = errors.New("note user ID cannot be empty")
	ErrEmptyNoteText     = errors.New("note text cannot be empty")
	ErrInvalidNoteStatus = errors.New("invalid note status")
)

// Note represents a text artifact submitted by a user for asynchronous
// summarization. IdempotencyKey, when present, is unique per user and lets a
// retried client request return the already-created row instead of a
// duplicate.
type Note struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	RawText        string     `json:"raw_text"`
	Summary        *string    `json:"summary,omitempty"`
	Status         NoteStatus `json:"status"`
	IdempotencyKey *string    `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// NewNote creates a new Note with the given user ID, raw text, and optional
// idempotency key. It generates a new UUID for the note ID, sets the status
// to queued, and sets the creation/update timestamps.
// Returns an error if validation fails.
func NewNote(userID uuid.UUID, rawText string, idempotencyKey *string) (*Note, error) {
	note := &Note{
		ID:             uuid.New(),
		UserID:         userID,
		RawText:        rawText,
		Status:         NoteStatusQueued,
		IdempotencyKey: idempotencyKey,
		CreatedAt:      time.Now().UTC(),
		UpdatedAt:      time.Now().UTC(),
	}

	if err := note.Validate(); err != nil {
		return nil, err
	}

	return note, nil
}

// Validate checks if the Note has valid data.
// Returns an error if any field fails validation.
func (n *Note) Validate() error {
	if n.ID == uuid.Nil {
		return ErrEmptyNoteID
	}

	if n.UserID == uuid.Nil {
		return ErrEmptyNoteUserID
	}

	if n.RawText == "" {
		return ErrEmptyNoteText
	}

	if !isValidNoteStatus(n.Status) {
		return ErrInvalidNoteStatus
	}

	return nil
}

// UpdateStatus updates the note's status and bumps the UpdatedAt timestamp.
// Returns an error if the new status is invalid.
func (n *Note) UpdateStatus(status NoteStatus) error {
	if !isValidNoteStatus(status) {
		return ErrInvalidNoteStatus
	}

	n.Status = status
	n.UpdatedAt = time.Now().UTC()
	return nil
}

// SetSummary records the summarization result and marks the note done.
func (n *Note) SetSummary(summary string) {
	n.Summary = &summary
	n.Status = NoteStatusDone
	n.UpdatedAt = time.Now().UTC()
}

// IsValid reports whether the status is one of the known note statuses.
func (s NoteStatus) IsValid() bool {
	switch s {
	case NoteStatusQueued, NoteStatusProcessing, NoteStatusDone, NoteStatusFailed:
		return true
	default:
		return false
	}
}

// isValidNoteStatus checks if the given status is a valid NoteStatus.
func isValidNoteStatus(status NoteStatus) bool {
	return status.IsValid()
}
