package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/digestly/digestly-api/internal/domain"
)

// NoteFilter narrows note listings. A nil Status matches every status, a
// zero Limit applies the store default, and a negative Limit disables the
// cap entirely.
type NoteFilter struct {
	Status *domain.NoteStatus
	Limit  int
	Offset int
}

// NoteStore defines the interface for note data persistence.
type NoteStore interface {
	// Create saves a new note to the store.
	// It handles domain validation internally.
	// Returns ErrIdempotencyKeyExists if the (user, idempotency key) pair
	// is already taken.
	Create(ctx context.Context, note *domain.Note) error

	// GetByID retrieves a note by its unique ID.
	// Returns ErrNoteNotFound if the note does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Note, error)

	// GetByIdempotencyKey retrieves the note created by a previous request
	// carrying the same (user, idempotency key) pair.
	// Returns ErrNoteNotFound if no such note exists.
	GetByIdempotencyKey(ctx context.Context, userID uuid.UUID, key string) (*domain.Note, error)

	// ClaimForProcessing conditionally transitions a note to processing.
	// The transition succeeds only when the persisted status is still queued
	// or failed; it returns (false, nil) when another worker already holds
	// the note or it has completed, which closes the redelivery race without
	// a lock. Returns ErrNoteNotFound if the note does not exist.
	ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error)

	// UpdateStatus sets a note's status.
	// Returns ErrNoteNotFound if the note does not exist.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NoteStatus) error

	// SetSummary records the summarization result and marks the note done
	// in a single write. Returns ErrNoteNotFound if the note does not exist.
	SetSummary(ctx context.Context, id uuid.UUID, summary string) error

	// ListByUser retrieves a user's notes, newest first, applying the filter.
	ListByUser(ctx context.Context, userID uuid.UUID, filter NoteFilter) ([]*domain.Note, error)

	// ListAll retrieves notes across all users, newest first, applying the
	// filter. Intended for admin listings.
	ListAll(ctx context.Context, filter NoteFilter) ([]*domain.Note, error)

	// WithTx returns a new NoteStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) NoteStore
}
