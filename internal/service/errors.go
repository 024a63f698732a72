package service

import (
	"errors"
	"fmt"

	"github.com/digestly/digestly-api/internal/store"
)

// Common sentinel errors for the service layer
var (
	// ErrNoteNotFound indicates that the note does not exist. It wraps the
	// store sentinel so callers below the service layer (the task worker)
	// can match on store.ErrNoteNotFound without importing this package.
	ErrNoteNotFound = fmt.Errorf("note not found: %w", store.ErrNoteNotFound)

	// ErrNotNoteOwner indicates the caller is not allowed to access the note
	ErrNotNoteOwner = errors.New("note belongs to another user")
)

// NoteServiceError wraps errors from the note service with context.
type NoteServiceError struct {
	// Operation is the operation that failed (e.g., "create_note", "claim_note")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for NoteServiceError.
func (e *NoteServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("note service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("note service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *NoteServiceError) Unwrap() error {
	return e.Err
}
