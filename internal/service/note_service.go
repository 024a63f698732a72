package service

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/digestly/digestly-api/internal/domain"
	"github.com/digestly/digestly-api/internal/events"
	"github.com/digestly/digestly-api/internal/service/auth"
	"github.com/digestly/digestly-api/internal/store"
	"github.com/digestly/digestly-api/internal/task"
)

// UserNotes pairs a user with their notes for the admin grouped listing.
type UserNotes struct {
	User  *domain.User
	Notes []*domain.Note
}

// NoteService provides note-related operations for both the HTTP layer and
// the background worker. The worker-facing methods (GetNote, ClaimNote,
// CompleteNote, FailNote) satisfy task.NoteService.
type NoteService interface {
	// CreateNote creates a note in queued status and emits a summarization
	// event. When an idempotency key is supplied and a note with the same
	// (user, key) pair already exists, the existing note is returned and no
	// new work is enqueued. The boolean reports whether a note was created.
	CreateNote(
		ctx context.Context,
		userID uuid.UUID,
		rawText string,
		idempotencyKey *string,
	) (*domain.Note, bool, error)

	// GetNoteForPrincipal retrieves a note on behalf of an authenticated
	// caller. Returns ErrNoteNotFound for missing notes and ErrNotNoteOwner
	// when a non-admin requests another user's note.
	GetNoteForPrincipal(
		ctx context.Context,
		principal *auth.Principal,
		noteID uuid.UUID,
	) (*domain.Note, error)

	// ListNotes retrieves the user's own notes, newest first.
	ListNotes(ctx context.Context, userID uuid.UUID, filter store.NoteFilter) ([]*domain.Note, error)

	// ListAllNotes retrieves notes across all users, newest first.
	// Callers are responsible for restricting this to admins.
	ListAllNotes(ctx context.Context, filter store.NoteFilter) ([]*domain.Note, error)

	// ListNotesGroupedByUser retrieves every user together with their notes,
	// optionally filtered by status. Callers are responsible for restricting
	// this to admins.
	ListNotesGroupedByUser(ctx context.Context, status *domain.NoteStatus) ([]UserNotes, error)

	// GetNote retrieves a note by its ID without an ownership check.
	GetNote(ctx context.Context, noteID uuid.UUID) (*domain.Note, error)

	// ClaimNote atomically moves a note into processing. Returns false when
	// the note is not in a claimable status.
	ClaimNote(ctx context.Context, noteID uuid.UUID) (bool, error)

	// CompleteNote records the summary and marks the note done.
	CompleteNote(ctx context.Context, noteID uuid.UUID, summaryText string) error

	// FailNote marks the note failed.
	FailNote(ctx context.Context, noteID uuid.UUID) error
}

// Ensure the service satisfies the worker's view of it.
var _ task.NoteService = (NoteService)(nil)

// noteServiceImpl implements the NoteService interface
type noteServiceImpl struct {
	db           *sql.DB
	noteStore    store.NoteStore
	userStore    store.UserStore
	eventEmitter events.EventEmitter
	logger       *slog.Logger
}

// NewNoteService creates a new NoteService.
// It returns an error if any of the required dependencies are nil.
func NewNoteService(
	db *sql.DB,
	noteStore store.NoteStore,
	userStore store.UserStore,
	eventEmitter events.EventEmitter,
	logger *slog.Logger,
) (NoteService, error) {
	if db == nil {
		return nil, &NoteServiceError{Operation: "create_service", Message: "db cannot be nil"}
	}
	if noteStore == nil {
		return nil, &NoteServiceError{Operation: "create_service", Message: "noteStore cannot be nil"}
	}
	if userStore == nil {
		return nil, &NoteServiceError{Operation: "create_service", Message: "userStore cannot be nil"}
	}
	if eventEmitter == nil {
		return nil, &NoteServiceError{Operation: "create_service", Message: "eventEmitter cannot be nil"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &noteServiceImpl{
		db:           db,
		noteStore:    noteStore,
		userStore:    userStore,
		eventEmitter: eventEmitter,
		logger:       logger.With("component", "note_service"),
	}, nil
}

// CreateNote creates a note and emits a summarization event. The unique
// (user_id, idempotency_key) constraint is the real idempotency guarantee;
// the lookup before the insert is only a fast path. Two racing requests with
// the same key both end up returning the same stored note.
func (s *noteServiceImpl) CreateNote(
	ctx context.Context,
	userID uuid.UUID,
	rawText string,
	idempotencyKey *string,
) (*domain.Note, bool, error) {
	// Fast path: reuse an existing note for the same user and key
	if idempotencyKey != nil && *idempotencyKey != "" {
		existing, err := s.noteStore.GetByIdempotencyKey(ctx, userID, *idempotencyKey)
		if err == nil {
			s.logger.Info("reusing note for idempotency key",
				"note_id", existing.ID,
				"user_id", userID)
			return existing, false, nil
		}
		if !errors.Is(err, store.ErrNoteNotFound) {
			return nil, false, &NoteServiceError{
				Operation: "create_note",
				Message:   "failed to check idempotency key",
				Err:       err,
			}
		}
	}

	note, err := domain.NewNote(userID, rawText, idempotencyKey)
	if err != nil {
		s.logger.Error("failed to create note object",
			"error", err,
			"user_id", userID)
		return nil, false, &NoteServiceError{
			Operation: "create_note",
			Message:   "failed to create note object",
			Err:       err,
		}
	}

	err = store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		return s.noteStore.WithTx(tx).Create(ctx, note)
	})
	if err != nil {
		// Lost the race on the unique constraint: another request with the
		// same key inserted first. Return that note instead.
		if errors.Is(err, store.ErrIdempotencyKeyExists) && idempotencyKey != nil {
			existing, lookupErr := s.noteStore.GetByIdempotencyKey(ctx, userID, *idempotencyKey)
			if lookupErr == nil {
				s.logger.Info("concurrent create with same idempotency key, reusing note",
					"note_id", existing.ID,
					"user_id", userID)
				return existing, false, nil
			}
		}
		s.logger.Error("failed to save note",
			"error", err,
			"user_id", userID)
		return nil, false, &NoteServiceError{
			Operation: "create_note",
			Message:   "failed to save note to database",
			Err:       err,
		}
	}

	s.logger.Info("note created with queued status",
		"note_id", note.ID,
		"user_id", userID)

	event := events.NewNoteSummaryRequested(note.ID)
	if err := s.eventEmitter.EmitEvent(ctx, event); err != nil {
		// The note row exists, so a failed enqueue is recoverable: the note
		// stays queued and can be re-enqueued. Surface the error anyway so
		// the caller knows processing has not started.
		s.logger.Error("failed to emit note summary event",
			"error", err,
			"note_id", note.ID,
			"event_id", event.ID)
		return nil, false, &NoteServiceError{
			Operation: "create_note",
			Message:   "failed to emit event",
			Err:       err,
		}
	}

	s.logger.Info("note summary event emitted",
		"note_id", note.ID,
		"event_id", event.ID)

	return note, true, nil
}

// GetNoteForPrincipal retrieves a note with tenancy enforcement: agents can
// only read their own notes, admins can read any.
func (s *noteServiceImpl) GetNoteForPrincipal(
	ctx context.Context,
	principal *auth.Principal,
	noteID uuid.UUID,
) (*domain.Note, error) {
	note, err := s.GetNote(ctx, noteID)
	if err != nil {
		return nil, err
	}

	if !principal.IsAdmin() && note.UserID != principal.UserID {
		s.logger.Warn("denied access to another user's note",
			"note_id", noteID,
			"owner_id", note.UserID,
			"caller_id", principal.UserID)
		return nil, ErrNotNoteOwner
	}

	return note, nil
}

// ListNotes retrieves the user's own notes.
func (s *noteServiceImpl) ListNotes(
	ctx context.Context,
	userID uuid.UUID,
	filter store.NoteFilter,
) ([]*domain.Note, error) {
	notes, err := s.noteStore.ListByUser(ctx, userID, filter)
	if err != nil {
		return nil, &NoteServiceError{
			Operation: "list_notes",
			Message:   "failed to list notes",
			Err:       err,
		}
	}
	return notes, nil
}

// ListAllNotes retrieves notes across all users.
func (s *noteServiceImpl) ListAllNotes(
	ctx context.Context,
	filter store.NoteFilter,
) ([]*domain.Note, error) {
	notes, err := s.noteStore.ListAll(ctx, filter)
	if err != nil {
		return nil, &NoteServiceError{
			Operation: "list_all_notes",
			Message:   "failed to list notes",
			Err:       err,
		}
	}
	return notes, nil
}

// ListNotesGroupedByUser loads all users and all matching notes, then groups
// the notes per user in memory. Users without notes appear with an empty
// slice.
func (s *noteServiceImpl) ListNotesGroupedByUser(
	ctx context.Context,
	status *domain.NoteStatus,
) ([]UserNotes, error) {
	users, err := s.userStore.List(ctx)
	if err != nil {
		return nil, &NoteServiceError{
			Operation: "list_grouped",
			Message:   "failed to list users",
			Err:       err,
		}
	}
	if len(users) == 0 {
		return []UserNotes{}, nil
	}

	notes, err := s.noteStore.ListAll(ctx, store.NoteFilter{Status: status, Limit: -1})
	if err != nil {
		return nil, &NoteServiceError{
			Operation: "list_grouped",
			Message:   "failed to list notes",
			Err:       err,
		}
	}

	byUser := make(map[uuid.UUID][]*domain.Note, len(users))
	for _, note := range notes {
		byUser[note.UserID] = append(byUser[note.UserID], note)
	}

	out := make([]UserNotes, 0, len(users))
	for _, user := range users {
		userNotes := byUser[user.ID]
		if userNotes == nil {
			userNotes = []*domain.Note{}
		}
		out = append(out, UserNotes{User: user, Notes: userNotes})
	}
	return out, nil
}

// GetNote retrieves a note by its ID without an ownership check.
func (s *noteServiceImpl) GetNote(ctx context.Context, noteID uuid.UUID) (*domain.Note, error) {
	note, err := s.noteStore.GetByID(ctx, noteID)
	if err != nil {
		if errors.Is(err, store.ErrNoteNotFound) {
			return nil, ErrNoteNotFound
		}
		return nil, &NoteServiceError{
			Operation: "get_note",
			Message:   "failed to retrieve note",
			Err:       err,
		}
	}
	return note, nil
}

// ClaimNote implements the worker's conditional claim.
func (s *noteServiceImpl) ClaimNote(ctx context.Context, noteID uuid.UUID) (bool, error) {
	claimed, err := s.noteStore.ClaimForProcessing(ctx, noteID)
	if err != nil {
		if errors.Is(err, store.ErrNoteNotFound) {
			return false, ErrNoteNotFound
		}
		return false, &NoteServiceError{
			Operation: "claim_note",
			Message:   "failed to claim note",
			Err:       err,
		}
	}
	return claimed, nil
}

// CompleteNote records the summary and marks the note done.
func (s *noteServiceImpl) CompleteNote(ctx context.Context, noteID uuid.UUID, summaryText string) error {
	if err := s.noteStore.SetSummary(ctx, noteID, summaryText); err != nil {
		return &NoteServiceError{
			Operation: "complete_note",
			Message:   "failed to record summary",
			Err:       err,
		}
	}
	return nil
}

// FailNote marks the note failed.
func (s *noteServiceImpl) FailNote(ctx context.Context, noteID uuid.UUID) error {
	if err := s.noteStore.UpdateStatus(ctx, noteID, domain.NoteStatusFailed); err != nil {
		return &NoteServiceError{
			Operation: "fail_note",
			Message:   "failed to update note status",
			Err:       err,
		}
	}
	return nil
}
