package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/digestly/digestly-api/internal/domain"
	"github.com/digestly/digestly-api/internal/platform/logger"
	"github.com/digestly/digestly-api/internal/store"
)

// defaultListLimit bounds listings when the caller does not set one.
const defaultListLimit = 50

// unboundedListLimit stands in for "no limit" in queries that always bind a
// LIMIT parameter.
const unboundedListLimit = 1 << 31

// idempotencyKeyConstraint is the partial unique index on
// (user_id, idempotency_key) from the notes migration.
const idempotencyKeyConstraint = "idx_notes_user_idempotency_key"

// PostgresNoteStore implements the store.NoteStore interface
// using a PostgreSQL database as the storage backend.
type PostgresNoteStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresNoteStore creates a new PostgreSQL implementation of the
// NoteStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller.
// If logger is nil, a default logger will be used.
func NewPostgresNoteStore(db store.DBTX, logger *slog.Logger) *PostgresNoteStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresNoteStore{
		db:     db,
		logger: logger.With(slog.String("component", "note_store")),
	}
}

// Ensure PostgresNoteStore implements store.NoteStore interface
var _ store.NoteStore = (*PostgresNoteStore)(nil)

// Create implements store.NoteStore.Create
// It saves a new note, handling domain validation. A unique violation on the
// (user_id, idempotency_key) index is mapped to store.ErrIdempotencyKeyExists
// so the service layer can return the existing row instead.
func (s *PostgresNoteStore) Create(ctx context.Context, note *domain.Note) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := note.Validate(); err != nil {
		log.Warn("note validation failed during create",
			slog.String("error", err.Error()),
			slog.String("note_id", note.ID.String()))
		return err
	}

	query := `
		INSERT INTO notes (id, user_id, raw_text, summary, status, idempotency_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		note.ID,
		note.UserID,
		note.RawText,
		note.Summary,
		note.Status,
		note.IdempotencyKey,
		note.CreatedAt,
		note.UpdatedAt,
	)

	if err != nil {
		if UniqueConstraintName(err) == idempotencyKeyConstraint {
			log.Debug("idempotency key already taken",
				slog.String("note_id", note.ID.String()),
				slog.String("user_id", note.UserID.String()))
			return fmt.Errorf("%w: %v", store.ErrIdempotencyKeyExists, err)
		}

		log.Error("failed to create note",
			slog.String("error", err.Error()),
			slog.String("note_id", note.ID.String()),
			slog.String("user_id", note.UserID.String()))
		return MapError(err)
	}

	log.Info("note created successfully",
		slog.String("note_id", note.ID.String()),
		slog.String("user_id", note.UserID.String()),
		slog.String("status", string(note.Status)))
	return nil
}

// GetByID implements store.NoteStore.GetByID
// Returns store.ErrNoteNotFound if the note does not exist.
func (s *PostgresNoteStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Note, error) {
	query := `
		SELECT id, user_id, raw_text, summary, status, idempotency_key, created_at, updated_at
		FROM notes
		WHERE id = $1
	`
	return s.scanNote(ctx, s.db.QueryRowContext(ctx, query, id))
}

// GetByIdempotencyKey implements store.NoteStore.GetByIdempotencyKey
func (s *PostgresNoteStore) GetByIdempotencyKey(
	ctx context.Context,
	userID uuid.UUID,
	key string,
) (*domain.Note, error) {
	query := `
		SELECT id, user_id, raw_text, summary, status, idempotency_key, created_at, updated_at
		FROM notes
		WHERE user_id = $1 AND idempotency_key = $2
	`
	return s.scanNote(ctx, s.db.QueryRowContext(ctx, query, userID, key))
}

// ClaimForProcessing implements store.NoteStore.ClaimForProcessing
// The conditional UPDATE is the lock-free claim: only one of two workers
// racing over the same note sees a row transition, the other observes zero
// affected rows and backs off.
func (s *PostgresNoteStore) ClaimForProcessing(ctx context.Context, id uuid.UUID) (bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE notes
		SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ($3, $4)
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		domain.NoteStatusProcessing,
		id,
		domain.NoteStatusQueued,
		domain.NoteStatusFailed,
	)
	if err != nil {
		log.Error("failed to claim note for processing",
			slog.String("error", err.Error()),
			slog.String("note_id", id.String()))
		return false, MapError(err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		// Either the note is gone or another worker holds it. Distinguish
		// the two so a deleted note can complete silently upstream.
		if _, err := s.GetByID(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}

	log.Debug("note claimed for processing", slog.String("note_id", id.String()))
	return true, nil
}

// UpdateStatus implements store.NoteStore.UpdateStatus
func (s *PostgresNoteStore) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.NoteStatus) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE notes
		SET status = $1, updated_at = NOW()
		WHERE id = $2
	`
	result, err := s.db.ExecContext(ctx, query, status, id)
	if err != nil {
		log.Error("failed to update note status",
			slog.String("error", err.Error()),
			slog.String("note_id", id.String()),
			slog.String("status", string(status)))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "note"); err != nil {
		return fmt.Errorf("%w: %v", store.ErrNoteNotFound, err)
	}

	log.Debug("note status updated",
		slog.String("note_id", id.String()),
		slog.String("status", string(status)))
	return nil
}

// SetSummary implements store.NoteStore.SetSummary
func (s *PostgresNoteStore) SetSummary(ctx context.Context, id uuid.UUID, summary string) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE notes
		SET summary = $1, status = $2, updated_at = NOW()
		WHERE id = $3
	`
	result, err := s.db.ExecContext(ctx, query, summary, domain.NoteStatusDone, id)
	if err != nil {
		log.Error("failed to set note summary",
			slog.String("error", err.Error()),
			slog.String("note_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "note"); err != nil {
		return fmt.Errorf("%w: %v", store.ErrNoteNotFound, err)
	}

	log.Info("note summary recorded", slog.String("note_id", id.String()))
	return nil
}

// ListByUser implements store.NoteStore.ListByUser
func (s *PostgresNoteStore) ListByUser(
	ctx context.Context,
	userID uuid.UUID,
	filter store.NoteFilter,
) ([]*domain.Note, error) {
	limit, offset := normalizeFilter(filter)

	var rows *sql.Rows
	var err error
	if filter.Status != nil {
		query := `
			SELECT id, user_id, raw_text, summary, status, idempotency_key, created_at, updated_at
			FROM notes
			WHERE user_id = $1 AND status = $2
			ORDER BY created_at DESC
			LIMIT $3 OFFSET $4
		`
		rows, err = s.db.QueryContext(ctx, query, userID, *filter.Status, limit, offset)
	} else {
		query := `
			SELECT id, user_id, raw_text, summary, status, idempotency_key, created_at, updated_at
			FROM notes
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`
		rows, err = s.db.QueryContext(ctx, query, userID, limit, offset)
	}
	if err != nil {
		return nil, MapError(err)
	}

	return s.collectNotes(ctx, rows)
}

// ListAll implements store.NoteStore.ListAll
func (s *PostgresNoteStore) ListAll(ctx context.Context, filter store.NoteFilter) ([]*domain.Note, error) {
	limit, offset := normalizeFilter(filter)

	var rows *sql.Rows
	var err error
	if filter.Status != nil {
		query := `
			SELECT id, user_id, raw_text, summary, status, idempotency_key, created_at, updated_at
			FROM notes
			WHERE status = $1
			ORDER BY created_at DESC
			LIMIT $2 OFFSET $3
		`
		rows, err = s.db.QueryContext(ctx, query, *filter.Status, limit, offset)
	} else {
		query := `
			SELECT id, user_id, raw_text, summary, status, idempotency_key, created_at, updated_at
			FROM notes
			ORDER BY created_at DESC
			LIMIT $1 OFFSET $2
		`
		rows, err = s.db.QueryContext(ctx, query, limit, offset)
	}
	if err != nil {
		return nil, MapError(err)
	}

	return s.collectNotes(ctx, rows)
}

// WithTx implements store.NoteStore.WithTx
func (s *PostgresNoteStore) WithTx(tx *sql.Tx) store.NoteStore {
	return &PostgresNoteStore{
		db:     tx,
		logger: s.logger,
	}
}

// scanNote reads a single note row, mapping sql.ErrNoRows to
// store.ErrNoteNotFound.
func (s *PostgresNoteStore) scanNote(ctx context.Context, row *sql.Row) (*domain.Note, error) {
	var note domain.Note
	err := row.Scan(
		&note.ID,
		&note.UserID,
		&note.RawText,
		&note.Summary,
		&note.Status,
		&note.IdempotencyKey,
		&note.CreatedAt,
		&note.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, store.ErrNoteNotFound
		}
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to scan note row",
			slog.String("error", err.Error()))
		return nil, MapError(err)
	}
	return &note, nil
}

// collectNotes drains a result set into note values.
func (s *PostgresNoteStore) collectNotes(ctx context.Context, rows *sql.Rows) ([]*domain.Note, error) {
	defer func() {
		if err := rows.Close(); err != nil {
			logger.FromContextOrDefault(ctx, s.logger).Warn("failed to close rows",
				slog.String("error", err.Error()))
		}
	}()

	var notes []*domain.Note
	for rows.Next() {
		var note domain.Note
		if err := rows.Scan(
			&note.ID,
			&note.UserID,
			&note.RawText,
			&note.Summary,
			&note.Status,
			&note.IdempotencyKey,
			&note.CreatedAt,
			&note.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan note row: %w", err)
		}
		notes = append(notes, &note)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating note rows: %w", err)
	}

	return notes, nil
}

// normalizeFilter applies the default limit and floors the offset.
// A negative limit means the caller wants every matching row.
func normalizeFilter(filter store.NoteFilter) (limit, offset int) {
	limit = filter.Limit
	if limit == 0 {
		limit = defaultListLimit
	} else if limit < 0 {
		limit = unboundedListLimit
	}
	offset = filter.Offset
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
