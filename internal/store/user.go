package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/digestly/digestly-api/internal/domain"
)

// UserStore defines the interface for user data persistence.
type UserStore interface {
	// Create saves a new user to the store.
	// It handles domain validation and password hashing internally.
	// Returns ErrEmailExists if the email is already taken.
	// Returns validation errors from the domain User if data is invalid.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique ID.
	// Returns ErrUserNotFound if the user does not exist.
	// The returned user contains all fields except the plaintext password.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// GetByEmail retrieves a user by their email address.
	// Returns ErrUserNotFound if the user does not exist.
	GetByEmail(ctx context.Context, email string) (*domain.User, error)

	// UpdateRole changes a user's role.
	// Returns ErrUserNotFound if the user does not exist.
	UpdateRole(ctx context.Context, id uuid.UUID, role domain.UserRole) error

	// List retrieves all users ordered by creation time.
	List(ctx context.Context) ([]*domain.User, error)

	// IncrementTokenVersion bumps the user's token version counter,
	// invalidating every previously issued token for the user, and returns
	// the new version. Returns ErrUserNotFound if the user does not exist.
	IncrementTokenVersion(ctx context.Context, id uuid.UUID) (int, error)

	// WithTx returns a new UserStore instance that uses the provided
	// transaction. The transaction is created and managed by the caller.
	WithTx(tx *sql.Tx) UserStore
}
