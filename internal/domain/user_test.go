package domain

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewUser(t *testing.T) {
	t.Parallel()

	t.Run("valid user", func(t *testing.T) {
		t.Parallel()
		user, err := NewUser("user@example.com", "password123")
		require.NoError(t, err)

		assert.NotEqual(t, uuid.Nil, user.ID)
		assert.Equal(t, "user@example.com", user.Email)
		assert.Equal(t, RoleAgent, user.Role)
		assert.Equal(t, 0, user.TokenVersion)
		assert.False(t, user.CreatedAt.IsZero())
	})

	t.Run("invalid email", func(t *testing.T) {
		t.Parallel()
		_, err := NewUser("not-an-email", "password123")
		require.ErrorIs(t, err, ErrInvalidEmail)
	})

	t.Run("empty email", func(t *testing.T) {
		t.Parallel()
		_, err := NewUser("", "password123")
		require.ErrorIs(t, err, ErrEmptyEmail)
	})

	t.Run("short password", func(t *testing.T) {
		t.Parallel()
		_, err := NewUser("user@example.com", "short")
		require.ErrorIs(t, err, ErrPasswordTooShort)
	})

	t.Run("overlong password", func(t *testing.T) {
		t.Parallel()
		// bcrypt rejects inputs over 72 bytes
		_, err := NewUser("user@example.com", strings.Repeat("x", 73))
		require.ErrorIs(t, err, ErrPasswordTooLong)
	})
}

func TestUserValidate(t *testing.T) {
	t.Parallel()

	t.Run("stored user without plaintext password", func(t *testing.T) {
		t.Parallel()
		user := &User{
			ID:             uuid.New(),
			Email:          "user@example.com",
			HashedPassword: "$2a$10$somethinghashed",
			Role:           RoleAdmin,
		}
		assert.NoError(t, user.Validate())
	})

	t.Run("missing both password and hash", func(t *testing.T) {
		t.Parallel()
		user := &User{
			ID:    uuid.New(),
			Email: "user@example.com",
			Role:  RoleAgent,
		}
		assert.ErrorIs(t, user.Validate(), ErrEmptyPassword)
	})

	t.Run("unknown role", func(t *testing.T) {
		t.Parallel()
		user := &User{
			ID:       uuid.New(),
			Email:    "user@example.com",
			Password: "password123",
			Role:     UserRole("SUPERUSER"),
		}
		assert.ErrorIs(t, user.Validate(), ErrInvalidUserRole)
	})
}
