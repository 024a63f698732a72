package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// UserRole identifies the access level of a user.
type UserRole string

// Possible user roles. The roles are disjoint: ADMIN is not a superset of
// AGENT, and no hierarchy exists between them.
const (
	RoleAdmin UserRole = "ADMIN"
	RoleAgent UserRole = "AGENT"
)

// Common validation errors
var (
	ErrEmptyUserID         = errors.New("user ID cannot be empty")
	ErrInvalidEmail        = errors.New("invalid email format")
	ErrEmptyEmail          = errors.New("email cannot be empty")
	ErrPasswordTooShort    = errors.New("password must be at least 8 characters long")
	ErrPasswordTooLong     = errors.New("password must be at most 72 characters long")
	ErrEmptyPassword       = errors.New("password cannot be empty")
	ErrEmptyHashedPassword = errors.New("hashed password cannot be empty")
	ErrInvalidUserRole     = errors.New("invalid user role")
)

// User represents a registered user of the Digestly application.
// TokenVersion is a per-user counter captured into every issued token;
// incrementing it invalidates all previously issued tokens for the user
// without requiring per-token revocation entries.
type User struct {
	ID             uuid.UUID `json:"id"`
	Email          string    `json:"email"`
	Password       string    `json:"-"` // Plaintext password, used temporarily during registration
	HashedPassword string    `json:"-"` // Never expose password hash in JSON
	Role           UserRole  `json:"role"`
	TokenVersion   int       `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// NewUser creates a new User with the given email and password.
// It generates a new UUID for the user ID, assigns the default AGENT role,
// starts the token version at zero, and sets the creation/update timestamps.
// Returns an error if validation fails.
//
// NOTE: This function only sets up the user structure with the plaintext
// password. The caller is responsible for hashing the password before
// storing the user.
func NewUser(email, password string) (*User, error) {
	user := &User{
		ID:        uuid.New(),
		Email:     email,
		Password:  password,
		Role:      RoleAgent,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}

	if err := user.Validate(); err != nil {
		return nil, err
	}

	return user, nil
}

// Validate checks if the User has valid data.
// Returns an error if any field fails validation.
func (u *User) Validate() error {
	if u.ID == uuid.Nil {
		return ErrEmptyUserID
	}

	if u.Email == "" {
		return ErrEmptyEmail
	}

	if !validateEmailFormat(u.Email) {
		return ErrInvalidEmail
	}

	if !isValidUserRole(u.Role) {
		return ErrInvalidUserRole
	}

	if u.Password != "" {
		// When a plaintext password is provided, validate its length.
		if !validatePasswordLength(u.Password) {
			if len(u.Password) < 8 {
				return ErrPasswordTooShort
			}
			return ErrPasswordTooLong
		}
	} else {
		// Without a plaintext password the user must carry a stored hash
		// (the case for users loaded from the database).
		if u.HashedPassword == "" {
			return ErrEmptyPassword
		}
	}

	return nil
}

// isValidUserRole checks if the given role is a known UserRole.
func isValidUserRole(role UserRole) bool {
	switch role {
	case RoleAdmin, RoleAgent:
		return true
	default:
		return false
	}
}

// validateEmailFormat performs basic validation of email format.
// Returns true if the email appears to be in a valid format.
func validateEmailFormat(email string) bool {
	atIndex := -1
	for i, char := range email {
		if char == '@' {
			atIndex = i
			break
		}
	}

	if atIndex == -1 || atIndex == 0 || atIndex == len(email)-1 {
		return false
	}

	domainPart := email[atIndex+1:]
	if len(domainPart) < 3 { // minimum would be "a.b"
		return false
	}

	dotIndex := -1
	for i, char := range domainPart {
		if char == '.' {
			dotIndex = i
			break
		}
	}

	if dotIndex == -1 || dotIndex == 0 || dotIndex == len(domainPart)-1 {
		return false
	}

	return true
}

// validatePasswordLength checks if a password is between 8 and 72 characters.
// The upper bound is bcrypt's practical input limit.
func validatePasswordLength(password string) bool {
	passLen := len(password)
	return passLen >= 8 && passLen <= 72
}
