package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/digestly/digestly-api/internal/domain"
	"github.com/digestly/digestly-api/internal/service"
)

// Common request/response structures

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	// UserID is the unique identifier for the authenticated user
	UserID uuid.UUID `json:"user_id"`

	// AccessToken is the bearer token used for API authorization
	AccessToken string `json:"token"`

	// ExpiresAt is the ISO 8601 timestamp when the token expires
	ExpiresAt string `json:"expires_at,omitempty"`
}

// UpdateUserRoleRequest represents the request body for changing a user's
// role.
type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=ADMIN AGENT"`
}

// UserResponse defines the public view of a user.
type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateNoteRequest represents the request body for creating a new note
type CreateNoteRequest struct {
	RawText string `json:"raw_text" validate:"required,min=1"`
}

// NoteResponse represents the response data for a note
type NoteResponse struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	RawText   string    `json:"raw_text"`
	Summary   *string   `json:"summary"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UserWithNotesResponse pairs a user with their notes for the admin
// grouped listing.
type UserWithNotesResponse struct {
	User  UserResponse   `json:"user"`
	Notes []NoteResponse `json:"notes"`
}

// userToResponse converts a domain.User to a UserResponse
func userToResponse(user *domain.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Email:     user.Email,
		Role:      string(user.Role),
		CreatedAt: user.CreatedAt,
	}
}

// noteToResponse converts a domain.Note to a NoteResponse
func noteToResponse(note *domain.Note) NoteResponse {
	return NoteResponse{
		ID:        note.ID,
		UserID:    note.UserID,
		RawText:   note.RawText,
		Summary:   note.Summary,
		Status:    string(note.Status),
		CreatedAt: note.CreatedAt,
		UpdatedAt: note.UpdatedAt,
	}
}

// notesToResponse converts a slice of notes, always returning a non-nil
// slice so empty listings serialize as [] rather than null.
func notesToResponse(notes []*domain.Note) []NoteResponse {
	out := make([]NoteResponse, 0, len(notes))
	for _, note := range notes {
		out = append(out, noteToResponse(note))
	}
	return out
}

// groupedToResponse converts the service grouping to its response form.
func groupedToResponse(groups []service.UserNotes) []UserWithNotesResponse {
	out := make([]UserWithNotesResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, UserWithNotesResponse{
			User:  userToResponse(g.User),
			Notes: notesToResponse(g.Notes),
		})
	}
	return out
}
