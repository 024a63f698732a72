package auth

import (
	"time"

	"github.com/google/uuid"

	"github.com/digestly/digestly-api/internal/domain"
)

// Principal is the authenticated identity attached to a request after its
// bearer token has passed every validation layer.
type Principal struct {
	UserID       uuid.UUID
	Email        string
	Role         domain.UserRole
	TokenID      string
	TokenVersion int
	TokenExpiry  time.Time
}

// IsAdmin reports whether the principal carries the admin role.
func (p *Principal) IsAdmin() bool {
	return p.Role == domain.RoleAdmin
}
