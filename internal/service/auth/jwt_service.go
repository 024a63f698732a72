package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JWTService defines operations for issuing and validating JWT bearer tokens.
type JWTService interface {
	// GenerateToken creates a signed JWT bearer token for the user. The
	// tokenVersion is embedded in the claims so all tokens issued before a
	// version bump can be rejected at validation time.
	// Returns the token string, its unique token ID, and the token lifetime.
	GenerateToken(ctx context.Context, userID uuid.UUID, tokenVersion int) (string, string, time.Duration, error)

	// ValidateToken checks the token's signature, issuer, audience, and time
	// claims, and extracts the claims. Returns an error if validation fails
	// (expired, invalid signature, wrong issuer, etc.). Revocation and
	// version checks are layered on top by the session service.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims represents the validated claims extracted from a bearer token.
type Claims struct {
	// UserID is the unique identifier of the user the token was issued for.
	UserID uuid.UUID `json:"uid,omitempty"`

	// TokenVersion is the user's token version at issue time. Tokens whose
	// version trails the user's current version are stale.
	TokenVersion int `json:"ver"`

	// Standard registered JWT claims
	Subject   string    `json:"sub,omitempty"`
	IssuedAt  time.Time `json:"iat,omitempty"`
	ExpiresAt time.Time `json:"exp,omitempty"`
	ID        string    `json:"jti,omitempty"`
}
