package store

import (
	"context"
	"errors"
	"time"
)

// ErrRevocationUnavailable is returned when the revocation store cannot be
// reached. At validation time callers treat this as "not revoked" (the
// fail-open policy); at revoke time it is surfaced to the caller, since the
// logout did not fully take effect.
var ErrRevocationUnavailable = errors.New("revocation store unavailable")

// RevocationStore defines the interface for the token revocation backend:
// a key-value store with per-key TTL expiry. Entries are keyed by token ID
// (jti) and never outlive the token they block, so the store's memory is
// bounded by the set of not-yet-expired revocations.
type RevocationStore interface {
	// Revoke marks the token ID as revoked for the given TTL, which must be
	// the token's remaining lifetime. A non-positive TTL is a no-op, since
	// the token has already expired.
	// Returns ErrRevocationUnavailable if the store cannot be reached.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error

	// IsRevoked reports whether the token ID has a live revocation entry.
	// Returns ErrRevocationUnavailable if the store cannot be reached.
	IsRevoked(ctx context.Context, jti string) (bool, error)
}
