package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/digestly/digestly-api/internal/store"
)

// revokedKeyPrefix namespaces revocation entries in the shared keyspace.
const revokedKeyPrefix = "revoked:"

// RedisRevocationStore implements the store.RevocationStore interface using
// Redis. Revoked token IDs are stored under a TTL matching the remaining
// token lifetime, so the set never grows beyond the tokens that could still
// be presented.
type RedisRevocationStore struct {
	client *redis.Client
}

// NewRedisRevocationStore creates a new RedisRevocationStore using the
// provided client.
func NewRedisRevocationStore(client *redis.Client) *RedisRevocationStore {
	return &RedisRevocationStore{
		client: client,
	}
}

// Revoke records the token ID as revoked for the given TTL. A non-positive
// TTL means the token is already expired and there is nothing to record.
func (s *RedisRevocationStore) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if jti == "" {
		return errors.New("token ID cannot be empty")
	}

	if ttl <= 0 {
		return nil
	}

	if err := s.client.Set(ctx, revokedKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrRevocationUnavailable, err)
	}

	return nil
}

// IsRevoked reports whether the token ID has been revoked. Backend failures
// are wrapped in store.ErrRevocationUnavailable so the caller can decide
// whether to fail open or closed.
func (s *RedisRevocationStore) IsRevoked(ctx context.Context, jti string) (bool, error) {
	if jti == "" {
		return false, errors.New("token ID cannot be empty")
	}

	n, err := s.client.Exists(ctx, revokedKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", store.ErrRevocationUnavailable, err)
	}

	return n > 0, nil
}

func revokedKey(jti string) string {
	return revokedKeyPrefix + jti
}

// Ensure RedisRevocationStore implements store.RevocationStore
var _ store.RevocationStore = (*RedisRevocationStore)(nil)
