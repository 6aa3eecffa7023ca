package revocation

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// Redis key prefix for revoked credentials (consent revocation list)
	revokedKeyPrefix = "crl:id:"
)

// RedisRegistry is a Redis-backed revocation registry. This is the
// production-recommended backend for distributed deployments where multiple
// instances need to share revocation state. Expiry is handled natively by
// key TTLs, so no purging is required.
type RedisRegistry struct {
	client *redis.Client
}

// NewRedisRegistry constructs a Redis-backed revocation registry.
func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{client: client}
}

// Revoke records the credential as revoked until expiresAt.
// Uses SETNX with TTL so the first revocation wins and the key expires with
// the credential.
func (r *RedisRegistry) Revoke(ctx context.Context, credentialID string, revokedAt, expiresAt time.Time) error {
	if credentialID == "" {
		return nil
	}
	if err := validateExpiry(expiresAt); err != nil {
		return err
	}
	ttl := expiresAt.Sub(revokedAt)
	if ttl <= 0 {
		// Already expired; nothing worth storing.
		return nil
	}
	key := revokedKeyPrefix + credentialID
	// Store the revocation time for debuggability; key existence is what matters.
	return r.client.SetNX(ctx, key, revokedAt.UTC().Format(time.RFC3339Nano), ttl).Err()
}

// IsRevoked checks if the credential is in the revocation registry.
// Returns false if the key does not exist (not revoked, or expired). The now
// parameter is unused: Redis expires keys itself.
func (r *RedisRegistry) IsRevoked(ctx context.Context, credentialID string, _ time.Time) (bool, error) {
	start := time.Now()
	defer func() {
		checkDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if credentialID == "" {
		return false, nil
	}
	key := revokedKeyPrefix + credentialID
	_, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Close is a no-op for RedisRegistry since the client lifecycle is managed
// externally.
func (r *RedisRegistry) Close() {
	// Client lifecycle managed externally
}
