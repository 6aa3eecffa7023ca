package revocation

import (
	"context"
	"sync"
	"time"
)

// MemoryRegistry is an in-process revocation registry. It is the default
// backend for single-instance deployments and for tests. Expired entries are
// ignored on lookup and reclaimed by PurgeExpired.
type MemoryRegistry struct {
	mu      sync.RWMutex
	entries map[string]time.Time // credential ID -> natural expiry
}

// NewMemoryRegistry constructs an in-process revocation registry.
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		entries: make(map[string]time.Time),
	}
}

// Revoke records the credential as revoked until expiresAt.
// The first revocation wins: re-revoking keeps the original entry.
func (r *MemoryRegistry) Revoke(_ context.Context, credentialID string, revokedAt, expiresAt time.Time) error {
	if credentialID == "" {
		return nil
	}
	if err := validateExpiry(expiresAt); err != nil {
		return err
	}
	if !expiresAt.After(revokedAt) {
		// Already expired; the entry would be immediately purgeable.
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[credentialID]; exists {
		return nil
	}
	r.entries[credentialID] = expiresAt
	return nil
}

// IsRevoked reports whether the credential is revoked and not yet expired as
// of now.
func (r *MemoryRegistry) IsRevoked(_ context.Context, credentialID string, now time.Time) (bool, error) {
	start := time.Now()
	defer func() {
		checkDurationMs.Observe(float64(time.Since(start).Microseconds()) / 1000.0)
	}()

	if credentialID == "" {
		return false, nil
	}

	r.mu.RLock()
	expiresAt, exists := r.entries[credentialID]
	r.mu.RUnlock()

	if !exists {
		return false, nil
	}
	if now.After(expiresAt) {
		return false, nil
	}
	return true, nil
}

// PurgeExpired removes entries whose credentials have passed their natural
// expiry. Returns the number of entries removed.
func (r *MemoryRegistry) PurgeExpired(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var removed int64
	for id, expiresAt := range r.entries {
		if now.After(expiresAt) {
			delete(r.entries, id)
			removed++
		}
	}
	return removed, nil
}

// Len reports the number of live entries, including expired ones not yet
// purged. Intended for tests and diagnostics.
func (r *MemoryRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
