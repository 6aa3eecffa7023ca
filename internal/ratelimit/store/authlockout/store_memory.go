// Package authlockout persists login failure records keyed by lockout key.
// Stores are pure I/O; threshold decisions belong to the lockout service.
package authlockout

import (
	"context"
	"errors"
	"sync"
	"time"

	"hushmcp/internal/ratelimit/models"
	"hushmcp/pkg/requestcontext"
)

// purgeIdleAfter is how long a record may sit without a new failure before
// the janitor removes it. Long enough that DailyFailures still catches
// slow-burn attacks, short enough that one-off typos don't accumulate.
const purgeIdleAfter = 24 * time.Hour

// InMemoryAuthLockoutStore keeps lockout records in process memory.
// Single-instance deployments only; use PostgresStore when lockout state
// must survive restarts or be shared across replicas.
type InMemoryAuthLockoutStore struct {
	mu      sync.Mutex
	records map[string]*models.AuthLockout
}

// New creates an empty in-memory auth lockout store.
func New() *InMemoryAuthLockoutStore {
	return &InMemoryAuthLockoutStore{
		records: make(map[string]*models.AuthLockout),
	}
}

// Get returns a copy of the record, or nil when the identifier has no
// failures on file. Callers may mutate the copy and persist via Update.
func (s *InMemoryAuthLockoutStore) Get(ctx context.Context, identifier string) (*models.AuthLockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[identifier]
	if !ok {
		return nil, nil
	}
	clone := *record
	return &clone, nil
}

// RecordFailure increments both failure counters, creating the record on
// first failure. Returns a copy of the updated record.
func (s *InMemoryAuthLockoutStore) RecordFailure(ctx context.Context, identifier string) (*models.AuthLockout, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := requestcontext.Now(ctx)
	record, ok := s.records[identifier]
	if !ok {
		record = &models.AuthLockout{Identifier: identifier}
		s.records[identifier] = record
	}
	record.FailureCount++
	record.DailyFailures++
	record.LastFailureAt = now

	clone := *record
	return &clone, nil
}

// Clear removes the record. Clearing a missing identifier is a no-op.
func (s *InMemoryAuthLockoutStore) Clear(ctx context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, identifier)
	return nil
}

// IsLocked reports whether a hard lock is in force, and its expiry when so.
// Expired locks report unlocked.
func (s *InMemoryAuthLockoutStore) IsLocked(ctx context.Context, identifier string) (bool, *time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[identifier]
	if !ok || record.LockedUntil == nil {
		return false, nil, nil
	}
	if !requestcontext.Now(ctx).Before(*record.LockedUntil) {
		return false, nil, nil
	}
	until := *record.LockedUntil
	return true, &until, nil
}

// Update upserts the record.
func (s *InMemoryAuthLockoutStore) Update(ctx context.Context, record *models.AuthLockout) error {
	if record == nil {
		return errors.New("auth lockout record is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	clone := *record
	s.records[record.Identifier] = &clone
	return nil
}

// PurgeExpired removes records whose last failure is older than the idle
// cutoff and whose hard lock, if any, has expired. Returns the number
// removed. Satisfies the janitor's purger contract.
func (s *InMemoryAuthLockoutStore) PurgeExpired(ctx context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := now.Add(-purgeIdleAfter)
	var purged int64
	for identifier, record := range s.records {
		if record.LastFailureAt.After(cutoff) {
			continue
		}
		if record.LockedUntil != nil && now.Before(*record.LockedUntil) {
			continue
		}
		delete(s.records, identifier)
		purged++
	}
	return purged, nil
}
