package consent

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	id "hushmcp/pkg/domain"
	"hushmcp/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound (wrapped) when the requested record does not exist
// - Return nil for successful operations
// MemoryRecords keeps consent records in memory for tests/dev.
type MemoryRecords struct {
	mu      sync.RWMutex
	byHash  map[string]ConsentRecord
	byToken map[id.TokenID]string
}

// NewMemoryRecords constructs an empty in-memory consent record store.
func NewMemoryRecords() *MemoryRecords {
	return &MemoryRecords{
		byHash:  make(map[string]ConsentRecord),
		byToken: make(map[id.TokenID]string),
	}
}

func (s *MemoryRecords) RecordConsent(_ context.Context, record ConsentRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byHash[record.TokenHash] = record
	s.byToken[record.TokenID] = record.TokenHash
	return nil
}

func (s *MemoryRecords) ActiveConsents(_ context.Context, userID id.UserID, now time.Time) ([]ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []ConsentRecord
	for _, record := range s.byHash {
		if record.UserID == userID && record.IsActive(now) {
			active = append(active, record)
		}
	}
	slices.SortFunc(active, func(a, b ConsentRecord) int {
		return b.IssuedAt.Compare(a.IssuedAt)
	})
	return active, nil
}

func (s *MemoryRecords) MarkConsentRevoked(_ context.Context, tokenHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.byHash[tokenHash]
	if !ok {
		return fmt.Errorf("consent record not found: %w", sentinel.ErrNotFound)
	}
	record.Status = ConsentStatusRevoked
	s.byHash[tokenHash] = record
	return nil
}

// DeleteForUser hard-deletes every consent record belonging to userID and
// returns how many were removed. Not part of the Records interface; the vault
// memory store calls it during a right-to-be-forgotten purge, mirroring the
// cross-table delete the Postgres store runs in one transaction.
func (s *MemoryRecords) DeleteForUser(_ context.Context, userID id.UserID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted := 0
	for hash, record := range s.byHash {
		if record.UserID != userID {
			continue
		}
		delete(s.byHash, hash)
		delete(s.byToken, record.TokenID)
		deleted++
	}
	return deleted, nil
}

func (s *MemoryRecords) ConsentByTokenID(_ context.Context, tokenID id.TokenID) (*ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash, ok := s.byToken[tokenID]
	if !ok {
		return nil, fmt.Errorf("consent record not found: %w", sentinel.ErrNotFound)
	}
	record := s.byHash[hash]
	return &record, nil
}

func (s *MemoryRecords) ConsentByHash(_ context.Context, tokenHash string) (*ConsentRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.byHash[tokenHash]
	if !ok {
		return nil, fmt.Errorf("consent record not found: %w", sentinel.ErrNotFound)
	}
	return &record, nil
}
