package vault

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"hushmcp/internal/consent"
	id "hushmcp/pkg/domain"
	"hushmcp/pkg/platform/sentinel"
)

// Error Contract:
// All store methods follow this error pattern:
// - Return ErrNotFound (wrapped) when the requested record does not exist
// - Return ErrConflict (wrapped) when Put collides with an existing id
// - Return nil for successful operations
// MemoryStore keeps sealed records in memory for tests/dev. It shares the
// right-to-be-forgotten contract with the Postgres store, so it purges the
// companion consent records too.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[RecordID]StoredRecord
	consents *consent.MemoryRecords
}

// NewMemoryStore constructs an empty in-memory vault store. DeleteUserData
// purges consents alongside vault rows.
func NewMemoryStore(consents *consent.MemoryRecords) *MemoryStore {
	return &MemoryStore{
		records:  make(map[RecordID]StoredRecord),
		consents: consents,
	}
}

func (s *MemoryStore) Put(_ context.Context, record StoredRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.records[record.ID]; ok {
		return fmt.Errorf("vault record %s already exists: %w", record.ID, sentinel.ErrConflict)
	}
	s.records[record.ID] = record
	return nil
}

func (s *MemoryStore) Get(_ context.Context, userID id.UserID, category string, recordID RecordID) (StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[recordID]
	if !ok || record.UserID != userID || record.Category != category {
		return StoredRecord{}, fmt.Errorf("vault record not found: %w", sentinel.ErrNotFound)
	}
	return record, nil
}

func (s *MemoryStore) Categories(_ context.Context, userID id.UserID) ([]CategoryCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, record := range s.records {
		if record.UserID == userID {
			counts[record.Category]++
		}
	}
	categories := make([]CategoryCount, 0, len(counts))
	for category, count := range counts {
		categories = append(categories, CategoryCount{Category: category, Count: count})
	}
	slices.SortFunc(categories, func(a, b CategoryCount) int {
		return strings.Compare(a.Category, b.Category)
	})
	return categories, nil
}

func (s *MemoryStore) RecordsForUser(_ context.Context, userID id.UserID) ([]StoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var records []StoredRecord
	for _, record := range s.records {
		if record.UserID == userID {
			records = append(records, record)
		}
	}
	slices.SortFunc(records, func(a, b StoredRecord) int {
		return a.Record.Metadata.CreatedAt.Compare(b.Record.Metadata.CreatedAt)
	})
	return records, nil
}

func (s *MemoryStore) DeleteUserData(ctx context.Context, userID id.UserID) (DeleteCounts, error) {
	s.mu.Lock()
	var counts DeleteCounts
	for recordID, record := range s.records {
		if record.UserID != userID {
			continue
		}
		delete(s.records, recordID)
		counts.VaultRecords++
	}
	s.mu.Unlock()

	consents, err := s.consents.DeleteForUser(ctx, userID)
	if err != nil {
		return DeleteCounts{}, err
	}
	counts.ConsentRecords = consents
	return counts, nil
}
