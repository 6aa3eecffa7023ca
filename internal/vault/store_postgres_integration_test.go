//go:build integration

package vault_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"

	"hushmcp/internal/consent"
	"hushmcp/internal/platform/postgres"
	"hushmcp/internal/vault"
	id "hushmcp/pkg/domain"
	"hushmcp/pkg/platform/sentinel"
	"hushmcp/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	pool     *pgxpool.Pool
	store    *vault.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())

	pool, err := postgres.OpenPool(context.Background(), s.postgres.DSN)
	s.Require().NoError(err)
	s.pool = pool
	s.store = vault.NewPostgresStore(pool)
}

func (s *PostgresStoreSuite) TearDownSuite() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "vault_records", "consent_records")
	s.Require().NoError(err)
}

// sealed builds a stored record with real ciphertext. Postgres keeps
// microseconds, so timestamps are truncated up front to survive the
// round-trip.
func (s *PostgresStoreSuite) sealed(userID id.UserID, category string, createdAt time.Time) vault.StoredRecord {
	s.T().Helper()
	key := bytes.Repeat([]byte{0x42}, vault.KeySize)
	record, err := vault.Encrypt([]byte("hello vault"), key, vault.Metadata{
		AgentID:   "agent_finance_assistant",
		Scope:     id.ScopeVaultReadFinance,
		CreatedAt: createdAt.UTC().Truncate(time.Microsecond),
	})
	s.Require().NoError(err)
	return vault.StoredRecord{
		ID:       vault.NewRecordID(),
		UserID:   userID,
		Category: category,
		Record:   record,
	}
}

func (s *PostgresStoreSuite) grant(userID id.UserID, wire string, issuedAt time.Time) consent.ConsentRecord {
	return consent.ConsentRecord{
		TokenHash: consent.HashToken(wire),
		TokenID:   id.NewTokenID(),
		UserID:    userID,
		AgentID:   "agent_finance_assistant",
		Scope:     id.ScopeVaultReadFinance,
		IssuedAt:  issuedAt.UTC().Truncate(time.Microsecond),
		ExpiresAt: issuedAt.Add(time.Hour).UTC().Truncate(time.Microsecond),
		Status:    consent.ConsentStatusActive,
	}
}

func (s *PostgresStoreSuite) TestPutGetRoundTrip() {
	ctx := context.Background()
	stored := s.sealed("user_abc", "finance", time.Now())

	s.Require().NoError(s.store.Put(ctx, stored))

	got, err := s.store.Get(ctx, stored.UserID, stored.Category, stored.ID)
	s.Require().NoError(err)
	s.Equal(stored.ID, got.ID)
	s.Equal(stored.UserID, got.UserID)
	s.Equal(stored.Category, got.Category)
	s.Equal(stored.Record.Algorithm, got.Record.Algorithm)
	s.Equal(stored.Record.Ciphertext, got.Record.Ciphertext)
	s.Equal(stored.Record.Nonce, got.Record.Nonce)
	s.Equal(stored.Record.Tag, got.Record.Tag)
	s.Equal(stored.Record.Metadata.AgentID, got.Record.Metadata.AgentID)
	s.Equal(stored.Record.Metadata.Scope, got.Record.Metadata.Scope)
	s.True(stored.Record.Metadata.CreatedAt.Equal(got.Record.Metadata.CreatedAt))
}

func (s *PostgresStoreSuite) TestPutDuplicateConflicts() {
	ctx := context.Background()
	stored := s.sealed("user_abc", "finance", time.Now())

	s.Require().NoError(s.store.Put(ctx, stored))
	s.ErrorIs(s.store.Put(ctx, stored), sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestGetMissesOnPartialAddress() {
	ctx := context.Background()
	stored := s.sealed("user_abc", "finance", time.Now())
	s.Require().NoError(s.store.Put(ctx, stored))

	_, err := s.store.Get(ctx, "user_other", stored.Category, stored.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Get(ctx, stored.UserID, "health", stored.ID)
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.Get(ctx, stored.UserID, stored.Category, vault.NewRecordID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestCategoriesAndListing() {
	ctx := context.Background()
	base := time.Now().Add(-time.Hour)

	oldest := s.sealed("user_abc", "finance", base)
	middle := s.sealed("user_abc", "email", base.Add(time.Minute))
	newest := s.sealed("user_abc", "finance", base.Add(2*time.Minute))
	s.Require().NoError(s.store.Put(ctx, oldest))
	s.Require().NoError(s.store.Put(ctx, middle))
	s.Require().NoError(s.store.Put(ctx, newest))
	s.Require().NoError(s.store.Put(ctx, s.sealed("user_other", "health", base)))

	categories, err := s.store.Categories(ctx, "user_abc")
	s.Require().NoError(err)
	s.Equal([]vault.CategoryCount{
		{Category: "email", Count: 1},
		{Category: "finance", Count: 2},
	}, categories)

	records, err := s.store.RecordsForUser(ctx, "user_abc")
	s.Require().NoError(err)
	s.Require().Len(records, 3)
	s.Equal(oldest.ID, records[0].ID, "oldest first")
	s.Equal(middle.ID, records[1].ID)
	s.Equal(newest.ID, records[2].ID)
}

func (s *PostgresStoreSuite) TestDeleteUserDataPurgesBothTables() {
	ctx := context.Background()
	now := time.Now()

	s.Require().NoError(s.store.Put(ctx, s.sealed("user_abc", "finance", now)))
	s.Require().NoError(s.store.Put(ctx, s.sealed("user_abc", "email", now)))
	s.Require().NoError(s.store.Put(ctx, s.sealed("user_other", "finance", now)))
	s.Require().NoError(s.store.RecordConsent(ctx, s.grant("user_abc", "HCT:one", now)))
	s.Require().NoError(s.store.RecordConsent(ctx, s.grant("user_other", "HCT:two", now)))

	counts, err := s.store.DeleteUserData(ctx, "user_abc")
	s.Require().NoError(err)
	s.Equal(vault.DeleteCounts{VaultRecords: 2, ConsentRecords: 1}, counts)

	records, err := s.store.RecordsForUser(ctx, "user_abc")
	s.Require().NoError(err)
	s.Empty(records)

	_, err = s.store.ConsentByHash(ctx, consent.HashToken("HCT:one"))
	s.ErrorIs(err, sentinel.ErrNotFound)

	kept, err := s.store.RecordsForUser(ctx, "user_other")
	s.Require().NoError(err)
	s.Len(kept, 1, "other users untouched")

	again, err := s.store.DeleteUserData(ctx, "user_abc")
	s.Require().NoError(err)
	s.Equal(vault.DeleteCounts{}, again, "purge is idempotent")
}

func (s *PostgresStoreSuite) TestConsentLifecycle() {
	ctx := context.Background()
	now := time.Now()

	first := s.grant("user_abc", "HCT:first", now.Add(-2*time.Minute))
	second := s.grant("user_abc", "HCT:second", now.Add(-time.Minute))
	expired := s.grant("user_abc", "HCT:expired", now.Add(-2*time.Hour))
	s.Require().NoError(s.store.RecordConsent(ctx, first))
	s.Require().NoError(s.store.RecordConsent(ctx, second))
	s.Require().NoError(s.store.RecordConsent(ctx, expired))

	byID, err := s.store.ConsentByTokenID(ctx, first.TokenID)
	s.Require().NoError(err)
	s.Equal(first.TokenHash, byID.TokenHash)
	s.Equal(consent.ConsentStatusActive, byID.Status)

	byHash, err := s.store.ConsentByHash(ctx, second.TokenHash)
	s.Require().NoError(err)
	s.Equal(second.TokenID, byHash.TokenID)

	active, err := s.store.ActiveConsents(ctx, "user_abc", now)
	s.Require().NoError(err)
	s.Require().Len(active, 2, "expired grant filtered out")
	s.Equal(second.TokenID, active[0].TokenID, "newest first")
	s.Equal(first.TokenID, active[1].TokenID)

	s.Require().NoError(s.store.MarkConsentRevoked(ctx, first.TokenHash))

	revoked, err := s.store.ConsentByHash(ctx, first.TokenHash)
	s.Require().NoError(err)
	s.Equal(consent.ConsentStatusRevoked, revoked.Status)

	active, err = s.store.ActiveConsents(ctx, "user_abc", now)
	s.Require().NoError(err)
	s.Require().Len(active, 1)
	s.Equal(second.TokenID, active[0].TokenID)

	s.ErrorIs(s.store.MarkConsentRevoked(ctx, consent.HashToken("HCT:missing")), sentinel.ErrNotFound)
}
