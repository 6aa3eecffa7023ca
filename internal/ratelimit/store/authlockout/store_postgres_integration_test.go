//go:build integration

package authlockout_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"hushmcp/internal/ratelimit/store/authlockout"
	"hushmcp/pkg/requestcontext"
	"hushmcp/pkg/testutil/containers"
)

type PostgresAuthLockoutStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *authlockout.PostgresStore
}

func TestPostgresAuthLockoutStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresAuthLockoutStoreSuite))
}

func (s *PostgresAuthLockoutStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = authlockout.NewPostgres(s.postgres.DB)
}

func (s *PostgresAuthLockoutStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "auth_lockouts")
	s.Require().NoError(err)
}

// TestRecordFailureLifecycle verifies the create-increment-clear contract
// against a real Postgres instance.
func (s *PostgresAuthLockoutStoreSuite) TestRecordFailureLifecycle() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	ctx := requestcontext.WithTime(context.Background(), now)

	record, err := s.store.Get(ctx, "lockout:ghost@example.com:203.0.113.9")
	s.Require().NoError(err)
	s.Nil(record)

	record, err = s.store.RecordFailure(ctx, "lockout:user@example.com:203.0.113.9")
	s.Require().NoError(err)
	s.Equal(1, record.FailureCount)
	s.Equal(1, record.DailyFailures)
	s.True(record.LastFailureAt.Equal(now))
	s.Nil(record.LockedUntil)
	s.False(record.RequiresCaptcha)

	record, err = s.store.RecordFailure(ctx, "lockout:user@example.com:203.0.113.9")
	s.Require().NoError(err)
	s.Equal(2, record.FailureCount)
	s.Equal(2, record.DailyFailures)

	s.Require().NoError(s.store.Clear(ctx, "lockout:user@example.com:203.0.113.9"))
	record, err = s.store.Get(ctx, "lockout:user@example.com:203.0.113.9")
	s.Require().NoError(err)
	s.Nil(record)
}

// TestConcurrentFailuresCountExactly verifies the atomic upsert: every
// concurrent failure lands in the counter.
func (s *PostgresAuthLockoutStoreSuite) TestConcurrentFailuresCountExactly() {
	ctx := context.Background()
	const workers = 20

	var wg sync.WaitGroup
	for range workers {
		wg.Go(func() {
			_, err := s.store.RecordFailure(ctx, "lockout:swarm@example.com:198.51.100.4")
			s.Require().NoError(err)
		})
	}
	wg.Wait()

	record, err := s.store.Get(ctx, "lockout:swarm@example.com:198.51.100.4")
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.Equal(workers, record.FailureCount)
	s.Equal(workers, record.DailyFailures)
}

// TestHardLockRoundTrip verifies Update persists a lock and IsLocked honors
// its expiry.
func (s *PostgresAuthLockoutStoreSuite) TestHardLockRoundTrip() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	ctx := requestcontext.WithTime(context.Background(), now)

	record, err := s.store.RecordFailure(ctx, "lockout:locked@example.com:192.0.2.7")
	s.Require().NoError(err)

	until := now.Add(15 * time.Minute)
	record.LockedUntil = &until
	record.RequiresCaptcha = true
	s.Require().NoError(s.store.Update(ctx, record))

	locked, lockedUntil, err := s.store.IsLocked(ctx, "lockout:locked@example.com:192.0.2.7")
	s.Require().NoError(err)
	s.True(locked)
	s.Require().NotNil(lockedUntil)
	s.True(lockedUntil.Equal(until))

	afterExpiry := requestcontext.WithTime(context.Background(), until.Add(time.Second))
	locked, _, err = s.store.IsLocked(afterExpiry, "lockout:locked@example.com:192.0.2.7")
	s.Require().NoError(err)
	s.False(locked)

	// The captcha flag survives independently of the lock.
	record, err = s.store.Get(ctx, "lockout:locked@example.com:192.0.2.7")
	s.Require().NoError(err)
	s.True(record.RequiresCaptcha)
}

// TestPurgeExpired verifies idle rows are deleted and active locks are kept.
func (s *PostgresAuthLockoutStoreSuite) TestPurgeExpired() {
	now := time.Now().UTC().Truncate(time.Microsecond)
	stale := requestcontext.WithTime(context.Background(), now.Add(-25*time.Hour))
	fresh := requestcontext.WithTime(context.Background(), now)

	_, err := s.store.RecordFailure(stale, "lockout:idle@example.com:203.0.113.1")
	s.Require().NoError(err)
	_, err = s.store.RecordFailure(fresh, "lockout:active@example.com:203.0.113.2")
	s.Require().NoError(err)

	lockedIdle, err := s.store.RecordFailure(stale, "lockout:heldopen@example.com:203.0.113.3")
	s.Require().NoError(err)
	until := now.Add(10 * time.Minute)
	lockedIdle.LockedUntil = &until
	s.Require().NoError(s.store.Update(stale, lockedIdle))

	purged, err := s.store.PurgeExpired(context.Background(), now)
	s.Require().NoError(err)
	s.EqualValues(1, purged)

	record, err := s.store.Get(fresh, "lockout:idle@example.com:203.0.113.1")
	s.Require().NoError(err)
	s.Nil(record)

	record, err = s.store.Get(fresh, "lockout:active@example.com:203.0.113.2")
	s.Require().NoError(err)
	s.NotNil(record)

	record, err = s.store.Get(fresh, "lockout:heldopen@example.com:203.0.113.3")
	s.Require().NoError(err)
	s.NotNil(record, "active hard lock must survive the purge")
}
