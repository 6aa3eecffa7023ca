//go:build integration

package bucket_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"hushmcp/internal/ratelimit/store/bucket"
	"hushmcp/pkg/requestcontext"
	"hushmcp/pkg/testutil/containers"
)

type RedisBucketStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *bucket.RedisBucketStore
	start time.Time
}

func TestRedisBucketStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisBucketStoreSuite))
}

func (s *RedisBucketStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = bucket.NewRedisBucketStore(s.redis.Client)
}

func (s *RedisBucketStoreSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
	s.start = time.Now().Truncate(time.Millisecond)
}

func (s *RedisBucketStoreSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

// TestBudgetEnforced verifies the full allow-until-exhausted contract against
// a real Redis instance.
func (s *RedisBucketStoreSuite) TestBudgetEnforced() {
	ctx := s.at(s.start)

	for i := range 5 {
		result, err := s.store.Allow(ctx, "it:key:budget", 5, time.Minute)
		s.Require().NoError(err)
		s.Require().True(result.Allowed, "request %d should be allowed", i+1)
		s.Equal(5, result.Limit)
		s.Equal(4-i, result.Remaining)
	}

	result, err := s.store.Allow(ctx, "it:key:budget", 5, time.Minute)
	s.Require().NoError(err)
	s.False(result.Allowed)
	s.Equal(0, result.Remaining)
	s.Positive(result.RetryAfter)
}

// TestWindowSlides verifies entries age out of the window. The store derives
// time from the request context, so the clock can be advanced without
// sleeping.
func (s *RedisBucketStoreSuite) TestWindowSlides() {
	for range 3 {
		_, err := s.store.Allow(s.at(s.start), "it:key:slide", 3, time.Minute)
		s.Require().NoError(err)
	}

	denied, err := s.store.Allow(s.at(s.start.Add(time.Second)), "it:key:slide", 3, time.Minute)
	s.Require().NoError(err)
	s.Require().False(denied.Allowed)

	result, err := s.store.Allow(s.at(s.start.Add(time.Minute+time.Second)), "it:key:slide", 3, time.Minute)
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Equal(2, result.Remaining)
}

// TestSharedAcrossInstances verifies two store instances count against the
// same window, the property that makes this the multi-replica backend.
func (s *RedisBucketStoreSuite) TestSharedAcrossInstances() {
	other := bucket.NewRedisBucketStore(s.redis.Client)
	ctx := s.at(s.start)

	_, err := s.store.AllowN(ctx, "it:key:shared", 2, 3, time.Minute)
	s.Require().NoError(err)

	result, err := other.Allow(ctx, "it:key:shared", 3, time.Minute)
	s.Require().NoError(err)
	s.Require().True(result.Allowed)
	s.Equal(0, result.Remaining)

	result, err = other.Allow(ctx, "it:key:shared", 3, time.Minute)
	s.Require().NoError(err)
	s.False(result.Allowed)
}

// TestAllowNCost verifies multi-token costs and that denied requests leave
// the budget untouched.
func (s *RedisBucketStoreSuite) TestAllowNCost() {
	ctx := s.at(s.start)

	result, err := s.store.AllowN(ctx, "it:key:cost", 7, 10, time.Minute)
	s.Require().NoError(err)
	s.Require().True(result.Allowed)
	s.Equal(3, result.Remaining)

	denied, err := s.store.AllowN(ctx, "it:key:cost", 4, 10, time.Minute)
	s.Require().NoError(err)
	s.Require().False(denied.Allowed)

	result, err = s.store.AllowN(ctx, "it:key:cost", 3, 10, time.Minute)
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Equal(0, result.Remaining)
}

// TestKeysAreIsolated verifies one key's exhaustion does not affect another.
func (s *RedisBucketStoreSuite) TestKeysAreIsolated() {
	ctx := s.at(s.start)

	_, err := s.store.AllowN(ctx, "it:key:iso:a", 3, 3, time.Minute)
	s.Require().NoError(err)

	result, err := s.store.Allow(ctx, "it:key:iso:b", 3, time.Minute)
	s.Require().NoError(err)
	s.True(result.Allowed)
	s.Equal(2, result.Remaining)
}
