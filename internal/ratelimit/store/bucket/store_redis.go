package bucket

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"hushmcp/internal/ratelimit/models"
	"hushmcp/pkg/requestcontext"
)

// Redis key prefix for sliding-window sorted sets.
const redisKeyPrefix = "ratelimit:"

// RedisBucketStore implements sliding-window rate limiting on Redis sorted
// sets, one set per key with request timestamps as scores. This is the
// backend for multi-replica deployments: all instances count against the
// same window.
//
// The count and the insert run as separate round trips, so concurrent
// requests can overshoot the budget by the number of in-flight checks.
// That slack is acceptable for abuse control and keeps the store free of
// server-side scripting.
type RedisBucketStore struct {
	client *redis.Client
}

// NewRedisBucketStore constructs a Redis-backed bucket store. The client
// lifecycle is managed externally.
func NewRedisBucketStore(client *redis.Client) *RedisBucketStore {
	return &RedisBucketStore{client: client}
}

// Allow checks if a request is allowed and increments the counter.
func (s *RedisBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error) {
	return s.AllowN(ctx, key, 1, limit, window)
}

// AllowN checks if a request with custom cost is allowed. Scores are unix
// milliseconds; members are random so hits in the same millisecond stay
// distinct entries.
func (s *RedisBucketStore) AllowN(ctx context.Context, key string, cost int, limit int, window time.Duration) (*models.RateLimitResult, error) {
	now := requestcontext.Now(ctx)
	redisKey := redisKeyPrefix + key
	cutoff := now.Add(-window).UnixMilli()

	pipe := s.client.Pipeline()
	pipe.ZRemRangeByScore(ctx, redisKey, "-inf", strconv.FormatInt(cutoff, 10))
	countCmd := pipe.ZCard(ctx, redisKey)
	oldestCmd := pipe.ZRangeWithScores(ctx, redisKey, 0, 0)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("count rate limit window: %w", err)
	}

	count := int(countCmd.Val())
	resetAt := now.Add(window)
	if oldest := oldestCmd.Val(); len(oldest) > 0 {
		resetAt = time.UnixMilli(int64(oldest[0].Score)).Add(window)
	}

	if count+cost > limit {
		return &models.RateLimitResult{
			Allowed:    false,
			Limit:      limit,
			Remaining:  0,
			ResetAt:    resetAt,
			RetryAfter: retryAfterSeconds(now, resetAt),
		}, nil
	}

	members := make([]redis.Z, cost)
	score := float64(now.UnixMilli())
	for i := range members {
		members[i] = redis.Z{Score: score, Member: uuid.NewString()}
	}
	record := s.client.Pipeline()
	record.ZAdd(ctx, redisKey, members...)
	// Refresh the TTL on every hit; the set dies with its newest entry.
	record.PExpire(ctx, redisKey, window)
	if _, err := record.Exec(ctx); err != nil {
		return nil, fmt.Errorf("record rate limit hit: %w", err)
	}

	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     limit,
		Remaining: max(limit-count-cost, 0),
		ResetAt:   resetAt,
	}, nil
}
