// Package requestlimit applies per-IP request budgets by endpoint class.
package requestlimit

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"hushmcp/internal/ratelimit/models"
	"hushmcp/internal/ratelimit/observability"
	dErrors "hushmcp/pkg/domain-errors"
	"hushmcp/pkg/platform/audit"
	"hushmcp/pkg/platform/privacy"
	"hushmcp/pkg/requestcontext"
)

// classBudget is a per-IP request budget for one endpoint class.
type classBudget struct {
	requests int
	window   time.Duration
}

// Budgets per endpoint class. Auth is tight because the lockout service
// handles per-identifier throttling and this is pure flood control; agent
// traffic is machine-driven and gets the widest budget.
var classBudgets = map[models.EndpointClass]classBudget{
	models.ClassAuth:       {requests: 10, window: time.Minute},
	models.ClassAgent:      {requests: 120, window: time.Minute},
	models.ClassManagement: {requests: 60, window: time.Minute},
}

// BucketStore counts requests in sliding windows.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

// Service checks per-IP budgets against a bucket store.
type Service struct {
	buckets   BucketStore
	publisher observability.Publisher
	logger    *slog.Logger
}

// New constructs the request limit service. publisher may be nil; denials
// are then only logged.
func New(buckets BucketStore, publisher observability.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		buckets:   buckets,
		publisher: publisher,
		logger:    logger,
	}
}

// CheckIP counts one request from ip against the class budget. Unknown
// classes deny: a route wired to a class without a budget is a bug that must
// surface in staging, not an open gate.
func (s *Service) CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error) {
	budget, ok := classBudgets[class]
	if !ok {
		s.logger.ErrorContext(ctx, "no rate limit budget for endpoint class",
			"endpoint_class", class.String(),
			"ip_prefix", privacy.AnonymizeIP(ip),
		)
		return &models.RateLimitResult{
			Allowed:    false,
			ResetAt:    requestcontext.Now(ctx).Add(time.Minute),
			RetryAfter: 60,
		}, nil
	}

	key := models.NewRateLimitKey(ip, class)
	result, err := s.buckets.Allow(ctx, key.String(), budget.requests, budget.window)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check rate limit")
	}

	if !result.Allowed {
		observability.LogAudit(ctx, s.logger, s.publisher, audit.EventRateLimited,
			"ip", privacy.AnonymizeIP(ip),
			"endpoint_class", class.String(),
			"limit", strconv.Itoa(budget.requests),
			"window_seconds", strconv.Itoa(int(budget.window.Seconds())),
		)
	}

	return result, nil
}
