// Package authlockout tracks failed logins per identifier/IP pair and
// escalates: attempt-window throttling first, then a hard lock, then a
// CAPTCHA requirement for sustained abuse.
package authlockout

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"hushmcp/internal/platform/metrics"
	"hushmcp/internal/ratelimit/models"
	"hushmcp/internal/ratelimit/observability"
	dErrors "hushmcp/pkg/domain-errors"
	"hushmcp/pkg/platform/audit"
	"hushmcp/pkg/platform/privacy"
	"hushmcp/pkg/requestcontext"
)

const (
	// attemptsPerWindow failures within attemptWindow block further tries
	// until the window drains.
	attemptsPerWindow = 5
	attemptWindow     = 15 * time.Minute

	// hardLockThreshold daily failures trigger a hard lock; the count keeps
	// accumulating until a successful login clears it or the janitor purges
	// the idle record.
	hardLockThreshold = 10
	hardLockDuration  = 15 * time.Minute

	// captchaThreshold daily failures latch the CAPTCHA requirement.
	captchaThreshold = 15
)

// Store persists lockout records. Pure I/O; the service owns every
// threshold decision.
type Store interface {
	RecordFailure(ctx context.Context, identifier string) (*models.AuthLockout, error)
	Get(ctx context.Context, identifier string) (*models.AuthLockout, error)
	Clear(ctx context.Context, identifier string) error
	IsLocked(ctx context.Context, identifier string) (bool, *time.Time, error)
	Update(ctx context.Context, record *models.AuthLockout) error
}

// Service applies lockout policy on top of a Store.
type Service struct {
	store     Store
	publisher observability.Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New constructs the lockout service. publisher and metrics may be nil;
// hard-lock transitions are then only logged.
func New(store Store, publisher observability.Publisher, m *metrics.Metrics, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:     store,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// Check reports whether a login attempt for identifier from ip may proceed.
// It never mutates state; the login handler reports outcomes through
// RecordFailure and Clear.
func (s *Service) Check(ctx context.Context, identifier, ip string) (*models.AuthRateLimitResult, error) {
	key := models.NewAuthLockoutKey(identifier, ip).String()
	record, err := s.store.Get(ctx, key)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to get auth lockout record")
	}

	// Run the same checks against a zero record when nothing is on file, so
	// response timing does not reveal which identifiers exist.
	if record == nil {
		record = &models.AuthLockout{}
	}

	now := requestcontext.Now(ctx)

	if record.IsLockedAt(now) {
		s.logger.InfoContext(ctx, "login attempt while hard-locked",
			"ip_prefix", privacy.AnonymizeIP(ip),
			"locked_until", record.LockedUntil,
		)
		return &models.AuthRateLimitResult{
			RateLimitResult: models.RateLimitResult{
				Allowed:    false,
				Limit:      attemptsPerWindow,
				ResetAt:    *record.LockedUntil,
				RetryAfter: retryAfterSeconds(now, *record.LockedUntil),
			},
			RequiresCaptcha: record.RequiresCaptcha,
			FailureCount:    record.FailureCount,
		}, nil
	}

	windowActive := record.FailureWindowActiveAt(now, attemptWindow)
	if windowActive && record.IsAttemptLimitReached(attemptsPerWindow) {
		resetAt := record.LastFailureAt.Add(attemptWindow)
		return &models.AuthRateLimitResult{
			RateLimitResult: models.RateLimitResult{
				Allowed:    false,
				Limit:      attemptsPerWindow,
				ResetAt:    resetAt,
				RetryAfter: retryAfterSeconds(now, resetAt),
			},
			RequiresCaptcha: record.RequiresCaptcha,
			FailureCount:    record.FailureCount,
		}, nil
	}

	// A stale window no longer blocks, but its counters stay until cleared;
	// report the full budget again.
	remaining := attemptsPerWindow
	if windowActive {
		remaining = record.RemainingAttempts(attemptsPerWindow)
	}

	return &models.AuthRateLimitResult{
		RateLimitResult: models.RateLimitResult{
			Allowed:   true,
			Limit:     attemptsPerWindow,
			Remaining: remaining,
			ResetAt:   now.Add(attemptWindow),
		},
		RequiresCaptcha: record.RequiresCaptcha,
		FailureCount:    record.FailureCount,
	}, nil
}

// RecordFailure counts one failed login and applies the hard-lock and
// CAPTCHA escalations when their thresholds are crossed.
func (s *Service) RecordFailure(ctx context.Context, identifier, ip string) error {
	key := models.NewAuthLockoutKey(identifier, ip).String()
	current, err := s.store.RecordFailure(ctx, key)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to record auth failure")
	}

	now := requestcontext.Now(ctx)

	shouldHardLock := current.ShouldHardLock(hardLockThreshold) && !current.IsLockedAt(now)
	shouldRequireCaptcha := current.ShouldRequireCaptcha(captchaThreshold) && !current.RequiresCaptcha

	if shouldHardLock {
		current.ApplyHardLock(hardLockDuration, now)
		observability.LogAudit(ctx, s.logger, s.publisher, audit.EventLockoutTriggered,
			"identifier", identifier,
			"ip", privacy.AnonymizeIP(ip),
			"daily_failures", strconv.Itoa(current.DailyFailures),
			"locked_until", current.LockedUntil.UTC().Format(time.RFC3339),
		)
		s.metrics.ObserveAuthLockout()
	}

	if shouldRequireCaptcha {
		current.MarkRequiresCaptcha()
	}

	if shouldHardLock || shouldRequireCaptcha {
		if err := s.store.Update(ctx, current); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update auth lockout record")
		}
	}

	return nil
}

// Clear removes the failure record after a successful login.
func (s *Service) Clear(ctx context.Context, identifier, ip string) error {
	key := models.NewAuthLockoutKey(identifier, ip).String()
	if err := s.store.Clear(ctx, key); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to clear auth failures")
	}
	s.logger.DebugContext(ctx, "login failures cleared", "ip_prefix", privacy.AnonymizeIP(ip))
	return nil
}

// retryAfterSeconds reports whole seconds until resetAt, never less than 1
// so a denied client always waits before retrying.
func retryAfterSeconds(now, resetAt time.Time) int {
	return max(int(resetAt.Sub(now).Seconds()), 1)
}
