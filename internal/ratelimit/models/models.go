// Package models defines the rate limiting domain: endpoint classes, check
// results, and the login lockout record with its state transitions. Stores
// are pure I/O; every threshold decision lives on these types or in the
// services that call them.
package models

import (
	"time"
)

// EndpointClass categorizes endpoints for differentiated rate limiting.
type EndpointClass string

const (
	// ClassAuth covers the login exchange. Tight per-IP budget on top of the
	// per-identifier lockout.
	ClassAuth EndpointClass = "auth"
	// ClassAgent covers the token-credentialed agent endpoints: validate,
	// trust create/verify, vault encrypt/decrypt.
	ClassAgent EndpointClass = "agent"
	// ClassManagement covers the session-guarded dashboard endpoints.
	ClassManagement EndpointClass = "management"
)

// IsValid checks if the endpoint class is one of the supported enum values.
func (c EndpointClass) IsValid() bool {
	switch c {
	case ClassAuth, ClassAgent, ClassManagement:
		return true
	}
	return false
}

func (c EndpointClass) String() string { return string(c) }

// RateLimitResult represents the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
	// RetryAfter is seconds until the caller may retry; only set when the
	// request is not allowed.
	RetryAfter int
}

// AuthRateLimitResult extends a rate limit outcome with lockout state the
// login surface needs to render.
type AuthRateLimitResult struct {
	RateLimitResult
	RequiresCaptcha bool
	FailureCount    int
}

// AuthLockout tracks login failures for one identifier/IP pair. FailureCount
// covers the current attempt window; DailyFailures accumulates across windows
// and drives the hard lock and CAPTCHA escalations.
type AuthLockout struct {
	Identifier      string
	FailureCount    int
	DailyFailures   int
	LockedUntil     *time.Time
	LastFailureAt   time.Time
	RequiresCaptcha bool
}

// IsLockedAt reports whether a hard lock is in force at the given instant.
func (l *AuthLockout) IsLockedAt(now time.Time) bool {
	if l.LockedUntil == nil {
		return false
	}
	return now.Before(*l.LockedUntil)
}

// FailureWindowActiveAt reports whether the last failure is recent enough for
// FailureCount to still count against the attempt window. Stale records never
// block; the janitor removes them eventually.
func (l *AuthLockout) FailureWindowActiveAt(now time.Time, window time.Duration) bool {
	return now.Sub(l.LastFailureAt) < window
}

// IsAttemptLimitReached reports whether the window failure count has hit the
// attempt budget.
func (l *AuthLockout) IsAttemptLimitReached(limit int) bool {
	return l.FailureCount >= limit
}

// RemainingAttempts reports how many failures remain before the attempt
// budget is exhausted.
func (l *AuthLockout) RemainingAttempts(limit int) int {
	return max(limit-l.FailureCount, 0)
}

// ShouldHardLock reports whether accumulated daily failures warrant a hard
// lock. Callers must check IsLockedAt separately; an active lock is not
// re-applied.
func (l *AuthLockout) ShouldHardLock(dailyThreshold int) bool {
	return l.DailyFailures >= dailyThreshold
}

// ApplyHardLock sets the lock expiry. The caller persists the record.
func (l *AuthLockout) ApplyHardLock(duration time.Duration, now time.Time) {
	until := now.Add(duration)
	l.LockedUntil = &until
}

// ShouldRequireCaptcha reports whether daily failures have crossed the
// CAPTCHA escalation threshold.
func (l *AuthLockout) ShouldRequireCaptcha(dailyThreshold int) bool {
	return l.DailyFailures >= dailyThreshold
}

// MarkRequiresCaptcha latches the CAPTCHA requirement. It stays set until the
// record is cleared by a successful login or purged by the janitor.
func (l *AuthLockout) MarkRequiresCaptcha() {
	l.RequiresCaptcha = true
}
