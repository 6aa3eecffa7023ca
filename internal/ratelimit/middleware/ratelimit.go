// Package middleware enforces rate limits at the HTTP boundary: per-IP
// budgets by endpoint class, and the login lockout on the session endpoint.
package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"hushmcp/internal/platform/metrics"
	"hushmcp/internal/ratelimit/models"
	dErrors "hushmcp/pkg/domain-errors"
	"hushmcp/pkg/platform/httputil"
	"hushmcp/pkg/platform/privacy"
	"hushmcp/pkg/requestcontext"
)

// RequestLimiter checks per-IP budgets by endpoint class.
type RequestLimiter interface {
	CheckIP(ctx context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error)
}

// AuthLimiter checks the login lockout state for an identifier/IP pair.
type AuthLimiter interface {
	Check(ctx context.Context, identifier, ip string) (*models.AuthRateLimitResult, error)
}

type Middleware struct {
	requests RequestLimiter
	auth     AuthLimiter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithDisabled turns off the per-IP class limits, for dev mode and load
// tests. The login lockout stays on regardless: credential stuffing is a
// threat in every environment.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(requests RequestLimiter, auth AuthLimiter, m *metrics.Metrics, logger *slog.Logger, opts ...Option) *Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	mw := &Middleware{
		requests: requests,
		auth:     auth,
		metrics:  m,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(mw)
	}
	if mw.disabled {
		logger.Info("per-IP rate limiting disabled")
	}
	return mw
}

// RateLimit limits requests per client IP for one endpoint class. Limiter
// failures fail open: an unavailable counter backend must not take the API
// down with it.
func (m *Middleware) RateLimit(class models.EndpointClass) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if m.disabled {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)

			result, err := m.requests.CheckIP(ctx, ip, class)
			if err != nil {
				m.logger.ErrorContext(ctx, "rate limit check failed",
					"error", err, "ip_prefix", privacy.AnonymizeIP(ip), "endpoint_class", class.String())
				next.ServeHTTP(w, r)
				return
			}

			// Budget headers go out on every response, allowed or not.
			addRateLimitHeaders(w, result)

			if !result.Allowed {
				m.metrics.ObserveRateLimited(class.String())
				w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
				httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited,
					"Too many requests from this address. Please try again later."))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitAuth guards the login endpoint with the per-identifier lockout.
// It runs even when the class limits are disabled. The identifier is sniffed
// from the request body so the check happens before any password hashing.
func (m *Middleware) RateLimitAuth() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ip := requestcontext.ClientIP(ctx)
			identifier := sniffLoginIdentifier(r)

			result, err := m.auth.Check(ctx, identifier, ip)
			if err != nil {
				m.logger.ErrorContext(ctx, "auth lockout check failed",
					"error", err, "ip_prefix", privacy.AnonymizeIP(ip))
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, &result.RateLimitResult)

			if !result.Allowed {
				m.metrics.ObserveRateLimited(models.ClassAuth.String())
				writeAuthLockout(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// sniffLoginIdentifier extracts the email from a login body without
// consuming it. Normalization must match the session service's, or the
// lockout the middleware checks and the one the service feeds would use
// different keys.
func sniffLoginIdentifier(r *http.Request) string {
	if r.Method != http.MethodPost || r.Body == nil || r.ContentLength == 0 {
		return ""
	}
	bodyBytes, err := io.ReadAll(r.Body)
	r.Body = io.NopCloser(bytes.NewReader(bodyBytes))
	if err != nil || len(bodyBytes) == 0 {
		return ""
	}

	var payload struct {
		Email string `json:"email"`
	}
	if jsonErr := json.Unmarshal(bodyBytes, &payload); jsonErr != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(payload.Email))
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

// writeAuthLockout keeps its own body shape: the CAPTCHA flag and failure
// count have no home in the shared error envelope, and the dashboard login
// form renders them.
func writeAuthLockout(w http.ResponseWriter, result *models.AuthRateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
		"error":            string(dErrors.CodeRateLimited),
		"message":          "Too many authentication attempts. Please try again later.",
		"retry_after":      result.RetryAfter,
		"requires_captcha": result.RequiresCaptcha,
		"failure_count":    result.FailureCount,
	})
}
