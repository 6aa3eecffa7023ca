package middleware_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"hushmcp/internal/ratelimit/middleware"
	"hushmcp/internal/ratelimit/models"
	"hushmcp/pkg/testutil"
)

const testIP = "203.0.113.77"

type fakeRequestLimiter struct {
	result   *models.RateLimitResult
	err      error
	gotIP    string
	gotClass models.EndpointClass
	calls    int
}

func (f *fakeRequestLimiter) CheckIP(_ context.Context, ip string, class models.EndpointClass) (*models.RateLimitResult, error) {
	f.calls++
	f.gotIP = ip
	f.gotClass = class
	return f.result, f.err
}

type fakeAuthLimiter struct {
	result        *models.AuthRateLimitResult
	err           error
	gotIdentifier string
	gotIP         string
	calls         int
}

func (f *fakeAuthLimiter) Check(_ context.Context, identifier, ip string) (*models.AuthRateLimitResult, error) {
	f.calls++
	f.gotIdentifier = identifier
	f.gotIP = ip
	return f.result, f.err
}

func allowedResult() *models.RateLimitResult {
	return &models.RateLimitResult{
		Allowed:   true,
		Limit:     120,
		Remaining: 119,
		ResetAt:   time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC),
	}
}

func deniedResult() *models.RateLimitResult {
	return &models.RateLimitResult{
		Allowed:    false,
		Limit:      120,
		Remaining:  0,
		ResetAt:    time.Date(2025, 6, 1, 12, 1, 0, 0, time.UTC),
		RetryAfter: 37,
	}
}

type RateLimitMiddlewareSuite struct {
	suite.Suite
	logger *slog.Logger
}

func TestRateLimitMiddlewareSuite(t *testing.T) {
	suite.Run(t, new(RateLimitMiddlewareSuite))
}

func (s *RateLimitMiddlewareSuite) SetupTest() {
	s.logger = slog.New(slog.DiscardHandler)
}

func (s *RateLimitMiddlewareSuite) okNext() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func (s *RateLimitMiddlewareSuite) TestRateLimit() {
	s.Run("allowed request passes with budget headers", func() {
		limiter := &fakeRequestLimiter{result: allowedResult()}
		mw := middleware.New(limiter, nil, nil, s.logger)
		next, called := s.okNext()

		req := testutil.WithClientMetadata(testutil.NewRequest(s.T(), http.MethodGet, "/api/consent/active"), testIP, "agent/1.0")
		rr := testutil.DoRequest(mw.RateLimit(models.ClassManagement)(next), req)

		s.Equal(http.StatusOK, rr.Code)
		s.True(*called)
		s.Equal(testIP, limiter.gotIP)
		s.Equal(models.ClassManagement, limiter.gotClass)
		s.Equal("120", rr.Header().Get("X-RateLimit-Limit"))
		s.Equal("119", rr.Header().Get("X-RateLimit-Remaining"))
		s.Equal(strconv.FormatInt(allowedResult().ResetAt.Unix(), 10), rr.Header().Get("X-RateLimit-Reset"))
	})

	s.Run("denied request gets 429 with retry hint", func() {
		limiter := &fakeRequestLimiter{result: deniedResult()}
		mw := middleware.New(limiter, nil, nil, s.logger)
		next, called := s.okNext()

		req := testutil.WithClientMetadata(testutil.NewRequest(s.T(), http.MethodGet, "/api/agent/validate"), testIP, "agent/1.0")
		rr := testutil.DoRequest(mw.RateLimit(models.ClassAgent)(next), req)

		s.Equal(http.StatusTooManyRequests, rr.Code)
		s.False(*called)
		s.Equal("37", rr.Header().Get("Retry-After"))
		s.Equal("0", rr.Header().Get("X-RateLimit-Remaining"))
		testutil.AssertErrorCode(s.T(), rr, "rate_limited")
	})

	s.Run("limiter failure fails open", func() {
		limiter := &fakeRequestLimiter{err: errors.New("store down")}
		mw := middleware.New(limiter, nil, nil, s.logger)
		next, called := s.okNext()

		req := testutil.WithClientMetadata(testutil.NewRequest(s.T(), http.MethodGet, "/api/agent/validate"), testIP, "agent/1.0")
		rr := testutil.DoRequest(mw.RateLimit(models.ClassAgent)(next), req)

		s.Equal(http.StatusOK, rr.Code)
		s.True(*called)
	})

	s.Run("disabled middleware skips the check", func() {
		limiter := &fakeRequestLimiter{result: deniedResult()}
		mw := middleware.New(limiter, nil, nil, s.logger, middleware.WithDisabled(true))
		next, called := s.okNext()

		req := testutil.WithClientMetadata(testutil.NewRequest(s.T(), http.MethodGet, "/api/agent/validate"), testIP, "agent/1.0")
		rr := testutil.DoRequest(mw.RateLimit(models.ClassAgent)(next), req)

		s.Equal(http.StatusOK, rr.Code)
		s.True(*called)
		s.Zero(limiter.calls)
	})
}

func (s *RateLimitMiddlewareSuite) TestRateLimitAuth() {
	allowed := &models.AuthRateLimitResult{
		RateLimitResult: models.RateLimitResult{Allowed: true, Limit: 5, Remaining: 5, ResetAt: time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC)},
	}

	s.Run("identifier is sniffed and normalized like the login path", func() {
		limiter := &fakeAuthLimiter{result: allowed}
		mw := middleware.New(nil, limiter, nil, s.logger)
		next, _ := s.okNext()

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/session", map[string]string{
			"email":    "  OPS@Example.com ",
			"password": "hunter2",
		})
		req = testutil.WithClientMetadata(req, testIP, "Mozilla/5.0")
		rr := testutil.DoRequest(mw.RateLimitAuth()(next), req)

		s.Equal(http.StatusOK, rr.Code)
		s.Equal("ops@example.com", limiter.gotIdentifier)
		s.Equal(testIP, limiter.gotIP)
	})

	s.Run("body is restored for the handler", func() {
		limiter := &fakeAuthLimiter{result: allowed}
		mw := middleware.New(nil, limiter, nil, s.logger)

		var seen struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			body, err := io.ReadAll(r.Body)
			s.Require().NoError(err)
			s.Require().NoError(json.Unmarshal(body, &seen))
			w.WriteHeader(http.StatusOK)
		})

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/session", map[string]string{
			"email":    "ops@example.com",
			"password": "hunter2",
		})
		req = testutil.WithClientMetadata(req, testIP, "Mozilla/5.0")
		rr := testutil.DoRequest(mw.RateLimitAuth()(next), req)

		s.Equal(http.StatusOK, rr.Code)
		s.Equal("ops@example.com", seen.Email)
		s.Equal("hunter2", seen.Password)
	})

	s.Run("lockout denial renders the captcha body", func() {
		limiter := &fakeAuthLimiter{result: &models.AuthRateLimitResult{
			RateLimitResult: models.RateLimitResult{Allowed: false, Limit: 5, ResetAt: time.Date(2025, 6, 1, 12, 15, 0, 0, time.UTC), RetryAfter: 540},
			RequiresCaptcha: true,
			FailureCount:    12,
		}}
		mw := middleware.New(nil, limiter, nil, s.logger)
		next, called := s.okNext()

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/session", map[string]string{"email": "ops@example.com", "password": "wrong"})
		req = testutil.WithClientMetadata(req, testIP, "Mozilla/5.0")
		rr := testutil.DoRequest(mw.RateLimitAuth()(next), req)

		s.Equal(http.StatusTooManyRequests, rr.Code)
		s.False(*called)
		s.Equal("540", rr.Header().Get("Retry-After"))

		var body map[string]any
		s.Require().NoError(json.Unmarshal(rr.Body.Bytes(), &body))
		s.Equal("rate_limited", body["error"])
		s.Equal(true, body["requires_captcha"])
		s.Equal(float64(12), body["failure_count"])
		s.Equal(float64(540), body["retry_after"])
	})

	s.Run("lockout stays on when class limits are disabled", func() {
		limiter := &fakeAuthLimiter{result: &models.AuthRateLimitResult{
			RateLimitResult: models.RateLimitResult{Allowed: false, RetryAfter: 60},
		}}
		mw := middleware.New(nil, limiter, nil, s.logger, middleware.WithDisabled(true))
		next, called := s.okNext()

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/session", map[string]string{"email": "ops@example.com", "password": "wrong"})
		req = testutil.WithClientMetadata(req, testIP, "Mozilla/5.0")
		rr := testutil.DoRequest(mw.RateLimitAuth()(next), req)

		s.Equal(http.StatusTooManyRequests, rr.Code)
		s.False(*called)
		s.Equal(1, limiter.calls)
	})

	s.Run("limiter failure fails open", func() {
		limiter := &fakeAuthLimiter{err: errors.New("store down")}
		mw := middleware.New(nil, limiter, nil, s.logger)
		next, called := s.okNext()

		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/api/session", map[string]string{"email": "ops@example.com", "password": "hunter2"})
		req = testutil.WithClientMetadata(req, testIP, "Mozilla/5.0")
		rr := testutil.DoRequest(mw.RateLimitAuth()(next), req)

		s.Equal(http.StatusOK, rr.Code)
		s.True(*called)
	})

	s.Run("unparseable body still checks by address", func() {
		limiter := &fakeAuthLimiter{result: allowed}
		mw := middleware.New(nil, limiter, nil, s.logger)
		next, _ := s.okNext()

		req := testutil.NewRequestWithBody(s.T(), http.MethodPost, "/api/session", "{nope")
		req = testutil.WithClientMetadata(req, testIP, "Mozilla/5.0")
		testutil.DoRequest(mw.RateLimitAuth()(next), req)

		s.Equal(1, limiter.calls)
		s.Empty(limiter.gotIdentifier)
	})
}
