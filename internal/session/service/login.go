package service

import (
	"context"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"hushmcp/internal/session/device"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	"hushmcp/pkg/email"
	audit "hushmcp/pkg/platform/audit"
	"hushmcp/pkg/platform/privacy"
	"hushmcp/pkg/requestcontext"
)

// dummyHash absorbs a bcrypt comparison when the account does not exist, so
// unknown emails cost the same as wrong passwords.
var dummyHash = []byte("$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy")

// LoginResult is returned to a successfully authenticated dashboard user.
// FirstName and LastName are display values derived from the email; the
// trust layer itself only ever keys on UserID.
type LoginResult struct {
	Token     string
	UserID    id.UserID
	Email     string
	FirstName string
	LastName  string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Login verifies credentials and mints a session token. Unknown emails and
// wrong passwords are indistinguishable in the response; both feed the
// lockout tracker.
//
// Errors: CodeInvalidInput for missing fields, CodeUnauthorized for rejected
// credentials, CodeInternal when token minting fails.
func (s *Service) Login(ctx context.Context, loginEmail, password string) (LoginResult, error) {
	ctx, span := tracer.Start(ctx, "session.login")
	defer span.End()

	loginEmail = strings.ToLower(strings.TrimSpace(loginEmail))
	if loginEmail == "" || password == "" {
		return LoginResult{}, dErrors.New(dErrors.CodeInvalidInput, "email and password are required")
	}

	clientIP := requestcontext.ClientIP(ctx)

	hash, known := s.accounts[loginEmail]
	if !known {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return LoginResult{}, s.rejectLogin(ctx, loginEmail, clientIP)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return LoginResult{}, s.rejectLogin(ctx, loginEmail, clientIP)
	}

	if s.attempts != nil {
		if err := s.attempts.Clear(ctx, loginEmail, clientIP); err != nil {
			s.logger.WarnContext(ctx, "failed to clear login failures",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
	}

	userID := DeriveUserID(loginEmail)
	rawUA := requestcontext.UserAgent(ctx)
	fingerprint := ""
	if s.devices != nil {
		fingerprint = s.devices.ComputeFingerprint(rawUA)
	}

	now := requestcontext.Now(ctx)
	token, claims, err := s.jwt.GenerateSessionToken(userID, loginEmail, fingerprint, now, s.ttl)
	if err != nil {
		return LoginResult{}, err
	}

	s.logger.InfoContext(ctx, "session opened",
		"user_id", userID.String(),
		"session_id", claims.ID,
	)
	s.emitAudit(ctx, audit.EventSessionOpened, userID.String(), userID.String(), map[string]string{
		"session_id": claims.ID,
		"device":     device.ParseUserAgent(rawUA),
		"expires_at": auditTimestamp(claims.ExpiresAt.Time),
	})

	firstName, lastName := email.DeriveNameFromEmail(loginEmail)
	return LoginResult{
		Token:     token,
		UserID:    userID,
		Email:     loginEmail,
		FirstName: firstName,
		LastName:  lastName,
		IssuedAt:  now,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// rejectLogin records the failure for the lockout tracker and returns the one
// credential error every rejection shares. The log line carries only the
// anonymized IP; failed-login emails do not belong in operational logs.
func (s *Service) rejectLogin(ctx context.Context, loginEmail, clientIP string) error {
	if s.attempts != nil {
		if err := s.attempts.RecordFailure(ctx, loginEmail, clientIP); err != nil {
			s.logger.WarnContext(ctx, "failed to record login failure",
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
		}
	}
	s.logger.WarnContext(ctx, "login rejected",
		"request_id", requestcontext.RequestID(ctx),
		"ip_prefix", privacy.AnonymizeIP(clientIP),
	)
	return dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")
}
