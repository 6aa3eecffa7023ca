package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	"hushmcp/pkg/platform/httputil"
	"hushmcp/pkg/requestcontext"
)

// SessionValidator defines the interface for validating session JWTs.
type SessionValidator interface {
	ValidateSession(tokenString string) (*SessionClaims, error)
}

// RevocationChecker defines the interface for checking whether a session has
// been revoked (logout).
type RevocationChecker interface {
	IsRevoked(ctx context.Context, credentialID string, now time.Time) (bool, error)
}

// SessionClaims represents the claims we expect from the session validator.
type SessionClaims struct {
	UserID string // domain user the session belongs to
	Email  string
	JTI    string // session id for revocation tracking
}

// RequireSession guards management endpoints. It validates the bearer session
// JWT, rejects revoked sessions, and puts the session user and JTI on the
// context. Agent-facing endpoints never use it; consent tokens are their
// credential.
func RequireSession(validator SessionValidator, revocations RevocationChecker, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			const bearerPrefix = "Bearer "
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
			if !ok || token == "" {
				logger.WarnContext(ctx, "unauthorized access - missing session token",
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateSession(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid session token",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired session"))
				return
			}

			if revocations != nil {
				if claims.JTI == "" {
					logger.WarnContext(ctx, "unauthorized access - session token missing jti",
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired session"))
					return
				}
				revoked, err := revocations.IsRevoked(ctx, claims.JTI, requestcontext.Now(ctx))
				if err != nil {
					logger.ErrorContext(ctx, "failed to check session revocation",
						"error", err,
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "Failed to validate session"))
					return
				}
				if revoked {
					logger.WarnContext(ctx, "unauthorized access - session revoked",
						"jti", claims.JTI,
						"request_id", requestID,
					)
					httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Session has been revoked"))
					return
				}
			}

			userID, err := id.ParseUserID(claims.UserID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed session subject",
					"error", err,
					"request_id", requestID,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Invalid or expired session"))
				return
			}

			ctx = requestcontext.WithUserID(ctx, userID)
			ctx = requestcontext.WithSessionJTI(ctx, claims.JTI)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
