package testutil

import (
	"net/http"
	"time"

	id "hushmcp/pkg/domain"
	"hushmcp/pkg/requestcontext"
)

// WithSessionUser adds a session user ID to the request context.
// This simulates what the session middleware does for authenticated requests.
// Invalid user IDs are silently ignored.
func WithSessionUser(req *http.Request, userID string) *http.Request {
	if parsed, err := id.ParseUserID(userID); err == nil {
		return req.WithContext(requestcontext.WithUserID(req.Context(), parsed))
	}
	return req
}

// WithSession adds both the session user ID and the session JTI to the
// request context. This is the typical state for an authenticated management
// request. An invalid user ID is silently ignored.
func WithSession(req *http.Request, userID, jti string) *http.Request {
	ctx := req.Context()
	if parsed, err := id.ParseUserID(userID); err == nil {
		ctx = requestcontext.WithUserID(ctx, parsed)
	}
	if jti != "" {
		ctx = requestcontext.WithSessionJTI(ctx, jti)
	}
	return req.WithContext(ctx)
}

// WithRequestTime pins the request-scoped clock, as the request-time
// middleware would.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithClientMetadata adds client IP and User-Agent to the request context, as
// the metadata middleware would.
func WithClientMetadata(req *http.Request, clientIP, userAgent string) *http.Request {
	return req.WithContext(requestcontext.WithClientMetadata(req.Context(), clientIP, userAgent))
}
