package service

import (
	"context"

	dErrors "hushmcp/pkg/domain-errors"
	audit "hushmcp/pkg/platform/audit"
	"hushmcp/pkg/requestcontext"
)

// Logout revokes the presented session token until its natural expiry. The
// token is re-validated here rather than trusting the middleware, so the
// revocation entry always gets the jti and expiry that were actually signed.
// Revoking an already-revoked session is a no-op.
//
// Errors: CodeUnauthorized for an invalid token, CodeInternal when the
// registry write fails.
func (s *Service) Logout(ctx context.Context, tokenString string) error {
	ctx, span := tracer.Start(ctx, "session.logout")
	defer span.End()

	claims, err := s.jwt.ValidateToken(tokenString)
	if err != nil {
		return err
	}

	if s.devices != nil && claims.DeviceFingerprint != "" {
		current := s.devices.ComputeFingerprint(requestcontext.UserAgent(ctx))
		if _, drift := s.devices.CompareFingerprints(claims.DeviceFingerprint, current); drift {
			s.logger.WarnContext(ctx, "session closed from a different device than it was opened on",
				"user_id", claims.UserID,
				"session_id", claims.ID,
				"request_id", requestcontext.RequestID(ctx),
			)
		}
	}

	now := requestcontext.Now(ctx)
	if err := s.registry.Revoke(ctx, claims.ID, now, claims.ExpiresAt.Time); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke session")
	}
	s.metrics.ObserveCredentialRevoked("session")

	s.logger.InfoContext(ctx, "session closed",
		"user_id", claims.UserID,
		"session_id", claims.ID,
	)
	s.emitAudit(ctx, audit.EventSessionClosed, claims.UserID, claims.UserID, map[string]string{
		"session_id": claims.ID,
	})
	return nil
}
