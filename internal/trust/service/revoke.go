package service

import (
	"context"
	"errors"
	"time"

	"hushmcp/internal/credential"
	"hushmcp/internal/trust"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	audit "hushmcp/pkg/platform/audit"
	"hushmcp/pkg/platform/sentinel"
	"hushmcp/pkg/requestcontext"
)

// RevokeTrustLink revokes a link by id, effective immediately and permanent.
// Idempotent: revoking an already revoked or already expired link is a no-op
// success. expiresAt is the link's natural expiry, after which the registry
// entry stops carrying information and may be purged.
func (s *Service) RevokeTrustLink(ctx context.Context, linkID id.LinkID, expiresAt time.Time) error {
	return s.revokeLink(ctx, linkID, expiresAt, "", "")
}

// RevokePresentedLink revokes the link carried by a wire string. Possession
// of the signed link is the authorization: the signature must verify before
// the registry is touched, so a fabricated wire naming a real link id cannot
// kill that link.
func (s *Service) RevokePresentedLink(ctx context.Context, wire string) error {
	ctx, span := tracer.Start(ctx, "trust.revoke_presented")
	defer span.End()

	link, signingInput, err := trust.ParseLink(wire)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInvalidInput, "parse trust link")
	}
	if !credential.SignatureValid(s.secret, signingInput, link.Signature) {
		return dErrors.New(dErrors.CodeForbidden, "trust link signature is invalid")
	}
	return s.revokeLink(ctx, link.LinkID, link.ExpiresAt, link.FromAgent.String(), link.ToAgent.String())
}

func (s *Service) revokeLink(ctx context.Context, linkID id.LinkID, expiresAt time.Time, actor, subject string) error {
	ctx, span := tracer.Start(ctx, "trust.revoke_link")
	defer span.End()

	if linkID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "link id is required")
	}

	now := requestcontext.Now(ctx)
	if err := s.registry.Revoke(ctx, linkID.String(), now, expiresAt); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "link expiry is required for revocation")
		}
		s.logger.ErrorContext(ctx, "failed to revoke link",
			"link_id", linkID.String(),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke link")
	}

	s.metrics.ObserveCredentialRevoked("link")
	s.emitAudit(ctx, audit.EventLinkRevoked, actor, subject, map[string]string{
		"link_id":    linkID.String(),
		"expires_at": auditTimestamp(expiresAt),
	})
	s.logger.InfoContext(ctx, "trust link revoked", "link_id", linkID.String())
	return nil
}
