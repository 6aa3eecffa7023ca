package service

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"hushmcp/internal/consent"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	audit "hushmcp/pkg/platform/audit"
	"hushmcp/pkg/platform/sentinel"
	"hushmcp/pkg/requestcontext"
)

// IssueToken mints a signed consent token: userID grants agentID the given
// scope until now+ttl. Issuance is stateless; nothing is persisted until a
// management grant records it.
func (s *Service) IssueToken(
	ctx context.Context,
	userID id.UserID,
	agentID id.AgentID,
	scope id.ConsentScope,
	ttl time.Duration,
) (consent.ConsentToken, string, error) {
	ctx, span := tracer.Start(ctx, "consent.issue_token")
	defer span.End()
	span.SetAttributes(
		attribute.String("consent.agent_id", agentID.String()),
		attribute.String("consent.scope", scope.String()),
	)

	if userID.IsZero() || agentID.IsZero() {
		return consent.ConsentToken{}, "", dErrors.New(dErrors.CodeInvalidInput, "user and agent are required")
	}
	if !scope.IsValid() {
		return consent.ConsentToken{}, "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown scope %q", scope)
	}
	if ttl <= 0 {
		return consent.ConsentToken{}, "", dErrors.New(dErrors.CodeInvalidInput, "ttl must be positive")
	}

	// Truncated to the millisecond so the struct always matches its
	// canonical encoding.
	now := requestcontext.Now(ctx).UTC().Truncate(time.Millisecond)
	token := consent.ConsentToken{
		UserID:    userID,
		AgentID:   agentID,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl).Truncate(time.Millisecond),
		TokenID:   id.NewTokenID(),
	}
	token.Signature = consent.SignToken(s.secret, token)
	wire := consent.EncodeToken(token)

	s.metrics.ObserveTokenIssued()
	s.emitAudit(ctx, audit.EventTokenIssued, agentID.String(), userID.String(), map[string]string{
		"scope":      scope.String(),
		"token_id":   token.TokenID.String(),
		"expires_at": auditTimestamp(token.ExpiresAt),
	})
	s.logger.InfoContext(ctx, "consent token issued",
		"user_id", userID.String(),
		"agent_id", agentID.String(),
		"scope", scope.String(),
		"token_id", token.TokenID.String(),
	)
	return token, wire, nil
}

// RevokeToken revokes a token by id, effective immediately and permanent.
// Idempotent: revoking an already revoked or already expired token is a
// no-op success. expiresAt is the token's natural expiry, after which the
// registry entry stops carrying information and may be purged.
func (s *Service) RevokeToken(ctx context.Context, tokenID id.TokenID, expiresAt time.Time) error {
	return s.revokeToken(ctx, tokenID, expiresAt, "", "")
}

func (s *Service) revokeToken(ctx context.Context, tokenID id.TokenID, expiresAt time.Time, actor, subject string) error {
	ctx, span := tracer.Start(ctx, "consent.revoke_token")
	defer span.End()

	if tokenID.IsZero() {
		return dErrors.New(dErrors.CodeInvalidInput, "token id is required")
	}

	now := requestcontext.Now(ctx)
	if err := s.registry.Revoke(ctx, tokenID.String(), now, expiresAt); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return dErrors.Wrap(err, dErrors.CodeInvalidInput, "token expiry is required for revocation")
		}
		s.logger.ErrorContext(ctx, "failed to revoke token",
			"token_id", tokenID.String(),
			"error", err,
		)
		return dErrors.Wrap(err, dErrors.CodeInternal, "revoke token")
	}

	s.metrics.ObserveCredentialRevoked("token")
	s.emitAudit(ctx, audit.EventTokenRevoked, actor, subject, map[string]string{
		"token_id":   tokenID.String(),
		"expires_at": auditTimestamp(expiresAt),
	})
	s.logger.InfoContext(ctx, "consent token revoked", "token_id", tokenID.String())
	return nil
}
