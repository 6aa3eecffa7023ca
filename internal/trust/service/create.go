package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"hushmcp/internal/trust"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	audit "hushmcp/pkg/platform/audit"
	"hushmcp/pkg/requestcontext"
)

// CreateTrustLink mints a signed delegation from the backing token's agent to
// toAgent. The backing token is validated for the delegated scope itself, so
// a link can never grant what the token would not: a structurally valid token
// whose scope does not cover the delegation fails with
// CodeDelegationScopeExceeded, and every other rejection of the backing token
// surfaces as CodeInvalidConsent.
//
// A zero ttl delegates the rest of the backing window, capped at the
// configured default. An explicit ttl must fit inside the backing window or
// the call fails with CodeDelegationWindowExceeded; it is never clamped
// silently.
func (s *Service) CreateTrustLink(
	ctx context.Context,
	backingWire string,
	toAgent id.AgentID,
	scope id.ConsentScope,
	ttl time.Duration,
) (trust.TrustLink, string, error) {
	ctx, span := tracer.Start(ctx, "trust.create_link")
	defer span.End()
	span.SetAttributes(
		attribute.String("trust.to_agent", toAgent.String()),
		attribute.String("trust.scope", scope.String()),
	)

	if toAgent.IsZero() {
		return trust.TrustLink{}, "", dErrors.New(dErrors.CodeInvalidInput, "delegate agent is required")
	}
	if !scope.IsValid() {
		return trust.TrustLink{}, "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown scope %q", scope.String())
	}
	if ttl < 0 {
		return trust.TrustLink{}, "", dErrors.New(dErrors.CodeInvalidInput, "ttl cannot be negative")
	}

	result, err := s.tokens.ValidateToken(ctx, backingWire, scope)
	if err != nil {
		return trust.TrustLink{}, "", err
	}
	if !result.Valid {
		if result.Reason == id.ReasonScopeMismatch {
			return trust.TrustLink{}, "", dErrors.Newf(dErrors.CodeDelegationScopeExceeded,
				"backing token does not cover scope %q", scope.String())
		}
		return trust.TrustLink{}, "", dErrors.Newf(dErrors.CodeInvalidConsent,
			"backing token rejected: %s", result.Reason.String())
	}
	backing := result.Token

	now := requestcontext.Now(ctx).UTC().Truncate(time.Millisecond)
	expiresAt := backing.ExpiresAt
	if ttl == 0 {
		if capped := now.Add(s.defaultTTL); capped.Before(expiresAt) {
			expiresAt = capped
		}
	} else {
		expiresAt = now.Add(ttl).Truncate(time.Millisecond)
		if expiresAt.After(backing.ExpiresAt) {
			return trust.TrustLink{}, "", dErrors.New(dErrors.CodeDelegationWindowExceeded,
				"link expiry exceeds the backing token window")
		}
	}

	link := trust.TrustLink{
		FromAgent: backing.AgentID,
		ToAgent:   toAgent,
		Scope:     scope,
		IssuedAt:  now,
		ExpiresAt: expiresAt,
		LinkID:    id.NewLinkID(),
	}
	link.Signature = trust.SignLink(s.secret, link)
	wire := trust.EncodeLink(link)

	span.SetAttributes(attribute.String("trust.link_id", link.LinkID.String()))
	s.metrics.ObserveLinkCreated()
	s.emitAudit(ctx, audit.EventLinkCreated, backing.AgentID.String(), backing.UserID.String(), map[string]string{
		"link_id":    link.LinkID.String(),
		"to_agent":   toAgent.String(),
		"scope":      scope.String(),
		"expires_at": auditTimestamp(expiresAt),
	})
	s.logger.InfoContext(ctx, "trust link created",
		"link_id", link.LinkID.String(),
		"from_agent", link.FromAgent.String(),
		"to_agent", toAgent.String(),
		"scope", scope.String(),
	)
	return link, wire, nil
}
