package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"hushmcp/internal/credential"
	"hushmcp/internal/trust"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	"hushmcp/pkg/requestcontext"
)

// VerifyTrustLink checks a wire link against the expected scope and reports
// the outcome. Checks run in the same fixed order as token validation, minus
// the user check: structure, signature, expiry, revocation, scope.
//
// Verification is self-contained. The backing token bounded the link at
// creation and is not consulted again; revoking it later does not recall
// links already minted from it. Only revoking the link itself does.
func (s *Service) VerifyTrustLink(
	ctx context.Context,
	wire string,
	expectedScope id.ConsentScope,
) (trust.VerificationResult, error) {
	ctx, span := tracer.Start(ctx, "trust.verify_link")
	defer span.End()
	span.SetAttributes(attribute.String("trust.expected_scope", expectedScope.String()))

	link, signingInput, err := trust.ParseLink(wire)
	if err != nil {
		return s.deny(ctx, span, nil, id.ReasonMalformedToken), nil
	}
	if !credential.SignatureValid(s.secret, signingInput, link.Signature) {
		return s.deny(ctx, span, nil, id.ReasonInvalidSignature), nil
	}

	now := requestcontext.Now(ctx)
	if now.After(link.ExpiresAt) {
		return s.deny(ctx, span, &link, id.ReasonTokenExpired), nil
	}

	revoked, err := s.registry.IsRevoked(ctx, link.LinkID.String(), now)
	if err != nil {
		s.logger.ErrorContext(ctx, "revocation check failed",
			"link_id", link.LinkID.String(),
			"error", err,
		)
		return trust.VerificationResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "check revocation")
	}
	if revoked {
		return s.deny(ctx, span, &link, id.ReasonRevoked), nil
	}

	if !link.Scope.Matches(expectedScope) {
		return s.deny(ctx, span, &link, id.ReasonScopeMismatch), nil
	}

	span.SetAttributes(attribute.String("trust.outcome", "valid"))
	s.metrics.ObserveLinkVerification("valid")
	s.logger.DebugContext(ctx, "trust link valid",
		"link_id", link.LinkID.String(),
		"from_agent", link.FromAgent.String(),
		"to_agent", link.ToAgent.String(),
		"scope", link.Scope.String(),
	)
	return trust.Granted(&link), nil
}

func (s *Service) deny(ctx context.Context, span trace.Span, link *trust.TrustLink, reason id.ValidationReason) trust.VerificationResult {
	span.SetAttributes(attribute.String("trust.outcome", reason.String()))
	s.metrics.ObserveLinkVerification(reason.String())

	logAttrs := []any{"reason", reason.String()}
	if link != nil {
		logAttrs = append(logAttrs,
			"link_id", link.LinkID.String(),
			"from_agent", link.FromAgent.String(),
			"to_agent", link.ToAgent.String(),
		)
	}
	s.logger.DebugContext(ctx, "trust link denied", logAttrs...)
	return trust.Denied(reason)
}
