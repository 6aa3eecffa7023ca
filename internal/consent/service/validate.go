package service

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"hushmcp/internal/consent"
	"hushmcp/internal/credential"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	audit "hushmcp/pkg/platform/audit"
	"hushmcp/pkg/requestcontext"
)

type validateOptions struct {
	expectedUser id.UserID
}

// ValidateOption tunes a single validation call.
type ValidateOption func(*validateOptions)

// WithExpectedUser additionally requires the token to have been granted by
// the given user. Used when the caller already knows whose data is about to
// be touched.
func WithExpectedUser(userID id.UserID) ValidateOption {
	return func(o *validateOptions) {
		o.expectedUser = userID
	}
}

// ValidateToken checks a wire token against the expected scope and reports
// the outcome. Checks run in a fixed order and the first failure wins:
// structure, signature, expiry, revocation, scope, then user. A denial is a
// successful call with Valid false; the error return is reserved for
// infrastructure faults, which fail closed.
func (s *Service) ValidateToken(
	ctx context.Context,
	wire string,
	expectedScope id.ConsentScope,
	opts ...ValidateOption,
) (consent.ValidationResult, error) {
	ctx, span := tracer.Start(ctx, "consent.validate_token")
	defer span.End()
	span.SetAttributes(attribute.String("consent.expected_scope", expectedScope.String()))

	var options validateOptions
	for _, opt := range opts {
		opt(&options)
	}

	// Identities from an unverified token never reach the audit trail, so
	// the first two denials carry no token.
	token, signingInput, err := consent.ParseToken(wire)
	if err != nil {
		return s.deny(ctx, span, nil, id.ReasonMalformedToken), nil
	}
	if !credential.SignatureValid(s.secret, signingInput, token.Signature) {
		return s.deny(ctx, span, nil, id.ReasonInvalidSignature), nil
	}

	now := requestcontext.Now(ctx)
	if now.After(token.ExpiresAt) {
		return s.deny(ctx, span, &token, id.ReasonTokenExpired), nil
	}

	revoked, err := s.registry.IsRevoked(ctx, token.TokenID.String(), now)
	if err != nil {
		s.logger.ErrorContext(ctx, "revocation check failed",
			"token_id", token.TokenID.String(),
			"error", err,
		)
		return consent.ValidationResult{}, dErrors.Wrap(err, dErrors.CodeInternal, "check revocation")
	}
	if revoked {
		return s.deny(ctx, span, &token, id.ReasonRevoked), nil
	}

	if !token.Scope.Matches(expectedScope) {
		return s.deny(ctx, span, &token, id.ReasonScopeMismatch), nil
	}
	if !options.expectedUser.IsZero() && token.UserID != options.expectedUser {
		return s.deny(ctx, span, &token, id.ReasonUserMismatch), nil
	}

	span.SetAttributes(attribute.String("consent.outcome", "valid"))
	s.metrics.ObserveTokenValidation("valid")
	s.emitAudit(ctx, audit.EventTokenChecked, token.AgentID.String(), token.UserID.String(), map[string]string{
		"scope":    token.Scope.String(),
		"token_id": token.TokenID.String(),
	})
	s.logger.DebugContext(ctx, "consent token valid",
		"token_id", token.TokenID.String(),
		"agent_id", token.AgentID.String(),
		"scope", token.Scope.String(),
	)
	return consent.Granted(&token), nil
}

func (s *Service) deny(ctx context.Context, span trace.Span, token *consent.ConsentToken, reason id.ValidationReason) consent.ValidationResult {
	span.SetAttributes(attribute.String("consent.outcome", reason.String()))
	s.metrics.ObserveTokenValidation(reason.String())

	detail := map[string]string{"reason": reason.String()}
	var actor, subject string
	logAttrs := []any{"reason", reason.String()}
	if token != nil {
		actor = token.AgentID.String()
		subject = token.UserID.String()
		detail["token_id"] = token.TokenID.String()
		detail["scope"] = token.Scope.String()
		logAttrs = append(logAttrs, "token_id", token.TokenID.String(), "agent_id", token.AgentID.String())
	}
	s.emitAudit(ctx, audit.EventTokenDenied, actor, subject, detail)
	s.logger.DebugContext(ctx, "consent token denied", logAttrs...)
	return consent.Denied(reason)
}
