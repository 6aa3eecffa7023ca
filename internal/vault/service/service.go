// Package service implements vault access control: agents present a consent
// token to seal or open records, and the data-subject-rights operations
// (portability export, right to be forgotten) run on behalf of the session
// user.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"hushmcp/internal/consent"
	consentservice "hushmcp/internal/consent/service"
	"hushmcp/internal/platform/metrics"
	"hushmcp/internal/vault"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	audit "hushmcp/pkg/platform/audit"
)

var tracer = otel.Tracer("hushmcp/internal/vault")

// maxCategoryLen bounds the caller-chosen category shelf name.
const maxCategoryLen = 64

// TokenValidator is the slice of the consent service that gates every
// agent-facing vault operation. The record's scope is passed as the expected
// scope, so the validator's own scope check decides whether the token covers
// the data being touched.
type TokenValidator interface {
	ValidateToken(ctx context.Context, wire string, expectedScope id.ConsentScope, opts ...consentservice.ValidateOption) (consent.ValidationResult, error)
}

// RevocationRegistry is the slice of the shared revocation registry the vault
// service uses to kill outstanding tokens during a purge.
type RevocationRegistry interface {
	Revoke(ctx context.Context, credentialID string, revokedAt, expiresAt time.Time) error
}

// AuditPublisher emits audit events. Fire-and-forget; implementations must
// never block the caller.
type AuditPublisher interface {
	Publish(ctx context.Context, event audit.Event)
}

// Service seals and opens vault records and executes data-subject-rights
// requests. Keys never leave it: stores see only ciphertext, and every record
// key is derived per (user, scope) from the master vault key.
type Service struct {
	master    []byte
	tokens    TokenValidator
	store     vault.Store
	consents  consent.Records
	registry  RevocationRegistry
	publisher AuditPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New wires a vault service. The master key's length is enforced at config
// load. publisher and metrics may be nil in tests.
func New(
	master []byte,
	tokens TokenValidator,
	store vault.Store,
	consents consent.Records,
	registry RevocationRegistry,
	publisher AuditPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		master:    master,
		tokens:    tokens,
		store:     store,
		consents:  consents,
		registry:  registry,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// authorize vets the presented token against the declared scope. A denial is
// returned as a coded error: scope mismatch means the token is fine but does
// not cover this data, anything else means the token itself was rejected.
func (s *Service) authorize(ctx context.Context, op, tokenWire string, scope id.ConsentScope) (*consent.ConsentToken, error) {
	result, err := s.tokens.ValidateToken(ctx, tokenWire, scope)
	if err != nil {
		return nil, err
	}
	if !result.Valid {
		s.metrics.ObserveVaultOperation(op, "denied")
		s.logger.DebugContext(ctx, "vault access denied",
			"op", op,
			"scope", scope.String(),
			"reason", result.Reason.String(),
		)
		if result.Reason == id.ReasonScopeMismatch {
			return nil, dErrors.Newf(dErrors.CodeMissingConsent, "token does not cover scope %q", scope.String())
		}
		return nil, dErrors.Newf(dErrors.CodeInvalidConsent, "consent token rejected: %s", result.Reason.String())
	}
	return result.Token, nil
}

func validateCategory(category string) error {
	if category == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "category is required")
	}
	if len(category) > maxCategoryLen {
		return dErrors.Newf(dErrors.CodeInvalidInput, "category exceeds %d characters", maxCategoryLen)
	}
	return nil
}

func (s *Service) emitAudit(ctx context.Context, name audit.EventName, actor, subject string, detail map[string]string) {
	if s.publisher == nil {
		return
	}
	s.publisher.Publish(ctx, audit.Event{
		Name:    name,
		Actor:   actor,
		Subject: subject,
		Detail:  detail,
	})
}
