// Package service implements agent-to-agent delegation: creating trust links
// backed by a consent token, verifying presented links, and revoking them.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"hushmcp/internal/consent"
	consentservice "hushmcp/internal/consent/service"
	"hushmcp/internal/platform/metrics"
	id "hushmcp/pkg/domain"
	audit "hushmcp/pkg/platform/audit"
)

var tracer = otel.Tracer("hushmcp/internal/trust")

// DefaultLinkTTL caps a delegation window when the caller does not ask for
// one and the deployment has not configured its own default.
const DefaultLinkTTL = 30 * 24 * time.Hour

// TokenValidator is the slice of the consent service used to vet the backing
// token at link creation. The delegated scope is passed as the expected
// scope, so the validator's own scope check doubles as the delegation
// subsumption check.
type TokenValidator interface {
	ValidateToken(ctx context.Context, wire string, expectedScope id.ConsentScope, opts ...consentservice.ValidateOption) (consent.ValidationResult, error)
}

// RevocationRegistry is the slice of the shared revocation registry the
// trust service depends on.
type RevocationRegistry interface {
	Revoke(ctx context.Context, credentialID string, revokedAt, expiresAt time.Time) error
	IsRevoked(ctx context.Context, credentialID string, now time.Time) (bool, error)
}

// AuditPublisher emits audit events. Fire-and-forget; implementations must
// never block the caller.
type AuditPublisher interface {
	Publish(ctx context.Context, event audit.Event)
}

// Service signs, verifies, and revokes trust links. Links are signed with
// the same secret as consent tokens; the distinct wire prefix and id prefix
// keep the two credential kinds from aliasing.
type Service struct {
	secret     []byte
	defaultTTL time.Duration
	tokens     TokenValidator
	registry   RevocationRegistry
	publisher  AuditPublisher
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

// New wires a trust service. defaultTTL bounds links created without an
// explicit ttl; nonpositive values fall back to DefaultLinkTTL. publisher
// and metrics may be nil in tests.
func New(
	secret []byte,
	defaultTTL time.Duration,
	tokens TokenValidator,
	registry RevocationRegistry,
	publisher AuditPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	if defaultTTL <= 0 {
		defaultTTL = DefaultLinkTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		secret:     secret,
		defaultTTL: defaultTTL,
		tokens:     tokens,
		registry:   registry,
		publisher:  publisher,
		metrics:    m,
		logger:     logger,
	}
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

// auditTimestamp renders expiry timestamps for audit detail maps.
func auditTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
