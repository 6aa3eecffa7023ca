// Package service implements consent token issuance, validation, and
// revocation, plus the management-facing grant bookkeeping.
package service

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"

	"hushmcp/internal/consent"
	"hushmcp/internal/platform/metrics"
	audit "hushmcp/pkg/platform/audit"
)

var tracer = otel.Tracer("hushmcp/internal/consent")

// RevocationRegistry is the slice of the shared revocation registry the
// consent service depends on.
type RevocationRegistry interface {
	Revoke(ctx context.Context, credentialID string, revokedAt, expiresAt time.Time) error
	IsRevoked(ctx context.Context, credentialID string, now time.Time) (bool, error)
}

// AuditPublisher emits audit events. Fire-and-forget; implementations must
// never block the caller.
type AuditPublisher interface {
	Publish(ctx context.Context, event audit.Event)
}

// Service signs, validates, and revokes consent tokens. Issuance and
// validation are pure except for the revocation lookup; all shared state
// lives behind the registry and records ports.
type Service struct {
	secret    []byte
	registry  RevocationRegistry
	records   consent.Records
	publisher AuditPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New wires a consent service. The secret is the HMAC signing key shared
// with the trust link service; its length is enforced at config load.
// publisher and metrics may be nil in tests.
func New(
	secret []byte,
	registry RevocationRegistry,
	records consent.Records,
	publisher AuditPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		secret:    secret,
		registry:  registry,
		records:   records,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
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
