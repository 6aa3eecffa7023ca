// Package service implements management session login, validation and logout.
//
// Sessions are stateless HS256 JWTs: nothing is stored at login, and logout
// works by placing the token's jti in the shared revocation registry until the
// token's natural expiry. Accounts are provisioned through configuration as
// email/bcrypt-hash pairs; there is no signup surface.
package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"hushmcp/internal/platform/metrics"
	"hushmcp/internal/session"
	"hushmcp/internal/session/device"
	id "hushmcp/pkg/domain"
	audit "hushmcp/pkg/platform/audit"
)

var tracer = otel.Tracer("hushmcp/internal/session")

// RevocationRegistry is the slice of the shared revocation registry the
// session service depends on. Sessions only ever revoke; the middleware does
// the revocation lookups.
type RevocationRegistry interface {
	Revoke(ctx context.Context, credentialID string, revokedAt, expiresAt time.Time) error
}

// LoginAttempts records login outcomes for the lockout service. The lockout
// check itself runs in middleware before the request reaches this service.
type LoginAttempts interface {
	RecordFailure(ctx context.Context, identifier, ip string) error
	Clear(ctx context.Context, identifier, ip string) error
}

// AuditPublisher emits audit events. Fire-and-forget; implementations must
// never block the caller.
type AuditPublisher interface {
	Publish(ctx context.Context, event audit.Event)
}

// Service authenticates dashboard users and manages their session tokens.
type Service struct {
	jwt       *session.JWTService
	accounts  map[string]string
	ttl       time.Duration
	devices   *device.Service
	registry  RevocationRegistry
	attempts  LoginAttempts
	publisher AuditPublisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New wires a session service. accounts maps lowercase emails to bcrypt
// hashes. devices, attempts, publisher and metrics may be nil; each disables
// its feature without affecting login itself.
func New(
	jwt *session.JWTService,
	accounts map[string]string,
	ttl time.Duration,
	devices *device.Service,
	registry RevocationRegistry,
	attempts LoginAttempts,
	publisher AuditPublisher,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &Service{
		jwt:       jwt,
		accounts:  accounts,
		ttl:       ttl,
		devices:   devices,
		registry:  registry,
		attempts:  attempts,
		publisher: publisher,
		metrics:   m,
		logger:    logger,
	}
}

// DeriveUserID maps an account email to its stable trust-layer user id. The
// same email always yields the same id, so grants and vault records survive
// across sessions. Lowercasing first makes the mapping case-insensitive; the
// hex digest keeps the suffix inside the ID charset.
func DeriveUserID(email string) id.UserID {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return id.UserID("user_" + hex.EncodeToString(sum[:16]))
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

func auditTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
