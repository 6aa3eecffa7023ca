// Package audit defines the trust layer's audit event vocabulary and the
// pipeline contracts around it. Domain services emit events through a
// Publisher; a Worker persists them via a Store; when Kafka is configured a
// relay forwards persisted events to the audit topic.
package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with legal/regulatory significance.
	// These require tamper-proof storage and long retention.
	// Examples: consent grants and revocations, data exports, data deletion.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers events relevant to security monitoring and
	// forensics: denied validations, session lifecycle, revoked delegations.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine activity useful for debugging and
	// operational visibility. These can be sampled or aggregated.
	CategoryOperations EventCategory = "operations"
)

// EventName identifies a trust-layer action in dotted form:
// <domain>.<entity>.<action>.
type EventName string

const (
	// Consent token lifecycle
	EventTokenIssued  EventName = "consent.token.issued"
	EventTokenRevoked EventName = "consent.token.revoked"
	EventTokenChecked EventName = "consent.token.checked"
	EventTokenDenied  EventName = "consent.token.denied"

	// Agent-to-agent delegation
	EventLinkCreated EventName = "trust.link.created"
	EventLinkRevoked EventName = "trust.link.revoked"

	// Data subject rights
	EventDataExported EventName = "vault.data.exported"
	EventDataDeleted  EventName = "vault.data.deleted"

	// Management sessions
	EventSessionOpened EventName = "auth.session.opened"
	EventSessionClosed EventName = "auth.session.closed"

	// Abuse controls
	EventLockoutTriggered EventName = "auth.lockout.triggered"
	EventRateLimited      EventName = "ratelimit.request.blocked"
)

// eventCategories maps each event to its category.
// Compliance: consent and data-subject-rights records, long retention.
// Security: denials and session activity, feeds alerting.
// Operations: routine checks, short retention.
var eventCategories = map[EventName]EventCategory{
	EventTokenIssued:  CategoryCompliance,
	EventTokenRevoked: CategoryCompliance,
	EventLinkCreated:  CategoryCompliance,
	EventDataExported: CategoryCompliance,
	EventDataDeleted:  CategoryCompliance,

	EventTokenDenied:      CategorySecurity,
	EventLinkRevoked:      CategorySecurity,
	EventSessionOpened:    CategorySecurity,
	EventSessionClosed:    CategorySecurity,
	EventLockoutTriggered: CategorySecurity,
	EventRateLimited:      CategorySecurity,

	EventTokenChecked: CategoryOperations,
}

// Category returns the EventCategory for this event name.
// Unknown names default to CategoryOperations.
func (n EventName) Category() EventCategory {
	if cat, ok := eventCategories[n]; ok {
		return cat
	}
	return CategoryOperations
}

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
//
// Actor is the party that performed the action (an agent id or a session
// user). Subject is the user whose data or consent is affected. Detail holds
// small structured context such as scope or a revocation reason; it must
// never contain token material or plaintext vault data.
type Event struct {
	ID         string
	Name       EventName
	Actor      string
	Subject    string
	Detail     map[string]string
	OccurredAt time.Time
}

// Store persists audit events. Implementations must be safe for concurrent
// use; Append must be idempotent on Event.ID so redelivery is harmless.
type Store interface {
	Append(ctx context.Context, event Event) error
}
