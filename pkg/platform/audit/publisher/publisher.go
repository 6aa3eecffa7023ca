// Package publisher provides the fire-and-forget entry point of the audit
// pipeline. Publishing must never block or fail the trust path: when the
// buffer is full the event is dropped with a warning.
package publisher

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	audit "hushmcp/pkg/platform/audit"
	"hushmcp/pkg/requestcontext"
)

const defaultBuffer = 256

// Publisher enqueues audit events onto a buffered channel consumed by an
// audit worker. It assigns an event id and timestamp when the caller left
// them unset.
type Publisher struct {
	inbox  chan audit.Event
	logger *slog.Logger
}

func New(buffer int, logger *slog.Logger) *Publisher {
	if buffer <= 0 {
		buffer = defaultBuffer
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		inbox:  make(chan audit.Event, buffer),
		logger: logger,
	}
}

// Publish enqueues the event without blocking. A full buffer drops the event;
// audit is best-effort and must never stall a validation or vault call.
func (p *Publisher) Publish(ctx context.Context, event audit.Event) {
	if event.ID == "" {
		event.ID = "evt_" + uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = requestcontext.Now(ctx)
	}

	select {
	case p.inbox <- event:
	default:
		p.logger.WarnContext(ctx, "audit buffer full, dropping event",
			"event", string(event.Name),
			"event_id", event.ID,
		)
	}
}

// Inbox exposes the receive side for the audit worker.
func (p *Publisher) Inbox() <-chan audit.Event {
	return p.inbox
}
