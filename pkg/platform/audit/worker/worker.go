// Package worker drains published audit events into a store.
package worker

import (
	"context"
	"log/slog"

	audit "hushmcp/pkg/platform/audit"
)

// Worker consumes audit events from a channel and persists them. Persistence
// failures are logged and skipped: a broken audit store must not take the
// pipeline down, and Append is idempotent on event id anyway.
type Worker struct {
	store  audit.Store
	inbox  <-chan audit.Event
	logger *slog.Logger
}

func New(store audit.Store, inbox <-chan audit.Event, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{store: store, inbox: inbox, logger: logger}
}

// Run processes events until ctx is cancelled, then drains whatever is still
// buffered before returning so shutdown loses as little as possible.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.drain(context.WithoutCancel(ctx))
			return ctx.Err()
		case event := <-w.inbox:
			w.append(ctx, event)
		}
	}
}

func (w *Worker) drain(ctx context.Context) {
	for {
		select {
		case event := <-w.inbox:
			w.append(ctx, event)
		default:
			return
		}
	}
}

func (w *Worker) append(ctx context.Context, event audit.Event) {
	if err := w.store.Append(ctx, event); err != nil {
		w.logger.WarnContext(ctx, "audit append failed",
			"event", string(event.Name),
			"event_id", event.ID,
			"error", err,
		)
	}
}
