package revocation

import (
	"context"
	"log/slog"
	"time"
)

// Janitor periodically purges expired registry entries from backends that
// do not expire them natively.
type Janitor struct {
	purger   Purger
	interval time.Duration
	logger   *slog.Logger
}

// NewJanitor constructs a Janitor that purges via the given Purger every
// interval.
func NewJanitor(purger Purger, interval time.Duration, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		purger:   purger,
		interval: interval,
		logger:   logger,
	}
}

// Run purges on each tick until the context is cancelled. Purge failures are
// logged and retried on the next tick. Returns nil on shutdown.
func (j *Janitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			purged, err := j.purger.PurgeExpired(ctx, time.Now())
			if err != nil {
				j.logger.WarnContext(ctx, "revocation purge failed", "error", err)
				continue
			}
			if purged > 0 {
				j.logger.DebugContext(ctx, "purged expired revocations", "count", purged)
			}
		}
	}
}
