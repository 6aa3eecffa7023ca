// Package revocation provides the shared revocation registry used by consent
// tokens, trust links and management sessions. Stores are keyed by credential
// ID and keep entries until the credential's natural expiry, after which they
// are eligible for purging. A revocation is permanent for the credential's
// lifetime: re-revoking never shortens or extends an existing entry.
//
// Callers pass their own notion of now (normally requestcontext.Now) so that
// expiry decisions stay consistent with the validation path.
package revocation

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"hushmcp/pkg/platform/sentinel"
)

var checkDurationMs = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "hushmcp_revocation_check_duration_ms",
	Help:    "Latency of revocation lookups in milliseconds",
	Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25},
})

// Registry records revoked credential IDs and answers revocation checks.
// Implementations must be safe for concurrent use and must never report a
// credential as revoked and later as not revoked within its lifetime.
type Registry interface {
	// Revoke marks the credential as revoked from revokedAt until its natural
	// expiry. Revoking an already-revoked or already-expired credential is a
	// no-op.
	Revoke(ctx context.Context, credentialID string, revokedAt, expiresAt time.Time) error

	// IsRevoked reports whether the credential is revoked as of now.
	// Credentials past their natural expiry are reported as not revoked.
	IsRevoked(ctx context.Context, credentialID string, now time.Time) (bool, error)
}

// Purger removes registry entries whose credentials have expired.
// Backends with native key expiry (Redis) do not implement it.
type Purger interface {
	PurgeExpired(ctx context.Context, now time.Time) (int64, error)
}

func validateExpiry(expiresAt time.Time) error {
	if expiresAt.IsZero() {
		return fmt.Errorf("expiry must be set: %w", sentinel.ErrInvalidState)
	}
	return nil
}
