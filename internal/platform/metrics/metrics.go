package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides operational observability for the trust layer: HTTP
// latencies plus per-feature counters. All observe methods are nil-safe so
// tests can wire services without metrics.
type Metrics struct {
	// HTTP request latencies by method, route pattern and status
	HTTPRequestDuration *prometheus.HistogramVec

	// Validation outcomes: "valid" or the denial reason
	TokenValidations  *prometheus.CounterVec
	LinkVerifications *prometheus.CounterVec

	// Credential lifecycle
	TokensIssued       prometheus.Counter
	LinksCreated       prometheus.Counter
	CredentialsRevoked *prometheus.CounterVec

	// Vault engine and data-subject operations by op and outcome
	VaultOperations *prometheus.CounterVec

	// Abuse controls
	RateLimitedRequests *prometheus.CounterVec
	AuthLockouts        prometheus.Counter
}

// New creates a new Metrics instance with all metrics registered on the
// default registry.
func New() *Metrics {
	return &Metrics{
		HTTPRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hushmcp_http_request_duration_seconds",
			Help:    "Duration of HTTP requests by method, route and status",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route", "status"}),
		TokenValidations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hushmcp_token_validations_total",
			Help: "Consent token validations by outcome",
		}, []string{"outcome"}),
		LinkVerifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hushmcp_link_verifications_total",
			Help: "Trust link verifications by outcome",
		}, []string{"outcome"}),
		TokensIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hushmcp_tokens_issued_total",
			Help: "Consent tokens issued",
		}),
		LinksCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hushmcp_links_created_total",
			Help: "Trust links created",
		}),
		CredentialsRevoked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hushmcp_credentials_revoked_total",
			Help: "Revocations by credential kind",
		}, []string{"kind"}),
		VaultOperations: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hushmcp_vault_operations_total",
			Help: "Vault operations by op and outcome",
		}, []string{"op", "outcome"}),
		RateLimitedRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "hushmcp_ratelimited_requests_total",
			Help: "Requests rejected by the rate limiter, by endpoint class",
		}, []string{"class"}),
		AuthLockouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "hushmcp_auth_lockouts_total",
			Help: "Login identifiers locked out after repeated failures",
		}),
	}
}

// ObserveHTTPRequest records the duration of a completed HTTP request.
func (m *Metrics) ObserveHTTPRequest(method, route string, status int, d time.Duration) {
	if m != nil {
		m.HTTPRequestDuration.WithLabelValues(method, route, strconv.Itoa(status)).Observe(d.Seconds())
	}
}

// ObserveTokenValidation counts one token validation outcome.
func (m *Metrics) ObserveTokenValidation(outcome string) {
	if m != nil {
		m.TokenValidations.WithLabelValues(outcome).Inc()
	}
}

// ObserveLinkVerification counts one trust link verification outcome.
func (m *Metrics) ObserveLinkVerification(outcome string) {
	if m != nil {
		m.LinkVerifications.WithLabelValues(outcome).Inc()
	}
}

// ObserveTokenIssued counts one issued consent token.
func (m *Metrics) ObserveTokenIssued() {
	if m != nil {
		m.TokensIssued.Inc()
	}
}

// ObserveLinkCreated counts one created trust link.
func (m *Metrics) ObserveLinkCreated() {
	if m != nil {
		m.LinksCreated.Inc()
	}
}

// ObserveCredentialRevoked counts one revocation of the given kind
// (token, link, session).
func (m *Metrics) ObserveCredentialRevoked(kind string) {
	if m != nil {
		m.CredentialsRevoked.WithLabelValues(kind).Inc()
	}
}

// ObserveVaultOperation counts one vault operation (encrypt, decrypt,
// export, delete) with its outcome (ok, denied, error).
func (m *Metrics) ObserveVaultOperation(op, outcome string) {
	if m != nil {
		m.VaultOperations.WithLabelValues(op, outcome).Inc()
	}
}

// ObserveRateLimited counts one request rejected by the rate limiter.
func (m *Metrics) ObserveRateLimited(class string) {
	if m != nil {
		m.RateLimitedRequests.WithLabelValues(class).Inc()
	}
}

// ObserveAuthLockout counts one lockout crossing the failure threshold.
func (m *Metrics) ObserveAuthLockout() {
	if m != nil {
		m.AuthLockouts.Inc()
	}
}
