// Package httpapi assembles the HTTP surface of the trust layer. Three route
// groups share one middleware core: the public login endpoint, the
// agent-facing credential and vault endpoints, and the session-guarded
// management endpoints. Handlers register their own routes; the router owns
// grouping, guards and abuse controls.
package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"hushmcp/internal/platform/metrics"
	"hushmcp/internal/platform/middleware"
	ratelimitmw "hushmcp/internal/ratelimit/middleware"
	"hushmcp/internal/ratelimit/models"
)

const defaultRequestTimeout = 30 * time.Second

// Registration surfaces the feature handlers expose. A handler only knows its
// own routes; which guard runs ahead of them is decided here.
type (
	// PublicRoutes mounts endpoints that carry no credential at all, such as
	// login. They still pass through the auth abuse controls.
	PublicRoutes interface {
		RegisterPublic(chi.Router)
	}

	// AgentRoutes mounts endpoints where the consent token or trust link in
	// the request body is the credential. No session is involved.
	AgentRoutes interface {
		RegisterAgent(chi.Router)
	}

	// ManagementRoutes mounts endpoints guarded by a dashboard session.
	ManagementRoutes interface {
		RegisterManagement(chi.Router)
	}
)

// Handlers carries the feature handlers the router mounts, grouped by the
// surface each one serves. A handler with two surfaces appears in two lists.
type Handlers struct {
	Public     []PublicRoutes
	Agent      []AgentRoutes
	Management []ManagementRoutes
}

// Deps carries the cross-cutting pieces of the middleware chain.
type Deps struct {
	Logger      *slog.Logger
	Metrics     *metrics.Metrics
	Sessions    middleware.SessionValidator
	Revocations middleware.RevocationChecker
	RateLimits  *ratelimitmw.Middleware
	// RequestTimeout bounds each API request; zero means the default.
	RequestTimeout time.Duration
}

// New builds the full router. The order of the core chain matters: request id
// and client metadata first so every log line carries them, the access logger
// outside recovery so panics still produce a logged 500 response.
func New(h Handlers, deps Deps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.ClientMetadata)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Timeout(timeout))

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.ContentTypeJSON)
		api.Use(middleware.Latency(deps.Metrics))

		// Login carries both abuse controls: the per-IP flood limit and the
		// per-identifier lockout check on the sniffed email.
		api.Group(func(public chi.Router) {
			public.Use(deps.RateLimits.RateLimit(models.ClassAuth))
			public.Use(deps.RateLimits.RateLimitAuth())
			for _, routes := range h.Public {
				routes.RegisterPublic(public)
			}
		})

		api.Group(func(agent chi.Router) {
			agent.Use(deps.RateLimits.RateLimit(models.ClassAgent))
			for _, routes := range h.Agent {
				routes.RegisterAgent(agent)
			}
		})

		api.Group(func(mgmt chi.Router) {
			mgmt.Use(deps.RateLimits.RateLimit(models.ClassManagement))
			mgmt.Use(middleware.RequireSession(deps.Sessions, deps.Revocations, logger))
			for _, routes := range h.Management {
				routes.RegisterManagement(mgmt)
			}
		})
	})

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
