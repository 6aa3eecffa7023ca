package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hushmcp/internal/trust"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	"hushmcp/pkg/platform/httputil"
	"hushmcp/pkg/requestcontext"
)

// Service defines the trust link operations the handler depends on.
type Service interface {
	CreateTrustLink(ctx context.Context, backingWire string, toAgent id.AgentID, scope id.ConsentScope, ttl time.Duration) (trust.TrustLink, string, error)
	VerifyTrustLink(ctx context.Context, wire string, expectedScope id.ConsentScope) (trust.VerificationResult, error)
	RevokePresentedLink(ctx context.Context, wire string) error
}

// Handler serves the trust link endpoints. All three are agent-facing: the
// backing token authorizes creation, the signed link authorizes its own
// revocation, and verification needs no credential at all.
type Handler struct {
	logger *slog.Logger
	trust  Service
}

// New creates a trust Handler.
func New(trust Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger: logger,
		trust:  trust,
	}
}

// RegisterAgent mounts the agent-facing endpoints.
func (h *Handler) RegisterAgent(r chi.Router) {
	r.Post("/trust/create", h.handleCreateLink)
	r.Post("/trust/verify", h.handleVerifyLink)
	r.Post("/trust/revoke", h.handleRevokeLink)
}

type createRequest struct {
	BackingToken string `json:"backing_token"`
	ToAgent      string `json:"to_agent"`
	Scope        string `json:"scope"`
	TTLMs        int64  `json:"ttl_ms,omitempty"`
}

type createResponse struct {
	Link      string    `json:"link"`
	LinkID    string    `json:"link_id"`
	FromAgent string    `json:"from_agent"`
	ToAgent   string    `json:"to_agent"`
	Scope     string    `json:"scope"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleCreateLink delegates a backing token's authority to another agent.
// A zero ttl_ms delegates the remaining backing window up to the configured
// cap; the service decides, since only it sees the backing expiry.
func (h *Handler) handleCreateLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid create link request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	backing := strings.TrimSpace(req.BackingToken)
	if backing == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "backing_token is required"))
		return
	}
	toAgent, err := id.ParseAgentID(strings.TrimSpace(req.ToAgent))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	scope, err := id.ParseConsentScope(strings.TrimSpace(req.Scope))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	if req.TTLMs < 0 {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "ttl_ms cannot be negative"))
		return
	}
	ttl := time.Duration(req.TTLMs) * time.Millisecond

	link, wire, err := h.trust.CreateTrustLink(ctx, backing, toAgent, scope, ttl)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to create trust link",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		} else {
			h.logger.WarnContext(ctx, "trust link rejected",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, createResponse{
		Link:      wire,
		LinkID:    link.LinkID.String(),
		FromAgent: link.FromAgent.String(),
		ToAgent:   link.ToAgent.String(),
		Scope:     link.Scope.String(),
		IssuedAt:  link.IssuedAt,
		ExpiresAt: link.ExpiresAt,
	})
}

type verifyRequest struct {
	Link  string `json:"link"`
	Scope string `json:"expected_scope"`
}

type linkDetails struct {
	LinkID    string    `json:"link_id"`
	FromAgent string    `json:"from_agent"`
	ToAgent   string    `json:"to_agent"`
	Scope     string    `json:"scope"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type verifyResponse struct {
	Valid  bool         `json:"valid"`
	Reason string       `json:"reason,omitempty"`
	Link   *linkDetails `json:"link,omitempty"`
}

// handleVerifyLink checks a presented link against an expected scope.
// Denials are 200 responses with valid=false; only malformed requests and
// infrastructure faults surface as errors.
func (h *Handler) handleVerifyLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid verify link request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	wire := strings.TrimSpace(req.Link)
	if wire == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "link is required"))
		return
	}
	scope, err := id.ParseConsentScope(strings.TrimSpace(req.Scope))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result, err := h.trust.VerifyTrustLink(ctx, wire, scope)
	if err != nil {
		h.logger.ErrorContext(ctx, "link verification failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := verifyResponse{Valid: result.Valid}
	if result.Valid {
		resp.Link = detailsFromLink(result.Link)
	} else {
		resp.Reason = result.Reason.String()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type revokeRequest struct {
	Link string `json:"link"`
}

// handleRevokeLink revokes the presented link. Possession of the signed wire
// is the authorization; there is no lookup by bare link id on this surface.
func (h *Handler) handleRevokeLink(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid revoke link request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	wire := strings.TrimSpace(req.Link)
	if wire == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "link is required"))
		return
	}

	if err := h.trust.RevokePresentedLink(ctx, wire); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to revoke trust link",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func detailsFromLink(l *trust.TrustLink) *linkDetails {
	return &linkDetails{
		LinkID:    l.LinkID.String(),
		FromAgent: l.FromAgent.String(),
		ToAgent:   l.ToAgent.String(),
		Scope:     l.Scope.String(),
		IssuedAt:  l.IssuedAt,
		ExpiresAt: l.ExpiresAt,
	}
}
