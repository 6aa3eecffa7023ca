package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hushmcp/internal/consent"
	"hushmcp/internal/consent/service"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	"hushmcp/pkg/platform/httputil"
	"hushmcp/pkg/requestcontext"
)

// DefaultConsentTTL applies when a grant request does not name a ttl.
const DefaultConsentTTL = 7 * 24 * time.Hour

// Service defines the consent operations the handler depends on.
type Service interface {
	ValidateToken(ctx context.Context, wire string, expectedScope id.ConsentScope, opts ...service.ValidateOption) (consent.ValidationResult, error)
	GrantConsent(ctx context.Context, userID id.UserID, agentID id.AgentID, scope id.ConsentScope, ttl time.Duration) (consent.ConsentRecord, string, error)
	RevokeConsent(ctx context.Context, userID id.UserID, tokenOrID string) error
	ActiveConsents(ctx context.Context, userID id.UserID) ([]consent.ConsentRecord, error)
}

// Handler serves the consent endpoints: token validation for agents, grant
// bookkeeping for the consenting user.
type Handler struct {
	logger     *slog.Logger
	consent    Service
	defaultTTL time.Duration
}

// New creates a consent Handler. defaultTTL bounds grants that do not name
// their own ttl.
func New(consent Service, defaultTTL time.Duration, logger *slog.Logger) *Handler {
	if defaultTTL <= 0 {
		defaultTTL = DefaultConsentTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:     logger,
		consent:    consent,
		defaultTTL: defaultTTL,
	}
}

// RegisterAgent mounts the agent-facing endpoints. No session is required;
// the consent token itself is the credential under test.
func (h *Handler) RegisterAgent(r chi.Router) {
	r.Post("/token/validate", h.handleValidateToken)
}

// RegisterManagement mounts the session-guarded consent endpoints. The
// router is expected to run RequireSession ahead of these.
func (h *Handler) RegisterManagement(r chi.Router) {
	r.Post("/consent/grant", h.handleGrantConsent)
	r.Post("/consent/revoke", h.handleRevokeConsent)
	r.Get("/consent/active", h.handleActiveConsents)
}

type validateRequest struct {
	Token  string `json:"token"`
	Scope  string `json:"expected_scope"`
	UserID string `json:"expected_user,omitempty"`
}

type tokenDetails struct {
	TokenID   string    `json:"token_id"`
	UserID    string    `json:"user_id"`
	AgentID   string    `json:"agent_id"`
	Scope     string    `json:"scope"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type validateResponse struct {
	Valid  bool          `json:"valid"`
	Reason string        `json:"reason,omitempty"`
	Token  *tokenDetails `json:"token,omitempty"`
}

// handleValidateToken checks a presented token against an expected scope.
// Denials are 200 responses with valid=false; only malformed requests and
// infrastructure faults surface as errors.
func (h *Handler) handleValidateToken(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid validate request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	token := strings.TrimSpace(req.Token)
	if token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "token is required"))
		return
	}
	scope, err := id.ParseConsentScope(strings.TrimSpace(req.Scope))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	var opts []service.ValidateOption
	if raw := strings.TrimSpace(req.UserID); raw != "" {
		userID, err := id.ParseUserID(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		opts = append(opts, service.WithExpectedUser(userID))
	}

	result, err := h.consent.ValidateToken(ctx, token, scope, opts...)
	if err != nil {
		h.logger.ErrorContext(ctx, "token validation failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := validateResponse{Valid: result.Valid}
	if result.Valid {
		resp.Token = detailsFromToken(result.Token)
	} else {
		resp.Reason = result.Reason.String()
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type grantRequest struct {
	AgentID string `json:"agent_id"`
	Scope   string `json:"scope"`
	TTLMs   int64  `json:"ttl_ms,omitempty"`
}

type grantResponse struct {
	Token     string    `json:"token"`
	TokenID   string    `json:"token_id"`
	UserID    string    `json:"user_id"`
	AgentID   string    `json:"agent_id"`
	Scope     string    `json:"scope"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleGrantConsent issues a token from the session user to an agent and
// records the grant. The opaque token appears only in this response.
func (h *Handler) handleGrantConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	var req grantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid grant request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	agentID, err := id.ParseAgentID(strings.TrimSpace(req.AgentID))
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
	ttl := h.defaultTTL
	if req.TTLMs > 0 {
		ttl = time.Duration(req.TTLMs) * time.Millisecond
	}

	record, wire, err := h.consent.GrantConsent(ctx, userID, agentID, scope, ttl)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			h.logger.WarnContext(ctx, "grant rejected",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		} else {
			h.logger.ErrorContext(ctx, "failed to grant consent",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, grantResponse{
		Token:     wire,
		TokenID:   record.TokenID.String(),
		UserID:    record.UserID.String(),
		AgentID:   record.AgentID.String(),
		Scope:     record.Scope.String(),
		IssuedAt:  record.IssuedAt,
		ExpiresAt: record.ExpiresAt,
	})
}

type revokeRequest struct {
	Token   string `json:"token,omitempty"`
	TokenID string `json:"token_id,omitempty"`
}

// handleRevokeConsent revokes one of the session user's grants, addressed by
// opaque token or token id.
func (h *Handler) handleRevokeConsent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	var req revokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid revoke request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	target := strings.TrimSpace(req.Token)
	if target == "" {
		target = strings.TrimSpace(req.TokenID)
	}
	if target == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "token or token_id is required"))
		return
	}

	if err := h.consent.RevokeConsent(ctx, userID, target); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "failed to revoke consent",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type consentSummary struct {
	TokenID   string    `json:"token_id"`
	AgentID   string    `json:"agent_id"`
	Scope     string    `json:"scope"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Status    string    `json:"status"`
}

type activeConsentsResponse struct {
	Consents []consentSummary `json:"consents"`
}

// handleActiveConsents lists the session user's live grants.
func (h *Handler) handleActiveConsents(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	records, err := h.consent.ActiveConsents(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list consents",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := activeConsentsResponse{Consents: make([]consentSummary, 0, len(records))}
	for _, record := range records {
		resp.Consents = append(resp.Consents, consentSummary{
			TokenID:   record.TokenID.String(),
			AgentID:   record.AgentID.String(),
			Scope:     record.Scope.String(),
			IssuedAt:  record.IssuedAt,
			ExpiresAt: record.ExpiresAt,
			Status:    string(record.Status),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// sessionUser reads the session principal set by RequireSession. A missing
// principal on a guarded route is a wiring fault, not a client error.
func (h *Handler) sessionUser(ctx context.Context, w http.ResponseWriter) (id.UserID, bool) {
	userID := requestcontext.UserID(ctx)
	if userID.IsZero() {
		h.logger.ErrorContext(ctx, "user missing from context despite session middleware",
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return "", false
	}
	return userID, true
}

func detailsFromToken(t *consent.ConsentToken) *tokenDetails {
	return &tokenDetails{
		TokenID:   t.TokenID.String(),
		UserID:    t.UserID.String(),
		AgentID:   t.AgentID.String(),
		Scope:     t.Scope.String(),
		IssuedAt:  t.IssuedAt,
		ExpiresAt: t.ExpiresAt,
	}
}
