package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hushmcp/internal/session/service"
	dErrors "hushmcp/pkg/domain-errors"
	"hushmcp/pkg/platform/httputil"
	"hushmcp/pkg/requestcontext"
)

// Service defines the session operations the handler depends on.
type Service interface {
	Login(ctx context.Context, email, password string) (service.LoginResult, error)
	Logout(ctx context.Context, tokenString string) error
}

// Handler serves the management session endpoints: login on the public
// surface, logout behind the session guard.
type Handler struct {
	logger   *slog.Logger
	sessions Service
}

// New creates a session Handler.
func New(sessions Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:   logger,
		sessions: sessions,
	}
}

// RegisterPublic mounts the login endpoint. It carries no session guard; the
// router is expected to run the auth rate limiter ahead of it.
func (h *Handler) RegisterPublic(r chi.Router) {
	r.Post("/session", h.handleLogin)
}

// RegisterManagement mounts the session-guarded logout endpoint.
func (h *Handler) RegisterManagement(r chi.Router) {
	r.Delete("/session", h.handleLogout)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	ExpiresAt time.Time `json:"expires_at"`
}

// handleLogin exchanges credentials for a session token. Rejections share one
// CodeUnauthorized response; the service logs them with an anonymized IP, so
// the handler adds nothing on that path.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid login request",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}

	result, err := h.sessions.Login(ctx, req.Email, req.Password)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "login failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Token:     result.Token,
		UserID:    result.UserID.String(),
		Email:     result.Email,
		FirstName: result.FirstName,
		LastName:  result.LastName,
		ExpiresAt: result.ExpiresAt,
	})
}

// handleLogout revokes the presented session. The bearer token is read again
// here rather than from context because the service revokes the exact token
// that was signed, jti and expiry included.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	const bearerPrefix = "Bearer "
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), bearerPrefix)
	if !ok || token == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "Missing or invalid Authorization header"))
		return
	}

	if err := h.sessions.Logout(ctx, token); err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "logout failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
