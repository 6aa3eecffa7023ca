package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"hushmcp/internal/vault"
	id "hushmcp/pkg/domain"
	dErrors "hushmcp/pkg/domain-errors"
	"hushmcp/pkg/platform/httputil"
	"hushmcp/pkg/requestcontext"
)

// Service defines the vault operations the handler depends on.
type Service interface {
	EncryptData(ctx context.Context, tokenWire string, scope id.ConsentScope, category string, plaintext []byte, algorithm vault.Algorithm) (vault.StoredRecord, error)
	DecryptData(ctx context.Context, tokenWire string, scope id.ConsentScope, category string, recordID vault.RecordID) (vault.DecryptedRecord, error)
	ExportUserData(ctx context.Context, userID id.UserID) (vault.Export, error)
	DeleteUserData(ctx context.Context, userID id.UserID) (vault.DeleteCounts, error)
	Categories(ctx context.Context, userID id.UserID) ([]vault.CategoryCount, error)
}

// Handler serves the vault endpoints: sealed storage access for agents, data
// rights for the owning user.
type Handler struct {
	logger *slog.Logger
	vault  Service
}

// New creates a vault Handler.
func New(vault Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger: logger,
		vault:  vault,
	}
}

// RegisterAgent mounts the agent-facing endpoints. The consent token in the
// request body is the credential; the service validates it before any key is
// derived.
func (h *Handler) RegisterAgent(r chi.Router) {
	r.Post("/vault/encrypt", h.handleEncrypt)
	r.Post("/vault/decrypt", h.handleDecrypt)
}

// RegisterManagement mounts the session-guarded data-rights endpoints. The
// router is expected to run RequireSession ahead of these.
func (h *Handler) RegisterManagement(r chi.Router) {
	r.Get("/data/export", h.handleExport)
	r.Delete("/data", h.handleDelete)
	r.Get("/data/categories", h.handleCategories)
}

type encryptRequest struct {
	Token     string `json:"token"`
	Scope     string `json:"scope"`
	Category  string `json:"category"`
	Data      []byte `json:"data"`
	Algorithm string `json:"algorithm,omitempty"`
}

type encryptResponse struct {
	RecordID  string    `json:"record_id"`
	Category  string    `json:"category"`
	Scope     string    `json:"scope"`
	Algorithm string    `json:"algorithm"`
	CreatedAt time.Time `json:"created_at"`
}

// handleEncrypt seals agent-supplied plaintext into the presenting token's
// user vault. Data rides base64 in the JSON body; the response never echoes
// it back.
func (h *Handler) handleEncrypt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req encryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid encrypt request",
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
	var algorithm vault.Algorithm
	if raw := strings.TrimSpace(req.Algorithm); raw != "" {
		algorithm, err = vault.ParseAlgorithm(raw)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
	}

	stored, err := h.vault.EncryptData(ctx, token, scope, strings.TrimSpace(req.Category), req.Data, algorithm)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "vault encrypt failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, encryptResponse{
		RecordID:  stored.ID.String(),
		Category:  stored.Category,
		Scope:     stored.Record.Metadata.Scope.String(),
		Algorithm: stored.Record.Algorithm.String(),
		CreatedAt: stored.Record.Metadata.CreatedAt,
	})
}

type decryptRequest struct {
	Token    string `json:"token"`
	Scope    string `json:"scope"`
	Category string `json:"category"`
	RecordID string `json:"record_id"`
}

type recordPayload struct {
	RecordID  string    `json:"record_id"`
	Category  string    `json:"category"`
	AgentID   string    `json:"agent_id"`
	Scope     string    `json:"scope"`
	Algorithm string    `json:"algorithm"`
	CreatedAt time.Time `json:"created_at"`
	Data      []byte    `json:"data"`
}

// handleDecrypt opens one stored record for an agent whose token covers the
// record's scope.
func (h *Handler) handleDecrypt(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req decryptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid decrypt request",
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
	recordID, err := vault.ParseRecordID(strings.TrimSpace(req.RecordID))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	record, err := h.vault.DecryptData(ctx, token, scope, strings.TrimSpace(req.Category), recordID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInternal) {
			h.logger.ErrorContext(ctx, "vault decrypt failed",
				"request_id", requestcontext.RequestID(ctx),
				"error", err.Error(),
			)
		}
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, payloadFromRecord(record))
}

type exportResponse struct {
	UserID     string          `json:"user_id"`
	ExportedAt time.Time       `json:"exported_at"`
	Records    []recordPayload `json:"records"`
}

// handleExport returns the session user's full decrypted data bundle.
func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	export, err := h.vault.ExportUserData(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "data export failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := exportResponse{
		UserID:     export.UserID.String(),
		ExportedAt: export.ExportedAt,
		Records:    make([]recordPayload, 0, len(export.Records)),
	}
	for _, record := range export.Records {
		resp.Records = append(resp.Records, payloadFromRecord(record))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

type deleteResponse struct {
	VaultRecordsDeleted   int `json:"vault_records_deleted"`
	ConsentRecordsDeleted int `json:"consent_records_deleted"`
}

// handleDelete is the right to be forgotten for the session user.
func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	counts, err := h.vault.DeleteUserData(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "data deletion failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, deleteResponse{
		VaultRecordsDeleted:   counts.VaultRecords,
		ConsentRecordsDeleted: counts.ConsentRecords,
	})
}

type categoryEntry struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}

type categoriesResponse struct {
	Categories []categoryEntry `json:"categories"`
}

// handleCategories lists the session user's stored categories with counts.
// Nothing is decrypted on this path.
func (h *Handler) handleCategories(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID, ok := h.sessionUser(ctx, w)
	if !ok {
		return
	}

	categories, err := h.vault.Categories(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to list categories",
			"request_id", requestcontext.RequestID(ctx),
			"error", err.Error(),
		)
		httputil.WriteError(w, err)
		return
	}

	resp := categoriesResponse{Categories: make([]categoryEntry, 0, len(categories))}
	for _, category := range categories {
		resp.Categories = append(resp.Categories, categoryEntry{
			Category: category.Category,
			Count:    category.Count,
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

func payloadFromRecord(record vault.DecryptedRecord) recordPayload {
	return recordPayload{
		RecordID:  record.RecordID.String(),
		Category:  record.Category,
		AgentID:   record.AgentID.String(),
		Scope:     record.Scope.String(),
		Algorithm: record.Algorithm.String(),
		CreatedAt: record.CreatedAt,
		Data:      record.Data,
	}
}
