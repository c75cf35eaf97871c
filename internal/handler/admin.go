package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/senechal-app/senechal/internal/config"
	"github.com/senechal-app/senechal/internal/model"
	"github.com/senechal-app/senechal/internal/roles"
	"github.com/senechal-app/senechal/internal/service"
)

// AdminHandler serves the owner-authenticated lifecycle surface: session
// login, temporary credential management, and role inspection/reload.
// Unlike the external API surface, errors here are specific and actionable;
// the caller is the trusted owner.
type AdminHandler struct {
	authSvc           *service.AuthService
	lifecycle         *service.LifecycleService
	registry          *roles.Registry
	ownerPasswordHash string
	sessionTTL        time.Duration
	rolesPath         string
	logger            *slog.Logger
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(authSvc *service.AuthService, lifecycle *service.LifecycleService, registry *roles.Registry, ownerPasswordHash string, sessionTTL time.Duration, rolesPath string, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		authSvc:           authSvc,
		lifecycle:         lifecycle,
		registry:          registry,
		ownerPasswordHash: ownerPasswordHash,
		sessionTTL:        sessionTTL,
		rolesPath:         rolesPath,
		logger:            logger,
	}
}

// ---------------------------------------------------------------------------
// Owner session
// ---------------------------------------------------------------------------

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string `json:"session_token"`
	TokenType string `json:"token_type"`
	ExpiresIn int    `json:"expires_in"`
}

// Login authenticates the owner and returns a session token.
// POST /admin/session
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Password == "" {
		writeError(w, http.StatusBadRequest, "Password is required")
		return
	}
	if h.ownerPasswordHash == "" {
		writeError(w, http.StatusServiceUnavailable, "Owner password not configured; run: senechal owner set-password")
		return
	}

	if err := h.authSvc.VerifyOwnerPassword(h.ownerPasswordHash, req.Password); err != nil {
		h.logger.Warn("owner login failed")
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	token, err := h.authSvc.IssueOwnerToken(h.sessionTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to issue token: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Token:     token,
		TokenType: "bearer",
		ExpiresIn: int(h.sessionTTL.Seconds()),
	})
}

// ---------------------------------------------------------------------------
// Credential lifecycle
// ---------------------------------------------------------------------------

type createCredentialRequest struct {
	Role            string `json:"role"`
	DurationSeconds int64  `json:"duration_seconds"`
	Note            string `json:"note,omitempty"`
}

// CreateCredential issues a new temporary credential. The raw secret in the
// response is shown exactly once.
// POST /admin/credential
func (h *AdminHandler) CreateCredential(w http.ResponseWriter, r *http.Request) {
	var req createCredentialRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Role == "" {
		writeError(w, http.StatusBadRequest, "Role is required")
		return
	}

	issued, err := h.lifecycle.Create(r.Context(), req.Role, time.Duration(req.DurationSeconds)*time.Second, req.Note)
	if err != nil {
		var invalid *service.InvalidInputError
		if errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, invalid.Msg)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to create credential: "+err.Error())
		return
	}

	h.logger.Info("credential issued", "key_id", issued.KeyID, "role", issued.Role, "expires_at", issued.ExpiresAt)
	writeJSON(w, http.StatusCreated, issued)
}

// ListCredentials returns metadata for all temporary credentials, newest
// first. Secrets and hashes are never included.
// GET /admin/credential
func (h *AdminHandler) ListCredentials(w http.ResponseWriter, r *http.Request) {
	metas, err := h.lifecycle.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list credentials: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: metas,
		Meta:     &model.ResponseMeta{Count: len(metas)},
	})
}

// GetCredential returns metadata for one credential.
// GET /admin/credential/{keyID}
func (h *AdminHandler) GetCredential(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyID")

	meta, err := h.lifecycle.Get(r.Context(), keyID)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No credential with key_id "+keyID)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get credential: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, meta)
}

// RevokeCredential revokes a credential. Revoking twice reports
// already_revoked rather than failing.
// DELETE /admin/credential/{keyID}
func (h *AdminHandler) RevokeCredential(w http.ResponseWriter, r *http.Request) {
	keyID := chi.URLParam(r, "keyID")

	res, err := h.lifecycle.Revoke(r.Context(), keyID)
	if err != nil {
		if errors.Is(err, config.ErrNotFound) {
			writeError(w, http.StatusNotFound, "No credential with key_id "+keyID)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to revoke credential: "+err.Error())
		return
	}

	h.logger.Info("credential revoked", "key_id", res.KeyID, "status", string(res.Status))
	writeJSON(w, http.StatusOK, res)
}

// ---------------------------------------------------------------------------
// Roles
// ---------------------------------------------------------------------------

// ListRoles returns the currently configured roles and their path patterns.
// GET /admin/role
func (h *AdminHandler) ListRoles(w http.ResponseWriter, r *http.Request) {
	names := h.registry.Names()
	out := make([]model.Role, 0, len(names))
	for _, name := range names {
		role, err := h.registry.Resolve(name)
		if err != nil {
			continue
		}
		out = append(out, role)
	}

	writeJSON(w, http.StatusOK, model.ListResponse{
		Resource: out,
		Meta:     &model.ResponseMeta{Count: len(out)},
	})
}

// ReloadRoles re-reads the role configuration file and swaps the registry
// atomically. In-flight requests finish against the old snapshot.
// POST /admin/role/reload
func (h *AdminHandler) ReloadRoles(w http.ResponseWriter, r *http.Request) {
	mapping, err := config.LoadRolesFile(h.rolesPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load roles file: "+err.Error())
		return
	}
	if err := h.registry.Reload(mapping); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid role configuration: "+err.Error())
		return
	}

	h.logger.Info("role registry reloaded", "roles", len(mapping), "path", h.rolesPath)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"reloaded": true,
		"roles":    len(mapping),
	})
}
