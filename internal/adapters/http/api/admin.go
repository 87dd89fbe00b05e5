// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
)

// AdminDependencies defines the interface for operator-only actions.
type AdminDependencies interface {
	Reset(ctx context.Context) error
	Stats(ctx context.Context) map[string]interface{}
}

// AdminHandler handles operator login, stats, and the full reset.
type AdminHandler struct {
	deps     AdminDependencies
	adminKey string
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(deps AdminDependencies, adminKey string) *AdminHandler {
	return &AdminHandler{deps: deps, adminKey: adminKey}
}

// loginRequest mirrors the body of POST /api/admin/login.
type loginRequest struct {
	Password string `json:"password"`
}

// HandleLogin handles POST /api/admin/login requests. It checks the
// shared operator credential so the admin UI can gate itself; the
// credential itself still rides every admin request as a header.
func (h *AdminHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.login"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if h.adminKey == "" || subtle.ConstantTimeCompare([]byte(req.Password), []byte(h.adminKey)) != 1 {
		writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// HandleStats handles GET /api/admin/stats requests.
func (h *AdminHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.deps.Stats(r.Context()))
}

// HandleReset handles POST /api/admin/reset requests. A failed reset
// leaves prior state intact and reports a 500.
func (h *AdminHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if err := h.deps.Reset(r.Context()); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
