// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// SettingDependencies defines the interface for display settings.
type SettingDependencies interface {
	Settings(ctx context.Context) (map[string]string, error)
	UpdateSetting(ctx context.Context, key, value string) error
}

// SettingsHandler handles display setting requests.
type SettingsHandler struct {
	deps SettingDependencies
}

// NewSettingsHandler creates a new settings handler.
func NewSettingsHandler(deps SettingDependencies) *SettingsHandler {
	return &SettingsHandler{deps: deps}
}

// settingRequest mirrors the body of POST /api/admin/settings.
type settingRequest struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

func (s settingRequest) validate() error {
	if strings.TrimSpace(s.Key) == "" {
		return errors.New("missing key")
	}
	return nil
}

// HandleListSettings handles GET /api/settings requests.
func (h *SettingsHandler) HandleListSettings(w http.ResponseWriter, r *http.Request) {
	const op = "api.settings"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	settings, err := h.deps.Settings(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}
	if settings == nil {
		settings = map[string]string{}
	}
	writeJSON(w, http.StatusOK, settings)
}

// HandleUpdateSetting handles POST /api/admin/settings requests.
func (h *SettingsHandler) HandleUpdateSetting(w http.ResponseWriter, r *http.Request) {
	const op = "api.update_setting"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req settingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if err := h.deps.UpdateSetting(r.Context(), req.Key, req.Value); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
