// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/okian/ballpark/internal/domain/model"
)

// TeamDependencies defines the interface for team operations.
type TeamDependencies interface {
	Join(ctx context.Context, name string) (model.Team, error)
	ListTeams(ctx context.Context) ([]model.Team, error)
}

// TeamsHandler handles team requests.
type TeamsHandler struct {
	deps TeamDependencies
}

// NewTeamsHandler creates a new teams handler.
func NewTeamsHandler(deps TeamDependencies) *TeamsHandler {
	return &TeamsHandler{deps: deps}
}

// joinRequest mirrors the body of POST /api/teams/join.
type joinRequest struct {
	Name string `json:"name"`
}

func (j joinRequest) validate() error {
	if strings.TrimSpace(j.Name) == "" {
		return errors.New("missing name")
	}
	return nil
}

// HandleListTeams handles GET /api/teams requests. Teams come back
// ordered by balance, highest first.
func (h *TeamsHandler) HandleListTeams(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_teams"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	teams, err := h.deps.ListTeams(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}
	if teams == nil {
		teams = []model.Team{}
	}
	writeJSON(w, http.StatusOK, teams)
}

// HandleJoin handles POST /api/teams/join requests. Joining an
// already-taken name returns the existing team.
func (h *TeamsHandler) HandleJoin(w http.ResponseWriter, r *http.Request) {
	const op = "api.join"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	team, err := h.deps.Join(r.Context(), req.Name)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}
