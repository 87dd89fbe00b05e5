// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/okian/ballpark/internal/domain/model"
)

// SubmissionDependencies defines the interface for submission operations.
type SubmissionDependencies interface {
	Submit(ctx context.Context, teamID, roundID uuid.UUID, predicted, bid float64) error
	RoundSubmissions(ctx context.Context, roundID uuid.UUID) ([]model.RoundSubmission, error)
}

// SubmissionsHandler handles submission requests.
type SubmissionsHandler struct {
	deps SubmissionDependencies
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps SubmissionDependencies) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps}
}

// submitRequest mirrors the body of POST /api/submissions. The number
// fields are pointers so an absent field is caught instead of being
// read as zero.
type submitRequest struct {
	TeamID         string   `json:"teamId"`
	RoundID        string   `json:"roundId"`
	PredictedValue *float64 `json:"predictedValue"`
	BidAmount      *float64 `json:"bidAmount"`
}

func (s submitRequest) validate() error {
	switch {
	case strings.TrimSpace(s.TeamID) == "":
		return errors.New("missing teamId")
	case strings.TrimSpace(s.RoundID) == "":
		return errors.New("missing roundId")
	case s.PredictedValue == nil:
		return errors.New("missing predictedValue")
	case s.BidAmount == nil:
		return errors.New("missing bidAmount")
	}
	return nil
}

// HandleSubmit handles POST /api/submissions requests.
func (h *SubmissionsHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	const op = "api.submit"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	teamID, err := uuid.Parse(req.TeamID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	roundID, err := uuid.Parse(req.RoundID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if err := h.deps.Submit(r.Context(), teamID, roundID, *req.PredictedValue, *req.BidAmount); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

// HandleListForRound handles GET /api/admin/submissions/{round_id}
// requests. Submissions come back in arrival order with team names
// attached.
func (h *SubmissionsHandler) HandleListForRound(w http.ResponseWriter, r *http.Request) {
	const op = "api.round_submissions"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	// Extract path parameter after /api/admin/submissions/
	path := strings.TrimPrefix(r.URL.Path, "/api/admin/submissions/")
	if path == "" || strings.Contains(path, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	roundID, err := uuid.Parse(path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	subs, err := h.deps.RoundSubmissions(r.Context(), roundID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}
	if subs == nil {
		subs = []model.RoundSubmission{}
	}
	writeJSON(w, http.StatusOK, subs)
}
