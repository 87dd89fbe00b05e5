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

// RoundDependencies defines the interface for round operations.
type RoundDependencies interface {
	CurrentRound(ctx context.Context) (*model.Round, error)
	StartRound(ctx context.Context, theme string) (model.Round, error)
	Reveal(ctx context.Context, roundID uuid.UUID, actual float64) (model.Round, error)
}

// RoundsHandler handles round requests.
type RoundsHandler struct {
	deps RoundDependencies
}

// NewRoundsHandler creates a new rounds handler.
func NewRoundsHandler(deps RoundDependencies) *RoundsHandler {
	return &RoundsHandler{deps: deps}
}

// startRoundRequest mirrors the body of POST /api/admin/rounds.
type startRoundRequest struct {
	Theme string `json:"theme"`
}

func (s startRoundRequest) validate() error {
	if strings.TrimSpace(s.Theme) == "" {
		return errors.New("missing theme")
	}
	return nil
}

// revealRequest mirrors the body of POST /api/admin/rounds/reveal.
// ActualValue is a pointer so an absent field is caught instead of
// being read as zero.
type revealRequest struct {
	RoundID     string   `json:"roundId"`
	ActualValue *float64 `json:"actualValue"`
}

func (rr revealRequest) validate() error {
	switch {
	case strings.TrimSpace(rr.RoundID) == "":
		return errors.New("missing roundId")
	case rr.ActualValue == nil:
		return errors.New("missing actualValue")
	}
	return nil
}

// HandleCurrentRound handles GET /api/rounds/current requests. Before
// the first round ever starts the body is a JSON null.
func (h *RoundsHandler) HandleCurrentRound(w http.ResponseWriter, r *http.Request) {
	const op = "api.current_round"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	round, err := h.deps.CurrentRound(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// HandleStartRound handles POST /api/admin/rounds requests.
func (h *RoundsHandler) HandleStartRound(w http.ResponseWriter, r *http.Request) {
	const op = "api.start_round"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req startRoundRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	round, err := h.deps.StartRound(r.Context(), req.Theme)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, round)
}

// HandleReveal handles POST /api/admin/rounds/reveal requests.
// Revealing an already-revealed round is a conflict, not a repeat
// settlement.
func (h *RoundsHandler) HandleReveal(w http.ResponseWriter, r *http.Request) {
	const op = "api.reveal"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req revealRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	roundID, err := uuid.Parse(req.RoundID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	if _, err := h.deps.Reveal(r.Context(), roundID, *req.ActualValue); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
