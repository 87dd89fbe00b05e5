// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	service "github.com/okian/ballpark/internal/app"
	"github.com/okian/ballpark/internal/domain/model"
)

// adminKeyHeader carries the shared operator credential on admin
// routes.
const adminKeyHeader = "X-Admin-Key"

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	Join(ctx context.Context, name string) (model.Team, error)
	ListTeams(ctx context.Context) ([]model.Team, error)

	CurrentRound(ctx context.Context) (*model.Round, error)
	StartRound(ctx context.Context, theme string) (model.Round, error)
	Reveal(ctx context.Context, roundID uuid.UUID, actual float64) (model.Round, error)

	Submit(ctx context.Context, teamID, roundID uuid.UUID, predicted, bid float64) error
	RoundSubmissions(ctx context.Context, roundID uuid.UUID) ([]model.RoundSubmission, error)

	Settings(ctx context.Context) (map[string]string, error)
	UpdateSetting(ctx context.Context, key, value string) error

	Reset(ctx context.Context) error
	Stats(ctx context.Context) map[string]interface{}
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires HTTP routes for the game API.
type Server struct {
	teamsHandler       *TeamsHandler
	roundsHandler      *RoundsHandler
	submissionsHandler *SubmissionsHandler
	settingsHandler    *SettingsHandler
	adminHandler       *AdminHandler
	healthHandler      *HealthHandler

	adminKey string
}

// ServerOption applies a configuration option to the Server.
type ServerOption func(*Server)

// WithAdminKey sets the shared operator credential.
func WithAdminKey(key string) ServerOption {
	return func(s *Server) {
		if key != "" {
			s.adminKey = key
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, pinger Pinger, opts ...ServerOption) *Server {
	s := &Server{}
	for _, opt := range opts {
		opt(s)
	}

	s.teamsHandler = NewTeamsHandler(deps)
	s.roundsHandler = NewRoundsHandler(deps)
	s.submissionsHandler = NewSubmissionsHandler(deps)
	s.settingsHandler = NewSettingsHandler(deps)
	s.adminHandler = NewAdminHandler(deps, s.adminKey)
	s.healthHandler = NewHealthHandler(pinger)

	return s
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/metrics", s.healthHandler.HandleMetrics)

	mux.HandleFunc("/api/teams", MetricsMiddleware(s.teamsHandler.HandleListTeams, "teams"))
	mux.HandleFunc("/api/teams/join", MetricsMiddleware(s.teamsHandler.HandleJoin, "join"))
	mux.HandleFunc("/api/rounds/current", MetricsMiddleware(s.roundsHandler.HandleCurrentRound, "current_round"))
	mux.HandleFunc("/api/submissions", MetricsMiddleware(s.submissionsHandler.HandleSubmit, "submit"))
	mux.HandleFunc("/api/settings", MetricsMiddleware(s.settingsHandler.HandleListSettings, "settings"))

	mux.HandleFunc("/api/admin/login", MetricsMiddleware(s.adminHandler.HandleLogin, "login"))
	mux.HandleFunc("/api/admin/settings", MetricsMiddleware(s.requireAdmin(s.settingsHandler.HandleUpdateSetting), "admin_settings"))
	mux.HandleFunc("/api/admin/rounds", MetricsMiddleware(s.requireAdmin(s.roundsHandler.HandleStartRound), "start_round"))
	mux.HandleFunc("/api/admin/rounds/reveal", MetricsMiddleware(s.requireAdmin(s.roundsHandler.HandleReveal), "reveal"))
	mux.HandleFunc("/api/admin/submissions/", MetricsMiddleware(s.requireAdmin(s.submissionsHandler.HandleListForRound), "round_submissions"))
	mux.HandleFunc("/api/admin/stats", MetricsMiddleware(s.requireAdmin(s.adminHandler.HandleStats), "stats"))
	mux.HandleFunc("/api/admin/reset", MetricsMiddleware(s.requireAdmin(s.adminHandler.HandleReset), "reset"))
}

// requireAdmin rejects requests whose credential header does not match
// the configured operator key. The comparison is constant time.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "api.require_admin"
		key := r.Header.Get(adminKeyHeader)
		if s.adminKey == "" || subtle.ConstantTimeCompare([]byte(key), []byte(s.adminKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "unauthorized", NewKind(op, ErrUnauthorized))
			return
		}
		next(w, r)
	}
}

type successResponse struct {
	Success bool `json:"success"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeServiceError translates service errors into the status codes
// the API promises: domain rejections become 400, everything else is
// a 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		writeError(w, http.StatusBadRequest, "validation", err)
	case errors.Is(err, service.ErrConflict):
		writeError(w, http.StatusBadRequest, "conflict", err)
	case errors.Is(err, service.ErrInsufficientFunds):
		writeError(w, http.StatusBadRequest, "insufficient_funds", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal", err)
	}
}
