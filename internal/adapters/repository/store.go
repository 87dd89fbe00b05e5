// Package repository defines the durable game store contract and its
// implementations.
package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/okian/ballpark/internal/domain/model"
)

// AbandonedRound reports a round that was forced to revealed without
// settlement because a new round started on top of it. Its submissions
// keep score 0 and are never settled.
type AbandonedRound struct {
	RoundID   uuid.UUID
	Unsettled int
}

// Store provides durable access to teams, rounds, submissions, and
// settings. Individual methods are atomic on their own; multi-statement
// units run through WithinTx.
type Store interface {
	// WithinTx runs fn against a transaction-bound store. A non-nil
	// error from fn rolls the transaction back, nil commits it. Calls
	// nested inside an open transaction reuse it.
	WithinTx(ctx context.Context, fn func(Store) error) error

	// CreateTeam inserts a team. Returns ErrDuplicate when the display
	// name is already taken.
	CreateTeam(ctx context.Context, t model.Team) error
	// GetTeam returns a team by id, or ErrNotFound.
	GetTeam(ctx context.Context, id uuid.UUID) (model.Team, error)
	// GetTeamForUpdate is GetTeam holding a row lock for the rest of
	// the enclosing transaction.
	GetTeamForUpdate(ctx context.Context, id uuid.UUID) (model.Team, error)
	// GetTeamByName returns a team by display name, or ErrNotFound.
	GetTeamByName(ctx context.Context, name string) (model.Team, error)
	// ListTeams returns all teams ordered by balance, richest first.
	ListTeams(ctx context.Context) ([]model.Team, error)
	// AdjustTeamBalance applies a delta to a team's balance.
	AdjustTeamBalance(ctx context.Context, id uuid.UUID, delta float64) error

	// CreateRound inserts a round and assigns its sequence number.
	CreateRound(ctx context.Context, r model.Round) (model.Round, error)
	// GetRound returns a round by id, or ErrNotFound.
	GetRound(ctx context.Context, id uuid.UUID) (model.Round, error)
	// GetRoundForUpdate is GetRound holding a row lock for the rest of
	// the enclosing transaction. Submit and reveal both take it, which
	// serializes intake against settlement.
	GetRoundForUpdate(ctx context.Context, id uuid.UUID) (model.Round, error)
	// CurrentRound returns the most recently created round, or
	// ErrNotFound when no round exists.
	CurrentRound(ctx context.Context) (model.Round, error)
	// SetRoundRevealed stores the actual value and flips the status to
	// revealed.
	SetRoundRevealed(ctx context.Context, id uuid.UUID, actual float64) error
	// ForceRevealOpen flips every non-revealed round to revealed
	// without touching actual values, scores, or balances, and reports
	// what was abandoned.
	ForceRevealOpen(ctx context.Context) ([]AbandonedRound, error)

	// CreateSubmission inserts a submission. Returns ErrDuplicate when
	// the team already submitted for the round.
	CreateSubmission(ctx context.Context, sub model.Submission) error
	// HasSubmission reports whether the team already submitted for the
	// round.
	HasSubmission(ctx context.Context, roundID, teamID uuid.UUID) (bool, error)
	// SettleSubmission writes the settled score and error percent.
	SettleSubmission(ctx context.Context, id uuid.UUID, score, errorPercent float64) error
	// ListSubmissionsByRound returns a round's submissions in arrival
	// order.
	ListSubmissionsByRound(ctx context.Context, roundID uuid.UUID) ([]model.Submission, error)
	// ListRoundSubmissions is ListSubmissionsByRound joined with team
	// names, for the operator view.
	ListRoundSubmissions(ctx context.Context, roundID uuid.UUID) ([]model.RoundSubmission, error)

	// ListSettings returns all settings.
	ListSettings(ctx context.Context) (map[string]string, error)
	// UpsertSetting stores a key/value pair, replacing any previous
	// value.
	UpsertSetting(ctx context.Context, key, value string) error

	// DeleteAllGameData removes all submissions, rounds, and teams in
	// one atomic sweep. Settings survive.
	DeleteAllGameData(ctx context.Context) error

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
	// Close releases held resources.
	Close()
}
