// Package model contains domain models passed between layers.
package model

import (
	"time"

	"github.com/google/uuid"
)

// RoundStatus is the lifecycle state of a round. The set is closed: a
// round is created open and moves to revealed exactly once.
type RoundStatus string

// Round lifecycle states.
const (
	RoundOpen     RoundStatus = "open"
	RoundRevealed RoundStatus = "revealed"
)

// Valid reports whether s is a known round status.
func (s RoundStatus) Valid() bool {
	return s == RoundOpen || s == RoundRevealed
}

// Team is a participant in the game. The name is unique and immutable
// after join; the balance changes only through round settlement and
// starts at the configured joining balance.
type Team struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

// Round is one prediction challenge. ActualValue stays nil until the
// operator reveals the round. Seq is a store-assigned ordinal used to
// pick the current round (highest wins); it is not part of the wire
// format.
type Round struct {
	ID          uuid.UUID   `json:"id"`
	Theme       string      `json:"theme"`
	ActualValue *float64    `json:"actual_value"`
	Status      RoundStatus `json:"status"`
	Seq         int64       `json:"-"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Submission is a team's single prediction and coin bid for a round.
// Score and ErrorPercent are written exactly once, at settlement, and
// the row is immutable afterwards.
type Submission struct {
	ID             uuid.UUID `json:"id"`
	RoundID        uuid.UUID `json:"round_id"`
	TeamID         uuid.UUID `json:"team_id"`
	PredictedValue float64   `json:"predicted_value"`
	BidAmount      float64   `json:"bid_amount"`
	Score          float64   `json:"score"`
	ErrorPercent   *float64  `json:"error_percent"`
	CreatedAt      time.Time `json:"created_at"`
}

// RoundSubmission is the operator read model: a submission joined with
// the owning team's display name.
type RoundSubmission struct {
	Submission
	TeamName string `json:"team_name"`
}
