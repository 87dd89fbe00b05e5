// Package events defines the broadcast envelope pushed to connected
// viewers and the closed set of event types. Most events are
// invalidation signals: they tell clients which reads to refresh
// rather than carrying full state.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/okian/ballpark/internal/domain/model"
)

// Type identifies a broadcast event on the wire.
type Type string

// Broadcast event types.
const (
	TypeRoundStarted       Type = "RoundStarted"
	TypeRoundRevealed      Type = "RoundRevealed"
	TypeSubmissionReceived Type = "SubmissionReceived"
	TypeGameReset          Type = "GameReset"
	TypeSettingsUpdated    Type = "SettingsUpdated"
)

// Event is the envelope every broadcast message is wrapped in.
type Event struct {
	Type Type      `json:"type"`
	At   time.Time `json:"ts"`
	Data any       `json:"data,omitempty"`
}

// RoundRef is the slice of a round announced on RoundStarted.
type RoundRef struct {
	ID     string `json:"id"`
	Theme  string `json:"theme"`
	Status string `json:"status"`
}

// RoundStartedData announces a newly opened round.
type RoundStartedData struct {
	Round RoundRef `json:"round"`
}

// RoundRevealedData carries the revealed value. Scores and balances
// must be re-pulled; the event deliberately omits them.
type RoundRevealedData struct {
	RoundID     string  `json:"roundId"`
	ActualValue float64 `json:"actualValue"`
}

// SubmissionReceivedData names the team whose submission landed.
type SubmissionReceivedData struct {
	TeamID string `json:"teamId"`
}

// SettingsUpdatedData carries the changed setting.
type SettingsUpdatedData struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// New wraps a payload in an envelope stamped at the given time.
func New(t Type, at time.Time, data any) Event {
	return Event{Type: t, At: at, Data: data}
}

// RoundStarted announces a newly opened round.
func RoundStarted(at time.Time, r model.Round) Event {
	return New(TypeRoundStarted, at, RoundStartedData{Round: RoundRef{
		ID:     r.ID.String(),
		Theme:  r.Theme,
		Status: string(r.Status),
	}})
}

// RoundRevealed announces the revealed value for a round.
func RoundRevealed(at time.Time, roundID uuid.UUID, actual float64) Event {
	return New(TypeRoundRevealed, at, RoundRevealedData{
		RoundID:     roundID.String(),
		ActualValue: actual,
	})
}

// SubmissionReceived signals that a team's submission was accepted.
func SubmissionReceived(at time.Time, teamID uuid.UUID) Event {
	return New(TypeSubmissionReceived, at, SubmissionReceivedData{
		TeamID: teamID.String(),
	})
}

// GameReset signals that all game state was cleared.
func GameReset(at time.Time) Event {
	return New(TypeGameReset, at, nil)
}

// SettingsUpdated announces a changed setting.
func SettingsUpdated(at time.Time, key, value string) Event {
	return New(TypeSettingsUpdated, at, SettingsUpdatedData{
		Key:   key,
		Value: value,
	})
}
