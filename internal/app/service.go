// Package service provides the core game service that implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	repository "github.com/okian/ballpark/internal/adapters/repository"
	"github.com/okian/ballpark/internal/domain/events"
	"github.com/okian/ballpark/internal/domain/model"
	"github.com/okian/ballpark/internal/domain/scoring"
	"github.com/okian/ballpark/pkg/logger"
	"github.com/okian/ballpark/pkg/metrics"
)

// defaultStartingBalance is every new team's opening coin balance.
const defaultStartingBalance = 2000

// Bus receives game events for fan-out to connected viewers. Delivery
// is best effort; the service never blocks on it.
type Bus interface {
	Publish(e events.Event)
}

// ViewerCounter reports how many viewers are currently connected.
type ViewerCounter interface {
	Clients() int
}

// Service implements the API dependencies for the prediction game.
type Service struct {
	store   repository.Store
	bus     Bus
	viewers ViewerCounter
	clock   clockwork.Clock

	startingBalance float64
	startedAt       time.Time

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the game store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithBus sets the event bus used to notify connected viewers.
func WithBus(bus Bus) Option {
	return func(s *Service) {
		if bus != nil {
			s.bus = bus
		}
	}
}

// WithViewerCounter sets the source for the connected-viewer stat.
func WithViewerCounter(vc ViewerCounter) Option {
	return func(s *Service) {
		if vc != nil {
			s.viewers = vc
		}
	}
}

// WithClock sets the time source. Tests substitute a fake clock.
func WithClock(clock clockwork.Clock) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithStartingBalance sets the opening balance for new teams.
func WithStartingBalance(balance float64) Option {
	return func(s *Service) {
		if balance > 0 {
			s.startingBalance = balance
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a new Service with default configuration. A store
// must be supplied via WithStore before any operation is called.
func New(opts ...Option) *Service {
	s := &Service{
		clock:           clockwork.NewRealClock(),
		startingBalance: defaultStartingBalance,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}
	s.startedAt = s.clock.Now().UTC()

	return s
}

// Join registers a team under the given display name and grants the
// starting balance. Joining with a name that is already taken returns
// the existing team, so a rejoining client gets its team back.
func (s *Service) Join(ctx context.Context, name string) (model.Team, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Team{}, fmt.Errorf("%w: team name is required", ErrValidation)
	}

	existing, err := s.store.GetTeamByName(ctx, name)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.Team{}, err
	}

	team := model.Team{
		ID:        uuid.New(),
		Name:      name,
		Balance:   s.startingBalance,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.store.CreateTeam(ctx, team); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race against an identical join; return the winner.
			return s.store.GetTeamByName(ctx, name)
		}
		return model.Team{}, err
	}

	s.logger.Info(ctx, "team joined",
		logger.String("team", team.Name),
		logger.String("teamID", team.ID.String()),
	)
	metrics.RecordTeamJoined()

	return team, nil
}

// ListTeams returns all teams ordered by balance, highest first.
func (s *Service) ListTeams(ctx context.Context) ([]model.Team, error) {
	return s.store.ListTeams(ctx)
}

// CurrentRound returns the most recently started round, or nil when
// no round has ever been started.
func (s *Service) CurrentRound(ctx context.Context) (*model.Round, error) {
	round, err := s.store.CurrentRound(ctx)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &round, nil
}

// StartRound opens a new round for submissions. Any round still open
// at that moment is force-closed first: its status flips to revealed
// without scoring or settlement, so its submissions stay unsettled.
// That carry-over loss is logged and counted but not repaired.
func (s *Service) StartRound(ctx context.Context, theme string) (model.Round, error) {
	theme = strings.TrimSpace(theme)
	if theme == "" {
		return model.Round{}, fmt.Errorf("%w: round theme is required", ErrValidation)
	}

	var (
		round     model.Round
		abandoned []repository.AbandonedRound
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		var err error
		abandoned, err = tx.ForceRevealOpen(ctx)
		if err != nil {
			return err
		}
		round, err = tx.CreateRound(ctx, model.Round{
			ID:        uuid.New(),
			Theme:     theme,
			Status:    model.RoundOpen,
			CreatedAt: s.clock.Now().UTC(),
		})
		return err
	})
	if err != nil {
		return model.Round{}, err
	}

	for _, a := range abandoned {
		s.logger.Warn(ctx, "force-closed unrevealed round, its submissions stay unsettled",
			logger.String("roundID", a.RoundID.String()),
			logger.Int("unsettled", a.Unsettled),
		)
		metrics.RecordSubmissionsAbandoned(a.Unsettled)
	}

	s.logger.Info(ctx, "round started",
		logger.String("roundID", round.ID.String()),
		logger.String("theme", round.Theme),
	)
	metrics.RecordRoundStarted()
	s.publish(events.RoundStarted(s.clock.Now().UTC(), round))

	return round, nil
}

// Submit records a team's prediction and bid against an open round.
// The round row is locked so a submission cannot slip in while a
// reveal is settling, then the team row so two in-flight submissions
// from the same team cannot both pass the balance check. Reveal
// touches the rows in the same round-then-team order.
func (s *Service) Submit(ctx context.Context, teamID, roundID uuid.UUID, predicted, bid float64) error {
	if !isFinite(predicted) {
		return fmt.Errorf("%w: predicted value must be a finite number", ErrValidation)
	}
	if !isFinite(bid) || bid <= 0 {
		return fmt.Errorf("%w: bid must be a positive number", ErrValidation)
	}

	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		round, err := tx.GetRoundForUpdate(ctx, roundID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: unknown round", ErrValidation)
			}
			return err
		}
		if round.Status != model.RoundOpen {
			return fmt.Errorf("%w: round is not open for submissions", ErrConflict)
		}
		team, err := tx.GetTeamForUpdate(ctx, teamID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: unknown team", ErrValidation)
			}
			return err
		}

		// The duplicate check outranks the funds check: a team that
		// already played this round gets the conflict even when its
		// second bid would also overdraw.
		taken, err := tx.HasSubmission(ctx, round.ID, team.ID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("%w: team already submitted for this round", ErrConflict)
		}
		if bid > team.Balance {
			return fmt.Errorf("%w: bid %.2f exceeds balance %.2f", ErrInsufficientFunds, bid, team.Balance)
		}

		err = tx.CreateSubmission(ctx, model.Submission{
			ID:             uuid.New(),
			RoundID:        round.ID,
			TeamID:         team.ID,
			PredictedValue: predicted,
			BidAmount:      bid,
			CreatedAt:      s.clock.Now().UTC(),
		})
		if errors.Is(err, repository.ErrDuplicate) {
			return fmt.Errorf("%w: team already submitted for this round", ErrConflict)
		}
		return err
	})
	if err != nil {
		metrics.RecordSubmissionRejected(rejectReason(err))
		return err
	}

	s.logger.Info(ctx, "submission accepted",
		logger.String("teamID", teamID.String()),
		logger.String("roundID", roundID.String()),
		logger.Float64("bid", bid),
	)
	metrics.RecordSubmissionAccepted()
	s.publish(events.SubmissionReceived(s.clock.Now().UTC(), teamID))

	return nil
}

// Reveal publishes the round's actual value, scores every submission,
// and settles each team's balance, all in one transaction. Revealing
// an already-revealed round fails with a conflict and changes
// nothing; settlement must never run twice.
func (s *Service) Reveal(ctx context.Context, roundID uuid.UUID, actual float64) (model.Round, error) {
	if !isFinite(actual) {
		return model.Round{}, fmt.Errorf("%w: actual value must be a finite number", ErrValidation)
	}

	var (
		round   model.Round
		settled int
	)
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		r, err := tx.GetRoundForUpdate(ctx, roundID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("%w: unknown round", ErrValidation)
			}
			return err
		}
		if r.Status == model.RoundRevealed {
			return fmt.Errorf("%w: round already revealed", ErrConflict)
		}
		if err := tx.SetRoundRevealed(ctx, r.ID, actual); err != nil {
			return err
		}

		subs, err := tx.ListSubmissionsByRound(ctx, r.ID)
		if err != nil {
			return err
		}
		for _, sub := range subs {
			res := scoring.Evaluate(sub.PredictedValue, actual, sub.BidAmount)
			if err := tx.SettleSubmission(ctx, sub.ID, res.FinalScore, res.ErrorPercent); err != nil {
				return err
			}
			if err := tx.AdjustTeamBalance(ctx, sub.TeamID, res.FinalScore-sub.BidAmount); err != nil {
				return err
			}
		}
		settled = len(subs)

		r.ActualValue = &actual
		r.Status = model.RoundRevealed
		round = r
		return nil
	})
	if err != nil {
		return model.Round{}, err
	}

	s.logger.Info(ctx, "round revealed",
		logger.String("roundID", round.ID.String()),
		logger.Float64("actualValue", actual),
		logger.Int("settled", settled),
	)
	metrics.RecordRoundRevealed(settled)
	s.publish(events.RoundRevealed(s.clock.Now().UTC(), round.ID, actual))

	return round, nil
}

// RoundSubmissions returns a round's submissions in arrival order,
// with team names attached for display. An unknown round yields an
// empty list.
func (s *Service) RoundSubmissions(ctx context.Context, roundID uuid.UUID) ([]model.RoundSubmission, error) {
	return s.store.ListRoundSubmissions(ctx, roundID)
}

// Settings returns all display settings as a flat key-value map.
func (s *Service) Settings(ctx context.Context) (map[string]string, error) {
	return s.store.ListSettings(ctx)
}

// UpdateSetting stores one display setting and notifies viewers.
func (s *Service) UpdateSetting(ctx context.Context, key, value string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("%w: setting key is required", ErrValidation)
	}

	if err := s.store.UpsertSetting(ctx, key, value); err != nil {
		return err
	}
	s.publish(events.SettingsUpdated(s.clock.Now().UTC(), key, value))
	return nil
}

// Reset wipes teams, rounds, and submissions in one transaction, so a
// failed reset leaves prior state intact. Settings survive.
func (s *Service) Reset(ctx context.Context) error {
	err := s.store.WithinTx(ctx, func(tx repository.Store) error {
		return tx.DeleteAllGameData(ctx)
	})
	if err != nil {
		return err
	}

	s.logger.Warn(ctx, "all game data wiped")
	metrics.RecordGameReset()
	s.publish(events.GameReset(s.clock.Now().UTC()))
	return nil
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(ctx context.Context) map[string]interface{} {
	stats := map[string]interface{}{
		"uptime": s.clock.Since(s.startedAt).String(),
	}

	if teams, err := s.store.ListTeams(ctx); err == nil {
		total := 0.0
		for _, t := range teams {
			total += t.Balance
		}
		stats["teams"] = len(teams)
		stats["totalBalance"] = total

		metrics.UpdateTeamCount(len(teams))
		metrics.UpdateTotalBalance(total)
	}

	if round, err := s.CurrentRound(ctx); err == nil && round != nil {
		stats["currentRound"] = map[string]interface{}{
			"id":     round.ID.String(),
			"theme":  round.Theme,
			"status": string(round.Status),
		}
	}

	if s.viewers != nil {
		n := s.viewers.Clients()
		stats["viewers"] = n
		metrics.UpdateConnectedClients(n)
	}

	return stats
}

func (s *Service) publish(e events.Event) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(e)
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrValidation):
		return "validation"
	default:
		return "error"
	}
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
