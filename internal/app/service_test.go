package service_test

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/ballpark/internal/adapters/repository"
	service "github.com/okian/ballpark/internal/app"
	"github.com/okian/ballpark/internal/domain/events"
	"github.com/okian/ballpark/pkg/logger"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// busRecorder captures published events for assertions.
type busRecorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *busRecorder) Publish(e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *busRecorder) types() []events.Type {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]events.Type, len(b.events))
	for i, e := range b.events {
		out[i] = e.Type
	}
	return out
}

func (b *busRecorder) last() events.Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.events) == 0 {
		return events.Event{}
	}
	return b.events[len(b.events)-1]
}

type viewerStub int

func (v viewerStub) Clients() int { return int(v) }

func newTestService(bus *busRecorder) *service.Service {
	return service.New(
		service.WithStore(repository.NewMemStore()),
		service.WithBus(bus),
		service.WithClock(clockwork.NewFakeClockAt(
			time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		)),
	)
}

func TestService_Join(t *testing.T) {
	Convey("Given a fresh game", t, func() {
		ctx := context.Background()
		bus := &busRecorder{}
		svc := newTestService(bus)

		Convey("When a team joins", func() {
			team, err := svc.Join(ctx, "the regressors")

			Convey("Then it gets an id and the starting balance", func() {
				So(err, ShouldBeNil)
				So(team.ID, ShouldNotEqual, uuid.Nil)
				So(team.Name, ShouldEqual, "the regressors")
				So(team.Balance, ShouldEqual, 2000.0)
			})

			Convey("And joining again with the same name returns the same team", func() {
				again, err := svc.Join(ctx, "the regressors")
				So(err, ShouldBeNil)
				So(again.ID, ShouldEqual, team.ID)

				teams, err := svc.ListTeams(ctx)
				So(err, ShouldBeNil)
				So(len(teams), ShouldEqual, 1)
			})
		})

		Convey("When the name is surrounded by whitespace", func() {
			team, err := svc.Join(ctx, "  padded  ")

			Convey("Then the stored name is trimmed", func() {
				So(err, ShouldBeNil)
				So(team.Name, ShouldEqual, "padded")
			})
		})

		Convey("When the name is empty or blank", func() {
			_, emptyErr := svc.Join(ctx, "")
			_, blankErr := svc.Join(ctx, "   ")

			Convey("Then both fail validation", func() {
				So(errors.Is(emptyErr, service.ErrValidation), ShouldBeTrue)
				So(errors.Is(blankErr, service.ErrValidation), ShouldBeTrue)
			})
		})
	})
}

func TestService_StartRound(t *testing.T) {
	Convey("Given a fresh game", t, func() {
		ctx := context.Background()
		bus := &busRecorder{}
		svc := newTestService(bus)

		Convey("When the operator starts a round", func() {
			round, err := svc.StartRound(ctx, "lines of YAML in the repo")

			Convey("Then the round is open and becomes current", func() {
				So(err, ShouldBeNil)
				So(round.Theme, ShouldEqual, "lines of YAML in the repo")
				So(string(round.Status), ShouldEqual, "open")
				So(round.ActualValue, ShouldBeNil)

				current, err := svc.CurrentRound(ctx)
				So(err, ShouldBeNil)
				So(current, ShouldNotBeNil)
				So(current.ID, ShouldEqual, round.ID)
			})

			Convey("And a RoundStarted event is published", func() {
				So(bus.types(), ShouldContain, events.TypeRoundStarted)
			})
		})

		Convey("When the theme is blank", func() {
			_, err := svc.StartRound(ctx, "  ")

			Convey("Then it fails validation", func() {
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When no round has ever started", func() {
			current, err := svc.CurrentRound(ctx)

			Convey("Then current round is nil without error", func() {
				So(err, ShouldBeNil)
				So(current, ShouldBeNil)
			})
		})
	})
}

func TestService_StartRound_ForceCloses(t *testing.T) {
	Convey("Given an open round holding a submission", t, func() {
		ctx := context.Background()
		bus := &busRecorder{}
		svc := newTestService(bus)

		team, err := svc.Join(ctx, "alpha")
		So(err, ShouldBeNil)
		first, err := svc.StartRound(ctx, "first")
		So(err, ShouldBeNil)
		So(svc.Submit(ctx, team.ID, first.ID, 10, 500), ShouldBeNil)

		Convey("When a second round starts", func() {
			second, err := svc.StartRound(ctx, "second")
			So(err, ShouldBeNil)

			Convey("Then the first round is force-closed without settlement", func() {
				subs, err := svc.RoundSubmissions(ctx, first.ID)
				So(err, ShouldBeNil)
				So(len(subs), ShouldEqual, 1)
				So(subs[0].Score, ShouldEqual, 0.0)
				So(subs[0].ErrorPercent, ShouldBeNil)

				// The bid is never debited, so the balance is untouched.
				teams, err := svc.ListTeams(ctx)
				So(err, ShouldBeNil)
				So(teams[0].Balance, ShouldEqual, 2000.0)
			})

			Convey("And submitting to the closed round now conflicts", func() {
				err := svc.Submit(ctx, team.ID, first.ID, 10, 100)
				So(errors.Is(err, service.ErrConflict), ShouldBeTrue)
			})

			Convey("And the second round is current", func() {
				current, err := svc.CurrentRound(ctx)
				So(err, ShouldBeNil)
				So(current.ID, ShouldEqual, second.ID)
			})
		})
	})
}

func TestService_Submit(t *testing.T) {
	Convey("Given a team and an open round", t, func() {
		ctx := context.Background()
		bus := &busRecorder{}
		svc := newTestService(bus)

		team, err := svc.Join(ctx, "alpha")
		So(err, ShouldBeNil)
		round, err := svc.StartRound(ctx, "coffee cups today")
		So(err, ShouldBeNil)

		Convey("When the team submits a valid prediction", func() {
			err := svc.Submit(ctx, team.ID, round.ID, 42, 250)

			Convey("Then it is recorded with the bid intact", func() {
				So(err, ShouldBeNil)

				subs, err := svc.RoundSubmissions(ctx, round.ID)
				So(err, ShouldBeNil)
				So(len(subs), ShouldEqual, 1)
				So(subs[0].PredictedValue, ShouldEqual, 42.0)
				So(subs[0].BidAmount, ShouldEqual, 250.0)
				So(subs[0].TeamName, ShouldEqual, "alpha")
			})

			Convey("And a SubmissionReceived event carries the team id", func() {
				last := bus.last()
				So(last.Type, ShouldEqual, events.TypeSubmissionReceived)
				data, ok := last.Data.(events.SubmissionReceivedData)
				So(ok, ShouldBeTrue)
				So(data.TeamID, ShouldEqual, team.ID.String())
			})

			Convey("And a second submission for the same round conflicts", func() {
				err := svc.Submit(ctx, team.ID, round.ID, 50, 100)
				So(errors.Is(err, service.ErrConflict), ShouldBeTrue)
			})

			Convey("And an overdrawn second submission still reports the conflict", func() {
				err := svc.Submit(ctx, team.ID, round.ID, 50, 99999)
				So(errors.Is(err, service.ErrConflict), ShouldBeTrue)
				So(errors.Is(err, service.ErrInsufficientFunds), ShouldBeFalse)
			})
		})

		Convey("When the bid exceeds the balance", func() {
			err := svc.Submit(ctx, team.ID, round.ID, 42, 2000.01)

			Convey("Then it fails with insufficient funds", func() {
				So(errors.Is(err, service.ErrInsufficientFunds), ShouldBeTrue)
			})
		})

		Convey("When the bid equals the balance exactly", func() {
			err := svc.Submit(ctx, team.ID, round.ID, 42, 2000)

			Convey("Then it is accepted", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When the bid is zero or negative", func() {
			zeroErr := svc.Submit(ctx, team.ID, round.ID, 42, 0)
			negErr := svc.Submit(ctx, team.ID, round.ID, 42, -5)

			Convey("Then both fail validation", func() {
				So(errors.Is(zeroErr, service.ErrValidation), ShouldBeTrue)
				So(errors.Is(negErr, service.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When the prediction is not finite", func() {
			nanErr := svc.Submit(ctx, team.ID, round.ID, math.NaN(), 100)
			infErr := svc.Submit(ctx, team.ID, round.ID, math.Inf(1), 100)

			Convey("Then both fail validation", func() {
				So(errors.Is(nanErr, service.ErrValidation), ShouldBeTrue)
				So(errors.Is(infErr, service.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When the team or round is unknown", func() {
			teamErr := svc.Submit(ctx, uuid.New(), round.ID, 42, 100)
			roundErr := svc.Submit(ctx, team.ID, uuid.New(), 42, 100)

			Convey("Then both fail validation", func() {
				So(errors.Is(teamErr, service.ErrValidation), ShouldBeTrue)
				So(errors.Is(roundErr, service.ErrValidation), ShouldBeTrue)
			})
		})
	})
}

func TestService_Reveal(t *testing.T) {
	Convey("Given two teams with submissions in an open round", t, func() {
		ctx := context.Background()
		bus := &busRecorder{}
		svc := newTestService(bus)

		exact, err := svc.Join(ctx, "exact")
		So(err, ShouldBeNil)
		wild, err := svc.Join(ctx, "wild")
		So(err, ShouldBeNil)
		round, err := svc.StartRound(ctx, "attendees downstairs")
		So(err, ShouldBeNil)

		// One submission lands dead on, the other misses by 50%.
		So(svc.Submit(ctx, exact.ID, round.ID, 100, 100), ShouldBeNil)
		So(svc.Submit(ctx, wild.ID, round.ID, 150, 100), ShouldBeNil)

		Convey("When the operator reveals the actual value", func() {
			revealed, err := svc.Reveal(ctx, round.ID, 100)

			Convey("Then the round carries the value and status", func() {
				So(err, ShouldBeNil)
				So(revealed.ActualValue, ShouldNotBeNil)
				So(*revealed.ActualValue, ShouldEqual, 100.0)
				So(string(revealed.Status), ShouldEqual, "revealed")
			})

			Convey("And every submission is settled", func() {
				subs, err := svc.RoundSubmissions(ctx, round.ID)
				So(err, ShouldBeNil)
				So(len(subs), ShouldEqual, 2)

				// A perfect guess triples the bid: 100 * 1 * 3.0.
				So(subs[0].Score, ShouldEqual, 300.0)
				So(subs[0].ErrorPercent, ShouldNotBeNil)
				So(*subs[0].ErrorPercent, ShouldEqual, 0.0)

				// A 50% miss is past the total-loss line.
				So(subs[1].Score, ShouldEqual, 0.0)
				So(*subs[1].ErrorPercent, ShouldEqual, 50.0)
			})

			Convey("And balances settle as bid returned plus winnings", func() {
				teams, err := svc.ListTeams(ctx)
				So(err, ShouldBeNil)
				So(teams[0].Name, ShouldEqual, "exact")
				So(teams[0].Balance, ShouldEqual, 2200.0)
				So(teams[1].Name, ShouldEqual, "wild")
				So(teams[1].Balance, ShouldEqual, 1900.0)
			})

			Convey("And a RoundRevealed event carries id and value", func() {
				last := bus.last()
				So(last.Type, ShouldEqual, events.TypeRoundRevealed)
				data, ok := last.Data.(events.RoundRevealedData)
				So(ok, ShouldBeTrue)
				So(data.RoundID, ShouldEqual, round.ID.String())
				So(data.ActualValue, ShouldEqual, 100.0)
			})

			Convey("And a second reveal conflicts without touching balances", func() {
				_, err := svc.Reveal(ctx, round.ID, 500)
				So(errors.Is(err, service.ErrConflict), ShouldBeTrue)

				teams, listErr := svc.ListTeams(ctx)
				So(listErr, ShouldBeNil)
				So(teams[0].Balance, ShouldEqual, 2200.0)
				So(teams[1].Balance, ShouldEqual, 1900.0)
			})
		})

		Convey("When the actual value is not finite", func() {
			_, err := svc.Reveal(ctx, round.ID, math.Inf(-1))

			Convey("Then it fails validation", func() {
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When the round is unknown", func() {
			_, err := svc.Reveal(ctx, uuid.New(), 100)

			Convey("Then it fails validation", func() {
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
			})
		})
	})
}

func TestService_BalanceConservation(t *testing.T) {
	Convey("Given several teams betting on one round", t, func() {
		ctx := context.Background()
		bus := &busRecorder{}
		svc := newTestService(bus)

		names := []string{"a", "b", "c", "d"}
		predictions := []float64{95, 104, 111, 200}
		bids := []float64{100, 250, 400, 1000}

		teams := make([]uuid.UUID, len(names))
		for i, name := range names {
			team, err := svc.Join(ctx, name)
			So(err, ShouldBeNil)
			teams[i] = team.ID
		}
		round, err := svc.StartRound(ctx, "open pull requests")
		So(err, ShouldBeNil)
		for i := range teams {
			So(svc.Submit(ctx, teams[i], round.ID, predictions[i], bids[i]), ShouldBeNil)
		}

		Convey("When the round settles", func() {
			_, err := svc.Reveal(ctx, round.ID, 100)
			So(err, ShouldBeNil)

			Convey("Then total balance moved exactly by the settled deltas", func() {
				subs, err := svc.RoundSubmissions(ctx, round.ID)
				So(err, ShouldBeNil)

				expectedShift := 0.0
				for _, sub := range subs {
					expectedShift += sub.Score - sub.BidAmount
				}

				listed, err := svc.ListTeams(ctx)
				So(err, ShouldBeNil)
				total := 0.0
				for _, tm := range listed {
					total += tm.Balance
				}
				So(total, ShouldAlmostEqual, 2000.0*float64(len(names))+expectedShift)
			})
		})
	})
}

func TestService_ConcurrentSubmissions(t *testing.T) {
	Convey("Given one team racing itself on one round", t, func() {
		ctx := context.Background()
		bus := &busRecorder{}
		svc := newTestService(bus)

		team, err := svc.Join(ctx, "alpha")
		So(err, ShouldBeNil)
		round, err := svc.StartRound(ctx, "contended")
		So(err, ShouldBeNil)

		Convey("When many submissions arrive at once", func() {
			const workers = 16
			var wg sync.WaitGroup
			results := make(chan error, workers)

			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func(n int) {
					defer wg.Done()
					// Every bid is the full balance, so a double accept
					// would also be an overdraft.
					results <- svc.Submit(ctx, team.ID, round.ID, float64(n), 2000)
				}(i)
			}
			wg.Wait()
			close(results)

			Convey("Then exactly one wins and the rest conflict", func() {
				successes, conflicts := 0, 0
				for err := range results {
					switch {
					case err == nil:
						successes++
					case errors.Is(err, service.ErrConflict):
						conflicts++
					default:
						t.Errorf("unexpected error: %v", err)
					}
				}
				So(successes, ShouldEqual, 1)
				So(conflicts, ShouldEqual, workers-1)

				subs, err := svc.RoundSubmissions(ctx, round.ID)
				So(err, ShouldBeNil)
				So(len(subs), ShouldEqual, 1)
			})
		})
	})
}

func TestService_Settings(t *testing.T) {
	Convey("Given a fresh game", t, func() {
		ctx := context.Background()
		bus := &busRecorder{}
		svc := newTestService(bus)

		Convey("When the operator stores settings", func() {
			So(svc.UpdateSetting(ctx, "title", "Guess Night"), ShouldBeNil)
			So(svc.UpdateSetting(ctx, "round_length", "90s"), ShouldBeNil)
			So(svc.UpdateSetting(ctx, "title", "Guess Night II"), ShouldBeNil)

			Convey("Then the latest values are listed", func() {
				settings, err := svc.Settings(ctx)
				So(err, ShouldBeNil)
				So(settings["title"], ShouldEqual, "Guess Night II")
				So(settings["round_length"], ShouldEqual, "90s")
			})

			Convey("And each update is broadcast", func() {
				last := bus.last()
				So(last.Type, ShouldEqual, events.TypeSettingsUpdated)
				data, ok := last.Data.(events.SettingsUpdatedData)
				So(ok, ShouldBeTrue)
				So(data.Key, ShouldEqual, "title")
				So(data.Value, ShouldEqual, "Guess Night II")
			})
		})

		Convey("When the key is blank", func() {
			err := svc.UpdateSetting(ctx, "  ", "x")

			Convey("Then it fails validation", func() {
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
			})
		})
	})
}

func TestService_Reset(t *testing.T) {
	Convey("Given a game in full swing", t, func() {
		ctx := context.Background()
		bus := &busRecorder{}
		svc := newTestService(bus)

		team, err := svc.Join(ctx, "alpha")
		So(err, ShouldBeNil)
		round, err := svc.StartRound(ctx, "doomed")
		So(err, ShouldBeNil)
		So(svc.Submit(ctx, team.ID, round.ID, 10, 100), ShouldBeNil)
		So(svc.UpdateSetting(ctx, "title", "Guess Night"), ShouldBeNil)

		Convey("When the operator resets", func() {
			So(svc.Reset(ctx), ShouldBeNil)

			Convey("Then teams, rounds, and submissions are gone", func() {
				teams, err := svc.ListTeams(ctx)
				So(err, ShouldBeNil)
				So(len(teams), ShouldEqual, 0)

				current, err := svc.CurrentRound(ctx)
				So(err, ShouldBeNil)
				So(current, ShouldBeNil)

				subs, err := svc.RoundSubmissions(ctx, round.ID)
				So(err, ShouldBeNil)
				So(len(subs), ShouldEqual, 0)
			})

			Convey("And settings survive", func() {
				settings, err := svc.Settings(ctx)
				So(err, ShouldBeNil)
				So(settings["title"], ShouldEqual, "Guess Night")
			})

			Convey("And a GameReset event is published", func() {
				So(bus.last().Type, ShouldEqual, events.TypeGameReset)
			})

			Convey("And the game restarts cleanly", func() {
				fresh, err := svc.Join(ctx, "alpha")
				So(err, ShouldBeNil)
				So(fresh.Balance, ShouldEqual, 2000.0)
				So(fresh.ID, ShouldNotEqual, team.ID)
			})
		})
	})
}

func TestService_Stats(t *testing.T) {
	Convey("Given a running game with viewers", t, func() {
		ctx := context.Background()
		bus := &busRecorder{}
		svc := service.New(
			service.WithStore(repository.NewMemStore()),
			service.WithBus(bus),
			service.WithViewerCounter(viewerStub(3)),
		)

		_, err := svc.Join(ctx, "alpha")
		So(err, ShouldBeNil)
		_, err = svc.Join(ctx, "beta")
		So(err, ShouldBeNil)
		round, err := svc.StartRound(ctx, "live")
		So(err, ShouldBeNil)

		Convey("When stats are collected", func() {
			stats := svc.Stats(ctx)

			Convey("Then they cover teams, balance, round, and viewers", func() {
				So(stats["teams"], ShouldEqual, 2)
				So(stats["totalBalance"], ShouldEqual, 4000.0)
				So(stats["viewers"], ShouldEqual, 3)

				current, ok := stats["currentRound"].(map[string]interface{})
				So(ok, ShouldBeTrue)
				So(current["id"], ShouldEqual, round.ID.String())
				So(current["status"], ShouldEqual, "open")
			})
		})
	})
}
