package service_test

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	service "github.com/okian/ballpark/internal/app"
	"github.com/okian/ballpark/internal/domain/events"
)

func TestServiceIntegration_GameNight(t *testing.T) {
	Convey("Given a full game night", t, func() {
		ctx := context.Background()
		bus := &busRecorder{}
		svc := newTestService(bus)

		alpha, err := svc.Join(ctx, "alpha")
		So(err, ShouldBeNil)
		beta, err := svc.Join(ctx, "beta")
		So(err, ShouldBeNil)
		gamma, err := svc.Join(ctx, "gamma")
		So(err, ShouldBeNil)

		Convey("When the first round plays out", func() {
			round, err := svc.StartRound(ctx, "wifi dropouts during the keynote")
			So(err, ShouldBeNil)

			So(svc.Submit(ctx, alpha.ID, round.ID, 40, 200), ShouldBeNil)
			So(svc.Submit(ctx, beta.ID, round.ID, 60, 500), ShouldBeNil)
			So(svc.Submit(ctx, gamma.ID, round.ID, 44, 100), ShouldBeNil)

			_, err = svc.Reveal(ctx, round.ID, 40)
			So(err, ShouldBeNil)

			Convey("Then the leaderboard reflects each outcome", func() {
				teams, err := svc.ListTeams(ctx)
				So(err, ShouldBeNil)
				So(len(teams), ShouldEqual, 3)

				// alpha nailed it: 2000 - 200 + 200*3.
				So(teams[0].Name, ShouldEqual, "alpha")
				So(teams[0].Balance, ShouldEqual, 2400.0)

				// gamma missed by 10%: 100 * (1/11) * 1.5 back.
				So(teams[1].Name, ShouldEqual, "gamma")
				So(teams[1].Balance, ShouldAlmostEqual, 1913.6363636363637, 1e-9)

				// beta missed by 50% and lost the whole bid.
				So(teams[2].Name, ShouldEqual, "beta")
				So(teams[2].Balance, ShouldEqual, 1500.0)
			})

			Convey("And a second round carries balances forward", func() {
				next, err := svc.StartRound(ctx, "emails ignored this week")
				So(err, ShouldBeNil)

				// beta goes all in on its reduced balance.
				So(svc.Submit(ctx, beta.ID, next.ID, 70, 1500), ShouldBeNil)
				So(errors.Is(
					svc.Submit(ctx, beta.ID, next.ID, 70, 1),
					service.ErrConflict,
				), ShouldBeTrue)

				_, err = svc.Reveal(ctx, next.ID, 70)
				So(err, ShouldBeNil)

				teams, err := svc.ListTeams(ctx)
				So(err, ShouldBeNil)
				So(teams[0].Name, ShouldEqual, "beta")
				So(teams[0].Balance, ShouldEqual, 4500.0)
				So(teams[1].Name, ShouldEqual, "alpha")
				So(teams[1].Balance, ShouldEqual, 2400.0)

				Convey("And viewers saw every transition in order", func() {
					So(bus.types(), ShouldResemble, []events.Type{
						events.TypeRoundStarted,
						events.TypeSubmissionReceived,
						events.TypeSubmissionReceived,
						events.TypeSubmissionReceived,
						events.TypeRoundRevealed,
						events.TypeRoundStarted,
						events.TypeSubmissionReceived,
						events.TypeRoundRevealed,
					})
				})
			})
		})
	})
}
