package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/okian/ballpark/internal/domain/model"
)

func testTeam(name string, balance float64) model.Team {
	return model.Team{
		ID:        uuid.New(),
		Name:      name,
		Balance:   balance,
		CreatedAt: time.Now().UTC(),
	}
}

func testRound(theme string) model.Round {
	return model.Round{
		ID:        uuid.New(),
		Theme:     theme,
		Status:    model.RoundOpen,
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemStore_TeamOperations(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	alpha := testTeam("alpha", 2000)
	if err := store.CreateTeam(ctx, alpha); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Duplicate name is rejected
	clash := testTeam("alpha", 2000)
	if err := store.CreateTeam(ctx, clash); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	got, err := store.GetTeam(ctx, alpha.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "alpha" || got.Balance != 2000 {
		t.Errorf("unexpected team: %+v", got)
	}

	byName, err := store.GetTeamByName(ctx, "alpha")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byName.ID != alpha.ID {
		t.Errorf("expected team %s, got %s", alpha.ID, byName.ID)
	}

	if _, err := store.GetTeam(ctx, uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := store.GetTeamByName(ctx, "nobody"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.AdjustTeamBalance(ctx, alpha.ID, -150); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = store.GetTeam(ctx, alpha.ID)
	if got.Balance != 1850 {
		t.Errorf("expected balance 1850, got %f", got.Balance)
	}

	if err := store.AdjustTeamBalance(ctx, uuid.New(), 10); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStore_ListTeamsOrdering(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	// Two teams tie on balance; the tie breaks on name.
	for _, tm := range []model.Team{
		testTeam("zebra", 500),
		testTeam("apple", 500),
		testTeam("rich", 3000),
		testTeam("poor", 10),
	} {
		if err := store.CreateTeam(ctx, tm); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	teams, err := store.ListTeams(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []string{"rich", "apple", "zebra", "poor"}
	if len(teams) != len(want) {
		t.Fatalf("expected %d teams, got %d", len(want), len(teams))
	}
	for i, name := range want {
		if teams[i].Name != name {
			t.Errorf("position %d: expected %s, got %s", i, name, teams[i].Name)
		}
	}
}

func TestMemStore_RoundOperations(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	if _, err := store.CurrentRound(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on empty store, got %v", err)
	}

	first, err := store.CreateRound(ctx, testRound("launch day"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := store.CreateRound(ctx, testRound("coffee consumed"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Seq <= first.Seq {
		t.Errorf("expected increasing seq, got %d then %d", first.Seq, second.Seq)
	}

	// The newest round by seq is current, independent of wall clock.
	current, err := store.CurrentRound(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current.ID != second.ID {
		t.Errorf("expected current round %s, got %s", second.ID, current.ID)
	}

	if err := store.SetRoundRevealed(ctx, second.ID, 42.5); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, err := store.GetRound(ctx, second.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != model.RoundRevealed {
		t.Errorf("expected status %s, got %s", model.RoundRevealed, got.Status)
	}
	if got.ActualValue == nil || *got.ActualValue != 42.5 {
		t.Errorf("expected actual value 42.5, got %v", got.ActualValue)
	}

	if err := store.SetRoundRevealed(ctx, uuid.New(), 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestMemStore_Submissions(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	team := testTeam("alpha", 2000)
	other := testTeam("beta", 2000)
	if err := store.CreateTeam(ctx, team); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.CreateTeam(ctx, other); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	round, err := store.CreateRound(ctx, testRound("humidity"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub := model.Submission{
		ID:             uuid.New(),
		RoundID:        round.ID,
		TeamID:         team.ID,
		PredictedValue: 70,
		BidAmount:      100,
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.CreateSubmission(ctx, sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ok, err := store.HasSubmission(ctx, round.ID, team.ID); err != nil || !ok {
		t.Errorf("expected submission to exist, got ok=%v err=%v", ok, err)
	}
	if ok, err := store.HasSubmission(ctx, round.ID, other.ID); err != nil || ok {
		t.Errorf("expected no submission yet, got ok=%v err=%v", ok, err)
	}

	// Second submission for the same team and round is rejected.
	again := sub
	again.ID = uuid.New()
	again.PredictedValue = 75
	if err := store.CreateSubmission(ctx, again); !errors.Is(err, ErrDuplicate) {
		t.Errorf("expected ErrDuplicate, got %v", err)
	}

	// A different team may submit to the same round.
	otherSub := model.Submission{
		ID:             uuid.New(),
		RoundID:        round.ID,
		TeamID:         other.ID,
		PredictedValue: 55,
		BidAmount:      40,
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.CreateSubmission(ctx, otherSub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.SettleSubmission(ctx, sub.ID, 120.5, 3.2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.SettleSubmission(ctx, uuid.New(), 0, 0); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	subs, err := store.ListSubmissionsByRound(ctx, round.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(subs))
	}
	// Arrival order is preserved.
	if subs[0].ID != sub.ID || subs[1].ID != otherSub.ID {
		t.Errorf("unexpected order: %s then %s", subs[0].ID, subs[1].ID)
	}
	if subs[0].Score != 120.5 {
		t.Errorf("expected settled score 120.5, got %f", subs[0].Score)
	}
	if subs[0].ErrorPercent == nil || *subs[0].ErrorPercent != 3.2 {
		t.Errorf("expected error percent 3.2, got %v", subs[0].ErrorPercent)
	}
	if subs[1].ErrorPercent != nil {
		t.Errorf("expected unsettled submission, got error percent %v", subs[1].ErrorPercent)
	}

	detailed, err := store.ListRoundSubmissions(ctx, round.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(detailed) != 2 {
		t.Fatalf("expected 2 submissions, got %d", len(detailed))
	}
	if detailed[0].TeamName != "alpha" || detailed[1].TeamName != "beta" {
		t.Errorf("unexpected team names: %s, %s", detailed[0].TeamName, detailed[1].TeamName)
	}
}

func TestMemStore_ForceRevealOpen(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	team := testTeam("alpha", 2000)
	if err := store.CreateTeam(ctx, team); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stale, _ := store.CreateRound(ctx, testRound("stale"))
	done, _ := store.CreateRound(ctx, testRound("done"))
	if err := store.SetRoundRevealed(ctx, done.ID, 9); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	sub := model.Submission{
		ID:             uuid.New(),
		RoundID:        stale.ID,
		TeamID:         team.ID,
		PredictedValue: 1,
		BidAmount:      10,
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.CreateSubmission(ctx, sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	abandoned, err := store.ForceRevealOpen(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(abandoned) != 1 {
		t.Fatalf("expected 1 abandoned round, got %d", len(abandoned))
	}
	if abandoned[0].RoundID != stale.ID {
		t.Errorf("expected round %s, got %s", stale.ID, abandoned[0].RoundID)
	}
	if abandoned[0].Unsettled != 1 {
		t.Errorf("expected 1 unsettled submission, got %d", abandoned[0].Unsettled)
	}

	got, _ := store.GetRound(ctx, stale.ID)
	if got.Status != model.RoundRevealed {
		t.Errorf("expected forced round to be revealed, got %s", got.Status)
	}
	// A force-closed round has no actual value.
	if got.ActualValue != nil {
		t.Errorf("expected nil actual value, got %v", got.ActualValue)
	}

	// Nothing left open, so a second pass reports nothing.
	abandoned, err = store.ForceRevealOpen(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(abandoned) != 0 {
		t.Errorf("expected no abandoned rounds, got %d", len(abandoned))
	}
}

func TestMemStore_WithinTx(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	team := testTeam("alpha", 2000)
	if err := store.CreateTeam(ctx, team); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// An error from the callback discards every change made inside it.
	sentinel := errors.New("boom")
	err := store.WithinTx(ctx, func(tx Store) error {
		if err := tx.AdjustTeamBalance(ctx, team.ID, -500); err != nil {
			return err
		}
		if _, err := tx.CreateRound(ctx, testRound("doomed")); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	got, _ := store.GetTeam(ctx, team.ID)
	if got.Balance != 2000 {
		t.Errorf("expected rolled-back balance 2000, got %f", got.Balance)
	}
	if _, err := store.CurrentRound(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected no rounds after rollback, got %v", err)
	}

	// A successful callback commits atomically.
	var created model.Round
	err = store.WithinTx(ctx, func(tx Store) error {
		if err := tx.AdjustTeamBalance(ctx, team.ID, -500); err != nil {
			return err
		}
		r, err := tx.CreateRound(ctx, testRound("kept"))
		if err != nil {
			return err
		}
		created = r

		// Nested calls reuse the open transaction.
		return tx.WithinTx(ctx, func(inner Store) error {
			return inner.UpsertSetting(ctx, "phase", "two")
		})
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = store.GetTeam(ctx, team.ID)
	if got.Balance != 1500 {
		t.Errorf("expected balance 1500, got %f", got.Balance)
	}
	current, err := store.CurrentRound(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if current.ID != created.ID {
		t.Errorf("expected round %s, got %s", created.ID, current.ID)
	}
	settings, _ := store.ListSettings(ctx)
	if settings["phase"] != "two" {
		t.Errorf("expected nested write to commit, got %v", settings)
	}
}

func TestMemStore_DeleteAllGameData(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	team := testTeam("alpha", 2000)
	if err := store.CreateTeam(ctx, team); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	round, _ := store.CreateRound(ctx, testRound("wiped"))
	sub := model.Submission{
		ID:             uuid.New(),
		RoundID:        round.ID,
		TeamID:         team.ID,
		PredictedValue: 1,
		BidAmount:      1,
		CreatedAt:      time.Now().UTC(),
	}
	if err := store.CreateSubmission(ctx, sub); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := store.UpsertSetting(ctx, "title", "office games"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := store.DeleteAllGameData(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	teams, _ := store.ListTeams(ctx)
	if len(teams) != 0 {
		t.Errorf("expected no teams, got %d", len(teams))
	}
	if _, err := store.CurrentRound(ctx); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected no rounds, got %v", err)
	}
	subs, _ := store.ListSubmissionsByRound(ctx, round.ID)
	if len(subs) != 0 {
		t.Errorf("expected no submissions, got %d", len(subs))
	}

	// Settings survive a wipe.
	settings, _ := store.ListSettings(ctx)
	if settings["title"] != "office games" {
		t.Errorf("expected settings to survive, got %v", settings)
	}

	// The name is free again after the wipe.
	if err := store.CreateTeam(ctx, testTeam("alpha", 2000)); err != nil {
		t.Errorf("expected name to be reusable, got %v", err)
	}
}

func TestMemStore_ConcurrentSubmissions(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	team := testTeam("alpha", 2000)
	if err := store.CreateTeam(ctx, team); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	round, err := store.CreateRound(ctx, testRound("contended"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	const workers = 32
	var wg sync.WaitGroup
	results := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			sub := model.Submission{
				ID:             uuid.New(),
				RoundID:        round.ID,
				TeamID:         team.ID,
				PredictedValue: float64(n),
				BidAmount:      10,
				CreatedAt:      time.Now().UTC(),
			}
			results <- store.CreateSubmission(ctx, sub)
		}(i)
	}
	wg.Wait()
	close(results)

	successes, duplicates := 0, 0
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, ErrDuplicate):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Errorf("expected exactly 1 success, got %d", successes)
	}
	if duplicates != workers-1 {
		t.Errorf("expected %d duplicates, got %d", workers-1, duplicates)
	}

	subs, err := store.ListSubmissionsByRound(ctx, round.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(subs) != 1 {
		t.Errorf("expected 1 stored submission, got %d", len(subs))
	}
}

func TestMemStore_ConcurrentTeams(t *testing.T) {
	ctx := context.Background()
	store := NewMemStore()

	const teams = 50
	var wg sync.WaitGroup
	for i := 0; i < teams; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			tm := testTeam(fmt.Sprintf("team-%d", n), float64(100*n))
			if err := store.CreateTeam(ctx, tm); err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	listed, err := store.ListTeams(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(listed) != teams {
		t.Fatalf("expected %d teams, got %d", teams, len(listed))
	}
	for i := 1; i < len(listed); i++ {
		if listed[i-1].Balance < listed[i].Balance {
			t.Errorf("expected descending balances at %d: %f then %f",
				i, listed[i-1].Balance, listed[i].Balance)
		}
	}
}
