package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/okian/ballpark/internal/domain/model"
)

// subKey is the one-submission-per-team-per-round slot.
type subKey struct {
	roundID uuid.UUID
	teamID  uuid.UUID
}

// memState holds all game data. Its methods are not safe for
// concurrent use; MemStore and memTx serialize access around it.
type memState struct {
	teams        map[uuid.UUID]model.Team
	teamIDByName map[string]uuid.UUID
	rounds       map[uuid.UUID]model.Round
	submissions  map[uuid.UUID]model.Submission
	subIDByKey   map[subKey]uuid.UUID
	subOrder     map[uuid.UUID][]uuid.UUID
	settings     map[string]string
	roundSeq     int64
}

func newMemState() *memState {
	return &memState{
		teams:        make(map[uuid.UUID]model.Team),
		teamIDByName: make(map[string]uuid.UUID),
		rounds:       make(map[uuid.UUID]model.Round),
		submissions:  make(map[uuid.UUID]model.Submission),
		subIDByKey:   make(map[subKey]uuid.UUID),
		subOrder:     make(map[uuid.UUID][]uuid.UUID),
		settings:     make(map[string]string),
	}
}

// clone deep-copies the state. Nothing mutates through shared pointers,
// so copying the maps is enough.
func (st *memState) clone() *memState {
	c := &memState{
		teams:        make(map[uuid.UUID]model.Team, len(st.teams)),
		teamIDByName: make(map[string]uuid.UUID, len(st.teamIDByName)),
		rounds:       make(map[uuid.UUID]model.Round, len(st.rounds)),
		submissions:  make(map[uuid.UUID]model.Submission, len(st.submissions)),
		subIDByKey:   make(map[subKey]uuid.UUID, len(st.subIDByKey)),
		subOrder:     make(map[uuid.UUID][]uuid.UUID, len(st.subOrder)),
		settings:     make(map[string]string, len(st.settings)),
		roundSeq:     st.roundSeq,
	}
	for k, v := range st.teams {
		c.teams[k] = v
	}
	for k, v := range st.teamIDByName {
		c.teamIDByName[k] = v
	}
	for k, v := range st.rounds {
		c.rounds[k] = v
	}
	for k, v := range st.submissions {
		c.submissions[k] = v
	}
	for k, v := range st.subIDByKey {
		c.subIDByKey[k] = v
	}
	for k, v := range st.subOrder {
		order := make([]uuid.UUID, len(v))
		copy(order, v)
		c.subOrder[k] = order
	}
	for k, v := range st.settings {
		c.settings[k] = v
	}
	return c
}

func (st *memState) createTeam(t model.Team) error {
	if _, taken := st.teamIDByName[t.Name]; taken {
		return ErrDuplicate
	}
	st.teams[t.ID] = t
	st.teamIDByName[t.Name] = t.ID
	return nil
}

func (st *memState) getTeam(id uuid.UUID) (model.Team, error) {
	t, ok := st.teams[id]
	if !ok {
		return model.Team{}, ErrNotFound
	}
	return t, nil
}

func (st *memState) getTeamByName(name string) (model.Team, error) {
	id, ok := st.teamIDByName[name]
	if !ok {
		return model.Team{}, ErrNotFound
	}
	return st.teams[id], nil
}

func (st *memState) listTeams() []model.Team {
	teams := make([]model.Team, 0, len(st.teams))
	for _, t := range st.teams {
		teams = append(teams, t)
	}
	sort.Slice(teams, func(i, j int) bool {
		if teams[i].Balance != teams[j].Balance {
			return teams[i].Balance > teams[j].Balance
		}
		return teams[i].Name < teams[j].Name
	})
	return teams
}

func (st *memState) adjustTeamBalance(id uuid.UUID, delta float64) error {
	t, ok := st.teams[id]
	if !ok {
		return ErrNotFound
	}
	t.Balance += delta
	st.teams[id] = t
	return nil
}

func (st *memState) createRound(r model.Round) model.Round {
	st.roundSeq++
	r.Seq = st.roundSeq
	st.rounds[r.ID] = r
	return r
}

func (st *memState) getRound(id uuid.UUID) (model.Round, error) {
	r, ok := st.rounds[id]
	if !ok {
		return model.Round{}, ErrNotFound
	}
	return r, nil
}

func (st *memState) currentRound() (model.Round, error) {
	var current model.Round
	found := false
	for _, r := range st.rounds {
		if !found || r.Seq > current.Seq {
			current = r
			found = true
		}
	}
	if !found {
		return model.Round{}, ErrNotFound
	}
	return current, nil
}

func (st *memState) setRoundRevealed(id uuid.UUID, actual float64) error {
	r, ok := st.rounds[id]
	if !ok {
		return ErrNotFound
	}
	r.ActualValue = &actual
	r.Status = model.RoundRevealed
	st.rounds[id] = r
	return nil
}

func (st *memState) forceRevealOpen() []AbandonedRound {
	var abandoned []AbandonedRound
	for id, r := range st.rounds {
		if r.Status == model.RoundRevealed {
			continue
		}
		r.Status = model.RoundRevealed
		st.rounds[id] = r
		abandoned = append(abandoned, AbandonedRound{
			RoundID:   id,
			Unsettled: len(st.subOrder[id]),
		})
	}
	return abandoned
}

func (st *memState) createSubmission(sub model.Submission) error {
	key := subKey{roundID: sub.RoundID, teamID: sub.TeamID}
	if _, taken := st.subIDByKey[key]; taken {
		return ErrDuplicate
	}
	st.submissions[sub.ID] = sub
	st.subIDByKey[key] = sub.ID
	st.subOrder[sub.RoundID] = append(st.subOrder[sub.RoundID], sub.ID)
	return nil
}

func (st *memState) hasSubmission(roundID, teamID uuid.UUID) bool {
	_, ok := st.subIDByKey[subKey{roundID: roundID, teamID: teamID}]
	return ok
}

func (st *memState) settleSubmission(id uuid.UUID, score, errorPercent float64) error {
	sub, ok := st.submissions[id]
	if !ok {
		return ErrNotFound
	}
	sub.Score = score
	sub.ErrorPercent = &errorPercent
	st.submissions[id] = sub
	return nil
}

func (st *memState) listSubmissionsByRound(roundID uuid.UUID) []model.Submission {
	order := st.subOrder[roundID]
	subs := make([]model.Submission, 0, len(order))
	for _, id := range order {
		subs = append(subs, st.submissions[id])
	}
	return subs
}

func (st *memState) listRoundSubmissions(roundID uuid.UUID) []model.RoundSubmission {
	order := st.subOrder[roundID]
	subs := make([]model.RoundSubmission, 0, len(order))
	for _, id := range order {
		sub := st.submissions[id]
		subs = append(subs, model.RoundSubmission{
			Submission: sub,
			TeamName:   st.teams[sub.TeamID].Name,
		})
	}
	return subs
}

func (st *memState) listSettings() map[string]string {
	settings := make(map[string]string, len(st.settings))
	for k, v := range st.settings {
		settings[k] = v
	}
	return settings
}

func (st *memState) upsertSetting(key, value string) {
	st.settings[key] = value
}

func (st *memState) deleteAllGameData() {
	st.teams = make(map[uuid.UUID]model.Team)
	st.teamIDByName = make(map[string]uuid.UUID)
	st.rounds = make(map[uuid.UUID]model.Round)
	st.submissions = make(map[uuid.UUID]model.Submission)
	st.subIDByKey = make(map[subKey]uuid.UUID)
	st.subOrder = make(map[uuid.UUID][]uuid.UUID)
}

// MemStore is an in-memory Store. One mutex serializes every
// operation, which also covers the per-team serialization the submit
// path relies on. It backs tests and the default single-process
// deployment.
type MemStore struct {
	mu    sync.Mutex
	state *memState
}

var (
	_ Store = (*MemStore)(nil)
	_ Store = (*memTx)(nil)
)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{state: newMemState()}
}

// WithinTx clones the state, runs fn against the clone, and swaps the
// clone in on success. An error from fn discards the clone, which
// gives the same all-or-nothing visibility as a relational
// transaction.
func (s *MemStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.state.clone()
	if err := fn(&memTx{state: work}); err != nil {
		return err
	}
	s.state = work
	return nil
}

func (s *MemStore) CreateTeam(ctx context.Context, t model.Team) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createTeam(t)
}

func (s *MemStore) GetTeam(ctx context.Context, id uuid.UUID) (model.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getTeam(id)
}

func (s *MemStore) GetTeamForUpdate(ctx context.Context, id uuid.UUID) (model.Team, error) {
	return s.GetTeam(ctx, id)
}

func (s *MemStore) GetTeamByName(ctx context.Context, name string) (model.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getTeamByName(name)
}

func (s *MemStore) ListTeams(ctx context.Context) ([]model.Team, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.listTeams(), nil
}

func (s *MemStore) AdjustTeamBalance(ctx context.Context, id uuid.UUID, delta float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.adjustTeamBalance(id, delta)
}

func (s *MemStore) CreateRound(ctx context.Context, r model.Round) (model.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createRound(r), nil
}

func (s *MemStore) GetRound(ctx context.Context, id uuid.UUID) (model.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getRound(id)
}

func (s *MemStore) GetRoundForUpdate(ctx context.Context, id uuid.UUID) (model.Round, error) {
	return s.GetRound(ctx, id)
}

func (s *MemStore) CurrentRound(ctx context.Context) (model.Round, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.currentRound()
}

func (s *MemStore) SetRoundRevealed(ctx context.Context, id uuid.UUID, actual float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.setRoundRevealed(id, actual)
}

func (s *MemStore) ForceRevealOpen(ctx context.Context) ([]AbandonedRound, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.forceRevealOpen(), nil
}

func (s *MemStore) CreateSubmission(ctx context.Context, sub model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createSubmission(sub)
}

func (s *MemStore) HasSubmission(ctx context.Context, roundID, teamID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.hasSubmission(roundID, teamID), nil
}

func (s *MemStore) SettleSubmission(ctx context.Context, id uuid.UUID, score, errorPercent float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.settleSubmission(id, score, errorPercent)
}

func (s *MemStore) ListSubmissionsByRound(ctx context.Context, roundID uuid.UUID) ([]model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.listSubmissionsByRound(roundID), nil
}

func (s *MemStore) ListRoundSubmissions(ctx context.Context, roundID uuid.UUID) ([]model.RoundSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.listRoundSubmissions(roundID), nil
}

func (s *MemStore) ListSettings(ctx context.Context) (map[string]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.listSettings(), nil
}

func (s *MemStore) UpsertSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.upsertSetting(key, value)
	return nil
}

func (s *MemStore) DeleteAllGameData(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.deleteAllGameData()
	return nil
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Close() {}

// memTx is the transaction-bound view handed to WithinTx callbacks.
// The enclosing WithinTx holds the store mutex, so direct state access
// is safe here.
type memTx struct {
	state *memState
}

// WithinTx reuses the already-open transaction.
func (t *memTx) WithinTx(ctx context.Context, fn func(Store) error) error {
	return fn(t)
}

func (t *memTx) CreateTeam(ctx context.Context, tm model.Team) error {
	return t.state.createTeam(tm)
}

func (t *memTx) GetTeam(ctx context.Context, id uuid.UUID) (model.Team, error) {
	return t.state.getTeam(id)
}

func (t *memTx) GetTeamForUpdate(ctx context.Context, id uuid.UUID) (model.Team, error) {
	return t.state.getTeam(id)
}

func (t *memTx) GetTeamByName(ctx context.Context, name string) (model.Team, error) {
	return t.state.getTeamByName(name)
}

func (t *memTx) ListTeams(ctx context.Context) ([]model.Team, error) {
	return t.state.listTeams(), nil
}

func (t *memTx) AdjustTeamBalance(ctx context.Context, id uuid.UUID, delta float64) error {
	return t.state.adjustTeamBalance(id, delta)
}

func (t *memTx) CreateRound(ctx context.Context, r model.Round) (model.Round, error) {
	return t.state.createRound(r), nil
}

func (t *memTx) GetRound(ctx context.Context, id uuid.UUID) (model.Round, error) {
	return t.state.getRound(id)
}

func (t *memTx) GetRoundForUpdate(ctx context.Context, id uuid.UUID) (model.Round, error) {
	return t.state.getRound(id)
}

func (t *memTx) CurrentRound(ctx context.Context) (model.Round, error) {
	return t.state.currentRound()
}

func (t *memTx) SetRoundRevealed(ctx context.Context, id uuid.UUID, actual float64) error {
	return t.state.setRoundRevealed(id, actual)
}

func (t *memTx) ForceRevealOpen(ctx context.Context) ([]AbandonedRound, error) {
	return t.state.forceRevealOpen(), nil
}

func (t *memTx) CreateSubmission(ctx context.Context, sub model.Submission) error {
	return t.state.createSubmission(sub)
}

func (t *memTx) HasSubmission(ctx context.Context, roundID, teamID uuid.UUID) (bool, error) {
	return t.state.hasSubmission(roundID, teamID), nil
}

func (t *memTx) SettleSubmission(ctx context.Context, id uuid.UUID, score, errorPercent float64) error {
	return t.state.settleSubmission(id, score, errorPercent)
}

func (t *memTx) ListSubmissionsByRound(ctx context.Context, roundID uuid.UUID) ([]model.Submission, error) {
	return t.state.listSubmissionsByRound(roundID), nil
}

func (t *memTx) ListRoundSubmissions(ctx context.Context, roundID uuid.UUID) ([]model.RoundSubmission, error) {
	return t.state.listRoundSubmissions(roundID), nil
}

func (t *memTx) ListSettings(ctx context.Context) (map[string]string, error) {
	return t.state.listSettings(), nil
}

func (t *memTx) UpsertSetting(ctx context.Context, key, value string) error {
	t.state.upsertSetting(key, value)
	return nil
}

func (t *memTx) DeleteAllGameData(ctx context.Context) error {
	t.state.deleteAllGameData()
	return nil
}

func (t *memTx) Ping(ctx context.Context) error { return nil }

func (t *memTx) Close() {}
