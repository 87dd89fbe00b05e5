package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/ballpark/internal/domain/model"
)

//go:embed schema.sql
var schemaSQL string

// uniqueViolation is the Postgres error code for a unique constraint
// breach. Both the team name and the (round, team) submission slot
// rely on it.
const uniqueViolation = "23505"

// querier is the subset of pgx shared by *pgxpool.Pool and pgx.Tx, so
// each query method runs against whichever one the store is bound to.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists game data in Postgres via a pgx pool. A
// store returned by WithinTx is bound to the open transaction instead
// of the pool.
type PostgresStore struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore connects to the database and verifies the
// connection.
func NewPostgresStore(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresStore, error) {
	o := postgresOptions{maxConns: defaultMaxConns}
	for _, opt := range opts {
		opt(&o)
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database url: %w", err)
	}
	cfg.MaxConns = o.maxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &PostgresStore{pool: pool}, nil
}

// EnsureSchema creates the tables if they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.q().Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) q() querier {
	if s.tx != nil {
		return s.tx
	}
	return s.pool
}

// WithinTx runs fn against a store bound to a single transaction,
// committing on success and rolling back on error. Nested calls reuse
// the open transaction.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&PostgresStore{pool: s.pool, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateTeam(ctx context.Context, t model.Team) error {
	_, err := s.q().Exec(ctx, `
		INSERT INTO teams (id, name, balance, created_at)
		VALUES ($1, $2, $3, $4)
	`, t.ID, t.Name, t.Balance, t.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create team: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetTeam(ctx context.Context, id uuid.UUID) (model.Team, error) {
	return s.scanTeam(s.q().QueryRow(ctx, `
		SELECT id, name, balance, created_at
		FROM teams
		WHERE id = $1
	`, id))
}

func (s *PostgresStore) GetTeamForUpdate(ctx context.Context, id uuid.UUID) (model.Team, error) {
	return s.scanTeam(s.q().QueryRow(ctx, `
		SELECT id, name, balance, created_at
		FROM teams
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (s *PostgresStore) GetTeamByName(ctx context.Context, name string) (model.Team, error) {
	return s.scanTeam(s.q().QueryRow(ctx, `
		SELECT id, name, balance, created_at
		FROM teams
		WHERE name = $1
	`, name))
}

func (s *PostgresStore) scanTeam(row pgx.Row) (model.Team, error) {
	var t model.Team
	err := row.Scan(&t.ID, &t.Name, &t.Balance, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Team{}, ErrNotFound
	}
	if err != nil {
		return model.Team{}, fmt.Errorf("failed to scan team: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListTeams(ctx context.Context) ([]model.Team, error) {
	rows, err := s.q().Query(ctx, `
		SELECT id, name, balance, created_at
		FROM teams
		ORDER BY balance DESC, name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams: %w", err)
	}
	defer rows.Close()

	var teams []model.Team
	for rows.Next() {
		var t model.Team
		if err := rows.Scan(&t.ID, &t.Name, &t.Balance, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read teams: %w", err)
	}
	return teams, nil
}

func (s *PostgresStore) AdjustTeamBalance(ctx context.Context, id uuid.UUID, delta float64) error {
	tag, err := s.q().Exec(ctx, `
		UPDATE teams
		SET balance = balance + $2
		WHERE id = $1
	`, id, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateRound(ctx context.Context, r model.Round) (model.Round, error) {
	err := s.q().QueryRow(ctx, `
		INSERT INTO rounds (id, theme, actual_value, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING seq
	`, r.ID, r.Theme, r.ActualValue, r.Status, r.CreatedAt).Scan(&r.Seq)
	if err != nil {
		return model.Round{}, fmt.Errorf("failed to create round: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) GetRound(ctx context.Context, id uuid.UUID) (model.Round, error) {
	return s.scanRound(s.q().QueryRow(ctx, `
		SELECT id, theme, actual_value, status, seq, created_at
		FROM rounds
		WHERE id = $1
	`, id))
}

func (s *PostgresStore) GetRoundForUpdate(ctx context.Context, id uuid.UUID) (model.Round, error) {
	return s.scanRound(s.q().QueryRow(ctx, `
		SELECT id, theme, actual_value, status, seq, created_at
		FROM rounds
		WHERE id = $1
		FOR UPDATE
	`, id))
}

func (s *PostgresStore) CurrentRound(ctx context.Context) (model.Round, error) {
	return s.scanRound(s.q().QueryRow(ctx, `
		SELECT id, theme, actual_value, status, seq, created_at
		FROM rounds
		ORDER BY seq DESC
		LIMIT 1
	`))
}

func (s *PostgresStore) scanRound(row pgx.Row) (model.Round, error) {
	var r model.Round
	err := row.Scan(&r.ID, &r.Theme, &r.ActualValue, &r.Status, &r.Seq, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Round{}, ErrNotFound
	}
	if err != nil {
		return model.Round{}, fmt.Errorf("failed to scan round: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) SetRoundRevealed(ctx context.Context, id uuid.UUID, actual float64) error {
	tag, err := s.q().Exec(ctx, `
		UPDATE rounds
		SET actual_value = $2, status = $3
		WHERE id = $1
	`, id, actual, model.RoundRevealed)
	if err != nil {
		return fmt.Errorf("failed to reveal round: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ForceRevealOpen(ctx context.Context) ([]AbandonedRound, error) {
	rows, err := s.q().Query(ctx, `
		WITH forced AS (
			UPDATE rounds
			SET status = $1
			WHERE status <> $1
			RETURNING id
		)
		SELECT f.id, COUNT(s.id)
		FROM forced f
		LEFT JOIN submissions s ON s.round_id = f.id
		GROUP BY f.id
	`, model.RoundRevealed)
	if err != nil {
		return nil, fmt.Errorf("failed to force-reveal rounds: %w", err)
	}
	defer rows.Close()

	var abandoned []AbandonedRound
	for rows.Next() {
		var a AbandonedRound
		if err := rows.Scan(&a.RoundID, &a.Unsettled); err != nil {
			return nil, fmt.Errorf("failed to scan forced round: %w", err)
		}
		abandoned = append(abandoned, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read forced rounds: %w", err)
	}
	return abandoned, nil
}

func (s *PostgresStore) CreateSubmission(ctx context.Context, sub model.Submission) error {
	_, err := s.q().Exec(ctx, `
		INSERT INTO submissions (id, round_id, team_id, predicted_value, bid_amount, score, error_percent, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, sub.ID, sub.RoundID, sub.TeamID, sub.PredictedValue, sub.BidAmount, sub.Score, sub.ErrorPercent, sub.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("failed to create submission: %w", err)
	}
	return nil
}

func (s *PostgresStore) HasSubmission(ctx context.Context, roundID, teamID uuid.UUID) (bool, error) {
	var exists bool
	err := s.q().QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM submissions
			WHERE round_id = $1 AND team_id = $2
		)
	`, roundID, teamID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check submission: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) SettleSubmission(ctx context.Context, id uuid.UUID, score, errorPercent float64) error {
	tag, err := s.q().Exec(ctx, `
		UPDATE submissions
		SET score = $2, error_percent = $3
		WHERE id = $1
	`, id, score, errorPercent)
	if err != nil {
		return fmt.Errorf("failed to settle submission: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListSubmissionsByRound(ctx context.Context, roundID uuid.UUID) ([]model.Submission, error) {
	rows, err := s.q().Query(ctx, `
		SELECT id, round_id, team_id, predicted_value, bid_amount, score, error_percent, created_at
		FROM submissions
		WHERE round_id = $1
		ORDER BY seq ASC
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submissions: %w", err)
	}
	defer rows.Close()

	var subs []model.Submission
	for rows.Next() {
		var sub model.Submission
		err := rows.Scan(&sub.ID, &sub.RoundID, &sub.TeamID, &sub.PredictedValue,
			&sub.BidAmount, &sub.Score, &sub.ErrorPercent, &sub.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read submissions: %w", err)
	}
	return subs, nil
}

func (s *PostgresStore) ListRoundSubmissions(ctx context.Context, roundID uuid.UUID) ([]model.RoundSubmission, error) {
	rows, err := s.q().Query(ctx, `
		SELECT s.id, s.round_id, s.team_id, s.predicted_value, s.bid_amount, s.score, s.error_percent, s.created_at, t.name
		FROM submissions s
		JOIN teams t ON t.id = s.team_id
		WHERE s.round_id = $1
		ORDER BY s.seq ASC
	`, roundID)
	if err != nil {
		return nil, fmt.Errorf("failed to list round submissions: %w", err)
	}
	defer rows.Close()

	var subs []model.RoundSubmission
	for rows.Next() {
		var sub model.RoundSubmission
		err := rows.Scan(&sub.ID, &sub.RoundID, &sub.TeamID, &sub.PredictedValue,
			&sub.BidAmount, &sub.Score, &sub.ErrorPercent, &sub.CreatedAt, &sub.TeamName)
		if err != nil {
			return nil, fmt.Errorf("failed to scan round submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read round submissions: %w", err)
	}
	return subs, nil
}

func (s *PostgresStore) ListSettings(ctx context.Context) (map[string]string, error) {
	rows, err := s.q().Query(ctx, `SELECT key, value FROM settings`)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	settings := make(map[string]string)
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings[k] = v
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read settings: %w", err)
	}
	return settings, nil
}

func (s *PostgresStore) UpsertSetting(ctx context.Context, key, value string) error {
	_, err := s.q().Exec(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to upsert setting: %w", err)
	}
	return nil
}

// DeleteAllGameData clears teams, rounds, and submissions. Settings
// are operator content and survive a reset.
func (s *PostgresStore) DeleteAllGameData(ctx context.Context) error {
	for _, table := range []string{"submissions", "rounds", "teams"} {
		if _, err := s.q().Exec(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
