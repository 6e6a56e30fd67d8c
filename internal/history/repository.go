package history

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Schema is applied by Open; statements are idempotent.
const Schema = `
CREATE TABLE IF NOT EXISTS sushi_runs (
	run_id      TEXT PRIMARY KEY,
	session_id  TEXT NOT NULL,
	room        TEXT NOT NULL,
	player_id   TEXT NOT NULL,
	player_name TEXT NOT NULL,
	score       INTEGER NOT NULL,
	taps        INTEGER NOT NULL,
	cause       TEXT NOT NULL,
	started_at  TIMESTAMPTZ NOT NULL,
	ended_at    TIMESTAMPTZ NOT NULL,
	duration_ms BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS sushi_runs_player_idx ON sushi_runs (player_id, ended_at DESC);`

type pgRepository struct {
	db *sql.DB
}

// Open connects to Postgres, pings once and ensures the schema.
func Open(databaseURL string) (Repository, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(8)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(30 * time.Minute)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return NewRepository(db), nil
}

func NewRepository(db *sql.DB) Repository {
	return &pgRepository{db: db}
}

func (r *pgRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *pgRepository) SaveRun(ctx context.Context, run *Run) error {
	if run == nil {
		return fmt.Errorf("nil sushi run payload")
	}
	const query = `
		INSERT INTO sushi_runs (
			run_id, session_id, room, player_id, player_name,
			score, taps, cause, started_at, ended_at, duration_ms
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id) DO NOTHING`

	res, err := r.db.ExecContext(ctx, query,
		run.ID, run.SessionID, run.Room, run.PlayerID, run.PlayerName,
		run.Score, run.Taps, run.Cause, run.StartedAt, run.EndedAt, run.Duration.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("insert sushi run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrDuplicateRun
	}
	return nil
}

const selectRun = `
	SELECT run_id, session_id, room, player_id, player_name,
	       score, taps, cause, started_at, ended_at, duration_ms
	FROM sushi_runs`

func (r *pgRepository) RecentRuns(ctx context.Context, playerID string, limit int) ([]*Run, error) {
	rows, err := r.db.QueryContext(ctx, selectRun+`
	WHERE player_id = $1
	ORDER BY ended_at DESC
	LIMIT $2`, strings.TrimSpace(playerID), clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("query sushi runs: %w", err)
	}
	defer rows.Close()

	out := []*Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *pgRepository) BestRun(ctx context.Context, playerID string) (*Run, error) {
	row := r.db.QueryRowContext(ctx, selectRun+`
	WHERE player_id = $1
	ORDER BY score DESC, ended_at ASC
	LIMIT 1`, strings.TrimSpace(playerID))
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (*Run, error) {
	var (
		run        Run
		durationMS int64
	)
	if err := s.Scan(
		&run.ID, &run.SessionID, &run.Room, &run.PlayerID, &run.PlayerName,
		&run.Score, &run.Taps, &run.Cause, &run.StartedAt, &run.EndedAt, &durationMS,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan sushi run: %w", err)
	}
	run.Duration = time.Duration(durationMS) * time.Millisecond
	return &run, nil
}
