package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"rentwatch/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	store := &PostgresStore{pool: pool}
	if err := store.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS seen_state (
			user_id BIGINT NOT NULL,
			source_id TEXT NOT NULL,
			last_seen_link TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, source_id)
		);

		CREATE TABLE IF NOT EXISTS criteria (
			user_id BIGINT PRIMARY KEY,
			data JSONB NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE TABLE IF NOT EXISTS tick_runs (
			id UUID PRIMARY KEY,
			user_id BIGINT NOT NULL,
			started_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			status TEXT NOT NULL,
			listings_new INTEGER NOT NULL DEFAULT 0,
			sources JSONB
		);

		CREATE TABLE IF NOT EXISTS tick_logs (
			id BIGSERIAL PRIMARY KEY,
			user_id BIGINT,
			timestamp TIMESTAMPTZ NOT NULL,
			level TEXT NOT NULL,
			message TEXT,
			source_id TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_tick_runs_user ON tick_runs(user_id, started_at DESC);
	`)
	return err
}

// =============================================================================
// Seen state
// =============================================================================

func (s *PostgresStore) LastSeen(ctx context.Context, userID int64, sourceID string) (string, error) {
	var link string
	err := s.pool.QueryRow(ctx, `
		SELECT last_seen_link FROM seen_state WHERE user_id = $1 AND source_id = $2`,
		userID, sourceID).Scan(&link)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	return link, err
}

func (s *PostgresStore) Advance(ctx context.Context, userID int64, sourceID, link string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO seen_state (user_id, source_id, last_seen_link, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, source_id) DO UPDATE SET
			last_seen_link = EXCLUDED.last_seen_link,
			updated_at = NOW()`,
		userID, sourceID, link)
	return err
}

func (s *PostgresStore) Reset(ctx context.Context, userID int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM seen_state WHERE user_id = $1`, userID)
	return err
}

// =============================================================================
// Criteria
// =============================================================================

func (s *PostgresStore) GetCriteria(ctx context.Context, userID int64) (models.Criteria, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT data FROM criteria WHERE user_id = $1`, userID).Scan(&data)
	if err == pgx.ErrNoRows {
		return models.DefaultCriteria(), nil
	}
	if err != nil {
		return models.Criteria{}, err
	}

	var c models.Criteria
	if err := json.Unmarshal(data, &c); err != nil {
		return models.Criteria{}, fmt.Errorf("decode criteria for user %d: %w", userID, err)
	}
	return c, nil
}

func (s *PostgresStore) PutCriteria(ctx context.Context, userID int64, c models.Criteria) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO criteria (user_id, data, updated_at) VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET data = EXCLUDED.data, updated_at = NOW()`,
		userID, data)
	return err
}

// =============================================================================
// Tick runs
// =============================================================================

func (s *PostgresStore) SaveRun(ctx context.Context, run *models.TickRun) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tick_runs (id, user_id, started_at, finished_at, status, listings_new, sources)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			finished_at = EXCLUDED.finished_at,
			status = EXCLUDED.status,
			listings_new = EXCLUDED.listings_new,
			sources = EXCLUDED.sources`,
		run.ID, run.UserID, run.StartedAt, run.FinishedAt, string(run.Status), run.TotalNew(), run.SourcesJSON())
	return err
}

func (s *PostgresStore) LogTick(ctx context.Context, entry models.TickLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO tick_logs (user_id, timestamp, level, message, source_id)
		VALUES ($1, $2, $3, $4, $5)`,
		entry.UserID, entry.Timestamp, string(entry.Level), entry.Message, entry.SourceID)
	return err
}

func (s *PostgresStore) GetRecentRuns(ctx context.Context, userID int64, limit int) ([]models.TickRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, started_at, finished_at, status, sources
		FROM tick_runs WHERE user_id = $1 ORDER BY started_at DESC LIMIT $2`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.TickRun
	for rows.Next() {
		var run models.TickRun
		var status string
		var sources []byte
		if err := rows.Scan(&run.ID, &run.UserID, &run.StartedAt, &run.FinishedAt, &status, &sources); err != nil {
			return nil, err
		}
		run.Status = models.RunStatus(status)
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &run.Sources); err != nil {
				return nil, fmt.Errorf("decode sources of run %s: %w", run.ID, err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
