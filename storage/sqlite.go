package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"rentwatch/models"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS seen_state (
		user_id INTEGER NOT NULL,
		source_id TEXT NOT NULL,
		last_seen_link TEXT NOT NULL,
		updated_at DATETIME,
		PRIMARY KEY (user_id, source_id)
	);

	CREATE TABLE IF NOT EXISTS criteria (
		user_id INTEGER PRIMARY KEY,
		data JSON NOT NULL,
		updated_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS tick_runs (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		started_at DATETIME,
		finished_at DATETIME,
		status TEXT,
		listings_new INTEGER,
		sources JSON
	);

	CREATE TABLE IF NOT EXISTS tick_logs (
		id INTEGER PRIMARY KEY,
		user_id INTEGER,
		timestamp DATETIME,
		level TEXT,
		message TEXT,
		source_id TEXT
	);

	CREATE TABLE IF NOT EXISTS commands (
		id INTEGER PRIMARY KEY,
		command TEXT,
		params JSON,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		processed_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT PRIMARY KEY,
		user_id INTEGER NOT NULL,
		text TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		attempts INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME,
		sent_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_commands_pending ON commands(processed_at) WHERE processed_at IS NULL;
	CREATE INDEX IF NOT EXISTS idx_runs_user ON tick_runs(user_id, started_at);
	CREATE INDEX IF NOT EXISTS idx_logs_user ON tick_logs(user_id, timestamp);
	CREATE INDEX IF NOT EXISTS idx_notifications_pending ON notifications(status, created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// Seen state
// =============================================================================

func (s *SQLiteStore) LastSeen(ctx context.Context, userID int64, sourceID string) (string, error) {
	var link string
	err := s.db.QueryRowContext(ctx, `
		SELECT last_seen_link FROM seen_state WHERE user_id = ? AND source_id = ?`,
		userID, sourceID).Scan(&link)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return link, err
}

func (s *SQLiteStore) Advance(ctx context.Context, userID int64, sourceID, link string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO seen_state (user_id, source_id, last_seen_link, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, source_id) DO UPDATE SET
			last_seen_link = excluded.last_seen_link,
			updated_at = excluded.updated_at`,
		userID, sourceID, link, time.Now())
	return err
}

func (s *SQLiteStore) Reset(ctx context.Context, userID int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM seen_state WHERE user_id = ?`, userID)
	return err
}

// =============================================================================
// Criteria
// =============================================================================

func (s *SQLiteStore) GetCriteria(ctx context.Context, userID int64) (models.Criteria, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM criteria WHERE user_id = ?`, userID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.DefaultCriteria(), nil
	}
	if err != nil {
		return models.Criteria{}, err
	}

	var c models.Criteria
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return models.Criteria{}, fmt.Errorf("decode criteria for user %d: %w", userID, err)
	}
	return c, nil
}

func (s *SQLiteStore) PutCriteria(ctx context.Context, userID int64, c models.Criteria) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO criteria (user_id, data, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		userID, string(data), time.Now())
	return err
}

// =============================================================================
// Tick runs and logs
// =============================================================================

func (s *SQLiteStore) SaveRun(ctx context.Context, run *models.TickRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tick_runs (id, user_id, started_at, finished_at, status, listings_new, sources)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			finished_at = excluded.finished_at,
			status = excluded.status,
			listings_new = excluded.listings_new,
			sources = excluded.sources`,
		run.ID.String(), run.UserID, run.StartedAt, run.FinishedAt, run.Status, run.TotalNew(), string(run.SourcesJSON()))
	return err
}

func (s *SQLiteStore) GetRecentRuns(ctx context.Context, userID int64, limit int) ([]models.TickRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, started_at, finished_at, status, sources
		FROM tick_runs WHERE user_id = ? ORDER BY started_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []models.TickRun
	for rows.Next() {
		var run models.TickRun
		var id string
		var sources sql.NullString
		if err := rows.Scan(&id, &run.UserID, &run.StartedAt, &run.FinishedAt, &run.Status, &sources); err != nil {
			return nil, err
		}
		run.ID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse run id %q: %w", id, err)
		}
		if sources.Valid {
			if err := json.Unmarshal([]byte(sources.String), &run.Sources); err != nil {
				return nil, fmt.Errorf("decode sources of run %s: %w", id, err)
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *SQLiteStore) LogTick(ctx context.Context, entry models.TickLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tick_logs (user_id, timestamp, level, message, source_id)
		VALUES (?, ?, ?, ?, ?)`,
		entry.UserID, entry.Timestamp, entry.Level, entry.Message, entry.SourceID)
	return err
}

// =============================================================================
// Commands
// =============================================================================

func (s *SQLiteStore) EnqueueCommand(ctx context.Context, cmd models.CommandType, params models.CommandParams) (int64, error) {
	data, err := json.Marshal(params)
	if err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO commands (command, params, created_at) VALUES (?, ?, ?)`,
		cmd, string(data), time.Now())
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) GetPendingCommands(ctx context.Context) ([]models.Command, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, command, params, created_at, processed_at
		FROM commands WHERE processed_at IS NULL ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cmds []models.Command
	for rows.Next() {
		var cmd models.Command
		var params sql.NullString
		if err := rows.Scan(&cmd.ID, &cmd.Command, &params, &cmd.CreatedAt, &cmd.ProcessedAt); err != nil {
			return nil, err
		}
		if params.Valid {
			cmd.Params = json.RawMessage(params.String)
		}
		cmds = append(cmds, cmd)
	}
	return cmds, rows.Err()
}

func (s *SQLiteStore) MarkCommandProcessed(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `UPDATE commands SET processed_at = ? WHERE id = ?`, time.Now(), id)
	return err
}

func ParseCommandParams(cmd *models.Command) (*models.CommandParams, error) {
	if cmd.Params == nil || string(cmd.Params) == "null" {
		return &models.CommandParams{}, nil
	}
	var params models.CommandParams
	if err := json.Unmarshal(cmd.Params, &params); err != nil {
		return nil, err
	}
	return &params, nil
}

// =============================================================================
// Notification outbox
// =============================================================================

func (s *SQLiteStore) EnqueueNotification(ctx context.Context, userID int64, text string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, text, status, attempts, created_at)
		VALUES (?, ?, ?, ?, 0, ?)`,
		uuid.New().String(), userID, text, models.NotificationPending, time.Now())
	return err
}

// GetPendingNotifications returns queued messages oldest first, so a user
// receives them in the order they were produced.
func (s *SQLiteStore) GetPendingNotifications(ctx context.Context, limit int) ([]models.Notification, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, text, status, attempts, created_at, sent_at
		FROM notifications WHERE status = ? ORDER BY created_at, rowid LIMIT ?`,
		models.NotificationPending, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Text, &n.Status, &n.Attempts, &n.CreatedAt, &n.SentAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateNotificationStatus(ctx context.Context, id string, status models.NotificationStatus, attempts int) error {
	var sentAt *time.Time
	if status == models.NotificationSent {
		now := time.Now()
		sentAt = &now
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE notifications SET status = ?, attempts = ?, sent_at = ? WHERE id = ?`,
		status, attempts, sentAt, id)
	return err
}
