// Package sqlite provides SQLite-based persistent storage for the planner.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)
)

// DB wraps a SQLite connection with WAL mode and migrations.
// It implements domain.TaskRepository, domain.SettingsStore,
// domain.ProgressStore and the notification inbox.
type DB struct {
	db *sql.DB
}

// Open creates or opens the SQLite database at dir/planner.db.
// Enables WAL mode, foreign keys, and 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "planner.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer; one connection also serializes the
	// check-then-write transactions below.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping(ctx context.Context) error {
	return d.db.PingContext(ctx)
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS tasks (
			id                        TEXT PRIMARY KEY,
			user_id                   TEXT NOT NULL,
			name                      TEXT NOT NULL,
			description               TEXT NOT NULL DEFAULT '',
			date                      INTEGER,
			start_time                INTEGER,
			end_time                  INTEGER,
			type                      TEXT NOT NULL,
			recurrence_rule           TEXT NOT NULL DEFAULT '',
			status                    TEXT NOT NULL,
			category                  TEXT NOT NULL DEFAULT '',
			priority                  TEXT NOT NULL DEFAULT 'Medium',
			reminder_sent             BOOLEAN NOT NULL DEFAULT 0,
			immediate_missed_notified BOOLEAN NOT NULL DEFAULT 0,
			version                   INTEGER NOT NULL DEFAULT 1,
			created_at                INTEGER NOT NULL,
			updated_at                INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_start ON tasks(user_id, start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_status_end ON tasks(status, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_user_date ON tasks(user_id, date)`,

		`CREATE TABLE IF NOT EXISTS user_settings (
			user_id     TEXT PRIMARY KEY,
			sleep_start TEXT NOT NULL,
			sleep_end   TEXT NOT NULL,
			updated_at  INTEGER NOT NULL
		)`,

		`CREATE TABLE IF NOT EXISTS progress (
			id             TEXT PRIMARY KEY,
			user_id        TEXT NOT NULL,
			task_id        TEXT NOT NULL,
			task_name      TEXT NOT NULL,
			category       TEXT NOT NULL DEFAULT '',
			priority       TEXT NOT NULL DEFAULT '',
			status         TEXT NOT NULL,
			completed_at   INTEGER NOT NULL,
			original_start INTEGER,
			original_end   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_progress_user ON progress(user_id, status, completed_at)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL DEFAULT '',
			task_id    TEXT NOT NULL DEFAULT '',
			kind       TEXT NOT NULL,
			message    TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			read       BOOLEAN NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notif_user ON notifications(user_id, created_at)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func nullableMillis(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixMilli(), Valid: true}
}

func fromNullMillis(v sql.NullInt64) time.Time {
	if !v.Valid {
		return time.Time{}
	}
	return time.UnixMilli(v.Int64)
}
