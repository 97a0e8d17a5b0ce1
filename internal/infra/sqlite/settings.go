package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dayplanner-app/dayplanner/internal/domain"
)

// ─── User Settings ──────────────────────────────────────────────────────────

// SleepWindow returns the user's sleep window, or the default when the
// user has not configured one.
func (d *DB) SleepWindow(ctx context.Context, userID string) (domain.SleepWindow, error) {
	var w domain.SleepWindow
	err := d.db.QueryRowContext(ctx,
		`SELECT sleep_start, sleep_end FROM user_settings WHERE user_id = ?`, userID,
	).Scan(&w.Start, &w.End)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.DefaultSleepWindow(), nil
	}
	if err != nil {
		return domain.SleepWindow{}, err
	}
	if w.Start == "" {
		w.Start = domain.DefaultSleepStart
	}
	if w.End == "" {
		w.End = domain.DefaultSleepEnd
	}
	return w, nil
}

// SaveSleepWindow inserts or updates the user's sleep window.
func (d *DB) SaveSleepWindow(ctx context.Context, userID string, w domain.SleepWindow) error {
	if err := w.Validate(); err != nil {
		return err
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO user_settings (user_id, sleep_start, sleep_end, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(user_id) DO UPDATE SET
			sleep_start=excluded.sleep_start,
			sleep_end=excluded.sleep_end,
			updated_at=excluded.updated_at`,
		userID, w.Start, w.End, time.Now().UnixMilli(),
	)
	return err
}
