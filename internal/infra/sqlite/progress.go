package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dayplanner-app/dayplanner/internal/domain"
)

// ─── Progress History ───────────────────────────────────────────────────────

// InsertProgress appends a progress snapshot.
func (d *DB) InsertProgress(ctx context.Context, p domain.ProgressRecord) (domain.ProgressRecord, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO progress (id, user_id, task_id, task_name, category, priority, status,
			completed_at, original_start, original_end)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.UserID, p.TaskID, p.TaskName, string(p.Category), string(p.Priority),
		string(p.Status), p.CompletedAt.UnixMilli(),
		nullableMillis(p.OriginalStart), nullableMillis(p.OriginalEnd),
	)
	if err != nil {
		return domain.ProgressRecord{}, fmt.Errorf("insert progress: %w", err)
	}
	return p, nil
}

// RecentProgress returns up to limit records of the given status, newest first.
func (d *DB) RecentProgress(ctx context.Context, userID string, status domain.TaskStatus, limit int) ([]domain.ProgressRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, user_id, task_id, task_name, category, priority, status,
			completed_at, original_start, original_end
		 FROM progress WHERE user_id = ? AND status = ?
		 ORDER BY completed_at DESC LIMIT ?`,
		userID, string(status), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ProgressRecord
	for rows.Next() {
		var p domain.ProgressRecord
		var category, priority, st string
		var completedAt int64
		var origStart, origEnd sql.NullInt64
		if err := rows.Scan(&p.ID, &p.UserID, &p.TaskID, &p.TaskName, &category, &priority,
			&st, &completedAt, &origStart, &origEnd); err != nil {
			return nil, err
		}
		p.Category = domain.Category(category)
		p.Priority = domain.Priority(priority)
		p.Status = domain.TaskStatus(st)
		p.CompletedAt = time.UnixMilli(completedAt)
		p.OriginalStart = fromNullMillis(origStart)
		p.OriginalEnd = fromNullMillis(origEnd)
		out = append(out, p)
	}
	return out, rows.Err()
}
