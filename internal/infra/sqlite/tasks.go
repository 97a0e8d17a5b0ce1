package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dayplanner-app/dayplanner/internal/domain"
)

// ─── Task Repository ────────────────────────────────────────────────────────

const taskColumns = `id, user_id, name, description, date, start_time, end_time, type,
	recurrence_rule, status, category, priority, reminder_sent, immediate_missed_notified,
	version, created_at, updated_at`

// CreateTask stores a new task. Its window must not overlap another
// non-completed task of the same user.
func (d *DB) CreateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	t.ApplyDefaults()
	if err := t.Validate(); err != nil {
		return domain.Task{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := time.Now()
	t.Version = 1
	t.CreatedAt = now
	t.UpdatedAt = now

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := checkOverlap(ctx, tx, t, userRule); err != nil {
		return domain.Task{}, err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO tasks (`+taskColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.UserID, t.Name, t.Description,
		nullableMillis(t.Date), nullableMillis(t.StartTime), nullableMillis(t.EndTime),
		string(t.Type), encodeWeekdays(t.RecurrenceRule), string(t.Status),
		string(t.Category), string(t.Priority), t.ReminderSent, t.ImmediateMissedNotified,
		t.Version, t.CreatedAt.UnixMilli(), t.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

// SaveTask writes t if the stored version still matches t.Version.
// When the write places t (new window, type or status) as Pending, it must
// not overlap a Pending or Completed task. The version check and the
// overlap check run in the same transaction as the write, so a concurrent
// placement into the same range is rejected.
func (d *DB) SaveTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	return d.writeTask(ctx, t, placementRule)
}

// UpdateTask is SaveTask for edits made by the user: a write that places
// t must not overlap another non-completed task.
func (d *DB) UpdateTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	return d.writeTask(ctx, t, userRule)
}

// DeleteTask removes a task together with its notifications.
func (d *DB) DeleteTask(ctx context.Context, id string) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM notifications WHERE task_id = ?`, id); err != nil {
		return fmt.Errorf("delete notifications: %w", err)
	}
	return tx.Commit()
}

func (d *DB) writeTask(ctx context.Context, t domain.Task, rule overlapRule) (domain.Task, error) {
	if err := t.Validate(); err != nil {
		return domain.Task{}, err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var (
		stored     int64
		start, end sql.NullInt64
		status     string
		typ        string
	)
	err = tx.QueryRowContext(ctx,
		`SELECT version, start_time, end_time, status, type FROM tasks WHERE id = ?`, t.ID,
	).Scan(&stored, &start, &end, &status, &typ)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, t.ID)
	}
	if err != nil {
		return domain.Task{}, fmt.Errorf("read version: %w", err)
	}
	if stored != t.Version {
		return domain.Task{}, fmt.Errorf("%w: %s at version %d, have %d",
			domain.ErrVersionConflict, t.ID, stored, t.Version)
	}

	// Only a write that moves the task or gives it a new non-completed
	// status is checked; flag writes and completion never are.
	moved := start != nullableMillis(t.StartTime) || end != nullableMillis(t.EndTime) || typ != string(t.Type)
	entered := status != string(t.Status) && t.Status != domain.TaskCompleted
	if moved || entered {
		if err := checkOverlap(ctx, tx, t, rule); err != nil {
			return domain.Task{}, err
		}
	}

	t.UpdatedAt = time.Now()
	_, err = tx.ExecContext(ctx,
		`UPDATE tasks SET
			name = ?, description = ?, date = ?, start_time = ?, end_time = ?,
			type = ?, recurrence_rule = ?, status = ?, category = ?, priority = ?,
			reminder_sent = ?, immediate_missed_notified = ?,
			version = version + 1, updated_at = ?
		 WHERE id = ? AND version = ?`,
		t.Name, t.Description,
		nullableMillis(t.Date), nullableMillis(t.StartTime), nullableMillis(t.EndTime),
		string(t.Type), encodeWeekdays(t.RecurrenceRule), string(t.Status),
		string(t.Category), string(t.Priority), t.ReminderSent, t.ImmediateMissedNotified,
		t.UpdatedAt.UnixMilli(), t.ID, t.Version,
	)
	if err != nil {
		return domain.Task{}, fmt.Errorf("update task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, fmt.Errorf("commit: %w", err)
	}
	t.Version++
	return t, nil
}

// GetTask retrieves a single task by id.
func (d *DB) GetTask(ctx context.Context, id string) (domain.Task, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Task{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	if err != nil {
		return domain.Task{}, err
	}
	return t, nil
}

// FindTasks returns tasks matching the filter ordered by start time.
func (d *DB) FindTasks(ctx context.Context, f domain.TaskFilter) ([]domain.Task, error) {
	where, args := taskWhere(f)
	query := `SELECT ` + taskColumns + ` FROM tasks`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY COALESCE(start_time, date, created_at), created_at, id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// ResetReminderFlags clears reminder_sent on Completed and Missed tasks.
func (d *DB) ResetReminderFlags(ctx context.Context) (int64, error) {
	result, err := d.db.ExecContext(ctx,
		`UPDATE tasks SET reminder_sent = 0, version = version + 1, updated_at = ?
		 WHERE reminder_sent = 1 AND status IN (?, ?)`,
		time.Now().UnixMilli(), string(domain.TaskCompleted), string(domain.TaskMissed),
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// overlapRule decides which stored tasks a placed task may not overlap.
type overlapRule struct {
	blocking []domain.TaskStatus
	// pendingOnly limits the check to tasks placed as Pending.
	pendingOnly bool
}

var (
	// userRule guards creation and user edits: no two non-completed tasks
	// of a user overlap.
	userRule = overlapRule{blocking: []domain.TaskStatus{domain.TaskPending, domain.TaskMissed}}

	// placementRule guards scheduler commits with the same busy set the
	// availability scan uses.
	placementRule = overlapRule{
		blocking:    domain.BlockingStatuses(),
		pendingOnly: true,
	}
)

// checkOverlap rejects t when its window intersects a task of the same user
// in one of rule's blocking statuses.
func checkOverlap(ctx context.Context, tx *sql.Tx, t domain.Task, rule overlapRule) error {
	// Recurring templates only describe a time of day; they never occupy time.
	if t.Type != domain.TaskOneTime || !t.HasWindow() {
		return nil
	}
	if rule.pendingOnly && t.Status != domain.TaskPending {
		return nil
	}

	args := []any{t.UserID, t.ID}
	marks := make([]string, len(rule.blocking))
	for i, st := range rule.blocking {
		marks[i] = "?"
		args = append(args, string(st))
	}
	args = append(args, string(domain.TaskOneTime), t.EndTime.UnixMilli(), t.StartTime.UnixMilli())

	var conflictID string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM tasks
		 WHERE user_id = ? AND id <> ? AND status IN (`+strings.Join(marks, ", ")+`) AND type = ?
		   AND start_time IS NOT NULL AND end_time IS NOT NULL
		   AND start_time < ? AND end_time > ?
		 LIMIT 1`,
		args...,
	).Scan(&conflictID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("overlap check: %w", err)
	}
	return fmt.Errorf("%w: conflicts with %s", domain.ErrTaskOverlap, conflictID)
}

func taskWhere(f domain.TaskFilter) ([]string, []any) {
	var where []string
	var args []any
	add := func(cond string, a ...any) {
		where = append(where, cond)
		args = append(args, a...)
	}

	if f.UserID != "" {
		add(`user_id = ?`, f.UserID)
	}
	if len(f.Statuses) > 0 {
		marks := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, `status IN (`+strings.Join(marks, ", ")+`)`)
	}
	if f.Type != "" {
		add(`type = ?`, string(f.Type))
	}
	if f.Weekday != nil {
		add(`instr(',' || recurrence_rule || ',', ?) > 0`, ","+strconv.Itoa(int(*f.Weekday))+",")
	}
	if f.Name != "" {
		add(`name = ?`, f.Name)
	}
	if !f.DateFrom.IsZero() {
		add(`date >= ?`, f.DateFrom.UnixMilli())
	}
	if !f.DateBefore.IsZero() {
		add(`date < ?`, f.DateBefore.UnixMilli())
	}
	if !f.StartFrom.IsZero() {
		add(`start_time >= ?`, f.StartFrom.UnixMilli())
	}
	if !f.StartBefore.IsZero() {
		add(`start_time < ?`, f.StartBefore.UnixMilli())
	}
	if !f.EndedBy.IsZero() {
		add(`end_time IS NOT NULL AND end_time <= ?`, f.EndedBy.UnixMilli())
	}
	if f.Overlapping != nil {
		add(`start_time IS NOT NULL AND end_time IS NOT NULL AND start_time < ? AND end_time > ?`,
			f.Overlapping.End.UnixMilli(), f.Overlapping.Start.UnixMilli())
	}
	if f.ReminderSent != nil {
		add(`reminder_sent = ?`, *f.ReminderSent)
	}
	if f.ImmediateMissedNotified != nil {
		add(`immediate_missed_notified = ?`, *f.ImmediateMissedNotified)
	}
	if f.ExcludeID != "" {
		add(`id <> ?`, f.ExcludeID)
	}
	return where, args
}

func scanTask(s scanner) (domain.Task, error) {
	var t domain.Task
	var date, start, end sql.NullInt64
	var typ, rule, status, category, priority string
	var createdAt, updatedAt int64

	err := s.Scan(&t.ID, &t.UserID, &t.Name, &t.Description,
		&date, &start, &end, &typ, &rule, &status, &category, &priority,
		&t.ReminderSent, &t.ImmediateMissedNotified,
		&t.Version, &createdAt, &updatedAt)
	if err != nil {
		return domain.Task{}, err
	}

	t.Date = fromNullMillis(date)
	t.StartTime = fromNullMillis(start)
	t.EndTime = fromNullMillis(end)
	t.Type = domain.TaskType(typ)
	t.Status = domain.TaskStatus(status)
	t.Category = domain.Category(category)
	t.Priority = domain.Priority(priority)
	t.CreatedAt = time.UnixMilli(createdAt)
	t.UpdatedAt = time.UnixMilli(updatedAt)
	t.RecurrenceRule, err = decodeWeekdays(rule)
	if err != nil {
		return domain.Task{}, fmt.Errorf("task %s: %w", t.ID, err)
	}
	return t, nil
}

// encodeWeekdays stores a recurrence rule as "1,3,5".
func encodeWeekdays(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func decodeWeekdays(s string) ([]time.Weekday, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	days := make([]time.Weekday, 0, len(parts))
	for _, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, fmt.Errorf("bad recurrence rule %q", s)
		}
		days = append(days, time.Weekday(n))
	}
	return days, nil
}
