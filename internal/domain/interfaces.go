package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// TaskFilter selects tasks. Zero-valued fields do not constrain the query.
type TaskFilter struct {
	UserID   string
	Statuses []TaskStatus
	Type     TaskType
	Weekday  *time.Weekday // recurrence rule contains this weekday
	Name     string

	DateFrom   time.Time // Date >= DateFrom
	DateBefore time.Time // Date < DateBefore

	StartFrom   time.Time // StartTime >= StartFrom
	StartBefore time.Time // StartTime < StartBefore
	EndedBy     time.Time // EndTime <= EndedBy

	// Overlapping selects tasks whose [StartTime, EndTime) intersects it.
	Overlapping *Interval

	ReminderSent            *bool
	ImmediateMissedNotified *bool

	ExcludeID string
	Limit     int
}

// TaskRepository abstracts task persistence.
type TaskRepository interface {
	// FindTasks returns matching tasks ordered by start time.
	FindTasks(ctx context.Context, filter TaskFilter) ([]Task, error)

	// GetTask returns ErrTaskNotFound when no task has the id.
	GetTask(ctx context.Context, id string) (Task, error)

	// CreateTask assigns an id and version and stores the task.
	// Returns ErrTaskOverlap if its window would overlap another
	// non-completed task of the same user.
	CreateTask(ctx context.Context, t Task) (Task, error)

	// SaveTask writes t only if the stored version still equals t.Version
	// (ErrVersionConflict otherwise). A write that places t as Pending (new
	// window, type or status) must not overlap a Pending or Completed task
	// (ErrTaskOverlap). Flag-only writes are never overlap-checked.
	SaveTask(ctx context.Context, t Task) (Task, error)

	// UpdateTask is SaveTask for user edits: a write that places t must not
	// overlap another non-completed task.
	UpdateTask(ctx context.Context, t Task) (Task, error)

	// DeleteTask removes the task and its notifications. Returns
	// ErrTaskNotFound when no task has the id.
	DeleteTask(ctx context.Context, id string) error
}

// SettingsStore exposes per-user scheduling configuration.
type SettingsStore interface {
	// SleepWindow returns the user's window, or the default when unset.
	SleepWindow(ctx context.Context, userID string) (SleepWindow, error)
	SaveSleepWindow(ctx context.Context, userID string, w SleepWindow) error
}

// ProgressStore persists completion history.
type ProgressStore interface {
	InsertProgress(ctx context.Context, p ProgressRecord) (ProgressRecord, error)
	// RecentProgress returns the newest records first.
	RecentProgress(ctx context.Context, userID string, status TaskStatus, limit int) ([]ProgressRecord, error)
}

// NotificationSink receives user-facing messages. The scheduler treats
// emission as fire-and-forget: errors are logged, never propagated.
type NotificationSink interface {
	Emit(ctx context.Context, n Notification) error
}
