// Package domain holds the planner's pure types: tasks, time windows,
// user settings, progress snapshots and notifications.
// A task flows: created (Pending) → Completed | Missed → (rescheduled) Pending.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus tracks task lifecycle.
type TaskStatus string

const (
	TaskPending   TaskStatus = "Pending"
	TaskCompleted TaskStatus = "Completed"
	TaskMissed    TaskStatus = "Missed"
)

// Valid reports whether s is a known status.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskCompleted, TaskMissed:
		return true
	}
	return false
}

// BlockingStatuses are the statuses whose time ranges count as busy when
// searching for and committing a new slot. User edits are held to the wider
// rule that no two non-completed tasks overlap.
func BlockingStatuses() []TaskStatus {
	return []TaskStatus{TaskPending, TaskCompleted}
}

// TaskType distinguishes one-off tasks from recurring templates.
type TaskType string

const (
	TaskOneTime   TaskType = "One-time"
	TaskRecurring TaskType = "Recurring"
)

// Category classifies what a task is about.
type Category string

const (
	CategoryHealth    Category = "Health"
	CategoryAcademics Category = "Academics"
	CategoryFun       Category = "Fun"
	CategoryChores    Category = "Chores"
	CategoryOther     Category = "Other"
)

// Categories lists every known category in display order.
func Categories() []Category {
	return []Category{CategoryHealth, CategoryAcademics, CategoryFun, CategoryChores, CategoryOther}
}

// Valid reports whether c is a known category. Empty is allowed.
func (c Category) Valid() bool {
	if c == "" {
		return true
	}
	for _, known := range Categories() {
		if c == known {
			return true
		}
	}
	return false
}

// Priority ranks task importance.
type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
)

// Valid reports whether p is a known priority. Empty is allowed.
func (p Priority) Valid() bool {
	switch p {
	case "", PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Task is one scheduled unit of work owned by a user.
type Task struct {
	ID          string `json:"id"`
	UserID      string `json:"userId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	Date      time.Time `json:"date"`
	StartTime time.Time `json:"startTime"`
	EndTime   time.Time `json:"endTime"`

	Type           TaskType       `json:"type"`
	RecurrenceRule []time.Weekday `json:"recurrenceRule,omitempty"`

	Status   TaskStatus `json:"status"`
	Category Category   `json:"category,omitempty"`
	Priority Priority   `json:"priority"`

	ReminderSent            bool `json:"reminderSent"`
	ImmediateMissedNotified bool `json:"immediateMissedNotified"`

	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks the fields a task must carry before it is stored.
func (t *Task) Validate() error {
	var problems []string
	if strings.TrimSpace(t.UserID) == "" {
		problems = append(problems, "user id is required")
	}
	if strings.TrimSpace(t.Name) == "" {
		problems = append(problems, "name is required")
	}
	if !t.StartTime.IsZero() && !t.EndTime.IsZero() && !t.EndTime.After(t.StartTime) {
		problems = append(problems, "end time must be after start time")
	}
	switch t.Type {
	case TaskOneTime:
	case TaskRecurring:
		if len(t.RecurrenceRule) == 0 {
			problems = append(problems, "recurring task needs at least one weekday")
		}
		seen := make(map[time.Weekday]bool, len(t.RecurrenceRule))
		for _, d := range t.RecurrenceRule {
			if d < time.Sunday || d > time.Saturday {
				problems = append(problems, fmt.Sprintf("weekday %d out of range", d))
				continue
			}
			if seen[d] {
				problems = append(problems, fmt.Sprintf("duplicate weekday %d", d))
			}
			seen[d] = true
		}
	default:
		problems = append(problems, fmt.Sprintf("unknown type %q", t.Type))
	}
	if t.Status != "" && !t.Status.Valid() {
		problems = append(problems, fmt.Sprintf("unknown status %q", t.Status))
	}
	if !t.Category.Valid() {
		problems = append(problems, fmt.Sprintf("unknown category %q", t.Category))
	}
	if !t.Priority.Valid() {
		problems = append(problems, fmt.Sprintf("unknown priority %q", t.Priority))
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTask, strings.Join(problems, "; "))
	}
	return nil
}

// Duration returns EndTime − StartTime. Both must be set and ordered.
func (t *Task) Duration() (time.Duration, error) {
	if t.StartTime.IsZero() || t.EndTime.IsZero() {
		return 0, fmt.Errorf("%w: start and end time are required", ErrInvalidTaskDuration)
	}
	d := t.EndTime.Sub(t.StartTime)
	if d <= 0 {
		return 0, fmt.Errorf("%w: end time must be after start time", ErrInvalidTaskDuration)
	}
	return d, nil
}

// Interval returns the task's [StartTime, EndTime) range.
func (t *Task) Interval() Interval {
	return Interval{Start: t.StartTime, End: t.EndTime}
}

// HasWindow reports whether both start and end time are set.
func (t *Task) HasWindow() bool {
	return !t.StartTime.IsZero() && !t.EndTime.IsZero()
}

// RecursOn reports whether a recurring task regenerates on the given weekday.
func (t *Task) RecursOn(day time.Weekday) bool {
	if t.Type != TaskRecurring {
		return false
	}
	for _, d := range t.RecurrenceRule {
		if d == day {
			return true
		}
	}
	return false
}

// IsTerminal returns true once the task can no longer change status.
func (t *Task) IsTerminal() bool {
	return t.Status == TaskCompleted
}

// ApplyDefaults fills the fields a freshly created task may omit.
func (t *Task) ApplyDefaults() {
	if t.Status == "" {
		t.Status = TaskPending
	}
	if t.Type == "" {
		t.Type = TaskOneTime
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
}

// ─── Time Windows ───────────────────────────────────────────────────────────

// Interval is a half-open [Start, End) time range.
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && i.End.After(o.Start)
}

// Slot is a candidate placement for a task.
type Slot struct {
	Start time.Time `json:"startTime"`
	End   time.Time `json:"endTime"`
	Score int       `json:"score"`
}

// Interval returns the slot's range.
func (s Slot) Interval() Interval {
	return Interval{Start: s.Start, End: s.End}
}

// StartOfDay returns midnight of t's calendar day in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
