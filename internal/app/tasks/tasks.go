// Package tasks implements the user-facing task operations that surround
// rescheduling: creation and edits with overlap checks, status changes,
// deletion and listing.
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dayplanner-app/dayplanner/internal/domain"
)

// Service manages a user's tasks.
type Service struct {
	tasks    domain.TaskRepository
	progress domain.ProgressStore
	clock    domain.Clock
	loc      *time.Location
	logger   *slog.Logger
}

// NewService creates a task service. Days are read in loc.
func NewService(tasks domain.TaskRepository, progress domain.ProgressStore, clock domain.Clock, loc *time.Location, logger *slog.Logger) *Service {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{tasks: tasks, progress: progress, clock: clock, loc: loc, logger: logger.With("component", "tasks")}
}

// Location is the zone days are read in.
func (s *Service) Location() *time.Location { return s.loc }

// Create stores a new task for userID. Server-owned fields are reset.
// Returns domain.ErrInvalidTask or domain.ErrTaskOverlap on rejection.
func (s *Service) Create(ctx context.Context, userID string, t domain.Task) (domain.Task, error) {
	t.ID = ""
	t.UserID = userID
	t.Version = 0
	t.ReminderSent = false
	t.ImmediateMissedNotified = false
	if t.Status == "" || t.Status == domain.TaskMissed {
		t.Status = domain.TaskPending
	}
	if t.Date.IsZero() && !t.StartTime.IsZero() {
		t.Date = domain.StartOfDay(t.StartTime, s.loc)
	}

	created, err := s.tasks.CreateTask(ctx, t)
	if err != nil {
		return domain.Task{}, err
	}
	s.logger.Info("task created", "task", created.ID, "user", userID, "type", created.Type)
	return created, nil
}

// Get returns one of userID's tasks. Tasks of other users are reported as
// not found.
func (s *Service) Get(ctx context.Context, userID, id string) (domain.Task, error) {
	t, err := s.tasks.GetTask(ctx, id)
	if err != nil {
		return domain.Task{}, err
	}
	if t.UserID != userID {
		return domain.Task{}, fmt.Errorf("%w: %s", domain.ErrTaskNotFound, id)
	}
	return t, nil
}

// ListOptions narrows List. Zero fields do not filter.
type ListOptions struct {
	Status domain.TaskStatus
	From   time.Time // Date >= From
	To     time.Time // Date < To
	Limit  int
}

// List returns userID's tasks in start order.
func (s *Service) List(ctx context.Context, userID string, opts ListOptions) ([]domain.Task, error) {
	f := domain.TaskFilter{
		UserID:     userID,
		DateFrom:   opts.From,
		DateBefore: opts.To,
		Limit:      opts.Limit,
	}
	if opts.Status != "" {
		if !opts.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTask, opts.Status)
		}
		f.Statuses = []domain.TaskStatus{opts.Status}
	}
	return s.tasks.FindTasks(ctx, f)
}

// Complete marks a task Completed and records it in the progress history
// the weighted scorer learns from.
func (s *Service) Complete(ctx context.Context, userID, id string) (domain.Task, error) {
	t, err := s.Get(ctx, userID, id)
	if err != nil {
		return domain.Task{}, err
	}
	if t.IsTerminal() {
		return domain.Task{}, fmt.Errorf("%w: %s", domain.ErrTaskCompleted, id)
	}

	now := s.clock.Now()
	t.Status = domain.TaskCompleted
	saved, err := s.tasks.SaveTask(ctx, t)
	if err != nil {
		return domain.Task{}, fmt.Errorf("complete task: %w", err)
	}
	if _, err := s.progress.InsertProgress(ctx, domain.NewProgressRecord(saved, domain.TaskCompleted, now)); err != nil {
		s.logger.Warn("record completion", "task", saved.ID, "error", err)
	}
	return saved, nil
}

// Patch lists the fields of a task a user may edit. Nil fields are kept.
type Patch struct {
	Name           *string          `json:"name,omitempty"`
	Description    *string          `json:"description,omitempty"`
	Date           *time.Time       `json:"date,omitempty"`
	StartTime      *time.Time       `json:"startTime,omitempty"`
	EndTime        *time.Time       `json:"endTime,omitempty"`
	Type           *domain.TaskType `json:"type,omitempty"`
	RecurrenceRule []time.Weekday   `json:"recurrenceRule,omitempty"`
	Category       *domain.Category `json:"category,omitempty"`
	Priority       *domain.Priority `json:"priority,omitempty"`
}

func (p Patch) apply(t *domain.Task) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if p.StartTime != nil {
		t.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		t.EndTime = *p.EndTime
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.RecurrenceRule != nil {
		t.RecurrenceRule = p.RecurrenceRule
	}
	if p.Category != nil {
		t.Category = *p.Category
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
}

// Update edits one of userID's tasks. A new window re-derives the day
// unless the patch sets one, and re-arms the reminder and end signals.
// Returns domain.ErrTaskOverlap when the new window collides with another
// non-completed task.
func (s *Service) Update(ctx context.Context, userID, id string, p Patch) (domain.Task, error) {
	t, err := s.Get(ctx, userID, id)
	if err != nil {
		return domain.Task{}, err
	}
	before := t.Interval()
	p.apply(&t)

	if after := t.Interval(); !after.Start.Equal(before.Start) || !after.End.Equal(before.End) {
		if p.Date == nil && !t.StartTime.IsZero() {
			t.Date = domain.StartOfDay(t.StartTime, s.loc)
		}
		t.ReminderSent = false
		t.ImmediateMissedNotified = false
	}

	saved, err := s.tasks.UpdateTask(ctx, t)
	if err != nil {
		return domain.Task{}, err
	}
	s.logger.Info("task updated", "task", saved.ID, "user", userID)
	return saved, nil
}

// SetStatus moves one of userID's tasks to status. Completed and Missed
// are recorded in the progress history; reopening a task as Pending
// re-arms its signals. Setting the current status is a no-op.
func (s *Service) SetStatus(ctx context.Context, userID, id string, status domain.TaskStatus) (domain.Task, error) {
	if !status.Valid() {
		return domain.Task{}, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidTask, status)
	}
	t, err := s.Get(ctx, userID, id)
	if err != nil {
		return domain.Task{}, err
	}
	if t.Status == status {
		return t, nil
	}

	t.Status = status
	if status == domain.TaskPending {
		t.ReminderSent = false
		t.ImmediateMissedNotified = false
	}
	saved, err := s.tasks.UpdateTask(ctx, t)
	if err != nil {
		return domain.Task{}, err
	}

	if status != domain.TaskPending {
		rec := domain.NewProgressRecord(saved, status, s.clock.Now())
		if _, err := s.progress.InsertProgress(ctx, rec); err != nil {
			s.logger.Warn("record status change", "task", saved.ID, "status", status, "error", err)
		}
	}
	s.logger.Info("task status set", "task", saved.ID, "user", userID, "status", status)
	return saved, nil
}

// Delete removes one of userID's tasks and its notifications.
func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.tasks.DeleteTask(ctx, id); err != nil {
		return err
	}
	s.logger.Info("task deleted", "task", id, "user", userID)
	return nil
}

// ─── Summary ────────────────────────────────────────────────────────────────

// Summary counts a user's outcomes over a period.
type Summary struct {
	From             time.Time               `json:"from"`
	Completed        int                     `json:"completed"`
	Missed           int                     `json:"missed"`
	Pending          int                     `json:"pending"`
	MissedByType     map[domain.TaskType]int `json:"missedByType"`
	MissedByPriority map[domain.Priority]int `json:"missedByPriority"`
	MissedByCategory map[domain.Category]int `json:"missedByCategory"`
}

// WeeklySummary summarizes the tasks dated within the last 7 days.
func (s *Service) WeeklySummary(ctx context.Context, userID string) (Summary, error) {
	from := domain.StartOfDay(s.clock.Now(), s.loc).AddDate(0, 0, -7)
	list, err := s.tasks.FindTasks(ctx, domain.TaskFilter{UserID: userID, DateFrom: from})
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{
		From:             from,
		MissedByType:     map[domain.TaskType]int{},
		MissedByPriority: map[domain.Priority]int{},
		MissedByCategory: map[domain.Category]int{},
	}
	for _, t := range list {
		switch t.Status {
		case domain.TaskCompleted:
			sum.Completed++
		case domain.TaskPending:
			sum.Pending++
		case domain.TaskMissed:
			sum.Missed++
			sum.MissedByType[t.Type]++
			sum.MissedByPriority[t.Priority]++
			sum.MissedByCategory[t.Category]++
		}
	}
	return sum, nil
}
