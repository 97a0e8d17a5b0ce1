// Package reminder notifies users shortly before a Pending task starts.
package reminder

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/dayplanner-app/dayplanner/internal/domain"
)

// Defaults.
const (
	DefaultLead        = 10 * time.Minute
	DefaultTaskTimeout = 30 * time.Second
)

// FlagResetter clears ReminderSent on tasks that can no longer start.
type FlagResetter interface {
	ResetReminderFlags(ctx context.Context) (int64, error)
}

// Service sends upcoming-task reminders.
type Service struct {
	tasks       domain.TaskRepository
	flags       FlagResetter
	sink        domain.NotificationSink
	clock       domain.Clock
	lead        time.Duration
	taskTimeout time.Duration
	logger      *slog.Logger
}

// NewService creates a reminder service. A zero lead means DefaultLead.
func NewService(tasks domain.TaskRepository, flags FlagResetter, sink domain.NotificationSink, clock domain.Clock, lead time.Duration, logger *slog.Logger) *Service {
	if lead <= 0 {
		lead = DefaultLead
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		tasks:       tasks,
		flags:       flags,
		sink:        sink,
		clock:       clock,
		lead:        lead,
		taskTimeout: DefaultTaskTimeout,
		logger:      logger.With("component", "reminder"),
	}
}

// Lead returns how far ahead reminders are sent.
func (s *Service) Lead() time.Duration { return s.lead }

// SendUpcoming reminds about every Pending task starting within the lead
// time that has not been reminded yet. The flag is written before the
// notification so a concurrent sweep cannot remind twice.
func (s *Service) SendUpcoming(ctx context.Context) (sent, failed int) {
	now := s.clock.Now()
	notSent := false
	upcoming, err := s.tasks.FindTasks(ctx, domain.TaskFilter{
		Statuses:     []domain.TaskStatus{domain.TaskPending},
		StartFrom:    now,
		StartBefore:  now.Add(s.lead),
		ReminderSent: &notSent,
	})
	if err != nil {
		s.logger.Error("find upcoming tasks", "error", err)
		return 0, 1
	}

	for _, task := range upcoming {
		if err := s.remind(ctx, task, now); err != nil {
			s.logger.Error("send reminder", "task", task.ID, "error", err)
			failed++
			continue
		}
		sent++
	}
	return sent, failed
}

func (s *Service) remind(ctx context.Context, task domain.Task, now time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, s.taskTimeout)
	defer cancel()

	task.ReminderSent = true
	if _, err := s.tasks.SaveTask(ctx, task); err != nil {
		return fmt.Errorf("mark reminded: %w", err)
	}
	if s.sink == nil {
		return nil
	}
	err := s.sink.Emit(ctx, domain.Notification{
		UserID:    task.UserID,
		TaskID:    task.ID,
		Kind:      domain.NotifyReminder,
		Message:   Message(task.Name, task.StartTime.Sub(now)),
		CreatedAt: now,
	})
	if err != nil {
		s.logger.Warn("emit reminder", "task", task.ID, "error", err)
	}
	return nil
}

// ResetFlags clears ReminderSent on Completed and Missed tasks.
func (s *Service) ResetFlags(ctx context.Context) (int64, error) {
	n, err := s.flags.ResetReminderFlags(ctx)
	if err != nil {
		return 0, fmt.Errorf("reset reminder flags: %w", err)
	}
	return n, nil
}

// Message renders the reminder text, rounding the wait up to whole minutes.
func Message(name string, until time.Duration) string {
	minutes := int(math.Ceil(until.Minutes()))
	switch {
	case minutes <= 0:
		return fmt.Sprintf("Reminder: %q starts now!", name)
	case minutes == 1:
		return fmt.Sprintf("Reminder: %q starts in 1 minute!", name)
	default:
		return fmt.Sprintf("Reminder: %q starts in %d minutes!", name, minutes)
	}
}
