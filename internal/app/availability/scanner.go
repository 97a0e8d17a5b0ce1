// Package availability computes the free slots a task could be moved into
// on a given day, honouring the user's sleep window and existing tasks.
package availability

import (
	"context"
	"fmt"
	"time"

	"github.com/dayplanner-app/dayplanner/internal/domain"
	"github.com/dayplanner-app/dayplanner/internal/infra/metrics"
)

// Scan window and granularity. Operator constants, not user settings.
const (
	WindowStartHour = 6
	WindowEndHour   = 23
	SlotStep        = 30 * time.Minute
)

// Request describes one day's scan.
type Request struct {
	UserID   string
	Day      time.Time     // any instant on the target day
	Duration time.Duration // length of the task being placed
	// ExcludeTaskID is ignored when checking conflicts, so a task being
	// moved never collides with its own current window.
	ExcludeTaskID string
}

// Scanner finds free slots. It only reads.
type Scanner struct {
	tasks    domain.TaskRepository
	settings domain.SettingsStore
	clock    domain.Clock
	loc      *time.Location
}

// NewScanner creates a scanner reading days in loc.
func NewScanner(tasks domain.TaskRepository, settings domain.SettingsStore, clock domain.Clock, loc *time.Location) *Scanner {
	if loc == nil {
		loc = time.Local
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Scanner{tasks: tasks, settings: settings, clock: clock, loc: loc}
}

// Location returns the zone days are interpreted in.
func (s *Scanner) Location() *time.Location { return s.loc }

// Window returns the [06:00, 23:00) scan window of day in the scanner's zone.
func (s *Scanner) Window(day time.Time) domain.Interval {
	d := day.In(s.loc)
	return domain.Interval{
		Start: time.Date(d.Year(), d.Month(), d.Day(), WindowStartHour, 0, 0, 0, s.loc),
		End:   time.Date(d.Year(), d.Month(), d.Day(), WindowEndHour, 0, 0, 0, s.loc),
	}
}

// FindAvailableSlots returns the free slots of req.Day in chronological
// order, each with score 0. Candidates start every SlotStep inside the scan
// window; a candidate is dropped when it starts in the past, starts in the
// sleep window, or overlaps a Pending or Completed one-time task of the user.
// No slots is a normal result, not an error.
func (s *Scanner) FindAvailableSlots(ctx context.Context, req Request) ([]domain.Slot, error) {
	if req.Duration <= 0 {
		return nil, fmt.Errorf("%w: duration %s", domain.ErrInvalidTaskDuration, req.Duration)
	}

	sleep, err := s.settings.SleepWindow(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("load sleep window: %w", err)
	}

	window := s.Window(req.Day)
	// Slots may run past the window end, so conflicts are looked up over
	// the full reach of the last candidate.
	reach := domain.Interval{Start: window.Start, End: window.End.Add(req.Duration)}
	existing, err := s.tasks.FindTasks(ctx, domain.TaskFilter{
		UserID:      req.UserID,
		Statuses:    domain.BlockingStatuses(),
		Type:        domain.TaskOneTime,
		Overlapping: &reach,
		ExcludeID:   req.ExcludeTaskID,
	})
	if err != nil {
		return nil, fmt.Errorf("load tasks: %w", err)
	}

	now := s.clock.Now()
	var slots []domain.Slot
	for start := window.Start; start.Before(window.End); start = start.Add(SlotStep) {
		if start.Before(now) {
			continue
		}
		if sleep.ContainsHour(start.In(s.loc).Hour()) {
			continue
		}
		candidate := domain.Interval{Start: start, End: start.Add(req.Duration)}
		if conflicts(candidate, existing) {
			continue
		}
		slots = append(slots, domain.Slot{Start: candidate.Start, End: candidate.End})
	}

	metrics.SlotsFound.Observe(float64(len(slots)))
	return slots, nil
}

// DayTasks returns the user's Pending and Completed tasks starting on day,
// the context the scorer weighs candidates against.
func (s *Scanner) DayTasks(ctx context.Context, userID string, day time.Time, excludeID string) ([]domain.Task, error) {
	start := domain.StartOfDay(day, s.loc)
	return s.tasks.FindTasks(ctx, domain.TaskFilter{
		UserID:      userID,
		Statuses:    domain.BlockingStatuses(),
		Type:        domain.TaskOneTime,
		StartFrom:   start,
		StartBefore: start.AddDate(0, 0, 1),
		ExcludeID:   excludeID,
	})
}

func conflicts(candidate domain.Interval, existing []domain.Task) bool {
	for i := range existing {
		if !existing[i].HasWindow() {
			continue
		}
		if candidate.Overlaps(existing[i].Interval()) {
			return true
		}
	}
	return false
}
