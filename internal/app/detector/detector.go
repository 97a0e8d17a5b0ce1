// Package detector runs the periodic sweep over the task store.
//
// Recurring templates are never swept; only their one-time instances are.
// Each sweep, in order:
//   - generates today's recurring instances when the day rolled over
//   - sends upcoming-task reminders and resets stale reminder flags
//   - signals tasks that just ended ("did you finish it?")
//   - finalizes tasks overdue past the grace period as Missed and
//     reschedules them
package detector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dayplanner-app/dayplanner/internal/app/recurring"
	"github.com/dayplanner-app/dayplanner/internal/app/reminder"
	"github.com/dayplanner-app/dayplanner/internal/app/reschedule"
	"github.com/dayplanner-app/dayplanner/internal/domain"
	"github.com/dayplanner-app/dayplanner/internal/infra/metrics"
)

// Defaults.
const (
	DefaultInterval    = 5 * time.Minute
	DefaultGracePeriod = 15 * time.Minute // global; never per user or task
	DefaultTaskTimeout = 30 * time.Second
)

// Rescheduler moves a task into a new slot.
type Rescheduler interface {
	Reschedule(ctx context.Context, task domain.Task) reschedule.Result
}

// Config tunes the sweep.
type Config struct {
	Interval    time.Duration
	GracePeriod time.Duration
	TaskTimeout time.Duration
}

// Deps are the detector's collaborators. Reminders and Recurring are optional.
type Deps struct {
	Tasks       domain.TaskRepository
	Progress    domain.ProgressStore
	Rescheduler Rescheduler
	Sink        domain.NotificationSink
	Reminders   *reminder.Service
	Recurring   *recurring.Generator
	Clock       domain.Clock
	Location    *time.Location
	Logger      *slog.Logger
}

// Report counts what one sweep did.
type Report struct {
	Notified    int `json:"notified"`
	Missed      int `json:"missed"`
	Rescheduled int `json:"rescheduled"`
	Failed      int `json:"failed"`
	Reminded    int `json:"reminded"`
	Generated   int `json:"generated"`
}

// Detector sweeps for ended and overdue tasks.
type Detector struct {
	cfg  Config
	deps Deps
	log  *slog.Logger

	mu      sync.Mutex // one sweep at a time
	lastDay time.Time

	lastSweep atomic.Int64 // unix nanos of the last finished sweep
}

// New creates a detector. Zero config fields take their defaults.
func New(cfg Config, deps Deps) *Detector {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}
	if deps.Location == nil {
		deps.Location = time.Local
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Detector{cfg: cfg, deps: deps, log: deps.Logger.With("component", "detector")}
}

// Run sweeps immediately and then every interval until ctx is cancelled.
// Call in a goroutine.
func (d *Detector) Run(ctx context.Context) {
	d.RunOnce(ctx)

	ticker := time.NewTicker(d.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep. Failures of single tasks are counted and
// logged; the sweep always continues with the next task.
func (d *Detector) RunOnce(ctx context.Context) Report {
	d.mu.Lock()
	defer d.mu.Unlock()

	start := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(start).Seconds()) }()

	now := d.deps.Clock.Now()
	var rep Report

	d.generateRecurring(ctx, now, &rep)
	d.remind(ctx, &rep)
	d.signalEnded(ctx, now, &rep)
	d.finalizeOverdue(ctx, now, &rep)

	for action, n := range map[string]int{
		"notified":    rep.Notified,
		"missed":      rep.Missed,
		"rescheduled": rep.Rescheduled,
		"failed":      rep.Failed,
		"reminded":    rep.Reminded,
		"generated":   rep.Generated,
	} {
		if n > 0 {
			metrics.DetectorActions.WithLabelValues(action).Add(float64(n))
		}
	}

	d.lastSweep.Store(time.Now().UnixNano())
	if rep != (Report{}) {
		d.log.Info("sweep done",
			"notified", rep.Notified, "missed", rep.Missed, "rescheduled", rep.Rescheduled,
			"failed", rep.Failed, "reminded", rep.Reminded, "generated", rep.Generated)
	}
	return rep
}

// LastSweep returns when the last sweep finished, or the zero time.
func (d *Detector) LastSweep() time.Time {
	n := d.lastSweep.Load()
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n)
}

// Interval returns the sweep period.
func (d *Detector) Interval() time.Duration { return d.cfg.Interval }

// ─── Steps ──────────────────────────────────────────────────────────────────

func (d *Detector) generateRecurring(ctx context.Context, now time.Time, rep *Report) {
	if d.deps.Recurring == nil {
		return
	}
	today := domain.StartOfDay(now, d.deps.Location)
	if today.Equal(d.lastDay) {
		return
	}
	gen, err := d.deps.Recurring.Generate(ctx, "")
	if err != nil {
		d.log.Error("generate recurring instances", "error", err)
		rep.Failed++
		return
	}
	d.lastDay = today
	rep.Generated += gen.Created
	rep.Failed += gen.Failed
}

func (d *Detector) remind(ctx context.Context, rep *Report) {
	if d.deps.Reminders == nil {
		return
	}
	sent, failed := d.deps.Reminders.SendUpcoming(ctx)
	rep.Reminded += sent
	rep.Failed += failed

	if n, err := d.deps.Reminders.ResetFlags(ctx); err != nil {
		d.log.Error("reset reminder flags", "error", err)
	} else if n > 0 {
		d.log.Debug("reminder flags reset", "tasks", n)
	}
}

// signalEnded asks about Pending tasks whose end time has passed. The task
// keeps its status; only the flag changes.
func (d *Detector) signalEnded(ctx context.Context, now time.Time, rep *Report) {
	notNotified := false
	ended, err := d.deps.Tasks.FindTasks(ctx, domain.TaskFilter{
		Statuses:                []domain.TaskStatus{domain.TaskPending},
		Type:                    domain.TaskOneTime,
		EndedBy:                 now,
		ImmediateMissedNotified: &notNotified,
	})
	if err != nil {
		d.log.Error("find ended tasks", "error", err)
		rep.Failed++
		return
	}

	for _, task := range ended {
		err := d.withTimeout(ctx, func(ctx context.Context) error {
			task.ImmediateMissedNotified = true
			if _, err := d.deps.Tasks.SaveTask(ctx, task); err != nil {
				return fmt.Errorf("mark notified: %w", err)
			}
			d.notify(ctx, task, domain.NotifyTaskEnded, EndedMessage(task.Name), now)
			return nil
		})
		if err != nil {
			d.log.Error("signal ended task", "task", task.ID, "error", err)
			rep.Failed++
			continue
		}
		rep.Notified++
	}
}

// finalizeOverdue marks tasks Missed once the grace period has passed,
// records the miss and reschedules.
func (d *Detector) finalizeOverdue(ctx context.Context, now time.Time, rep *Report) {
	overdue, err := d.deps.Tasks.FindTasks(ctx, domain.TaskFilter{
		Statuses: []domain.TaskStatus{domain.TaskPending},
		Type:     domain.TaskOneTime,
		EndedBy:  now.Add(-d.cfg.GracePeriod),
	})
	if err != nil {
		d.log.Error("find overdue tasks", "error", err)
		rep.Failed++
		return
	}

	for _, task := range overdue {
		var res reschedule.Result
		err := d.withTimeout(ctx, func(ctx context.Context) error {
			var err error
			res, err = d.finalize(ctx, task, now)
			return err
		})
		if err != nil {
			d.log.Error("finalize overdue task", "task", task.ID, "error", err)
			rep.Failed++
			continue
		}
		rep.Missed++
		switch {
		case res.Success:
			rep.Rescheduled++
		case res.Reason == reschedule.ReasonPersistence || res.Reason == reschedule.ReasonConflict:
			rep.Failed++
		}
	}
}

func (d *Detector) finalize(ctx context.Context, task domain.Task, now time.Time) (reschedule.Result, error) {
	task.Status = domain.TaskMissed
	saved, err := d.deps.Tasks.SaveTask(ctx, task)
	if err != nil {
		return reschedule.Result{}, fmt.Errorf("mark missed: %w", err)
	}

	if d.deps.Progress != nil {
		if _, err := d.deps.Progress.InsertProgress(ctx, domain.NewProgressRecord(saved, domain.TaskMissed, now)); err != nil {
			d.log.Warn("record missed progress", "task", saved.ID, "error", err)
		}
	}

	var res reschedule.Result
	if d.deps.Rescheduler != nil {
		res = d.deps.Rescheduler.Reschedule(ctx, saved)
	} else {
		res = reschedule.Result{TaskID: saved.ID, Message: "Rescheduling is disabled", Reason: reschedule.ReasonNoSlot}
	}

	d.notify(ctx, saved, domain.NotifyMissed, MissedMessage(saved.Name, res, d.deps.Location), now)
	return res, nil
}

func (d *Detector) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.cfg.TaskTimeout)
	defer cancel()
	err := fn(ctx)
	if errors.Is(ctx.Err(), context.DeadlineExceeded) && err == nil {
		return ctx.Err()
	}
	return err
}

func (d *Detector) notify(ctx context.Context, task domain.Task, kind domain.NotificationKind, msg string, now time.Time) {
	if d.deps.Sink == nil {
		return
	}
	err := d.deps.Sink.Emit(ctx, domain.Notification{
		UserID:    task.UserID,
		TaskID:    task.ID,
		Kind:      kind,
		Message:   msg,
		CreatedAt: now,
	})
	if err != nil {
		d.log.Warn("emit notification", "task", task.ID, "kind", kind, "error", err)
	}
}

// ─── Messages ───────────────────────────────────────────────────────────────

// EndedMessage is sent when a Pending task's end time passes.
func EndedMessage(name string) string {
	return fmt.Sprintf("Task just ended: %s. Did you finish it?", name)
}

// MissedMessage is sent when a task is finalized as Missed.
func MissedMessage(name string, res reschedule.Result, loc *time.Location) string {
	if res.Success {
		return fmt.Sprintf("Task missed: %s. Rescheduled to %s", name, res.NewTime.In(loc).Format(reschedule.TimeLayout))
	}
	return fmt.Sprintf("Task missed: %s. %s", name, res.Message)
}
