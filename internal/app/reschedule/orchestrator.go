// Package reschedule moves a task into the best free slot of the coming days.
//
// One attempt: lock the user → reload the task → for each day ahead scan free
// slots, score them, accept the top slot if it beats the threshold → commit
// with the store's conditional write → notify. Every outcome is a Result;
// nothing escapes as a Go error.
package reschedule

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/dayplanner-app/dayplanner/internal/app/availability"
	"github.com/dayplanner-app/dayplanner/internal/app/scoring"
	"github.com/dayplanner-app/dayplanner/internal/domain"
	"github.com/dayplanner-app/dayplanner/internal/infra/metrics"
)

// Defaults.
const (
	DefaultDaysAhead      = 7
	DefaultMinScore       = 30 // a slot must score strictly above this
	DefaultAttemptTimeout = 10 * time.Second
)

// TimeLayout formats new start times in user-facing messages.
const TimeLayout = "Mon Jan 2 15:04"

// Reason classifies a failed attempt.
type Reason string

const (
	ReasonNoSlot          Reason = "no_slot"
	ReasonInvalidDuration Reason = "invalid_duration"
	ReasonInvalidState    Reason = "invalid_state"
	ReasonNotFound        Reason = "not_found"
	ReasonPersistence     Reason = "persistence"
	ReasonConflict        Reason = "conflict" // the slot was taken or the task changed before commit
)

// Result is the outcome of one attempt. It is returned verbatim as JSON by
// the manual reschedule endpoint.
type Result struct {
	TaskID   string    `json:"taskId"`
	Success  bool      `json:"success"`
	NewTime  time.Time `json:"newTime,omitzero"`
	EndTime  time.Time `json:"endTime,omitzero"`
	Score    int       `json:"score,omitempty"`
	Strategy string    `json:"strategy,omitempty"`
	Message  string    `json:"message"`
	Reason   Reason    `json:"reason,omitempty"`
}

// outcome is the metrics label for r.
func (r Result) outcome() string {
	if r.Success {
		return "success"
	}
	return string(r.Reason)
}

// Config tunes the search.
type Config struct {
	DaysAhead      int
	AttemptTimeout time.Duration
	Strategy       scoring.Strategy // default strategy for Reschedule

	// MinScore is the threshold a slot must beat. Nil means DefaultMinScore;
	// any set value, zero included, is used as is.
	MinScore *int
}

// DefaultConfig returns 7 days, threshold 30, the heuristic strategy.
func DefaultConfig() Config {
	return Config{
		DaysAhead:      DefaultDaysAhead,
		MinScore:       Threshold(DefaultMinScore),
		AttemptTimeout: DefaultAttemptTimeout,
		Strategy:       scoring.NewHeuristic(),
	}
}

// Threshold returns a MinScore value for Config.
func Threshold(n int) *int { return &n }

// Deps are the collaborators of an Orchestrator.
type Deps struct {
	Tasks    domain.TaskRepository
	Progress domain.ProgressStore
	Scanner  *availability.Scanner
	Sink     domain.NotificationSink // optional
	Clock    domain.Clock
	Logger   *slog.Logger
}

// Orchestrator runs reschedule attempts. Attempts for the same user are
// serialized; attempts for different users run in parallel.
type Orchestrator struct {
	cfg      Config
	minScore int
	tasks    domain.TaskRepository
	progress domain.ProgressStore
	scanner  *availability.Scanner
	sink     domain.NotificationSink
	clock    domain.Clock
	logger   *slog.Logger

	// Only users with an attempt running or waiting have an entry.
	locks *xsync.Map[string, *userLock]
}

// New creates an orchestrator. Zero config fields take their defaults.
func New(cfg Config, deps Deps) *Orchestrator {
	def := DefaultConfig()
	if cfg.DaysAhead <= 0 {
		cfg.DaysAhead = def.DaysAhead
	}
	if cfg.MinScore == nil {
		cfg.MinScore = def.MinScore
	}
	cfg.MinScore = Threshold(*cfg.MinScore)
	if cfg.AttemptTimeout <= 0 {
		cfg.AttemptTimeout = def.AttemptTimeout
	}
	if cfg.Strategy == nil {
		cfg.Strategy = def.Strategy
	}
	if deps.Clock == nil {
		deps.Clock = domain.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		minScore: *cfg.MinScore,
		tasks:    deps.Tasks,
		progress: deps.Progress,
		scanner:  deps.Scanner,
		sink:     deps.Sink,
		clock:    deps.Clock,
		logger:   deps.Logger.With("component", "reschedule"),
		locks:    xsync.NewMap[string, *userLock](),
	}
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config { return o.cfg }

// Reschedule moves task using the configured default strategy.
func (o *Orchestrator) Reschedule(ctx context.Context, task domain.Task) Result {
	return o.RescheduleWith(ctx, task, o.cfg.Strategy)
}

// RescheduleWith moves task using strategy. A nil strategy means the default.
func (o *Orchestrator) RescheduleWith(ctx context.Context, task domain.Task, strategy scoring.Strategy) Result {
	if strategy == nil {
		strategy = o.cfg.Strategy
	}
	start := time.Now()
	res := o.attempt(ctx, task, strategy)
	res.TaskID = task.ID
	res.Strategy = strategy.Name()

	metrics.RescheduleAttempts.WithLabelValues(strategy.Name(), res.outcome()).Inc()
	metrics.RescheduleLatency.WithLabelValues(strategy.Name()).Observe(time.Since(start).Seconds())

	if res.Success {
		o.logger.Info("task rescheduled",
			"task", task.ID, "user", task.UserID, "start", res.NewTime,
			"score", res.Score, "strategy", strategy.Name())
	} else {
		o.logger.Warn("reschedule failed",
			"task", task.ID, "user", task.UserID, "reason", res.Reason, "message", res.Message)
	}
	return res
}

// RescheduleMany reschedules each of ids in order with the default strategy.
// Ids that do not exist or belong to another user yield a not_found Result.
func (o *Orchestrator) RescheduleMany(ctx context.Context, userID string, ids []string) []Result {
	results := make([]Result, 0, len(ids))
	for _, id := range ids {
		task, err := o.tasks.GetTask(ctx, id)
		switch {
		case errors.Is(err, domain.ErrTaskNotFound) || (err == nil && task.UserID != userID):
			results = append(results, Result{TaskID: id, Message: "Task not found", Reason: ReasonNotFound})
		case err != nil:
			o.logger.Error("load task for bulk reschedule", "task", id, "error", err)
			results = append(results, Result{TaskID: id, Message: "Could not load task", Reason: ReasonPersistence})
		default:
			results = append(results, o.Reschedule(ctx, task))
		}
	}
	return results
}

// ─── Attempt ────────────────────────────────────────────────────────────────

func (o *Orchestrator) attempt(ctx context.Context, task domain.Task, strategy scoring.Strategy) Result {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.AttemptTimeout)
	defer cancel()

	unlock, err := o.lock(ctx, task.UserID)
	if err != nil {
		return failed(ReasonPersistence, "Timed out waiting for another reschedule of this user")
	}
	defer unlock()

	// Reload so decisions use the stored state, not the caller's copy.
	current, err := o.tasks.GetTask(ctx, task.ID)
	if errors.Is(err, domain.ErrTaskNotFound) || (err == nil && current.UserID != task.UserID) {
		return failed(ReasonNotFound, "Task not found")
	}
	if err != nil {
		o.logger.Error("reload task", "task", task.ID, "error", err)
		return failed(ReasonPersistence, "Could not load task")
	}
	if current.IsTerminal() {
		return failed(ReasonInvalidState, "Completed tasks cannot be rescheduled")
	}
	if current.Type == domain.TaskRecurring {
		return failed(ReasonInvalidState, "Recurring templates cannot be rescheduled")
	}

	duration, err := current.Duration()
	if err != nil {
		return failed(ReasonInvalidDuration, "Task has no valid duration")
	}

	loc := o.scanner.Location()
	today := domain.StartOfDay(o.clock.Now(), loc)

	var (
		history       []domain.ProgressRecord
		historyLoaded bool
	)
	for offset := 0; offset < o.cfg.DaysAhead; offset++ {
		day := today.AddDate(0, 0, offset)

		slots, err := o.scanner.FindAvailableSlots(ctx, availability.Request{
			UserID:        current.UserID,
			Day:           day,
			Duration:      duration,
			ExcludeTaskID: current.ID,
		})
		if err != nil {
			o.logger.Error("scan day", "task", current.ID, "day", day, "error", err)
			return failed(ReasonPersistence, "Could not read the schedule")
		}
		if len(slots) == 0 {
			continue
		}

		existing, err := o.scanner.DayTasks(ctx, current.UserID, day, current.ID)
		if err != nil {
			o.logger.Error("load day tasks", "task", current.ID, "day", day, "error", err)
			return failed(ReasonPersistence, "Could not read the schedule")
		}

		if strategy.UsesHistory() && !historyLoaded {
			history, err = o.progress.RecentProgress(ctx, current.UserID, domain.TaskCompleted, scoring.HistoryLimit)
			if err != nil {
				o.logger.Error("load history", "user", current.UserID, "error", err)
				return failed(ReasonPersistence, "Could not read completion history")
			}
			historyLoaded = true
		}

		scored := strategy.Score(slots, scoring.Input{
			Task:      current,
			Existing:  existing,
			History:   history,
			DayOffset: offset,
			Location:  loc,
		})
		best := scored[0]
		if best.Score <= o.minScore {
			o.logger.Debug("best slot below threshold",
				"task", current.ID, "day", day, "score", best.Score, "min", o.minScore)
			continue
		}
		return o.commit(ctx, current, day, offset, best)
	}

	return failed(ReasonNoSlot, fmt.Sprintf("No suitable time slot found within the next %d days", o.cfg.DaysAhead))
}

func (o *Orchestrator) commit(ctx context.Context, task domain.Task, day time.Time, offset int, slot domain.Slot) Result {
	task.Date = day
	task.StartTime = slot.Start
	task.EndTime = slot.End
	task.Status = domain.TaskPending
	task.ReminderSent = false
	task.ImmediateMissedNotified = false

	saved, err := o.tasks.SaveTask(ctx, task)
	switch {
	case errors.Is(err, domain.ErrTaskOverlap) || errors.Is(err, domain.ErrVersionConflict):
		return failed(ReasonConflict, "The schedule changed while rescheduling; try again")
	case err != nil:
		o.logger.Error("save rescheduled task", "task", task.ID, "error", err)
		return failed(ReasonPersistence, "Could not save the new time")
	}

	metrics.RescheduledDayOffset.Observe(float64(offset))

	loc := o.scanner.Location()
	msg := fmt.Sprintf("Task rescheduled to %s", slot.Start.In(loc).Format(TimeLayout))
	o.notify(ctx, domain.Notification{
		UserID:    saved.UserID,
		TaskID:    saved.ID,
		Kind:      domain.NotifyRescheduled,
		Message:   fmt.Sprintf("%s: %s", saved.Name, msg),
		CreatedAt: o.clock.Now(),
	})

	return Result{
		Success: true,
		NewTime: slot.Start,
		EndTime: slot.End,
		Score:   slot.Score,
		Message: msg,
	}
}

// notify is fire-and-forget: a sink failure never fails the attempt.
func (o *Orchestrator) notify(ctx context.Context, n domain.Notification) {
	if o.sink == nil {
		return
	}
	if err := o.sink.Emit(ctx, n); err != nil {
		o.logger.Warn("emit notification", "task", n.TaskID, "kind", n.Kind, "error", err)
	}
}

// userLock is a mutex that can be awaited with a context. refs counts the
// holder and the waiters; the entry is dropped when it reaches zero.
type userLock struct {
	ch   chan struct{}
	refs int
}

// lock acquires the per-user lock or fails when ctx ends first.
func (o *Orchestrator) lock(ctx context.Context, userID string) (func(), error) {
	l, _ := o.locks.Compute(userID, func(l *userLock, loaded bool) (*userLock, xsync.ComputeOp) {
		if !loaded {
			l = &userLock{ch: make(chan struct{}, 1)}
		}
		l.refs++
		return l, xsync.UpdateOp
	})
	release := func() {
		o.locks.Compute(userID, func(l *userLock, loaded bool) (*userLock, xsync.ComputeOp) {
			l.refs--
			if l.refs == 0 {
				return nil, xsync.DeleteOp
			}
			return l, xsync.UpdateOp
		})
	}

	select {
	case l.ch <- struct{}{}:
		return func() {
			<-l.ch
			release()
		}, nil
	case <-ctx.Done():
		release()
		return nil, ctx.Err()
	}
}

func failed(reason Reason, msg string) Result {
	return Result{Reason: reason, Message: msg}
}
