// Package recurring turns Recurring task templates into today's one-time
// instances.
package recurring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dayplanner-app/dayplanner/internal/domain"
)

// Report counts what one generation pass did.
type Report struct {
	Created  int `json:"created"`
	Existing int `json:"existing"` // today's instance was already there
	Skipped  int `json:"skipped"`  // the instance would overlap another task
	Failed   int `json:"failed"`
}

// Generator creates recurring instances.
type Generator struct {
	tasks  domain.TaskRepository
	clock  domain.Clock
	loc    *time.Location
	logger *slog.Logger
}

// NewGenerator creates a generator that reads "today" in loc.
func NewGenerator(tasks domain.TaskRepository, clock domain.Clock, loc *time.Location, logger *slog.Logger) *Generator {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	if loc == nil {
		loc = time.Local
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{tasks: tasks, clock: clock, loc: loc, logger: logger.With("component", "recurring")}
}

// Generate creates today's instance of every template whose rule contains
// today's weekday and which is not Missed. An empty userID covers all users.
// Instances keep the template's clock times and start Pending with both
// notification flags clear. Generation is idempotent per user, name and day.
func (g *Generator) Generate(ctx context.Context, userID string) (Report, error) {
	today := domain.StartOfDay(g.clock.Now(), g.loc)
	weekday := today.Weekday()

	templates, err := g.tasks.FindTasks(ctx, domain.TaskFilter{
		UserID:  userID,
		Type:    domain.TaskRecurring,
		Weekday: &weekday,
	})
	if err != nil {
		return Report{}, fmt.Errorf("find templates: %w", err)
	}

	var rep Report
	for _, tpl := range templates {
		if tpl.Status == domain.TaskMissed {
			continue
		}
		switch err := g.instantiate(ctx, tpl, today); {
		case err == nil:
			rep.Created++
		case errors.Is(err, errExists):
			rep.Existing++
		case errors.Is(err, domain.ErrTaskOverlap):
			g.logger.Info("recurring instance overlaps, skipped", "template", tpl.ID, "user", tpl.UserID)
			rep.Skipped++
		default:
			g.logger.Error("create recurring instance", "template", tpl.ID, "error", err)
			rep.Failed++
		}
	}
	return rep, nil
}

var errExists = errors.New("instance exists")

func (g *Generator) instantiate(ctx context.Context, tpl domain.Task, today time.Time) error {
	existing, err := g.tasks.FindTasks(ctx, domain.TaskFilter{
		UserID:     tpl.UserID,
		Name:       tpl.Name,
		Type:       domain.TaskOneTime,
		DateFrom:   today,
		DateBefore: today.AddDate(0, 0, 1),
		Limit:      1,
	})
	if err != nil {
		return fmt.Errorf("find instance: %w", err)
	}
	if len(existing) > 0 {
		return errExists
	}

	instance := domain.Task{
		UserID:      tpl.UserID,
		Name:        tpl.Name,
		Description: tpl.Description,
		Date:        today,
		Type:        domain.TaskOneTime,
		Status:      domain.TaskPending,
		Category:    tpl.Category,
		Priority:    tpl.Priority,
	}
	if tpl.HasWindow() {
		instance.StartTime = onDay(today, tpl.StartTime, g.loc)
		instance.EndTime = instance.StartTime.Add(tpl.EndTime.Sub(tpl.StartTime))
	}
	_, err = g.tasks.CreateTask(ctx, instance)
	return err
}

// onDay moves clock's time of day onto day.
func onDay(day, clock time.Time, loc *time.Location) time.Time {
	c := clock.In(loc)
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour(), c.Minute(), c.Second(), 0, loc)
}
