package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/dayplanner-app/dayplanner/internal/domain"
	"github.com/dayplanner-app/dayplanner/internal/infra/metrics"
)

// Target is a named sink. The name labels delivery metrics.
type Target struct {
	Name string
	Sink domain.NotificationSink
}

// Fanout delivers each notification to every target. One target failing
// does not stop delivery to the others.
type Fanout struct {
	targets []Target
}

// NewFanout creates a fanout over targets. Nil sinks are skipped.
func NewFanout(targets ...Target) *Fanout {
	f := &Fanout{}
	for _, t := range targets {
		if t.Sink != nil {
			f.targets = append(f.targets, t)
		}
	}
	return f
}

// Names lists the active targets.
func (f *Fanout) Names() []string {
	names := make([]string, len(f.targets))
	for i, t := range f.targets {
		names[i] = t.Name
	}
	return names
}

// Emit implements domain.NotificationSink. The returned error joins every
// target's failure.
func (f *Fanout) Emit(ctx context.Context, n domain.Notification) error {
	var errs []error
	for _, t := range f.targets {
		if err := t.Sink.Emit(ctx, n); err != nil {
			metrics.NotificationErrors.WithLabelValues(t.Name).Inc()
			errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
			continue
		}
		metrics.NotificationsEmitted.WithLabelValues(t.Name, string(n.Kind)).Inc()
	}
	return errors.Join(errs...)
}
