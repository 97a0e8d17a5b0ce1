package notify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dayplanner-app/dayplanner/internal/domain"
)

// ErrSinkSuspended is returned while a guarded sink is skipped after
// repeated failures.
var ErrSinkSuspended = errors.New("sink suspended after repeated failures")

// GuardState is where a Guard sits in its closed, open, half-open cycle.
type GuardState int

const (
	GuardClosed   GuardState = iota // deliveries pass through
	GuardOpen                       // deliveries are refused until the cooldown ends
	GuardHalfOpen                   // deliveries pass; the first failure reopens
)

func (s GuardState) String() string {
	switch s {
	case GuardClosed:
		return "closed"
	case GuardOpen:
		return "open"
	case GuardHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// GuardConfig tunes a Guard.
type GuardConfig struct {
	FailureThreshold int           // consecutive failures that open the guard
	Cooldown         time.Duration // time open before trial deliveries
	TrialSuccesses   int           // half-open successes that close it again
}

// DefaultGuardConfig returns 5 failures, 30s cooldown, 2 trial successes.
func DefaultGuardConfig() GuardConfig {
	return GuardConfig{FailureThreshold: 5, Cooldown: 30 * time.Second, TrialSuccesses: 2}
}

// Guard suspends delivery to a sink after repeated failures and lets trial
// deliveries through once the cooldown ends.
type Guard struct {
	sink  domain.NotificationSink
	cfg   GuardConfig
	clock domain.Clock

	mu       sync.Mutex
	state    GuardState
	failures int
	trials   int
	openedAt time.Time
	trips    int
}

// NewGuard wraps sink. Zero config fields take their defaults.
func NewGuard(sink domain.NotificationSink, cfg GuardConfig, clock domain.Clock) *Guard {
	def := DefaultGuardConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}
	if cfg.TrialSuccesses <= 0 {
		cfg.TrialSuccesses = def.TrialSuccesses
	}
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Guard{sink: sink, cfg: cfg, clock: clock}
}

// Emit implements domain.NotificationSink.
func (g *Guard) Emit(ctx context.Context, n domain.Notification) error {
	if !g.allow() {
		return ErrSinkSuspended
	}
	err := g.sink.Emit(ctx, n)
	g.record(err == nil)
	return err
}

// State returns the current state, moving open to half-open once the
// cooldown has passed.
func (g *Guard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.advanceLocked()
	return g.state
}

// Trips counts how often the guard opened.
func (g *Guard) Trips() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.trips
}

func (g *Guard) allow() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.advanceLocked()
	return g.state != GuardOpen
}

func (g *Guard) record(ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	switch {
	case ok && g.state == GuardHalfOpen:
		g.trials++
		if g.trials >= g.cfg.TrialSuccesses {
			g.state, g.failures, g.trials = GuardClosed, 0, 0
		}
	case ok:
		g.failures = 0
	case g.state == GuardHalfOpen:
		g.openLocked()
	default:
		g.failures++
		if g.failures >= g.cfg.FailureThreshold {
			g.openLocked()
		}
	}
}

func (g *Guard) openLocked() {
	g.state = GuardOpen
	g.openedAt = g.clock.Now()
	g.trials = 0
	g.trips++
}

func (g *Guard) advanceLocked() {
	if g.state == GuardOpen && g.clock.Now().Sub(g.openedAt) >= g.cfg.Cooldown {
		g.state = GuardHalfOpen
		g.trials = 0
	}
}
