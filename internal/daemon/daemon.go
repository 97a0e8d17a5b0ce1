package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dayplanner-app/dayplanner/internal/api"
	"github.com/dayplanner-app/dayplanner/internal/app/availability"
	"github.com/dayplanner-app/dayplanner/internal/app/detector"
	"github.com/dayplanner-app/dayplanner/internal/app/notify"
	"github.com/dayplanner-app/dayplanner/internal/app/recurring"
	"github.com/dayplanner-app/dayplanner/internal/app/reminder"
	"github.com/dayplanner-app/dayplanner/internal/app/reschedule"
	"github.com/dayplanner-app/dayplanner/internal/app/scoring"
	"github.com/dayplanner-app/dayplanner/internal/app/tasks"
	"github.com/dayplanner-app/dayplanner/internal/domain"
	"github.com/dayplanner-app/dayplanner/internal/health"
	"github.com/dayplanner-app/dayplanner/internal/infra/natsbus"
	"github.com/dayplanner-app/dayplanner/internal/infra/sqlite"
	"github.com/dayplanner-app/dayplanner/internal/logging"
)

// Daemon is the planner runtime. It wires together all services.
type Daemon struct {
	Config Config
	Home   string
	Logger *slog.Logger
	DB     *sqlite.DB

	Tasks      *tasks.Service
	Reschedule *reschedule.Orchestrator
	Detector   *detector.Detector
	Reminders  *reminder.Service
	Recurring  *recurring.Generator
	Inbox      *notify.Inbox
	Sink       *notify.Fanout
	Bus        *natsbus.Publisher // nil unless [nats] is enabled
	BusGuard   *notify.Guard
	Health     *health.Checker
	Server     *api.Server

	logCloser io.Closer
	cancel    context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New(ctx context.Context) (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	return NewWithConfig(ctx, cfg, dayplannerHome(), domain.SystemClock{})
}

// NewWithConfig creates a Daemon rooted at home with the given configuration.
// ctx bounds startup work such as connecting to NATS. A nil clock means
// wall time.
func NewWithConfig(ctx context.Context, cfg Config, home string, clock domain.Clock) (*Daemon, error) {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	logger, logCloser, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}

	strategy, err := scoring.Lookup(cfg.Scheduler.Strategy)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("scheduler strategy: %w", err)
	}

	// Open SQLite
	db, err := sqlite.Open(home)
	if err != nil {
		logCloser.Close()
		return nil, fmt.Errorf("open database: %w", err)
	}

	d := &Daemon{
		Config:    cfg,
		Home:      home,
		Logger:    logger,
		DB:        db,
		logCloser: logCloser,
	}

	// ─── Notifications ─────────────────────────────────────────────────

	d.Inbox = notify.NewInbox(db, clock)
	targets := []notify.Target{{Name: "inbox", Sink: d.Inbox}}
	if cfg.NATS.Enabled {
		bus, err := natsbus.Connect(ctx, natsbus.Config{
			URL:           cfg.NATS.URL,
			Stream:        cfg.NATS.Stream,
			SubjectPrefix: cfg.NATS.SubjectPrefix,
		}, logger)
		if err != nil {
			d.Close()
			return nil, fmt.Errorf("nats: %w", err)
		}
		d.Bus = bus
		d.BusGuard = notify.NewGuard(bus, notify.GuardConfig{}, clock)
		targets = append(targets, notify.Target{Name: "nats", Sink: d.BusGuard})
	}
	d.Sink = notify.NewFanout(targets...)

	// ─── Scheduling ────────────────────────────────────────────────────

	scanner := availability.NewScanner(db, db, clock, loc)
	d.Reschedule = reschedule.New(reschedule.Config{
		DaysAhead:      cfg.Scheduler.DaysAhead,
		MinScore:       reschedule.Threshold(cfg.Scheduler.MinScore),
		AttemptTimeout: parseDuration(cfg.Scheduler.AttemptTimeout, reschedule.DefaultAttemptTimeout),
		Strategy:       strategy,
	}, reschedule.Deps{
		Tasks:    db,
		Progress: db,
		Scanner:  scanner,
		Sink:     d.Sink,
		Clock:    clock,
		Logger:   logger,
	})

	d.Tasks = tasks.NewService(db, db, clock, loc, logger)
	d.Recurring = recurring.NewGenerator(db, clock, loc, logger)
	d.Reminders = reminder.NewService(db, db, d.Sink, clock,
		parseDuration(cfg.Scheduler.ReminderLead, reminder.DefaultLead), logger)

	d.Detector = detector.New(detector.Config{
		Interval:    parseDuration(cfg.Scheduler.Interval, detector.DefaultInterval),
		GracePeriod: parseDuration(cfg.Scheduler.GracePeriod, detector.DefaultGracePeriod),
		TaskTimeout: parseDuration(cfg.Scheduler.TaskTimeout, detector.DefaultTaskTimeout),
	}, detector.Deps{
		Tasks:       db,
		Progress:    db,
		Rescheduler: d.Reschedule,
		Sink:        d.Sink,
		Reminders:   d.Reminders,
		Recurring:   d.Recurring,
		Clock:       clock,
		Location:    loc,
		Logger:      logger,
	})

	// ─── Health & API ──────────────────────────────────────────────────

	var extra []health.Check
	if d.Bus != nil {
		extra = append(extra, health.PingCheck("nats", d.Bus), health.Check{
			Name: "nats_delivery",
			CheckFn: func(context.Context) error {
				if st := d.BusGuard.State(); st == notify.GuardOpen {
					return fmt.Errorf("delivery %s after %d trips", st, d.BusGuard.Trips())
				}
				return nil
			},
		})
	}
	if cfg.Scheduler.Enabled {
		extra = append(extra, health.FreshnessCheck("detector", 3*d.Detector.Interval(), d.Detector.LastSweep))
	}
	d.Health = health.NewChecker(db, home, extra...)

	d.Server = api.NewServer(api.Services{
		Tasks:      d.Tasks,
		Reschedule: d.Reschedule,
		Recurring:  d.Recurring,
		Settings:   db,
		Inbox:      d.Inbox,
		Health:     d.Health,
	}, logger)
	d.Server.SetCORSOrigins(cfg.API.CORSOrigins)
	if cfg.Telemetry.Metrics {
		d.Server.EnableMetrics()
	}

	return d, nil
}

// Serve starts the background loops and the HTTP server and blocks until
// ctx is cancelled or a termination signal arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	defer cancel()

	// Health checker (always runs)
	go d.Health.Run(ctx)

	if d.Config.Scheduler.Enabled {
		go d.Detector.Run(ctx)
	}

	addr := d.Config.Addr()
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case <-sigCh:
			d.Logger.Info("shutdown signal received")
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	d.Logger.Info("dayplanner serving",
		"addr", "http://"+addr,
		"scheduler", d.Config.Scheduler.Enabled,
		"metrics", d.Config.Telemetry.Metrics,
		"sinks", d.Sink.Names())

	if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Sweep runs a single detector pass.
func (d *Daemon) Sweep(ctx context.Context) detector.Report {
	return d.Detector.RunOnce(ctx)
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Bus != nil {
		_ = d.Bus.Close()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
	if d.logCloser != nil {
		_ = d.logCloser.Close()
	}
}
