// Package natsbus publishes planner notifications to a NATS JetStream
// stream so other processes (push gateways, mail relays) can consume them.
package natsbus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/dayplanner-app/dayplanner/internal/domain"
)

// Defaults.
const (
	DefaultStream        = "DAYPLANNER_NOTIFICATIONS"
	DefaultSubjectPrefix = "dayplanner.notifications"
	DefaultMaxAge        = 7 * 24 * time.Hour
)

// Config describes the connection and the stream.
type Config struct {
	URL           string
	Stream        string
	SubjectPrefix string
	MaxAge        time.Duration
}

func (c *Config) applyDefaults() {
	if c.Stream == "" {
		c.Stream = DefaultStream
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = DefaultSubjectPrefix
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
}

// Publisher is a domain.NotificationSink backed by JetStream.
type Publisher struct {
	cfg    Config
	nc     *nats.Conn
	js     jetstream.JetStream
	ownsNC bool
	logger *slog.Logger
}

// Connect dials cfg.URL and ensures the stream exists.
func Connect(ctx context.Context, cfg Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("natsbus: url is required")
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name("dayplanner"),
		nats.Timeout(5*time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
	)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.URL, err)
	}
	p, err := New(ctx, nc, cfg, logger)
	if err != nil {
		nc.Close()
		return nil, err
	}
	p.ownsNC = true
	return p, nil
}

// New wraps an existing connection and ensures the stream exists. The caller
// keeps ownership of nc.
func New(ctx context.Context, nc *nats.Conn, cfg Config, logger *slog.Logger) (*Publisher, error) {
	cfg.applyDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        cfg.Stream,
		Description: "Dayplanner user notifications",
		Subjects:    []string{cfg.SubjectPrefix + ".>"},
		MaxAge:      cfg.MaxAge,
		Storage:     jetstream.FileStorage,
		Duplicates:  2 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("ensure stream %s: %w", cfg.Stream, err)
	}
	return &Publisher{cfg: cfg, nc: nc, js: js, logger: logger.With("component", "natsbus")}, nil
}

// Subject returns the subject a user's notifications are published on.
func (p *Publisher) Subject(userID string) string {
	return p.cfg.SubjectPrefix + "." + subjectToken(userID)
}

// Stream returns the stream name.
func (p *Publisher) Stream() string { return p.cfg.Stream }

// Emit implements domain.NotificationSink. Notifications without an id get
// one so the stream can deduplicate retries.
func (p *Publisher) Emit(ctx context.Context, n domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	ack, err := p.js.Publish(ctx, p.Subject(n.UserID), data, jetstream.WithMsgID(n.ID))
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	p.logger.Debug("notification published", "user", n.UserID, "kind", n.Kind, "seq", ack.Sequence)
	return nil
}

// Ping reports whether the connection is usable.
func (p *Publisher) Ping(ctx context.Context) error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats: %s", p.nc.Status())
	}
	if _, err := p.js.Stream(ctx, p.cfg.Stream); err != nil {
		return fmt.Errorf("stream %s: %w", p.cfg.Stream, err)
	}
	return nil
}

// Close drains the connection when the publisher opened it.
func (p *Publisher) Close() error {
	if !p.ownsNC {
		return nil
	}
	return p.nc.Drain()
}

// subjectToken makes userID safe as a single subject token.
func subjectToken(userID string) string {
	if userID == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, userID)
}
