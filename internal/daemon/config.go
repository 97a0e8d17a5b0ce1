// Package daemon manages the planner daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	NATS      NATSConfig      `toml:"nats"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Logging   LoggingConfig   `toml:"logging"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// SchedulerConfig tunes the detector sweep and the reschedule search.
// Durations are Go duration strings ("5m", "90s").
type SchedulerConfig struct {
	Enabled        bool   `toml:"enabled"`
	Interval       string `toml:"interval"`
	GracePeriod    string `toml:"grace_period"`
	TaskTimeout    string `toml:"task_timeout"`
	DaysAhead      int    `toml:"days_ahead"`
	MinScore       int    `toml:"min_score"`
	AttemptTimeout string `toml:"attempt_timeout"`
	Strategy       string `toml:"strategy"` // heuristic or weighted
	Timezone       string `toml:"timezone"` // IANA name; empty means local
	ReminderLead   string `toml:"reminder_lead"`
}

// NATSConfig enables publishing notifications to JetStream.
type NATSConfig struct {
	Enabled       bool   `toml:"enabled"`
	URL           string `toml:"url"`
	Stream        string `toml:"stream"`
	SubjectPrefix string `toml:"subject_prefix"`
}

// TelemetryConfig controls the Prometheus endpoint.
type TelemetryConfig struct {
	Metrics bool `toml:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // text or json
	File   string `toml:"file"`   // empty logs to stderr
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host:        "127.0.0.1",
			Port:        8420,
			CORSOrigins: []string{"*"},
		},
		Scheduler: SchedulerConfig{
			Enabled:        true,
			Interval:       "5m",
			GracePeriod:    "15m",
			TaskTimeout:    "30s",
			DaysAhead:      7,
			MinScore:       30,
			AttemptTimeout: "10s",
			Strategy:       "heuristic",
			ReminderLead:   "10m",
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:4222",
			Stream:        "DAYPLANNER_NOTIFICATIONS",
			SubjectPrefix: "dayplanner.notifications",
		},
		Telemetry: TelemetryConfig{
			Metrics: true,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// ConfigPath returns the location of config.toml.
func ConfigPath() string {
	return filepath.Join(dayplannerHome(), "config.toml")
}

// LoadConfig reads config from ~/.dayplanner/config.toml, falling back to defaults.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom reads config from path. A missing file yields the defaults.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil // No config file yet, use defaults
	}

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	if _, err := cfg.Location(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config to ~/.dayplanner/config.toml.
func SaveConfig(cfg Config) error {
	return SaveConfigTo(ConfigPath(), cfg)
}

// SaveConfigTo writes the config to path, creating parent directories.
func SaveConfigTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Location resolves the scheduler timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Scheduler.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler timezone %q: %w", c.Scheduler.Timezone, err)
	}
	return loc, nil
}

// Addr returns host:port for the API listener.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.API.Host, c.API.Port)
}

// parseDuration parses s, returning fallback when s is empty, malformed or
// not positive.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// dayplannerHome returns the data directory.
func dayplannerHome() string {
	if env := os.Getenv("DAYPLANNER_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".dayplanner")
}

// Home is exported for use by other packages.
func Home() string {
	return dayplannerHome()
}
