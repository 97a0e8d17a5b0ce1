package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Default sleep window when a user never configured one.
const (
	DefaultSleepStart = "23:00"
	DefaultSleepEnd   = "07:00"
)

// SleepWindow is the user's nightly "do not schedule" range in "HH:mm".
type SleepWindow struct {
	Start string `json:"sleepStart"`
	End   string `json:"sleepEnd"`
}

// DefaultSleepWindow returns 23:00–07:00.
func DefaultSleepWindow() SleepWindow {
	return SleepWindow{Start: DefaultSleepStart, End: DefaultSleepEnd}
}

// UserSettings is the per-user configuration consumed by the scheduler.
type UserSettings struct {
	UserID string `json:"userId"`
	SleepWindow
	UpdatedAt time.Time `json:"updatedAt"`
}

// Validate checks both clocks parse as HH:mm.
func (w SleepWindow) Validate() error {
	if _, _, err := ParseClock(w.Start); err != nil {
		return fmt.Errorf("%w: start: %v", ErrInvalidSleepWindow, err)
	}
	if _, _, err := ParseClock(w.End); err != nil {
		return fmt.Errorf("%w: end: %v", ErrInvalidSleepWindow, err)
	}
	return nil
}

// Wraps reports whether the window crosses midnight (e.g. 23 → 7).
func (w SleepWindow) Wraps() bool {
	startHour, _, _ := ParseClock(w.Start)
	endHour, _, _ := ParseClock(w.End)
	return startHour > endHour
}

// ContainsHour reports whether an hour of day falls inside the window.
// Comparison is at hour granularity: minutes of the configured clocks are ignored.
func (w SleepWindow) ContainsHour(hour int) bool {
	startHour, _, _ := ParseClock(w.Start)
	endHour, _, _ := ParseClock(w.End)

	if startHour > endHour {
		// Wraps midnight: e.g., 23:00 – 07:00
		return hour >= startHour || hour < endHour
	}
	return hour >= startHour && hour < endHour
}

// ParseClock parses "HH:mm" into hour and minute.
func ParseClock(s string) (int, int, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("clock %q is not HH:mm", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, 0, fmt.Errorf("clock %q has invalid hour", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, 0, fmt.Errorf("clock %q has invalid minute", s)
	}
	return h, m, nil
}
