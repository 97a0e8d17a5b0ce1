package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure: no infrastructure dependency.

var (
	// Task errors
	ErrTaskNotFound        = errors.New("task not found")
	ErrInvalidTask         = errors.New("invalid task")
	ErrInvalidTaskDuration = errors.New("task has no valid duration")
	ErrTaskCompleted       = errors.New("task is already completed")

	// Write conflicts
	ErrTaskOverlap     = errors.New("task overlaps with an existing task")
	ErrVersionConflict = errors.New("task was modified concurrently")

	// Settings errors
	ErrInvalidSleepWindow = errors.New("invalid sleep window")

	// Scheduling errors
	ErrUnknownStrategy = errors.New("unknown scoring strategy")
)
