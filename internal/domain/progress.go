package domain

import "time"

// ProgressRecord is a snapshot of a task taken when it was completed or
// finalized as missed. The weighted scorer reads these as history.
type ProgressRecord struct {
	ID            string     `json:"id"`
	UserID        string     `json:"userId"`
	TaskID        string     `json:"taskId"`
	TaskName      string     `json:"taskName"`
	Category      Category   `json:"category"`
	Priority      Priority   `json:"priority"`
	Status        TaskStatus `json:"status"`
	CompletedAt   time.Time  `json:"completedAt"`
	OriginalStart time.Time  `json:"originalStartTime,omitempty"`
	OriginalEnd   time.Time  `json:"originalEndTime,omitempty"`
}

// NewProgressRecord snapshots a task with the given outcome.
func NewProgressRecord(t Task, status TaskStatus, at time.Time) ProgressRecord {
	return ProgressRecord{
		UserID:        t.UserID,
		TaskID:        t.ID,
		TaskName:      t.Name,
		Category:      t.Category,
		Priority:      t.Priority,
		Status:        status,
		CompletedAt:   at,
		OriginalStart: t.StartTime,
		OriginalEnd:   t.EndTime,
	}
}
