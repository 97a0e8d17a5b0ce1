package domain

import "time"

// NotificationKind categorizes notifications.
type NotificationKind string

const (
	NotifyReminder    NotificationKind = "reminder"
	NotifyTaskEnded   NotificationKind = "task_ended"
	NotifyMissed      NotificationKind = "missed"
	NotifyRescheduled NotificationKind = "rescheduled"
)

// Notification is a user-facing message, optionally tied to a task.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"userId"`
	TaskID    string           `json:"taskId,omitempty"`
	Kind      NotificationKind `json:"kind"`
	Message   string           `json:"message"`
	CreatedAt time.Time        `json:"time"`
	Read      bool             `json:"read"`
}
