// Package notify delivers user-facing notifications.
//
// The scheduler only sees domain.NotificationSink. Behind it an Inbox keeps
// notifications for the HTTP API to list, and a Fanout forwards each one to
// every configured sink (inbox, message bus).
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dayplanner-app/dayplanner/internal/domain"
)

// InboxStore persists notifications per user.
type InboxStore interface {
	InsertNotification(ctx context.Context, n domain.Notification) (domain.Notification, error)
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) (bool, error)
}

var errNoUser = errors.New("notification has no user")

// Inbox stores notifications for later listing.
type Inbox struct {
	store InboxStore
	clock domain.Clock
}

// NewInbox creates an inbox over store.
func NewInbox(store InboxStore, clock domain.Clock) *Inbox {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Inbox{store: store, clock: clock}
}

// Emit implements domain.NotificationSink.
func (i *Inbox) Emit(ctx context.Context, n domain.Notification) error {
	if strings.TrimSpace(n.UserID) == "" {
		return errNoUser
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = i.clock.Now()
	}
	n.Read = false
	if _, err := i.store.InsertNotification(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

// List returns a user's notifications, newest first.
func (i *Inbox) List(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	return i.store.ListNotifications(ctx, userID, unreadOnly, limit)
}

// MarkRead marks one notification read. Returns false if the user has no
// notification with that id.
func (i *Inbox) MarkRead(ctx context.Context, userID, id string) (bool, error) {
	return i.store.MarkNotificationRead(ctx, userID, id)
}
