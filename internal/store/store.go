package store

import (
	"context"

	"github.com/nhle/shipdesk-notify/internal/model"
)

// Store defines the local persistence interface for the notification
// cache. Rows are partitioned by the signed-in user so switching accounts
// never shows another user's inbox.
type Store interface {
	// ReplaceNotifications swaps the user's cached list for list, keeping
	// its order (most recent first).
	ReplaceNotifications(ctx context.Context, userID string, list []model.Notification) error

	// UpsertNotification inserts n ahead of every cached entry, or updates
	// it in place when the id is already cached.
	UpsertNotification(ctx context.Context, userID string, n model.Notification) error

	// GetNotifications returns the user's cached list, most recent first.
	GetNotifications(ctx context.Context, userID string) ([]model.Notification, error)

	// MarkNotificationRead sets or clears the read flag of one entry.
	MarkNotificationRead(ctx context.Context, userID string, id string, read bool) error

	// ClearUser drops every cached entry for the user (logout).
	ClearUser(ctx context.Context, userID string) error
}
