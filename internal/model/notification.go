package model

import (
	"encoding/json"
	"time"
)

// Notification is a single message addressed to one customer or broadcast
// to every user of the dashboard.
type Notification struct {
	// ID is the backend-assigned identifier.
	ID string `json:"id"`

	// RecipientID is the targeted customer, or nil for a broadcast.
	RecipientID *string `json:"customerId"`

	// Category tags the origin or purpose of the notification.
	Category string `json:"type"`

	// Title is an optional short label.
	Title string `json:"title,omitempty"`

	// Body is the human-readable message text.
	Body string `json:"message"`

	// IsRead flips from false to true once; there is no way back.
	IsRead bool `json:"isRead"`

	// CreatedAt is set by the backend at creation time.
	CreatedAt time.Time `json:"createdAt"`
}

// DisplayTitle returns the title, falling back to the category.
func (n Notification) DisplayTitle() string {
	if n.Title != "" {
		return n.Title
	}
	return n.Category
}

// IsBroadcast reports whether the notification targets every user.
func (n Notification) IsBroadcast() bool {
	return n.RecipientID == nil
}

// wireNotification accepts both spellings the backend has used for the
// identifier and read flag.
type wireNotification struct {
	ID          string  `json:"id"`
	MongoID     string  `json:"_id"`
	RecipientID *string `json:"customerId"`
	Category    string  `json:"type"`
	Title       string  `json:"title"`
	Body        string  `json:"message"`
	IsRead      *bool   `json:"isRead"`
	Read        *bool   `json:"read"`
	CreatedAt   string  `json:"createdAt"`
}

// UnmarshalJSON decodes a notification from any of the backend's payload
// variants. An unparseable createdAt is left as the zero time.
func (n *Notification) UnmarshalJSON(data []byte) error {
	var w wireNotification
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*n = Notification{
		ID:          w.ID,
		RecipientID: w.RecipientID,
		Category:    w.Category,
		Title:       w.Title,
		Body:        w.Body,
	}
	if n.ID == "" {
		n.ID = w.MongoID
	}

	switch {
	case w.IsRead != nil:
		n.IsRead = *w.IsRead
	case w.Read != nil:
		n.IsRead = *w.Read
	}

	if w.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339Nano, w.CreatedAt); err == nil {
			n.CreatedAt = t
		}
	}

	return nil
}

// CountUnread returns the number of unread entries in list.
func CountUnread(list []Notification) int {
	count := 0
	for _, n := range list {
		if !n.IsRead {
			count++
		}
	}
	return count
}

// ReadUpdate is pushed when a notification's read status changes on
// another client of the same user.
type ReadUpdate struct {
	NotificationID string `json:"notificationId"`
	ReadStatus     bool   `json:"readStatus"`
}
