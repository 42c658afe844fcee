package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Audience is the admin-facing choice of who receives a notification.
type Audience string

const (
	AudienceAll      Audience = "all"
	AudienceSpecific Audience = "specific"
)

// Scope is the backend's notification scope enum.
type Scope string

const (
	ScopeBroadcast Scope = "broadcast"
	ScopeTargeted  Scope = "targeted"
)

// Draft is a notification composed by an admin before it is sent.
type Draft struct {
	Title       string
	Message     string
	Audience    Audience
	RecipientID string
}

// SendRequest is the wire body of POST /notifications, also reused as the
// payload of the realtime send event.
type SendRequest struct {
	Title      string  `json:"title"`
	Message    string  `json:"message"`
	Type       Scope   `json:"type"`
	CustomerID *string `json:"customerId"`
}

// Request translates the draft into the backend's wire form. The recipient
// is only carried for targeted sends.
func (d Draft) Request() (SendRequest, error) {
	if strings.TrimSpace(d.Message) == "" {
		return SendRequest{}, fmt.Errorf("message is required")
	}

	req := SendRequest{
		Title:   d.Title,
		Message: d.Message,
	}

	switch d.Audience {
	case AudienceAll, "":
		req.Type = ScopeBroadcast
	case AudienceSpecific:
		recipient := strings.TrimSpace(d.RecipientID)
		if recipient == "" {
			return SendRequest{}, fmt.Errorf("recipient is required for a specific send")
		}
		req.Type = ScopeTargeted
		req.CustomerID = &recipient
	default:
		return SendRequest{}, fmt.Errorf("unknown audience %q", d.Audience)
	}

	return req, nil
}

// SendResult is what a send reports back to the caller. Soft marks a send
// that the backend persisted but failed to fan out.
type SendResult struct {
	Success      bool            `json:"success"`
	Soft         bool            `json:"soft,omitempty"`
	Notification *Notification   `json:"notification,omitempty"`
	Raw          json.RawMessage `json:"-"`
}

// SoftSuccess is returned when the backend stored the notification but
// reported a push-emission failure.
func SoftSuccess() *SendResult {
	return &SendResult{Success: true, Soft: true}
}
