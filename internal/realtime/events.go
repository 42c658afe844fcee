package realtime

import "encoding/json"

// Event names exchanged with the backend's socket server.
const (
	// EventNotificationNew carries a full notification payload.
	EventNotificationNew = "notification:new"

	// EventNotificationRead carries {notificationId, readStatus}.
	EventNotificationRead = "notification:read"

	// EventMarkRead is sent with {notificationId} after a local read.
	EventMarkRead = "notification:markRead"

	// EventSend is sent with the send request body for live fan-out.
	EventSend = "notification:send"
)

// Envelope is a single text frame on the socket.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// MarkReadPayload is the body of EventMarkRead.
type MarkReadPayload struct {
	NotificationID string `json:"notificationId"`
}
