package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"go.uber.org/zap"

	"github.com/nhle/shipdesk-notify/internal/model"
)

const (
	pathListMine    = "/notifications/getMynotification"
	pathUnreadCount = "/notifications/unread-count"
	pathSend        = "/notifications"
)

// unreadCountResponse is the body of GET /notifications/unread-count.
type unreadCountResponse struct {
	UnreadCount int `json:"unreadCount"`
}

// ListMine fetches every notification visible to the signed-in user.
// Unrecognised response shapes are logged and returned as an empty list.
func (c *Client) ListMine(ctx context.Context) ([]model.Notification, error) {
	body, err := c.get(ctx, pathListMine)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}

	list, shape := NormalizeList(body)
	if shape == ShapeUnknown {
		c.logger.Warn("unrecognised notification list shape",
			zap.Int("bytes", len(body)),
		)
	}

	return list, nil
}

// UnreadCount fetches the backend's unread counter.
func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	body, err := c.get(ctx, pathUnreadCount)
	if err != nil {
		return 0, fmt.Errorf("fetching unread count: %w", err)
	}

	var resp unreadCountResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return 0, fmt.Errorf("decoding unread count: %w", err)
	}
	if resp.UnreadCount < 0 {
		resp.UnreadCount = 0
	}

	return resp.UnreadCount, nil
}

// MarkRead marks a single notification as read on the backend.
func (c *Client) MarkRead(ctx context.Context, id string) error {
	path := "/notifications/" + url.PathEscape(id) + "/read"
	if _, err := c.put(ctx, path, nil); err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	return nil
}

// Send creates a notification. The backend's response is echoed back; a
// body that is not a JSON object still counts as success.
//
// A push-emission failure is returned as an error like any other 5xx;
// callers decide whether to downgrade it with IsEmitFailure.
func (c *Client) Send(ctx context.Context, req model.SendRequest) (*model.SendResult, error) {
	body, err := c.post(ctx, pathSend, req)
	if err != nil {
		return nil, fmt.Errorf("sending notification: %w", err)
	}

	result := &model.SendResult{Success: true, Raw: json.RawMessage(body)}

	var echoed struct {
		Success      *bool               `json:"success"`
		Notification *model.Notification `json:"notification"`
		Data         *model.Notification `json:"data"`
	}
	if json.Unmarshal(body, &echoed) == nil {
		if echoed.Success != nil {
			result.Success = *echoed.Success
		}
		result.Notification = echoed.Notification
		if result.Notification == nil {
			result.Notification = echoed.Data
		}
	}

	return result, nil
}
