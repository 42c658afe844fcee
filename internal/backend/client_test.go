package backend

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/oauth2"

	"github.com/nhle/shipdesk-notify/internal/model"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, opts ...Option) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "tok-123"})
	return NewClient(srv.URL+"/api", tokens, zaptest.NewLogger(t), opts...)
}

func TestListMineSendsBearerAndNormalizes(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/notifications/getMynotification", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Write([]byte(`{"notifications":[
			{"_id":"n1","type":"shipment","message":"Parcel picked up","isRead":false},
			{"id":"n2","type":"wallet","title":"Top-up","message":"Wallet credited","read":true}
		]}`))
	})

	list, err := c.ListMine(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "n1", list[0].ID)
	assert.Equal(t, "shipment", list[0].DisplayTitle())
	assert.False(t, list[0].IsRead)
	assert.True(t, list[0].IsBroadcast())

	assert.Equal(t, "n2", list[1].ID)
	assert.Equal(t, "Top-up", list[1].DisplayTitle())
	assert.True(t, list[1].IsRead)
}

func TestListMineUnknownShapeIsEmpty(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"foo":"bar"}`))
	})

	list, err := c.ListMine(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, list)
	assert.Empty(t, list)
}

func TestUnreadCount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/notifications/unread-count", r.URL.Path)
		w.Write([]byte(`{"unreadCount":7}`))
	})

	n, err := c.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestMarkRead(t *testing.T) {
	var called atomic.Bool
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called.Store(true)
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/notifications/n42/read", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, c.MarkRead(context.Background(), "n42"))
	assert.True(t, called.Load())
}

func TestSendBroadcastPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/notifications", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t,
			`{"title":"Maintenance","message":"System down 10pm","type":"broadcast","customerId":null}`,
			string(body),
		)

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"success":true,"notification":{"_id":"n9","message":"System down 10pm"}}`))
	})

	req, err := model.Draft{
		Title:    "Maintenance",
		Message:  "System down 10pm",
		Audience: model.AudienceAll,
	}.Request()
	require.NoError(t, err)

	res, err := c.Send(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.False(t, res.Soft)
	require.NotNil(t, res.Notification)
	assert.Equal(t, "n9", res.Notification.ID)
}

func TestSendEmitFailureIsClassified(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Cannot read property of undefined (emit)"}`))
	})

	_, err := c.Send(context.Background(), model.SendRequest{Message: "x", Type: model.ScopeBroadcast})
	require.Error(t, err)
	assert.True(t, IsEmitFailure(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "Cannot read property of undefined (emit)", apiErr.Message)
}

func TestIsEmitFailure(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain error", io.EOF, false},
		{"500 emit", &APIError{StatusCode: 500, Message: "io.Emit failed"}, true},
		{"502 emit", &APIError{StatusCode: 502, Message: "socket emit timeout"}, true},
		{"500 other", &APIError{StatusCode: 500, Message: "database unavailable"}, false},
		{"400 emit", &APIError{StatusCode: 400, Message: "emit not allowed"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEmitFailure(tt.err))
		})
	}
}

func TestUnauthorizedIsAuthError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := c.UnreadCount(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
}

func TestRateLimitIsRetried(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		json.NewEncoder(w).Encode(map[string]int{"unreadCount": 2})
	})

	n, err := c.UnreadCount(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(2), calls.Load())
}

func TestRateLimitRetriesAreBounded(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusTooManyRequests)
	}, WithMaxRetries(1))

	_, err := c.UnreadCount(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries (1) exceeded")
	assert.Equal(t, int32(2), calls.Load())
}
