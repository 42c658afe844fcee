package model

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftRequest(t *testing.T) {
	tests := []struct {
		name    string
		draft   Draft
		want    SendRequest
		wantErr bool
	}{
		{
			name:  "broadcast",
			draft: Draft{Title: "Maintenance", Message: "Down 2-3am", Audience: AudienceAll},
			want:  SendRequest{Title: "Maintenance", Message: "Down 2-3am", Type: ScopeBroadcast},
		},
		{
			name:  "empty audience broadcasts",
			draft: Draft{Message: "hi", RecipientID: "ignored"},
			want:  SendRequest{Message: "hi", Type: ScopeBroadcast},
		},
		{
			name:  "targeted",
			draft: Draft{Message: "Parcel at depot", Audience: AudienceSpecific, RecipientID: " cust-42 "},
			want:  SendRequest{Message: "Parcel at depot", Type: ScopeTargeted, CustomerID: strPtr("cust-42")},
		},
		{
			name:    "targeted without recipient",
			draft:   Draft{Message: "hi", Audience: AudienceSpecific},
			wantErr: true,
		},
		{
			name:    "blank message",
			draft:   Draft{Message: "   "},
			wantErr: true,
		},
		{
			name:    "unknown audience",
			draft:   Draft{Message: "hi", Audience: "admins"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.draft.Request()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSendRequestWireForm(t *testing.T) {
	req, err := Draft{Title: "Maintenance", Message: "Down 2-3am"}.Request()
	require.NoError(t, err)

	data, err := json.Marshal(req)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"Maintenance","message":"Down 2-3am","type":"broadcast","customerId":null}`, string(data))
}

func TestNotificationUnmarshalVariants(t *testing.T) {
	var a Notification
	require.NoError(t, json.Unmarshal([]byte(`{
		"_id": "m1",
		"customerId": "cust-1",
		"type": "carrier",
		"message": "Carrier assigned",
		"read": true,
		"createdAt": "2024-05-01T09:00:00.123Z"
	}`), &a))
	assert.Equal(t, "m1", a.ID)
	require.NotNil(t, a.RecipientID)
	assert.Equal(t, "cust-1", *a.RecipientID)
	assert.True(t, a.IsRead)
	assert.False(t, a.IsBroadcast())
	assert.Equal(t, "carrier", a.DisplayTitle())
	assert.Equal(t, 2024, a.CreatedAt.Year())

	var b Notification
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "n2",
		"_id": "ignored",
		"customerId": null,
		"title": "Payout",
		"message": "Sent",
		"isRead": false,
		"read": true,
		"createdAt": "yesterday"
	}`), &b))
	assert.Equal(t, "n2", b.ID)
	assert.True(t, b.IsBroadcast())
	assert.False(t, b.IsRead)
	assert.Equal(t, "Payout", b.DisplayTitle())
	assert.True(t, b.CreatedAt.IsZero())
}

func TestCountUnread(t *testing.T) {
	assert.Zero(t, CountUnread(nil))
	assert.Equal(t, 2, CountUnread([]Notification{
		{ID: "a"}, {ID: "b", IsRead: true}, {ID: "c"},
	}))
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:5000/api", cfg.API.BaseURL)
	assert.Equal(t, DefaultTokenKey, cfg.Session.TokenKey)
	assert.Equal(t, PermissionDefault, cfg.Display.DesktopNotifications)
	assert.Equal(t, 60, cfg.Sync.RefreshIntervalSec)
	assert.Equal(t, 3, cfg.API.MaxRetries)
	assert.Equal(t, 10, cfg.Realtime.HandshakeTimeoutSec)
	assert.Equal(t, "ws://localhost:5000/ws", cfg.RealtimeURL())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("SHIPDESK_API_BASE_URL", "https://ops.example.com/api")
	t.Setenv("SHIPDESK_SESSION_USER_ID", "user-7")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "https://ops.example.com/api", cfg.API.BaseURL)
	assert.Equal(t, "user-7", cfg.Session.UserID)
	assert.Equal(t, "wss://ops.example.com/ws", cfg.RealtimeURL())
}

func TestSaveAndLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := defaultAppConfig()
	cfg.Session.UserID = "user-1"
	cfg.Realtime.URL = "wss://push.example.com/socket"
	cfg.Display.DesktopNotifications = PermissionGranted
	require.NoError(t, SaveConfig(path, cfg))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "user-1", loaded.Session.UserID)
	assert.Equal(t, PermissionGranted, loaded.Display.DesktopNotifications)
	assert.Equal(t, "wss://push.example.com/socket", loaded.RealtimeURL())
}

func TestLoadConfigNormalisesUnknownPermission(t *testing.T) {
	t.Setenv("SHIPDESK_DISPLAY_DESKTOP_NOTIFICATIONS", "sometimes")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, PermissionDefault, cfg.Display.DesktopNotifications)
}

func strPtr(s string) *string { return &s }
