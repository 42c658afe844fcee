package app

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/nhle/shipdesk-notify/internal/backend"
	"github.com/nhle/shipdesk-notify/internal/model"
	appsync "github.com/nhle/shipdesk-notify/internal/sync"
	"github.com/nhle/shipdesk-notify/internal/ui/sendform"
)

type fakePermissions struct {
	perm model.DesktopPermission
}

func (f *fakePermissions) Permission() model.DesktopPermission    { return f.perm }
func (f *fakePermissions) SetPermission(p model.DesktopPermission) { f.perm = p }

// newTestModel returns a sized root model. The synchronizer is never
// started, so no backend or transport is needed.
func newTestModel(t *testing.T) Model {
	t.Helper()
	s := appsync.New(nil, nil, zaptest.NewLogger(t))
	return update(t, New(s, "user-1"), tea.WindowSizeMsg{Width: 120, Height: 30})
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestSnapshotErrorShowsLoginHint(t *testing.T) {
	m := newTestModel(t)

	m = update(t, m, appsync.Snapshot{
		State: appsync.StateLive,
		Err:   &backend.AuthError{Message: "authentication failed (401)"},
	})
	assert.Equal(t, "session expired, run 'shipdesk login'", m.errMessage)
	assert.Contains(t, m.View(), "session expired")

	m = update(t, m, appsync.Snapshot{
		State:         appsync.StateLive,
		Notifications: []model.Notification{{ID: "a", Body: "Carrier assigned"}},
		UnreadCount:   1,
	})
	assert.Empty(t, m.errMessage)
	assert.Equal(t, 1, m.snapshot.UnreadCount)
	assert.Equal(t, "a", m.inbox.SelectedID())
}

func TestStartErrorSurvivesInitializingSnapshot(t *testing.T) {
	m := newTestModel(t)

	m = update(t, m, syncStartedMsg{err: errors.New("starting notification sync: empty user id")})
	m = update(t, m, appsync.Snapshot{State: appsync.StateInitializing, Loading: true})

	assert.Equal(t, "starting notification sync: empty user id", m.errMessage)
}

func TestSendResultStatus(t *testing.T) {
	tests := []struct {
		name       string
		msg        sendResultMsg
		wantStatus string
		wantErr    string
	}{
		{name: "delivered", msg: sendResultMsg{}, wantStatus: "sent"},
		{name: "soft success", msg: sendResultMsg{soft: true}, wantStatus: "sent (delivery relayed by this client)"},
		{
			name:    "failure",
			msg:     sendResultMsg{err: &backend.APIError{StatusCode: 400, Method: "POST", Path: "/notifications", Message: "bad request"}},
			wantErr: "backend error (400) on POST /notifications: bad request",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := update(t, newTestModel(t), tt.msg)
			assert.Equal(t, tt.wantStatus, m.statusMessage)
			assert.Equal(t, tt.wantErr, m.errMessage)
		})
	}
}

func TestDesktopToggle(t *testing.T) {
	perms := &fakePermissions{perm: model.PermissionDefault}
	m := newTestModel(t).WithDesktop(perms)

	m = update(t, m, keyRune('d'))
	assert.Equal(t, model.PermissionGranted, perms.perm)
	assert.Equal(t, "desktop alerts on", m.statusMessage)

	m = update(t, m, keyRune('d'))
	assert.Equal(t, model.PermissionDenied, perms.perm)
	assert.Equal(t, "desktop alerts off", m.statusMessage)
}

func TestDesktopToggleWithoutNotifierIsIgnored(t *testing.T) {
	m := newTestModel(t)

	assert.NotPanics(t, func() {
		m = update(t, m, keyRune('d'))
	})
	assert.Empty(t, m.statusMessage)
}

func TestViewSwitching(t *testing.T) {
	m := newTestModel(t)

	m = update(t, m, keyRune('?'))
	assert.Equal(t, ViewHelp, m.currentView)
	m = update(t, m, keyRune('?'))
	assert.Equal(t, ViewInbox, m.currentView)

	next, cmd := m.Update(keyRune('n'))
	m = next.(Model)
	assert.Equal(t, ViewSend, m.currentView)
	assert.NotNil(t, cmd)

	m = update(t, m, sendform.CancelMsg{})
	assert.Equal(t, ViewInbox, m.currentView)
}
