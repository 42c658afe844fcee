package inbox

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/shipdesk-notify/internal/keys"
	"github.com/nhle/shipdesk-notify/internal/model"
)

func notifications(read ...bool) []model.Notification {
	ids := []string{"a", "b", "c", "d"}
	out := make([]model.Notification, len(read))
	for i, r := range read {
		out[i] = model.Notification{ID: ids[i], Category: "shipment", Body: "update " + ids[i], IsRead: r}
	}
	return out
}

func TestSetNotificationsKeepsSelection(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetNotifications(notifications(false, false, false), false)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	require.Equal(t, "b", m.SelectedID())

	// A pushed item lands on top; the cursor follows "b".
	pushed := append([]model.Notification{{ID: "new", Body: "fresh"}}, notifications(false, false, false)...)
	m.SetNotifications(pushed, false)
	assert.Equal(t, "b", m.SelectedID())
}

func TestMarkReadKeyEmitsMessage(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetNotifications(notifications(false, true), false)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, MarkReadMsg{ID: "a"}, cmd())
}

func TestMarkReadKeyIgnoresReadItems(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	m.SetNotifications(notifications(true), false)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("m")})
	assert.Nil(t, cmd)
}

func TestEmptyStateText(t *testing.T) {
	m := New(keys.DefaultKeyMap(), 80, 24)
	assert.Contains(t, m.View(), "Loading notifications")

	m.SetNotifications(nil, false)
	assert.Contains(t, m.View(), "No notifications yet")
}
