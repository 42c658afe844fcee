package inbox

import (
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shipdesk-notify/internal/keys"
	"github.com/nhle/shipdesk-notify/internal/model"
	"github.com/nhle/shipdesk-notify/internal/theme"
)

// MarkReadMsg is sent when the user asks to mark the selected notification
// as read.
type MarkReadMsg struct {
	ID string
}

// Model is the notification list view component.
type Model struct {
	list    list.Model
	keys    *keys.KeyMap
	loading bool
	width   int
	height  int
}

// New creates a new inbox model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height)
	l.Title = "Notifications"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle
	l.SetStatusBarItemName("notification", "notifications")

	return Model{
		list:    l,
		keys:    k,
		loading: true,
		width:   width,
		height:  height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// SetNotifications replaces the rendered list, keeping the cursor on the
// same notification when it is still present.
func (m *Model) SetNotifications(notifications []model.Notification, loading bool) tea.Cmd {
	m.loading = loading

	selected := m.SelectedID()
	items := make([]list.Item, len(notifications))
	cursor := 0
	for i, n := range notifications {
		items[i] = NotificationItem{Notification: n}
		if n.ID == selected {
			cursor = i
		}
	}

	cmd := m.list.SetItems(items)
	m.list.Select(cursor)
	return cmd
}

// SelectedID returns the id of the highlighted notification, or "".
func (m Model) SelectedID() string {
	it, ok := m.list.SelectedItem().(NotificationItem)
	if !ok {
		return ""
	}
	return it.Notification.ID
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.MarkRead) {
		it, ok := m.list.SelectedItem().(NotificationItem)
		if !ok || it.Notification.IsRead {
			return m, nil
		}
		id := it.Notification.ID
		return m, func() tea.Msg {
			return MarkReadMsg{ID: id}
		}
	}

	// Delegate to the list for navigation keys (up/down/pgup/pgdn)
	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the inbox.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

// renderEmptyState shows guidance text when there is nothing to list.
func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.loading {
		return style.Render("Loading notifications...")
	}
	return style.Render("No notifications yet.\n\nNew ones appear here as they arrive.")
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height)
}
