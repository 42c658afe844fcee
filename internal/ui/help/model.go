package help

import (
	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shipdesk-notify/internal/keys"
	"github.com/nhle/shipdesk-notify/internal/theme"
)

// Model is the help overlay: key bindings plus a legend for the inbox
// markers.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

// New creates a new help view model.
func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.ShowAll = true
	h.Width = width - 4
	return Model{
		keys:   k,
		help:   h,
		width:  width,
		height: height,
	}
}

// Update is a no-op; the root model closes the overlay.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// View renders the help overlay.
func (m Model) View() string {
	section := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginTop(1)

	unread := lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("●")
	direct := lipgloss.NewStyle().Foreground(theme.ColorMagenta).Render("direct")
	online := theme.ConnectionStyle(true).Render("●")
	offline := theme.ConnectionStyle(false).Render("●")

	legend := lipgloss.JoinVertical(lipgloss.Left,
		unread+"  unread",
		direct+"  sent to you only, not broadcast",
		online+"  live updates connected",
		offline+"  reconnecting, list refreshes periodically",
	)

	content := lipgloss.JoinVertical(lipgloss.Left,
		section.UnsetMarginTop().Render("Keyboard Shortcuts"),
		m.help.View(m.keys),
		section.Render("Legend"),
		legend,
	)

	return theme.PanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
