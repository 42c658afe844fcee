package inbox

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shipdesk-notify/internal/model"
	"github.com/nhle/shipdesk-notify/internal/theme"
)

// NotificationItem wraps a model.Notification so it can be used in a
// bubbles/list.
type NotificationItem struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i NotificationItem) FilterValue() string { return i.Notification.DisplayTitle() }

// Title returns the notification title for the list.
func (i NotificationItem) Title() string { return i.Notification.DisplayTitle() }

// Description returns the message body for the list.
func (i NotificationItem) Description() string { return i.Notification.Body }

var (
	itemStyle = lipgloss.NewStyle().PaddingLeft(2)

	selectedItemStyle = lipgloss.NewStyle().
				PaddingLeft(1).
				Border(lipgloss.NormalBorder(), false, false, false, true).
				BorderForeground(theme.ColorBlue)

	bodyStyle = lipgloss.NewStyle().Foreground(theme.ColorGray)
)

// ItemDelegate implements list.ItemDelegate for rendering notifications on
// two lines: title with category and age, then the message.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 1 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(NotificationItem)
	if !ok {
		return
	}
	n := it.Notification

	marker := " "
	titleStyle := theme.ReadTitleStyle
	if !n.IsRead {
		marker = lipgloss.NewStyle().Foreground(theme.ColorBlue).Render("●")
		titleStyle = theme.UnreadTitleStyle
	}

	category := theme.CategoryStyle(n.Category).Render(n.Category)
	age := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(relativeTime(n.CreatedAt))

	scope := ""
	if !n.IsBroadcast() {
		scope = lipgloss.NewStyle().Foreground(theme.ColorMagenta).Render(" direct")
	}

	body := n.Body
	if width := m.Width() - 6; width > 0 && lipgloss.Width(body) > width {
		body = truncate(body, width)
	}

	line := fmt.Sprintf("%s %s %s%s  %s\n  %s",
		marker, category, titleStyle.Render(n.DisplayTitle()), scope, age,
		bodyStyle.Render(body),
	)

	if index == m.Index() {
		line = selectedItemStyle.Render(line)
	} else {
		line = itemStyle.Render(line)
	}

	fmt.Fprint(w, line)
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 1 {
		return "…"
	}
	return string(runes[:width-1]) + "…"
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 02")
	}
}
