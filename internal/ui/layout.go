package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/shipdesk-notify/internal/theme"
)

// Layout manages the header / content / status bar split of the terminal.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return l.Height - l.HeaderHeight - l.StatusBarHeight
}

// RenderHeader renders the title with an unread badge on the left and the
// connection status on the right. The badge is omitted at zero.
func (l Layout) RenderHeader(title string, unread int, status string) string {
	left := theme.HeaderStyle.Render(title)
	if unread > 0 {
		badge := fmt.Sprintf("%d", unread)
		if unread > 99 {
			badge = "99+"
		}
		left = lipgloss.JoinHorizontal(lipgloss.Top, left, theme.BadgeStyle.Render(badge))
	}

	right := theme.HeaderStyle.Render(status)
	return lipgloss.JoinHorizontal(lipgloss.Top,
		left,
		fill(theme.HeaderStyle, l.Width-lipgloss.Width(left)-lipgloss.Width(right)),
		right,
	)
}

// RenderStatusBar renders the bottom bar. Errors replace the hints.
func (l Layout) RenderStatusBar(hints string, errMsg string) string {
	text := hints
	if errMsg != "" {
		text = theme.ErrorStyle.Render(errMsg)
	}
	rendered := theme.StatusBarStyle.Render(text)

	return lipgloss.JoinHorizontal(lipgloss.Top,
		rendered,
		fill(theme.StatusBarStyle, l.Width-lipgloss.Width(rendered)),
	)
}

// RenderWithFrame vertically joins the header, content and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

// fill returns width cells painted with the background of style.
func fill(style lipgloss.Style, width int) string {
	if width <= 0 {
		return ""
	}
	return lipgloss.NewStyle().
		Width(width).
		Background(style.GetBackground()).
		Render("")
}
