package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for top-level section headers and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// PanelStyle wraps overlays such as the send form and help.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// UnreadTitleStyle renders the title of an unread notification.
var UnreadTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// ReadTitleStyle renders the title of a read notification.
var ReadTitleStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// BadgeStyle renders the unread counter in the header.
var BadgeStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorRed).
	Padding(0, 1)

// ErrorStyle is used for transient error messages in the status bar.
var ErrorStyle = lipgloss.NewStyle().
	Foreground(ColorRed).
	Bold(true)

// ConnectionStyle returns the style for the socket indicator.
func ConnectionStyle(connected bool) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)
	if connected {
		return base.Foreground(ColorGreen)
	}
	return base.Foreground(ColorOrange)
}

// CategoryStyle returns a color-coded style for a notification category.
func CategoryStyle(category string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch category {
	case "shipment", "tracking":
		return base.Foreground(ColorBlue)
	case "carrier":
		return base.Foreground(ColorMagenta)
	case "payout", "payment":
		return base.Foreground(ColorGreen)
	case "alert", "exception":
		return base.Foreground(ColorRed)
	case "system":
		return base.Foreground(ColorYellow)
	default:
		return base.Foreground(ColorGray)
	}
}
