package theme

import "github.com/charmbracelet/lipgloss"

// Theme defines the colors used by the prompts and progress output
type Theme struct {
	Primary   lipgloss.Color
	Secondary lipgloss.Color

	Text      lipgloss.Color
	TextMuted lipgloss.Color

	Success lipgloss.Color
	Warning lipgloss.Color
	Error   lipgloss.Color

	Border lipgloss.Color
}

// Current is the active theme
var Current = DefaultTheme()

// DefaultTheme returns the warm sandy palette
func DefaultTheme() Theme {
	return Theme{
		Primary:   lipgloss.Color("#D2A679"), // Warm sandy/terracotta
		Secondary: lipgloss.Color("#5A4E40"), // Muted warm brown

		Text:      lipgloss.Color("#F0F0F0"),
		TextMuted: lipgloss.Color("#888888"),

		Success: lipgloss.Color("#10B981"), // Green
		Warning: lipgloss.Color("#F59E0B"), // Amber
		Error:   lipgloss.Color("#EF4444"), // Red

		Border: lipgloss.Color("#3d3d3d"),
	}
}

// Title styles headings such as the plan box title.
func Title() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(Current.Primary)
}

// Muted styles secondary text.
func Muted() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(Current.TextMuted)
}

// Box styles a bordered panel.
func Box() lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(Current.Border).
		Padding(0, 1)
}

// Status styles a one-word outcome label.
func Status(ok bool) lipgloss.Style {
	if ok {
		return lipgloss.NewStyle().Foreground(Current.Success)
	}
	return lipgloss.NewStyle().Foreground(Current.Error)
}
