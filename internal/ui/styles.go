package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// Color palette
var (
	primaryColor = lipgloss.Color("#5F87FF") // Drapto blue
	accentColor  = lipgloss.Color("#FFAF00") // Amber
	successColor = lipgloss.Color("#00AA00") // Green
	errorColor   = lipgloss.Color("#D70000") // Red
	mutedColor   = lipgloss.Color("#888888") // Gray
	textColor    = lipgloss.Color("#FFFFFF") // White
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(successColor)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(errorColor)

	warningStyle = lipgloss.NewStyle().
			Foreground(accentColor)

	keyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	valueStyle = lipgloss.NewStyle().
			Foreground(textColor)

	mutedStyle = lipgloss.NewStyle().
			Foreground(mutedColor)

	barFilledStyle = lipgloss.NewStyle().
			Foreground(primaryColor)

	barEmptyStyle = lipgloss.NewStyle().
			Foreground(mutedColor)
)

func init() {
	// lipgloss honors NO_COLOR through termenv, but an explicit downgrade
	// keeps piped output clean as well.
	if os.Getenv("NO_COLOR") != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
	}
}
