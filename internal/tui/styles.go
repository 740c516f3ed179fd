package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Styles contains the editor's lipgloss styles.
type Styles struct {
	Title    lipgloss.Style
	Subtitle lipgloss.Style
	Normal   lipgloss.Style
	Muted    lipgloss.Style
	Selected lipgloss.Style
	Active   lipgloss.Style
	Error    lipgloss.Style
	Success  lipgloss.Style
	Warning  lipgloss.Style
	Border   lipgloss.Style
}

// DefaultStyles returns the default palette.
func DefaultStyles() *Styles {
	var (
		primary   = lipgloss.Color("#7C3AED")
		secondary = lipgloss.Color("#06B6D4")
		fg        = lipgloss.Color("#CDD6F4")
		muted     = lipgloss.Color("#6C7086")
		border    = lipgloss.Color("#45475A")
	)
	return &Styles{
		Title:    lipgloss.NewStyle().Bold(true).Foreground(primary),
		Subtitle: lipgloss.NewStyle().Bold(true).Foreground(secondary),
		Normal:   lipgloss.NewStyle().Foreground(fg),
		Muted:    lipgloss.NewStyle().Foreground(muted),
		Selected: lipgloss.NewStyle().Bold(true).Foreground(fg).Background(primary),
		Active:   lipgloss.NewStyle().Bold(true).Foreground(secondary),
		Error:    lipgloss.NewStyle().Foreground(lipgloss.Color("#F38BA8")),
		Success:  lipgloss.NewStyle().Foreground(lipgloss.Color("#A6E3A1")),
		Warning:  lipgloss.NewStyle().Foreground(lipgloss.Color("#F9E2AF")),
		Border: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(border).
			Padding(0, 1),
	}
}
