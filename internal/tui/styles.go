package tui

import "github.com/charmbracelet/lipgloss"

// Styles groups the lipgloss styles used by the installer screens.
type Styles struct {
	Title       lipgloss.Style
	Hint        lipgloss.Style
	TabActive   lipgloss.Style
	TabInactive lipgloss.Style
	Prompt      lipgloss.Style
	Cursor      lipgloss.Style
	Checked     lipgloss.Style
	Muted       lipgloss.Style
	Error       lipgloss.Style
	Monitor     lipgloss.Style
	Status      lipgloss.Style
}

func NewStyles() *Styles {
	primary := lipgloss.Color("#7aa2f7")
	accent := lipgloss.Color("#9ece6a")
	warning := lipgloss.Color("#e0af68")
	errColor := lipgloss.Color("#f7768e")
	muted := lipgloss.Color("#565f89")

	return &Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(primary).
			Padding(0, 1),

		Hint: lipgloss.NewStyle().
			Foreground(warning),

		TabActive: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#1a1b26")).
			Background(primary).
			Padding(0, 1),

		TabInactive: lipgloss.NewStyle().
			Foreground(muted).
			Padding(0, 1),

		Prompt: lipgloss.NewStyle().
			Foreground(warning),

		Cursor: lipgloss.NewStyle().
			Bold(true).
			Foreground(primary),

		Checked: lipgloss.NewStyle().
			Foreground(accent),

		Muted: lipgloss.NewStyle().
			Foreground(muted),

		Error: lipgloss.NewStyle().
			Foreground(errColor),

		Monitor: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(muted).
			Padding(0, 1),

		Status: lipgloss.NewStyle().
			Foreground(accent).
			Bold(true),
	}
}
