package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"
)

// styles holds the terminal styles for one output stream. Colors are only
// emitted when the stream is a terminal.
type styles struct {
	title   lipgloss.Style
	code    lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	errorS  lipgloss.Style
	warning lipgloss.Style
}

func newStyles(w io.Writer) styles {
	r := lipgloss.NewRenderer(w)
	return styles{
		title: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#10B981")),
		code: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#04B575")),
		muted: r.NewStyle().
			Foreground(lipgloss.Color("#6B7280")),
		success: r.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Bold(true),
		errorS: r.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true),
		warning: r.NewStyle().
			Foreground(lipgloss.Color("#F59E0B")),
	}
}
