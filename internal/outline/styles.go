package outline

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

type styles struct {
	session   lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	thinking  lipgloss.Style
	tool      lipgloss.Style
	result    lipgloss.Style
	failed    lipgloss.Style
	system    lipgloss.Style
	dim       lipgloss.Style
}

func newStyles(w io.Writer, color bool) styles {
	profile := termenv.Ascii
	if color {
		profile = termenv.ANSI256
	}
	r := lipgloss.NewRenderer(w, termenv.WithProfile(profile))

	return styles{
		session: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")),
		user: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("28")),
		assistant: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("208")),
		thinking: r.NewStyle().
			Italic(true).
			Foreground(lipgloss.Color("242")),
		tool: r.NewStyle().
			Foreground(lipgloss.Color("214")),
		result: r.NewStyle().
			Foreground(lipgloss.Color("42")),
		failed: r.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")),
		system: r.NewStyle().
			Foreground(lipgloss.Color("141")),
		dim: r.NewStyle().
			Foreground(lipgloss.Color("242")),
	}
}
