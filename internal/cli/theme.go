package cli

import (
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Theme holds the color scheme for command output.
type Theme struct {
	Status  lipgloss.Color
	Success lipgloss.Color
	Error   lipgloss.Color
	Hint    lipgloss.Color

	// plain disables styling, e.g. when output is not a terminal.
	plain bool
}

var defaultTheme = Theme{
	Status:  lipgloss.Color("#5FAFD7"), // light blue
	Success: lipgloss.Color("#00D787"), // green
	Error:   lipgloss.Color("#FF005F"), // red
	Hint:    lipgloss.Color("#6C6C6C"), // dim gray
}

// themeFor returns the default theme, unstyled unless w is a terminal.
func themeFor(w io.Writer) Theme {
	t := defaultTheme
	f, ok := w.(*os.File)
	t.plain = !ok || !term.IsTerminal(int(f.Fd()))
	return t
}

func (t Theme) render(style lipgloss.Style, s string) string {
	if t.plain {
		return s
	}
	return style.Render(s)
}

func (t Theme) status(s string) string {
	return t.render(lipgloss.NewStyle().Foreground(t.Status), s)
}

func (t Theme) success(s string) string {
	return t.render(lipgloss.NewStyle().Foreground(t.Success).Bold(true), s)
}

func (t Theme) failure(s string) string {
	return t.render(lipgloss.NewStyle().Foreground(t.Error).Bold(true), s)
}

func (t Theme) hint(s string) string {
	return t.render(lipgloss.NewStyle().Foreground(t.Hint).Italic(true), s)
}

// runStatus renders a run status in the color matching its outcome.
func (t Theme) runStatus(status string) string {
	switch status {
	case "completed":
		return t.success(status)
	case "failed":
		return t.failure(status)
	default:
		return t.status(status)
	}
}
