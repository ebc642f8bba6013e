package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/techintel/techintel/internal/prefs"
)

type palette struct {
	fg, muted, accent, accent2, warn, err, border, selected lipgloss.Color
}

var (
	darkPalette = palette{
		fg:       lipgloss.Color("#E6EDF3"),
		muted:    lipgloss.Color("#8CA1AE"),
		accent:   lipgloss.Color("#50E3C2"),
		accent2:  lipgloss.Color("#F6AE2D"),
		warn:     lipgloss.Color("#F6AE2D"),
		err:      lipgloss.Color("#FF6B6B"),
		border:   lipgloss.Color("#2D6A80"),
		selected: lipgloss.Color("#1B2B36"),
	}
	lightPalette = palette{
		fg:       lipgloss.Color("#1F2328"),
		muted:    lipgloss.Color("#57606A"),
		accent:   lipgloss.Color("#0969DA"),
		accent2:  lipgloss.Color("#9A6700"),
		warn:     lipgloss.Color("#9A6700"),
		err:      lipgloss.Color("#CF222E"),
		border:   lipgloss.Color("#8C959F"),
		selected: lipgloss.Color("#DDF4FF"),
	}
)

type styles struct {
	title    lipgloss.Style
	subtitle lipgloss.Style
	label    lipgloss.Style
	value    lipgloss.Style
	panel    lipgloss.Style
	heading  lipgloss.Style
	row      lipgloss.Style
	selected lipgloss.Style
	fading   lipgloss.Style
	isNew    lipgloss.Style
	online   lipgloss.Style
	offline  lipgloss.Style
	info     lipgloss.Style
	warn     lipgloss.Style
	err      lipgloss.Style
	prompt   lipgloss.Style
}

func newStyles(t prefs.Theme) styles {
	p := darkPalette
	if t == prefs.Light {
		p = lightPalette
	}
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		subtitle: lipgloss.NewStyle().Italic(true).Foreground(p.muted),
		label:    lipgloss.NewStyle().Foreground(p.muted),
		value:    lipgloss.NewStyle().Bold(true).Foreground(p.fg),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(p.border).
			Padding(0, 1),
		heading:  lipgloss.NewStyle().Bold(true).Foreground(p.accent2),
		row:      lipgloss.NewStyle().Foreground(p.fg),
		selected: lipgloss.NewStyle().Bold(true).Foreground(p.accent).Background(p.selected),
		fading:   lipgloss.NewStyle().Faint(true).Strikethrough(true).Foreground(p.muted),
		isNew:    lipgloss.NewStyle().Bold(true).Foreground(p.accent2),
		online:   lipgloss.NewStyle().Bold(true).Foreground(p.accent),
		offline:  lipgloss.NewStyle().Bold(true).Foreground(p.err),
		info:     lipgloss.NewStyle().Foreground(p.fg),
		warn:     lipgloss.NewStyle().Foreground(p.warn),
		err:      lipgloss.NewStyle().Bold(true).Foreground(p.err),
		prompt:   lipgloss.NewStyle().Bold(true).Foreground(p.warn).Border(lipgloss.NormalBorder()).BorderForeground(p.warn).Padding(0, 1),
	}
}
