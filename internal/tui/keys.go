package tui

import (
	"github.com/charmbracelet/bubbles/key"

	"github.com/techintel/techintel/internal/locale"
)

type keyMap struct {
	up       key.Binding
	down     key.Binding
	generate key.Binding
	refresh  key.Binding
	latest   key.Binding
	open     key.Binding
	back     key.Binding
	delete   key.Binding
	download key.Binding
	history  key.Binding
	lang     key.Binding
	theme    key.Binding
	cancel   key.Binding
	pageUp   key.Binding
	pageDown key.Binding
	help     key.Binding
	quit     key.Binding

	yes key.Binding
	no  key.Binding
}

// newKeyMap builds the bindings with help text in l. It is rebuilt on every
// locale switch.
func newKeyMap(l locale.Locale) keyMap {
	return keyMap{
		up: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", l.Label("help.move")),
		),
		down: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", l.Label("help.move")),
		),
		generate: key.NewBinding(
			key.WithKeys("g"),
			key.WithHelp("g", l.Label("help.generate")),
		),
		refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", l.Label("help.refresh")),
		),
		latest: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", l.Label("help.latest")),
		),
		open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", l.Label("help.open")),
		),
		back: key.NewBinding(
			key.WithKeys("esc", "backspace"),
			key.WithHelp("esc", l.Label("help.back")),
		),
		delete: key.NewBinding(
			key.WithKeys("d", "x"),
			key.WithHelp("d", l.Label("help.delete")),
		),
		download: key.NewBinding(
			key.WithKeys("s"),
			key.WithHelp("s", l.Label("help.download")),
		),
		history: key.NewBinding(
			key.WithKeys("h"),
			key.WithHelp("h", l.Label("help.history")),
		),
		lang: key.NewBinding(
			key.WithKeys("z"),
			key.WithHelp("z", l.Label("help.lang")),
		),
		theme: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", l.Label("help.theme")),
		),
		cancel: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", l.Label("help.cancel")),
		),
		pageUp: key.NewBinding(
			key.WithKeys("pgup", "b"),
			key.WithHelp("pgup", l.Label("help.scroll")),
		),
		pageDown: key.NewBinding(
			key.WithKeys("pgdown", " ", "f"),
			key.WithHelp("pgdn", l.Label("help.scroll")),
		),
		help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", l.Label("help.more")),
		),
		quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", l.Label("help.quit")),
		),
		yes: key.NewBinding(
			key.WithKeys("y", "Y"),
			key.WithHelp("y", l.Label("help.yes")),
		),
		no: key.NewBinding(
			key.WithKeys("n", "N", "esc"),
			key.WithHelp("n", l.Label("help.no")),
		),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.generate, k.refresh, k.open, k.delete, k.lang, k.help, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.open, k.back, k.pageUp, k.pageDown},
		{k.generate, k.cancel, k.refresh, k.latest},
		{k.delete, k.download, k.history},
		{k.lang, k.theme, k.help, k.quit},
	}
}

// confirmKeys is the help shown while a confirmation is pending.
type confirmKeys struct{ yes, no key.Binding }

func (k confirmKeys) ShortHelp() []key.Binding  { return []key.Binding{k.yes, k.no} }
func (k confirmKeys) FullHelp() [][]key.Binding { return [][]key.Binding{{k.yes, k.no}} }
