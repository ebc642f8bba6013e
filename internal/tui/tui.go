// Package tui is the interactive terminal dashboard. It draws the
// reconciler's projected screen and forwards every bus event into the
// bubbletea event loop.
package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/techintel/techintel/internal/session"
)

// Run shows the dashboard until the user quits or ctx ends. bridge must be
// the Confirmer and Fader the session was built with.
func Run(ctx context.Context, sess *session.Session, bridge *Bridge) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	p := tea.NewProgram(NewModel(ctx, sess), tea.WithAltScreen(), tea.WithContext(ctx))
	bridge.Attach(p)

	fwd := newForwarder()
	unsubscribe := sess.Bus.Subscribe(fwd.Handle)
	defer unsubscribe()
	go fwd.run(ctx, p.Send)

	sess.Log.Info("dashboard started", "server", sess.Config.ServerURL, "locale", sess.Locale().String())
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
