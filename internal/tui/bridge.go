package tui

import (
	"context"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/techintel/techintel/internal/events"
	"github.com/techintel/techintel/internal/fault"
)

// FadeDuration is how long a deleted row stays on screen, dimmed.
const FadeDuration = 400 * time.Millisecond

// confirmMsg asks the model for a yes/no answer on reply.
type confirmMsg struct {
	prompt string
	reply  chan bool
}

// eventMsg carries a bus event into the program.
type eventMsg struct{ events.Event }

// Bridge connects the blocking hooks of the reconciler (confirmation and
// fade) to a running program. It is created before the program and
// attached once the program exists.
type Bridge struct {
	mu   sync.Mutex
	send func(tea.Msg)
	fade time.Duration
}

// NewBridge returns an unattached bridge. Until Attach is called every
// confirmation is declined.
func NewBridge() *Bridge {
	return &Bridge{fade: FadeDuration}
}

// Attach routes prompts to p.
func (b *Bridge) Attach(p *tea.Program) {
	b.attach(p.Send)
}

func (b *Bridge) attach(send func(tea.Msg)) {
	b.mu.Lock()
	b.send = send
	b.mu.Unlock()
}

// Confirm shows prompt in the dashboard and blocks until the user answers
// or ctx ends. Anything but "yes" is a fault.KindUserAborted error.
func (b *Bridge) Confirm(ctx context.Context, prompt string) error {
	b.mu.Lock()
	send := b.send
	b.mu.Unlock()
	if send == nil {
		return fault.Aborted("confirm")
	}

	reply := make(chan bool, 1)
	send(confirmMsg{prompt: prompt, reply: reply})
	select {
	case ok := <-reply:
		if !ok {
			return fault.Aborted("confirm")
		}
		return nil
	case <-ctx.Done():
		return fault.Aborted("confirm")
	}
}

// Fade waits while the dimmed row is visible.
func (b *Bridge) Fade(ctx context.Context, id string) {
	t := time.NewTimer(b.fade)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// forwarder relays bus events to the program in publish order without ever
// blocking the publisher. Events published from inside Update would
// otherwise deadlock on Program.Send.
type forwarder struct {
	mu     sync.Mutex
	queue  []events.Event
	signal chan struct{}
}

func newForwarder() *forwarder {
	return &forwarder{signal: make(chan struct{}, 1)}
}

func (f *forwarder) Handle(e events.Event) {
	f.mu.Lock()
	f.queue = append(f.queue, e)
	f.mu.Unlock()
	select {
	case f.signal <- struct{}{}:
	default:
	}
}

// run delivers queued events to send until ctx ends.
func (f *forwarder) run(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-f.signal:
		}
		f.mu.Lock()
		batch := f.queue
		f.queue = nil
		f.mu.Unlock()
		for _, e := range batch {
			send(eventMsg{e})
		}
	}
}
