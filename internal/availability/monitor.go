// Package availability tracks whether the report service can be called.
//
// The monitor is a three-state machine: Unknown until the first check, then
// Online or Offline. Nothing in the core retries on its own; callers decide
// when to Check again.
package availability

import (
	"context"
	"sync"
	"time"

	"github.com/techintel/techintel/internal/backend"
	"github.com/techintel/techintel/internal/events"
	"github.com/techintel/techintel/internal/fault"
	"github.com/techintel/techintel/internal/observability"
)

// State is the monitor's view of the service.
type State int

const (
	Unknown State = iota
	Online
	Offline
)

func (s State) String() string {
	switch s {
	case Online:
		return "online"
	case Offline:
		return "offline"
	default:
		return "unknown"
	}
}

// Prober performs the status probe.
type Prober interface {
	Status(ctx context.Context) (backend.Status, error)
}

// Status is the result of the last check.
type Status struct {
	State            State
	Ready            bool
	XConfigured      bool
	ClaudeConfigured bool
	LastReport       string
	InfluencerCount  int
	CheckedAt        time.Time
	Err              error
}

// MissingCredentials lists the unconfigured external services.
func (s Status) MissingCredentials() []string {
	if s.State != Online {
		return nil
	}
	var missing []string
	if !s.XConfigured {
		missing = append(missing, "X API")
	}
	if !s.ClaudeConfigured {
		missing = append(missing, "Claude API")
	}
	return missing
}

// Monitor holds the availability state.
type Monitor struct {
	prober Prober
	bus    *events.Bus
	log    *observability.Logger

	mu      sync.RWMutex
	status  Status
	advised bool
	now     func() time.Time
}

// NewMonitor creates a monitor in the Unknown state. bus and log may be nil.
func NewMonitor(p Prober, bus *events.Bus, log *observability.Logger) *Monitor {
	if log == nil {
		log = observability.Discard()
	}
	return &Monitor{prober: p, bus: bus, log: log, now: time.Now}
}

// Check probes the service once. Any failure moves the monitor to Offline
// and is returned; a missing credential publishes a single advisory for the
// monitor's lifetime.
func (m *Monitor) Check(ctx context.Context) (Status, error) {
	st, err := m.prober.Status(ctx)

	m.mu.Lock()
	if err != nil {
		m.status = Status{State: Offline, CheckedAt: m.now(), Err: err}
	} else {
		m.status = Status{
			State:            Online,
			Ready:            st.Ready,
			XConfigured:      st.XConfigured,
			ClaudeConfigured: st.ClaudeConfigured,
			LastReport:       st.LastReport,
			InfluencerCount:  st.InfluencerCount,
			CheckedAt:        m.now(),
		}
	}
	cur := m.status
	advise := false
	if missing := cur.MissingCredentials(); len(missing) > 0 && !m.advised {
		m.advised = true
		advise = true
	}
	m.mu.Unlock()

	if err != nil {
		m.log.Warn("backend offline", "error", err.Error(), "kind", fault.KindOf(err).String())
	} else {
		m.log.Info("backend online", "ready", cur.Ready, "x_configured", cur.XConfigured, "claude_configured", cur.ClaudeConfigured)
	}

	m.bus.Publish(events.Event{Kind: events.KindStatus, Message: cur.State.String(), Err: err})
	if advise {
		m.bus.Publish(events.Event{
			Kind:    events.KindAdvisory,
			Level:   events.LevelWarn,
			Message: advisoryText(cur.MissingCredentials()),
		})
	}
	return cur, err
}

func advisoryText(missing []string) string {
	msg := "Not configured: "
	for i, name := range missing {
		if i > 0 {
			msg += ", "
		}
		msg += name
	}
	return msg + ". Report generation may fail until credentials are set."
}

// MarkOffline records a connectivity failure observed by another component.
func (m *Monitor) MarkOffline(err error) {
	m.mu.Lock()
	was := m.status.State
	m.status = Status{State: Offline, CheckedAt: m.now(), Err: err}
	m.mu.Unlock()

	if was != Offline {
		m.log.Warn("backend marked offline", "error", fault.Message(err))
		m.bus.Publish(events.Event{Kind: events.KindStatus, Message: Offline.String(), Err: err})
	}
}

// Online reports whether remote calls may be attempted.
func (m *Monitor) Online() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.State == Online
}

// Ready reports whether the service accepts generation requests.
func (m *Monitor) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.State == Online && m.status.Ready
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status.State
}

// Status returns the result of the last check.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}
