// Package events carries state-change notifications from the core to
// whatever presentation layer is subscribed.
package events

import (
	"sync"
	"time"
)

// Kind identifies what changed.
type Kind string

const (
	// KindStatus follows every availability check.
	KindStatus Kind = "status"
	// KindAdvisory is the one-time missing-credentials notice.
	KindAdvisory Kind = "advisory"

	KindJobStarted      Kind = "job.started"
	KindJobProgress     Kind = "job.progress"
	KindJobCompleted    Kind = "job.completed"
	KindJobFailed       Kind = "job.failed"
	KindJobConnectivity Kind = "job.connectivity"
	KindJobTimeout      Kind = "job.timeout"
	KindJobCancelled    Kind = "job.cancelled"

	// KindViewChanged means the projected screen was replaced.
	KindViewChanged Kind = "view.changed"
	// KindRowFading is published before a deleted row disappears.
	KindRowFading Kind = "view.row_fading"
	// KindNotice is a user-facing message with a Level.
	KindNotice Kind = "notice"
)

// Terminal reports whether k ends a job's lifetime.
func (k Kind) Terminal() bool {
	switch k {
	case KindJobCompleted, KindJobFailed, KindJobConnectivity, KindJobTimeout, KindJobCancelled:
		return true
	}
	return false
}

// Level grades a notice.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

// Event is one notification. Fields not relevant to Kind are zero.
type Event struct {
	Kind     Kind
	Level    Level
	Message  string
	JobID    string
	Progress int
	ReportID string
	Err      error
	Time     time.Time
}

// Notice builds a KindNotice event.
func Notice(level Level, msg string) Event {
	return Event{Kind: KindNotice, Level: level, Message: msg}
}

// Handler receives events on the publishing goroutine.
type Handler func(Event)

type subscription struct {
	id int
	fn Handler
}

// Bus fans events out to subscribers in subscription order.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   []subscription
	now    func() time.Time
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{now: time.Now}
}

// Subscribe registers h and returns a function that removes it.
func (b *Bus) Subscribe(h Handler) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs = append(b.subs, subscription{id: id, fn: h})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			for i, s := range b.subs {
				if s.id == id {
					b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish delivers e to every current subscriber. Handlers may publish or
// subscribe themselves; the subscriber list is copied before delivery.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = b.now()
	}

	b.mu.RLock()
	subs := make([]Handler, len(b.subs))
	for i, s := range b.subs {
		subs[i] = s.fn
	}
	b.mu.RUnlock()

	for _, fn := range subs {
		fn(e)
	}
}

// Len returns the number of subscribers.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Recorder collects events for inspection. It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Handle appends e. Pass it to Bus.Subscribe.
func (r *Recorder) Handle(e Event) {
	r.mu.Lock()
	r.events = append(r.events, e)
	r.mu.Unlock()
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the recorded kinds in order.
func (r *Recorder) Kinds() []Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Kind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

// Count returns how many events of kind k were recorded.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == k {
			n++
		}
	}
	return n
}

// Last returns the most recent event of kind k.
func (r *Recorder) Last(k Kind) (Event, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Kind == k {
			return r.events[i], true
		}
	}
	return Event{}, false
}
