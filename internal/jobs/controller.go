// Package jobs drives report-generation jobs from creation to a terminal
// state.
//
// A Controller owns a single active-job slot. Start reserves the slot under a
// mutex before any network call, so concurrent Starts produce exactly one
// create-job request. Polling runs in one goroutine whose timer is re-armed
// only after the previous tick has been handled; ticks never overlap.
package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/techintel/techintel/internal/backend"
	"github.com/techintel/techintel/internal/events"
	"github.com/techintel/techintel/internal/fault"
	"github.com/techintel/techintel/internal/observability"
)

const (
	DefaultInterval    = 2500 * time.Millisecond
	DefaultMaxDuration = 15 * time.Minute
)

var (
	// ErrJobActive is returned by Start while another job is being polled.
	ErrJobActive = errors.New("jobs: a job is already active")
	// ErrUnavailable is returned by Start when the service is offline or not
	// ready to accept generation requests.
	ErrUnavailable = errors.New("jobs: backend offline or not ready")
)

// API is the subset of the backend the controller calls.
type API interface {
	StartJob(ctx context.Context) (string, error)
	Job(ctx context.Context, id string) (backend.Job, error)
}

// Gate is the availability view the controller consults and updates.
type Gate interface {
	Ready() bool
	MarkOffline(err error)
}

// Refresher reloads the dashboard after a job completes.
type Refresher interface {
	LoadDashboard(ctx context.Context) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithInterval sets the poll interval.
func WithInterval(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.interval = d
		}
	}
}

// WithMaxDuration bounds how long a job is polled before it is abandoned.
func WithMaxDuration(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.maxDuration = d
		}
	}
}

// WithBus sets where lifecycle events are published.
func WithBus(b *events.Bus) Option {
	return func(c *Controller) { c.bus = b }
}

// WithLogger sets the controller's logger.
func WithLogger(l *observability.Logger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMetrics sets the collector for poll ticks and outcomes.
func WithMetrics(m *observability.MetricsCollector) Option {
	return func(c *Controller) { c.metrics = m }
}

// Controller starts and polls jobs.
type Controller struct {
	api       API
	gate      Gate
	refresher Refresher

	interval    time.Duration
	maxDuration time.Duration
	bus         *events.Bus
	log         *observability.Logger
	metrics     *observability.MetricsCollector

	mu     sync.Mutex
	active *run
	last   *run
}

type run struct {
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time

	mu  sync.Mutex
	job backend.Job
}

func (r *run) snapshot() backend.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.job
}

func (r *run) set(j backend.Job) {
	r.mu.Lock()
	r.job = j
	r.mu.Unlock()
}

// NewController creates an idle controller.
func NewController(api API, gate Gate, refresher Refresher, opts ...Option) *Controller {
	c := &Controller{
		api:         api,
		gate:        gate,
		refresher:   refresher,
		interval:    DefaultInterval,
		maxDuration: DefaultMaxDuration,
		log:         observability.Discard(),
		metrics:     observability.NewMetricsCollector(0),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start creates a job and begins polling it. It returns ErrJobActive or
// ErrUnavailable without any network call when a job is already running or
// the service cannot take one. The poll loop outlives ctx; use Cancel to
// stop it.
func (c *Controller) Start(ctx context.Context) (string, error) {
	c.mu.Lock()
	if c.active != nil {
		c.mu.Unlock()
		return "", ErrJobActive
	}
	if !c.gate.Ready() {
		c.mu.Unlock()
		return "", ErrUnavailable
	}
	loopCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{ctx: loopCtx, cancel: cancel, done: make(chan struct{}), started: time.Now()}
	r.job.Status = backend.JobQueued
	c.active = r
	c.last = r
	c.mu.Unlock()

	id, err := c.api.StartJob(ctx)
	if err != nil {
		c.release(r)
		cancel()
		close(r.done)
		if fault.IsConnectivity(err) {
			c.gate.MarkOffline(err)
		}
		c.log.Error("start job failed", "error", err.Error(), "kind", fault.KindOf(err).String())
		return "", err
	}

	r.set(backend.Job{ID: id, Status: backend.JobQueued})
	c.log.JobEvent("started", id)
	c.bus.Publish(events.Event{Kind: events.KindJobStarted, JobID: id})

	go c.loop(r)
	return id, nil
}

func (c *Controller) loop(r *run) {
	defer close(r.done)
	defer r.cancel()

	id := r.snapshot().ID
	tick := time.NewTimer(c.interval)
	defer tick.Stop()
	deadline := time.NewTimer(c.maxDuration)
	defer deadline.Stop()

	for {
		select {
		case <-r.ctx.Done():
			c.finish(r, events.KindJobCancelled, r.snapshot(), r.ctx.Err())
			return
		case <-deadline.C:
			c.finish(r, events.KindJobTimeout, r.snapshot(), fault.Hard("poll job", 0, "job exceeded "+c.maxDuration.String(), fault.CodeTimeout))
			return
		case <-tick.C:
		}

		job, err := c.api.Job(r.ctx, id)
		c.metrics.Increment(observability.CounterPollTicks)
		if err != nil {
			if r.ctx.Err() != nil {
				c.finish(r, events.KindJobCancelled, r.snapshot(), r.ctx.Err())
				return
			}
			if fault.IsConnectivity(err) {
				c.gate.MarkOffline(err)
				c.finish(r, events.KindJobConnectivity, r.snapshot(), err)
				return
			}
			// A server answer leaves the backend online; only the job fails.
			lost := r.snapshot()
			lost.Status = backend.JobFailed
			lost.Message = fault.Message(err)
			c.finish(r, events.KindJobFailed, lost, err)
			return
		}
		r.set(job)

		switch job.Status {
		case backend.JobCompleted:
			c.finish(r, events.KindJobCompleted, job, nil)
			return
		case backend.JobFailed:
			c.finish(r, events.KindJobFailed, job, nil)
			return
		default:
			c.metrics.Record(observability.MetricProgress, float64(job.Progress), map[string]string{"job_id": id})
			c.bus.Publish(events.Event{Kind: events.KindJobProgress, JobID: id, Progress: job.Progress, Message: job.Message})
			tick.Reset(c.interval)
		}
	}
}

// finish clears the slot, then performs the outcome's side effects.
func (c *Controller) finish(r *run, kind events.Kind, job backend.Job, err error) {
	c.release(r)

	outcome := outcomeName(kind)
	elapsed := time.Since(r.started)
	c.metrics.Increment(observability.JobCounter(outcome))
	c.metrics.Record(observability.MetricJobTime, float64(elapsed.Milliseconds()), map[string]string{"outcome": outcome})

	ev := events.Event{Kind: kind, JobID: job.ID, Progress: job.Progress, Message: job.Message, ReportID: job.ReportID, Err: err}
	switch kind {
	case events.KindJobCompleted:
		c.log.JobEvent(outcome, job.ID, "report_id", job.ReportID, "elapsed_ms", elapsed.Milliseconds())
		if c.refresher != nil {
			if rerr := c.refresher.LoadDashboard(r.ctx); rerr != nil {
				c.log.Warn("refresh after job failed", "job_id", job.ID, "error", rerr.Error())
				ev.Err = rerr
			}
		}
	case events.KindJobFailed:
		c.log.JobEvent(outcome, job.ID, "message", job.Message)
		ev.Level = events.LevelError
	case events.KindJobCancelled:
		ev.Message = "polling cancelled"
		c.log.JobEvent(outcome, job.ID)
	default:
		ev.Level = events.LevelError
		ev.Message = fault.Message(err)
		c.log.JobEvent(outcome, job.ID, "error", err.Error())
	}
	c.bus.Publish(ev)
}

func (c *Controller) release(r *run) {
	c.mu.Lock()
	if c.active == r {
		c.active = nil
	}
	c.mu.Unlock()
}

func outcomeName(k events.Kind) string {
	switch k {
	case events.KindJobCompleted:
		return "completed"
	case events.KindJobFailed:
		return "failed"
	case events.KindJobConnectivity:
		return "connectivity"
	case events.KindJobTimeout:
		return "timeout"
	default:
		return "cancelled"
	}
}

// Cancel stops the active job's poll loop. The server-side job is not
// affected. It reports whether a job was active.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	r := c.active
	c.mu.Unlock()
	if r == nil {
		return false
	}
	r.cancel()
	return true
}

// Active returns the last observed state of the active job.
func (c *Controller) Active() (backend.Job, bool) {
	c.mu.Lock()
	r := c.active
	c.mu.Unlock()
	if r == nil {
		return backend.Job{}, false
	}
	return r.snapshot(), true
}

// Done returns a channel closed once the most recently started job's loop
// has fully terminated, including the post-completion refresh. Before any
// job was started the channel is already closed.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	r := c.last
	c.mu.Unlock()
	if r == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return r.done
}
