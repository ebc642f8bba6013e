// Package reconcile owns the cached dashboard snapshot and current report,
// and keeps the projected screen consistent with them.
//
// Every remote operation is refused with fault.ErrOffline, without a network
// call, unless the availability gate reports the service online. Cache
// mutations happen only after the server has confirmed them; a failed call
// leaves the cache and the screen exactly as they were.
package reconcile

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/techintel/techintel/internal/backend"
	"github.com/techintel/techintel/internal/events"
	"github.com/techintel/techintel/internal/fault"
	"github.com/techintel/techintel/internal/locale"
	"github.com/techintel/techintel/internal/observability"
	"github.com/techintel/techintel/internal/render"
)

// API is the subset of the backend the reconciler calls.
type API interface {
	Dashboard(ctx context.Context) (backend.Dashboard, error)
	Report(ctx context.Context, id string) (backend.Report, error)
	ReportRaw(ctx context.Context, id string) (json.RawMessage, error)
	DeleteReport(ctx context.Context, id string) error
}

// Gate is the availability view the reconciler consults and updates.
type Gate interface {
	Online() bool
	MarkOffline(err error)
}

// Confirmer is a blocking yes/no gate. A decline is reported as a
// fault.KindUserAborted error.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) error
}

// ConfirmFunc adapts a function to Confirmer.
type ConfirmFunc func(ctx context.Context, prompt string) error

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) error { return f(ctx, prompt) }

// Fader animates a table row out before it is removed. Fade blocks until the
// animation is over.
type Fader interface {
	Fade(ctx context.Context, id string)
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithBus sets the bus that receives view changes and notices.
func WithBus(b *events.Bus) Option {
	return func(r *Reconciler) { r.bus = b }
}

// WithLogger sets the logger.
func WithLogger(l *observability.Logger) Option {
	return func(r *Reconciler) { r.log = l }
}

// WithConfirmer sets the gate asked before every delete. Without one,
// deletes are declined.
func WithConfirmer(c Confirmer) Option {
	return func(r *Reconciler) { r.confirm = c }
}

// WithFader sets the pause between marking a deleted row and removing it.
func WithFader(f Fader) Option {
	return func(r *Reconciler) { r.fader = f }
}

// WithLocale sets the initial display locale.
func WithLocale(l locale.Locale) Option {
	return func(r *Reconciler) { r.locale = l }
}

// Reconciler caches server state and projects it.
type Reconciler struct {
	api     API
	gate    Gate
	bus     *events.Bus
	log     *observability.Logger
	confirm Confirmer
	fader   Fader

	mu       sync.Mutex
	snapshot *backend.Dashboard
	current  *backend.Report
	locale   locale.Locale
	screen   render.Screen
}

// New creates a reconciler with an empty cache.
func New(api API, gate Gate, opts ...Option) *Reconciler {
	r := &Reconciler{
		api:    api,
		gate:   gate,
		log:    observability.Discard(),
		locale: locale.Default,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.screen = render.Project(nil, nil, r.locale)
	return r
}

func offline(op string) error {
	return &fault.Error{Op: op, Kind: fault.KindConnectivity, Code: fault.CodeOffline, Detail: fault.ErrOffline.Detail}
}

// observe records a connectivity failure with the gate.
func (r *Reconciler) observe(err error) {
	if fault.IsConnectivity(err) {
		r.gate.MarkOffline(err)
	}
}

// project must be called with r.mu held.
func (r *Reconciler) project() render.Screen {
	r.screen = render.Project(r.snapshot, r.current, r.locale)
	return r.screen
}

func (r *Reconciler) publishView() {
	r.bus.Publish(events.Event{Kind: events.KindViewChanged})
}

func (r *Reconciler) notice(level events.Level, msg string) {
	r.bus.Publish(events.Notice(level, msg))
}

// LoadDashboard fetches the dashboard and replaces the cached snapshot
// wholesale. A "no report yet" answer clears the snapshot and is not an
// error.
func (r *Reconciler) LoadDashboard(ctx context.Context) error {
	if !r.gate.Online() {
		return offline("load dashboard")
	}

	d, err := r.api.Dashboard(ctx)
	if err != nil {
		if fault.IsSoft(err) {
			r.mu.Lock()
			r.snapshot = nil
			r.project()
			r.mu.Unlock()
			r.log.Info("no dashboard yet", "detail", fault.Message(err))
			r.publishView()
			return nil
		}
		r.observe(err)
		r.log.Warn("load dashboard failed", "error", err.Error(), "kind", fault.KindOf(err).String())
		return err
	}

	r.mu.Lock()
	r.snapshot = &d
	r.project()
	r.mu.Unlock()
	r.log.Debug("dashboard loaded", "reports", len(d.RecentReports), "topics", len(d.TrendingTopics))
	r.publishView()
	return nil
}

// LoadReport fetches a report ("" or "latest" for the newest) and caches it
// as the current report. "No reports yet" becomes an informational notice.
func (r *Reconciler) LoadReport(ctx context.Context, id string) error {
	if !r.gate.Online() {
		return offline("load report")
	}

	rep, err := r.api.Report(ctx, id)
	if err != nil {
		if fault.IsSoft(err) {
			r.log.Info("no report yet", "detail", fault.Message(err))
			r.notice(events.LevelInfo, fault.Message(err))
			return nil
		}
		r.observe(err)
		r.log.Warn("load report failed", "id", id, "error", err.Error())
		return err
	}

	r.mu.Lock()
	r.current = &rep
	r.project()
	r.mu.Unlock()
	r.publishView()
	return nil
}

// CloseReport drops the current report from the cache.
func (r *Reconciler) CloseReport() render.Screen {
	r.mu.Lock()
	r.current = nil
	s := r.project()
	r.mu.Unlock()
	r.publishView()
	return s
}

// SetLocale switches the display language and re-projects from cache. No
// network call is made.
func (r *Reconciler) SetLocale(l locale.Locale) render.Screen {
	r.mu.Lock()
	r.locale = l
	s := r.project()
	r.mu.Unlock()
	r.publishView()
	return s
}

// Reproject re-renders the cache with the current locale. Calling it any
// number of times without a cache change yields the same screen.
func (r *Reconciler) Reproject() render.Screen {
	r.mu.Lock()
	s := r.project()
	r.mu.Unlock()
	r.publishView()
	return s
}

// DeleteReport asks for confirmation, deletes the report on the server and,
// only once the server agrees, removes it from the cache and the screen and
// then reloads the dashboard. A declined confirmation returns nil.
func (r *Reconciler) DeleteReport(ctx context.Context, id string) error {
	if !r.gate.Online() {
		return offline("delete report")
	}

	r.mu.Lock()
	l := r.locale
	r.mu.Unlock()

	if err := r.confirmDelete(ctx, id, l); err != nil {
		if fault.IsAborted(err) {
			r.log.Debug("delete declined", "id", id)
			return nil
		}
		return err
	}

	if err := r.api.DeleteReport(ctx, id); err != nil {
		r.observe(err)
		r.log.Warn("delete report failed", "id", id, "error", err.Error())
		return err
	}
	r.log.Info("report deleted", "id", id)

	r.mu.Lock()
	r.removeCached(id)
	r.screen = r.screen.WithRowFading(id)
	r.mu.Unlock()
	r.bus.Publish(events.Event{Kind: events.KindRowFading, ReportID: id})

	if r.fader != nil {
		r.fader.Fade(ctx, id)
	}

	r.mu.Lock()
	r.project()
	r.mu.Unlock()
	r.publishView()
	r.notice(events.LevelInfo, l.Labelf("reports.deleted", id))

	if err := r.LoadDashboard(ctx); err != nil {
		r.notice(events.LevelWarn, l.Labelf("notice.refresh", fault.Message(err)))
	}
	return nil
}

func (r *Reconciler) confirmDelete(ctx context.Context, id string, l locale.Locale) error {
	if r.confirm == nil {
		return fault.Aborted("delete report")
	}
	return r.confirm.Confirm(ctx, l.Labelf("reports.confirm", id))
}

// removeCached must be called with r.mu held. The snapshot is replaced by a
// copy so earlier readers never observe a partial change.
func (r *Reconciler) removeCached(id string) {
	if r.snapshot != nil {
		next := *r.snapshot
		next.RecentReports = make([]backend.ReportSummary, 0, len(r.snapshot.RecentReports))
		for _, rs := range r.snapshot.RecentReports {
			if rs.ID != id {
				next.RecentReports = append(next.RecentReports, rs)
			}
		}
		r.snapshot = &next
	}
	if r.current != nil && r.current.ID == id {
		r.current = nil
	}
}

// DownloadReport returns the report's JSON as stored by the service. The
// cache is not touched.
func (r *Reconciler) DownloadReport(ctx context.Context, id string) (json.RawMessage, error) {
	if !r.gate.Online() {
		return nil, offline("download report")
	}
	raw, err := r.api.ReportRaw(ctx, id)
	if err != nil {
		r.observe(err)
		return nil, err
	}
	return raw, nil
}

// Screen returns the last projected screen.
func (r *Reconciler) Screen() render.Screen {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.screen
}

// Locale returns the active display language.
func (r *Reconciler) Locale() locale.Locale {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.locale
}

// Snapshot returns a copy of the cached dashboard.
func (r *Reconciler) Snapshot() (backend.Dashboard, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.snapshot == nil {
		return backend.Dashboard{}, false
	}
	d := *r.snapshot
	d.RecentReports = append([]backend.ReportSummary(nil), r.snapshot.RecentReports...)
	d.TrendingTopics = append([]backend.Topic(nil), r.snapshot.TrendingTopics...)
	return d, true
}

// CurrentReport returns the cached report.
func (r *Reconciler) CurrentReport() (backend.Report, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.current == nil {
		return backend.Report{}, false
	}
	return *r.current, true
}
