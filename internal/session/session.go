// Package session wires one client session: configuration, logging,
// transport, the typed backend API, the availability monitor, the job
// controller, the view reconciler and the preference store. A process
// builds exactly one Session and hands it to the CLI or the TUI.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/techintel/techintel/internal/availability"
	"github.com/techintel/techintel/internal/backend"
	"github.com/techintel/techintel/internal/config"
	"github.com/techintel/techintel/internal/events"
	"github.com/techintel/techintel/internal/jobs"
	"github.com/techintel/techintel/internal/locale"
	"github.com/techintel/techintel/internal/observability"
	"github.com/techintel/techintel/internal/prefs"
	"github.com/techintel/techintel/internal/reconcile"
	"github.com/techintel/techintel/internal/render"
	"github.com/techintel/techintel/internal/storage"
	"github.com/techintel/techintel/internal/transport"
)

// Session holds every long-lived component of the client.
type Session struct {
	Config  config.Config
	Log     *observability.Logger
	Metrics *observability.MetricsCollector
	Bus     *events.Bus
	API     *backend.Client
	Monitor *availability.Monitor
	View    *reconcile.Reconciler
	Jobs    *jobs.Controller

	store storage.Store
	prefs *prefs.Store
	theme prefs.Theme
}

type options struct {
	log        *observability.Logger
	httpClient *http.Client
	store      storage.Store
	confirmer  reconcile.Confirmer
	fader      reconcile.Fader
}

// Option configures New.
type Option func(*options)

// WithLogger replaces the default stderr logger.
func WithLogger(l *observability.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithHTTPClient replaces the transport's HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *options) { o.httpClient = hc }
}

// WithStore uses s instead of opening the SQLite database under DataDir.
func WithStore(s storage.Store) Option {
	return func(o *options) { o.store = s }
}

// WithConfirmer sets the delete confirmation gate. Without one every delete
// is declined.
func WithConfirmer(c reconcile.Confirmer) Option {
	return func(o *options) { o.confirmer = c }
}

// WithFader sets the row fade-out used after a delete.
func WithFader(f reconcile.Fader) Option {
	return func(o *options) { o.fader = f }
}

// New builds a session from cfg and applies the persisted preferences. No
// network call is made; call Check to probe the service.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Session, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.log == nil {
		o.log = observability.NewLogger("techintel", os.Stderr, observability.ParseLevel(cfg.LogLevel))
	}

	store := o.store
	if store == nil {
		s, err := storage.NewSQLiteStore(cfg.DBPath())
		if err != nil {
			return nil, fmt.Errorf("open preferences: %w", err)
		}
		store = s
	}
	ps := prefs.New(store)
	p, err := ps.Load(ctx)
	if err != nil {
		o.log.Warn("load preferences failed, using defaults", "error", err.Error())
		p = prefs.Defaults
	}

	metrics := observability.NewMetricsCollector(4096)
	bus := events.NewBus()

	topts := []transport.Option{
		transport.WithTimeout(cfg.HTTPTimeout),
		transport.WithRateLimit(cfg.RateLimit, 4),
		transport.WithLogger(o.log.Named("transport")),
		transport.WithMetrics(metrics),
	}
	if o.httpClient != nil {
		topts = append(topts, transport.WithHTTPClient(o.httpClient))
	}
	api := backend.NewClient(transport.New(cfg.ServerURL, topts...))

	monitor := availability.NewMonitor(api, bus, o.log.Named("availability"))

	view := reconcile.New(api, monitor,
		reconcile.WithBus(bus),
		reconcile.WithLogger(o.log.Named("reconcile")),
		reconcile.WithConfirmer(o.confirmer),
		reconcile.WithFader(o.fader),
		reconcile.WithLocale(p.Locale),
	)

	ctrl := jobs.NewController(api, monitor, view,
		jobs.WithInterval(cfg.PollInterval),
		jobs.WithMaxDuration(cfg.JobTimeout),
		jobs.WithBus(bus),
		jobs.WithLogger(o.log.Named("jobs")),
		jobs.WithMetrics(metrics),
	)

	return &Session{
		Config:  cfg,
		Log:     o.log,
		Metrics: metrics,
		Bus:     bus,
		API:     api,
		Monitor: monitor,
		View:    view,
		Jobs:    ctrl,
		store:   store,
		prefs:   ps,
		theme:   p.Theme,
	}, nil
}

// Check probes the service once.
func (s *Session) Check(ctx context.Context) (availability.Status, error) {
	return s.Monitor.Check(ctx)
}

// Locale returns the active display language.
func (s *Session) Locale() locale.Locale { return s.View.Locale() }

// SetLocale re-projects the cached data in l and persists the choice. The
// screen is returned even when persisting fails.
func (s *Session) SetLocale(ctx context.Context, l locale.Locale) (render.Screen, error) {
	screen := s.View.SetLocale(l)
	if err := s.prefs.SaveLocale(ctx, l); err != nil {
		return screen, fmt.Errorf("save locale: %w", err)
	}
	return screen, nil
}

// ToggleLocale switches between the two display languages.
func (s *Session) ToggleLocale(ctx context.Context) (render.Screen, error) {
	return s.SetLocale(ctx, s.Locale().Toggle())
}

// Theme returns the active palette.
func (s *Session) Theme() prefs.Theme { return s.theme }

// SetTheme persists t.
func (s *Session) SetTheme(ctx context.Context, t prefs.Theme) error {
	s.theme = t
	if err := s.prefs.SaveTheme(ctx, t); err != nil {
		return fmt.Errorf("save theme: %w", err)
	}
	return nil
}

// ToggleTheme switches the palette and returns the new one.
func (s *Session) ToggleTheme(ctx context.Context) (prefs.Theme, error) {
	t := s.theme.Toggle()
	return t, s.SetTheme(ctx, t)
}

// StoredPrefs lists the preferences saved so far.
func (s *Session) StoredPrefs(ctx context.Context) ([]storage.Pref, error) {
	return s.prefs.Stored(ctx)
}

// ResetPrefs forgets the saved preferences and returns the session to the
// default locale and theme.
func (s *Session) ResetPrefs(ctx context.Context) (render.Screen, error) {
	if err := s.prefs.Reset(ctx); err != nil {
		return s.View.Screen(), err
	}
	s.theme = prefs.Defaults.Theme
	return s.View.SetLocale(prefs.Defaults.Locale), nil
}

// DownloadPath is the default file name for a downloaded report.
func DownloadPath(id string) string {
	return "techintel-report-" + id + ".json"
}

// Download fetches the report's JSON, writes it to path (DownloadPath(id)
// when empty) and records it in the download history.
func (s *Session) Download(ctx context.Context, id, path string) (storage.Download, error) {
	raw, err := s.View.DownloadReport(ctx, id)
	if err != nil {
		return storage.Download{}, err
	}
	if path == "" {
		path = DownloadPath(id)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return storage.Download{}, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return storage.Download{}, fmt.Errorf("write %s: %w", path, err)
	}

	d := storage.Download{ReportID: id, Path: path, Bytes: len(raw), SavedAt: time.Now()}
	if err := s.store.RecordDownload(ctx, d); err != nil {
		s.Log.Warn("record download failed", "id", id, "error", err.Error())
	}
	s.Log.Info("report downloaded", "id", id, "path", path, "bytes", len(raw))
	return d, nil
}

// Downloads returns the most recent downloads.
func (s *Session) Downloads(ctx context.Context, limit int) ([]storage.Download, error) {
	return s.store.Downloads(ctx, limit)
}

// Close cancels any running job, waits for its loop to stop and closes the
// store.
func (s *Session) Close() error {
	if s.Jobs.Cancel() {
		select {
		case <-s.Jobs.Done():
		case <-time.After(5 * time.Second):
			s.Log.Warn("job loop did not stop in time")
		}
	}
	var errs []error
	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close store: %w", err))
	}
	return errors.Join(errs...)
}
