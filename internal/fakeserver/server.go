// Package fakeserver is an in-process emulator of the report service's HTTP
// API. Tests script it (job progressions, injected failures) and count the
// calls it receives; `techintel mock` serves it for offline demos.
package fakeserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/techintel/techintel/internal/backend"
	"github.com/techintel/techintel/internal/observability"
)

// Route names used by Calls and Fail.
const (
	RouteStatus           = "status"
	RouteDashboard        = "dashboard"
	RouteReports          = "reports"
	RouteReport           = "report"
	RouteDeleteReport     = "delete_report"
	RouteGenerate         = "generate"
	RouteJob              = "job"
	RouteInfluencers      = "influencers"
	RouteAddInfluencer    = "add_influencer"
	RouteRemoveInfluencer = "remove_influencer"
	RouteSettings         = "settings"
	RouteSaveSettings     = "save_settings"
)

var (
	reportIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)
	usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_]{1,50}$`)
)

// Step is one scripted answer of GET /job/{id}.
type Step struct {
	Status   string
	Progress int
	Message  string
}

// DefaultScript is the progression a job follows unless WithJobScript is used.
var DefaultScript = []Step{
	{Status: "running", Progress: 10, Message: "Fetching posts…"},
	{Status: "running", Progress: 60, Message: "Analyzing with Claude…"},
	{Status: "completed", Progress: 100, Message: "Done"},
}

type failure struct {
	status int
	detail string
	drop   bool
	times  int // <= 0 means until cleared
}

type job struct {
	step     int
	script   []Step
	reportID string
}

// Server emulates the service.
type Server struct {
	mu          sync.Mutex
	status      backend.Status
	reports     []backend.Report // newest first
	influencers []string
	fetchHours  int
	maxPerUser  int
	script      []Step
	jobs        map[string]*job
	failures    map[string]*failure
	calls       map[string]int
	now         func() time.Time
	log         *observability.Logger

	router   *mux.Router
	srv      *http.Server
	listener net.Listener
}

// Option configures a Server.
type Option func(*Server)

// WithStatus sets the answer of GET /status.
func WithStatus(st backend.Status) Option {
	return func(s *Server) { s.status = st }
}

// WithReports seeds the stored reports, newest first.
func WithReports(reports ...backend.Report) Option {
	return func(s *Server) { s.reports = append([]backend.Report(nil), reports...) }
}

// WithInfluencers seeds the tracked accounts.
func WithInfluencers(names ...string) Option {
	return func(s *Server) { s.influencers = append([]string(nil), names...) }
}

// WithJobScript sets the poll progression of every new job.
func WithJobScript(steps ...Step) Option {
	return func(s *Server) { s.script = append([]Step(nil), steps...) }
}

// WithLogger logs every request.
func WithLogger(l *observability.Logger) Option {
	return func(s *Server) { s.log = l }
}

// New creates a server that is online, ready and fully configured.
func New(opts ...Option) *Server {
	s := &Server{
		status:      backend.Status{OK: true, Ready: true, XConfigured: true, ClaudeConfigured: true},
		influencers: []string{"karpathy", "sama", "ylecun"},
		fetchHours:  24,
		maxPerUser:  20,
		script:      DefaultScript,
		jobs:        make(map[string]*job),
		failures:    make(map[string]*failure),
		calls:       make(map[string]int),
		now:         time.Now,
		log:         observability.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.logRequests)

	api.HandleFunc("/status", s.route(RouteStatus, s.handleStatus)).Methods(http.MethodGet)
	api.HandleFunc("/dashboard", s.route(RouteDashboard, s.handleDashboard)).Methods(http.MethodGet)
	api.HandleFunc("/reports", s.route(RouteReports, s.handleReports)).Methods(http.MethodGet)
	api.HandleFunc("/report/{id}", s.route(RouteReport, s.handleReport)).Methods(http.MethodGet)
	api.HandleFunc("/report/{id}", s.route(RouteDeleteReport, s.handleDeleteReport)).Methods(http.MethodDelete)
	api.HandleFunc("/generate", s.route(RouteGenerate, s.handleGenerate)).Methods(http.MethodPost)
	api.HandleFunc("/job/{id}", s.route(RouteJob, s.handleJob)).Methods(http.MethodGet)
	api.HandleFunc("/influencers", s.route(RouteInfluencers, s.handleInfluencers)).Methods(http.MethodGet)
	api.HandleFunc("/influencers", s.route(RouteAddInfluencer, s.handleAddInfluencer)).Methods(http.MethodPost)
	api.HandleFunc("/influencers/{username}", s.route(RouteRemoveInfluencer, s.handleRemoveInfluencer)).Methods(http.MethodDelete)
	api.HandleFunc("/settings", s.route(RouteSettings, s.handleSettings)).Methods(http.MethodGet)
	api.HandleFunc("/settings", s.route(RouteSaveSettings, s.handleSaveSettings)).Methods(http.MethodPost)
	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Request(r.Method, r.URL.Path, rec.status, time.Since(start), "request_id", r.Header.Get("X-Request-ID"))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Hijack lets dropped connections pass through the logging middleware.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijacking not supported")
	}
	return h.Hijack()
}

// route counts the call and applies any injected failure before h runs.
func (s *Server) route(name string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[name]++
		f := s.failures[name]
		if f != nil && f.times > 0 {
			f.times--
			if f.times == 0 {
				delete(s.failures, name)
			}
		}
		s.mu.Unlock()

		if f != nil {
			if f.drop {
				dropConnection(w)
				return
			}
			writeError(w, f.status, f.detail)
			return
		}
		h(w, r)
	}
}

func dropConnection(w http.ResponseWriter) {
	hj, ok := w.(http.Hijacker)
	if !ok {
		writeError(w, http.StatusBadGateway, "connection dropped")
		return
	}
	conn, _, err := hj.Hijack()
	if err != nil {
		return
	}
	conn.Close()
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

// Start listens on addr and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("fakeserver: listen: %w", err)
	}

	s.mu.Lock()
	s.listener = ln
	s.srv = &http.Server{Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	srv := s.srv
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("fakeserver: serve: %w", err)
	}
	return nil
}

// Addr returns the listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Fail makes the next times calls to route answer status with detail.
// times <= 0 fails until ClearFailures.
func (s *Server) Fail(route string, status int, detail string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = &failure{status: status, detail: detail, times: times}
}

// Drop makes calls to route close the connection without answering.
func (s *Server) Drop(route string, times int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = &failure{drop: true, times: times}
}

// ClearFailures removes all injected failures.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]*failure)
}

// Calls returns how many requests route has received.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// TotalCalls returns the number of requests across all routes.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// SetStatus replaces the answer of GET /status.
func (s *Server) SetStatus(st backend.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = st
}

// AddReport stores r as the newest report.
func (s *Server) AddReport(r backend.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append([]backend.Report{r}, s.reports...)
}

// ReportIDs returns the stored ids, newest first.
func (s *Server) ReportIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, len(s.reports))
	for i, r := range s.reports {
		ids[i] = r.ID
	}
	return ids
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.status
	st.InfluencerCount = len(s.influencers)
	if len(s.reports) > 0 {
		st.LastReport = s.reports[0].GeneratedAt
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, st)
}

func summarize(r backend.Report) backend.ReportSummary {
	date := r.GeneratedAt
	if len(date) > 10 {
		date = date[:10]
	}
	return backend.ReportSummary{
		ID:         r.ID,
		Title:      r.Title,
		ZhTitle:    r.ZhTitle,
		Subtitle:   r.Subtitle,
		ZhSubtitle: r.ZhSubtitle,
		Date:       date,
		TotalPosts: r.TotalPosts,
		Score:      "HIGH INTEL",
	}
}

// summaries must be called with s.mu held.
func (s *Server) summaries(limit int) []backend.ReportSummary {
	out := make([]backend.ReportSummary, 0, limit)
	for i, r := range s.reports {
		if i == limit {
			break
		}
		out = append(out, summarize(r))
	}
	return out
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.reports) == 0 {
		writeError(w, http.StatusNotFound, "No report yet. Click 'Generate Daily Report'.")
		return
	}
	latest := s.reports[0]
	writeJSON(w, http.StatusOK, backend.Dashboard{
		Stats: backend.Stats{
			Influencers: latest.TotalInfluencers,
			Posts:       latest.TotalPosts,
			Trends:      len(latest.TrendingTopics),
			LastUpdated: latest.GeneratedAt,
		},
		TrendingTopics: latest.TrendingTopics,
		RecentReports:  s.summaries(10),
	})
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	list := s.summaries(20)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == backend.LatestReport {
		if len(s.reports) == 0 {
			writeError(w, http.StatusNotFound, "No reports yet.")
			return
		}
		writeJSON(w, http.StatusOK, s.reports[0])
		return
	}
	for _, rep := range s.reports {
		if rep.ID == id {
			writeJSON(w, http.StatusOK, rep)
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("Report '%s' not found.", id))
}

func (s *Server) handleDeleteReport(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if !reportIDPattern.MatchString(id) {
		writeError(w, http.StatusBadRequest, "Invalid report ID.")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, rep := range s.reports {
		if rep.ID == id {
			s.reports = append(s.reports[:i:i], s.reports[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
			return
		}
	}
	writeError(w, http.StatusNotFound, fmt.Sprintf("Report '%s' not found.", id))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.status.XConfigured {
		writeError(w, http.StatusBadRequest, "X_USERNAME not configured. Edit server/.env")
		return
	}
	if !s.status.ClaudeConfigured {
		writeError(w, http.StatusBadRequest, "ANTHROPIC_API_KEY not configured. Edit server/.env")
		return
	}
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	s.jobs[id] = &job{script: s.script}
	writeJSON(w, http.StatusOK, map[string]string{"job_id": id})
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	if len(j.script) == 0 {
		writeJSON(w, http.StatusOK, map[string]any{"status": "pending", "progress": 0, "message": "Queued…"})
		return
	}

	step := j.script[j.step]
	if j.step < len(j.script)-1 {
		j.step++
	}
	body := map[string]any{"status": step.Status, "progress": step.Progress, "message": step.Message}
	if step.Status == "completed" {
		if j.reportID == "" {
			rep := SampleReport(s.now(), len(s.influencers))
			s.reports = append([]backend.Report{rep}, s.reports...)
			j.reportID = rep.ID
		}
		body["report_id"] = j.reportID
	}
	writeJSON(w, http.StatusOK, body)
}

// influencerList must be called with s.mu held.
func (s *Server) influencerList() backend.Influencers {
	list := append([]string(nil), s.influencers...)
	return backend.Influencers{Influencers: list, Total: len(list)}
}

func (s *Server) handleInfluencers(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := s.influencerList()
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddInfluencer(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	json.NewDecoder(r.Body).Decode(&body)
	name := strings.TrimPrefix(strings.TrimSpace(body.Username), "@")
	if !usernamePattern.MatchString(name) {
		writeError(w, http.StatusBadRequest, "Invalid username: only letters, numbers and underscores allowed.")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.influencers {
		if strings.EqualFold(u, name) {
			writeError(w, http.StatusConflict, fmt.Sprintf("@%s is already in the list.", name))
			return
		}
	}
	s.influencers = append(s.influencers, name)
	out := s.influencerList()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "influencers": out.Influencers, "total": out.Total})
}

func (s *Server) handleRemoveInfluencer(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["username"]
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.influencers[:0:0]
	for _, u := range s.influencers {
		if !strings.EqualFold(u, name) {
			kept = append(kept, u)
		}
	}
	if len(kept) == len(s.influencers) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("@%s not found.", name))
		return
	}
	s.influencers = kept
	out := s.influencerList()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "influencers": out.Influencers, "total": out.Total})
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, backend.Settings{
		FetchHours:       s.fetchHours,
		MaxPerUser:       s.maxPerUser,
		XConfigured:      s.status.XConfigured,
		ClaudeConfigured: s.status.ClaudeConfigured,
		XUsername:        "techintel_bot",
		ReportCount:      len(s.reports),
		InfluencerCount:  len(s.influencers),
	})
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var body backend.SettingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "invalid settings body")
		return
	}
	s.mu.Lock()
	if body.FetchHours != nil {
		s.fetchHours = *body.FetchHours
	}
	if body.MaxPerUser != nil {
		s.maxPerUser = *body.MaxPerUser
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// Influencers returns the tracked accounts, sorted.
func (s *Server) Influencers() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.influencers...)
	sort.Strings(out)
	return out
}
