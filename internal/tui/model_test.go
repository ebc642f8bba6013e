package tui

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/techintel/techintel/internal/config"
	"github.com/techintel/techintel/internal/events"
	"github.com/techintel/techintel/internal/fakeserver"
	"github.com/techintel/techintel/internal/fault"
	"github.com/techintel/techintel/internal/jobs"
	"github.com/techintel/techintel/internal/locale"
	"github.com/techintel/techintel/internal/observability"
	"github.com/techintel/techintel/internal/session"
	"github.com/techintel/techintel/internal/storage"
)

func newTestModel(t *testing.T, fs *fakeserver.Server) (Model, *session.Session) {
	m, sess, _ := newTestModelBridge(t, fs)
	return m, sess
}

func newTestModelBridge(t *testing.T, fs *fakeserver.Server) (Model, *session.Session, *Bridge) {
	t.Helper()
	ts := httptest.NewServer(fs.Handler())
	t.Cleanup(ts.Close)

	store, err := storage.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	cfg := config.Config{
		ServerURL:    ts.URL,
		DataDir:      t.TempDir(),
		PollInterval: 20 * time.Millisecond,
		JobTimeout:   5 * time.Second,
		HTTPTimeout:  2 * time.Second,
		LogLevel:     "error",
	}
	bridge := NewBridge()
	bridge.fade = time.Millisecond
	sess, err := session.New(context.Background(), cfg,
		session.WithStore(store),
		session.WithLogger(observability.Discard()),
		session.WithConfirmer(bridge),
		session.WithFader(bridge),
	)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { sess.Close() })
	return NewModel(context.Background(), sess), sess, bridge
}

func keyPress(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestInit_LoadsDashboard(t *testing.T) {
	m, _ := newTestModel(t, fakeserver.New(fakeserver.WithReports(fakeserver.SampleReport(time.Now(), 3))))

	msg := m.checkCmd()()
	m, _ = update(t, m, msg)
	m, _ = update(t, m, eventMsg{events.Event{Kind: events.KindViewChanged}})

	if !m.screen.HasDashboard || len(m.screen.Reports) != 1 {
		t.Fatalf("screen = %+v", m.screen)
	}
	view := m.View()
	if !strings.Contains(view, "Agents Leave the Lab") || !strings.Contains(view, "Online") {
		t.Errorf("view missing content:\n%s", view)
	}
}

func TestInit_OfflineShowsBanner(t *testing.T) {
	fs := fakeserver.New()
	fs.Drop(fakeserver.RouteStatus, 0)
	m, _ := newTestModel(t, fs)

	m, _ = update(t, m, m.checkCmd()())
	if m.notice.level != events.LevelError || m.notice.text != locale.English.Label("notice.offline") {
		t.Errorf("notice = %+v", m.notice)
	}
	if !strings.Contains(m.View(), "Offline") {
		t.Error("view should show offline state")
	}
}

func TestJobEvents(t *testing.T) {
	m, _ := newTestModel(t, fakeserver.New())

	m, _ = update(t, m, eventMsg{events.Event{Kind: events.KindJobStarted, JobID: "j"}})
	if !m.jobActive {
		t.Fatal("job should be active")
	}
	m, _ = update(t, m, eventMsg{events.Event{Kind: events.KindJobProgress, Progress: 60, Message: "Analyzing"}})
	if m.jobProgress != 60 || m.jobMessage != "Analyzing" {
		t.Errorf("progress = %d %q", m.jobProgress, m.jobMessage)
	}
	if !strings.Contains(m.View(), "Analyzing") {
		t.Error("view should show the job message")
	}

	m, _ = update(t, m, eventMsg{events.Event{Kind: events.KindJobFailed, Message: "quota"}})
	if m.jobActive {
		t.Error("job should be over")
	}
	if m.notice.level != events.LevelError || !strings.Contains(m.notice.text, "quota") {
		t.Errorf("notice = %+v", m.notice)
	}
}

func TestConfirmFlow(t *testing.T) {
	m, _ := newTestModel(t, fakeserver.New())

	reply := make(chan bool, 1)
	m, _ = update(t, m, confirmMsg{prompt: "Delete report X?", reply: reply})
	if !strings.Contains(m.View(), "Delete report X?") {
		t.Fatal("prompt not shown")
	}
	// Other keys are ignored while the prompt is up.
	m, _ = update(t, m, keyPress("g"))
	if m.confirm == nil {
		t.Fatal("prompt dismissed by unrelated key")
	}
	m, _ = update(t, m, keyPress("y"))
	if m.confirm != nil {
		t.Error("prompt should be gone")
	}
	if ok := <-reply; !ok {
		t.Error("reply should be yes")
	}

	reply = make(chan bool, 1)
	m, _ = update(t, m, confirmMsg{prompt: "again", reply: reply})
	m, _ = update(t, m, keyPress("esc"))
	if ok := <-reply; ok {
		t.Error("esc should decline")
	}
}

func answerWith(b *Bridge, yes bool) {
	b.attach(func(msg tea.Msg) {
		if c, ok := msg.(confirmMsg); ok {
			c.reply <- yes
		}
	})
}

func TestDeleteKey_Confirmed(t *testing.T) {
	a := fakeserver.SampleReport(time.Now(), 1)
	b := fakeserver.SampleReport(time.Now().Add(-time.Hour), 1)
	fs := fakeserver.New(fakeserver.WithReports(a, b))
	m, sess, bridge := newTestModelBridge(t, fs)
	answerWith(bridge, true)
	m, _ = update(t, m, m.checkCmd()())
	m.setScreen(sess.View.Screen())

	_, cmd := update(t, m, keyPress("d"))
	if cmd == nil {
		t.Fatal("delete should start a command")
	}
	done, ok := cmd().(opDoneMsg)
	if !ok || done.err != nil {
		t.Fatalf("msg = %+v", done)
	}
	if fs.Calls(fakeserver.RouteDeleteReport) != 1 {
		t.Errorf("delete calls = %d", fs.Calls(fakeserver.RouteDeleteReport))
	}
	if ids := sess.View.Screen().RowIDs(); len(ids) != 1 || ids[0] != b.ID {
		t.Errorf("rows = %v", ids)
	}
}

func TestDeleteKey_Declined(t *testing.T) {
	a := fakeserver.SampleReport(time.Now(), 1)
	fs := fakeserver.New(fakeserver.WithReports(a))
	m, sess, bridge := newTestModelBridge(t, fs)
	answerWith(bridge, false)
	m, _ = update(t, m, m.checkCmd()())
	m.setScreen(sess.View.Screen())

	_, cmd := update(t, m, keyPress("d"))
	m, _ = update(t, m, cmd())
	if fs.Calls(fakeserver.RouteDeleteReport) != 0 {
		t.Errorf("declined delete made %d calls", fs.Calls(fakeserver.RouteDeleteReport))
	}
	if m.notice.text != "" {
		t.Errorf("decline should be silent, notice = %q", m.notice.text)
	}
}

func TestNoticeFor(t *testing.T) {
	l := locale.English
	tests := []struct {
		name  string
		err   error
		show  bool
		level events.Level
	}{
		{"nil", nil, false, 0},
		{"aborted", fault.Aborted("delete"), false, 0},
		{"active", jobs.ErrJobActive, true, events.LevelWarn},
		{"unavailable", jobs.ErrUnavailable, true, events.LevelWarn},
		{"offline", fault.ErrOffline, true, events.LevelError},
		{"hard", fault.Hard("x", 500, "boom", ""), true, events.LevelError},
		{"soft", fault.Soft("x", 404, "none", "no_report"), true, events.LevelInfo},
		{"other", errors.New("disk full"), true, events.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ok := noticeFor(tt.err, l)
			if ok != tt.show {
				t.Fatalf("show = %v", ok)
			}
			if ok && n.level != tt.level {
				t.Errorf("level = %v", n.level)
			}
		})
	}
}

func TestLangKey_ReprojectsWithoutNetwork(t *testing.T) {
	fs := fakeserver.New(fakeserver.WithReports(fakeserver.SampleReport(time.Now(), 3)))
	m, sess := newTestModel(t, fs)
	m, _ = update(t, m, m.checkCmd()())
	m.setScreen(sess.View.Screen())
	before := fs.TotalCalls()

	m, _ = update(t, m, keyPress("z"))
	if m.locale() != locale.Chinese {
		t.Fatalf("locale = %s", m.locale())
	}
	if !strings.Contains(m.View(), "智能体走出实验室") {
		t.Error("view should show the Chinese title")
	}
	if fs.TotalCalls() != before {
		t.Errorf("locale switch made %d calls", fs.TotalCalls()-before)
	}
}

func TestCursorAndBack(t *testing.T) {
	a := fakeserver.SampleReport(time.Now(), 1)
	b := fakeserver.SampleReport(time.Now().Add(-time.Hour), 1)
	m, sess := newTestModel(t, fakeserver.New(fakeserver.WithReports(a, b)))
	m, _ = update(t, m, m.checkCmd()())
	m.setScreen(sess.View.Screen())

	m, _ = update(t, m, keyPress("j"))
	m, _ = update(t, m, keyPress("j"))
	if id, _ := m.selected(); id != b.ID {
		t.Errorf("selected = %s", id)
	}
	m, cmd := update(t, m, keyPress("enter"))
	m, _ = update(t, m, cmd())
	m.setScreen(sess.View.Screen())
	if m.screen.Report == nil || m.screen.Report.ID != b.ID {
		t.Fatalf("report = %+v", m.screen.Report)
	}
	m, _ = update(t, m, keyPress("esc"))
	if m.screen.Report != nil {
		t.Error("esc should close the report")
	}
}

func TestReportScrollsWithPageKeys(t *testing.T) {
	m, sess := newTestModel(t, fakeserver.New(fakeserver.WithReports(fakeserver.SampleReport(time.Now(), 3))))
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 80, Height: 16})
	m, _ = update(t, m, m.checkCmd()())

	m, cmd := update(t, m, keyPress("l"))
	m, _ = update(t, m, cmd())
	m.setScreen(sess.View.Screen())
	if m.screen.Report == nil {
		t.Fatal("latest report not open")
	}
	if m.report.YOffset != 0 {
		t.Fatalf("offset = %d on open", m.report.YOffset)
	}

	m, _ = update(t, m, keyPress("j"))
	if m.report.YOffset != 0 {
		t.Error("j should move the table cursor, not the report")
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyPgDown})
	if m.report.YOffset == 0 {
		t.Error("pgdown should scroll the report")
	}
}

func TestHistoryKey_ShowsRecentDownloads(t *testing.T) {
	rep := fakeserver.SampleReport(time.Now(), 1)
	m, sess := newTestModel(t, fakeserver.New(fakeserver.WithReports(rep)))
	m, _ = update(t, m, m.checkCmd()())

	m, cmd := update(t, m, keyPress("h"))
	m, _ = update(t, m, cmd())
	if m.notice.text != "No reports downloaded yet." {
		t.Errorf("notice = %q", m.notice.text)
	}

	path := filepath.Join(t.TempDir(), "r.json")
	if _, err := sess.Download(context.Background(), rep.ID, path); err != nil {
		t.Fatal(err)
	}
	m, cmd = update(t, m, keyPress("h"))
	m, _ = update(t, m, cmd())
	if !strings.Contains(m.notice.text, path) || m.notice.level != events.LevelInfo {
		t.Errorf("notice = %+v", m.notice)
	}
}

func TestForwarder_PreservesOrder(t *testing.T) {
	f := newForwarder()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan events.Kind, 10)
	go f.run(ctx, func(msg tea.Msg) { got <- msg.(eventMsg).Kind })

	kinds := []events.Kind{events.KindJobStarted, events.KindJobProgress, events.KindJobCompleted}
	for _, k := range kinds {
		f.Handle(events.Event{Kind: k})
	}
	for _, want := range kinds {
		select {
		case k := <-got:
			if k != want {
				t.Fatalf("got %s, want %s", k, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("event not forwarded")
		}
	}
}

func TestBridge_UnattachedDeclines(t *testing.T) {
	b := NewBridge()
	if err := b.Confirm(context.Background(), "x"); !fault.IsAborted(err) {
		t.Errorf("err = %v", err)
	}

	b.attach(func(tea.Msg) {})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.Confirm(ctx, "x"); !fault.IsAborted(err) {
		t.Errorf("cancelled err = %v", err)
	}
}
