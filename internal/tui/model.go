package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/techintel/techintel/internal/availability"
	"github.com/techintel/techintel/internal/events"
	"github.com/techintel/techintel/internal/fault"
	"github.com/techintel/techintel/internal/jobs"
	"github.com/techintel/techintel/internal/locale"
	"github.com/techintel/techintel/internal/render"
	"github.com/techintel/techintel/internal/session"
	"github.com/techintel/techintel/internal/storage"
)

// checkedMsg is the result of an availability check plus dashboard load.
type checkedMsg struct{ err error }

// opDoneMsg reports the outcome of an asynchronous operation.
type opDoneMsg struct {
	op     string
	err    error
	notice string
}

type notice struct {
	level events.Level
	text  string
}

// Model is the root dashboard model.
type Model struct {
	ctx  context.Context
	sess *session.Session

	keys     keyMap
	help     help.Model
	spinner  spinner.Model
	progress progress.Model
	report   viewport.Model
	styles   styles

	width, height int

	screen   render.Screen
	cursor   int
	reportID string
	status   availability.Status

	jobActive   bool
	jobProgress int
	jobMessage  string

	busy    bool
	notice  notice
	confirm *confirmMsg
}

// NewModel creates the dashboard over sess. ctx bounds every operation the
// model starts.
func NewModel(ctx context.Context, sess *session.Session) Model {
	l := sess.Locale()
	m := Model{
		ctx:      ctx,
		sess:     sess,
		keys:     newKeyMap(l),
		help:     help.New(),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
		progress: progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		report:   viewport.New(80, 16),
		styles:   newStyles(sess.Theme()),
		status:   sess.Monitor.Status(),
	}
	m.report.KeyMap = reportKeys(m.keys)
	m.setScreen(sess.View.Screen())
	return m
}

// reportKeys limits report scrolling to the page keys so j/k and d keep
// their table meaning.
func reportKeys(k keyMap) viewport.KeyMap {
	return viewport.KeyMap{PageUp: k.pageUp, PageDown: k.pageDown}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.checkCmd(), m.spinner.Tick)
}

func (m Model) locale() locale.Locale { return m.screen.Locale }

func (m Model) checkCmd() tea.Cmd {
	ctx, sess := m.ctx, m.sess
	return func() tea.Msg {
		if _, err := sess.Check(ctx); err != nil {
			return checkedMsg{err: err}
		}
		return checkedMsg{err: sess.View.LoadDashboard(ctx)}
	}
}

func (m Model) opCmd(op string, fn func(ctx context.Context) (string, error)) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		text, err := fn(ctx)
		return opDoneMsg{op: op, err: err, notice: text}
	}
}

// selected returns the id under the cursor.
func (m Model) selected() (string, bool) {
	if m.cursor < 0 || m.cursor >= len(m.screen.Reports) {
		return "", false
	}
	return m.screen.Reports[m.cursor].ID, true
}

func (m *Model) setScreen(s render.Screen) {
	m.screen = s
	if s.Report != nil {
		m.report.SetContent(strings.TrimRight(s.Report.Text(s.Locale), "\n"))
		if s.Report.ID != m.reportID {
			m.report.GotoTop()
		}
		m.reportID = s.Report.ID
	} else {
		m.reportID = ""
	}
	if m.cursor >= len(s.Reports) {
		m.cursor = len(s.Reports) - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

func (m *Model) setNotice(level events.Level, text string) {
	m.notice = notice{level: level, text: text}
}

// noticeFor maps an operation error onto a user-facing message. Declined
// confirmations map to nothing.
func noticeFor(err error, l locale.Locale) (notice, bool) {
	switch {
	case err == nil, fault.IsAborted(err):
		return notice{}, false
	case errors.Is(err, jobs.ErrJobActive):
		return notice{events.LevelWarn, l.Label("job.active")}, true
	case errors.Is(err, jobs.ErrUnavailable):
		return notice{events.LevelWarn, l.Label("job.unavailable")}, true
	case fault.IsConnectivity(err):
		return notice{events.LevelError, l.Label("notice.offline")}, true
	case fault.IsSoft(err):
		return notice{events.LevelInfo, fault.Message(err)}, true
	case fault.IsHard(err):
		return notice{events.LevelError, fault.Message(err)}, true
	default:
		return notice{events.LevelError, err.Error()}, true
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.help.Width = msg.Width
		m.report.Width = max(msg.Width-4, 20)
		m.report.Height = max(msg.Height/2, 8)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case eventMsg:
		m.handleEvent(msg.Event)
		return m, nil

	case confirmMsg:
		c := msg
		m.confirm = &c
		return m, nil

	case checkedMsg:
		m.busy = false
		m.status = m.sess.Monitor.Status()
		if n, ok := noticeFor(msg.err, m.locale()); ok {
			m.notice = n
		}
		return m, nil

	case opDoneMsg:
		m.busy = false
		if n, ok := noticeFor(msg.err, m.locale()); ok {
			m.notice = n
		} else if msg.notice != "" {
			m.setNotice(events.LevelInfo, msg.notice)
		}
		m.status = m.sess.Monitor.Status()
		return m, nil

	case tea.KeyMsg:
		if m.confirm != nil {
			return m.answer(msg)
		}
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) handleEvent(e events.Event) {
	l := m.locale()
	switch e.Kind {
	case events.KindViewChanged, events.KindRowFading:
		m.setScreen(m.sess.View.Screen())
	case events.KindStatus:
		m.status = m.sess.Monitor.Status()
	case events.KindAdvisory:
		m.setNotice(events.LevelWarn, e.Message)
	case events.KindNotice:
		m.setNotice(e.Level, e.Message)
	case events.KindJobStarted:
		m.jobActive, m.jobProgress, m.jobMessage = true, 0, l.Label("job.queued")
	case events.KindJobProgress:
		m.jobActive, m.jobProgress = true, e.Progress
		m.jobMessage = e.Message
		if m.jobMessage == "" {
			m.jobMessage = l.Label("job.running")
		}
	case events.KindJobCompleted:
		m.jobActive = false
		m.setNotice(events.LevelInfo, l.Label("job.completed"))
		if e.Err != nil {
			m.setNotice(events.LevelWarn, l.Labelf("notice.refresh", fault.Message(e.Err)))
		}
	case events.KindJobFailed:
		m.jobActive = false
		m.setNotice(events.LevelError, l.Labelf("job.failed", e.Message))
	case events.KindJobConnectivity:
		m.jobActive = false
		m.status = m.sess.Monitor.Status()
		m.setNotice(events.LevelError, l.Label("job.connectivity"))
	case events.KindJobTimeout:
		m.jobActive = false
		m.setNotice(events.LevelError, l.Label("job.timeout"))
	case events.KindJobCancelled:
		m.jobActive = false
		m.setNotice(events.LevelInfo, l.Label("job.cancelled"))
	}
}

func (m Model) answer(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.yes):
		m.confirm.reply <- true
		m.confirm = nil
	case key.Matches(msg, m.keys.no), key.Matches(msg, m.keys.quit):
		m.confirm.reply <- false
		m.confirm = nil
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	sess := m.sess
	switch {
	case key.Matches(msg, m.keys.quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, m.keys.down):
		if m.cursor < len(m.screen.Reports)-1 {
			m.cursor++
		}

	case key.Matches(msg, m.keys.pageUp), key.Matches(msg, m.keys.pageDown):
		if m.screen.Report != nil {
			var cmd tea.Cmd
			m.report, cmd = m.report.Update(msg)
			return m, cmd
		}

	case key.Matches(msg, m.keys.help):
		m.help.ShowAll = !m.help.ShowAll

	case key.Matches(msg, m.keys.refresh):
		m.busy = true
		return m, m.checkCmd()

	case key.Matches(msg, m.keys.generate):
		return m, m.opCmd("generate", func(ctx context.Context) (string, error) {
			_, err := sess.Jobs.Start(ctx)
			return "", err
		})

	case key.Matches(msg, m.keys.cancel):
		sess.Jobs.Cancel()

	case key.Matches(msg, m.keys.latest):
		m.busy = true
		return m, m.opCmd("latest", func(ctx context.Context) (string, error) {
			return "", sess.View.LoadReport(ctx, "")
		})

	case key.Matches(msg, m.keys.open):
		if id, ok := m.selected(); ok {
			m.busy = true
			return m, m.opCmd("open", func(ctx context.Context) (string, error) {
				return "", sess.View.LoadReport(ctx, id)
			})
		}

	case key.Matches(msg, m.keys.back):
		if m.screen.Report != nil {
			m.setScreen(sess.View.CloseReport())
		}

	case key.Matches(msg, m.keys.delete):
		if id, ok := m.selected(); ok {
			return m, m.opCmd("delete", func(ctx context.Context) (string, error) {
				return "", sess.View.DeleteReport(ctx, id)
			})
		}

	case key.Matches(msg, m.keys.download):
		id, ok := m.selected()
		if m.screen.Report != nil {
			id, ok = m.screen.Report.ID, true
		}
		if ok {
			l := m.locale()
			return m, m.opCmd("download", func(ctx context.Context) (string, error) {
				d, err := sess.Download(ctx, id, "")
				if err != nil {
					return "", err
				}
				return l.Labelf("download.saved", d.Path, d.Bytes), nil
			})
		}

	case key.Matches(msg, m.keys.history):
		l := m.locale()
		return m, m.opCmd("history", func(ctx context.Context) (string, error) {
			list, err := sess.Downloads(ctx, 3)
			if err != nil {
				return "", err
			}
			return recentDownloads(list, l), nil
		})

	case key.Matches(msg, m.keys.lang):
		s, err := sess.ToggleLocale(m.ctx)
		m.setScreen(s)
		m.keys = newKeyMap(s.Locale)
		m.report.KeyMap = reportKeys(m.keys)
		if err != nil {
			m.setNotice(events.LevelWarn, err.Error())
		}

	case key.Matches(msg, m.keys.theme):
		t, err := sess.ToggleTheme(m.ctx)
		m.styles = newStyles(t)
		m.setNotice(events.LevelInfo, m.locale().Labelf("theme.changed", t))
		if err != nil {
			m.setNotice(events.LevelWarn, err.Error())
		}
	}
	return m, nil
}

// recentDownloads renders the download history as a one-line notice.
func recentDownloads(list []storage.Download, l locale.Locale) string {
	if len(list) == 0 {
		return l.Label("download.none")
	}
	paths := make([]string, len(list))
	for i, d := range list {
		paths[i] = d.Path
	}
	return l.Labelf("download.recent", strings.Join(paths, ", "))
}

func (m Model) View() string {
	l := m.locale()
	st := m.styles
	var sections []string

	header := st.title.Render(l.Label("app.title")) + "  " + m.statusBadge()
	sections = append(sections, header, st.subtitle.Render(l.Label("app.subtitle")))

	if m.screen.HasDashboard {
		s := m.screen.Stats
		stats := strings.Join([]string{
			st.label.Render(l.Label("stats.influencers")+" ") + st.value.Render(fmt.Sprint(s.Influencers)),
			st.label.Render(l.Label("stats.posts")+" ") + st.value.Render(fmt.Sprint(s.Posts)),
			st.label.Render(l.Label("stats.trends")+" ") + st.value.Render(fmt.Sprint(s.Trends)),
			st.label.Render(l.Label("stats.updated")+" ") + st.value.Render(s.LastUpdated),
		}, "   ")
		sections = append(sections, stats, m.topicsPanel())
	}
	sections = append(sections, m.reportsPanel())

	if m.screen.Report != nil {
		sections = append(sections, st.panel.Render(m.report.View()))
	}

	if m.jobActive {
		line := m.spinner.View() + " " + m.jobMessage + "  " +
			m.progress.ViewAs(float64(m.jobProgress)/100)
		sections = append(sections, line)
	} else if m.busy {
		sections = append(sections, m.spinner.View())
	}

	if m.notice.text != "" {
		sections = append(sections, m.noticeStyle().Render(m.notice.text))
	}

	if m.confirm != nil {
		sections = append(sections, st.prompt.Render(m.confirm.prompt))
		sections = append(sections, m.help.View(confirmKeys{yes: m.keys.yes, no: m.keys.no}))
	} else {
		sections = append(sections, m.help.View(m.keys))
	}
	sections = append(sections, st.label.Render(m.sess.Metrics.Line()))
	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) statusBadge() string {
	l, st := m.locale(), m.styles
	switch m.status.State {
	case availability.Online:
		ready := l.Label("status.ready")
		if !m.status.Ready {
			ready = l.Label("status.notready")
		}
		return st.online.Render("● "+l.Label("status.online")) + " " + st.label.Render(ready)
	case availability.Offline:
		return st.offline.Render("● " + l.Label("status.offline"))
	default:
		return st.label.Render("○ " + l.Label("status.unknown"))
	}
}

func (m Model) topicsPanel() string {
	l, st := m.locale(), m.styles
	lines := []string{st.heading.Render(l.Label("topics.title"))}
	if len(m.screen.Topics) == 0 {
		lines = append(lines, st.label.Render(l.Label("topics.empty")))
	}
	for _, t := range m.screen.Topics {
		line := fmt.Sprintf("%-24s %-6s %s %3d", t.Tag, t.Change, t.Bar, t.Velocity)
		if t.IsNew {
			line += " " + st.isNew.Render(l.Label("topics.new"))
		}
		lines = append(lines, st.row.Render(line))
	}
	return st.panel.Render(strings.Join(lines, "\n"))
}

func (m Model) reportsPanel() string {
	l, st := m.locale(), m.styles
	lines := []string{st.heading.Render(l.Label("reports.title"))}
	if len(m.screen.Reports) == 0 {
		lines = append(lines, st.label.Render(l.Label("reports.empty")))
	}
	for i, r := range m.screen.Reports {
		line := fmt.Sprintf("%-22s %-10s %-40s %5d  %s", r.ID, r.Date, r.Title, r.Posts, r.Score)
		switch {
		case r.Fading:
			line = st.fading.Render(line + "  " + l.Label("reports.fading"))
		case i == m.cursor:
			line = st.selected.Render(line)
		default:
			line = st.row.Render(line)
		}
		lines = append(lines, line)
	}
	return st.panel.Render(strings.Join(lines, "\n"))
}

func (m Model) noticeStyle() lipgloss.Style {
	switch m.notice.level {
	case events.LevelWarn:
		return m.styles.warn
	case events.LevelError:
		return m.styles.err
	default:
		return m.styles.info
	}
}
