package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/techintel/techintel/internal/backend"
	"github.com/techintel/techintel/internal/config"
	"github.com/techintel/techintel/internal/events"
	"github.com/techintel/techintel/internal/fakeserver"
	"github.com/techintel/techintel/internal/fault"
	"github.com/techintel/techintel/internal/locale"
	"github.com/techintel/techintel/internal/observability"
	"github.com/techintel/techintel/internal/prefs"
	"github.com/techintel/techintel/internal/reconcile"
	"github.com/techintel/techintel/internal/session"
	"github.com/techintel/techintel/internal/tui"
)

// cliFlags are the switches shared by the commands.
type cliFlags struct {
	stats  bool
	yes    bool
	noWait bool
}

// parseArgs accepts flags anywhere among the positional arguments.
func (a *app) parseArgs(name string, args []string) (cliFlags, []string, error) {
	var f cliFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	fs.BoolVar(&f.stats, "stats", false, "print request metrics when done")
	fs.BoolVar(&f.yes, "yes", false, "skip the confirmation prompt")
	fs.BoolVar(&f.noWait, "no-wait", false, "return once the job is accepted")

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return f, nil, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}
	return f, positional, nil
}

// open builds the session. The dashboard logs to a file; everything else
// logs to stderr.
func (a *app) open(ctx context.Context, f cliFlags, logTo io.Writer, opts ...session.Option) (*session.Session, error) {
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if logTo == nil {
		logTo = a.stderr
	}
	log := observability.NewLogger(appName, logTo, observability.ParseLevel(cfg.LogLevel))

	confirmer := reconcile.Confirmer(newLineConfirmer(a.stdin, a.stdout, a.interactive))
	if f.yes {
		confirmer = reconcile.ConfirmFunc(func(context.Context, string) error { return nil })
	}
	opts = append([]session.Option{session.WithLogger(log), session.WithConfirmer(confirmer)}, opts...)
	return session.New(ctx, cfg, opts...)
}

// finish prints metrics when asked and closes the session.
func (a *app) finish(s *session.Session, f cliFlags) {
	if f.stats {
		fmt.Fprintf(a.stderr, "%s\n", s.Metrics.Line())
	}
	if err := s.Close(); err != nil {
		fmt.Fprintf(a.stderr, "warning: %v\n", err)
	}
}

// printNotices writes notices and advisories to stderr until the returned
// function is called.
func (a *app) printNotices(s *session.Session) func() {
	return s.Bus.Subscribe(func(e events.Event) {
		switch e.Kind {
		case events.KindNotice, events.KindAdvisory:
			fmt.Fprintf(a.stderr, "[%s] %s\n", e.Level, e.Message)
		}
	})
}

// connect runs the availability check every remote command starts with.
func connect(ctx context.Context, s *session.Session) error {
	if _, err := s.Check(ctx); err != nil {
		return fmt.Errorf("%s: %s", s.Locale().Label("notice.offline"), fault.Message(err))
	}
	return nil
}

// withSession is the common shape of a remote command.
func (a *app) withSession(ctx context.Context, name string, args []string, minArgs int,
	fn func(ctx context.Context, s *session.Session, f cliFlags, args []string) error) error {
	f, pos, err := a.parseArgs(name, args)
	if err != nil {
		return err
	}
	if len(pos) < minArgs {
		return fmt.Errorf("%s: missing argument (see %s help)", name, appName)
	}
	s, err := a.open(ctx, f, nil)
	if err != nil {
		return err
	}
	defer a.finish(s, f)
	defer a.printNotices(s)()

	if err := connect(ctx, s); err != nil {
		return err
	}
	return fn(ctx, s, f, pos)
}

func (a *app) runStatus(ctx context.Context, args []string) error {
	return a.withSession(ctx, "status", args, 0, func(ctx context.Context, s *session.Session, f cliFlags, _ []string) error {
		st := s.Monitor.Status()
		l := s.Locale()
		mark := func(ok bool) string {
			if ok {
				return l.Label("status.ok")
			}
			return l.Label("status.missing")
		}
		ready := l.Label("status.ready")
		if !st.Ready {
			ready = l.Label("status.notready")
		}

		w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s (%s)\n", s.Config.ServerURL, l.Label("status.online"), ready)
		fmt.Fprintf(w, "%s\t%s\n", l.Label("status.x"), mark(st.XConfigured))
		fmt.Fprintf(w, "%s\t%s\n", l.Label("status.claude"), mark(st.ClaudeConfigured))
		fmt.Fprintf(w, "%s\t%d\n", l.Label("stats.influencers"), st.InfluencerCount)
		last := st.LastReport
		if last == "" {
			last = l.Label("stats.never")
		}
		fmt.Fprintf(w, "%s\t%s\n", l.Label("stats.updated"), last)
		return w.Flush()
	})
}

func (a *app) runDashboard(ctx context.Context, args []string) error {
	return a.withSession(ctx, "dashboard", args, 0, func(ctx context.Context, s *session.Session, f cliFlags, _ []string) error {
		if err := s.View.LoadDashboard(ctx); err != nil {
			return err
		}
		fmt.Fprint(a.stdout, s.View.Screen().Text())
		return nil
	})
}

func (a *app) runReport(ctx context.Context, args []string) error {
	return a.withSession(ctx, "report", args, 0, func(ctx context.Context, s *session.Session, f cliFlags, pos []string) error {
		id := backend.LatestReport
		if len(pos) > 0 {
			id = pos[0]
		}
		if err := s.View.LoadReport(ctx, id); err != nil {
			return err
		}
		if r := s.View.Screen().Report; r != nil {
			fmt.Fprint(a.stdout, r.Text(s.Locale()))
		}
		return nil
	})
}

func (a *app) runDownload(ctx context.Context, args []string) error {
	return a.withSession(ctx, "download", args, 1, func(ctx context.Context, s *session.Session, f cliFlags, pos []string) error {
		path := ""
		if len(pos) > 1 {
			path = pos[1]
		}
		d, err := s.Download(ctx, pos[0], path)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, s.Locale().Labelf("download.saved", d.Path, d.Bytes))
		return nil
	})
}

func (a *app) runGenerate(ctx context.Context, args []string) error {
	return a.withSession(ctx, "generate", args, 0, func(ctx context.Context, s *session.Session, f cliFlags, _ []string) error {
		l := s.Locale()
		outcome := make(chan events.Event, 1)
		unsubscribe := s.Bus.Subscribe(func(e events.Event) {
			switch {
			case e.Kind == events.KindJobStarted:
				fmt.Fprintf(a.stdout, "%s %s\n", l.Label("job.queued"), e.JobID)
			case e.Kind == events.KindJobProgress:
				fmt.Fprintf(a.stdout, "%3d%%  %s\n", e.Progress, e.Message)
			case e.Kind.Terminal():
				select {
				case outcome <- e:
				default:
				}
			}
		})
		defer unsubscribe()

		if _, err := s.Jobs.Start(ctx); err != nil {
			return err
		}
		if f.noWait {
			return nil
		}

		var e events.Event
		select {
		case e = <-outcome:
		case <-ctx.Done():
			s.Jobs.Cancel()
			<-s.Jobs.Done()
			return ctx.Err()
		}
		<-s.Jobs.Done()

		switch e.Kind {
		case events.KindJobCompleted:
			fmt.Fprintf(a.stdout, "%s %s\n\n", l.Label("job.completed"), e.ReportID)
			fmt.Fprint(a.stdout, s.View.Screen().Text())
			return nil
		case events.KindJobFailed:
			return errors.New(l.Labelf("job.failed", e.Message))
		case events.KindJobConnectivity:
			return fmt.Errorf("%s: %s", l.Label("job.connectivity"), fault.Message(e.Err))
		case events.KindJobTimeout:
			return errors.New(l.Label("job.timeout"))
		default:
			return errors.New(l.Label("job.cancelled"))
		}
	})
}

func (a *app) runDelete(ctx context.Context, args []string) error {
	return a.withSession(ctx, "delete", args, 1, func(ctx context.Context, s *session.Session, f cliFlags, pos []string) error {
		return s.View.DeleteReport(ctx, pos[0])
	})
}

func (a *app) runReports(ctx context.Context, args []string) error {
	return a.withSession(ctx, "reports", args, 0, func(ctx context.Context, s *session.Session, f cliFlags, _ []string) error {
		list, err := s.API.Reports(ctx)
		if err != nil {
			return err
		}
		l := s.Locale()
		if len(list) == 0 {
			fmt.Fprintln(a.stdout, l.Label("reports.empty"))
			return nil
		}
		w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.Label("reports.id"), l.Label("reports.date"),
			l.Label("reports.report"), l.Label("reports.posts"))
		for _, r := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", r.ID, r.Date, locale.Pick(l, r.Title, r.ZhTitle), r.TotalPosts)
		}
		return w.Flush()
	})
}

func (a *app) runInfluencers(ctx context.Context, args []string) error {
	return a.withSession(ctx, "influencers", args, 0, func(ctx context.Context, s *session.Session, f cliFlags, pos []string) error {
		var (
			list backend.Influencers
			err  error
		)
		switch {
		case len(pos) == 0 || pos[0] == "list":
			list, err = s.API.Influencers(ctx)
		case len(pos) == 2 && pos[0] == "add":
			list, err = s.API.AddInfluencer(ctx, pos[1])
		case len(pos) == 2 && (pos[0] == "rm" || pos[0] == "remove"):
			list, err = s.API.RemoveInfluencer(ctx, pos[1])
		default:
			return fmt.Errorf("usage: %s influencers [add|rm <name>]", appName)
		}
		if err != nil {
			return err
		}
		for _, name := range list.Influencers {
			fmt.Fprintf(a.stdout, "@%s\n", name)
		}
		fmt.Fprintf(a.stdout, "%s: %d\n", s.Locale().Label("stats.influencers"), list.Total)
		return nil
	})
}

// parseSettings reads key=value pairs into an update.
func parseSettings(pairs []string) (backend.SettingsUpdate, error) {
	var u backend.SettingsUpdate
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		if !ok {
			return u, fmt.Errorf("want key=value, got %q", p)
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil || n <= 0 {
			return u, fmt.Errorf("%s: want a positive integer, got %q", k, v)
		}
		switch strings.TrimSpace(k) {
		case "fetch_hours":
			u.FetchHours = &n
		case "max_per_user":
			u.MaxPerUser = &n
		default:
			return u, fmt.Errorf("unknown setting %q (want fetch_hours or max_per_user)", k)
		}
	}
	return u, nil
}

func (a *app) runSettings(ctx context.Context, args []string) error {
	return a.withSession(ctx, "settings", args, 0, func(ctx context.Context, s *session.Session, f cliFlags, pos []string) error {
		if len(pos) > 0 {
			u, err := parseSettings(pos)
			if err != nil {
				return err
			}
			if err := s.API.SaveSettings(ctx, u); err != nil {
				return err
			}
		}
		st, err := s.API.Settings(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "fetch_hours\t%d\n", st.FetchHours)
		fmt.Fprintf(w, "max_per_user\t%d\n", st.MaxPerUser)
		fmt.Fprintf(w, "x_configured\t%t\n", st.XConfigured)
		fmt.Fprintf(w, "claude_configured\t%t\n", st.ClaudeConfigured)
		fmt.Fprintf(w, "report_count\t%d\n", st.ReportCount)
		fmt.Fprintf(w, "influencer_count\t%d\n", st.InfluencerCount)
		return w.Flush()
	})
}

// runLang and runTheme only touch local preferences.
func (a *app) runLang(ctx context.Context, args []string) error {
	f, pos, err := a.parseArgs("lang", args)
	if err != nil {
		return err
	}
	s, err := a.open(ctx, f, nil)
	if err != nil {
		return err
	}
	defer a.finish(s, f)

	if len(pos) == 0 {
		fmt.Fprintln(a.stdout, s.Locale())
		return nil
	}
	l, err := locale.Parse(pos[0])
	if err != nil {
		return err
	}
	if _, err := s.SetLocale(ctx, l); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, l)
	return nil
}

func (a *app) runTheme(ctx context.Context, args []string) error {
	f, pos, err := a.parseArgs("theme", args)
	if err != nil {
		return err
	}
	s, err := a.open(ctx, f, nil)
	if err != nil {
		return err
	}
	defer a.finish(s, f)

	if len(pos) == 0 {
		fmt.Fprintln(a.stdout, s.Theme())
		return nil
	}
	t, err := prefs.ParseTheme(pos[0])
	if err != nil {
		return err
	}
	if err := s.SetTheme(ctx, t); err != nil {
		return err
	}
	fmt.Fprintln(a.stdout, t)
	return nil
}

// runDownloads lists the local download history.
func (a *app) runDownloads(ctx context.Context, args []string) error {
	f, pos, err := a.parseArgs("downloads", args)
	if err != nil {
		return err
	}
	limit := 20
	if len(pos) > 0 {
		if limit, err = strconv.Atoi(pos[0]); err != nil || limit <= 0 {
			return fmt.Errorf("downloads: limit must be a positive integer, got %q", pos[0])
		}
	}
	s, err := a.open(ctx, f, nil)
	if err != nil {
		return err
	}
	defer a.finish(s, f)

	list, err := s.Downloads(ctx, limit)
	if err != nil {
		return err
	}
	l := s.Locale()
	if len(list) == 0 {
		fmt.Fprintln(a.stdout, l.Label("download.none"))
		return nil
	}
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", l.Label("reports.id"), l.Label("download.file"),
		l.Label("download.bytes"), l.Label("download.when"))
	for _, d := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", d.ReportID, d.Path, d.Bytes, d.SavedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

// runPrefs shows the saved preferences, or forgets them with "reset".
func (a *app) runPrefs(ctx context.Context, args []string) error {
	f, pos, err := a.parseArgs("prefs", args)
	if err != nil {
		return err
	}
	if len(pos) > 0 && pos[0] != "reset" {
		return fmt.Errorf("usage: %s prefs [reset]", appName)
	}
	s, err := a.open(ctx, f, nil)
	if err != nil {
		return err
	}
	defer a.finish(s, f)

	if len(pos) > 0 {
		screen, err := s.ResetPrefs(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.stdout, screen.Locale.Label("prefs.reset"))
		return nil
	}

	list, err := s.StoredPrefs(ctx)
	if err != nil {
		return err
	}
	l := s.Locale()
	if len(list) == 0 {
		fmt.Fprintln(a.stdout, l.Label("prefs.none"))
		return nil
	}
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "%s\t%s\t%s\n", l.Label("prefs.key"), l.Label("prefs.value"), l.Label("prefs.updated"))
	for _, p := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", p.Key, p.Value, p.UpdatedAt.Local().Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func (a *app) runTUI(ctx context.Context, args []string) error {
	f, _, err := a.parseArgs("tui", args)
	if err != nil {
		return err
	}
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	logFile, err := os.OpenFile(cfg.LogPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log: %w", err)
	}
	defer logFile.Close()

	bridge := tui.NewBridge()
	s, err := a.open(ctx, f, logFile, session.WithConfirmer(bridge), session.WithFader(bridge))
	if err != nil {
		return err
	}
	defer a.finish(s, f)
	return tui.Run(ctx, s, bridge)
}

func (a *app) runMock(ctx context.Context, args []string) error {
	_, pos, err := a.parseArgs("mock", args)
	if err != nil {
		return err
	}
	addr := "127.0.0.1:8000"
	if len(pos) > 0 {
		addr = pos[0]
	}

	log := observability.NewLogger("mock", a.stderr, observability.ParseLevel(os.Getenv("TECHINTEL_LOG_LEVEL")))
	now := time.Now()
	srv := fakeserver.New(
		fakeserver.WithLogger(log),
		fakeserver.WithReports(
			fakeserver.SampleReport(now.Add(-24*time.Hour), 3),
			fakeserver.SampleReport(now.Add(-48*time.Hour), 3),
		),
	)
	fmt.Fprintf(a.stdout, "service emulator listening on http://%s (Ctrl+C to stop)\n", addr)
	return srv.Start(ctx, addr)
}
