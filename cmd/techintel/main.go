// Package main is the entry point for the techintel client.
//
// Usage:
//
//	techintel dashboard        - print the dashboard
//	techintel generate         - generate a report and wait for it
//	techintel tui              - interactive dashboard
//	techintel mock             - run the local service emulator
//	techintel help             - all commands
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const (
	version = "0.1.0"
	appName = "techintel"
)

// app carries the process streams so commands can be driven from tests.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	// interactive reports whether stdin is a terminal a human can answer on.
	interactive bool
	envFiles    []string
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a := &app{
		stdin:       os.Stdin,
		stdout:      os.Stdout,
		stderr:      os.Stderr,
		interactive: stdinIsTerminal(),
	}
	os.Exit(a.run(ctx, os.Args[1:]))
}

// run executes one command and returns the process exit code.
func (a *app) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		a.printUsage()
		return 2
	}

	cmd, rest := args[0], args[1:]
	var err error
	switch cmd {
	case "status":
		err = a.runStatus(ctx, rest)
	case "dashboard":
		err = a.runDashboard(ctx, rest)
	case "report":
		err = a.runReport(ctx, rest)
	case "download":
		err = a.runDownload(ctx, rest)
	case "generate":
		err = a.runGenerate(ctx, rest)
	case "delete":
		err = a.runDelete(ctx, rest)
	case "reports":
		err = a.runReports(ctx, rest)
	case "influencers":
		err = a.runInfluencers(ctx, rest)
	case "settings":
		err = a.runSettings(ctx, rest)
	case "lang":
		err = a.runLang(ctx, rest)
	case "theme":
		err = a.runTheme(ctx, rest)
	case "downloads":
		err = a.runDownloads(ctx, rest)
	case "prefs":
		err = a.runPrefs(ctx, rest)
	case "tui":
		err = a.runTUI(ctx, rest)
	case "mock":
		err = a.runMock(ctx, rest)
	case "version":
		fmt.Fprintf(a.stdout, "%s v%s\n", appName, version)
	case "help", "--help", "-h":
		a.printUsage()
	default:
		fmt.Fprintf(a.stderr, "unknown command: %s\n\n", cmd)
		a.printUsage()
		return 2
	}

	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) printUsage() {
	fmt.Fprintf(a.stderr, `%s v%s: Tech Intelligence report client

Usage:
  %s <command> [arguments]

Commands:
  status                          Check the service and its credentials
  dashboard                       Print stats, trending topics and recent reports
  report [id|latest]              Print a report (default: latest)
  download <id> [file]            Save a report's JSON to a file
  generate [--no-wait]            Start a report and follow it to completion
  delete <id> [--yes]             Delete a report after confirmation
  reports                         List stored reports
  influencers [add|rm <name>]     List or edit tracked accounts
  settings [key=value ...]        Show or change fetch_hours and max_per_user
  lang [en|zh]                    Show or set the display language
  theme [dark|light]              Show or set the dashboard palette
  downloads [N]                   List the last N saved reports (default 20)
  prefs [reset]                   Show saved preferences, or reset them
  tui                             Interactive dashboard
  mock [addr]                     Run the service emulator (default 127.0.0.1:8000)
  version                         Print version

Commands that talk to the service accept --stats to print request metrics.

Environment variables (also read from ./.env):
  TECHINTEL_SERVER         Service URL (default: http://127.0.0.1:8000)
  TECHINTEL_DATA           Data directory (default: ~/.techintel)
  TECHINTEL_POLL_INTERVAL  Job poll interval (default: 2.5s)
  TECHINTEL_JOB_TIMEOUT    Give up on a job after (default: 15m)
  TECHINTEL_HTTP_TIMEOUT   Per-request timeout (default: 15s)
  TECHINTEL_RATE           Max requests per second, 0 = unlimited (default: 10)
  TECHINTEL_LOG_LEVEL      debug, info, warn, error (default: info)

`, appName, version, appName)
}
