// cmd/cvreview/main.go
//
// This is the entry point for the cvreview CLI.
//
// Running `cvreview` with no arguments opens the interactive TUI. The other
// subcommands are one-shot helpers around the same session machine and API
// client:
//
//	cvreview submit [--url URL] [--download xlsx|pdf] FILE...
//	cvreview download --ids ID[,ID] [--format xlsx|pdf] [--area A] [--from D] [--to D]
//	cvreview history | show ID | delete ID | metrics | best | health

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/kingrea/cv-review/internal/api"
	"github.com/kingrea/cv-review/internal/config"
	"github.com/kingrea/cv-review/internal/logbook"
	"github.com/kingrea/cv-review/internal/logging"
	"github.com/kingrea/cv-review/internal/poller"
	"github.com/kingrea/cv-review/internal/report"
	"github.com/kingrea/cv-review/internal/session"
	"github.com/kingrea/cv-review/internal/statusbridge"
	"github.com/kingrea/cv-review/internal/submission"
	"github.com/kingrea/cv-review/internal/tui"
)

func main() {
	args := os.Args[1:]
	command := "tui"
	if len(args) > 0 && args[0] != "" && args[0][0] != '-' {
		command, args = args[0], args[1:]
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var err error
	switch command {
	case "tui":
		err = runTUI(ctx, args)
	case "submit":
		err = runSubmit(ctx, args)
	case "download":
		err = runDownload(ctx, args)
	case "history":
		err = runHistory(ctx, args)
	case "show":
		err = runShow(ctx, args)
	case "delete":
		err = runDelete(ctx, args)
	case "metrics":
		err = runMetrics(ctx, args)
	case "best":
		err = runBest(ctx, args)
	case "health":
		err = runHealth(ctx, args)
	case "help", "-h", "--help":
		usage()
		return
	default:
		usage()
		die("unknown command %q", command)
	}
	if err != nil {
		var failed errRunFailed
		if errors.As(err, &failed) {
			os.Exit(1)
		}
		die("%v", err)
	}
}

// errRunFailed means the failure has already been reported to the user.
type errRunFailed struct{}

func (errRunFailed) Error() string { return "run failed" }

func usage() {
	fmt.Fprint(os.Stderr, `usage: cvreview [command] [flags]

commands:
  tui        interactive session (default)
  submit     submit files or a URL and wait for the result
  download   download a report for stored analyses
  history    list stored analyses
  show       show one stored analysis
  delete     delete a stored analysis
  metrics    aggregated usage metrics
  best       best candidate per area
  health     check the analysis service
`)
}

// env is everything a command needs, built from the project directory.
type env struct {
	cfg     *config.Config
	log     *logging.Logger
	client  *api.Client
	logbook *logbook.Logbook
}

func (e *env) Close() {
	if e.log != nil {
		_ = e.log.Close()
	}
}

func projectFlag(fs *flag.FlagSet) *string {
	return fs.String("project", "", "directory holding .cvreview (defaults to cwd)")
}

func bootstrap(projectDir string) (*env, error) {
	if projectDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("determine working directory: %w", err)
		}
		projectDir = cwd
	}
	absolute, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}
	if err := config.InitDir(absolute); err != nil {
		return nil, fmt.Errorf("init %s: %w", config.Dir, err)
	}
	cfg, err := config.Load(absolute)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogPath(), cfg.Project.Logging.Level)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger.Logger)
	client, err := api.New(cfg.Project.API.BaseURL,
		api.WithTimeout(cfg.Project.API.Timeout),
		api.WithLogger(logger.Logger))
	if err != nil {
		_ = logger.Close()
		return nil, err
	}
	book, err := logbook.New(filepath.Join(cfg.LogsDir(), "journal.log"))
	if err != nil {
		logger.Warn("logbook.unavailable", "error", err)
	}
	return &env{cfg: cfg, log: logger, client: client, logbook: book}, nil
}

func (e *env) newMachine(ctx context.Context) *session.Machine {
	gateway := submission.NewGateway(e.client,
		submission.WithLimits(submission.LimitsFromConfig(e.cfg.Project.Submission)),
		submission.WithLogger(e.log.Logger))
	reports := report.NewFetcher(e.client, e.log.Logger)
	return session.New(gateway, e.client, reports,
		session.WithContext(ctx),
		session.WithLogger(e.log.Logger),
		session.WithDownloadDir(e.cfg.ReportsDir()),
		session.WithTrackerOptions(poller.WithInterval(e.cfg.Project.Polling.Interval)))
}

// startBridge starts the status bridge when enabled. The returned stop func
// is always safe to call.
func (e *env) startBridge(ctx context.Context, board *statusbridge.Board) func() {
	settings := statusbridge.SettingsFromConfig(e.cfg)
	if !settings.Enabled {
		return func() {}
	}
	server := statusbridge.NewServer(settings, board, statusbridge.WithLogger(e.log.Logger))
	if err := server.Start(ctx); err != nil {
		e.log.Warn("statusbridge.start_failed", "error", err)
		return func() {}
	}
	return func() {
		_ = server.Shutdown(context.Background())
	}
}

func runTUI(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tui", flag.ExitOnError)
	project := projectFlag(fs)
	_ = fs.Parse(args)

	e, err := bootstrap(*project)
	if err != nil {
		return err
	}
	defer e.Close()

	board := statusbridge.NewBoard()
	stopBridge := e.startBridge(ctx, board)
	defer stopBridge()

	app := tui.NewApp(e.newMachine(ctx),
		tui.WithBoard(board),
		tui.WithLogbook(e.logbook),
		tui.WithLogger(e.log.Logger),
		tui.WithAPIBase(e.client.BaseURL()))
	p := tea.NewProgram(app, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run tui: %w", err)
	}
	return nil
}

func runSubmit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ExitOnError)
	project := projectFlag(fs)
	target := fs.String("url", "", "evaluate a public profile URL instead of files")
	download := fs.String("download", "", "download a report when done (xlsx or pdf)")
	_ = fs.Parse(args)

	opts := tui.HeadlessOptions{Files: fs.Args(), URL: *target}
	if *download != "" {
		format, err := report.ParseFormat(*download)
		if err != nil {
			return err
		}
		opts.Download = format
	}
	if opts.URL == "" && len(opts.Files) == 0 {
		return fmt.Errorf("submit: pass at least one file or --url")
	}

	e, err := bootstrap(*project)
	if err != nil {
		return err
	}
	defer e.Close()

	board := statusbridge.NewBoard()
	stopBridge := e.startBridge(ctx, board)
	defer stopBridge()
	opts.Board = board

	h := tui.NewHeadless(e.newMachine(ctx), os.Stdout, opts)
	p := tea.NewProgram(h, tea.WithInput(nil), tea.WithoutRenderer(), tea.WithContext(ctx))
	_, err = p.Run()
	return submitOutcome(err, h.Failed())
}

// submitOutcome maps the headless run to the command result. An interrupted
// run counts as failed.
func submitOutcome(runErr error, failed bool) error {
	switch {
	case errors.Is(runErr, tea.ErrProgramKilled):
		return errRunFailed{}
	case runErr != nil:
		return fmt.Errorf("run submit: %w", runErr)
	case failed:
		return errRunFailed{}
	}
	return nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "cvreview: "+format+"\n", args...)
	os.Exit(1)
}
