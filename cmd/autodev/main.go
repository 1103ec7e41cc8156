// Command autodev drives autonomous development work on a GitHub backlog.
// It polls issues by label, leases them locally, and delegates each pipeline
// phase (grooming, building, reviewing) to a detached worker process a human
// can watch.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"autodev/pkg/config"
	"autodev/pkg/github"
	"autodev/pkg/logx"
	"autodev/pkg/metrics"
	"autodev/pkg/persistence"
	"autodev/pkg/scheduler"
	"autodev/pkg/spawner"
	"autodev/pkg/templates"
)

// Version information - set via ldflags.
var (
	version = "dev"
	commit  = "none"
)

// shutdownTimeout bounds the external cleanup work done after a signal.
const shutdownTimeout = 30 * time.Second

func main() {
	var (
		projectDir  = flag.String("projectdir", ".", "Project directory")
		debug       = flag.Bool("debug", false, "Enable debug logging")
		showVersion = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	if *debug {
		logx.SetDebug(true)
	}

	if *showVersion {
		fmt.Printf("autodev %s (commit %s)\n", version, commit)
		os.Exit(0)
	}

	command := flag.Arg(0)
	if command == "" {
		command = "run"
	}

	os.Exit(run(*projectDir, command, flag.Args()))
}

// run contains the main application logic and returns an exit code. This
// allows defers to execute before os.Exit is called.
func run(projectDir, command string, args []string) int {
	logger := logx.NewLogger("autodev")

	cfg, err := config.Load(projectDir)
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		return 1
	}
	if err := cfg.EnsureStateDirs(); err != nil {
		logger.Error("Failed to prepare state directories: %v", err)
		return 1
	}

	store, err := persistence.Open(cfg.DBPath)
	if err != nil {
		logger.Error("Failed to open lease store: %v", err)
		return 1
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close lease store: %v", err)
		}
	}()

	renderer, err := templates.NewRenderer()
	if err != nil {
		logger.Error("Failed to load templates: %v", err)
		return 1
	}

	tracker := github.NewClient(cfg.Repo.Owner, cfg.Repo.Name)
	sp := spawner.NewTerminalSpawner(cfg.Worker.Command, cfg.Worker.Terminal, cfg.TaskDir)
	registry := spawner.NewRegistry()

	var recorder *metrics.Recorder
	if command == "run" {
		recorder = metrics.NewRecorder()
	}

	coordinator := scheduler.NewCoordinator(store, tracker, sp, registry, renderer, recorder, scheduler.Options{
		Labels:       cfg.Labels,
		RepoPath:     cfg.Repo.Path(),
		PollInterval: time.Duration(cfg.PollIntervalSec) * time.Second,
		MaxBuilders:  cfg.MaxBuilders,
		MaxReviewers: cfg.MaxReviewers,
	})

	switch command {
	case "run":
		return runLoop(cfg, tracker, coordinator, logger)
	case "status":
		return runStatus(coordinator, logger)
	case "reset":
		return runWithTimeout(logger, coordinator.Reset)
	case "retry":
		issueNumber, ok := parseIssueArg(args, logger)
		if !ok {
			return 2
		}
		return runWithTimeout(logger, func(ctx context.Context) error {
			return coordinator.Retry(ctx, issueNumber)
		})
	case "kill":
		issueNumber, ok := parseIssueArg(args, logger)
		if !ok {
			return 2
		}
		return runWithTimeout(logger, func(ctx context.Context) error {
			return coordinator.KillWorker(ctx, issueNumber)
		})
	default:
		logger.Error("Unknown command %q (want run, status, reset, retry or kill)", command)
		return 2
	}
}

// runLoop starts the reconciliation loop and blocks until a signal arrives.
func runLoop(cfg *config.Config, tracker *github.Client, coordinator *scheduler.Coordinator, logger *logx.Logger) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := github.CheckAuth(ctx); err != nil {
		logger.Error("GitHub auth check failed: %v", err)
		return 1
	}
	ensureLabels(ctx, cfg, tracker, logger)

	if cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr)
	}

	coordinator.Run(ctx)

	// The run context is canceled; cleanup gets its own deadline.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	coordinator.Shutdown(shutdownCtx)
	return 0
}

// ensureLabels creates the managed labels in the repository so later label
// edits never trip over a missing definition. Best effort.
func ensureLabels(ctx context.Context, cfg *config.Config, tracker *github.Client, logger *logx.Logger) {
	descriptions := map[string]string{
		cfg.Labels.Groom:     "queued for automated grooming",
		cfg.Labels.Grooming:  "automated grooming in progress",
		cfg.Labels.Ready:     "plan approved, queued for implementation",
		cfg.Labels.Building:  "automated implementation in progress",
		cfg.Labels.PRReady:   "pull request open, queued for review",
		cfg.Labels.Reviewing: "automated review in progress",
		cfg.Labels.Failed:    "automated work failed, needs operator attention",
	}
	for _, label := range cfg.Labels.Managed() {
		if err := tracker.EnsureLabel(ctx, label, "5319e7", descriptions[label]); err != nil {
			logger.Warn("Failed to ensure label %q: %v", label, err)
		}
	}
}

// runStatus dumps active leases and their live label state.
func runStatus(coordinator *scheduler.Coordinator, logger *logx.Logger) int {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	statuses, err := coordinator.Status(ctx)
	if err != nil {
		logger.Error("Status failed: %v", err)
		return 1
	}

	if len(statuses) == 0 {
		fmt.Println("No active leases.")
		return 0
	}

	if term.IsTerminal(int(os.Stdout.Fd())) {
		fmt.Printf("%-8s %-10s %-8s %-20s %s\n", "ISSUE", "PHASE", "PID", "BRANCH", "LABELS")
	}
	for i := range statuses {
		s := &statuses[i]
		pid := "-"
		if s.Lease.WorkerPID != nil {
			pid = strconv.Itoa(*s.Lease.WorkerPID)
		}
		branch := "-"
		if s.Lease.Branch != nil {
			branch = *s.Lease.Branch
		}
		labelState := strings.Join(s.Labels, ",")
		if s.Err != nil {
			labelState = fmt.Sprintf("(label read failed: %v)", s.Err)
		}
		fmt.Printf("%-8d %-10s %-8s %-20s %s\n", s.Lease.IssueNumber, s.Lease.Phase, pid, branch, labelState)
	}
	return 0
}

// runWithTimeout executes one operator operation under the cleanup deadline.
func runWithTimeout(logger *logx.Logger, op func(context.Context) error) int {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := op(ctx); err != nil {
		logger.Error("%v", err)
		return 1
	}
	return 0
}

// parseIssueArg extracts the issue number argument for retry/kill.
func parseIssueArg(args []string, logger *logx.Logger) (int, bool) {
	if len(args) < 2 {
		logger.Error("Missing issue number argument")
		return 0, false
	}
	issueNumber, err := strconv.Atoi(args[1])
	if err != nil || issueNumber <= 0 {
		logger.Error("Invalid issue number %q", args[1])
		return 0, false
	}
	return issueNumber, true
}
