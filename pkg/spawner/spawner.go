// Package spawner launches detached, human-visible worker processes. The
// orchestrator never waits for a worker to finish its task; completion is
// observed indirectly through label changes on the tracked issue.
package spawner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"

	"autodev/pkg/labels"
	"autodev/pkg/logx"
)

// Task is the unit of delegated work. Created fresh for every spawn attempt;
// it has no persistence of its own.
//
//nolint:govet // Logical grouping preferred over memory optimization
type Task struct {
	IssueNumber int
	Phase       labels.Phase
	Prompt      string
	Branch      string
	PRNumber    int
}

// Handle is an opaque reference to a spawned worker (the process id).
type Handle int

// Spawner launches and terminates worker processes.
type Spawner interface {
	// Spawn starts a detached worker for the task. It returns as soon as the
	// process launch itself succeeds or fails; it never waits for the task.
	Spawn(ctx context.Context, task *Task) (Handle, error)
	// Kill terminates a worker. Best effort and idempotent; used only at
	// shutdown or by an explicit operator command.
	Kill(handle Handle) error
}

// TerminalSpawner spawns workers as detached process groups, optionally
// wrapped in a terminal emulator so a human can watch and interact.
type TerminalSpawner struct {
	command  []string // worker executable + fixed args; prompt path appended
	terminal []string // optional terminal wrapper, e.g. ["x-terminal-emulator", "-e"]
	taskDir  string
	logger   *logx.Logger
}

var _ Spawner = (*TerminalSpawner)(nil)

// NewTerminalSpawner creates a spawner writing prompt files into taskDir.
func NewTerminalSpawner(command, terminal []string, taskDir string) *TerminalSpawner {
	return &TerminalSpawner{
		command:  command,
		terminal: terminal,
		taskDir:  taskDir,
		logger:   logx.NewLogger("spawner"),
	}
}

// Spawn writes the task prompt to disk and launches the worker around it.
func (s *TerminalSpawner) Spawn(_ context.Context, task *Task) (Handle, error) {
	promptPath, err := s.writePrompt(task)
	if err != nil {
		return 0, err
	}

	argv := make([]string, 0, len(s.terminal)+len(s.command)+1)
	argv = append(argv, s.terminal...)
	argv = append(argv, s.command...)
	argv = append(argv, promptPath)

	// Deliberately not CommandContext: the worker must outlive the
	// orchestrator's contexts and remain open for human interaction.
	cmd := exec.Command(argv[0], argv[1:]...) //nolint:gosec // argv comes from operator config
	cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("failed to start worker for issue %d: %w", task.IssueNumber, err)
	}

	pid := cmd.Process.Pid
	s.logger.Info("Spawned %s worker for issue %d (pid %d)", task.Phase, task.IssueNumber, pid)

	// Reap the child when it exits so it never lingers as a zombie. This is
	// bookkeeping only; exit is never treated as task completion.
	go func() {
		err := cmd.Wait()
		s.logger.Debug("Worker pid %d exited: %v", pid, err)
	}()

	return Handle(pid), nil
}

// Kill terminates the worker's whole process group. A worker that already
// exited is not an error.
func (s *TerminalSpawner) Kill(handle Handle) error {
	if handle == 0 {
		return nil
	}
	// Negative pid targets the process group created by Setsid.
	err := syscall.Kill(-int(handle), syscall.SIGTERM)
	if err != nil && err != syscall.ESRCH {
		return fmt.Errorf("failed to kill worker pid %d: %w", int(handle), err)
	}
	s.logger.Info("Killed worker pid %d", int(handle))
	return nil
}

// writePrompt renders the task's prompt file, uniquely named per attempt.
func (s *TerminalSpawner) writePrompt(task *Task) (string, error) {
	name := fmt.Sprintf("issue-%d-%s-%s.md", task.IssueNumber, task.Phase, uuid.NewString()[:8])
	path := filepath.Join(s.taskDir, name)
	if err := os.WriteFile(path, []byte(task.Prompt), 0o644); err != nil {
		return "", fmt.Errorf("failed to write prompt file %s: %w", path, err)
	}
	return path, nil
}
