package spawner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"autodev/pkg/labels"
)

func TestSpawnWritesPromptAndDetaches(t *testing.T) {
	taskDir := t.TempDir()
	s := NewTerminalSpawner([]string{"/bin/true"}, nil, taskDir)

	handle, err := s.Spawn(context.Background(), &Task{
		IssueNumber: 12,
		Phase:       labels.PhaseBuilding,
		Prompt:      "do the work",
	})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	if handle == 0 {
		t.Fatal("expected a non-zero handle")
	}

	entries, err := os.ReadDir(taskDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 prompt file, got %d", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "issue-12-building-") || !strings.HasSuffix(name, ".md") {
		t.Errorf("unexpected prompt filename %q", name)
	}
	content, err := os.ReadFile(filepath.Join(taskDir, name))
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(content) != "do the work" {
		t.Errorf("prompt content = %q", string(content))
	}
}

func TestSpawnPromptFilesAreUniquePerAttempt(t *testing.T) {
	taskDir := t.TempDir()
	s := NewTerminalSpawner([]string{"/bin/true"}, nil, taskDir)

	task := &Task{IssueNumber: 3, Phase: labels.PhaseGrooming, Prompt: "p"}
	for i := 0; i < 2; i++ {
		if _, err := s.Spawn(context.Background(), task); err != nil {
			t.Fatalf("Spawn %d failed: %v", i, err)
		}
	}

	entries, err := os.ReadDir(taskDir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 prompt files, got %d", len(entries))
	}
}

func TestSpawnFailsForMissingExecutable(t *testing.T) {
	s := NewTerminalSpawner([]string{"/nonexistent/worker-binary"}, nil, t.TempDir())

	_, err := s.Spawn(context.Background(), &Task{IssueNumber: 1, Phase: labels.PhaseGrooming})
	if err == nil {
		t.Fatal("expected spawn to fail")
	}
}

func TestKillIsIdempotent(t *testing.T) {
	s := NewTerminalSpawner([]string{"/bin/true"}, nil, t.TempDir())

	// Zero handle: nothing to kill.
	if err := s.Kill(0); err != nil {
		t.Errorf("Kill(0) = %v, want nil", err)
	}

	handle, err := s.Spawn(context.Background(), &Task{IssueNumber: 1, Phase: labels.PhaseGrooming})
	if err != nil {
		t.Fatalf("Spawn failed: %v", err)
	}
	// /bin/true exits immediately; killing an already-gone group must not err.
	if err := s.Kill(handle); err != nil {
		t.Errorf("Kill after exit = %v, want nil", err)
	}
	if err := s.Kill(handle); err != nil {
		t.Errorf("second Kill = %v, want nil", err)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Handle(5); ok {
		t.Error("empty registry should not track issue 5")
	}

	r.Track(5, Handle(100))
	r.Track(7, Handle(200))

	h, ok := r.Handle(5)
	if !ok || h != 100 {
		t.Errorf("Handle(5) = %v, %v; want 100, true", h, ok)
	}

	// Re-tracking replaces the handle.
	r.Track(5, Handle(150))
	h, _ = r.Handle(5)
	if h != 150 {
		t.Errorf("Handle(5) after re-track = %v, want 150", h)
	}

	snapshot := r.Snapshot()
	if len(snapshot) != 2 || snapshot[7] != 200 {
		t.Errorf("unexpected snapshot %v", snapshot)
	}
	// Snapshot is a copy.
	delete(snapshot, 7)
	if _, ok := r.Handle(7); !ok {
		t.Error("mutating a snapshot must not affect the registry")
	}

	r.Untrack(5)
	if _, ok := r.Handle(5); ok {
		t.Error("issue 5 should be gone after Untrack")
	}
	// Untracking an unknown issue is a no-op.
	r.Untrack(99)
}
