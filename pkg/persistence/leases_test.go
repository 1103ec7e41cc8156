package persistence

import (
	"os"
	"path/filepath"
	"testing"

	"autodev/pkg/labels"
)

// Helper function to create a new store for each test.
func createTestStore(t *testing.T) *Store {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "persistence_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}

	store, err := Open(filepath.Join(tempDir, "test.db"))
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
		os.RemoveAll(tempDir)
	})

	return store
}

func TestAcquireIsExclusive(t *testing.T) {
	store := createTestStore(t)

	acquired, err := store.Acquire(42, labels.PhaseBuilding)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !acquired {
		t.Fatal("Expected first acquire to succeed")
	}

	// Second acquire must fail, same phase or not.
	acquired, err = store.Acquire(42, labels.PhaseBuilding)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if acquired {
		t.Error("Expected repeat acquire to return false")
	}

	acquired, err = store.Acquire(42, labels.PhaseReviewing)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if acquired {
		t.Error("Expected acquire under a different phase to return false")
	}
}

func TestReleaseMakesIssueAcquirableAgain(t *testing.T) {
	store := createTestStore(t)

	if _, err := store.Acquire(7, labels.PhaseGrooming); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := store.Release(7); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	acquired, err := store.Acquire(7, labels.PhaseGrooming)
	if err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if !acquired {
		t.Error("Expected acquire after release to succeed")
	}

	// Releasing an absent lease is a no-op.
	if err := store.Release(999); err != nil {
		t.Errorf("Release of absent lease errored: %v", err)
	}
}

func TestAcquireRejectsInvalidPhase(t *testing.T) {
	store := createTestStore(t)

	if _, err := store.Acquire(1, labels.Phase("shipping")); err == nil {
		t.Error("Expected error for unknown phase")
	}
}

func TestListByPhase(t *testing.T) {
	store := createTestStore(t)

	for _, n := range []int{9, 2, 5} {
		if _, err := store.Acquire(n, labels.PhaseBuilding); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
	}
	if _, err := store.Acquire(3, labels.PhaseGrooming); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	building, err := store.ListByPhase(labels.PhaseBuilding)
	if err != nil {
		t.Fatalf("ListByPhase failed: %v", err)
	}
	if len(building) != 3 {
		t.Fatalf("Expected 3 building leases, got %d", len(building))
	}
	// Ascending issue-number order.
	for i, want := range []int{2, 5, 9} {
		if building[i].IssueNumber != want {
			t.Errorf("Expected issue %d at position %d, got %d", want, i, building[i].IssueNumber)
		}
	}

	grooming, err := store.ListByPhase(labels.PhaseGrooming)
	if err != nil {
		t.Fatalf("ListByPhase failed: %v", err)
	}
	if len(grooming) != 1 || grooming[0].IssueNumber != 3 {
		t.Errorf("Expected only issue 3 in grooming, got %+v", grooming)
	}
}

func TestAttachWorkerAndBranch(t *testing.T) {
	store := createTestStore(t)

	if _, err := store.Acquire(11, labels.PhaseBuilding); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}

	if err := store.AttachWorker(11, 4321); err != nil {
		t.Fatalf("AttachWorker failed: %v", err)
	}
	if err := store.AttachBranch(11, "agent/issue-11"); err != nil {
		t.Fatalf("AttachBranch failed: %v", err)
	}

	lease, err := store.Get(11)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if lease == nil {
		t.Fatal("Expected lease for issue 11")
	}
	if lease.WorkerPID == nil || *lease.WorkerPID != 4321 {
		t.Errorf("Expected worker pid 4321, got %v", lease.WorkerPID)
	}
	if lease.Branch == nil || *lease.Branch != "agent/issue-11" {
		t.Errorf("Expected branch agent/issue-11, got %v", lease.Branch)
	}
}

func TestGetReturnsNilForAbsentLease(t *testing.T) {
	store := createTestStore(t)

	lease, err := store.Get(404)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if lease != nil {
		t.Errorf("Expected nil lease, got %+v", lease)
	}
}

func TestClear(t *testing.T) {
	store := createTestStore(t)

	for _, n := range []int{1, 2, 3} {
		if _, err := store.Acquire(n, labels.PhaseReviewing); err != nil {
			t.Fatalf("Acquire failed: %v", err)
		}
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	all, err := store.ListAll()
	if err != nil {
		t.Fatalf("ListAll failed: %v", err)
	}
	if len(all) != 0 {
		t.Errorf("Expected empty store after Clear, got %d leases", len(all))
	}
}

func TestLeasesSurviveReopen(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "persistence_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tempDir)

	dbPath := filepath.Join(tempDir, "test.db")

	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	if _, err := store.Acquire(8, labels.PhaseBuilding); err != nil {
		t.Fatalf("Acquire failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer reopened.Close()

	lease, err := reopened.Get(8)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if lease == nil || lease.Phase != labels.PhaseBuilding {
		t.Errorf("Expected building lease for issue 8 after reopen, got %+v", lease)
	}
}
