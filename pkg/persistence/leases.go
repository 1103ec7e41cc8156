package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"autodev/pkg/labels"
)

// Lease asserts an exclusive in-process claim on an issue for one phase.
// Holding a lease does not mean external work is progressing — only that no
// other processor in this instance may claim the same issue concurrently.
//
//nolint:govet // struct alignment optimization not critical for this type
type Lease struct {
	IssueNumber int          `json:"issue_number"`
	Phase       labels.Phase `json:"phase"`
	WorkerPID   *int         `json:"worker_pid,omitempty"`
	Branch      *string      `json:"branch,omitempty"`
	StartedAt   time.Time    `json:"started_at"`
}

// Acquire inserts a lease for the issue if none exists, returning true on
// success. It returns false when any lease already exists for the issue,
// regardless of phase. This is the sole concurrency-safety primitive: callers
// must treat false as "skip this issue this tick."
func (s *Store) Acquire(issueNumber int, phase labels.Phase) (bool, error) {
	if !phase.Valid() {
		return false, fmt.Errorf("invalid phase: %s", phase)
	}

	result, err := s.db.Exec(
		`INSERT OR IGNORE INTO leases (issue_number, phase) VALUES (?, ?)`,
		issueNumber, string(phase),
	)
	if err != nil {
		return false, fmt.Errorf("failed to acquire lease for issue %d: %w", issueNumber, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read rows affected: %w", err)
	}

	acquired := rows > 0
	if acquired {
		s.logger.Debug("Lease acquired: issue %d phase %s", issueNumber, phase)
	}
	return acquired, nil
}

// AttachWorker records the worker process id on an existing lease. Best
// effort: a lease without a pid just means the spawn had nothing observable
// to record, which is not an error.
func (s *Store) AttachWorker(issueNumber, pid int) error {
	_, err := s.db.Exec(`UPDATE leases SET worker_pid = ? WHERE issue_number = ?`, pid, issueNumber)
	if err != nil {
		return fmt.Errorf("failed to attach worker pid to issue %d: %w", issueNumber, err)
	}
	return nil
}

// AttachBranch records the work branch on an existing lease.
func (s *Store) AttachBranch(issueNumber int, branch string) error {
	_, err := s.db.Exec(`UPDATE leases SET branch = ? WHERE issue_number = ?`, branch, issueNumber)
	if err != nil {
		return fmt.Errorf("failed to attach branch to issue %d: %w", issueNumber, err)
	}
	return nil
}

// Release deletes the lease for the issue. Idempotent.
func (s *Store) Release(issueNumber int) error {
	_, err := s.db.Exec(`DELETE FROM leases WHERE issue_number = ?`, issueNumber)
	if err != nil {
		return fmt.Errorf("failed to release lease for issue %d: %w", issueNumber, err)
	}
	return nil
}

// Get returns the lease for the issue, or nil when none exists.
func (s *Store) Get(issueNumber int) (*Lease, error) {
	row := s.db.QueryRow(
		`SELECT issue_number, phase, worker_pid, branch, started_at FROM leases WHERE issue_number = ?`,
		issueNumber,
	)
	lease, err := scanLease(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get lease for issue %d: %w", issueNumber, err)
	}
	return lease, nil
}

// ListByPhase returns all leases held for one phase, ascending by issue number.
func (s *Store) ListByPhase(phase labels.Phase) ([]Lease, error) {
	return s.list(`SELECT issue_number, phase, worker_pid, branch, started_at
		FROM leases WHERE phase = ? ORDER BY issue_number ASC`, string(phase))
}

// ListAll returns every lease, ascending by issue number.
func (s *Store) ListAll() ([]Lease, error) {
	return s.list(`SELECT issue_number, phase, worker_pid, branch, started_at
		FROM leases ORDER BY issue_number ASC`)
}

// Clear deletes all leases. Used by the operator reset.
func (s *Store) Clear() error {
	_, err := s.db.Exec(`DELETE FROM leases`)
	if err != nil {
		return fmt.Errorf("failed to clear leases: %w", err)
	}
	return nil
}

func (s *Store) list(query string, args ...any) ([]Lease, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leases: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var leases []Lease
	for rows.Next() {
		lease, err := scanLease(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lease: %w", err)
		}
		leases = append(leases, *lease)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lease row iteration error: %w", err)
	}
	return leases, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanLease(row scanner) (*Lease, error) {
	var (
		lease     Lease
		phase     string
		workerPID sql.NullInt64
		branch    sql.NullString
		startedAt string
	)
	if err := row.Scan(&lease.IssueNumber, &phase, &workerPID, &branch, &startedAt); err != nil {
		return nil, err
	}
	lease.Phase = labels.Phase(phase)
	if workerPID.Valid {
		pid := int(workerPID.Int64)
		lease.WorkerPID = &pid
	}
	if branch.Valid {
		b := branch.String
		lease.Branch = &b
	}
	if ts, err := time.Parse("2006-01-02T15:04:05.000Z", startedAt); err == nil {
		lease.StartedAt = ts
	}
	return &lease, nil
}
