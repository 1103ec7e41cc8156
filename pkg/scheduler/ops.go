package scheduler

import (
	"context"
	"fmt"

	"autodev/pkg/persistence"
)

// LeaseStatus pairs a lease with the live label state of its issue, for the
// operator status dump.
type LeaseStatus struct {
	Lease  persistence.Lease
	Labels []string
	Err    error // label read failure, reported instead of hidden
}

// Status returns every active lease together with its issue's current labels.
func (c *Coordinator) Status(ctx context.Context) ([]LeaseStatus, error) {
	leases, err := c.store.ListAll()
	if err != nil {
		return nil, fmt.Errorf("failed to list leases: %w", err)
	}

	statuses := make([]LeaseStatus, 0, len(leases))
	for i := range leases {
		status := LeaseStatus{Lease: leases[i]}
		status.Labels, status.Err = c.tracker.GetLabels(ctx, leases[i].IssueNumber)
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// Reset clears all leases and returns every previously tracked issue to the
// initial pickup label. Workers still running for those issues are killed
// first so they cannot race the reset.
func (c *Coordinator) Reset(ctx context.Context) error {
	leases, err := c.store.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list leases: %w", err)
	}

	for i := range leases {
		lease := &leases[i]
		c.killIfTracked(lease)
		c.resetLabels(ctx, lease.IssueNumber)
	}

	if err := c.store.Clear(); err != nil {
		return fmt.Errorf("failed to clear lease store: %w", err)
	}

	c.logger.Info("Reset complete: %d issue(s) returned to %q", len(leases), c.opts.Labels.Groom)
	return nil
}

// Retry force-releases one issue's lease and resets its labels so the next
// tick can pick it up from the start of the pipeline.
func (c *Coordinator) Retry(ctx context.Context, issueNumber int) error {
	lease, err := c.store.Get(issueNumber)
	if err != nil {
		return fmt.Errorf("failed to look up lease: %w", err)
	}
	if lease != nil {
		c.killIfTracked(lease)
		if err := c.store.Release(issueNumber); err != nil {
			return fmt.Errorf("failed to release lease: %w", err)
		}
	}

	c.resetLabels(ctx, issueNumber)
	c.logger.Info("Issue %d released and returned to %q", issueNumber, c.opts.Labels.Groom)
	return nil
}

// KillWorker terminates the worker for one issue and routes the issue through
// the failure path.
func (c *Coordinator) KillWorker(ctx context.Context, issueNumber int) error {
	lease, err := c.store.Get(issueNumber)
	if err != nil {
		return fmt.Errorf("failed to look up lease: %w", err)
	}
	if lease == nil {
		return fmt.Errorf("no lease held for issue %d", issueNumber)
	}

	c.killIfTracked(lease)
	c.failItem(ctx, issueNumber, "worker terminated by operator")
	return nil
}

// killIfTracked kills the worker this process spawned for a lease, if any.
// The persisted pid is informational only (status output): after a restart it
// may belong to an unrelated process, so it is never a signal target.
func (c *Coordinator) killIfTracked(lease *persistence.Lease) {
	handle, tracked := c.registry.Handle(lease.IssueNumber)
	if !tracked {
		return
	}
	if err := c.spawner.Kill(handle); err != nil {
		c.logger.Warn("Failed to kill worker for issue %d: %v", lease.IssueNumber, err)
	}
	c.registry.Untrack(lease.IssueNumber)
}

// resetLabels strips every managed label and reapplies the pickup label.
// Best effort per call; external label state must be reset even when some
// individual removals fail.
func (c *Coordinator) resetLabels(ctx context.Context, issueNumber int) {
	set := c.opts.Labels
	for _, label := range set.Managed() {
		if label == set.Groom {
			continue
		}
		if err := c.tracker.RemoveLabel(ctx, issueNumber, label); err != nil {
			c.logger.Warn("Failed to remove label %q from issue %d: %v", label, issueNumber, err)
		}
	}
	if err := c.tracker.AddLabel(ctx, issueNumber, set.Groom); err != nil {
		c.logger.Warn("Failed to add label %q to issue %d: %v", set.Groom, issueNumber, err)
	}
}
