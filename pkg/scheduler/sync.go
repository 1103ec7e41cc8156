package scheduler

import (
	"context"
	"fmt"
)

// syncLeases reconciles the lease store against the authoritative label
// state. A lease whose in-flight label is gone — worker finished out of band,
// human re-labeled, anything — is released so the issue becomes pickable
// again. This must run before the phase processors on every tick, because a
// stale lease otherwise blocks legitimate re-pickup indefinitely.
func (c *Coordinator) syncLeases(ctx context.Context) error {
	leases, err := c.store.ListAll()
	if err != nil {
		return fmt.Errorf("failed to list leases: %w", err)
	}

	for i := range leases {
		lease := &leases[i]

		issueLabels, err := c.tracker.GetLabels(ctx, lease.IssueNumber)
		if err != nil {
			// Transient read failure: keep the lease and try again next tick.
			c.logger.Warn("Lease sync: failed to read labels for issue %d: %v", lease.IssueNumber, err)
			continue
		}

		expected := c.opts.Labels.InFlight(lease.Phase)
		if contains(issueLabels, expected) {
			continue
		}

		c.logger.Info("Lease sync: issue %d no longer carries %q, releasing %s lease",
			lease.IssueNumber, expected, lease.Phase)
		if err := c.store.Release(lease.IssueNumber); err != nil {
			c.logger.Error("Lease sync: failed to release issue %d: %v", lease.IssueNumber, err)
			continue
		}
		c.registry.Untrack(lease.IssueNumber)
		c.recorder.RecordSyncRelease()
	}

	return nil
}
