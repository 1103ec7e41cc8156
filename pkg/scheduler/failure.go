package scheduler

import (
	"context"
	"fmt"
	"unicode/utf8"

	"autodev/pkg/labels"
	"autodev/pkg/spawner"
)

// maxDiagnosticLen caps the error excerpt posted to the issue.
const maxDiagnosticLen = 1000

// failItem routes an issue through the failure path: strip every pipeline
// label, add the failed marker, post a diagnostic comment naming the
// remediation step, and release the lease. A failed issue only becomes
// pickable again through deliberate operator action, never automatically.
//
// Every external call in here is best effort — the failure path must not be
// able to wedge the loop when the tracker is unreachable.
func (c *Coordinator) failItem(ctx context.Context, issueNumber int, reason string) {
	c.logger.Error("Issue %d failed: %s", issueNumber, reason)
	c.recorder.RecordFailure()

	set := c.opts.Labels
	for _, label := range set.Managed() {
		if label == set.Failed {
			continue
		}
		if err := c.tracker.RemoveLabel(ctx, issueNumber, label); err != nil {
			c.logger.Warn("Failed to remove label %q from issue %d: %v", label, issueNumber, err)
		}
	}
	if err := c.tracker.AddLabel(ctx, issueNumber, set.Failed); err != nil {
		c.logger.Warn("Failed to add failed label to issue %d: %v", issueNumber, err)
	}

	body := fmt.Sprintf(
		"Automated work on this issue failed:\n\n```\n%s\n```\n\nTo retry, reapply the `%s` label.",
		truncate(reason, maxDiagnosticLen), set.Groom,
	)
	if err := c.tracker.Comment(ctx, issueNumber, body); err != nil {
		c.logger.Warn("Failed to post failure comment on issue %d: %v", issueNumber, err)
	}

	c.registry.Untrack(issueNumber)
	if err := c.store.Release(issueNumber); err != nil {
		c.logger.Error("Failed to release lease for failed issue %d: %v", issueNumber, err)
	}
}

// transition flips an issue from a phase's pickup label to its in-flight
// label. The two label writes are not atomic; a race with a concurrent human
// edit is tolerated and resolved by the next lease sync pass.
func (c *Coordinator) transition(ctx context.Context, issueNumber int, phase labels.Phase) error {
	set := c.opts.Labels
	if err := c.tracker.RemoveLabel(ctx, issueNumber, set.Pickup(phase)); err != nil {
		return fmt.Errorf("failed to remove pickup label: %w", err)
	}
	if err := c.tracker.AddLabel(ctx, issueNumber, set.InFlight(phase)); err != nil {
		return fmt.Errorf("failed to add in-flight label: %w", err)
	}
	return nil
}

// comment posts a progress comment. Failures are logged, never propagated:
// label state is allowed to run transiently ahead of comment state.
func (c *Coordinator) comment(ctx context.Context, issueNumber int, body string) {
	if err := c.tracker.Comment(ctx, issueNumber, body); err != nil {
		c.logger.Warn("Failed to comment on issue %d: %v", issueNumber, err)
	}
}

// spawnWorker launches the worker for a claimed issue and records the handle.
// On spawn failure the issue is routed through the failure path (which also
// releases the lease) and the error is returned for tick-level logging.
func (c *Coordinator) spawnWorker(ctx context.Context, task *spawner.Task) error {
	handle, err := c.spawner.Spawn(ctx, task)
	if err != nil {
		c.recorder.RecordSpawnFailure(task.Phase.String())
		c.failItem(ctx, task.IssueNumber, fmt.Sprintf("worker spawn failed: %v", err))
		return fmt.Errorf("spawn failed for issue %d: %w", task.IssueNumber, err)
	}

	c.recorder.RecordSpawn(task.Phase.String())
	c.registry.Track(task.IssueNumber, handle)
	if err := c.store.AttachWorker(task.IssueNumber, int(handle)); err != nil {
		// Best-effort enrichment; the lease itself is already held.
		c.logger.Warn("Failed to record worker pid for issue %d: %v", task.IssueNumber, err)
	}
	return nil
}

// truncate cuts s to at most n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
