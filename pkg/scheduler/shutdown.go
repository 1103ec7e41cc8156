package scheduler

import (
	"context"
)

// Shutdown terminates every tracked worker and routes its issue through the
// failure path, leaving the store flushed for the next process. The caller
// passes a fresh context (the run context is already canceled by the time
// this is invoked) and closes the store afterwards.
func (c *Coordinator) Shutdown(ctx context.Context) {
	c.logger.Info("Shutdown: terminating tracked workers")

	leases, err := c.store.ListAll()
	if err != nil {
		c.logger.Error("Shutdown: failed to list leases: %v", err)
		return
	}

	for i := range leases {
		lease := &leases[i]

		// Only workers this process spawned are killed. The persisted pid from
		// a previous process may have been reused by an unrelated process since,
		// so it is never a signal target; the label state decides the fate of
		// such leases on the next run.
		handle, tracked := c.registry.Handle(lease.IssueNumber)
		if !tracked {
			continue
		}

		if err := c.spawner.Kill(handle); err != nil {
			c.logger.Warn("Shutdown: failed to kill worker for issue %d: %v", lease.IssueNumber, err)
		}
		c.failItem(ctx, lease.IssueNumber, "orchestrator shut down while the worker was running")
	}

	c.logger.Info("Shutdown complete")
}
