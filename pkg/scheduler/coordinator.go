// Package scheduler implements the reconciliation and leasing core: the poll
// loop, the per-phase claim/spawn/release protocol, and the failure path.
//
// Issue labels are the source of truth for pipeline position. The local lease
// store only prevents duplicate concurrent pickup within this process; every
// tick first reconciles leases against the labels, then runs the phase
// processors in a fixed order.
package scheduler

import (
	"context"
	"time"

	"autodev/pkg/github"
	"autodev/pkg/labels"
	"autodev/pkg/logx"
	"autodev/pkg/metrics"
	"autodev/pkg/persistence"
	"autodev/pkg/spawner"
	"autodev/pkg/templates"
)

// Options carries the scheduler's tuning knobs.
type Options struct {
	Labels       labels.Set
	RepoPath     string
	PollInterval time.Duration
	MaxBuilders  int
	MaxReviewers int
}

// Coordinator drives the reconciliation loop. Single-threaded by design: one
// tick runs to completion before the next starts, so the lease store is only
// ever mutated by one logical actor at a time.
type Coordinator struct {
	store    *persistence.Store
	tracker  github.Tracker
	spawner  spawner.Spawner
	registry *spawner.Registry
	renderer *templates.Renderer
	recorder *metrics.Recorder
	opts     Options
	logger   *logx.Logger
}

// NewCoordinator wires the scheduler together. The registry is owned here and
// torn down by Shutdown; recorder may be nil to disable metrics.
func NewCoordinator(
	store *persistence.Store,
	tracker github.Tracker,
	sp spawner.Spawner,
	registry *spawner.Registry,
	renderer *templates.Renderer,
	recorder *metrics.Recorder,
	opts Options,
) *Coordinator {
	return &Coordinator{
		store:    store,
		tracker:  tracker,
		spawner:  sp,
		registry: registry,
		renderer: renderer,
		recorder: recorder,
		opts:     opts,
		logger:   logx.NewLogger("scheduler"),
	}
}

// Run executes reconciliation ticks until ctx is canceled. A tick that errors
// is logged and the loop continues on the next interval; only cancellation
// stops the process.
func (c *Coordinator) Run(ctx context.Context) {
	c.logger.Info("Reconciliation loop started (interval %s, builders %d, reviewers %d)",
		c.opts.PollInterval, c.opts.MaxBuilders, c.opts.MaxReviewers)

	for {
		c.Tick(ctx)

		select {
		case <-ctx.Done():
			c.logger.Info("Reconciliation loop stopped")
			return
		case <-time.After(c.opts.PollInterval):
		}
	}
}

// Tick runs one full reconciliation pass: lease sync, then each phase
// processor in pipeline order. Exported for the test suite and for one-shot
// operator runs.
func (c *Coordinator) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Tick panicked: %v", r)
			c.recorder.RecordTickError()
		}
	}()

	c.recorder.RecordTick()
	failed := false

	if err := c.syncLeases(ctx); err != nil {
		c.logger.Error("Lease sync failed: %v", err)
		failed = true
	}
	if err := c.runGrooming(ctx); err != nil {
		c.logger.Error("Grooming processor failed: %v", err)
		failed = true
	}
	if err := c.runBuilding(ctx); err != nil {
		c.logger.Error("Building processor failed: %v", err)
		failed = true
	}
	if err := c.runReviewing(ctx); err != nil {
		c.logger.Error("Reviewing processor failed: %v", err)
		failed = true
	}

	if failed {
		c.recorder.RecordTickError()
	}
	c.updateLeaseGauges()
}

func (c *Coordinator) updateLeaseGauges() {
	for _, phase := range labels.AllPhases() {
		leases, err := c.store.ListByPhase(phase)
		if err != nil {
			c.logger.Warn("Failed to count %s leases: %v", phase, err)
			continue
		}
		c.recorder.SetActiveLeases(phase.String(), len(leases))
	}
}

// contains reports whether needle is present in haystack.
func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
