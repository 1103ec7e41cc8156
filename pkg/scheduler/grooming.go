package scheduler

import (
	"context"
	"fmt"

	"autodev/pkg/github"
	"autodev/pkg/labels"
	"autodev/pkg/spawner"
	"autodev/pkg/templates"
)

// runGrooming claims at most one issue for clarification work. Grooming is a
// singleton: while any grooming lease is held, no further candidate is even
// fetched.
func (c *Coordinator) runGrooming(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	held, err := c.store.ListByPhase(labels.PhaseGrooming)
	if err != nil {
		return fmt.Errorf("failed to list grooming leases: %w", err)
	}
	if len(held) > 0 {
		return nil
	}

	issues, err := c.tracker.ListIssuesByLabel(ctx, c.opts.Labels.Groom)
	if err != nil {
		return fmt.Errorf("failed to list grooming candidates: %w", err)
	}
	if len(issues) == 0 {
		return nil
	}

	// Oldest issue first; the list is already ascending by number.
	issue := issues[0]

	acquired, err := c.store.Acquire(issue.Number, labels.PhaseGrooming)
	if err != nil {
		return fmt.Errorf("failed to acquire grooming lease: %w", err)
	}
	if !acquired {
		// Lost a claim race. Defensive — this loop is single-threaded — but
		// it keeps the protocol honest if concurrency ever changes.
		return nil
	}

	if err := c.transition(ctx, issue.Number, labels.PhaseGrooming); err != nil {
		c.failItem(ctx, issue.Number, fmt.Sprintf("label transition failed: %v", err))
		return fmt.Errorf("grooming transition failed for issue %d: %w", issue.Number, err)
	}

	c.comment(ctx, issue.Number,
		"Starting automated grooming. A worker will read this issue and post an implementation plan.")

	prompt, err := c.renderer.Render(templates.GroomTemplate, &templates.TaskData{
		IssueNumber: issue.Number,
		IssueTitle:  issue.Title,
		IssueBody:   issue.Body,
		RepoPath:    c.opts.RepoPath,
		PlanMarker:  github.PlanMarker,
		Labels:      c.opts.Labels,
	})
	if err != nil {
		c.failItem(ctx, issue.Number, fmt.Sprintf("prompt rendering failed: %v", err))
		return fmt.Errorf("grooming prompt failed for issue %d: %w", issue.Number, err)
	}

	return c.spawnWorker(ctx, &spawner.Task{
		IssueNumber: issue.Number,
		Phase:       labels.PhaseGrooming,
		Prompt:      prompt,
	})
}
