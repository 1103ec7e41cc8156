package scheduler

import (
	"context"
	"fmt"

	"autodev/pkg/github"
	"autodev/pkg/labels"
	"autodev/pkg/spawner"
	"autodev/pkg/templates"
)

// runBuilding claims up to the free builder slots worth of plan-approved
// issues, ascending by number. Candidate-level failures release that
// candidate and move on; they never abort the rest of the batch.
func (c *Coordinator) runBuilding(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	held, err := c.store.ListByPhase(labels.PhaseBuilding)
	if err != nil {
		return fmt.Errorf("failed to list building leases: %w", err)
	}
	slots := c.opts.MaxBuilders - len(held)
	if slots <= 0 {
		return nil
	}

	issues, err := c.tracker.ListIssuesByLabel(ctx, c.opts.Labels.Ready)
	if err != nil {
		return fmt.Errorf("failed to list building candidates: %w", err)
	}

	leased := make(map[int]bool, len(held))
	for i := range held {
		leased[held[i].IssueNumber] = true
	}

	claimed := 0
	for i := range issues {
		if claimed >= slots {
			break
		}
		// Shutdown raised mid-batch: leave later candidates unclaimed for the
		// next process.
		if ctx.Err() != nil {
			return nil
		}

		issue := &issues[i]
		if leased[issue.Number] {
			continue
		}

		acquired, err := c.store.Acquire(issue.Number, labels.PhaseBuilding)
		if err != nil {
			return fmt.Errorf("failed to acquire building lease: %w", err)
		}
		if !acquired {
			continue // claim race: normal skip
		}
		claimed++

		if err := c.startBuild(ctx, issue); err != nil {
			c.logger.Error("Building issue %d failed: %v", issue.Number, err)
		}
	}

	return nil
}

// startBuild runs the post-claim sequence for one building candidate. The
// lease is already held; every early return must release or fail it.
func (c *Coordinator) startBuild(ctx context.Context, issue *github.Issue) error {
	plan, err := c.tracker.FindPlanComment(ctx, issue.Number)
	if err != nil {
		// Transient read failure: release and retry next tick.
		c.releaseQuietly(issue.Number)
		return fmt.Errorf("failed to look up plan for issue %d: %w", issue.Number, err)
	}
	if plan == "" {
		// Building without an approved plan is not a valid transition. The
		// ready label stays on, so the issue is retried once a plan appears.
		c.logger.Warn("Issue %d is marked ready but has no plan document; skipping", issue.Number)
		c.releaseQuietly(issue.Number)
		return nil
	}

	branch, err := c.tracker.EnsureBranch(ctx, issue.Number)
	if err != nil {
		c.releaseQuietly(issue.Number)
		return fmt.Errorf("failed to ensure branch for issue %d: %w", issue.Number, err)
	}
	if err := c.store.AttachBranch(issue.Number, branch); err != nil {
		c.logger.Warn("Failed to record branch for issue %d: %v", issue.Number, err)
	}

	if err := c.transition(ctx, issue.Number, labels.PhaseBuilding); err != nil {
		c.failItem(ctx, issue.Number, fmt.Sprintf("label transition failed: %v", err))
		return fmt.Errorf("building transition failed for issue %d: %w", issue.Number, err)
	}

	c.comment(ctx, issue.Number,
		fmt.Sprintf("Starting automated implementation on branch `%s`.", branch))

	prompt, err := c.renderer.Render(templates.BuildTemplate, &templates.TaskData{
		IssueNumber: issue.Number,
		IssueTitle:  issue.Title,
		RepoPath:    c.opts.RepoPath,
		Plan:        plan,
		Branch:      branch,
		Labels:      c.opts.Labels,
	})
	if err != nil {
		c.failItem(ctx, issue.Number, fmt.Sprintf("prompt rendering failed: %v", err))
		return fmt.Errorf("build prompt failed for issue %d: %w", issue.Number, err)
	}

	return c.spawnWorker(ctx, &spawner.Task{
		IssueNumber: issue.Number,
		Phase:       labels.PhaseBuilding,
		Prompt:      prompt,
		Branch:      branch,
	})
}

// releaseQuietly drops a lease on a precondition failure, logging rather than
// propagating store errors.
func (c *Coordinator) releaseQuietly(issueNumber int) {
	if err := c.store.Release(issueNumber); err != nil {
		c.logger.Error("Failed to release lease for issue %d: %v", issueNumber, err)
	}
}
