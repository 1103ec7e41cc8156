package scheduler

import (
	"context"
	"fmt"

	"autodev/pkg/github"
	"autodev/pkg/labels"
	"autodev/pkg/spawner"
	"autodev/pkg/templates"
)

// runReviewing claims up to the free reviewer slots worth of PR-ready issues.
// Same shape as building, additionally requiring a resolvable pull request
// for the issue's work branch.
func (c *Coordinator) runReviewing(ctx context.Context) error {
	if ctx.Err() != nil {
		return nil
	}

	held, err := c.store.ListByPhase(labels.PhaseReviewing)
	if err != nil {
		return fmt.Errorf("failed to list reviewing leases: %w", err)
	}
	slots := c.opts.MaxReviewers - len(held)
	if slots <= 0 {
		return nil
	}

	issues, err := c.tracker.ListIssuesByLabel(ctx, c.opts.Labels.PRReady)
	if err != nil {
		return fmt.Errorf("failed to list reviewing candidates: %w", err)
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
		if ctx.Err() != nil {
			return nil
		}

		issue := &issues[i]
		if leased[issue.Number] {
			continue
		}

		acquired, err := c.store.Acquire(issue.Number, labels.PhaseReviewing)
		if err != nil {
			return fmt.Errorf("failed to acquire reviewing lease: %w", err)
		}
		if !acquired {
			continue
		}
		claimed++

		if err := c.startReview(ctx, issue); err != nil {
			c.logger.Error("Reviewing issue %d failed: %v", issue.Number, err)
		}
	}

	return nil
}

// startReview runs the post-claim sequence for one reviewing candidate.
func (c *Coordinator) startReview(ctx context.Context, issue *github.Issue) error {
	branch := github.BranchForIssue(issue.Number)

	prNumber, err := c.tracker.FindPullRequestForBranch(ctx, branch)
	if err != nil {
		c.releaseQuietly(issue.Number)
		return fmt.Errorf("failed to look up PR for issue %d: %w", issue.Number, err)
	}
	if prNumber == 0 {
		// Not an error: the PR may simply not have propagated yet. Release
		// and let a later tick pick the issue up again.
		c.logger.Debug("Issue %d is marked pr-ready but no PR exists for %s yet; skipping",
			issue.Number, branch)
		c.releaseQuietly(issue.Number)
		return nil
	}

	plan, err := c.tracker.FindPlanComment(ctx, issue.Number)
	if err != nil {
		c.releaseQuietly(issue.Number)
		return fmt.Errorf("failed to look up plan for issue %d: %w", issue.Number, err)
	}
	if plan == "" {
		c.logger.Warn("Issue %d is marked pr-ready but has no plan document; skipping", issue.Number)
		c.releaseQuietly(issue.Number)
		return nil
	}

	if err := c.transition(ctx, issue.Number, labels.PhaseReviewing); err != nil {
		c.failItem(ctx, issue.Number, fmt.Sprintf("label transition failed: %v", err))
		return fmt.Errorf("reviewing transition failed for issue %d: %w", issue.Number, err)
	}

	c.comment(ctx, issue.Number,
		fmt.Sprintf("Starting automated review of PR #%d.", prNumber))

	prompt, err := c.renderer.Render(templates.ReviewTemplate, &templates.TaskData{
		IssueNumber: issue.Number,
		IssueTitle:  issue.Title,
		RepoPath:    c.opts.RepoPath,
		Plan:        plan,
		Branch:      branch,
		PRNumber:    prNumber,
		Labels:      c.opts.Labels,
	})
	if err != nil {
		c.failItem(ctx, issue.Number, fmt.Sprintf("prompt rendering failed: %v", err))
		return fmt.Errorf("review prompt failed for issue %d: %w", issue.Number, err)
	}

	return c.spawnWorker(ctx, &spawner.Task{
		IssueNumber: issue.Number,
		Phase:       labels.PhaseReviewing,
		Prompt:      prompt,
		Branch:      branch,
		PRNumber:    prNumber,
	})
}
