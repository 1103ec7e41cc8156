package github

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultBranch is the fallback base branch when the repository metadata
// cannot be read.
const DefaultBranch = "main"

// BranchForIssue returns the deterministic work branch name for an issue.
// Reviewing resolves pull requests through this name, so it must be stable
// across orchestrator restarts.
func BranchForIssue(issueNumber int) string {
	return fmt.Sprintf("agent/issue-%d", issueNumber)
}

// EnsureBranch creates the issue's work branch from the repository's default
// branch if it does not exist yet, and returns its name either way.
func (c *Client) EnsureBranch(ctx context.Context, issueNumber int) (string, error) {
	branch := BranchForIssue(issueNumber)

	exists, err := c.branchExists(ctx, branch)
	if err != nil {
		return "", err
	}
	if exists {
		c.logger.Debug("Reusing existing branch %s", branch)
		return branch, nil
	}

	baseSHA, err := c.defaultBranchSHA(ctx)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("/repos/%s/git/refs", c.RepoPath())
	_, err = c.run(ctx,
		"api", "-X", "POST", endpoint,
		"-f", fmt.Sprintf("ref=refs/heads/%s", branch),
		"-f", fmt.Sprintf("sha=%s", baseSHA),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create branch %s: %w", branch, err)
	}

	c.logger.Info("Created branch %s for issue %d", branch, issueNumber)
	return branch, nil
}

// FindPullRequestForBranch returns the number of the open PR whose head is
// the branch, or 0 when none exists (e.g. the worker has not pushed yet).
func (c *Client) FindPullRequestForBranch(ctx context.Context, branch string) (int, error) {
	var prs []struct {
		Number int `json:"number"`
	}
	err := c.runJSON(ctx, &prs,
		"pr", "list",
		"--repo", c.RepoPath(),
		"--head", branch,
		"--state", "open",
		"--json", "number",
	)
	if err != nil {
		return 0, fmt.Errorf("failed to find PR for branch %s: %w", branch, err)
	}
	if len(prs) == 0 {
		return 0, nil
	}
	return prs[0].Number, nil
}

// branchExists checks whether a branch exists on the remote.
func (c *Client) branchExists(ctx context.Context, branch string) (bool, error) {
	endpoint := fmt.Sprintf("/repos/%s/branches/%s", c.RepoPath(), branch)
	_, err := c.run(ctx, "api", endpoint)
	if err != nil {
		if strings.Contains(err.Error(), "404") || strings.Contains(err.Error(), "Not Found") {
			return false, nil
		}
		return false, fmt.Errorf("failed to check branch %s: %w", branch, err)
	}
	return true, nil
}

// defaultBranchSHA returns the head commit of the repository's default branch.
func (c *Client) defaultBranchSHA(ctx context.Context) (string, error) {
	output, err := c.run(ctx, "api", fmt.Sprintf("/repos/%s", c.RepoPath()))
	if err != nil {
		return "", fmt.Errorf("failed to read repository metadata: %w", err)
	}

	var repo struct {
		DefaultBranch string `json:"default_branch"`
	}
	if err := json.Unmarshal(output, &repo); err != nil {
		return "", fmt.Errorf("failed to parse repository metadata: %w", err)
	}
	base := repo.DefaultBranch
	if base == "" {
		base = DefaultBranch
	}

	output, err = c.run(ctx, "api", fmt.Sprintf("/repos/%s/branches/%s", c.RepoPath(), base))
	if err != nil {
		return "", fmt.Errorf("failed to read base branch %s: %w", base, err)
	}

	var info struct {
		Commit struct {
			SHA string `json:"sha"`
		} `json:"commit"`
	}
	if err := json.Unmarshal(output, &info); err != nil {
		return "", fmt.Errorf("failed to parse base branch %s: %w", base, err)
	}
	return info.Commit.SHA, nil
}
