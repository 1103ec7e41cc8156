// Package github provides the tracked-issue operations the orchestrator
// consumes, implemented over the gh CLI. All operations run on the host since
// they are pure API calls. Issue labels owned by this repository are the
// authoritative pipeline state; this package never caches them.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"autodev/pkg/logx"
)

// PlanMarker is the comment header that identifies an implementation plan
// posted during grooming. Building and reviewing refuse to start without one.
const PlanMarker = "## Implementation Plan"

// Issue is an open, non-PR tracked item.
type Issue struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	Labels []string `json:"-"`
}

// Tracker defines the issue-tracking operations the scheduler consumes.
// This interface enables testing with fake implementations.
type Tracker interface {
	ListIssuesByLabel(ctx context.Context, label string) ([]Issue, error)
	GetLabels(ctx context.Context, issueNumber int) ([]string, error)
	AddLabel(ctx context.Context, issueNumber int, label string) error
	RemoveLabel(ctx context.Context, issueNumber int, label string) error
	Comment(ctx context.Context, issueNumber int, body string) error
	FindPlanComment(ctx context.Context, issueNumber int) (string, error)
	EnsureBranch(ctx context.Context, issueNumber int) (string, error)
	FindPullRequestForBranch(ctx context.Context, branch string) (int, error)
}

// Client implements Tracker via the gh CLI.
//
//nolint:govet // Logical grouping preferred over memory optimization
type Client struct {
	owner   string
	repo    string
	logger  *logx.Logger
	timeout time.Duration
}

var _ Tracker = (*Client)(nil)

// NewClient creates a new GitHub client for the specified repository.
func NewClient(owner, repo string) *Client {
	return &Client{
		owner:   owner,
		repo:    repo,
		logger:  logx.NewLogger("github"),
		timeout: 30 * time.Second,
	}
}

// RepoPath returns the owner/repo path.
func (c *Client) RepoPath() string {
	return fmt.Sprintf("%s/%s", c.owner, c.repo)
}

// run executes a gh command and returns the output.
func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	return c.runWithStdin(ctx, "", args...)
}

// runWithStdin executes a gh command, feeding stdin when non-empty.
func (c *Client) runWithStdin(ctx context.Context, stdin string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Debug("Executing: gh %s", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, "gh", args...)
	if stdin != "" {
		cmd.Stdin = strings.NewReader(stdin)
	}
	output, err := cmd.CombinedOutput()

	if err != nil {
		c.logger.Debug("Command failed: %v, output: %s", err, string(output))
		return output, fmt.Errorf("gh command failed: %w\nOutput: %s", err, string(output))
	}

	return output, nil
}

// runJSON executes a gh command and unmarshals the JSON response.
func (c *Client) runJSON(ctx context.Context, result any, args ...string) error {
	output, err := c.run(ctx, args...)
	if err != nil {
		return err
	}

	if len(output) == 0 {
		return nil // Empty response is valid for some operations
	}

	if err := json.Unmarshal(output, result); err != nil {
		return fmt.Errorf("failed to parse JSON response: %w\nOutput: %s", err, string(output))
	}

	return nil
}

// CheckAuth verifies that gh CLI is authenticated.
func CheckAuth(ctx context.Context) error {
	cmd := exec.CommandContext(ctx, "gh", "auth", "status")
	output, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("gh auth check failed: %w\nOutput: %s", err, string(output))
	}
	return nil
}
