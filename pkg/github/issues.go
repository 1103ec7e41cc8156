package github

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// issueJSON matches the gh issue list/view --json shape.
type issueJSON struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Labels []struct {
		Name string `json:"name"`
	} `json:"labels"`
}

func (j *issueJSON) toIssue() Issue {
	issue := Issue{
		Number: j.Number,
		Title:  j.Title,
		Body:   j.Body,
	}
	for _, l := range j.Labels {
		issue.Labels = append(issue.Labels, l.Name)
	}
	return issue
}

// ListIssuesByLabel returns open issues carrying the label, ascending by
// number. gh issue list excludes pull requests, which is exactly the contract.
func (c *Client) ListIssuesByLabel(ctx context.Context, label string) ([]Issue, error) {
	var raw []issueJSON
	err := c.runJSON(ctx, &raw,
		"issue", "list",
		"--repo", c.RepoPath(),
		"--label", label,
		"--state", "open",
		"--limit", "100",
		"--json", "number,title,body,labels",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list issues with label %q: %w", label, err)
	}

	issues := make([]Issue, 0, len(raw))
	for i := range raw {
		issues = append(issues, raw[i].toIssue())
	}
	sortIssues(issues)
	return issues, nil
}

// GetLabels returns the current labels on an issue.
func (c *Client) GetLabels(ctx context.Context, issueNumber int) ([]string, error) {
	var raw issueJSON
	err := c.runJSON(ctx, &raw,
		"issue", "view", fmt.Sprintf("%d", issueNumber),
		"--repo", c.RepoPath(),
		"--json", "labels",
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get labels for issue %d: %w", issueNumber, err)
	}

	labels := make([]string, 0, len(raw.Labels))
	for _, l := range raw.Labels {
		labels = append(labels, l.Name)
	}
	return labels, nil
}

// AddLabel adds a label to an issue. Adding a label that is already present
// is a no-op on the GitHub side.
func (c *Client) AddLabel(ctx context.Context, issueNumber int, label string) error {
	_, err := c.run(ctx,
		"issue", "edit", fmt.Sprintf("%d", issueNumber),
		"--repo", c.RepoPath(),
		"--add-label", label,
	)
	if err != nil {
		return fmt.Errorf("failed to add label %q to issue %d: %w", label, issueNumber, err)
	}
	return nil
}

// RemoveLabel removes a label from an issue. Removing a label that is absent
// must not error; gh already treats that as success, and a "not found"
// complaint from the API is swallowed here for the same reason.
func (c *Client) RemoveLabel(ctx context.Context, issueNumber int, label string) error {
	output, err := c.run(ctx,
		"issue", "edit", fmt.Sprintf("%d", issueNumber),
		"--repo", c.RepoPath(),
		"--remove-label", label,
	)
	if err != nil {
		if strings.Contains(strings.ToLower(string(output)), "not found") {
			return nil
		}
		return fmt.Errorf("failed to remove label %q from issue %d: %w", label, issueNumber, err)
	}
	return nil
}

// Comment appends a comment to an issue. The body is passed via stdin so
// multi-line diagnostic text survives shell quoting.
func (c *Client) Comment(ctx context.Context, issueNumber int, body string) error {
	_, err := c.runWithStdin(ctx, body,
		"issue", "comment", fmt.Sprintf("%d", issueNumber),
		"--repo", c.RepoPath(),
		"--body-file", "-",
	)
	if err != nil {
		return fmt.Errorf("failed to comment on issue %d: %w", issueNumber, err)
	}
	return nil
}

// FindPlanComment scans the issue's comment history for the most recent
// comment carrying the plan marker. Empty string when no plan exists.
func (c *Client) FindPlanComment(ctx context.Context, issueNumber int) (string, error) {
	var raw struct {
		Comments []struct {
			Body string `json:"body"`
		} `json:"comments"`
	}
	err := c.runJSON(ctx, &raw,
		"issue", "view", fmt.Sprintf("%d", issueNumber),
		"--repo", c.RepoPath(),
		"--json", "comments",
	)
	if err != nil {
		return "", fmt.Errorf("failed to read comments for issue %d: %w", issueNumber, err)
	}

	// Latest plan wins: grooming may have been re-run.
	for i := len(raw.Comments) - 1; i >= 0; i-- {
		if strings.Contains(raw.Comments[i].Body, PlanMarker) {
			return raw.Comments[i].Body, nil
		}
	}
	return "", nil
}

// EnsureLabel creates a label in the repository if it does not exist yet.
// Called once at startup for every managed label so AddLabel never trips over
// a missing label definition.
func (c *Client) EnsureLabel(ctx context.Context, label, color, description string) error {
	_, err := c.run(ctx,
		"label", "create", label,
		"--repo", c.RepoPath(),
		"--color", color,
		"--description", description,
		"--force",
	)
	if err != nil {
		return fmt.Errorf("failed to ensure label %q: %w", label, err)
	}
	return nil
}

// sortIssues orders issues ascending by number: deterministic FIFO pickup.
func sortIssues(issues []Issue) {
	sort.Slice(issues, func(i, j int) bool {
		return issues[i].Number < issues[j].Number
	})
}
