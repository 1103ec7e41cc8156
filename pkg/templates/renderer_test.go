package templates

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autodev/pkg/labels"
)

func TestRenderGroom(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(GroomTemplate, &TaskData{
		IssueNumber: 42,
		IssueTitle:  "Dedupe pantry entries",
		IssueBody:   "Entries added twice show up twice in the matcher.",
		RepoPath:    "octocat/hello-world",
		PlanMarker:  "## Implementation Plan",
		Labels:      labels.DefaultSet(),
	})
	require.NoError(t, err)

	assert.Contains(t, out, "issue #42")
	assert.Contains(t, out, "Dedupe pantry entries")
	assert.Contains(t, out, "Entries added twice")
	assert.Contains(t, out, "octocat/hello-world")
	assert.Contains(t, out, "## Implementation Plan")
	// The worker advances the pipeline itself via label edits.
	assert.Contains(t, out, "--remove-label agent:grooming --add-label agent:ready")
}

func TestRenderBuild(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(BuildTemplate, &TaskData{
		IssueNumber: 7,
		IssueTitle:  "Add portion scaling",
		RepoPath:    "octocat/hello-world",
		Plan:        "## Implementation Plan\n\nScale quantities in the recipe struct.",
		Branch:      "agent/issue-7",
		Labels:      labels.DefaultSet(),
	})
	require.NoError(t, err)

	assert.Contains(t, out, "agent/issue-7")
	assert.Contains(t, out, "Scale quantities in the recipe struct.")
	assert.Contains(t, out, "--remove-label agent:building --add-label agent:pr-ready")
}

func TestRenderReview(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	out, err := r.Render(ReviewTemplate, &TaskData{
		IssueNumber: 7,
		IssueTitle:  "Add portion scaling",
		RepoPath:    "octocat/hello-world",
		Plan:        "## Implementation Plan\n\nScale quantities.",
		Branch:      "agent/issue-7",
		PRNumber:    88,
		Labels:      labels.DefaultSet(),
	})
	require.NoError(t, err)

	assert.Contains(t, out, "pull request #88")
	assert.Contains(t, out, "--remove-label agent:reviewing")
	assert.NotContains(t, out, "--add-label agent:")
}

// The label-edit commands must follow the active label set, not the defaults:
// a worker that flips labels the scheduler never watches strands the issue.
func TestRenderHonorsConfiguredLabels(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	set := labels.Set{
		Groom:     "bot/groom",
		Grooming:  "bot/grooming",
		Ready:     "bot/ready",
		Building:  "bot/building",
		PRReady:   "bot/pr-ready",
		Reviewing: "bot/reviewing",
		Failed:    "bot/failed",
	}

	out, err := r.Render(GroomTemplate, &TaskData{IssueNumber: 1, RepoPath: "o/r", Labels: set})
	require.NoError(t, err)
	assert.Contains(t, out, "--remove-label bot/grooming --add-label bot/ready")
	assert.NotContains(t, out, "agent:")

	out, err = r.Render(BuildTemplate, &TaskData{IssueNumber: 1, RepoPath: "o/r", Branch: "b", Labels: set})
	require.NoError(t, err)
	assert.Contains(t, out, "--remove-label bot/building --add-label bot/pr-ready")
	assert.NotContains(t, out, "agent:building")

	out, err = r.Render(ReviewTemplate, &TaskData{IssueNumber: 1, RepoPath: "o/r", Branch: "b", PRNumber: 2, Labels: set})
	require.NoError(t, err)
	assert.Contains(t, out, "--remove-label bot/reviewing")
	assert.NotContains(t, out, "agent:reviewing")
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, err = r.Render(TaskTemplate("deploy.tpl.md"), &TaskData{})
	assert.Error(t, err)
}
