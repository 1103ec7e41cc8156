// Package templates renders the instruction documents handed to worker
// processes. A fresh document is rendered for every spawn attempt.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"autodev/pkg/labels"
)

//go:embed *.tpl.md
var templateFS embed.FS

// TaskData holds the data for template rendering. Labels must carry the active
// label set: the worker advances the pipeline by editing exactly these labels,
// so rendering any other names breaks the out-of-band handoff.
type TaskData struct {
	IssueNumber int        `json:"issue_number"`
	IssueTitle  string     `json:"issue_title"`
	IssueBody   string     `json:"issue_body,omitempty"`
	RepoPath    string     `json:"repo_path"`
	Plan        string     `json:"plan,omitempty"`
	Branch      string     `json:"branch,omitempty"`
	PRNumber    int        `json:"pr_number,omitempty"`
	PlanMarker  string     `json:"plan_marker,omitempty"`
	Labels      labels.Set `json:"labels"`
}

// TaskTemplate names a worker prompt template.
type TaskTemplate string

const (
	// GroomTemplate instructs a worker to clarify an issue and post a plan.
	GroomTemplate TaskTemplate = "groom.tpl.md"
	// BuildTemplate instructs a worker to implement an approved plan.
	BuildTemplate TaskTemplate = "build.tpl.md"
	// ReviewTemplate instructs a worker to review a pull request.
	ReviewTemplate TaskTemplate = "review.tpl.md"
)

// Renderer renders task templates.
type Renderer struct {
	templates *template.Template
}

// NewRenderer parses all embedded templates.
func NewRenderer() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "*.tpl.md")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &Renderer{templates: tmpl}, nil
}

// Render executes the named template with the given data.
func (r *Renderer) Render(name TaskTemplate, data *TaskData) (string, error) {
	var buf bytes.Buffer
	if err := r.templates.ExecuteTemplate(&buf, string(name), data); err != nil {
		return "", fmt.Errorf("failed to render template %s: %w", name, err)
	}
	return buf.String(), nil
}
