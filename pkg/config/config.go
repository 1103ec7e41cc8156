// Package config provides configuration loading and validation for the
// orchestrator. Configuration lives in a YAML file under the project's
// .autodev directory; state (leases, rendered prompts, logs) lives next to it
// but never inside the config file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"autodev/pkg/labels"
)

// Project config constants.
const (
	StateDirName       = ".autodev"
	ConfigFilename     = "config.yaml"
	DefaultDBFilename  = "autodev.db"
	DefaultTaskDirName = "tasks"

	DefaultPollIntervalSec = 30
	DefaultMaxBuilders     = 2
	DefaultMaxReviewers    = 2
	DefaultWorkerCommand   = "claude"
)

// RepoConfig identifies the GitHub repository whose backlog is orchestrated.
type RepoConfig struct {
	Owner string `yaml:"owner"`
	Name  string `yaml:"name"`
}

// Path returns the owner/name form used by the gh CLI.
func (r RepoConfig) Path() string {
	return fmt.Sprintf("%s/%s", r.Owner, r.Name)
}

// WorkerConfig describes how worker processes are launched.
type WorkerConfig struct {
	// Command is the worker executable and its fixed arguments. The rendered
	// prompt file path is appended as the final argument.
	Command []string `yaml:"command"`
	// Terminal optionally wraps Command so the worker runs in a visible
	// terminal window a human can watch and type into. Empty means the worker
	// is launched directly (headless).
	Terminal []string `yaml:"terminal"`
}

// Config is the orchestrator configuration.
type Config struct {
	Repo            RepoConfig   `yaml:"repo"`
	PollIntervalSec int          `yaml:"poll_interval_sec"`
	MaxBuilders     int          `yaml:"max_builders"`
	MaxReviewers    int          `yaml:"max_reviewers"`
	DBPath          string       `yaml:"db_path"`
	TaskDir         string       `yaml:"task_dir"`
	MetricsAddr     string       `yaml:"metrics_addr"` // empty disables the /metrics listener
	Labels          labels.Set   `yaml:"labels"`
	Worker          WorkerConfig `yaml:"worker"`

	projectDir string
}

// Default returns a config with every default applied, rooted at projectDir.
func Default(projectDir string) *Config {
	stateDir := filepath.Join(projectDir, StateDirName)
	return &Config{
		Repo:            RepoConfig{Owner: "ZBugge", Name: "meal-matcher"},
		PollIntervalSec: DefaultPollIntervalSec,
		MaxBuilders:     DefaultMaxBuilders,
		MaxReviewers:    DefaultMaxReviewers,
		DBPath:          filepath.Join(stateDir, DefaultDBFilename),
		TaskDir:         filepath.Join(stateDir, DefaultTaskDirName),
		Labels:          labels.DefaultSet(),
		Worker: WorkerConfig{
			Command: []string{DefaultWorkerCommand},
		},
		projectDir: projectDir,
	}
}

// Load reads the config file from projectDir/.autodev/config.yaml, applying
// defaults for any field the file omits. A missing file yields the defaults
// unchanged so a fresh checkout works without ceremony.
func Load(projectDir string) (*Config, error) {
	cfg := Default(projectDir)

	path := filepath.Join(projectDir, StateDirName, ConfigFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	// Re-anchor relative paths at the project dir.
	if !filepath.IsAbs(cfg.DBPath) {
		cfg.DBPath = filepath.Join(projectDir, cfg.DBPath)
	}
	if !filepath.IsAbs(cfg.TaskDir) {
		cfg.TaskDir = filepath.Join(projectDir, cfg.TaskDir)
	}
	cfg.projectDir = projectDir

	return cfg, cfg.Validate()
}

// ProjectDir returns the directory the config was loaded for.
func (c *Config) ProjectDir() string {
	return c.projectDir
}

// Validate checks the config for values the scheduler cannot run with.
func (c *Config) Validate() error {
	if c.Repo.Owner == "" || c.Repo.Name == "" {
		return fmt.Errorf("repo.owner and repo.name must be set")
	}
	if c.PollIntervalSec <= 0 {
		return fmt.Errorf("poll_interval_sec must be positive, got %d", c.PollIntervalSec)
	}
	if c.MaxBuilders < 0 {
		return fmt.Errorf("max_builders must be >= 0, got %d", c.MaxBuilders)
	}
	if c.MaxReviewers < 0 {
		return fmt.Errorf("max_reviewers must be >= 0, got %d", c.MaxReviewers)
	}
	if len(c.Worker.Command) == 0 {
		return fmt.Errorf("worker.command must not be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("db_path must be set")
	}
	return nil
}

// EnsureStateDirs creates the directories the orchestrator writes into.
func (c *Config) EnsureStateDirs() error {
	for _, dir := range []string{filepath.Dir(c.DBPath), c.TaskDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create state dir %s: %w", dir, err)
		}
	}
	return nil
}
