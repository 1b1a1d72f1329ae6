package testsupport

import (
	"path/filepath"
	"testing"

	"notesd/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataRepo = filepath.Join(base, "archive")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.Host = "127.0.0.1"
	cfgVal.Server.Port = 0
	cfgVal.Git.AutoPush = false
	cfgVal.Sync.PollIntervalSeconds = 0

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRepository points the config at a clone URL and enables pushing.
func WithRepository(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Git.RepositoryURL = url
		b.cfg.Git.AutoPush = true
	}
}

// WithBranch overrides the git branch on the test config.
func WithBranch(branch string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Git.Branch = branch
	}
}

// WithDispatch enables workflow dispatch against the given repo and workflow.
func WithDispatch(repo, workflow string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.GitHub.WorkflowDispatch.Enabled = true
		b.cfg.GitHub.WorkflowDispatch.Repo = repo
		b.cfg.GitHub.WorkflowDispatch.Workflow = workflow
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataRepo)
}
