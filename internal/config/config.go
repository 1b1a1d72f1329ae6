package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Server contains the HTTP bind configuration for the webhook listener.
type Server struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// Paths contains directory configuration.
type Paths struct {
	DataRepo string `toml:"data_repo"`
	LogDir   string `toml:"log_dir"`
}

// Sync controls how the working copy is kept current with its remote.
type Sync struct {
	// Enabled defaults to git.auto_push when left unset.
	Enabled   *bool `toml:"enabled"`
	OnStartup bool  `toml:"on_startup"`
	// BeforeAcceptingWebhooks makes a failed startup sync fatal instead of
	// serving degraded. Every delivery pulls before writing regardless.
	BeforeAcceptingWebhooks bool    `toml:"before_accepting_webhooks"`
	PollIntervalSeconds     float64 `toml:"poll_interval_seconds"`
	// FFOnly is the only supported mode; false is rejected by Validate.
	FFOnly bool `toml:"ff_only"`
}

// Git contains commit and push settings for the data repository.
type Git struct {
	AutoCommit            bool   `toml:"auto_commit"`
	AutoPush              bool   `toml:"auto_push"`
	Remote                string `toml:"remote"`
	Branch                string `toml:"branch"`
	RepositoryURL         string `toml:"repository_url"`
	CommitMessageTemplate string `toml:"commit_message_template"`
	AuthorName            string `toml:"author_name"`
	AuthorEmail           string `toml:"author_email"`
}

// WorkflowDispatch configures the GitHub Actions relay.
type WorkflowDispatch struct {
	Enabled  bool              `toml:"enabled"`
	Repo     string            `toml:"repo"`
	Workflow string            `toml:"workflow"`
	Ref      string            `toml:"ref"`
	Inputs   map[string]string `toml:"inputs"`
}

// GitHub groups GitHub API integrations.
type GitHub struct {
	WorkflowDispatch WorkflowDispatch `toml:"workflow_dispatch"`
}

// HookCommand configures a local command run in reaction to repository events.
type HookCommand struct {
	Enabled          bool   `toml:"enabled"`
	Command          string `toml:"command"`
	WorkingDirectory string `toml:"working_directory"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Hooks groups event hook configuration.
type Hooks struct {
	OnNewCommits HookCommand `toml:"on_new_commits"`
}

// Standalone configures local transcript processing instead of the
// workflow-dispatch relay.
type Standalone struct {
	Enabled          bool   `toml:"enabled"`
	Command          string `toml:"command"`
	WorkingDirectory string `toml:"working_directory"`
	TimeoutSeconds   int    `toml:"timeout_seconds"`
}

// Processing groups transcript processing modes.
type Processing struct {
	Standalone Standalone `toml:"standalone"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for notesd.
//
// Configuration sections by subsystem:
//   - Server: webhook listener bind address
//   - Paths: data repository checkout and log directory
//   - Sync: pull scheduling (startup, pre-webhook, background poll)
//   - Git: commit/push behavior for the data repository
//   - GitHub: workflow dispatch relay
//   - Hooks: local command run when background sync observes new commits
//   - Processing: standalone summarization mode
//   - Logging: log format and level
type Config struct {
	Server     Server     `toml:"server"`
	Paths      Paths      `toml:"paths"`
	Sync       Sync       `toml:"sync"`
	Git        Git        `toml:"git"`
	GitHub     GitHub     `toml:"github"`
	Hooks      Hooks      `toml:"hooks"`
	Processing Processing `toml:"processing"`
	Logging    Logging    `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/notesd/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("notesd.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// Bind returns the host:port address the webhook listener binds to.
func (c *Config) Bind() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// InboxDir returns the inbox directory inside the data repository. Transcripts
// always land in <data_repo>/inbox.
func (c *Config) InboxDir() string {
	return filepath.Join(c.Paths.DataRepo, "inbox")
}

// SyncEnabled resolves the sync.enabled setting, defaulting to git.auto_push
// when the file leaves it unset.
func (c *Config) SyncEnabled() bool {
	if c.Sync.Enabled != nil {
		return *c.Sync.Enabled
	}
	return c.Git.AutoPush
}

// CommitMessage renders the commit message template for a transcript title.
func (c *Config) CommitMessage(title string) string {
	return strings.ReplaceAll(c.Git.CommitMessageTemplate, "{title}", title)
}

// GitHubToken returns the GitHub API token from the environment.
func GitHubToken() string {
	return strings.TrimSpace(os.Getenv("GH_TOKEN"))
}

// EnsureDirectories creates required directories for daemon operation. The data
// repository itself is created by bootstrap, only its parent is prepared here.
func (c *Config) EnsureDirectories() error {
	if err := os.MkdirAll(c.Paths.LogDir, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", c.Paths.LogDir, err)
	}
	parent := filepath.Dir(c.Paths.DataRepo)
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return fmt.Errorf("create directory %q: %w", parent, err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
