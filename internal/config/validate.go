package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if err := c.validateGitHub(); err != nil {
		return err
	}
	if err := c.validateHooks(); err != nil {
		return err
	}
	if err := c.validateProcessing(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if strings.TrimSpace(c.Server.Host) == "" {
		return errors.New("server.host must be set")
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataRepo) == "" {
		return errors.New("paths.data_repo must be set")
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.PollIntervalSeconds < 0 {
		return errors.New("sync.poll_interval_seconds must not be negative")
	}
	if !c.Sync.FFOnly {
		return errors.New("sync.ff_only = false is not supported: diverged history is surfaced, never merged")
	}
	return nil
}

func (c *Config) validateGitHub() error {
	wd := c.GitHub.WorkflowDispatch
	if !wd.Enabled {
		return nil
	}
	if wd.Repo == "" {
		return errors.New("github.workflow_dispatch.repo must be set when dispatch is enabled")
	}
	if !strings.Contains(wd.Repo, "/") {
		return fmt.Errorf("github.workflow_dispatch.repo must be owner/name, got %q", wd.Repo)
	}
	if wd.Workflow == "" {
		return errors.New("github.workflow_dispatch.workflow must be set when dispatch is enabled")
	}
	return nil
}

func (c *Config) validateHooks() error {
	hook := c.Hooks.OnNewCommits
	if hook.Enabled && hook.Command == "" {
		return errors.New("hooks.on_new_commits.command must be set when the hook is enabled")
	}
	return nil
}

func (c *Config) validateProcessing() error {
	standalone := c.Processing.Standalone
	if standalone.Enabled && standalone.Command == "" {
		return errors.New("processing.standalone.command must be set when standalone mode is enabled")
	}
	if standalone.Enabled && c.GitHub.WorkflowDispatch.Enabled {
		return errors.New("processing.standalone and github.workflow_dispatch are mutually exclusive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
