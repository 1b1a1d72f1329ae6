package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeGit()
	c.normalizeGitHub()
	c.normalizeHooks()
	c.normalizeProcessing()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataRepo, err = expandPath(c.Paths.DataRepo); err != nil {
		return fmt.Errorf("paths.data_repo: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeGit() {
	c.Git.Remote = strings.TrimSpace(c.Git.Remote)
	if c.Git.Remote == "" {
		c.Git.Remote = defaultRemote
	}
	c.Git.Branch = strings.TrimSpace(c.Git.Branch)
	if c.Git.Branch == "" {
		c.Git.Branch = defaultBranch
	}
	c.Git.RepositoryURL = normalizeRepoURL(c.Git.RepositoryURL)
	if strings.TrimSpace(c.Git.CommitMessageTemplate) == "" {
		c.Git.CommitMessageTemplate = defaultCommitTemplate
	}
	if strings.TrimSpace(c.Git.AuthorName) == "" {
		c.Git.AuthorName = defaultAuthorName
	}
	if strings.TrimSpace(c.Git.AuthorEmail) == "" {
		c.Git.AuthorEmail = defaultAuthorEmail
	}
}

// normalizeRepoURL accepts bare github.com/owner/repo shorthand alongside full
// clone URLs.
func normalizeRepoURL(url string) string {
	url = strings.TrimSpace(url)
	if url == "" {
		return ""
	}
	if strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://") {
		return url
	}
	if strings.HasPrefix(url, "github.com/") {
		return "https://" + url
	}
	return url
}

func (c *Config) normalizeGitHub() {
	wd := &c.GitHub.WorkflowDispatch
	wd.Repo = strings.TrimSpace(wd.Repo)
	wd.Workflow = strings.TrimSpace(wd.Workflow)
	wd.Ref = strings.TrimSpace(wd.Ref)
	if wd.Ref == "" {
		wd.Ref = defaultDispatchRef
	}
}

func (c *Config) normalizeHooks() {
	hook := &c.Hooks.OnNewCommits
	hook.Command = strings.TrimSpace(hook.Command)
	if strings.TrimSpace(hook.WorkingDirectory) == "" {
		hook.WorkingDirectory = defaultHookWorkingDir
	}
	if hook.TimeoutSeconds <= 0 {
		hook.TimeoutSeconds = defaultHookTimeoutSeconds
	}
}

func (c *Config) normalizeProcessing() {
	standalone := &c.Processing.Standalone
	standalone.Command = strings.TrimSpace(standalone.Command)
	if strings.TrimSpace(standalone.WorkingDirectory) == "" {
		standalone.WorkingDirectory = defaultProcessWorkingDir
	}
	if standalone.TimeoutSeconds <= 0 {
		standalone.TimeoutSeconds = defaultProcessTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
