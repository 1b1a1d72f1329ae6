package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"notesd/internal/config"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.toml")
	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing file")
	}
	if resolved != path {
		t.Fatalf("resolved path = %q, want %q", resolved, path)
	}
	if cfg.Server.Port != 9876 {
		t.Fatalf("default port = %d, want 9876", cfg.Server.Port)
	}
	if cfg.Git.CommitMessageTemplate != "Add transcript: {title}" {
		t.Fatalf("unexpected commit template %q", cfg.Git.CommitMessageTemplate)
	}
	if cfg.SyncEnabled() {
		t.Fatal("sync should be disabled when auto_push is off")
	}
}

func TestSyncEnabledFollowsAutoPush(t *testing.T) {
	path := writeConfig(t, `
[git]
auto_push = true
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.SyncEnabled() {
		t.Fatal("sync.enabled should default to git.auto_push")
	}
}

func TestSyncEnabledExplicitOverride(t *testing.T) {
	path := writeConfig(t, `
[sync]
enabled = false

[git]
auto_push = true
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.SyncEnabled() {
		t.Fatal("explicit sync.enabled=false should win over auto_push")
	}
}

func TestRepositoryURLShorthand(t *testing.T) {
	path := writeConfig(t, `
[git]
repository_url = "github.com/example/notes"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Git.RepositoryURL != "https://github.com/example/notes" {
		t.Fatalf("repository_url = %q", cfg.Git.RepositoryURL)
	}
}

func TestInboxDirInsideDataRepo(t *testing.T) {
	path := writeConfig(t, `
[paths]
data_repo = "/tmp/notesd-archive"
`)
	cfg, _, _, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.InboxDir() != filepath.Join("/tmp/notesd-archive", "inbox") {
		t.Fatalf("inbox dir = %q", cfg.InboxDir())
	}
}

func TestValidateRejectsDispatchWithoutRepo(t *testing.T) {
	path := writeConfig(t, `
[github.workflow_dispatch]
enabled = true
workflow = "summarize.yml"
`)
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "workflow_dispatch.repo") {
		t.Fatalf("expected dispatch repo validation error, got %v", err)
	}
}

func TestValidateRejectsNonFastForwardSync(t *testing.T) {
	path := writeConfig(t, `
[sync]
ff_only = false
`)
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "ff_only") {
		t.Fatalf("expected ff_only validation error, got %v", err)
	}
}

func TestValidateRejectsHookWithoutCommand(t *testing.T) {
	path := writeConfig(t, `
[hooks.on_new_commits]
enabled = true
`)
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "on_new_commits.command") {
		t.Fatalf("expected hook command validation error, got %v", err)
	}
}

func TestValidateRejectsStandaloneWithDispatch(t *testing.T) {
	path := writeConfig(t, `
[github.workflow_dispatch]
enabled = true
repo = "example/processor"
workflow = "summarize.yml"

[processing.standalone]
enabled = true
command = "run-summarization"
`)
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Fatalf("expected mutual exclusion error, got %v", err)
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	path := writeConfig(t, `
[logging]
format = "yaml"
`)
	_, _, _, err := config.Load(path)
	if err == nil || !strings.Contains(err.Error(), "logging.format") {
		t.Fatalf("expected log format validation error, got %v", err)
	}
}

func TestCreateSampleParses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	if _, _, exists, err := config.Load(path); err != nil || !exists {
		t.Fatalf("sample config should load cleanly: exists=%v err=%v", exists, err)
	}
}
