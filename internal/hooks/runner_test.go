package hooks_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"notesd/internal/config"
	"notesd/internal/hooks"
)

func TestFromHookConfig(t *testing.T) {
	if _, ok := hooks.FromHookConfig("on_new_commits", config.HookCommand{Enabled: false, Command: "true"}); ok {
		t.Fatal("disabled hook should not resolve")
	}
	if _, ok := hooks.FromHookConfig("on_new_commits", config.HookCommand{Enabled: true, Command: "  "}); ok {
		t.Fatal("empty command should not resolve")
	}

	cmd, ok := hooks.FromHookConfig("on_new_commits", config.HookCommand{
		Enabled:        true,
		Command:        "make summaries",
		TimeoutSeconds: 30,
	})
	if !ok {
		t.Fatal("expected hook to resolve")
	}
	if cmd.Timeout != 30*time.Second {
		t.Fatalf("timeout = %s", cmd.Timeout)
	}
}

func TestStandaloneCommandExportsWorkspace(t *testing.T) {
	cmd, ok := hooks.StandaloneCommand(config.Standalone{
		Enabled:        true,
		Command:        "process.sh",
		TimeoutSeconds: 10,
	}, "/srv/archive")
	if !ok {
		t.Fatal("expected command to resolve")
	}
	if cmd.Env["WORKSPACE_DIR"] != "/srv/archive" {
		t.Fatalf("env = %#v", cmd.Env)
	}
}

func TestRunCapturesOutput(t *testing.T) {
	runner := hooks.NewRunner(nil)
	output, err := runner.Run(context.Background(), hooks.Command{
		Name:    "echo",
		Command: "echo hook ran",
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if strings.TrimSpace(string(output)) != "hook ran" {
		t.Fatalf("output = %q", output)
	}
}

func TestRunSetsWorkingDirectoryAndEnv(t *testing.T) {
	dir := t.TempDir()
	runner := hooks.NewRunner(nil)
	output, err := runner.Run(context.Background(), hooks.Command{
		Name:             "pwd",
		Command:          "pwd && printf '%s' \"$WORKSPACE_DIR\"",
		WorkingDirectory: dir,
		Env:              map[string]string{"WORKSPACE_DIR": "/srv/archive"},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) != 2 {
		t.Fatalf("output = %q", output)
	}
	got, want := lines[0], dir
	if resolved, err := filepath.EvalSymlinks(got); err == nil {
		got = resolved
	}
	if resolved, err := filepath.EvalSymlinks(want); err == nil {
		want = resolved
	}
	if got != want {
		t.Fatalf("cwd = %q, want %q", got, want)
	}
	if lines[1] != "/srv/archive" {
		t.Fatalf("WORKSPACE_DIR = %q", lines[1])
	}
}

func TestRunReportsCommandFailure(t *testing.T) {
	runner := hooks.NewRunner(nil)
	_, err := runner.Run(context.Background(), hooks.Command{
		Name:    "fail",
		Command: "echo diagnostics; exit 3",
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "diagnostics") {
		t.Fatalf("error should carry output: %v", err)
	}
}

func TestRunTimesOut(t *testing.T) {
	runner := hooks.NewRunner(nil)
	_, err := runner.Run(context.Background(), hooks.Command{
		Name:    "slow",
		Command: "sleep 5",
		Timeout: 50 * time.Millisecond,
	})
	if !errors.Is(err, hooks.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestRunHonorsCallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := hooks.NewRunner(nil)
	_, err := runner.Run(ctx, hooks.Command{
		Name:    "cancelled",
		Command: "sleep 5",
		Timeout: time.Minute,
	})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
	if errors.Is(err, hooks.ErrTimeout) {
		t.Fatalf("caller cancellation is not a hook timeout: %v", err)
	}
}
