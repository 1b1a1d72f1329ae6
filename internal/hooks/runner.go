package hooks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"strings"
	"time"

	"notesd/internal/config"
	"notesd/internal/logging"
)

// ErrTimeout reports that a hook command exceeded its configured timeout.
var ErrTimeout = errors.New("hook timed out")

// Command is one resolved hook invocation.
type Command struct {
	// Name labels the hook in logs ("on_new_commits", "standalone").
	Name             string
	Command          string
	WorkingDirectory string
	Timeout          time.Duration
	// Env adds variables on top of the daemon environment.
	Env map[string]string
}

// FromHookConfig resolves an event hook. The second return is false when the
// hook is disabled or has no command.
func FromHookConfig(name string, hc config.HookCommand) (Command, bool) {
	if !hc.Enabled || strings.TrimSpace(hc.Command) == "" {
		return Command{}, false
	}
	return Command{
		Name:             name,
		Command:          hc.Command,
		WorkingDirectory: hc.WorkingDirectory,
		Timeout:          time.Duration(hc.TimeoutSeconds) * time.Second,
	}, true
}

// StandaloneCommand resolves the local processing command. The workspace
// directory is exported as WORKSPACE_DIR so the command can find the
// working copy.
func StandaloneCommand(sc config.Standalone, workspaceDir string) (Command, bool) {
	if !sc.Enabled || strings.TrimSpace(sc.Command) == "" {
		return Command{}, false
	}
	return Command{
		Name:             "standalone",
		Command:          sc.Command,
		WorkingDirectory: sc.WorkingDirectory,
		Timeout:          time.Duration(sc.TimeoutSeconds) * time.Second,
		Env:              map[string]string{"WORKSPACE_DIR": workspaceDir},
	}, true
}

// Runner executes hook commands through the shell with bounded runtime.
type Runner struct {
	log           *slog.Logger
	commandRunner func(ctx context.Context, cmd Command) ([]byte, error)
}

// NewRunner constructs a hook runner.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{log: logger.With(logging.String(logging.FieldComponent, "hooks"))}
}

// WithCommandRunner sets a custom command runner (for testing).
func (r *Runner) WithCommandRunner(runner func(ctx context.Context, cmd Command) ([]byte, error)) {
	r.commandRunner = runner
}

// Run executes a hook command and returns its combined output. A deadline
// overrun yields ErrTimeout; other failures carry the captured output in
// the error message.
func (r *Runner) Run(ctx context.Context, cmd Command) ([]byte, error) {
	start := time.Now()
	r.log.Info("running hook", logging.String("hook", cmd.Name))

	output, err := r.execute(ctx, cmd)
	if err != nil {
		r.log.Warn("hook failed",
			logging.String("hook", cmd.Name),
			logging.Duration("elapsed", time.Since(start)),
			logging.Error(err),
		)
		return output, err
	}

	r.log.Info("hook completed",
		logging.String("hook", cmd.Name),
		logging.Duration("elapsed", time.Since(start)),
	)
	return output, nil
}

func (r *Runner) execute(ctx context.Context, cmd Command) ([]byte, error) {
	if r.commandRunner != nil {
		return r.commandRunner(ctx, cmd)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if cmd.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, cmd.Timeout)
		defer cancel()
	}

	execCmd := exec.CommandContext(runCtx, "/bin/sh", "-c", cmd.Command) //nolint:gosec
	if cmd.WorkingDirectory != "" {
		execCmd.Dir = cmd.WorkingDirectory
	}
	if len(cmd.Env) > 0 {
		env := os.Environ()
		keys := make([]string, 0, len(cmd.Env))
		for key := range cmd.Env {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			env = append(env, key+"="+cmd.Env[key])
		}
		execCmd.Env = env
	}

	output, err := execCmd.CombinedOutput()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded && ctx.Err() == nil {
			return output, fmt.Errorf("%w after %s: %s", ErrTimeout, cmd.Timeout, cmd.Name)
		}
		return output, fmt.Errorf("%s: %w: %s", cmd.Name, err, strings.TrimSpace(string(output)))
	}
	return output, nil
}
