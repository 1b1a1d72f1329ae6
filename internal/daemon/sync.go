package daemon

import (
	"context"
	"fmt"
	"time"

	"notesd/internal/gitrepo"
	"notesd/internal/hooks"
	"notesd/internal/logging"
)

// runSyncLoop pulls the remote on a fixed interval while the daemon runs.
func (d *Daemon) runSyncLoop(ctx context.Context, interval time.Duration) {
	defer d.wg.Done()

	log := d.logger.With(logging.String(logging.FieldComponent, "sync"))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, err := d.syncOnce(ctx)
			if err != nil {
				log.Warn("sync failed", logging.Error(err))
				continue
			}
			if result.Changed {
				log.Info("pulled new commits",
					logging.Int("commits", result.CommitsPulled),
					logging.String(logging.FieldRevision, result.After.String()),
				)
				d.fireNewCommitsHook(ctx)
			}
		}
	}
}

// syncOnce performs one pull under the mutation serializer and drains any
// unpushed local commits while it holds the lock.
func (d *Daemon) syncOnce(ctx context.Context) (gitrepo.SyncResult, error) {
	lockCtx, cancel := context.WithTimeout(ctx, lockWaitTimeout)
	token, err := d.serializer.Acquire(lockCtx)
	cancel()
	if err != nil {
		return gitrepo.SyncResult{}, fmt.Errorf("acquire mutation lock: %w", err)
	}
	defer token.Release()

	result, err := d.repo.Pull(ctx)
	if err != nil {
		return result, err
	}

	if err := d.drainUnpushed(ctx); err != nil {
		d.logger.Warn("push retry deferred", logging.Error(err))
	}
	return result, nil
}

// drainUnpushed publishes commits retained by earlier push conflicts and
// resolves their journal entries. Caller holds the serializer.
func (d *Daemon) drainUnpushed(ctx context.Context) error {
	unpushed, err := d.repo.HasUnpushedCommits()
	if err != nil {
		return err
	}
	if !unpushed {
		return nil
	}
	if err := d.repo.PushWithRetry(ctx); err != nil {
		return err
	}
	resolved, err := d.store.MarkPushPendingResolved(ctx)
	if err != nil {
		return err
	}
	if resolved > 0 {
		d.logger.Info("published retained commits", logging.Int64("deliveries", resolved))
	}
	return nil
}

// recoverPendingPushes runs during startup, before the listener opens.
func (d *Daemon) recoverPendingPushes(ctx context.Context) error {
	pending, err := d.store.PushPending(ctx)
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		d.logger.Info("recovering deferred pushes", logging.Int("deliveries", len(pending)))
	}
	return d.drainUnpushed(ctx)
}

// fireNewCommitsHook runs the on_new_commits hook outside the serializer
// so a slow hook never blocks webhook deliveries.
func (d *Daemon) fireNewCommitsHook(ctx context.Context) {
	cmd, ok := hooks.FromHookConfig("on_new_commits", d.cfg.Hooks.OnNewCommits)
	if !ok {
		return
	}
	if cmd.WorkingDirectory == "" {
		cmd.WorkingDirectory = d.cfg.Paths.DataRepo
	}
	if _, err := d.hookRunner.Run(ctx, cmd); err != nil {
		d.logger.Warn("on_new_commits hook failed", logging.Error(err))
	}
}
