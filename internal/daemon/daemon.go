package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"notesd/internal/config"
	"notesd/internal/dispatch"
	"notesd/internal/gitrepo"
	"notesd/internal/hooks"
	"notesd/internal/journal"
	"notesd/internal/logging"
	"notesd/internal/mutex"
)

// lockWaitTimeout bounds how long a webhook delivery waits for the
// mutation serializer before answering 503.
const lockWaitTimeout = 30 * time.Second

// Daemon coordinates the webhook server, the working copy, and the
// background sync loop, and enforces single-instance execution.
type Daemon struct {
	cfg        *config.Config
	logger     *slog.Logger
	store      *journal.Store
	repo       *gitrepo.Repo
	serializer *mutex.Serializer
	dispatcher *dispatch.Client
	hookRunner *hooks.Runner

	lockPath string
	lock     *flock.Flock

	server *apiServer

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	// handlers counts in-flight webhook deliveries; wg counts background
	// goroutines. Handlers spawn wg work, so Stop drains handlers first.
	handlers sync.WaitGroup
	wg       sync.WaitGroup
}

// Option customizes daemon construction.
type Option func(*Daemon)

// WithDispatcher overrides the workflow dispatch client.
func WithDispatcher(client *dispatch.Client) Option {
	return func(d *Daemon) {
		d.dispatcher = client
	}
}

// WithRepo overrides the working copy handle (for testing).
func WithRepo(repo *gitrepo.Repo) Option {
	return func(d *Daemon) {
		if repo != nil {
			d.repo = repo
		}
	}
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *journal.Store, logger *slog.Logger, opts ...Option) (*Daemon, error) {
	if cfg == nil || store == nil || logger == nil {
		return nil, errors.New("daemon requires config, journal store, and logger")
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "notesd.lock")
	d := &Daemon{
		cfg:    cfg,
		logger: logger,
		store:  store,
		repo: gitrepo.New(gitrepo.Options{
			Path:        cfg.Paths.DataRepo,
			CloneURL:    cfg.Git.RepositoryURL,
			Remote:      cfg.Git.Remote,
			Branch:      cfg.Git.Branch,
			AuthorName:  cfg.Git.AuthorName,
			AuthorEmail: cfg.Git.AuthorEmail,
			Token:       config.GitHubToken(),
		}),
		serializer: mutex.New(),
		dispatcher: dispatch.New(cfg),
		hookRunner: hooks.NewRunner(logger),
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.server = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the instance lock, prepares the working copy, and begins
// serving webhooks. It returns once the listener is accepting connections.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another notesd instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	if err := d.prepareWorkingCopy(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	if err := d.server.start(d.ctx); err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return err
	}

	if interval := d.pollInterval(); interval > 0 {
		d.wg.Add(1)
		go d.runSyncLoop(d.ctx, interval)
	}

	d.running.Store(true)
	d.logger.Info("notesd daemon started",
		logging.String("lock", d.lockPath),
		logging.String("data_repo", d.cfg.Paths.DataRepo),
	)
	return nil
}

// prepareWorkingCopy runs the startup sequence: bootstrap, optional
// startup pull, and recovery of unpushed commits. All of it happens
// before the listener opens, so webhooks never observe a half-prepared
// checkout.
func (d *Daemon) prepareWorkingCopy(ctx context.Context) error {
	if err := d.repo.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap working copy: %w", err)
	}

	if d.cfg.SyncEnabled() && d.cfg.Sync.OnStartup {
		if _, err := d.syncOnce(ctx); err != nil {
			if d.cfg.Sync.BeforeAcceptingWebhooks {
				return fmt.Errorf("startup sync: %w", err)
			}
			d.logger.Warn("startup sync failed", logging.Error(err))
		}
	}

	if d.cfg.SyncEnabled() {
		if err := d.recoverPendingPushes(ctx); err != nil {
			d.logger.Warn("push recovery deferred", logging.Error(err))
		}
	}
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.server.stop()
	d.handlers.Wait()
	d.wg.Wait()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("notesd daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Running reports whether the daemon has started and not yet stopped.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Addr returns the bound listener address, or empty before Start.
func (d *Daemon) Addr() string {
	return d.server.addr()
}

// LockPath returns the instance lock file location.
func (d *Daemon) LockPath() string {
	return d.lockPath
}

func (d *Daemon) pollInterval() time.Duration {
	if !d.cfg.SyncEnabled() {
		return 0
	}
	seconds := d.cfg.Sync.PollIntervalSeconds
	if seconds <= 0 {
		return 0
	}
	return time.Duration(seconds * float64(time.Second))
}

func (d *Daemon) mode() string {
	switch {
	case d.cfg.Processing.Standalone.Enabled:
		return "standalone"
	case d.cfg.GitHub.WorkflowDispatch.Enabled:
		return "dispatch"
	default:
		return "archive-only"
	}
}
