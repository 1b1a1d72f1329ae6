package gitrepo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"

	"notesd/internal/retry"
)

var (
	// ErrBootstrap indicates the checkout path holds something that is not a
	// valid repository. Bootstrap never overwrites ambiguous state.
	ErrBootstrap = errors.New("bootstrap error")

	// ErrDiverged indicates local history cannot be fast-forwarded to the
	// remote tip. Surfaced, never auto-resolved.
	ErrDiverged = errors.New("history diverged")

	// ErrPushConflict indicates a push stayed rejected after the retry budget.
	// The local commit is retained for a later retry.
	ErrPushConflict = errors.New("push conflict")

	// ErrNoCheckout indicates the checkout does not exist yet.
	ErrNoCheckout = errors.New("no checkout")
)

// Options configures a Repo.
type Options struct {
	// Path is the checkout location on disk.
	Path string
	// CloneURL is the bootstrap clone source. Optional when the checkout
	// already exists.
	CloneURL string
	// Remote and Branch select what is pulled from and pushed to.
	Remote string
	Branch string
	// AuthorName and AuthorEmail sign commits created by the daemon.
	AuthorName  string
	AuthorEmail string
	// Token authenticates HTTP transports. Empty means anonymous.
	Token string
	// PushRetry bounds non-fast-forward push retries. Zero value uses the
	// default policy.
	PushRetry retry.Policy
}

// Repo wraps one working copy of the shared notes repository.
type Repo struct {
	path        string
	cloneURL    string
	remote      string
	branch      string
	authorName  string
	authorEmail string
	token       string
	pushRetry   retry.Policy

	now func() time.Time
}

// SyncResult reports the outcome of one pull.
type SyncResult struct {
	Before        plumbing.Hash
	After         plumbing.Hash
	CommitsPulled int
	Changed       bool
}

// New constructs a Repo. The checkout is not touched until Bootstrap or one of
// the sync operations runs.
func New(opts Options) *Repo {
	policy := opts.PushRetry
	if policy.MaxAttempts == 0 {
		policy = retry.Default()
	}
	remote := opts.Remote
	if remote == "" {
		remote = "origin"
	}
	branch := opts.Branch
	if branch == "" {
		branch = "main"
	}
	return &Repo{
		path:        opts.Path,
		cloneURL:    opts.CloneURL,
		remote:      remote,
		branch:      branch,
		authorName:  opts.AuthorName,
		authorEmail: opts.AuthorEmail,
		token:       opts.Token,
		pushRetry:   policy,
		now:         time.Now,
	}
}

// Path returns the checkout location.
func (r *Repo) Path() string {
	return r.path
}

// Branch returns the tracked branch name.
func (r *Repo) Branch() string {
	return r.branch
}

func (r *Repo) branchRef() plumbing.ReferenceName {
	return plumbing.NewBranchReferenceName(r.branch)
}

func (r *Repo) remoteRef() plumbing.ReferenceName {
	return plumbing.NewRemoteReferenceName(r.remote, r.branch)
}

func (r *Repo) auth() transport.AuthMethod {
	if strings.TrimSpace(r.token) == "" {
		return nil
	}
	if !strings.HasPrefix(r.cloneURL, "http://") && !strings.HasPrefix(r.cloneURL, "https://") && r.cloneURL != "" {
		return nil
	}
	return &githttp.BasicAuth{Username: "git", Password: r.token}
}

func (r *Repo) open() (*git.Repository, error) {
	repo, err := git.PlainOpen(r.path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNoCheckout, r.path)
		}
		return nil, fmt.Errorf("open checkout %s: %w", r.path, err)
	}
	return repo, nil
}

// Valid reports whether the path currently holds a usable checkout.
func (r *Repo) Valid() bool {
	_, err := git.PlainOpen(r.path)
	return err == nil
}

func (r *Repo) checkoutState() (present bool, validRepo bool, err error) {
	info, statErr := os.Stat(r.path)
	if statErr != nil {
		if errors.Is(statErr, fs.ErrNotExist) {
			return false, false, nil
		}
		return false, false, fmt.Errorf("stat checkout path: %w", statErr)
	}
	if !info.IsDir() {
		return true, false, nil
	}

	entries, readErr := os.ReadDir(r.path)
	if readErr != nil {
		return true, false, fmt.Errorf("read checkout path: %w", readErr)
	}
	if len(entries) == 0 {
		// An empty directory is safe to clone into.
		return false, false, nil
	}

	if _, openErr := git.PlainOpen(r.path); openErr != nil {
		if errors.Is(openErr, git.ErrRepositoryNotExists) {
			return true, false, nil
		}
		return true, false, fmt.Errorf("inspect checkout: %w", openErr)
	}
	return true, true, nil
}
