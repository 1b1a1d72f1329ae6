package gitrepo

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	git "github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Bootstrap ensures a valid checkout exists at the configured path, cloning
// when absent. A path that exists but is not a repository fails with
// ErrBootstrap rather than being overwritten.
func (r *Repo) Bootstrap(ctx context.Context) error {
	present, valid, err := r.checkoutState()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBootstrap, err)
	}
	if valid {
		return nil
	}
	if present {
		return fmt.Errorf("%w: %s exists but is not a git checkout", ErrBootstrap, r.path)
	}

	if strings.TrimSpace(r.cloneURL) == "" {
		return fmt.Errorf("%w: checkout missing at %s and no clone url configured", ErrBootstrap, r.path)
	}

	_, err = git.PlainCloneContext(ctx, r.path, false, &git.CloneOptions{
		URL:           r.cloneURL,
		RemoteName:    r.remote,
		ReferenceName: r.branchRef(),
		SingleBranch:  true,
		Auth:          r.auth(),
	})
	if err != nil {
		return fmt.Errorf("%w: clone %s: %v", ErrBootstrap, r.cloneURL, err)
	}
	return nil
}

// Head returns the current local revision.
func (r *Repo) Head() (plumbing.Hash, error) {
	repo, err := r.open()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	head, err := repo.Head()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("resolve head: %w", err)
	}
	return head.Hash(), nil
}

// IsClean reports whether the worktree has no uncommitted changes.
func (r *Repo) IsClean() (bool, error) {
	repo, err := r.open()
	if err != nil {
		return false, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return false, fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("worktree status: %w", err)
	}
	return status.IsClean(), nil
}

// Pull fast-forwards the local branch to the remote tip and reports what
// changed. A history that cannot be fast-forwarded fails with ErrDiverged.
func (r *Repo) Pull(ctx context.Context) (SyncResult, error) {
	repo, err := r.open()
	if err != nil {
		return SyncResult{}, err
	}

	before := plumbing.ZeroHash
	if head, headErr := repo.Head(); headErr == nil {
		before = head.Hash()
	}

	wt, err := repo.Worktree()
	if err != nil {
		return SyncResult{}, fmt.Errorf("open worktree: %w", err)
	}

	err = wt.PullContext(ctx, &git.PullOptions{
		RemoteName:    r.remote,
		ReferenceName: r.branchRef(),
		SingleBranch:  true,
		Auth:          r.auth(),
	})
	switch {
	case err == nil:
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return SyncResult{Before: before, After: before}, nil
	case isNonFastForward(err):
		return SyncResult{Before: before, After: before}, fmt.Errorf("%w: pull %s/%s: %v", ErrDiverged, r.remote, r.branch, err)
	default:
		return SyncResult{Before: before, After: before}, fmt.Errorf("pull %s/%s: %w", r.remote, r.branch, err)
	}

	head, err := repo.Head()
	if err != nil {
		return SyncResult{Before: before}, fmt.Errorf("resolve head after pull: %w", err)
	}
	after := head.Hash()

	result := SyncResult{Before: before, After: after, Changed: after != before}
	if result.Changed {
		result.CommitsPulled = countCommits(repo, after, before)
	}
	return result, nil
}

// countCommits walks first-parent history from head back to stop. Returns the
// walked distance, or the full walk length when stop is unreachable.
func countCommits(repo *git.Repository, head, stop plumbing.Hash) int {
	iter, err := repo.Log(&git.LogOptions{From: head})
	if err != nil {
		return 0
	}
	defer iter.Close()

	count := 0
	_ = iter.ForEach(func(c *object.Commit) error {
		if c.Hash == stop {
			return errStopIteration
		}
		count++
		return nil
	})
	return count
}

var errStopIteration = errors.New("stop iteration")

// Commit stages the named paths and records a commit without pushing.
// Paths may be absolute (inside the checkout) or relative to it.
func (r *Repo) Commit(paths []string, message string) (plumbing.Hash, error) {
	repo, err := r.open()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	wt, err := repo.Worktree()
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("open worktree: %w", err)
	}

	for _, path := range paths {
		rel, relErr := r.relPath(path)
		if relErr != nil {
			return plumbing.ZeroHash, relErr
		}
		if _, addErr := wt.Add(rel); addErr != nil {
			return plumbing.ZeroHash, fmt.Errorf("stage %s: %w", rel, addErr)
		}
	}

	hash, err := wt.Commit(message, &git.CommitOptions{
		Author: &object.Signature{
			Name:  r.authorName,
			Email: r.authorEmail,
			When:  r.now(),
		},
	})
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("commit: %w", err)
	}
	return hash, nil
}

func (r *Repo) relPath(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(r.path, path)
	}
	rel, err := filepath.Rel(r.path, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %s is outside the checkout", path)
	}
	return filepath.ToSlash(rel), nil
}

// Push publishes local commits to the configured remote branch.
func (r *Repo) Push(ctx context.Context) error {
	repo, err := r.open()
	if err != nil {
		return err
	}
	refSpec := gitconfig.RefSpec(fmt.Sprintf("%s:%s", r.branchRef(), r.branchRef()))
	err = repo.PushContext(ctx, &git.PushOptions{
		RemoteName: r.remote,
		RefSpecs:   []gitconfig.RefSpec{refSpec},
		Auth:       r.auth(),
	})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("push %s/%s: %w", r.remote, r.branch, err)
	}
	return nil
}

// PushWithRetry pushes, re-pulling and retrying on non-fast-forward
// rejections. Exhausting the budget maps to ErrPushConflict with local commits
// retained.
func (r *Repo) PushWithRetry(ctx context.Context) error {
	attempt := 0
	err := r.pushRetry.Do(ctx, "push", func(ctx context.Context) error {
		attempt++
		pushErr := r.Push(ctx)
		if pushErr == nil {
			return nil
		}
		if isNonFastForward(pushErr) {
			// The remote moved under us. Try to fast-forward before the next
			// attempt; if that shows truly diverged history there is nothing a
			// retry can do.
			if _, pullErr := r.Pull(ctx); pullErr != nil && errors.Is(pullErr, ErrDiverged) {
				return fmt.Errorf("%w: %v", ErrPushConflict, pullErr)
			}
		}
		return pushErr
	}, func(err error) bool {
		return isNonFastForward(err) && !errors.Is(err, ErrPushConflict)
	})
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPushConflict) {
		return err
	}
	if isNonFastForward(err) {
		return fmt.Errorf("%w: push rejected after %d attempts: %v", ErrPushConflict, attempt, err)
	}
	return err
}

// HasUnpushedCommits reports whether the local branch is ahead of the
// remote-tracking ref, e.g. after a crash between commit and push.
func (r *Repo) HasUnpushedCommits() (bool, error) {
	repo, err := r.open()
	if err != nil {
		return false, err
	}
	head, err := repo.Head()
	if err != nil {
		return false, fmt.Errorf("resolve head: %w", err)
	}
	remote, err := repo.Reference(r.remoteRef(), true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			// No remote-tracking ref at all: everything local is unpushed.
			return true, nil
		}
		return false, fmt.Errorf("resolve remote ref: %w", err)
	}
	return head.Hash() != remote.Hash(), nil
}

func isNonFastForward(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, git.ErrNonFastForwardUpdate) {
		return true
	}
	if errors.Is(err, transport.ErrEmptyRemoteRepository) {
		return false
	}
	return strings.Contains(err.Error(), "non-fast-forward")
}
