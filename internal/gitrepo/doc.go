// Package gitrepo owns the on-disk checkout of the shared notes repository.
//
// It bootstraps the checkout by cloning when absent, keeps it current with
// fast-forward-only pulls, and publishes local commits with a bounded retry on
// non-fast-forward push rejections. Diverged history is always surfaced as
// ErrDiverged and never merged or rebased away; a push that stays rejected
// after the retry budget leaves the local commit intact and reports
// ErrPushConflict so a later cycle can retry it.
//
// Callers are responsible for serializing access: every method that mutates the
// checkout expects the caller to hold the mutation serializer.
package gitrepo
