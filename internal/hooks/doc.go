// Package hooks runs operator-configured shell commands in response to
// repository events.
//
// Two kinds of commands run through the same runner: the on_new_commits
// hook fired after a sync pulls new work, and the standalone processing
// command fired after a transcript is written when the daemon processes
// locally instead of dispatching a workflow. Hook failures are logged
// and never fail the operation that triggered them.
package hooks
