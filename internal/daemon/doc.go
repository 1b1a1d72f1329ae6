// Package daemon runs the notesd service end to end.
//
// The daemon owns exactly one working copy of the notes repository and
// funnels every mutation through a FIFO serializer, so concurrent
// webhook deliveries and background sync ticks never interleave git
// operations. Startup order matters: the instance lock comes first,
// then the clone-if-absent bootstrap, then recovery of any commits a
// previous run failed to push, and only then does the HTTP listener
// accept webhooks.
package daemon
