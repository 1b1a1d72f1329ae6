// Package dispatch triggers a GitHub Actions workflow after a transcript
// has been pushed.
//
// The client wraps the workflow_dispatch REST endpoint. Failures never
// affect the webhook response: a pushed transcript is durable whether or
// not the downstream workflow started. Transient failures (rate limits,
// server errors, network timeouts) are retried with the shared bounded
// policy; any other 4xx is permanent and reported once.
package dispatch
