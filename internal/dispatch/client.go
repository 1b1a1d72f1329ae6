package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"notesd/internal/config"
	"notesd/internal/retry"
)

const (
	defaultBaseURL     = "https://api.github.com"
	defaultHTTPTimeout = 15 * time.Second
)

// ErrPermanent marks a dispatch failure that retrying cannot fix, such as a
// missing workflow or a rejected token.
var ErrPermanent = errors.New("workflow dispatch rejected")

type httpStatusError struct {
	StatusCode int
	Body       string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("dispatch request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Client triggers workflow_dispatch events for one configured workflow.
type Client struct {
	repo     string
	workflow string
	ref      string
	inputs   map[string]string
	token    func() string
	baseURL  string

	httpClient *http.Client
	policy     retry.Policy
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithBaseURL overrides the GitHub API base URL (useful for tests).
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithRetryPolicy overrides the retry policy.
func WithRetryPolicy(policy retry.Policy) Option {
	return func(c *Client) {
		c.policy = policy
	}
}

// WithToken overrides how the API token is resolved.
func WithToken(token func() string) Option {
	return func(c *Client) {
		if token != nil {
			c.token = token
		}
	}
}

// New constructs a dispatch client from configuration. It returns nil when
// workflow dispatch is disabled; callers treat a nil client as a no-op.
func New(cfg *config.Config, opts ...Option) *Client {
	wd := cfg.GitHub.WorkflowDispatch
	if !wd.Enabled {
		return nil
	}
	client := &Client{
		repo:       wd.Repo,
		workflow:   wd.Workflow,
		ref:        wd.Ref,
		inputs:     wd.Inputs,
		token:      config.GitHubToken,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		policy:     retry.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Dispatch triggers the configured workflow for a pushed transcript. The
// transcript filename and commit revision are merged into the workflow
// inputs alongside any statically configured ones.
func (c *Client) Dispatch(ctx context.Context, filename, revision string) error {
	if c == nil {
		return nil
	}
	token := c.token()
	if token == "" {
		return fmt.Errorf("%w: GH_TOKEN is not set", ErrPermanent)
	}

	inputs := make(map[string]string, len(c.inputs)+2)
	for k, v := range c.inputs {
		inputs[k] = v
	}
	inputs["filename"] = filename
	inputs["revision"] = revision

	payload := dispatchRequest{Ref: c.ref, Inputs: inputs}

	err := c.policy.Do(ctx, "workflow dispatch", func(ctx context.Context) error {
		return c.sendOnce(ctx, token, payload)
	}, transient)
	if err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && !transient(statusErr) {
			return fmt.Errorf("%w: %s", ErrPermanent, statusErr.Error())
		}
		return err
	}
	return nil
}

type dispatchRequest struct {
	Ref    string            `json:"ref"`
	Inputs map[string]string `json:"inputs,omitempty"`
}

func (c *Client) sendOnce(ctx context.Context, token string, payload dispatchRequest) error {
	endpoint := fmt.Sprintf("%s/repos/%s/actions/workflows/%s/dispatches", c.baseURL, c.repo, c.workflow)
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("dispatch request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return fmt.Errorf("dispatch request: new request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch request: http error: %w", err)
	}
	defer resp.Body.Close()

	// GitHub answers 204 on success.
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &httpStatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return nil
}

// transient reports whether a dispatch failure is worth retrying.
func transient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}

	return false
}
