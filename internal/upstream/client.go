// Package upstream is the gateway's client for the GitHub issues REST API.
// Every call is bounded by a finite timeout, successful responses are
// normalized into the local Issue and Comment shapes, and every failure comes
// back as an *Error carrying the upstream status and message.
package upstream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL   = "https://api.github.com/"
	DefaultTimeout   = 20 * time.Second
	DefaultUserAgent = "issuegate/1.0"

	acceptHeader = "application/vnd.github+json"
)

// Config holds upstream client settings.
type Config struct {
	Token   string
	Owner   string
	Repo    string
	BaseURL string
	// Timeout bounds every call. Zero means DefaultTimeout.
	Timeout time.Duration
	// RequestsPerSecond throttles outbound calls. Zero disables throttling.
	RequestsPerSecond float64
	UserAgent         string
	// HTTPClient is the base transport wrapped with token auth. Optional.
	HTTPClient *http.Client
}

// Client talks to one upstream repository.
type Client struct {
	gh      *github.Client
	owner   string
	repo    string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *slog.Logger
}

// New builds a Client. The token is sent as a bearer credential on every call.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("upstream owner and repo are required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx := context.Background()
	if cfg.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, cfg.HTTPClient)
	}
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.Token},
	))
	httpClient.Timeout = cfg.Timeout

	gh := github.NewClient(httpClient)
	gh.UserAgent = cfg.UserAgent

	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse upstream base url %q: %w", cfg.BaseURL, err)
	}
	gh.BaseURL = u

	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		gh:      gh,
		owner:   cfg.Owner,
		repo:    cfg.Repo,
		timeout: cfg.Timeout,
		limiter: limiter,
		logger:  logger,
	}, nil
}

// Repository returns "owner/repo".
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

// CreateIssue opens a new issue.
func (c *Client) CreateIssue(ctx context.Context, req CreateIssueRequest) (*Issue, error) {
	var raw json.RawMessage
	if _, err := c.call(ctx, http.MethodPost, c.issuesPath(), req, &raw); err != nil {
		return nil, err
	}
	return c.issueFrom(raw)
}

// ListIssues returns one page of issues with pull requests removed, plus the
// upstream response headers for pagination and rate-limit forwarding.
func (c *Client) ListIssues(ctx context.Context, opts ListIssuesOptions) ([]Issue, http.Header, error) {
	q := url.Values{}
	q.Set("state", opts.State)
	q.Set("page", strconv.Itoa(opts.Page))
	q.Set("per_page", strconv.Itoa(opts.PerPage))
	if opts.Labels != "" {
		q.Set("labels", opts.Labels)
	}

	var items []json.RawMessage
	resp, err := c.call(ctx, http.MethodGet, c.issuesPath()+"?"+q.Encode(), nil, &items)
	if err != nil {
		return nil, nil, err
	}

	issues, err := normalizeIssueList(items)
	if err != nil {
		return nil, nil, decodeError(resp, err)
	}
	return issues, resp.Header, nil
}

// GetIssue fetches a single issue.
func (c *Client) GetIssue(ctx context.Context, number int) (*Issue, error) {
	var raw json.RawMessage
	if _, err := c.call(ctx, http.MethodGet, c.issuePath(number), nil, &raw); err != nil {
		return nil, err
	}
	return c.issueFrom(raw)
}

// UpdateIssue changes the non-nil fields of req.
func (c *Client) UpdateIssue(ctx context.Context, number int, req UpdateIssueRequest) (*Issue, error) {
	var raw json.RawMessage
	if _, err := c.call(ctx, http.MethodPatch, c.issuePath(number), req, &raw); err != nil {
		return nil, err
	}
	return c.issueFrom(raw)
}

// CreateComment adds a comment to an issue.
func (c *Client) CreateComment(ctx context.Context, number int, body string) (*Comment, error) {
	var raw json.RawMessage
	payload := map[string]string{"body": body}
	resp, err := c.call(ctx, http.MethodPost, c.issuePath(number)+"/comments", payload, &raw)
	if err != nil {
		return nil, err
	}
	comment, err := normalizeComment(raw)
	if err != nil {
		return nil, decodeError(resp, err)
	}
	return &comment, nil
}

// Probe issues a minimal authenticated listing call and returns the raw
// response so callers can inspect status and rate-limit headers.
func (c *Client) Probe(ctx context.Context) (*http.Response, error) {
	var items []json.RawMessage
	resp, err := c.call(ctx, http.MethodGet, c.issuesPath()+"?per_page=1", nil, &items)
	if resp == nil {
		return nil, err
	}
	return resp.Response, err
}

// call performs exactly one upstream request. Failures are always *Error.
// The request goes straight to the underlying http.Client: go-github's own Do
// refuses to send anything after a response reporting zero remaining quota.
func (c *Client) call(ctx context.Context, method, path string, body, v any) (*github.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, newError(nil, fmt.Errorf("rate limiter: %w", err))
	}

	req, err := c.gh.NewRequest(method, path, body)
	if err != nil {
		return nil, newError(nil, err)
	}
	req.Header.Set("Accept", acceptHeader)

	start := time.Now()
	resp, err := c.send(req.WithContext(ctx), v)
	if err != nil {
		var uerr *Error
		if !errors.As(err, &uerr) {
			uerr = newError(resp, err)
		}
		c.logger.Warn("upstream call failed",
			"method", method,
			"path", req.URL.Path,
			"status", uerr.Status,
			"duration_ms", time.Since(start).Milliseconds(),
			"error", uerr.Message,
		)
		return resp, uerr
	}

	c.logger.Debug("upstream call",
		"method", method,
		"path", req.URL.Path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return resp, nil
}

// send performs req and decodes a 2xx body into v. A non-2xx response comes
// back with the error built by github.CheckResponse, whose body is left
// readable for upstreamMessage.
func (c *Client) send(req *http.Request, v any) (*github.Response, error) {
	httpResp, err := c.gh.Client().Do(req)
	if err != nil {
		return nil, err
	}
	raw := httpResp.Body
	defer raw.Close()

	resp := &github.Response{Response: httpResp}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return resp, github.CheckResponse(httpResp)
	}
	if v == nil {
		return resp, nil
	}
	if err := json.NewDecoder(raw).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return resp, decodeError(resp, err)
	}
	return resp, nil
}

func (c *Client) issueFrom(raw json.RawMessage) (*Issue, error) {
	issue, err := normalizeIssue(raw)
	if err != nil {
		return nil, decodeError(nil, err)
	}
	return &issue, nil
}

// decodeError reports a 2xx response whose body could not be normalized.
func decodeError(resp *github.Response, err error) *Error {
	status := 0
	if resp != nil && resp.Response != nil {
		status = resp.StatusCode
	}
	msg := "unexpected upstream response: " + err.Error()
	return &Error{
		Status:  status,
		Message: msg,
		Details: map[string]any{"github_status": status, "github_message": msg},
		cause:   err,
	}
}

func (c *Client) issuesPath() string {
	return fmt.Sprintf("repos/%s/%s/issues", url.PathEscape(c.owner), url.PathEscape(c.repo))
}

func (c *Client) issuePath(number int) string {
	return fmt.Sprintf("%s/%d", c.issuesPath(), number)
}
