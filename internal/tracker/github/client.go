// Package github implements tracker.Client against the GitHub REST API.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"

	"github.com/phrazzld/stylebatch/internal/tracker"
)

// DefaultBaseURL is the public GitHub API endpoint.
const DefaultBaseURL = "https://api.github.com"

const apiVersion = "2022-11-28"

// ErrRateLimited is returned when GitHub refuses a call because the
// token's rate limit is exhausted.
var ErrRateLimited = errors.New("github rate limit exceeded")

// APIError is a non-success response from the API.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("github: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("github: HTTP %d: %s", e.StatusCode, e.Message)
}

// Config configures a Client.
type Config struct {
	Token   string
	BaseURL string
	Timeout time.Duration
}

// Client is a minimal GitHub issues client.
type Client struct {
	http    *http.Client
	baseURL string
	token   string
}

var _ tracker.Client = (*Client)(nil)

// New creates a Client. The token is required; BaseURL defaults to the
// public API and may point at an Enterprise server or a test double.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, tracker.ErrMissingToken
	}
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("invalid github base url %q: %w", base, err)
	}

	client := cleanhttp.DefaultPooledClient()
	client.Timeout = 30 * time.Second
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}
	return &Client{http: client, baseURL: base, token: cfg.Token}, nil
}

// CreateIssue implements tracker.Client.
func (c *Client) CreateIssue(ctx context.Context, owner, repo string, issue tracker.Issue) (*tracker.Created, error) {
	if owner == "" || repo == "" {
		return nil, tracker.ErrMissingRepository
	}

	payload, err := json.Marshal(issue)
	if err != nil {
		return nil, fmt.Errorf("failed to encode issue: %w", err)
	}

	endpoint := fmt.Sprintf("%s/repos/%s/%s/issues", c.baseURL, url.PathEscape(owner), url.PathEscape(repo))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GitHub-Api-Version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("github request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read github response: %w", err)
	}

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, responseError(resp, body)
	}

	var created tracker.Created
	if err := json.Unmarshal(body, &created); err != nil {
		return nil, fmt.Errorf("failed to decode github response: %w", err)
	}
	return &created, nil
}

func responseError(resp *http.Response, body []byte) error {
	var payload struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &payload)
	apiErr := &APIError{StatusCode: resp.StatusCode, Message: payload.Message}

	if resp.StatusCode == http.StatusTooManyRequests ||
		(resp.StatusCode == http.StatusForbidden && resp.Header.Get("X-RateLimit-Remaining") == "0") {
		return fmt.Errorf("%w: %w", ErrRateLimited, apiErr)
	}
	return apiErr
}
