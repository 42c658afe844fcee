package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// Client is a thin HTTP client for the dashboard backend's REST API.
// It attaches the bearer token on every request, handles JSON
// marshaling, and retries HTTP 429 with exponential backoff.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
	maxRetries int
}

// Option customises a Client.
type Option func(*Client)

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

// WithMaxRetries overrides the number of 429 retries. Negative values are
// ignored.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// NewClient creates a backend client rooted at baseURL
// (e.g., https://api.example.com/api). The token source is consulted on
// every request, so it should read persisted storage rather than cache.
func NewClient(
	baseURL string,
	tokens oauth2.TokenSource,
	logger *zap.Logger,
	opts ...Option,
) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			// oauth2.NewClient would wrap tokens in a ReuseTokenSource,
			// caching the first token for the life of the client.
			Transport: &oauth2.Transport{
				Source: tokens,
				Base:   http.DefaultTransport,
			},
		},
		logger:     logger,
		maxRetries: 3,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// get performs an HTTP GET request and returns the raw response body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// put performs an HTTP PUT request with an optional JSON body.
func (c *Client) put(ctx context.Context, path string, body interface{}) ([]byte, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

// post performs an HTTP POST request with a JSON body.
func (c *Client) post(ctx context.Context, path string, body interface{}) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// do builds the request, handles rate limiting with exponential backoff,
// and maps non-2xx responses to typed errors. The caller decodes the body.
func (c *Client) do(
	ctx context.Context,
	method string,
	path string,
	body interface{},
) ([]byte, error) {
	url := c.baseURL + path

	var payload []byte
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		payload = data
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		var bodyReader io.Reader
		if payload != nil {
			bodyReader = bytes.NewReader(payload)
		}

		req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}

		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request %s %s: %w", method, path, err)
		}

		respBody, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response body: %w", readErr)
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := retryAfterDuration(resp, attempt)
			lastErr = fmt.Errorf("rate limited (429) on %s %s", method, path)
			c.logger.Debug("backend rate limited",
				zap.String("method", method),
				zap.String("path", path),
				zap.Duration("wait", waitDuration),
			)

			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		if resp.StatusCode == http.StatusUnauthorized {
			return nil, &AuthError{Message: fmt.Sprintf(
				"authentication failed (401) on %s %s: run `shipdesk login`",
				method, path,
			)}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, newAPIError(resp.StatusCode, method, path, respBody)
		}

		return respBody, nil
	}

	return nil, fmt.Errorf("max retries (%d) exceeded: %w", c.maxRetries, lastErr)
}

// retryAfterDuration reads the Retry-After header and computes a wait
// duration. Falls back to exponential backoff if the header is missing.
func retryAfterDuration(resp *http.Response, attempt int) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}

	backoff := time.Duration(1<<uint(attempt)) * time.Second
	if backoff > 30*time.Second {
		backoff = 30 * time.Second
	}
	return backoff
}
