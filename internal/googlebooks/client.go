// Package googlebooks is a read-only client for the Google Books v1 API.
package googlebooks

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

	bherrors "github.com/lepinkainen/bookhaven/internal/errors"
	"github.com/lepinkainen/bookhaven/internal/ratelimit"
)

const (
	defaultBaseURL       = "https://www.googleapis.com/books/v1"
	defaultTimeout       = 10 * time.Second
	defaultRatePerSecond = 1
)

// ErrNotFound is returned when Google Books reports that a volume does not exist.
var ErrNotFound = errors.New("volume not found")

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client is a Google Books API client. It never retries; every failure other
// than a 404 comes back as a *errors.TransientError.
type Client struct {
	apiKey      string
	baseURL     string
	httpClient  HTTPDoer
	rateLimiter *ratelimit.Limiter
}

// Option is a functional option for configuring the Client.
type Option func(*Client)

// NewClient creates a new Google Books client.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:     defaultBaseURL,
		httpClient:  &http.Client{Timeout: defaultTimeout},
		rateLimiter: ratelimit.New("GoogleBooks", defaultRatePerSecond),
	}

	for _, opt := range opts {
		opt(client)
	}

	return client
}

// WithAPIKey sets the API key sent as the key query parameter.
func WithAPIKey(key string) Option {
	return func(client *Client) {
		client.apiKey = key
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(client *Client) {
		if c != nil {
			client.httpClient = c
		}
	}
}

// WithBaseURL sets a custom base URL for the API.
func WithBaseURL(base string) Option {
	return func(client *Client) {
		if base != "" {
			client.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithRateLimiter replaces the default limiter. nil disables pacing.
func WithRateLimiter(limiter *ratelimit.Limiter) Option {
	return func(client *Client) {
		client.rateLimiter = limiter
	}
}

// FetchByKey fetches a single volume by its Google Books id.
func (c *Client) FetchByKey(ctx context.Context, key string) (*Volume, error) {
	if key == "" {
		return nil, ErrNotFound
	}

	endpoint := c.endpoint("/volumes/"+url.PathEscape(key), url.Values{})

	slog.Debug("Fetching volume from Google Books", "key", key)

	var volume Volume
	if err := c.getJSON(ctx, "googlebooks.fetch", endpoint, &volume); err != nil {
		return nil, err
	}

	slog.Debug("Fetched volume from Google Books", "key", key, "id", volume.ID)
	return &volume, nil
}

// Search runs a keyword query. offset and limit are forwarded verbatim as
// startIndex and maxResults; results keep the upstream ranking.
func (c *Client) Search(ctx context.Context, query string, offset, limit int) ([]Volume, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("startIndex", strconv.Itoa(offset))
	params.Set("maxResults", strconv.Itoa(limit))

	endpoint := c.endpoint("/volumes", params)

	slog.Debug("Searching Google Books", "query", query, "offset", offset, "limit", limit)

	var result searchResponse
	if err := c.getJSON(ctx, "googlebooks.search", endpoint, &result); err != nil {
		return nil, err
	}

	if result.Items == nil {
		return []Volume{}, nil
	}

	slog.Debug("Google Books search finished", "query", query, "total_items", result.TotalItems, "returned", len(result.Items))
	return result.Items, nil
}

func (c *Client) endpoint(path string, params url.Values) string {
	if c.apiKey != "" {
		params.Set("key", c.apiKey)
	}
	endpoint := c.baseURL + path
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}
	return endpoint
}

func (c *Client) getJSON(ctx context.Context, op, endpoint string, target any) error {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return bherrors.NewTransientError(op, 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return bherrors.NewTransientError(op, 0, fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return bherrors.NewTransientError(op, 0, err)
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		return bherrors.NewTransientError(op, resp.StatusCode,
			bherrors.NewRateLimitErrorWithRetry("google books quota exceeded", retryAfter))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return bherrors.NewTransientError(op, resp.StatusCode, errors.New(strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return bherrors.NewTransientError(op, 0, fmt.Errorf("decoding response: %w", err))
	}
	return nil
}

func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
