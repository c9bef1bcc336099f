package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reelmeta/internal/services"
)

// DefaultRetryAfter is the wait applied after a 429 with no usable Retry-After header.
const DefaultRetryAfter = 10 * time.Second

// DetailsGetter fetches raw movie details by TMDb id.
type DetailsGetter interface {
	GetMovieFullDetails(ctx context.Context, movieID int64) (*MovieDetails, error)
}

// Client provides access to the TMDb API.
type Client struct {
	apiKey     string
	baseURL    string
	language   string
	httpClient *http.Client
}

var _ DetailsGetter = (*Client)(nil)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithTimeout sets the per-request timeout on the default HTTP client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// New creates a TMDb client.
func New(apiKey, baseURL, language string, opts ...Option) (*Client, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("tmdb api key required")
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		return nil, errors.New("tmdb base url required")
	}
	client := &Client{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		language:   strings.TrimSpace(language),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// RateLimitError reports an HTTP 429 from TMDb. RetryAfter is zero when the
// response did not say how long to wait.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	if e.RetryAfter <= 0 {
		return "tmdb rate limited"
	}
	return fmt.Sprintf("tmdb rate limited (retry after %s)", e.RetryAfter)
}

// Unwrap lets errors.Is match services.ErrRateLimited.
func (e *RateLimitError) Unwrap() error { return services.ErrRateLimited }

// GetMovieFullDetails fetches movie details with credits and keywords appended.
func (c *Client) GetMovieFullDetails(ctx context.Context, movieID int64) (*MovieDetails, error) {
	if movieID <= 0 {
		return nil, services.Wrap(services.ErrValidation, "tmdb", "movie details", "movie id must be positive", nil)
	}
	endpoint, err := url.Parse(fmt.Sprintf("%s/movie/%d", c.baseURL, movieID))
	if err != nil {
		return nil, fmt.Errorf("parse tmdb url: %w", err)
	}
	params := url.Values{}
	params.Set("api_key", c.apiKey)
	params.Set("append_to_response", "credits,keywords")
	if c.language != "" {
		params.Set("language", c.language)
	}
	endpoint.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	requestStart := time.Now()
	resp, err := c.httpClient.Do(req)
	latency := time.Since(requestStart)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, services.Wrap(services.ErrTransient, "tmdb", "movie details",
			fmt.Sprintf("execute request (latency=%v)", latency), err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		drain(resp.Body)
		return nil, services.Wrap(services.ErrNotFound, "tmdb", "movie details",
			fmt.Sprintf("movie %d not found", movieID), nil)
	case resp.StatusCode == http.StatusTooManyRequests:
		drain(resp.Body)
		return nil, &RateLimitError{RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())}
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		drain(resp.Body)
		return nil, services.Wrap(services.ErrConfiguration, "tmdb", "movie details",
			fmt.Sprintf("tmdb rejected the api key (%d)", resp.StatusCode), nil)
	case resp.StatusCode >= 500:
		drain(resp.Body)
		return nil, services.Wrap(services.ErrTransient, "tmdb", "movie details",
			fmt.Sprintf("tmdb returned %d (latency=%v)", resp.StatusCode, latency), nil)
	default:
		drain(resp.Body)
		return nil, fmt.Errorf("tmdb movie details returned %d (latency=%v)", resp.StatusCode, latency)
	}

	var payload MovieDetails
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode movie details: %w", err)
	}
	return &payload, nil
}

func drain(body io.Reader) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return max(time.Duration(secs)*time.Second, 0)
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(at.Sub(now), 0)
	}
	return 0
}
