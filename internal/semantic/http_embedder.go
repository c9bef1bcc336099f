package semantic

import (
	"bytes"
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

	"github.com/hupe1980/vecgo/distance"

	"reelmeta/internal/services"
)

const (
	defaultHTTPTimeout    = 60 * time.Second
	defaultRetryAttempts  = 5
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 30 * time.Second
)

// HTTPConfig captures the settings required to talk to an embeddings API.
type HTTPConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Dimensions     int
	TimeoutSeconds int
}

// HTTPEmbedder calls an OpenAI-compatible /embeddings endpoint.
type HTTPEmbedder struct {
	cfg        HTTPConfig
	httpClient *http.Client

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
	sleep            func(context.Context, time.Duration) error
}

// HTTPOption customizes the HTTP embedder.
type HTTPOption func(*HTTPEmbedder)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(e *HTTPEmbedder) {
		if client != nil {
			e.httpClient = client
		}
	}
}

// WithRetry overrides the retry policy.
func WithRetry(attempts int, base, max time.Duration) HTTPOption {
	return func(e *HTTPEmbedder) {
		e.retryMaxAttempts = attempts
		e.retryBaseDelay = base
		e.retryMaxDelay = max
	}
}

// WithSleep overrides how retry sleeps are performed.
func WithSleep(sleep func(context.Context, time.Duration) error) HTTPOption {
	return func(e *HTTPEmbedder) {
		if sleep != nil {
			e.sleep = sleep
		}
	}
}

// NewHTTPEmbedder constructs an HTTP embedder.
func NewHTTPEmbedder(cfg HTTPConfig, opts ...HTTPOption) (*HTTPEmbedder, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "semantic", "http embedder",
			"semantic.api_key is required (or set EMBEDDING_API_KEY)", nil)
	}
	if cfg.BaseURL == "" || cfg.Model == "" {
		return nil, services.Wrap(services.ErrConfiguration, "semantic", "http embedder",
			"semantic.base_url and semantic.model are required", nil)
	}
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	e := &HTTPEmbedder{
		cfg:              cfg,
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
		sleep:            services.SleepWithContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

func (e *HTTPEmbedder) Dimensions() int { return e.cfg.Dimensions }

func (e *HTTPEmbedder) Name() string { return "http:" + e.cfg.Model }

type embeddingRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("embedding request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Embed sends texts in a single request and returns normalized vectors in input order.
func (e *HTTPEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	attempts := max(1, e.retryMaxAttempts)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		vectors, err := e.embedOnce(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		delay, retry := e.retryDelay(ctx, err, attempt, attempts)
		if !retry {
			return nil, err
		}
		if err := e.sleep(ctx, delay); err != nil {
			return nil, err
		}
		lastErr = err
	}
	return nil, fmt.Errorf("embedding request: failed after %d attempts: %w", attempts, lastErr)
}

func (e *HTTPEmbedder) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	endpoint, err := url.JoinPath(e.cfg.BaseURL, "embeddings")
	if err != nil {
		return nil, fmt.Errorf("embedding request: build url: %w", err)
	}
	encoded, err := json.Marshal(embeddingRequest{Model: e.cfg.Model, Input: texts, Dimensions: e.cfg.Dimensions})
	if err != nil {
		return nil, fmt.Errorf("embedding request: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, fmt.Errorf("embedding request: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: http error (timeout=%s): %w", e.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("embedding request: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(body),
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}
	var parsed embeddingResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("embedding request: decode response: %w", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("embedding request: api error: %s", strings.TrimSpace(parsed.Error.Message))
	}
	if len(parsed.Data) != len(texts) {
		return nil, fmt.Errorf("embedding request: expected %d embeddings, got %d", len(texts), len(parsed.Data))
	}
	out := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < 0 || item.Index >= len(out) {
			return nil, fmt.Errorf("embedding request: index %d out of range", item.Index)
		}
		if out[item.Index] != nil {
			return nil, fmt.Errorf("embedding request: duplicate index %d", item.Index)
		}
		if len(item.Embedding) == 0 {
			return nil, fmt.Errorf("embedding request: empty embedding at index %d", item.Index)
		}
		if e.cfg.Dimensions > 0 && len(item.Embedding) != e.cfg.Dimensions {
			return nil, fmt.Errorf("embedding request: expected %d dimensions, got %d", e.cfg.Dimensions, len(item.Embedding))
		}
		distance.NormalizeL2InPlace(item.Embedding)
		out[item.Index] = item.Embedding
	}
	return out, nil
}

func (e *HTTPEmbedder) retryDelay(ctx context.Context, err error, attempt, maxAttempts int) (time.Duration, bool) {
	if attempt >= maxAttempts || err == nil || ctx.Err() != nil {
		return 0, false
	}
	if errors.Is(err, context.Canceled) {
		return 0, false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusRequestTimeout,
			statusErr.StatusCode == http.StatusTooManyRequests,
			statusErr.StatusCode >= http.StatusInternalServerError:
			if statusErr.RetryAfter > 0 {
				return min(statusErr.RetryAfter, e.retryMaxDelay), true
			}
			return services.Backoff(attempt-1, e.retryBaseDelay, e.retryMaxDelay), true
		default:
			return 0, false
		}
	}
	if services.IsRetriable(err) {
		return services.Backoff(attempt-1, e.retryBaseDelay, e.retryMaxDelay), true
	}
	return 0, false
}

func parseRetryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		return max(time.Until(at), 0)
	}
	return 0
}
