package tmdb

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"reelmeta/internal/logging"
	"reelmeta/internal/movielens"
	"reelmeta/internal/services"
)

// Retry configuration for TMDb detail fetches.
const (
	DefaultMaxRetries = 6
	InitialBackoff    = time.Second
	MaxBackoff        = 30 * time.Second
)

// Fetcher wraps a DetailsGetter with bounded retries and maps the payload to
// enrichment details.
type Fetcher struct {
	getter         DetailsGetter
	castLimit      int
	maxRetries     int
	rateLimitWait  time.Duration
	initialBackoff time.Duration
	maxBackoff     time.Duration
	logger         *slog.Logger
	sleep          func(context.Context, time.Duration) error
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithCastLimit sets how many billed cast members are kept.
func WithCastLimit(limit int) FetcherOption {
	return func(f *Fetcher) { f.castLimit = limit }
}

// WithMaxRetries bounds the number of retries after the first attempt.
func WithMaxRetries(n int) FetcherOption {
	return func(f *Fetcher) {
		if n >= 0 {
			f.maxRetries = n
		}
	}
}

// WithRateLimitWait overrides the wait used when a 429 carries no Retry-After.
func WithRateLimitWait(d time.Duration) FetcherOption {
	return func(f *Fetcher) {
		if d > 0 {
			f.rateLimitWait = d
		}
	}
}

// WithBackoff overrides the transient-failure backoff window.
func WithBackoff(initial, max time.Duration) FetcherOption {
	return func(f *Fetcher) {
		f.initialBackoff = initial
		f.maxBackoff = max
	}
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) FetcherOption {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithSleeper replaces the context-aware sleep, letting tests skip real waits.
func WithSleeper(sleep func(context.Context, time.Duration) error) FetcherOption {
	return func(f *Fetcher) {
		if sleep != nil {
			f.sleep = sleep
		}
	}
}

// NewFetcher constructs a Fetcher around getter.
func NewFetcher(getter DetailsGetter, opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		getter:         getter,
		castLimit:      5,
		maxRetries:     DefaultMaxRetries,
		rateLimitWait:  DefaultRetryAfter,
		initialBackoff: InitialBackoff,
		maxBackoff:     MaxBackoff,
		logger:         logging.NewNop(),
		sleep:          services.SleepWithContext,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchDetails returns enrichment details for tmdbID. A movie TMDb does not
// know returns an error matching services.ErrNotFound; callers record empty
// details for it.
func (f *Fetcher) FetchDetails(ctx context.Context, tmdbID int64) (*movielens.Details, error) {
	payload, err := f.FetchWithRetry(ctx, tmdbID)
	if err != nil {
		return nil, err
	}
	return payload.Details(f.castLimit), nil
}

// FetchWithRetry calls the API, waiting out rate limits and backing off on
// transient failures, up to maxRetries retries.
func (f *Fetcher) FetchWithRetry(ctx context.Context, tmdbID int64) (*MovieDetails, error) {
	for attempt := 0; ; attempt++ {
		payload, err := f.getter.GetMovieFullDetails(ctx, tmdbID)
		if err == nil {
			return payload, nil
		}
		if errors.Is(err, services.ErrNotFound) || !services.IsRetriable(err) {
			return nil, err
		}
		if attempt >= f.maxRetries {
			return nil, services.Wrap(services.ErrTransient, "tmdb", "fetch details", "retries exhausted", err)
		}

		wait := services.Backoff(attempt, f.initialBackoff, f.maxBackoff)
		event := "tmdb_retry"
		var rateErr *RateLimitError
		if errors.As(err, &rateErr) {
			event = "tmdb_rate_limited"
			wait = rateErr.RetryAfter
			if wait <= 0 {
				wait = f.rateLimitWait
			}
		}
		f.logger.Warn("tmdb request failed, retrying",
			logging.Int64(logging.FieldTMDbID, tmdbID),
			logging.Duration("wait", wait),
			logging.Int("attempt", attempt+1),
			logging.Int("max_retries", f.maxRetries),
			logging.Error(err),
			logging.String(logging.FieldEventType, event),
			logging.String(logging.FieldErrorHint, "lower tmdb.requests_per_second if this persists"),
		)
		if err := f.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}
