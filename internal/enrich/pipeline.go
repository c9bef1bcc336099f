package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"reelmeta/internal/checkpoint"
	"reelmeta/internal/config"
	"reelmeta/internal/logging"
	"reelmeta/internal/movielens"
	"reelmeta/internal/notifications"
	"reelmeta/internal/services"
)

// Fetcher resolves enrichment details for a TMDb id.
type Fetcher interface {
	FetchDetails(ctx context.Context, tmdbID int64) (*movielens.Details, error)
}

// ErrLocked indicates another enrichment run holds the checkpoint lock.
var ErrLocked = errors.New("enrichment already running")

// Pipeline enriches the MovieLens movie table.
type Pipeline struct {
	cfg      *config.Config
	fetcher  Fetcher
	notifier notifications.Service
	logger   *slog.Logger
	limiter  *rate.Limiter
	limit    int
	progress io.Writer
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithNotifier sets the notification service.
func WithNotifier(notifier notifications.Service) Option {
	return func(p *Pipeline) {
		if notifier != nil {
			p.notifier = notifier
		}
	}
}

// WithLimiter replaces the request limiter derived from tmdb.requests_per_second.
func WithLimiter(limiter *rate.Limiter) Option {
	return func(p *Pipeline) {
		if limiter != nil {
			p.limiter = limiter
		}
	}
}

// WithLimit caps how many pending movies are fetched in this run. Zero means no cap.
func WithLimit(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.limit = n
		}
	}
}

// WithProgress renders a progress bar to w.
func WithProgress(w io.Writer) Option {
	return func(p *Pipeline) { p.progress = w }
}

// New constructs a pipeline from configuration.
func New(cfg *config.Config, fetcher Fetcher, opts ...Option) (*Pipeline, error) {
	if cfg == nil {
		return nil, services.Wrap(services.ErrConfiguration, "enrich", "init", "config is required", nil)
	}
	if fetcher == nil {
		return nil, services.Wrap(services.ErrConfiguration, "enrich", "init", "fetcher is required", nil)
	}
	rps := cfg.TMDB.RequestsPerSecond
	p := &Pipeline{
		cfg:      cfg,
		fetcher:  fetcher,
		notifier: notifications.NewService(cfg),
		logger:   logging.NewNop(),
		limiter:  rate.NewLimiter(rate.Limit(rps), max(1, int(rps/4))),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = logging.NewComponentLogger(p.logger, "enrich")
	return p, nil
}

// Result summarizes a run.
type Result struct {
	RunID       string
	Total       int
	WithTMDb    int
	Resumed     int
	Processed   int
	Pending     int
	Counts      checkpoint.Counts
	Coverage    Coverage
	Samples     []movielens.EnrichedMovie
	OutputFile  string
	Duration    time.Duration
	Interrupted bool
	Complete    bool
}

type outcome struct {
	index   int
	details *movielens.Details
	status  checkpoint.Status
	err     error
}

// Run executes the enrichment. On cancellation the partial table is flushed,
// the checkpoint is kept, and the context error is returned with the result.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	start := time.Now()
	runID := uuid.NewString()
	ctx = services.WithRunID(ctx, runID)
	logger := p.logger.With(logging.String(logging.FieldRunID, runID))

	if err := p.cfg.EnsureDirectories(); err != nil {
		return nil, err
	}
	lock := flock.New(p.cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: lock %s is held", ErrLocked, p.cfg.LockPath())
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("failed to release enrichment lock", logging.Error(err))
		}
	}()

	rows, err := movielens.LoadDataset(p.cfg.MoviesCSV(), p.cfg.LinksCSV())
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "enrich", "load dataset", "", err)
	}
	result := &Result{RunID: runID, Total: len(rows), OutputFile: p.cfg.Paths.OutputFile}
	for _, row := range rows {
		if row.Link.HasTMDb {
			result.WithTMDb++
		}
	}
	logger.Info("dataset loaded",
		logging.Int("movies", result.Total),
		logging.Int("with_tmdb_id", result.WithTMDb),
		logging.String("data_dir", p.cfg.Paths.DataDir),
	)

	store, err := checkpoint.Open(p.cfg.Paths.CheckpointFile)
	if err != nil {
		return nil, err
	}
	defer store.Close()
	if err := store.SetMeta(ctx, "run_id", runID); err != nil {
		return nil, err
	}

	pending, skipped, err := p.plan(ctx, store, rows, result)
	if err != nil {
		return nil, err
	}
	if err := store.PutBatch(ctx, skipped); err != nil {
		return nil, err
	}
	result.Pending = len(pending)

	if result.Resumed > 0 {
		logger.Info("resuming from checkpoint",
			logging.Int("already_processed", result.Resumed),
			logging.String("checkpoint", store.Path()),
			logging.String(logging.FieldEventType, "resume"),
		)
	}
	logger.Info("fetching movie details from tmdb",
		logging.Int("pending", len(pending)),
		logging.Float64("requests_per_second", float64(p.limiter.Limit())),
		logging.Duration("estimated_remaining", estimate(len(pending), p.limiter.Limit())),
	)
	p.notify(ctx, notifications.EventEnrichmentStarted, notifications.Payload{
		"pending": len(pending),
		"resumed": result.Resumed,
	})

	runErr := p.process(ctx, store, rows, pending, result, logger)
	if runErr != nil {
		if ctx.Err() != nil {
			result.Interrupted = true
			result.Duration = time.Since(start)
			logger.Warn("enrichment interrupted; checkpoint kept for resume",
				logging.Int("processed", result.Processed),
				logging.String("checkpoint", store.Path()),
				logging.String(logging.FieldEventType, "interrupted"),
				logging.String(logging.FieldErrorHint, "rerun 'reelmeta enrich' to continue"),
			)
			return result, ctx.Err()
		}
		p.notify(ctx, notifications.EventEnrichmentFailed, notifications.Payload{
			"context": "enrichment",
			"error":   runErr,
		})
		return result, runErr
	}

	if err := movielens.WriteEnrichedFile(p.cfg.Paths.OutputFile, rows); err != nil {
		return result, fmt.Errorf("write final output: %w", err)
	}
	counts, err := store.Counts(ctx)
	if err != nil {
		return result, err
	}
	result.Counts = counts
	result.Complete = counts.Total() >= result.Total && counts[checkpoint.StatusFailed] == 0
	result.Coverage = ComputeCoverage(rows)
	result.Samples = Samples(rows, p.cfg.Enrichment.SampleCount)
	result.Duration = time.Since(start)

	if result.Complete && !p.cfg.Enrichment.KeepCheckpoint {
		_ = store.Close()
		if err := checkpoint.Remove(store.Path()); err != nil {
			logger.Warn("failed to remove checkpoint", logging.Error(err))
		} else {
			logger.Debug("checkpoint removed", logging.String("checkpoint", store.Path()))
		}
	}

	logger.Info("enrichment complete",
		logging.Int("movies", result.Total),
		logging.Int("processed", result.Processed),
		logging.Int("failed", counts[checkpoint.StatusFailed]),
		logging.Int("not_found", counts[checkpoint.StatusNotFound]),
		logging.String("output", result.OutputFile),
		logging.Duration("duration", result.Duration),
	)
	p.notify(ctx, notifications.EventEnrichmentCompleted, notifications.Payload{
		"total":    result.Total,
		"duration": result.Duration,
		"coverage": result.Coverage.Summary(),
		"failed":   counts[checkpoint.StatusFailed],
	})
	return result, nil
}

// plan restores checkpointed details onto rows and returns the row indexes
// still to fetch plus skip records for movies without a TMDb id.
func (p *Pipeline) plan(ctx context.Context, store *checkpoint.Store, rows []movielens.EnrichedMovie, result *Result) ([]int, []checkpoint.Record, error) {
	records, err := store.All(ctx)
	if err != nil {
		return nil, nil, err
	}
	retryFailed := p.cfg.Enrichment.RetryFailed
	var (
		pending []int
		skipped []checkpoint.Record
	)
	for i := range rows {
		row := &rows[i]
		if rec, ok := records[row.Movie.ID]; ok && rec.Status.Done(retryFailed) {
			row.Details = rec.Details
			result.Resumed++
			continue
		}
		if !row.Link.HasTMDb {
			skipped = append(skipped, checkpoint.Record{MovieID: row.Movie.ID, Status: checkpoint.StatusSkipped})
			result.Processed++
			continue
		}
		pending = append(pending, i)
	}
	if p.limit > 0 && len(pending) > p.limit {
		pending = pending[:p.limit]
	}
	return pending, skipped, nil
}

func (p *Pipeline) process(ctx context.Context, store *checkpoint.Store, rows []movielens.EnrichedMovie, pending []int, result *Result, logger *slog.Logger) error {
	if len(pending) == 0 {
		return nil
	}
	workers := min(max(1, p.cfg.Enrichment.Workers), len(pending))
	interval := max(1, p.cfg.Enrichment.CheckpointInterval)

	jobs := make(chan int)
	outcomes := make(chan outcome, workers)
	group, gctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		defer close(jobs)
		for _, idx := range pending {
			select {
			case jobs <- idx:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range workers {
		group.Go(func() error {
			for idx := range jobs {
				out, err := p.fetchOne(gctx, rows[idx], idx, logger)
				if err != nil {
					return err
				}
				select {
				case outcomes <- out:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	waitErr := make(chan error, 1)
	go func() {
		waitErr <- group.Wait()
		close(outcomes)
	}()

	bar := p.newBar(len(pending))
	sampler := logging.NewProgressSampler(10)
	batch := make([]checkpoint.Record, 0, interval)
	done := 0
	var flushErr error
	flush := func() error {
		if err := store.PutBatch(context.WithoutCancel(ctx), batch); err != nil {
			return err
		}
		batch = batch[:0]
		if err := movielens.WriteEnrichedFile(p.cfg.Paths.OutputFile, rows); err != nil {
			return fmt.Errorf("write partial output: %w", err)
		}
		logger.Debug("checkpoint saved",
			logging.Int("processed", result.Processed),
			logging.String(logging.FieldEventType, "checkpoint_flush"),
		)
		return nil
	}

	for out := range outcomes {
		row := &rows[out.index]
		row.Details = out.details
		rec := checkpoint.Record{
			MovieID: row.Movie.ID,
			TMDbID:  row.Link.TMDbID,
			Status:  out.status,
			Details: out.details,
		}
		if out.err != nil {
			rec.ErrorMessage = out.err.Error()
		}
		batch = append(batch, rec)
		result.Processed++
		done++
		if bar != nil {
			_ = bar.Add(1)
		} else if percent := float64(done) / float64(len(pending)) * 100; sampler.ShouldLog(percent) {
			logger.Info("enrichment progress",
				logging.Int("done", done),
				logging.Int("pending", len(pending)),
				logging.Float64("percent", percent),
			)
		}
		if flushErr == nil && len(batch) >= interval {
			flushErr = flush()
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	groupErr := <-waitErr
	if flushErr == nil && len(batch) > 0 {
		flushErr = flush()
	} else if flushErr == nil && groupErr != nil {
		flushErr = movielens.WriteEnrichedFile(p.cfg.Paths.OutputFile, rows)
	}
	if groupErr != nil {
		return groupErr
	}
	return flushErr
}

// fetchOne waits for a limiter token and fetches a movie. Per-movie failures
// become outcomes; cancellation and configuration errors (a rejected API key)
// are returned and stop the run.
func (p *Pipeline) fetchOne(ctx context.Context, row movielens.EnrichedMovie, idx int, logger *slog.Logger) (outcome, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return outcome{}, err
	}
	mctx := services.WithMovieID(ctx, row.Movie.ID)
	details, err := p.fetcher.FetchDetails(mctx, row.Link.TMDbID)
	if err == nil {
		return outcome{index: idx, details: details, status: checkpoint.StatusEnriched}, nil
	}
	if ctx.Err() != nil {
		return outcome{}, ctx.Err()
	}
	if errors.Is(err, services.ErrConfiguration) {
		return outcome{}, err
	}
	status := services.FailureStatus(err)
	out := outcome{index: idx, status: status, err: err}
	if status == checkpoint.StatusNotFound {
		out.details = movielens.EmptyDetails()
		logger.Debug("movie not found on tmdb",
			logging.Int64(logging.FieldMovieID, row.Movie.ID),
			logging.Int64(logging.FieldTMDbID, row.Link.TMDbID),
		)
		return out, nil
	}
	logger.Warn("tmdb fetch failed",
		logging.Int64(logging.FieldMovieID, row.Movie.ID),
		logging.Int64(logging.FieldTMDbID, row.Link.TMDbID),
		logging.Error(err),
		logging.String(logging.FieldEventType, "fetch_failed"),
		logging.String(logging.FieldErrorHint, "rerun with --retry-failed to try again"),
	)
	return out, nil
}

func (p *Pipeline) newBar(total int) *progressbar.ProgressBar {
	if p.progress == nil || total <= 0 {
		return nil
	}
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.progress),
		progressbar.OptionSetDescription("Enriching movies"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("movies"),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(200*time.Millisecond),
		progressbar.OptionFullWidth(),
		progressbar.OptionOnCompletion(func() { _, _ = fmt.Fprintln(p.progress) }),
	)
}

func (p *Pipeline) notify(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := p.notifier.Publish(context.WithoutCancel(ctx), event, payload); err != nil {
		p.logger.Warn("notification failed",
			logging.String("event", string(event)),
			logging.Error(err),
		)
	}
}

func estimate(pending int, limit rate.Limit) time.Duration {
	if pending <= 0 || limit <= 0 || limit == rate.Inf {
		return 0
	}
	return time.Duration(float64(pending) / float64(limit) * float64(time.Second)).Round(time.Second)
}
