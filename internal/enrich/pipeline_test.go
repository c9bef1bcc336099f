package enrich_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/gofrs/flock"
	"golang.org/x/time/rate"

	"reelmeta/internal/checkpoint"
	"reelmeta/internal/config"
	"reelmeta/internal/enrich"
	"reelmeta/internal/movielens"
	"reelmeta/internal/services"
	"reelmeta/internal/testsupport"
)

const moviesCSV = "movieId,title,genres\n" +
	"1,Toy Story (1995),Adventure|Animation\n" +
	"2,Lost Film (1920),Drama\n" +
	"3,No Link (2001),Comedy\n" +
	"4,Flaky (1999),Action\n"

const linksCSV = "movieId,imdbId,tmdbId\n" +
	"1,0114709,862\n" +
	"2,0000001,8844\n" +
	"3,0000002,\n" +
	"4,0000003,555\n"

type fakeFetcher struct {
	mu      sync.Mutex
	calls   map[int64]int
	details map[int64]*movielens.Details
	errs    map[int64]error
	hook    func(tmdbID int64)
}

func newFakeFetcher() *fakeFetcher {
	runtime := int64(81)
	return &fakeFetcher{
		calls: make(map[int64]int),
		details: map[int64]*movielens.Details{
			862: {Synopsis: "Toys come alive.", Cast: []string{"Tom Hanks"}, Directors: []string{"John Lasseter"}, Runtime: &runtime},
		},
		errs: map[int64]error{
			8844: services.Wrap(services.ErrNotFound, "tmdb", "movie details", "missing", nil),
			555:  services.Wrap(services.ErrTransient, "tmdb", "movie details", "retries exhausted", nil),
		},
	}
}

func (f *fakeFetcher) FetchDetails(_ context.Context, tmdbID int64) (*movielens.Details, error) {
	f.mu.Lock()
	f.calls[tmdbID]++
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		hook(tmdbID)
	}
	if err, ok := f.errs[tmdbID]; ok {
		return nil, err
	}
	if d, ok := f.details[tmdbID]; ok {
		return d, nil
	}
	return movielens.EmptyDetails(), nil
}

func (f *fakeFetcher) callCount(tmdbID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[tmdbID]
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithDataset(moviesCSV, linksCSV))
	cfg.Enrichment.Workers = 2
	cfg.Enrichment.CheckpointInterval = 1
	cfg.Notifications.NtfyTopic = ""
	return cfg
}

func newPipeline(t *testing.T, cfg *config.Config, fetcher enrich.Fetcher, opts ...enrich.Option) *enrich.Pipeline {
	t.Helper()
	opts = append([]enrich.Option{enrich.WithLimiter(rate.NewLimiter(rate.Inf, 1))}, opts...)
	p, err := enrich.New(cfg, fetcher, opts...)
	if err != nil {
		t.Fatalf("enrich.New: %v", err)
	}
	return p
}

func TestRunEnrichesAndRecordsOutcomes(t *testing.T) {
	cfg := newTestConfig(t)
	fetcher := newFakeFetcher()

	result, err := newPipeline(t, cfg, fetcher).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Total != 4 || result.WithTMDb != 3 || result.Processed != 4 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if fetcher.callCount(862) != 1 || fetcher.callCount(8844) != 1 || fetcher.callCount(555) != 1 {
		t.Fatalf("unexpected fetch calls: %v", fetcher.calls)
	}
	if result.Counts[checkpoint.StatusEnriched] != 1 ||
		result.Counts[checkpoint.StatusNotFound] != 1 ||
		result.Counts[checkpoint.StatusSkipped] != 1 ||
		result.Counts[checkpoint.StatusFailed] != 1 {
		t.Fatalf("unexpected counts: %v", result.Counts)
	}
	if result.Complete {
		t.Fatal("run with failures should not be complete")
	}
	if !checkpoint.Exists(cfg.Paths.CheckpointFile) {
		t.Fatal("checkpoint should be kept while failures remain")
	}

	rows, err := movielens.LoadEnriched(cfg.Paths.OutputFile)
	if err != nil {
		t.Fatalf("LoadEnriched: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if !rows[0].HasSynopsis() || rows[0].Details.Directors[0] != "John Lasseter" {
		t.Fatalf("movie 1 not enriched: %+v", rows[0].Details)
	}
	if rows[1].Details == nil || rows[1].Details.Synopsis != "" {
		t.Fatalf("not-found movie should carry empty details: %+v", rows[1].Details)
	}
	if rows[2].Details != nil || rows[3].Details != nil {
		t.Fatal("skipped and failed movies should have empty enrichment columns")
	}

	if got := result.Coverage.Features[0]; got.Feature != "synopsis" || got.Count != 1 || got.Percent != 25 {
		t.Fatalf("unexpected synopsis coverage: %+v", got)
	}
	if len(result.Samples) != 1 || result.Samples[0].Movie.ID != 1 {
		t.Fatalf("unexpected samples: %+v", result.Samples)
	}
}

func TestRunResumesAndRetriesFailed(t *testing.T) {
	cfg := newTestConfig(t)
	fetcher := newFakeFetcher()
	if _, err := newPipeline(t, cfg, fetcher).Run(context.Background()); err != nil {
		t.Fatalf("first run failed: %v", err)
	}

	second := newFakeFetcher()
	delete(second.errs, 555)
	if _, err := newPipeline(t, cfg, second).Run(context.Background()); err != nil {
		t.Fatalf("resume run failed: %v", err)
	}
	if len(second.calls) != 0 {
		t.Fatalf("resume without retry should not refetch, got %v", second.calls)
	}

	cfg.Enrichment.RetryFailed = true
	result, err := newPipeline(t, cfg, second).Run(context.Background())
	if err != nil {
		t.Fatalf("retry run failed: %v", err)
	}
	if second.callCount(555) != 1 || second.callCount(862) != 0 {
		t.Fatalf("retry should only refetch failed movies, got %v", second.calls)
	}
	if result.Resumed != 3 {
		t.Fatalf("expected 3 resumed movies, got %d", result.Resumed)
	}
	if !result.Complete {
		t.Fatalf("expected complete run, counts %v", result.Counts)
	}
	if checkpoint.Exists(cfg.Paths.CheckpointFile) {
		t.Fatal("checkpoint should be removed after a complete run")
	}
	rows, err := movielens.LoadEnriched(cfg.Paths.OutputFile)
	if err != nil {
		t.Fatalf("LoadEnriched: %v", err)
	}
	if !rows[0].HasSynopsis() || rows[3].Details == nil {
		t.Fatal("resumed and retried rows should both be present in the output")
	}
}

func TestRunKeepCheckpoint(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Enrichment.KeepCheckpoint = true
	fetcher := newFakeFetcher()
	delete(fetcher.errs, 555)

	result, err := newPipeline(t, cfg, fetcher).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !result.Complete || !checkpoint.Exists(cfg.Paths.CheckpointFile) {
		t.Fatal("checkpoint should be kept when keep_checkpoint is set")
	}
}

func TestRunLimit(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Enrichment.Workers = 1
	fetcher := newFakeFetcher()

	result, err := newPipeline(t, cfg, fetcher, enrich.WithLimit(1)).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if result.Pending != 1 || fetcher.callCount(862) != 1 || fetcher.callCount(555) != 0 {
		t.Fatalf("limit not applied: pending=%d calls=%v", result.Pending, fetcher.calls)
	}
	if result.Complete {
		t.Fatal("limited run should not be complete")
	}
}

func TestRunCancellationKeepsCheckpointAndPartialOutput(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Enrichment.Workers = 1
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fetcher := newFakeFetcher()
	fetcher.hook = func(tmdbID int64) {
		if tmdbID == 8844 {
			cancel()
		}
	}

	result, err := newPipeline(t, cfg, fetcher).Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if result == nil || !result.Interrupted {
		t.Fatalf("expected interrupted result, got %+v", result)
	}
	if !checkpoint.Exists(cfg.Paths.CheckpointFile) {
		t.Fatal("checkpoint should survive interruption")
	}
	data := testsupport.ReadText(t, cfg.Paths.OutputFile)
	if !strings.Contains(data, "Toys come alive.") {
		t.Fatalf("partial output should include completed movies:\n%s", data)
	}

	store := testsupport.MustOpenStore(t, cfg)
	rec, err := store.Get(context.Background(), 1)
	if err != nil || rec == nil || rec.Status != checkpoint.StatusEnriched {
		t.Fatalf("expected movie 1 checkpointed, got %+v err=%v", rec, err)
	}
	if rec, _ := store.Get(context.Background(), 2); rec != nil {
		t.Fatalf("interrupted fetch should not be recorded, got %+v", rec)
	}
}

func TestRunRejectsConcurrentRun(t *testing.T) {
	cfg := newTestConfig(t)
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories: %v", err)
	}
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil || !locked {
		t.Fatalf("TryLock: locked=%v err=%v", locked, err)
	}
	defer lock.Unlock()

	_, err = newPipeline(t, cfg, newFakeFetcher()).Run(context.Background())
	if !errors.Is(err, enrich.ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
}

func TestRunMissingDataset(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	_, err := newPipeline(t, cfg, newFakeFetcher()).Run(context.Background())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewRequiresFetcher(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if _, err := enrich.New(cfg, nil); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestRunStopsOnRejectedAPIKey(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Enrichment.Workers = 1
	fetcher := newFakeFetcher()
	rejected := services.Wrap(services.ErrConfiguration, "tmdb", "movie details", "tmdb rejected the api key (401)", nil)
	fetcher.errs = map[int64]error{862: rejected, 8844: rejected, 555: rejected}

	_, err := newPipeline(t, cfg, fetcher).Run(context.Background())
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if calls := fetcher.callCount(862) + fetcher.callCount(8844) + fetcher.callCount(555); calls != 1 {
		t.Fatalf("expected the run to stop after the first rejection, got %d calls", calls)
	}

	store, err := checkpoint.Open(cfg.Paths.CheckpointFile)
	if err != nil {
		t.Fatalf("open checkpoint: %v", err)
	}
	defer store.Close()
	counts, err := store.Counts(context.Background())
	if err != nil {
		t.Fatalf("Counts: %v", err)
	}
	if counts[checkpoint.StatusFailed] != 0 {
		t.Fatalf("rejected key should not record failures, got %v", counts)
	}
}
