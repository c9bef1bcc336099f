package testsupport

import (
	"path/filepath"
	"testing"

	"reelmeta/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.TMDB.APIKey = "test"
	cfgVal.Paths.DataDir = filepath.Join(base, "ml-32m")
	cfgVal.Paths.OutputFile = filepath.Join(base, "out", "movies_enriched_big.csv")
	cfgVal.Paths.CheckpointFile = filepath.Join(base, "out", "enrichment_checkpoint.db")
	cfgVal.Paths.SemanticFile = filepath.Join(base, "out", "movies_enriched_with_semantic.jsonl.zst")
	cfgVal.Paths.RatingStatsFile = filepath.Join(base, "out", "movie_rating_stats.csv")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Enrichment.Progress = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTMDBKey sets the TMDB API key on the test config.
func WithTMDBKey(key string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TMDB.APIKey = key
	}
}

// WithTMDBBaseURL points the TMDb client at a test server.
func WithTMDBBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.TMDB.BaseURL = url
	}
}

// WithDataset writes movies.csv and links.csv fixtures into the data dir.
func WithDataset(movies, links string) ConfigOption {
	return func(b *configBuilder) {
		WriteText(b.t, filepath.Join(b.cfg.Paths.DataDir, "movies.csv"), movies)
		WriteText(b.t, filepath.Join(b.cfg.Paths.DataDir, "links.csv"), links)
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.LogDir)
}
