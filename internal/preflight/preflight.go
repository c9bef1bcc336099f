package preflight

import (
	"context"
	"path/filepath"

	"reelmeta/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckFile("movies.csv", cfg.MoviesCSV()),
		CheckFile("links.csv", cfg.LinksCSV()),
		CheckDirectoryAccess("Output directory", filepath.Dir(cfg.Paths.OutputFile)),
	}

	if cfg.TMDB.APIKey != "" {
		results = append(results, CheckTMDB(ctx, cfg.TMDB.BaseURL, cfg.TMDB.APIKey))
	} else {
		results = append(results, Result{Name: "TMDb API", Detail: "API key missing"})
	}

	if cfg.Semantic.Embedder == "http" {
		results = append(results, CheckEmbeddingAPI(ctx, cfg))
	}

	if cfg.Storage.Enabled {
		results = append(results, CheckStorage(ctx, cfg.Storage))
	}

	return results
}
