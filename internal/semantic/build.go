package semantic

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"reelmeta/internal/movielens"
)

// BuildOptions controls artifact construction.
type BuildOptions struct {
	WordLimit   int
	BatchSize   int
	Concurrency int
	Ratings     map[int64]movielens.RatingStats
	Source      string
	// Progress, when set, receives the number of embedded movies after each batch.
	Progress func(done, total int)
}

// Build embeds every row and assembles an artifact in input order.
func Build(ctx context.Context, rows []movielens.EnrichedMovie, embedder Embedder, opts BuildOptions) (*Artifact, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	wordLimit := opts.WordLimit
	if wordLimit <= 0 {
		wordLimit = DefaultSynopsisWordLimit
	}
	batchSize := max(1, opts.BatchSize)
	concurrency := max(1, opts.Concurrency)

	records := make([]Record, len(rows))
	texts := make([]string, len(rows))
	for i, row := range rows {
		texts[i] = BuildText(row, wordLimit)
		records[i] = Record{
			MovieID: row.Movie.ID,
			TMDbID:  row.Link.TMDbID,
			Title:   row.Movie.Title,
			Genres:  row.Movie.Genres,
			Text:    texts[i],
		}
		if stats, ok := opts.Ratings[row.Movie.ID]; ok && stats.Count > 0 {
			records[i].Ratings = NewRatingSummary(stats)
		}
	}

	var done atomic.Int64
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(concurrency)
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		group.Go(func() error {
			vectors, err := embedder.Embed(gctx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embed movies %d-%d: %w", records[start].MovieID, records[end-1].MovieID, err)
			}
			if len(vectors) != end-start {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), end-start)
			}
			for i, vec := range vectors {
				records[start+i].Embedding = vec
			}
			if opts.Progress != nil {
				opts.Progress(int(done.Add(int64(end-start))), len(texts))
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	dims := embedder.Dimensions()
	if dims == 0 && len(records) > 0 {
		dims = len(records[0].Embedding)
	}
	for _, rec := range records {
		if len(rec.Embedding) == 0 || len(rec.Embedding) != dims {
			return nil, fmt.Errorf("movie %d: embedding has %d dimensions, expected %d",
				rec.MovieID, len(rec.Embedding), dims)
		}
	}
	return &Artifact{
		Header: Header{
			Version:           ArtifactVersion,
			Embedder:          embedder.Name(),
			Dimensions:        dims,
			SynopsisWordLimit: wordLimit,
			Count:             len(records),
			CreatedAt:         time.Now().UTC(),
			Source:            opts.Source,
		},
		Records: records,
	}, nil
}
