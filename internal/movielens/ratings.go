package movielens

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"slices"
	"strconv"

	"reelmeta/internal/fileutil"
)

// RatingAccumulator aggregates streamed ratings into per-movie statistics.
type RatingAccumulator struct {
	stats map[int64]*RatingStats
	total int64
}

// NewRatingAccumulator returns an empty accumulator.
func NewRatingAccumulator() *RatingAccumulator {
	return &RatingAccumulator{stats: make(map[int64]*RatingStats)}
}

// Add folds a rating into the movie's statistics.
func (a *RatingAccumulator) Add(r Rating) {
	a.total++
	s, ok := a.stats[r.MovieID]
	if !ok {
		a.stats[r.MovieID] = &RatingStats{
			MovieID: r.MovieID,
			Count:   1,
			Sum:     r.Value,
			Min:     r.Value,
			Max:     r.Value,
			FirstAt: r.Timestamp,
			LastAt:  r.Timestamp,
		}
		return
	}
	s.Count++
	s.Sum += r.Value
	s.Min = min(s.Min, r.Value)
	s.Max = max(s.Max, r.Value)
	if !r.Timestamp.IsZero() {
		if s.FirstAt.IsZero() || r.Timestamp.Before(s.FirstAt) {
			s.FirstAt = r.Timestamp
		}
		if r.Timestamp.After(s.LastAt) {
			s.LastAt = r.Timestamp
		}
	}
}

// Total returns the number of ratings seen.
func (a *RatingAccumulator) Total() int64 { return a.total }

// Stats returns per-movie statistics ordered by movie ID.
func (a *RatingAccumulator) Stats() []RatingStats {
	out := make([]RatingStats, 0, len(a.stats))
	for _, s := range a.stats {
		out = append(out, *s)
	}
	slices.SortFunc(out, func(x, y RatingStats) int {
		switch {
		case x.MovieID < y.MovieID:
			return -1
		case x.MovieID > y.MovieID:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Lookup returns statistics keyed by movie ID.
func (a *RatingAccumulator) Lookup() map[int64]RatingStats {
	out := make(map[int64]RatingStats, len(a.stats))
	for id, s := range a.stats {
		out[id] = *s
	}
	return out
}

// AggregateRatingsFile streams ratings.csv at path into an accumulator.
func AggregateRatingsFile(ctx context.Context, path string) (*RatingAccumulator, error) {
	file, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	acc := NewRatingAccumulator()
	if _, err := StreamRatings(ctx, file, func(r Rating) error {
		acc.Add(r)
		return nil
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return acc, nil
}

// WriteRatingStatsFile atomically writes per-movie rating statistics.
func WriteRatingStatsFile(path string, stats []RatingStats) error {
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		return WriteRatingStats(w, stats)
	})
}

// WriteRatingStats writes per-movie statistics as CSV.
func WriteRatingStats(w io.Writer, stats []RatingStats) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"movieId", "rating_count", "rating_mean", "rating_min", "rating_max", "first_rated", "last_rated"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, s := range stats {
		record := []string{
			strconv.FormatInt(s.MovieID, 10),
			strconv.FormatInt(s.Count, 10),
			strconv.FormatFloat(s.Mean(), 'f', 4, 64),
			strconv.FormatFloat(s.Min, 'f', -1, 64),
			strconv.FormatFloat(s.Max, 'f', -1, 64),
			unixOrEmpty(s.FirstAt),
			unixOrEmpty(s.LastAt),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write movie %d: %w", s.MovieID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}
