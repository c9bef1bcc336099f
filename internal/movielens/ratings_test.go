package movielens

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestRatingAccumulator(t *testing.T) {
	acc := NewRatingAccumulator()
	acc.Add(Rating{UserID: 1, MovieID: 20, Value: 4.0, Timestamp: time.Unix(200, 0)})
	acc.Add(Rating{UserID: 2, MovieID: 10, Value: 3.5, Timestamp: time.Unix(100, 0)})
	acc.Add(Rating{UserID: 3, MovieID: 20, Value: 2.0, Timestamp: time.Unix(50, 0)})
	acc.Add(Rating{UserID: 4, MovieID: 20, Value: 5.0, Timestamp: time.Unix(300, 0)})

	if acc.Total() != 4 {
		t.Fatalf("expected 4 ratings, got %d", acc.Total())
	}
	stats := acc.Stats()
	if len(stats) != 2 || stats[0].MovieID != 10 || stats[1].MovieID != 20 {
		t.Fatalf("stats not ordered by movie id: %+v", stats)
	}
	s := stats[1]
	if s.Count != 3 || s.Min != 2.0 || s.Max != 5.0 {
		t.Fatalf("unexpected stats %+v", s)
	}
	if got := s.Mean(); got < 3.666 || got > 3.667 {
		t.Fatalf("unexpected mean %v", got)
	}
	if s.FirstAt.Unix() != 50 || s.LastAt.Unix() != 300 {
		t.Fatalf("unexpected time range %v..%v", s.FirstAt, s.LastAt)
	}
	if _, ok := acc.Lookup()[10]; !ok {
		t.Fatal("lookup missing movie 10")
	}
}

func TestRatingStatsMeanEmpty(t *testing.T) {
	if (RatingStats{}).Mean() != 0 {
		t.Fatal("mean of no ratings should be 0")
	}
}

func TestWriteRatingStats(t *testing.T) {
	var buf bytes.Buffer
	stats := []RatingStats{{MovieID: 7, Count: 2, Sum: 7, Min: 3, Max: 4, FirstAt: time.Unix(10, 0), LastAt: time.Unix(20, 0)}}
	if err := WriteRatingStats(&buf, stats); err != nil {
		t.Fatalf("WriteRatingStats: %v", err)
	}
	want := "movieId,rating_count,rating_mean,rating_min,rating_max,first_rated,last_rated\n7,2,3.5000,3,4,10,20\n"
	if buf.String() != want {
		t.Fatalf("unexpected output:\n%s", buf.String())
	}
}

func TestAggregateRatingsFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ratings.csv")
	content := "userId,movieId,rating,timestamp\n1,1,4.0,1\n2,1,2.0,2\n2,3,5.0,3\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	acc, err := AggregateRatingsFile(context.Background(), path)
	if err != nil {
		t.Fatalf("AggregateRatingsFile: %v", err)
	}
	out := filepath.Join(dir, "stats.csv")
	if err := WriteRatingStatsFile(out, acc.Stats()); err != nil {
		t.Fatalf("WriteRatingStatsFile: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "1,2,3.0000,2,4,1,2\n") || !strings.Contains(string(data), "3,1,5.0000,5,5,3,3\n") {
		t.Fatalf("unexpected stats file:\n%s", data)
	}
}
