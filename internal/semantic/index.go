package semantic

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/hupe1980/vecgo/distance"
	"golang.org/x/text/cases"

	"reelmeta/internal/services"
)

// Match is a scored neighbour.
type Match struct {
	Record *Record
	Score  float32
}

// Index answers cosine nearest-neighbour queries over normalized vectors.
type Index struct {
	records []Record
	byID    map[int64]int
	dims    int
}

// NewIndex indexes records. All embeddings must share one dimension.
func NewIndex(records []Record) (*Index, error) {
	idx := &Index{records: records, byID: make(map[int64]int, len(records))}
	for i := range records {
		rec := &records[i]
		if idx.dims == 0 {
			idx.dims = len(rec.Embedding)
		}
		if len(rec.Embedding) != idx.dims {
			return nil, fmt.Errorf("movie %d: embedding has %d dimensions, expected %d", rec.MovieID, len(rec.Embedding), idx.dims)
		}
		idx.byID[rec.MovieID] = i
	}
	return idx, nil
}

// Len returns the number of indexed movies.
func (x *Index) Len() int { return len(x.records) }

// Get returns the record for movieID.
func (x *Index) Get(movieID int64) (*Record, bool) {
	i, ok := x.byID[movieID]
	if !ok {
		return nil, false
	}
	return &x.records[i], true
}

// Similar returns the k movies closest to movieID, excluding itself.
func (x *Index) Similar(movieID int64, k int) ([]Match, error) {
	rec, ok := x.Get(movieID)
	if !ok {
		return nil, services.Wrap(services.ErrNotFound, "semantic", "similar",
			fmt.Sprintf("movie %d is not in the artifact", movieID), nil)
	}
	return x.search(rec.Embedding, k, movieID), nil
}

// Query returns the k movies closest to vec.
func (x *Index) Query(vec []float32, k int) ([]Match, error) {
	if len(vec) != x.dims {
		return nil, services.Wrap(services.ErrValidation, "semantic", "query",
			fmt.Sprintf("vector has %d dimensions, index has %d", len(vec), x.dims), nil)
	}
	normalized, ok := distance.NormalizeL2Copy(vec)
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "semantic", "query", "zero vector", nil)
	}
	return x.search(normalized, k, -1), nil
}

func (x *Index) search(query []float32, k int, exclude int64) []Match {
	if k <= 0 {
		return nil
	}
	matches := make([]Match, 0, len(x.records))
	for i := range x.records {
		rec := &x.records[i]
		if rec.MovieID == exclude {
			continue
		}
		matches = append(matches, Match{Record: rec, Score: distance.Dot(query, rec.Embedding)})
	}
	slices.SortFunc(matches, func(a, b Match) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Record.MovieID, b.Record.MovieID)
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

// FindByTitle returns movies whose title matches query, case-folded. Exact
// matches on the title without its year come first, then substring matches,
// each group in artifact order.
func (x *Index) FindByTitle(query string) []*Record {
	fold := cases.Fold()
	needle := strings.TrimSpace(fold.String(query))
	if needle == "" {
		return nil
	}
	var exact, partial []*Record
	for i := range x.records {
		rec := &x.records[i]
		title := fold.String(rec.Title)
		switch {
		case title == needle || fold.String(CleanTitle(rec.Title)) == needle:
			exact = append(exact, rec)
		case strings.Contains(title, needle):
			partial = append(partial, rec)
		}
	}
	return append(exact, partial...)
}
