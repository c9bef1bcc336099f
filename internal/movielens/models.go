package movielens

import (
	"strconv"
	"strings"
	"time"
)

// NoGenres is the MovieLens placeholder for movies without genres.
const NoGenres = "(no genres listed)"

// Movie is a row of movies.csv.
type Movie struct {
	ID     int64
	Title  string
	Genres []string
}

// GenreString returns genres in MovieLens `|` form.
func (m Movie) GenreString() string {
	if len(m.Genres) == 0 {
		return NoGenres
	}
	return strings.Join(m.Genres, "|")
}

// Link is a row of links.csv.
type Link struct {
	MovieID int64
	IMDbID  string
	TMDbID  int64
	HasTMDb bool
}

// Rating is a row of ratings.csv.
type Rating struct {
	UserID    int64
	MovieID   int64
	Value     float64
	Timestamp time.Time
}

// Details holds the TMDb enrichment columns. Pointer fields are nil when TMDb
// did not report a value.
type Details struct {
	Synopsis            string   `json:"synopsis"`
	Tagline             string   `json:"tagline"`
	ReleaseDate         string   `json:"release_date"`
	Runtime             *int64   `json:"runtime,omitempty"`
	OriginalLanguage    string   `json:"original_language"`
	OriginalTitle       string   `json:"original_title"`
	Status              string   `json:"status"`
	Budget              *int64   `json:"budget,omitempty"`
	Revenue             *int64   `json:"revenue,omitempty"`
	VoteAverage         *float64 `json:"vote_average,omitempty"`
	VoteCount           *int64   `json:"vote_count,omitempty"`
	Popularity          *float64 `json:"popularity,omitempty"`
	Cast                []string `json:"cast,omitempty"`
	Directors           []string `json:"directors,omitempty"`
	Keywords            []string `json:"keywords,omitempty"`
	ProductionCompanies []string `json:"production_companies,omitempty"`
	ProductionCountries []string `json:"production_countries,omitempty"`
	Adult               bool     `json:"adult"`
	Homepage            string   `json:"homepage"`
}

// EmptyDetails is recorded for movies TMDb does not know: text columns are
// empty, numeric columns missing, adult false.
func EmptyDetails() *Details {
	return &Details{}
}

// EnrichedMovie is a merged movie row plus its enrichment, if any.
type EnrichedMovie struct {
	Movie   Movie
	Link    Link
	Details *Details
}

// HasSynopsis reports whether the row carries a non-empty synopsis.
func (e EnrichedMovie) HasSynopsis() bool {
	return e.Details != nil && strings.TrimSpace(e.Details.Synopsis) != ""
}

// RatingStats summarizes all ratings for one movie.
type RatingStats struct {
	MovieID int64
	Count   int64
	Sum     float64
	Min     float64
	Max     float64
	FirstAt time.Time
	LastAt  time.Time
}

// Mean returns the average rating, or 0 when there are no ratings.
func (s RatingStats) Mean() float64 {
	if s.Count == 0 {
		return 0
	}
	return s.Sum / float64(s.Count)
}

func int64Ptr(v int64) *int64       { return &v }
func float64Ptr(v float64) *float64 { return &v }

func unixOrEmpty(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return strconv.FormatInt(t.Unix(), 10)
}
