package checkpoint

import (
	"time"

	"reelmeta/internal/movielens"
)

// Status is the outcome recorded for a movie.
type Status string

const (
	// StatusEnriched means TMDb returned details for the movie.
	StatusEnriched Status = "enriched"
	// StatusNotFound means TMDb has no entry for the movie's id; empty details are stored.
	StatusNotFound Status = "not_found"
	// StatusFailed means the fetch failed and may be retried.
	StatusFailed Status = "failed"
	// StatusSkipped means the movie has no TMDb id.
	StatusSkipped Status = "skipped"
)

// Statuses lists every status in display order.
func Statuses() []Status {
	return []Status{StatusEnriched, StatusNotFound, StatusFailed, StatusSkipped}
}

// Done reports whether the status counts as finished for resume purposes.
// Failed records are finished unless the caller asks to retry them.
func (s Status) Done(retryFailed bool) bool {
	if s == StatusFailed {
		return !retryFailed
	}
	return s != ""
}

// Record is the checkpoint row for one movie.
type Record struct {
	MovieID      int64
	TMDbID       int64
	Status       Status
	Details      *movielens.Details
	ErrorMessage string
	Attempts     int
	UpdatedAt    time.Time
}

// Counts holds record totals per status.
type Counts map[Status]int

// Total returns the number of records.
func (c Counts) Total() int {
	total := 0
	for _, n := range c {
		total += n
	}
	return total
}
