package semantic

import (
	"fmt"
	"regexp"
	"strings"

	"reelmeta/internal/movielens"
)

// DefaultSynopsisWordLimit caps the synopsis portion of the semantic text.
const DefaultSynopsisWordLimit = 200

var trailingYear = regexp.MustCompile(`\s*\(\d{4}\)$`)

// CleanTitle strips a trailing release year such as " (1995)".
func CleanTitle(title string) string {
	return trailingYear.ReplaceAllString(title, "")
}

// TruncateWords keeps the first limit whitespace-separated words joined by
// single spaces. Text at or under the limit is returned unchanged.
func TruncateWords(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	words := strings.Fields(text)
	if len(words) <= limit {
		return text
	}
	return strings.Join(words[:limit], " ")
}

// BuildText renders the semantic text for an enriched movie. Missing
// enrichment renders as empty fields.
func BuildText(row movielens.EnrichedMovie, wordLimit int) string {
	var keywords, tagline, synopsis string
	if d := row.Details; d != nil {
		keywords = strings.Join(d.Keywords, "|")
		tagline = d.Tagline
		synopsis = TruncateWords(d.Synopsis, wordLimit)
	}
	return fmt.Sprintf("Title: %s. Genres: %s. Keywords: %s. Tagline: %s. Synopsis: %s",
		CleanTitle(row.Movie.Title), row.Movie.GenreString(), keywords, tagline, synopsis)
}
