package movielens

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

type header map[string]int

func readHeader(r *csv.Reader, required ...string) (header, error) {
	record, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(record))
	for i, name := range record {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		h[name] = i
	}
	for _, name := range required {
		if _, ok := h[name]; !ok {
			return nil, fmt.Errorf("missing required column %q", name)
		}
	}
	return h, nil
}

func (h header) get(record []string, name string) string {
	idx, ok := h[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func newReader(r io.Reader) *csv.Reader {
	reader := csv.NewReader(bufio.NewReaderSize(r, 1<<16))
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true
	return reader
}

func openCSV(path string) (*os.File, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return file, nil
}

// LoadMovies reads movies.csv from path.
func LoadMovies(path string) ([]Movie, error) {
	file, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	movies, err := ReadMovies(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return movies, nil
}

// ReadMovies parses movies.csv content.
func ReadMovies(r io.Reader) ([]Movie, error) {
	reader := newReader(r)
	h, err := readHeader(reader, "movieId", "title", "genres")
	if err != nil {
		return nil, err
	}
	var movies []Movie
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		id, err := parseID(h.get(record, "movieId"))
		if err != nil {
			return nil, fmt.Errorf("line %d: movieId: %w", line, err)
		}
		movies = append(movies, Movie{
			ID:     id,
			Title:  strings.TrimSpace(h.get(record, "title")),
			Genres: ParseGenres(h.get(record, "genres")),
		})
	}
	return movies, nil
}

// ParseGenres splits a MovieLens genre string; the "no genres" placeholder yields nil.
func ParseGenres(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" || value == NoGenres {
		return nil
	}
	return SplitList(value)
}

// SplitList splits a `|`-joined column, dropping blanks.
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, "|")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// LoadLinks reads links.csv from path.
func LoadLinks(path string) ([]Link, error) {
	file, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	links, err := ReadLinks(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return links, nil
}

// ReadLinks parses links.csv content. An empty tmdbId leaves HasTMDb false.
func ReadLinks(r io.Reader) ([]Link, error) {
	reader := newReader(r)
	h, err := readHeader(reader, "movieId", "imdbId", "tmdbId")
	if err != nil {
		return nil, err
	}
	var links []Link
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		id, err := parseID(h.get(record, "movieId"))
		if err != nil {
			return nil, fmt.Errorf("line %d: movieId: %w", line, err)
		}
		link := Link{MovieID: id, IMDbID: strings.TrimSpace(h.get(record, "imdbId"))}
		if raw := strings.TrimSpace(h.get(record, "tmdbId")); raw != "" {
			tmdbID, err := parseID(raw)
			if err != nil {
				return nil, fmt.Errorf("line %d: tmdbId: %w", line, err)
			}
			link.TMDbID = tmdbID
			link.HasTMDb = tmdbID > 0
		}
		links = append(links, link)
	}
	return links, nil
}

// parseID accepts plain integers and the "862.0" form pandas writes for
// nullable integer columns.
func parseID(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, errors.New("empty value")
	}
	if id, err := strconv.ParseInt(value, 10, 64); err == nil {
		return id, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("invalid integer %q", value)
	}
	return int64(f), nil
}

// Merge left-joins links onto movies by movie ID, preserving movies order.
func Merge(movies []Movie, links []Link) []EnrichedMovie {
	byMovie := make(map[int64]Link, len(links))
	for _, link := range links {
		if _, exists := byMovie[link.MovieID]; !exists {
			byMovie[link.MovieID] = link
		}
	}
	rows := make([]EnrichedMovie, 0, len(movies))
	for _, movie := range movies {
		link, ok := byMovie[movie.ID]
		if !ok {
			link = Link{MovieID: movie.ID}
		}
		rows = append(rows, EnrichedMovie{Movie: movie, Link: link})
	}
	return rows
}

// LoadDataset loads movies.csv and links.csv and merges them.
func LoadDataset(moviesPath, linksPath string) ([]EnrichedMovie, error) {
	movies, err := LoadMovies(moviesPath)
	if err != nil {
		return nil, err
	}
	links, err := LoadLinks(linksPath)
	if err != nil {
		return nil, err
	}
	return Merge(movies, links), nil
}

const ratingsCancelCheckEvery = 100_000

// StreamRatings parses ratings.csv row by row, invoking fn for each rating.
// It returns the number of rows processed.
func StreamRatings(ctx context.Context, r io.Reader, fn func(Rating) error) (int64, error) {
	reader := newReader(r)
	h, err := readHeader(reader, "userId", "movieId", "rating")
	if err != nil {
		return 0, err
	}
	userIdx, movieIdx, ratingIdx := h["userId"], h["movieId"], h["rating"]
	tsIdx, hasTS := h["timestamp"]

	var count int64
	for line := int64(2); ; line++ {
		if count%ratingsCancelCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return count, err
			}
		}
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) <= max(userIdx, movieIdx, ratingIdx) {
			return count, fmt.Errorf("line %d: expected at least %d fields", line, max(userIdx, movieIdx, ratingIdx)+1)
		}
		userID, err := strconv.ParseInt(record[userIdx], 10, 64)
		if err != nil {
			return count, fmt.Errorf("line %d: userId: %w", line, err)
		}
		movieID, err := strconv.ParseInt(record[movieIdx], 10, 64)
		if err != nil {
			return count, fmt.Errorf("line %d: movieId: %w", line, err)
		}
		value, err := strconv.ParseFloat(record[ratingIdx], 64)
		if err != nil {
			return count, fmt.Errorf("line %d: rating: %w", line, err)
		}
		rating := Rating{UserID: userID, MovieID: movieID, Value: value}
		if hasTS && tsIdx < len(record) && record[tsIdx] != "" {
			secs, err := strconv.ParseInt(record[tsIdx], 10, 64)
			if err != nil {
				return count, fmt.Errorf("line %d: timestamp: %w", line, err)
			}
			rating.Timestamp = time.Unix(secs, 0).UTC()
		}
		if err := fn(rating); err != nil {
			return count, err
		}
		count++
	}
}
