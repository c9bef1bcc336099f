package movielens

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"

	"reelmeta/internal/fileutil"
)

// BaseColumns are the merged MovieLens columns leading every enriched row.
var BaseColumns = []string{"movieId", "title", "genres", "imdbId", "tmdbId"}

// EnrichmentColumns are the TMDb-derived columns, in output order.
var EnrichmentColumns = []string{
	"synopsis", "tagline", "release_date", "runtime", "original_language",
	"original_title", "status", "budget", "revenue", "vote_average",
	"vote_count", "popularity", "cast", "director", "keywords",
	"production_companies", "production_countries", "adult", "homepage",
}

// EnrichedHeader returns the full output header.
func EnrichedHeader() []string {
	header := make([]string, 0, len(BaseColumns)+len(EnrichmentColumns))
	header = append(header, BaseColumns...)
	return append(header, EnrichmentColumns...)
}

// WriteEnrichedFile atomically writes rows to path.
func WriteEnrichedFile(path string, rows []EnrichedMovie) error {
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		return WriteEnriched(w, rows)
	})
}

// WriteEnriched writes the enriched table as CSV. Rows without details get
// empty enrichment columns.
func WriteEnriched(w io.Writer, rows []EnrichedMovie) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(EnrichedHeader()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	record := make([]string, len(BaseColumns)+len(EnrichmentColumns))
	for _, row := range rows {
		record[0] = strconv.FormatInt(row.Movie.ID, 10)
		record[1] = row.Movie.Title
		record[2] = row.Movie.GenreString()
		record[3] = row.Link.IMDbID
		record[4] = ""
		if row.Link.HasTMDb {
			record[4] = strconv.FormatInt(row.Link.TMDbID, 10)
		}
		fillDetails(record[len(BaseColumns):], row.Details)
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write movie %d: %w", row.Movie.ID, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func fillDetails(dst []string, d *Details) {
	if d == nil {
		for i := range dst {
			dst[i] = ""
		}
		return
	}
	dst[0] = d.Synopsis
	dst[1] = d.Tagline
	dst[2] = d.ReleaseDate
	dst[3] = formatOptionalInt(d.Runtime)
	dst[4] = d.OriginalLanguage
	dst[5] = d.OriginalTitle
	dst[6] = d.Status
	dst[7] = formatOptionalInt(d.Budget)
	dst[8] = formatOptionalInt(d.Revenue)
	dst[9] = formatOptionalFloat(d.VoteAverage)
	dst[10] = formatOptionalInt(d.VoteCount)
	dst[11] = formatOptionalFloat(d.Popularity)
	dst[12] = strings.Join(d.Cast, "|")
	dst[13] = strings.Join(d.Directors, "|")
	dst[14] = strings.Join(d.Keywords, "|")
	dst[15] = strings.Join(d.ProductionCompanies, "|")
	dst[16] = strings.Join(d.ProductionCountries, "|")
	dst[17] = strconv.FormatBool(d.Adult)
	dst[18] = d.Homepage
}

func formatOptionalInt(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func formatOptionalFloat(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// LoadEnriched reads an enriched CSV from path.
func LoadEnriched(path string) ([]EnrichedMovie, error) {
	file, err := openCSV(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	rows, err := ReadEnriched(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// ReadEnriched parses an enriched CSV. A row whose enrichment columns are all
// empty (including adult) was never enriched and gets nil Details.
func ReadEnriched(r io.Reader) ([]EnrichedMovie, error) {
	reader := newReader(r)
	h, err := readHeader(reader, "movieId", "title", "genres")
	if err != nil {
		return nil, err
	}
	var rows []EnrichedMovie
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row, err := parseEnrichedRow(h, record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func parseEnrichedRow(h header, record []string) (EnrichedMovie, error) {
	id, err := parseID(h.get(record, "movieId"))
	if err != nil {
		return EnrichedMovie{}, fmt.Errorf("movieId: %w", err)
	}
	row := EnrichedMovie{
		Movie: Movie{
			ID:     id,
			Title:  h.get(record, "title"),
			Genres: ParseGenres(h.get(record, "genres")),
		},
		Link: Link{MovieID: id, IMDbID: h.get(record, "imdbId")},
	}
	if raw := strings.TrimSpace(h.get(record, "tmdbId")); raw != "" {
		tmdbID, err := parseID(raw)
		if err != nil {
			return EnrichedMovie{}, fmt.Errorf("tmdbId: %w", err)
		}
		row.Link.TMDbID = tmdbID
		row.Link.HasTMDb = tmdbID > 0
	}

	empty := true
	for _, col := range EnrichmentColumns {
		if strings.TrimSpace(h.get(record, col)) != "" {
			empty = false
			break
		}
	}
	if empty {
		return row, nil
	}

	d := &Details{
		Synopsis:            h.get(record, "synopsis"),
		Tagline:             h.get(record, "tagline"),
		ReleaseDate:         h.get(record, "release_date"),
		OriginalLanguage:    h.get(record, "original_language"),
		OriginalTitle:       h.get(record, "original_title"),
		Status:              h.get(record, "status"),
		Cast:                SplitList(h.get(record, "cast")),
		Directors:           SplitList(h.get(record, "director")),
		Keywords:            SplitList(h.get(record, "keywords")),
		ProductionCompanies: SplitList(h.get(record, "production_companies")),
		ProductionCountries: SplitList(h.get(record, "production_countries")),
		Homepage:            h.get(record, "homepage"),
	}
	ints := []struct {
		col string
		dst **int64
	}{
		{"runtime", &d.Runtime},
		{"budget", &d.Budget},
		{"revenue", &d.Revenue},
		{"vote_count", &d.VoteCount},
	}
	for _, entry := range ints {
		if raw := strings.TrimSpace(h.get(record, entry.col)); raw != "" {
			v, err := parseID(raw)
			if err != nil {
				return EnrichedMovie{}, fmt.Errorf("%s: %w", entry.col, err)
			}
			*entry.dst = int64Ptr(v)
		}
	}
	floats := []struct {
		col string
		dst **float64
	}{
		{"vote_average", &d.VoteAverage},
		{"popularity", &d.Popularity},
	}
	for _, entry := range floats {
		if raw := strings.TrimSpace(h.get(record, entry.col)); raw != "" {
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return EnrichedMovie{}, fmt.Errorf("%s: %w", entry.col, err)
			}
			*entry.dst = float64Ptr(v)
		}
	}
	if raw := strings.TrimSpace(h.get(record, "adult")); raw != "" {
		adult, err := strconv.ParseBool(raw)
		if err != nil {
			return EnrichedMovie{}, fmt.Errorf("adult: %w", err)
		}
		d.Adult = adult
	}
	row.Details = d
	return row, nil
}
