package semantic

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/klauspost/compress/zstd"

	"reelmeta/internal/fileutil"
	"reelmeta/internal/movielens"
)

// ArtifactVersion is bumped when the artifact layout changes.
const ArtifactVersion = 1

// ErrArtifactVersion indicates an artifact written by an incompatible version.
var ErrArtifactVersion = errors.New("unsupported artifact version")

// Header is the first line of an artifact.
type Header struct {
	Version           int       `json:"version"`
	Embedder          string    `json:"embedder"`
	Dimensions        int       `json:"dimensions"`
	SynopsisWordLimit int       `json:"synopsis_word_limit"`
	Count             int       `json:"count"`
	CreatedAt         time.Time `json:"created_at"`
	Source            string    `json:"source,omitempty"`
}

// RatingSummary carries per-movie rating aggregates alongside the embedding.
type RatingSummary struct {
	Count int64   `json:"count"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// NewRatingSummary converts accumulated rating statistics.
func NewRatingSummary(s movielens.RatingStats) *RatingSummary {
	return &RatingSummary{Count: s.Count, Mean: s.Mean(), Min: s.Min, Max: s.Max}
}

// Record is one embedded movie.
type Record struct {
	MovieID   int64          `json:"movie_id"`
	TMDbID    int64          `json:"tmdb_id,omitempty"`
	Title     string         `json:"title"`
	Genres    []string       `json:"genres,omitempty"`
	Text      string         `json:"text"`
	Embedding []float32      `json:"embedding"`
	Ratings   *RatingSummary `json:"ratings,omitempty"`
}

// Artifact is the persisted semantic dataset.
type Artifact struct {
	Header  Header
	Records []Record
}

// WriteArtifact atomically writes a to path as zstd-compressed JSON lines.
func WriteArtifact(path string, a *Artifact) error {
	return fileutil.WriteAtomic(path, func(w io.Writer) error {
		return EncodeArtifact(w, a)
	})
}

// EncodeArtifact writes the header line followed by one line per record.
func EncodeArtifact(w io.Writer, a *Artifact) error {
	if a == nil {
		return errors.New("artifact is nil")
	}
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("create zstd writer: %w", err)
	}
	header := a.Header
	header.Version = ArtifactVersion
	header.Count = len(a.Records)
	enc := json.NewEncoder(zw)
	if err := enc.Encode(header); err != nil {
		_ = zw.Close()
		return fmt.Errorf("encode header: %w", err)
	}
	for i := range a.Records {
		if err := enc.Encode(&a.Records[i]); err != nil {
			_ = zw.Close()
			return fmt.Errorf("encode movie %d: %w", a.Records[i].MovieID, err)
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("flush zstd writer: %w", err)
	}
	return nil
}

// ReadArtifact loads an artifact from path.
func ReadArtifact(path string) (*Artifact, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer file.Close()
	a, err := DecodeArtifact(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return a, nil
}

// maxPreallocRecords bounds the slice capacity taken from an untrusted header.
const maxPreallocRecords = 1 << 16

// DecodeArtifact parses an artifact stream and checks it against its header.
func DecodeArtifact(r io.Reader) (*Artifact, error) {
	zr, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	dec := json.NewDecoder(zr)
	var a Artifact
	if err := dec.Decode(&a.Header); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	if a.Header.Version != ArtifactVersion {
		return nil, fmt.Errorf("%w: %d (expected %d)", ErrArtifactVersion, a.Header.Version, ArtifactVersion)
	}
	a.Records = make([]Record, 0, min(max(a.Header.Count, 0), maxPreallocRecords))
	for {
		var rec Record
		err := dec.Decode(&rec)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode record %d: %w", len(a.Records)+1, err)
		}
		if len(rec.Embedding) != a.Header.Dimensions {
			return nil, fmt.Errorf("movie %d: embedding has %d dimensions, header says %d",
				rec.MovieID, len(rec.Embedding), a.Header.Dimensions)
		}
		a.Records = append(a.Records, rec)
	}
	if len(a.Records) != a.Header.Count {
		return nil, fmt.Errorf("artifact truncated: %d records, header says %d", len(a.Records), a.Header.Count)
	}
	return &a, nil
}
