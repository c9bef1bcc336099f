package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelmeta/internal/semantic"
	"reelmeta/internal/services"
)

type similarMatch struct {
	MovieID     int64    `json:"movie_id"`
	Title       string   `json:"title"`
	Genres      []string `json:"genres,omitempty"`
	Score       float32  `json:"score"`
	RatingCount int64    `json:"rating_count,omitempty"`
	RatingMean  float64  `json:"rating_mean,omitempty"`
}

type similarResult struct {
	Query   similarMatch   `json:"query"`
	Matches []similarMatch `json:"matches"`
}

func newSimilarCommand(ctx *commandContext) *cobra.Command {
	var artifactPath string
	var k int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "similar <movieId|title>",
		Short: "List the movies closest to a movie in the semantic artifact",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if artifactPath == "" {
				artifactPath = cfg.Paths.SemanticFile
			}
			if k < 1 {
				return fmt.Errorf("-k must be at least 1")
			}
			artifact, err := semantic.ReadArtifact(artifactPath)
			if err != nil {
				return err
			}
			index, err := semantic.NewIndex(artifact.Records)
			if err != nil {
				return err
			}

			query := strings.Join(args, " ")
			target, err := resolveMovie(index, query)
			if err != nil {
				return err
			}
			matches, err := index.Similar(target.MovieID, k)
			if err != nil {
				return err
			}

			result := similarResult{Query: toSimilarMatch(target, 1)}
			for _, m := range matches {
				result.Matches = append(result.Matches, toSimilarMatch(m.Record, m.Score))
			}
			if asJSON {
				return writeJSON(cmd, result)
			}
			printSimilar(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVarP(&artifactPath, "artifact", "a", "", "Semantic artifact (defaults to paths.semantic_file)")
	cmd.Flags().IntVarP(&k, "k", "k", 10, "Number of neighbours to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output matches as JSON")
	return cmd
}

// resolveMovie accepts a MovieLens id or a title. Titles prefer an exact
// match on the title without its year.
func resolveMovie(index *semantic.Index, query string) (*semantic.Record, error) {
	query = strings.TrimSpace(query)
	if id, err := strconv.ParseInt(query, 10, 64); err == nil {
		if rec, ok := index.Get(id); ok {
			return rec, nil
		}
	}
	found := index.FindByTitle(query)
	if len(found) == 0 {
		return nil, services.Wrap(services.ErrNotFound, "similar", "resolve",
			fmt.Sprintf("no movie matches %q", query), nil)
	}
	return found[0], nil
}

func toSimilarMatch(rec *semantic.Record, score float32) similarMatch {
	m := similarMatch{MovieID: rec.MovieID, Title: rec.Title, Genres: rec.Genres, Score: score}
	if rec.Ratings != nil {
		m.RatingCount = rec.Ratings.Count
		m.RatingMean = rec.Ratings.Mean
	}
	return m
}

func printSimilar(out io.Writer, result similarResult) {
	fmt.Fprintf(out, "Movies similar to %s (id %d)\n", result.Query.Title, result.Query.MovieID)
	rows := make([][]string, 0, len(result.Matches))
	for i, m := range result.Matches {
		rating := "-"
		if m.RatingCount > 0 {
			rating = fmt.Sprintf("%.2f (%s)", m.RatingMean, humanize.Comma(m.RatingCount))
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.FormatInt(m.MovieID, 10),
			m.Title,
			strings.Join(m.Genres, ", "),
			fmt.Sprintf("%.3f", m.Score),
			rating,
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"#", "Movie ID", "Title", "Genres", "Score", "Rating"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft, alignRight, alignRight},
	))
}
