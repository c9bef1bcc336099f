package main

import (
	"cmp"
	"fmt"
	"slices"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelmeta/internal/movielens"
)

func newRatingsCommand(ctx *commandContext) *cobra.Command {
	var input string
	var output string
	var top int

	cmd := &cobra.Command{
		Use:   "ratings",
		Short: "Aggregate ratings.csv into per-movie rating statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if input == "" {
				input = cfg.RatingsCSV()
			}
			if output == "" {
				output = cfg.Paths.RatingStatsFile
			}
			runCtx, cancel := signalContext(cmd)
			defer cancel()

			acc, err := movielens.AggregateRatingsFile(runCtx, input)
			if err != nil {
				return fmt.Errorf("aggregate ratings: %w", err)
			}
			stats := acc.Stats()
			if err := movielens.WriteRatingStatsFile(output, stats); err != nil {
				return fmt.Errorf("write rating stats: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Aggregated %s ratings for %s movies\n",
				humanize.Comma(acc.Total()), humanize.Comma(int64(len(stats))))
			fmt.Fprintf(out, "Wrote %s\n", output)

			if top > 0 && len(stats) > 0 {
				mostRated := slices.Clone(stats)
				slices.SortFunc(mostRated, func(a, b movielens.RatingStats) int {
					if c := cmp.Compare(b.Count, a.Count); c != 0 {
						return c
					}
					return cmp.Compare(a.MovieID, b.MovieID)
				})
				mostRated = mostRated[:min(top, len(mostRated))]
				rows := make([][]string, 0, len(mostRated))
				for _, s := range mostRated {
					rows = append(rows, []string{
						strconv.FormatInt(s.MovieID, 10),
						humanize.Comma(s.Count),
						fmt.Sprintf("%.2f", s.Mean()),
						fmt.Sprintf("%.1f-%.1f", s.Min, s.Max),
					})
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderTable(
					[]string{"Movie ID", "Ratings", "Mean", "Range"},
					rows,
					[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
				))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "ratings.csv to read (defaults to <data_dir>/ratings.csv)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Statistics CSV destination (defaults to paths.rating_stats_file)")
	cmd.Flags().IntVar(&top, "top", 0, "Print the N most rated movies")
	return cmd
}
