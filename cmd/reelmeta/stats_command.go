package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelmeta/internal/enrich"
	"reelmeta/internal/movielens"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var file string
	var asJSON bool
	var samples int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show feature coverage of an enriched CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if file == "" {
				file = cfg.Paths.OutputFile
			}
			rows, err := movielens.LoadEnriched(file)
			if err != nil {
				return fmt.Errorf("load enriched table: %w", err)
			}
			coverage := enrich.ComputeCoverage(rows)
			if asJSON {
				return writeJSON(cmd, coverage)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "File:   %s\n", file)
			fmt.Fprintf(out, "Movies: %s\n\n", humanize.Comma(int64(coverage.Total)))
			printCoverage(out, coverage, colorize)
			if picked := enrich.Samples(rows, samples); len(picked) > 0 {
				fmt.Fprintln(out)
				printSamples(out, picked, colorize)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Enriched CSV to inspect (defaults to paths.output_file)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output coverage as JSON")
	cmd.Flags().IntVar(&samples, "samples", 0, "Also print this many sample movies with a synopsis")
	return cmd
}

func printCoverage(out io.Writer, coverage enrich.Coverage, colorize bool) {
	rows := make([][]string, 0, len(coverage.Features))
	for _, fc := range coverage.Features {
		rows = append(rows, []string{
			fc.Feature,
			humanize.Comma(int64(fc.Count)),
			coverageLabel(fc.Percent, colorize),
		})
	}
	fmt.Fprintln(out, renderTable(
		[]string{"Feature", "Movies", "Coverage"},
		rows,
		[]columnAlignment{alignLeft, alignRight, alignRight},
	))
}

func coverageLabel(percent float64, colorize bool) string {
	label := fmt.Sprintf("%.1f%%", percent)
	if !colorize {
		return label
	}
	kind := statusError
	switch {
	case percent >= 90:
		kind = statusOK
	case percent >= 50:
		kind = statusWarn
	}
	return statusKindColor(kind) + label + ansiReset
}
