package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelmeta/internal/checkpoint"
	"reelmeta/internal/enrich"
	"reelmeta/internal/movielens"
	"reelmeta/internal/semantic"
	"reelmeta/internal/tmdb"
)

const sampleSynopsisWords = 40

func newEnrichCommand(ctx *commandContext) *cobra.Command {
	var dataDir string
	var output string
	var workers int
	var limit int
	var retryFailed bool
	var keepCheckpoint bool
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "enrich",
		Short: "Enrich movies.csv with TMDb details",
		Long: "Fetch TMDb details for every MovieLens movie with a TMDb id and write the enriched table.\n" +
			"Progress is checkpointed; rerunning continues where an interrupted run stopped.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if dataDir != "" {
				if err := cfg.SetDataDir(dataDir); err != nil {
					return err
				}
			}
			if output != "" {
				cfg.Paths.OutputFile = output
			}
			if cmd.Flags().Changed("workers") {
				if workers < 1 {
					return errors.New("--workers must be at least 1")
				}
				cfg.Enrichment.Workers = workers
			}
			if retryFailed {
				cfg.Enrichment.RetryFailed = true
			}
			if keepCheckpoint {
				cfg.Enrichment.KeepCheckpoint = true
			}
			if err := cfg.RequireTMDB(); err != nil {
				return err
			}

			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			client, err := tmdb.New(cfg.TMDB.APIKey, cfg.TMDB.BaseURL, cfg.TMDB.Language,
				tmdb.WithTimeout(cfg.TMDBRequestTimeout()))
			if err != nil {
				return err
			}
			fetcher := tmdb.NewFetcher(client,
				tmdb.WithCastLimit(cfg.TMDB.CastLimit),
				tmdb.WithMaxRetries(cfg.TMDB.MaxRetries),
				tmdb.WithRateLimitWait(cfg.RateLimitWait()),
				tmdb.WithLogger(logger),
			)

			opts := []enrich.Option{enrich.WithLogger(logger), enrich.WithLimit(limit)}
			stderr := cmd.ErrOrStderr()
			if cfg.Enrichment.Progress && !noProgress && shouldColorize(stderr) {
				opts = append(opts, enrich.WithProgress(stderr))
			}
			pipeline, err := enrich.New(cfg, fetcher, opts...)
			if err != nil {
				return err
			}

			runCtx, cancel := signalContext(cmd)
			defer cancel()
			result, runErr := pipeline.Run(runCtx)
			if result != nil {
				printEnrichResult(cmd.OutOrStdout(), result, shouldColorize(cmd.OutOrStdout()))
			}
			if errors.Is(runErr, enrich.ErrLocked) {
				return fmt.Errorf("%w; another reelmeta enrich is using %s", runErr, cfg.Paths.CheckpointFile)
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&dataDir, "data-dir", "", "MovieLens dataset directory (overrides paths.data_dir)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Enriched CSV destination (overrides paths.output_file)")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "Concurrent TMDb workers (overrides enrichment.workers)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Fetch at most this many pending movies, for trial runs")
	cmd.Flags().BoolVar(&retryFailed, "retry-failed", false, "Refetch movies whose earlier fetch failed")
	cmd.Flags().BoolVar(&keepCheckpoint, "keep-checkpoint", false, "Keep the checkpoint after a complete run")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the progress bar")
	return cmd
}

func printEnrichResult(out io.Writer, result *enrich.Result, colorize bool) {
	switch {
	case result.Interrupted:
		fmt.Fprintln(out, renderStatusLine("Enrichment", statusWarn, "interrupted; rerun to resume", colorize))
	case result.Complete:
		fmt.Fprintln(out, renderStatusLine("Enrichment", statusOK, "complete", colorize))
	default:
		fmt.Fprintln(out, renderStatusLine("Enrichment", statusWarn, "finished with failures; rerun with --retry-failed", colorize))
	}
	fmt.Fprintf(out, "Run:        %s\n", result.RunID)
	fmt.Fprintf(out, "Movies:     %s (%s with TMDb id)\n", humanize.Comma(int64(result.Total)), humanize.Comma(int64(result.WithTMDb)))
	fmt.Fprintf(out, "Resumed:    %s\n", humanize.Comma(int64(result.Resumed)))
	fmt.Fprintf(out, "Processed:  %s\n", humanize.Comma(int64(result.Processed)))
	if result.Duration > 0 {
		fmt.Fprintf(out, "Duration:   %s\n", result.Duration.Round(time.Second))
	}
	fmt.Fprintf(out, "Output:     %s\n", result.OutputFile)
	if result.Interrupted {
		return
	}
	if len(result.Counts) > 0 {
		parts := make([]string, 0, len(result.Counts))
		for _, status := range checkpoint.Statuses() {
			if n := result.Counts[status]; n > 0 {
				parts = append(parts, fmt.Sprintf("%s %s", humanize.Comma(int64(n)), status))
			}
		}
		fmt.Fprintf(out, "Records:    %s\n", strings.Join(parts, ", "))
	}
	fmt.Fprintln(out)
	printCoverage(out, result.Coverage, colorize)
	if len(result.Samples) > 0 {
		fmt.Fprintln(out)
		printSamples(out, result.Samples, colorize)
	}
}

func printSamples(out io.Writer, samples []movielens.EnrichedMovie, colorize bool) {
	printSection(out, "Samples", colorize)
	for _, row := range samples {
		fmt.Fprintf(out, "%s\n", row.Movie.Title)
		d := row.Details
		if d == nil {
			continue
		}
		if len(d.Directors) > 0 {
			fmt.Fprintf(out, "  Director: %s\n", strings.Join(d.Directors, ", "))
		}
		if len(d.Cast) > 0 {
			fmt.Fprintf(out, "  Cast:     %s\n", strings.Join(d.Cast, ", "))
		}
		synopsis := semantic.TruncateWords(d.Synopsis, sampleSynopsisWords)
		if synopsis != d.Synopsis {
			synopsis += "..."
		}
		fmt.Fprintf(out, "  Synopsis: %s\n", synopsis)
	}
}
