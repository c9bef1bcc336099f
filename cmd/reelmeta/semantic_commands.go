package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"reelmeta/internal/logging"
	"reelmeta/internal/movielens"
	"reelmeta/internal/notifications"
	"reelmeta/internal/semantic"
)

func newSemanticCommand(ctx *commandContext) *cobra.Command {
	semanticCmd := &cobra.Command{
		Use:   "semantic",
		Short: "Build and inspect the semantic-embedding artifact",
	}
	semanticCmd.AddCommand(newSemanticBuildCommand(ctx))
	return semanticCmd
}

func newSemanticBuildCommand(ctx *commandContext) *cobra.Command {
	var input string
	var output string
	var withRatings bool
	var embedderName string
	var wordLimit int

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Embed the enriched table into a semantic artifact",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			logger = logging.NewComponentLogger(logger, "semantic")
			if input == "" {
				input = cfg.Paths.OutputFile
			}
			if output == "" {
				output = cfg.Paths.SemanticFile
			}
			if embedderName != "" {
				cfg.Semantic.Embedder = embedderName
			}
			if wordLimit > 0 {
				cfg.Semantic.SynopsisWordLimit = wordLimit
			}

			embedder, err := semantic.NewEmbedder(cfg)
			if err != nil {
				return err
			}
			rows, err := movielens.LoadEnriched(input)
			if err != nil {
				return fmt.Errorf("load enriched table: %w", err)
			}

			runCtx, cancel := signalContext(cmd)
			defer cancel()

			var ratings map[int64]movielens.RatingStats
			if withRatings {
				logger.Info("aggregating ratings", logging.String("file", cfg.RatingsCSV()))
				acc, err := movielens.AggregateRatingsFile(runCtx, cfg.RatingsCSV())
				if err != nil {
					return fmt.Errorf("aggregate ratings: %w", err)
				}
				ratings = acc.Lookup()
				logger.Info("ratings aggregated",
					logging.Int64("ratings", acc.Total()),
					logging.Int("movies", len(ratings)),
				)
			}

			opts := semantic.BuildOptions{
				WordLimit:   cfg.Semantic.SynopsisWordLimit,
				BatchSize:   cfg.Semantic.BatchSize,
				Concurrency: cfg.Semantic.Concurrency,
				Ratings:     ratings,
				Source:      input,
			}
			stderr := cmd.ErrOrStderr()
			if shouldColorize(stderr) {
				bar := progressbar.NewOptions(len(rows),
					progressbar.OptionSetWriter(stderr),
					progressbar.OptionSetDescription("Embedding movies"),
					progressbar.OptionShowCount(),
					progressbar.OptionThrottle(200*time.Millisecond),
					progressbar.OptionFullWidth(),
				)
				defer func() { _ = bar.Finish() }()
				opts.Progress = func(done, _ int) { _ = bar.Set(done) }
			}

			start := time.Now()
			artifact, err := semantic.Build(runCtx, rows, embedder, opts)
			if err != nil {
				return err
			}
			if err := semantic.WriteArtifact(output, artifact); err != nil {
				return fmt.Errorf("write artifact: %w", err)
			}
			var size int64
			if info, err := os.Stat(output); err == nil {
				size = info.Size()
			}
			logger.Info("semantic artifact written",
				logging.String(logging.FieldEventType, "semantic_built"),
				logging.String("file", output),
				logging.Int("records", len(artifact.Records)),
				logging.String("embedder", artifact.Header.Embedder),
				logging.Duration("duration", time.Since(start)),
			)
			if err := notifications.NewService(cfg).Publish(runCtx, notifications.EventSemanticBuilt, notifications.Payload{
				"records":  len(artifact.Records),
				"embedder": artifact.Header.Embedder,
				"file":     output,
			}); err != nil {
				logger.Warn("notification failed", logging.Error(err))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Embedded %s movies with %s (%d dimensions)\n",
				humanize.Comma(int64(len(artifact.Records))), artifact.Header.Embedder, artifact.Header.Dimensions)
			fmt.Fprintf(out, "Wrote %s (%s)\n", output, humanize.Bytes(uint64(size)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&input, "input", "i", "", "Enriched CSV (defaults to paths.output_file)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Artifact destination (defaults to paths.semantic_file)")
	cmd.Flags().BoolVar(&withRatings, "ratings", false, "Attach per-movie rating statistics from ratings.csv")
	cmd.Flags().StringVar(&embedderName, "embedder", "", "Embedding backend: hashing or http (overrides semantic.embedder)")
	cmd.Flags().IntVar(&wordLimit, "synopsis-words", 0, "Synopsis word limit (overrides semantic.synopsis_word_limit)")
	return cmd
}
