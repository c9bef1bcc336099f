package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"reelmeta/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var lines int
	var follow bool
	var filter logs.Filter

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the run log",
		Long: `Show recent entries from the run log in logging.log_dir.

Entries can be narrowed by level, component, movie id or run id prefix.
Requires logging.file = true so runs write to the log file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path := cfg.LogFile()
			if !fileExists(path) && !follow {
				fmt.Fprintf(out, "No log file at %s\n", path)
				if !cfg.Logging.File {
					fmt.Fprintln(out, "Set logging.file = true to record runs")
				}
				return nil
			}

			limit := lines
			if filter.Active() {
				// Over-read so filtering can still fill -n lines.
				limit = lines * 20
			}
			result, err := logs.Tail(path, limit)
			if err != nil {
				return err
			}
			printLogLines(out, lastN(filter.Apply(result.Lines), lines))
			if !follow {
				return nil
			}

			runCtx, stop := signalContext(cmd)
			defer stop()
			return logs.Follow(runCtx, path, result.Offset, 500*time.Millisecond, func(batch []string) error {
				printLogLines(out, filter.Apply(batch))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new log lines")
	cmd.Flags().StringVar(&filter.MinLevel, "level", "", "Minimum level (debug, info, warn, error)")
	cmd.Flags().StringVar(&filter.Component, "component", "", "Only entries from this component")
	cmd.Flags().StringVar(&filter.MovieID, "movie", "", "Only entries for this MovieLens id")
	cmd.Flags().StringVar(&filter.RunID, "run", "", "Only entries whose run id starts with this prefix")
	return cmd
}

func printLogLines(out io.Writer, lines []string) {
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
}

func lastN(lines []string, n int) []string {
	if n <= 0 || len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
