package main

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"reelmeta/internal/checkpoint"
	"reelmeta/internal/config"
)

func newCheckpointCommand(ctx *commandContext) *cobra.Command {
	checkpointCmd := &cobra.Command{
		Use:   "checkpoint",
		Short: "Inspect or reset the enrichment checkpoint",
	}
	checkpointCmd.AddCommand(newCheckpointStatusCommand(ctx))
	checkpointCmd.AddCommand(newCheckpointClearCommand(ctx))
	return checkpointCmd
}

type checkpointStatus struct {
	Path      string         `json:"path"`
	Exists    bool           `json:"exists"`
	RunID     string         `json:"run_id,omitempty"`
	Total     int            `json:"total"`
	Counts    map[string]int `json:"counts,omitempty"`
	FailedIDs []int64        `json:"failed_ids,omitempty"`
}

func newCheckpointStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	var showFailed bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show checkpointed enrichment progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			status := checkpointStatus{Path: cfg.Paths.CheckpointFile}
			if checkpoint.Exists(status.Path) {
				store, err := checkpoint.Open(status.Path)
				if err != nil {
					return err
				}
				defer store.Close()
				status.Exists = true
				if status.RunID, err = store.Meta(cmd.Context(), "run_id"); err != nil {
					return err
				}
				counts, err := store.Counts(cmd.Context())
				if err != nil {
					return err
				}
				status.Total = counts.Total()
				status.Counts = make(map[string]int, len(counts))
				for s, n := range counts {
					status.Counts[string(s)] = n
				}
				if status.FailedIDs, err = store.FailedIDs(cmd.Context()); err != nil {
					return err
				}
			}
			if asJSON {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			if !status.Exists {
				fmt.Fprintf(out, "No checkpoint at %s\n", status.Path)
				return nil
			}
			fmt.Fprintf(out, "Checkpoint: %s\n", status.Path)
			if status.RunID != "" {
				fmt.Fprintf(out, "Last run:   %s\n", status.RunID)
			}
			rows := make([][]string, 0, len(checkpoint.Statuses())+1)
			for _, s := range checkpoint.Statuses() {
				rows = append(rows, []string{string(s), humanize.Comma(int64(status.Counts[string(s)]))})
			}
			rows = append(rows, []string{"total", humanize.Comma(int64(status.Total))})
			fmt.Fprintln(out, renderTable([]string{"Status", "Movies"}, rows, []columnAlignment{alignLeft, alignRight}))
			if len(status.FailedIDs) > 0 {
				if showFailed {
					fmt.Fprintf(out, "Failed movie ids: %v\n", status.FailedIDs)
				}
				fmt.Fprintln(out, "Run 'reelmeta enrich --retry-failed' to refetch failed movies")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output status as JSON")
	cmd.Flags().BoolVar(&showFailed, "failed", false, "List the movie ids whose fetch failed")
	return cmd
}

func newCheckpointClearCommand(ctx *commandContext) *cobra.Command {
	var keepFile bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Discard checkpointed progress so the next run starts over",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			path := cfg.Paths.CheckpointFile
			if !checkpoint.Exists(path) {
				fmt.Fprintf(out, "No checkpoint at %s\n", path)
				return nil
			}
			unlock, err := lockCheckpoint(cfg)
			if err != nil {
				return err
			}
			defer unlock()

			if keepFile {
				store, err := checkpoint.Open(path)
				if err != nil {
					return err
				}
				defer store.Close()
				removed, err := store.Clear(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Cleared %s checkpoint records from %s\n", humanize.Comma(removed), path)
				return nil
			}
			if err := checkpoint.Remove(path); err != nil {
				return fmt.Errorf("remove checkpoint: %w", err)
			}
			fmt.Fprintf(out, "Removed checkpoint %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&keepFile, "keep-file", false, "Empty the checkpoint database instead of deleting it")
	return cmd
}

// lockCheckpoint takes the enrichment lock so a running enrich is never reset
// underneath itself.
func lockCheckpoint(cfg *config.Config) (func(), error) {
	lock := flock.New(cfg.LockPath())
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("checkpoint %s is in use by a running enrichment", cfg.Paths.CheckpointFile)
	}
	return func() { _ = lock.Unlock() }, nil
}
