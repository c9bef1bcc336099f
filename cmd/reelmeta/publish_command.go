package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"reelmeta/internal/logging"
	"reelmeta/internal/notifications"
	"reelmeta/internal/objectstore"
)

func newPublishCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "publish [file...]",
		Short: "Upload produced files to the configured object store",
		Long: "Upload files to the S3-compatible bucket in [storage]. Without arguments the\n" +
			"enriched CSV, semantic artifact and rating statistics are uploaded when present.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.logger()
			if err != nil {
				return err
			}
			publisher, err := objectstore.New(cfg.Storage, objectstore.WithLogger(logger))
			if errors.Is(err, objectstore.ErrDisabled) {
				return errors.New("object storage is disabled; set storage.enabled and storage.endpoint in the config")
			}
			if err != nil {
				return err
			}

			files := args
			if len(files) == 0 {
				for _, candidate := range []string{cfg.Paths.OutputFile, cfg.Paths.SemanticFile, cfg.Paths.RatingStatsFile} {
					if fileExists(candidate) {
						files = append(files, candidate)
					}
				}
				if len(files) == 0 {
					return errors.New("nothing to publish; run 'reelmeta enrich' first or pass files explicitly")
				}
			}

			runCtx, cancel := signalContext(cmd)
			defer cancel()
			objects, uploadErr := publisher.UploadAll(runCtx, files)

			notifier := notifications.NewService(cfg)
			rows := make([][]string, 0, len(objects))
			for _, obj := range objects {
				rows = append(rows, []string{obj.URL(), humanize.Bytes(uint64(obj.Size)), obj.SHA256[:12]})
				if err := notifier.Publish(runCtx, notifications.EventPublished, notifications.Payload{
					"object": obj.URL(),
					"bytes":  obj.Size,
				}); err != nil {
					logger.Warn("notification failed", logging.Error(err))
				}
			}
			if len(rows) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), renderTable(
					[]string{"Object", "Size", "SHA-256"},
					rows,
					[]columnAlignment{alignLeft, alignRight, alignLeft},
				))
			}
			return uploadErr
		},
	}
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
