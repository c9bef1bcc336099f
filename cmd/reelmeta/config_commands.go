package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"reelmeta/internal/config"
	"reelmeta/internal/preflight"
)

const redacted = "<redacted>"

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set tmdb.api_key (or export TMDB_API_KEY) before running reelmeta enrich.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return fmt.Errorf("ensure directories: %w", err)
			}
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configExists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			for _, line := range configChecks(cfg) {
				fmt.Fprintln(out, renderStatusLine(line.label, line.kind, line.message, colorize))
			}
			if !check {
				fmt.Fprintln(out, "Configuration valid")
				return nil
			}

			runCtx, stop := signalContext(cmd)
			defer stop()
			printSection(out, "Preflight", colorize)
			failed := 0
			for _, result := range preflight.RunAll(runCtx, cfg) {
				kind := statusOK
				if !result.Passed {
					kind = statusError
					failed++
				}
				fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
			}
			if failed > 0 {
				return fmt.Errorf("%d preflight check(s) failed", failed)
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Also probe dataset files, directories and external services")
	return cmd
}

type configCheck struct {
	label   string
	kind    statusKind
	message string
}

func configChecks(cfg *config.Config) []configCheck {
	checks := make([]configCheck, 0, 5)
	if cfg.RequireTMDB() == nil {
		checks = append(checks, configCheck{"TMDb API key", statusOK, "set"})
	} else {
		checks = append(checks, configCheck{"TMDb API key", statusWarn, "missing; enrich will fail"})
	}
	for _, file := range []struct{ label, path string }{
		{"movies.csv", cfg.MoviesCSV()},
		{"links.csv", cfg.LinksCSV()},
		{"ratings.csv", cfg.RatingsCSV()},
	} {
		if fileExists(file.path) {
			checks = append(checks, configCheck{file.label, statusOK, file.path})
		} else {
			checks = append(checks, configCheck{file.label, statusWarn, "not found at " + file.path})
		}
	}
	checks = append(checks, configCheck{"Embedder", statusInfo, cfg.Semantic.Embedder})
	if cfg.Storage.Enabled {
		checks = append(checks, configCheck{"Object storage", statusOK, cfg.Storage.Endpoint + "/" + cfg.Storage.Bucket})
	} else {
		checks = append(checks, configCheck{"Object storage", statusInfo, "disabled"})
	}
	notify := "disabled"
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) != "" {
		notify = cfg.Notifications.NtfyTopic
	}
	checks = append(checks, configCheck{"Notifications", statusInfo, notify})
	return checks
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var showSecrets bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as TOML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			effective := *cfg
			if !showSecrets {
				redact(&effective.TMDB.APIKey)
				redact(&effective.Semantic.APIKey)
				redact(&effective.Storage.AccessKey)
				redact(&effective.Storage.SecretKey)
			}
			data, err := toml.Marshal(effective)
			if err != nil {
				return fmt.Errorf("encode config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "# %s\n", filepath.Clean(ctx.configPath))
			_, err = out.Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "Print API keys and credentials unredacted")
	return cmd
}

func redact(value *string) {
	if *value != "" {
		*value = redacted
	}
}
