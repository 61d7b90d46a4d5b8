// ABOUTME: Main entry point for the digests builder
// ABOUTME: Parses flags over environment configuration and runs once or on a schedule

package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"digests-builder/core/batch"
	"digests-builder/pkg/config"
	"github.com/spf13/cobra"
)

var version = "dev"

// cliFlags override the matching environment settings when given
type cliFlags struct {
	envFile  string
	feeds    string
	output   string
	mode     string
	schedule string
	logLevel string
}

func main() {
	code := batch.ExitOK
	cmd := newRootCmd(&code)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "digests-builder:", err)
		if code == batch.ExitOK {
			code = batch.ExitFatal
		}
	}
	os.Exit(code)
}

func newRootCmd(code *int) *cobra.Command {
	var flags cliFlags

	cmd := &cobra.Command{
		Use:   "digests-builder",
		Short: "Build a JSON digest from configured RSS and Atom feeds",
		Long: `digests-builder reads a TOML feed configuration, fetches every enabled feed,
applies filters, digests and groups, and writes one JSON artifact.

Settings come from the environment (optionally a .env file); flags win.

Example usage:
  digests-builder --feeds feeds.toml --output public/digest.json
  digests-builder --mode none              # rebuild from cached snapshots only
  digests-builder --schedule "@every 30m"  # keep running until interrupted`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromEnv(flags.envFile)
			if err != nil {
				*code = batch.ExitFatal
				return err
			}
			applyFlags(cmd, flags, cfg)
			if err := cfg.Validate(); err != nil {
				*code = batch.ExitFatal
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			*code = run(ctx, cfg)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.envFile, "env-file", ".env", "file of environment defaults, ignored when missing")
	cmd.Flags().StringVarP(&flags.feeds, "feeds", "f", "", "feed configuration file (env FEEDS_CONFIG)")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", "JSON artifact path (env OUTPUT_FILE)")
	cmd.Flags().StringVarP(&flags.mode, "mode", "m", "", "run mode: full, missing or none (env RUN_MODE)")
	cmd.Flags().StringVar(&flags.schedule, "schedule", "", "cron expression for repeated runs (env SCHEDULE)")
	cmd.Flags().StringVar(&flags.logLevel, "log-level", "", "debug, info, warn or error (env LOG_LEVEL)")

	return cmd
}

// applyFlags copies explicitly set flags over the loaded configuration
func applyFlags(cmd *cobra.Command, flags cliFlags, cfg *config.Config) {
	if cmd.Flags().Changed("feeds") {
		cfg.Run.FeedsConfig = flags.feeds
	}
	if cmd.Flags().Changed("output") {
		cfg.Run.OutputFile = flags.output
	}
	if cmd.Flags().Changed("mode") {
		cfg.Run.Mode = flags.mode
	}
	if cmd.Flags().Changed("schedule") {
		cfg.Run.Schedule = flags.schedule
	}
	if cmd.Flags().Changed("log-level") {
		cfg.Log.Level = flags.logLevel
	}
}
