package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/coach/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show the current configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, dir, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			fmt.Fprintln(out, "Coach Configuration")

			fmt.Fprintln(out, "\nDaemon:")
			fmt.Fprintf(out, "  bind: %s:%d\n", cfg.Daemon.Bind, cfg.Daemon.Port)
			fmt.Fprintf(out, "  log_level: %s\n", cfg.Daemon.LogLevel)

			fmt.Fprintln(out, "\nRunner:")
			fmt.Fprintf(out, "  executor: %s\n", cfg.Runner.Executor)
			fmt.Fprintf(out, "  timeout: %ds\n", cfg.Runner.TimeoutSeconds)
			if cfg.Runner.Executor == "docker" {
				fmt.Fprintf(out, "  image: %s\n", cfg.Runner.Docker.Image)
				fmt.Fprintf(out, "  memory: %dMB\n", cfg.Runner.Docker.MemoryMB)
			} else {
				fmt.Fprintf(out, "  python: %s\n", cfg.Runner.Python)
			}

			fmt.Fprintln(out, "\nStorage:")
			fmt.Fprintf(out, "  driver: %s\n", cfg.Storage.Driver)
			if cfg.Storage.Driver == "sqlite" {
				fmt.Fprintf(out, "  path: %s\n", cfg.Storage.SQLitePath)
			}

			fmt.Fprintln(out, "\nFeedback:")
			fmt.Fprintf(out, "  unfamiliar_threshold: %d\n", cfg.Feedback.UnfamiliarThreshold)

			fmt.Fprintf(out, "\nConfig path: %s\n", filepath.Join(dir, "config.yaml"))
			return nil
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write the default configuration to ~/.coach/config.yaml",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.SaveLocalConfig(config.DefaultLocalConfig()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Default configuration written")
			return nil
		},
	})

	return cmd
}
