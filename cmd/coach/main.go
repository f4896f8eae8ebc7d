package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/coach/internal/app"
	"github.com/felixgeelhaar/coach/internal/config"
	"github.com/felixgeelhaar/coach/internal/logging"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	pidFile = "coachd.pid"
	logFile = "coachd.log"
)

var logLevel string

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "coach",
		Short: "Practice coding questions with one piece of feedback at a time",
		Long: `Coach runs your solution against a question's tests and answers with the
single most useful piece of feedback: a syntax error, a failing case, a hint.
It never shows the solution.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := logging.Setup(logging.Options{Level: logLevel, Stderr: true})
			return err
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	root.AddCommand(
		newQuestionCmd(),
		newSessionCmd(),
		newSubmitCmd(),
		newDraftCmd(),
		newStartCmd(),
		newStopCmd(),
		newStatusCmd(),
		newLogsCmd(),
		newWorkerCmd(),
		newMCPCmd(),
		newConfigCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "coach %s\n", Version)
			},
		},
	)
	return root
}

// loadConfig ensures ~/.coach exists and loads its configuration.
func loadConfig() (*config.LocalConfig, string, error) {
	dir, err := config.EnsureCoachDir()
	if err != nil {
		return nil, "", fmt.Errorf("setup coach directory: %w", err)
	}
	cfg, err := config.LoadLocalConfigFrom(dir)
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	return cfg, dir, nil
}

// openApp wires the services for commands that work in-process.
func openApp(ctx context.Context) (*app.App, error) {
	cfg, dir, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.New(ctx, cfg, dir)
}

func daemonAddr(cfg *config.LocalConfig) string {
	return fmt.Sprintf("http://%s:%d", cfg.Daemon.Bind, cfg.Daemon.Port)
}
