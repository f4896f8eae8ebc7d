package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/coach/internal/queue"
)

func newWorkerCmd() *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Evaluate queued submissions from RabbitMQ",
		Long: `Run a queue worker. It consumes submissions published by the daemon or by
'coach submit --queue', evaluates them and publishes the outcome.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			conn, err := queue.NewConnection(a.Config.Queue.URL)
			if err != nil {
				return err
			}
			defer conn.Close()

			consumer := queue.NewConsumer(conn, queue.SubmitHandler(a.Engine), queue.ConsumerConfig{
				Workers:  a.Config.Queue.Concurrency,
				Timeout:  time.Duration(a.Config.Runner.TimeoutSeconds)*time.Second + 30*time.Second,
				Observer: a.Metrics,
			})
			if err := consumer.Start(ctx); err != nil {
				return err
			}
			defer consumer.Stop()

			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: a.Metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						slog.Error("metrics server error", "error", err)
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Worker running with %d workers (Ctrl+C to stop)\n", a.Config.Queue.Concurrency)
			<-ctx.Done()
			slog.Info("worker shutting down")
			return nil
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (e.g. :9102)")
	return cmd
}
