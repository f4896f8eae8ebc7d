package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/coach/internal/engine"
	"github.com/felixgeelhaar/coach/internal/queue"
)

// queueWait bounds how long an enqueued submission may take end to end.
const queueWait = 2 * time.Minute

func newSubmitCmd() *cobra.Command {
	var unfamiliar, viaQueue bool

	cmd := &cobra.Command{
		Use:   "submit <session> <file>",
		Short: "Submit a solution and get feedback",
		Long: `Submit a solution file (or - for stdin) to a session. With --queue the
submission is handed to a worker over RabbitMQ instead of running here.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readSource(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			req := engine.SubmitRequest{SessionID: args[0], Code: code, LanguageUnfamiliar: unfamiliar}

			var outcome *engine.Outcome
			if viaQueue {
				outcome, err = submitViaQueue(cmd.Context(), req)
			} else {
				outcome, err = submitLocal(cmd.Context(), req)
			}
			if err != nil {
				return err
			}
			printOutcome(cmd.OutOrStdout(), outcome)
			return nil
		},
	}
	cmd.Flags().BoolVar(&unfamiliar, "unfamiliar", false, "include a primer on the solution language")
	cmd.Flags().BoolVar(&viaQueue, "queue", false, "evaluate on a queue worker")
	return cmd
}

func readSource(stdin io.Reader, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("read solution: %w", err)
	}
	return string(data), nil
}

func submitLocal(ctx context.Context, req engine.SubmitRequest) (*engine.Outcome, error) {
	a, err := openApp(ctx)
	if err != nil {
		return nil, err
	}
	defer a.Close()
	return a.Engine.Submit(ctx, req)
}

func submitViaQueue(ctx context.Context, req engine.SubmitRequest) (*engine.Outcome, error) {
	cfg, _, err := loadConfig()
	if err != nil {
		return nil, err
	}

	conn, err := queue.NewConnection(cfg.Queue.URL)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	results := queue.NewResultConsumer(conn)
	if err := results.Start(ctx); err != nil {
		return nil, err
	}
	defer results.Stop()

	ctx, cancel := context.WithTimeout(ctx, queueWait)
	defer cancel()

	job := queue.NewSubmissionJob(req.SessionID, req.Code, req.LanguageUnfamiliar)
	result, err := results.Request(ctx, queue.NewProducer(conn), job)
	if err != nil {
		return nil, fmt.Errorf("wait for worker: %w", err)
	}
	if result.Status != queue.StatusCompleted {
		return nil, fmt.Errorf("submission %s: %s", result.Status, result.Error)
	}
	return result.Outcome, nil
}
