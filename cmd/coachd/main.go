package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/felixgeelhaar/coach/internal/app"
	"github.com/felixgeelhaar/coach/internal/config"
	"github.com/felixgeelhaar/coach/internal/daemon"
	"github.com/felixgeelhaar/coach/internal/logging"
	"github.com/felixgeelhaar/coach/internal/queue"
)

// Version is set at build time via ldflags
var Version = "dev"

const (
	pidFileName = "coachd.pid"
	logFileName = "coachd.log"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	coachDir, err := config.EnsureCoachDir()
	if err != nil {
		return fmt.Errorf("ensure coach dir: %w", err)
	}

	cfg, err := config.LoadLocalConfigFrom(coachDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logCloser, err := logging.Setup(logging.Options{
		Level:  cfg.Daemon.LogLevel,
		File:   filepath.Join(coachDir, "logs", logFileName),
		Stderr: true,
	})
	if err != nil {
		return fmt.Errorf("setup logging: %w", err)
	}
	defer logCloser.Close()

	pidPath := filepath.Join(coachDir, pidFileName)
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, coachDir)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	if a.Sandboxes != nil {
		if _, err := a.Sandboxes.Recover(ctx); err != nil {
			slog.Warn("sandbox recovery failed", "error", err)
		}
	}

	serverCfg := daemon.ServerConfig{
		Addr:      fmt.Sprintf("%s:%d", cfg.Daemon.Bind, cfg.Daemon.Port),
		Version:   Version,
		Questions: a.Questions,
		Sessions:  a.Sessions,
		Engine:    a.Engine,
		Metrics:   a.Metrics,
	}

	// Async submissions need a broker; without one the daemon still serves
	// synchronous submissions.
	if conn, err := queue.NewConnection(cfg.Queue.URL); err != nil {
		slog.Warn("queue not available, async submissions disabled", "error", err)
	} else {
		defer conn.Close()
		serverCfg.Jobs = queue.NewProducer(conn)
	}

	server := daemon.NewServer(serverCfg)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		slog.Info("received signal, shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}

	slog.Info("daemon stopped")
	return nil
}

func writePIDFile(path string) error {
	pid := os.Getpid()
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", pid)), 0644)
}
