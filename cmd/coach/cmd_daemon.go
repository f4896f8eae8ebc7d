package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/coach/internal/config"
)

var healthClient = &http.Client{Timeout: 2 * time.Second}

func newStartCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the coach daemon in the background",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, dir, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			addr := daemonAddr(cfg)

			if isRunning(addr) {
				fmt.Fprintln(out, "✓ Daemon is already running")
				return nil
			}

			coachdPath, err := findDaemonBinary()
			if err != nil {
				return fmt.Errorf("find daemon binary: %w", err)
			}

			daemon := exec.Command(coachdPath)
			daemon.Dir = dir
			detach(daemon)

			if err := daemon.Start(); err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}

			fmt.Fprint(out, "Starting daemon...")
			for i := 0; i < 30; i++ {
				time.Sleep(100 * time.Millisecond)
				if isRunning(addr) {
					fmt.Fprintln(out, " ✓")
					fmt.Fprintf(out, "Daemon running at %s\n", addr)
					return nil
				}
				fmt.Fprint(out, ".")
			}

			fmt.Fprintln(out, " ✗")
			return fmt.Errorf("daemon failed to start (check logs with 'coach logs')")
		},
	}
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the coach daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, dir, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			addr := daemonAddr(cfg)

			if !isRunning(addr) {
				fmt.Fprintln(out, "Daemon is not running")
				return nil
			}

			pid, err := readPID(filepath.Join(dir, pidFile))
			if err != nil {
				return err
			}
			process, err := os.FindProcess(pid)
			if err != nil {
				return fmt.Errorf("find process: %w", err)
			}

			fmt.Fprint(out, "Stopping daemon...")
			if err := process.Signal(syscall.SIGTERM); err != nil {
				return fmt.Errorf("send signal: %w", err)
			}

			for i := 0; i < 50; i++ {
				time.Sleep(100 * time.Millisecond)
				if !isRunning(addr) {
					fmt.Fprintln(out, " ✓")
					return nil
				}
				fmt.Fprint(out, ".")
			}

			fmt.Fprintln(out, " ✗")
			return fmt.Errorf("daemon did not stop gracefully")
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show daemon status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			addr := daemonAddr(cfg)

			resp, err := healthClient.Get(addr + "/v1/health")
			if err != nil {
				fmt.Fprintln(out, "Status: stopped")
				return nil
			}
			defer resp.Body.Close()

			var status struct {
				Status  string `json:"status"`
				Version string `json:"version"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
				return fmt.Errorf("parse status: %w", err)
			}

			fmt.Fprintf(out, "Status:   %s\n", status.Status)
			fmt.Fprintf(out, "Version:  %s\n", status.Version)
			fmt.Fprintf(out, "Storage:  %s\n", cfg.Storage.Driver)
			fmt.Fprintf(out, "Executor: %s\n", cfg.Runner.Executor)
			fmt.Fprintf(out, "Address:  %s\n", addr)
			return nil
		},
	}
}

func newLogsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logs",
		Short: "Show recent daemon logs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.CoachDir()
			if err != nil {
				return err
			}
			logPath := filepath.Join(dir, "logs", logFile)
			if _, err := os.Stat(logPath); os.IsNotExist(err) {
				fmt.Fprintln(cmd.OutOrStdout(), "No log file found. Start the daemon first.")
				return nil
			}
			return tailFile(cmd.OutOrStdout(), logPath, 4096)
		},
	}
}

// tailFile prints the complete lines in the last n bytes of path.
func tailFile(w io.Writer, path string, n int64) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	offset := info.Size() - n
	if offset < 0 {
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(file)
	// Skip the partial first line if we seeked
	if offset > 0 {
		_, _ = reader.ReadString('\n')
	}

	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		fmt.Fprintln(w, scanner.Text())
	}
	return scanner.Err()
}

func readPID(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read PID file: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("parse PID: %w", err)
	}
	return pid, nil
}

// isRunning checks if the daemon is running by calling the health endpoint
func isRunning(addr string) bool {
	resp, err := healthClient.Get(addr + "/v1/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// findDaemonBinary locates the coachd binary
func findDaemonBinary() (string, error) {
	if path, err := exec.LookPath("coachd"); err == nil {
		return path, nil
	}

	// Check relative to this binary
	if self, err := os.Executable(); err == nil {
		path := filepath.Join(filepath.Dir(self), "coachd")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	for _, path := range []string{"/usr/local/bin/coachd", "./coachd"} {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("coachd binary not found (build with 'go build ./cmd/coachd')")
}
