package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"loud", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMultiHandler(t *testing.T) {
	var info, errs bytes.Buffer
	h := NewMultiHandler(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&errs, &slog.HandlerOptions{Level: slog.LevelError}),
	)
	logger := slog.New(h).With("session_id", "s1")

	logger.Info("submission evaluated")
	logger.Error("evaluation failed")

	if got := strings.Count(info.String(), "\n"); got != 2 {
		t.Errorf("info handler got %d records, want 2", got)
	}
	if strings.Contains(errs.String(), "submission evaluated") {
		t.Error("error handler received an info record")
	}
	if !strings.Contains(errs.String(), "session_id=s1") {
		t.Error("attributes were not propagated")
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("debug should be disabled")
	}
}

func TestSetup_File(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	path := filepath.Join(t.TempDir(), "logs", "coachd.log")
	closer, err := Setup(Options{Level: "info", File: path})
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	slog.Info("daemon started", "port", 7433)
	if err := closer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"msg":"daemon started"`) {
		t.Errorf("log file = %s, want JSON record", data)
	}
}
