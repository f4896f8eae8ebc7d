package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCoachDir(t *testing.T) {
	t.Setenv("COACH_HOME", "")
	dir, err := CoachDir()
	if err != nil {
		t.Fatalf("CoachDir() error = %v", err)
	}
	if filepath.Base(dir) != ".coach" {
		t.Errorf("CoachDir() = %q, want to end with .coach", dir)
	}

	t.Setenv("COACH_HOME", "/tmp/elsewhere")
	if dir, _ := CoachDir(); dir != "/tmp/elsewhere" {
		t.Errorf("CoachDir() = %q, want COACH_HOME", dir)
	}
}

func TestEnsureCoachDir(t *testing.T) {
	home := filepath.Join(t.TempDir(), "coach")
	t.Setenv("COACH_HOME", home)

	dir, err := EnsureCoachDir()
	if err != nil {
		t.Fatalf("EnsureCoachDir() error = %v", err)
	}
	for _, sub := range []string{"logs", "sessions", "questions"} {
		if info, err := os.Stat(filepath.Join(dir, sub)); err != nil || !info.IsDir() {
			t.Errorf("subdirectory %s missing", sub)
		}
	}
}

func TestDefaultLocalConfig(t *testing.T) {
	cfg := DefaultLocalConfig()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults do not validate: %v", err)
	}
	if cfg.Runner.TimeoutSeconds != 10 {
		t.Errorf("TimeoutSeconds = %d, want 10", cfg.Runner.TimeoutSeconds)
	}
	if cfg.Feedback.UnfamiliarThreshold != 3 {
		t.Errorf("UnfamiliarThreshold = %d, want 3", cfg.Feedback.UnfamiliarThreshold)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Errorf("Storage.Driver = %q, want sqlite", cfg.Storage.Driver)
	}

	rc := cfg.Runner.RunnerServiceConfig()
	if rc.Timeout != 10*time.Second {
		t.Errorf("runner Timeout = %v, want 10s", rc.Timeout)
	}
	sc := cfg.Runner.Docker.SandboxConfig()
	if sc.IdleTTL != 15*time.Minute {
		t.Errorf("sandbox IdleTTL = %v, want 15m", sc.IdleTTL)
	}
}

func TestLoadLocalConfigFrom(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
		check   func(t *testing.T, cfg *LocalConfig)
	}{
		{
			name: "defaults when no file",
			check: func(t *testing.T, cfg *LocalConfig) {
				if cfg.Daemon.Port != 7433 {
					t.Errorf("Port = %d, want 7433", cfg.Daemon.Port)
				}
				if !filepath.IsAbs(cfg.Storage.SQLitePath) {
					t.Errorf("SQLitePath = %q, want absolute", cfg.Storage.SQLitePath)
				}
			},
		},
		{
			name: "file overrides",
			yaml: "daemon:\n  port: 9000\nrunner:\n  timeout_seconds: 3\nfeedback:\n  supported_libraries: [math]\n",
			check: func(t *testing.T, cfg *LocalConfig) {
				if cfg.Daemon.Port != 9000 || cfg.Runner.TimeoutSeconds != 3 {
					t.Errorf("config = %+v", cfg)
				}
				if len(cfg.Feedback.SupportedLibraries) != 1 {
					t.Errorf("SupportedLibraries = %v, want [math]", cfg.Feedback.SupportedLibraries)
				}
			},
		},
		{
			name:    "invalid yaml",
			yaml:    "daemon: [",
			wantErr: true,
		},
		{
			name:    "fails validation",
			yaml:    "runner:\n  executor: podman\n",
			wantErr: true,
		},
		{
			name:    "postgres needs a url",
			yaml:    "storage:\n  driver: postgres\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "")
			dir := t.TempDir()
			if tt.yaml != "" {
				if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(tt.yaml), 0644); err != nil {
					t.Fatalf("write config: %v", err)
				}
			}
			cfg, err := LoadLocalConfigFrom(dir)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadLocalConfigFrom() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestLoadLocalConfigFrom_DotEnv(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte("COACH_LOG_LEVEL=debug\n"), 0644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	t.Setenv("COACH_LOG_LEVEL", "")
	os.Unsetenv("COACH_LOG_LEVEL")

	cfg, err := LoadLocalConfigFrom(dir)
	if err != nil {
		t.Fatalf("LoadLocalConfigFrom() error = %v", err)
	}
	if cfg.Daemon.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug from .env", cfg.Daemon.LogLevel)
	}
	os.Unsetenv("COACH_LOG_LEVEL")
}

func TestSaveLocalConfig(t *testing.T) {
	home := filepath.Join(t.TempDir(), "coach")
	t.Setenv("COACH_HOME", home)

	cfg := DefaultLocalConfig()
	cfg.Daemon.Port = 8123
	if err := SaveLocalConfig(cfg); err != nil {
		t.Fatalf("SaveLocalConfig() error = %v", err)
	}

	loaded, err := LoadLocalConfig()
	if err != nil {
		t.Fatalf("LoadLocalConfig() error = %v", err)
	}
	if loaded.Daemon.Port != 8123 {
		t.Errorf("Port = %d, want 8123", loaded.Daemon.Port)
	}
}
