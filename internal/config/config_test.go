package config

import (
	"reflect"
	"strings"
	"testing"
)

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(*LocalConfig) bool
	}{
		{
			name:  "timeout",
			env:   map[string]string{"CODE_EXECUTION_TIMEOUT_SECONDS": "4"},
			check: func(c *LocalConfig) bool { return c.Runner.TimeoutSeconds == 4 },
		},
		{
			name: "postgres storage",
			env: map[string]string{
				"COACH_STORAGE": "postgres",
				"DATABASE_URL":  "postgres://coach@localhost/coach",
			},
			check: func(c *LocalConfig) bool {
				return c.Storage.Driver == "postgres" && c.Storage.PostgresURL == "postgres://coach@localhost/coach"
			},
		},
		{
			name: "docker limits",
			env: map[string]string{
				"COACH_EXECUTOR":         "docker",
				"COACH_RUNNER_MEMORY_MB": "512",
				"COACH_RUNNER_CPU_LIMIT": "1.5",
			},
			check: func(c *LocalConfig) bool {
				return c.Runner.Executor == "docker" && c.Runner.Docker.MemoryMB == 512 && c.Runner.Docker.CPULimit == 1.5
			},
		},
		{
			name: "library list",
			env:  map[string]string{"COACH_SUPPORTED_LIBRARIES": " math, re ,,string"},
			check: func(c *LocalConfig) bool {
				return reflect.DeepEqual(c.Feedback.SupportedLibraries, []string{"math", "re", "string"})
			},
		},
		{
			name:  "empty value keeps default",
			env:   map[string]string{"COACH_PORT": ""},
			check: func(c *LocalConfig) bool { return c.Daemon.Port == DefaultLocalConfig().Daemon.Port },
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg := DefaultLocalConfig()
			if err := applyEnv(cfg); err != nil {
				t.Fatalf("applyEnv() error = %v", err)
			}
			if !tt.check(cfg) {
				t.Errorf("config after %v = %+v", tt.env, cfg)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate() error = %v", err)
			}
		})
	}
}

func TestApplyEnv_Malformed(t *testing.T) {
	t.Setenv("COACH_PORT", "http")
	t.Setenv("COACH_RUNNER_CPU_LIMIT", "half")

	cfg := DefaultLocalConfig()
	err := applyEnv(cfg)
	if err == nil {
		t.Fatal("applyEnv() accepted malformed values")
	}
	for _, key := range []string{"COACH_PORT", "COACH_RUNNER_CPU_LIMIT"} {
		if !strings.Contains(err.Error(), key) {
			t.Errorf("error %q does not name %s", err, key)
		}
	}
	if cfg.Daemon.Port != DefaultLocalConfig().Daemon.Port {
		t.Errorf("Port = %d, want default after a bad value", cfg.Daemon.Port)
	}
}
