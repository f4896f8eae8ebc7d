package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// loadDotEnv reads .env from the working directory and from dir. Variables
// already set in the environment win.
func loadDotEnv(dir string) {
	for _, path := range []string{".env", filepath.Join(dir, ".env")} {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
		}
	}
}

// envVar binds one environment variable to a config field.
type envVar struct {
	key string
	set func(string) error
}

func str(p *string) func(string) error {
	return func(v string) error { *p = v; return nil }
}

func integer(p *int) func(string) error {
	return func(v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("not an integer")
		}
		*p = n
		return nil
	}
}

func number(p *float64) func(string) error {
	return func(v string) error {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.New("not a number")
		}
		*p = f
		return nil
	}
}

// list parses a comma separated list, dropping empty entries.
func list(p *[]string) func(string) error {
	return func(v string) error {
		var out []string
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		*p = out
		return nil
	}
}

func envVars(cfg *LocalConfig) []envVar {
	return []envVar{
		{"COACH_PORT", integer(&cfg.Daemon.Port)},
		{"COACH_BIND", str(&cfg.Daemon.Bind)},
		{"COACH_LOG_LEVEL", str(&cfg.Daemon.LogLevel)},

		{"COACH_EXECUTOR", str(&cfg.Runner.Executor)},
		{"COACH_PYTHON", str(&cfg.Runner.Python)},
		{"CODE_EXECUTION_TIMEOUT_SECONDS", integer(&cfg.Runner.TimeoutSeconds)},
		{"COACH_RUNNER_IMAGE", str(&cfg.Runner.Docker.Image)},
		{"COACH_RUNNER_MEMORY_MB", integer(&cfg.Runner.Docker.MemoryMB)},
		{"COACH_RUNNER_CPU_LIMIT", number(&cfg.Runner.Docker.CPULimit)},

		{"COACH_UNFAMILIAR_THRESHOLD", integer(&cfg.Feedback.UnfamiliarThreshold)},
		{"COACH_SUPPORTED_LIBRARIES", list(&cfg.Feedback.SupportedLibraries)},

		{"COACH_STORAGE", str(&cfg.Storage.Driver)},
		{"COACH_SQLITE_PATH", str(&cfg.Storage.SQLitePath)},
		{"DATABASE_URL", str(&cfg.Storage.PostgresURL)},
		{"REDIS_URL", str(&cfg.Storage.RedisURL)},

		{"RABBITMQ_URL", str(&cfg.Queue.URL)},
		{"COACH_WORKER_CONCURRENCY", integer(&cfg.Queue.Concurrency)},

		{"COACH_QUESTIONS_PATH", str(&cfg.Questions.Path)},
	}
}

// applyEnv overrides cfg with the environment. Unset and empty variables
// leave the field alone; malformed values are reported together.
func applyEnv(cfg *LocalConfig) error {
	var errs []error
	for _, v := range envVars(cfg) {
		raw := os.Getenv(v.key)
		if raw == "" {
			continue
		}
		if err := v.set(raw); err != nil {
			errs = append(errs, fmt.Errorf("%s=%q: %w", v.key, raw, err))
		}
	}
	return errors.Join(errs...)
}
