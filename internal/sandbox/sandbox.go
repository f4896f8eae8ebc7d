// Package sandbox keeps one locked-down container per learner session and
// runs submissions inside it.
package sandbox

import (
	"errors"
	"time"
)

// State is where a sandbox is in its lifecycle.
type State string

const (
	StateStarting State = "starting"
	StateIdle     State = "idle"
	StateBusy     State = "busy"
	StateRemoved  State = "removed"
)

// Limits bounds what code inside a sandbox may consume.
type Limits struct {
	MemoryMB int     `json:"memory_mb"`
	CPU      float64 `json:"cpu"`
	Pids     int64   `json:"pids"`
	// OutputBytes caps captured stdout and stderr, each.
	OutputBytes int `json:"output_bytes"`
}

// Sandbox is the record of a session's container.
type Sandbox struct {
	ID          string     `json:"id"`
	SessionID   string     `json:"session_id"`
	ContainerID string     `json:"container_id"`
	Image       string     `json:"image"`
	State       State      `json:"state"`
	Limits      Limits     `json:"limits"`
	Runs        int        `json:"runs"`
	LastRunAt   *time.Time `json:"last_run_at,omitempty"`
	ExpiresAt   time.Time  `json:"expires_at"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// Live reports whether the container exists and can take work.
func (s *Sandbox) Live() bool {
	return s.State == StateIdle || s.State == StateBusy
}

// Usable reports whether the sandbox is live and not yet idle past its TTL.
func (s *Sandbox) Usable(now time.Time) bool {
	return s.Live() && now.Before(s.ExpiresAt)
}

func (s *Sandbox) setState(state State, now time.Time) {
	s.State = state
	s.UpdatedAt = now
}

// Output is what a command run inside a sandbox produced.
type Output struct {
	ExitCode  int           `json:"exit_code"`
	Stdout    string        `json:"stdout"`
	Stderr    string        `json:"stderr"`
	Duration  time.Duration `json:"duration"`
	Truncated bool          `json:"truncated"`
}

// Config holds the settings every new sandbox is created with.
type Config struct {
	Image        string
	Limits       Limits
	IdleTTL      time.Duration
	MaxSandboxes int
}

// DefaultConfig returns the settings for a Python sandbox.
func DefaultConfig() Config {
	return Config{
		Image: "python:3.12-alpine",
		Limits: Limits{
			MemoryMB:    256,
			CPU:         0.5,
			Pids:        32,
			OutputBytes: 1 << 20,
		},
		IdleTTL:      15 * time.Minute,
		MaxSandboxes: 10,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Image == "" {
		c.Image = d.Image
	}
	if c.Limits.MemoryMB <= 0 {
		c.Limits.MemoryMB = d.Limits.MemoryMB
	}
	if c.Limits.CPU <= 0 {
		c.Limits.CPU = d.Limits.CPU
	}
	if c.Limits.Pids <= 0 {
		c.Limits.Pids = d.Limits.Pids
	}
	if c.Limits.OutputBytes <= 0 {
		c.Limits.OutputBytes = d.Limits.OutputBytes
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = d.IdleTTL
	}
	if c.MaxSandboxes <= 0 {
		c.MaxSandboxes = d.MaxSandboxes
	}
	return c
}

var (
	ErrNotFound = errors.New("sandbox not found")
	ErrCapacity = errors.New("no sandbox capacity left")
)
