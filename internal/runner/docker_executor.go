package runner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/felixgeelhaar/coach/internal/sandbox"
)

// DockerExecutor runs the harness inside the session's sandbox container.
type DockerExecutor struct {
	manager *sandbox.Manager
	python  string
}

// NewDockerExecutor creates an executor backed by a sandbox manager.
func NewDockerExecutor(manager *sandbox.Manager) *DockerExecutor {
	return &DockerExecutor{manager: manager, python: "python3"}
}

// Execute runs the harness in the session's sandbox. Output past the
// sandbox's cap is dropped; learner prints are captured inside the harness,
// so only a runaway report can hit it.
func (e *DockerExecutor) Execute(ctx context.Context, req ExecRequest) (*Output, error) {
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	res, err := e.manager.Run(ctx, req.SessionID, req.Files, []string{e.python, HarnessFile})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("run in sandbox: %w", err)
	}
	if res.Truncated {
		slog.Warn("sandbox output truncated", "session_id", req.SessionID)
	}

	return &Output{
		Stdout:   res.Stdout,
		Stderr:   res.Stderr,
		ExitCode: res.ExitCode,
		Duration: res.Duration,
	}, nil
}

var _ Executor = (*DockerExecutor)(nil)
