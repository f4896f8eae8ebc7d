package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// Executor runs the harness over a set of files and captures its output.
type Executor interface {
	Execute(ctx context.Context, req ExecRequest) (*Output, error)
}

// ExecRequest is one harness invocation.
type ExecRequest struct {
	SessionID string
	Files     map[string]string
	Timeout   time.Duration
}

// Output is the raw outcome of running the harness.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// LocalExecutor runs the harness with a local Python interpreter. It has no
// isolation and is meant for development and trusted single-user setups.
type LocalExecutor struct {
	python string
}

// NewLocalExecutor creates a local executor. An empty interpreter path
// defaults to python3 on PATH.
func NewLocalExecutor(python string) *LocalExecutor {
	if python == "" {
		python = "python3"
	}
	return &LocalExecutor{python: python}
}

// Execute writes the files to a temp directory and runs the harness there.
func (e *LocalExecutor) Execute(ctx context.Context, req ExecRequest) (*Output, error) {
	tmpDir, err := createTempCodeDir(req.Files)
	if err != nil {
		return nil, fmt.Errorf("prepare run dir: %w", err)
	}
	defer removeTempDir(tmpDir)

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, e.python, HarnessFile)
	cmd.Dir = tmpDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	duration := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		return nil, fmt.Errorf("run harness: %w", err)
	}

	return &Output{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: cmd.ProcessState.ExitCode(),
		Duration: duration,
	}, nil
}

func createTempCodeDir(files map[string]string) (string, error) {
	tmpDir, err := os.MkdirTemp("", "coach-run-*")
	if err != nil {
		return "", err
	}

	for filename, content := range files {
		filePath := filepath.Join(tmpDir, filename)
		if dir := filepath.Dir(filePath); dir != tmpDir {
			if err := os.MkdirAll(dir, 0755); err != nil {
				removeTempDir(tmpDir)
				return "", err
			}
		}
		if err := os.WriteFile(filePath, []byte(content), 0644); err != nil {
			removeTempDir(tmpDir)
			return "", err
		}
	}

	return tmpDir, nil
}

func removeTempDir(dir string) {
	os.RemoveAll(dir)
}

var _ Executor = (*LocalExecutor)(nil)
