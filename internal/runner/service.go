package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/coach/internal/domain"
)

var (
	ErrNoResult    = errors.New("harness produced no result")
	ErrRunNotFound = errors.New("run not found")
	ErrRunCanceled = errors.New("run canceled")
)

// Config holds runner configuration
type Config struct {
	Timeout            time.Duration `yaml:"timeout"`
	PerformanceSizes   []int         `yaml:"performance_sizes"`
	PerformanceRepeats int           `yaml:"performance_repeats"`
}

// DefaultConfig returns default runner configuration
func DefaultConfig() Config {
	return Config{
		Timeout:            10 * time.Second,
		PerformanceSizes:   []int{100, 200, 400, 800, 1600},
		PerformanceRepeats: 3,
	}
}

// Adapter is the execution contract the engine depends on. A returned error
// is an infrastructure failure; learner errors are carried in the result.
type Adapter interface {
	Run(ctx context.Context, prog Program) (*Execution, error)
}

// Execution is the outcome of one run.
type Execution struct {
	RunID          uuid.UUID
	Result         *domain.ExecutionResult
	RawLineIndexes []int
	Duration       time.Duration
}

// Service prepares programs, hands them to an executor under a deadline and
// parses the harness output.
type Service struct {
	config   Config
	executor Executor
	parser   *Parser

	mu      sync.Mutex
	running map[uuid.UUID]*runState
}

type runState struct {
	sessionID string
	cancel    context.CancelFunc
	canceled  bool
	doneCh    chan struct{}
}

// NewService creates a new runner service
func NewService(cfg Config, executor Executor) *Service {
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if len(cfg.PerformanceSizes) == 0 {
		cfg.PerformanceSizes = defaults.PerformanceSizes
	}
	if cfg.PerformanceRepeats <= 0 {
		cfg.PerformanceRepeats = defaults.PerformanceRepeats
	}
	return &Service{
		config:   cfg,
		executor: executor,
		parser:   NewParser(),
		running:  make(map[uuid.UUID]*runState),
	}
}

// Run executes prog. Code that cannot be wrapped into the student class is
// reported as a syntax error without running anything; a run that exceeds
// the timeout yields a TimeLimitError result.
func (s *Service) Run(ctx context.Context, prog Program) (*Execution, error) {
	if prog.RunID == uuid.Nil {
		prog.RunID = uuid.New()
	}
	exec := &Execution{RunID: prog.RunID}

	pre, err := Preprocess(prog.Code, prog.AuxiliaryCode)
	if errors.Is(err, ErrIncompleteDef) {
		exec.Result = domain.NewErrorResult(prog.Code, "SyntaxError: "+err.Error(), nil)
		return exec, nil
	}
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	exec.RawLineIndexes = pre.RawLineIndexes

	files, err := buildFiles(pre, prog.Tasks, s.config)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	state := &runState{sessionID: prog.SessionID, cancel: cancel, doneCh: make(chan struct{})}
	s.mu.Lock()
	s.running[prog.RunID] = state
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, prog.RunID)
		s.mu.Unlock()
		close(state.doneCh)
	}()

	start := time.Now()
	out, err := s.executor.Execute(ctx, ExecRequest{
		SessionID: prog.SessionID,
		Files:     files,
		Timeout:   s.config.Timeout,
	})
	exec.Duration = time.Since(start)

	switch {
	case err == nil:
	case errors.Is(err, context.DeadlineExceeded):
		exec.Result = domain.NewErrorResult(prog.Code, fmt.Sprintf(
			"%s: Program exceeded run time limit of %d seconds.",
			domain.TimeLimitErrorPrefix, int(s.config.Timeout.Seconds())), nil)
		return exec, nil
	case s.wasCanceled(state):
		return nil, fmt.Errorf("%w: %s", ErrRunCanceled, prog.RunID)
	default:
		return nil, fmt.Errorf("execute: %w", err)
	}

	result, err := s.parser.Parse(prog, out)
	if err != nil {
		slog.Error("harness output could not be parsed",
			"run_id", prog.RunID,
			"session_id", prog.SessionID,
			"exit_code", out.ExitCode,
			"error", err)
		return nil, err
	}
	exec.Result = result
	return exec, nil
}

func (s *Service) wasCanceled(state *runState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return state.canceled
}

// Cancel abandons an in-flight run.
func (s *Service) Cancel(runID uuid.UUID) error {
	s.mu.Lock()
	state, ok := s.running[runID]
	if ok {
		state.canceled = true
	}
	s.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	state.cancel()
	return nil
}

// IsRunning checks if a run is currently executing
func (s *Service) IsRunning(runID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.running[runID]
	return ok
}

// Running returns the IDs of the runs in flight for a session.
func (s *Service) Running(sessionID string) []uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for id, st := range s.running {
		if st.sessionID == sessionID {
			ids = append(ids, id)
		}
	}
	return ids
}

// Wait waits for a run to complete
func (s *Service) Wait(ctx context.Context, runID uuid.UUID) error {
	s.mu.Lock()
	state, ok := s.running[runID]
	s.mu.Unlock()

	if !ok {
		return nil
	}

	select {
	case <-state.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Adapter = (*Service)(nil)
