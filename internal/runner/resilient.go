package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/fortify/bulkhead"
	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/ratelimit"
	"github.com/felixgeelhaar/fortify/retry"
)

// ErrRateLimited is returned when a session submits faster than allowed.
var ErrRateLimited = errors.New("submission rate limit exceeded")

// ResilientExecutor wraps an executor with resilience patterns from fortify.
// Deadline and cancellation errors are never retried or counted against the
// circuit.
type ResilientExecutor struct {
	executor       Executor
	circuitBreaker circuitbreaker.CircuitBreaker[*Output]
	retrier        retry.Retry[*Output]
	bulkhead       bulkhead.Bulkhead[*Output]
	rateLimit      ratelimit.RateLimiter
	logger         *slog.Logger
}

// ResilientConfig configures ResilientExecutor.
type ResilientConfig struct {
	EnableCircuitBreaker bool `yaml:"circuit_breaker"`
	EnableRetry          bool `yaml:"retry"`
	EnableBulkhead       bool `yaml:"bulkhead"`
	EnableRateLimit      bool `yaml:"rate_limit"`

	// MaxConcurrent runs across all sessions (default: 4).
	MaxConcurrent int `yaml:"max_concurrent"`

	// SubmissionsPerMinute per session (default: 30).
	SubmissionsPerMinute int `yaml:"submissions_per_minute"`

	Logger *slog.Logger `yaml:"-"`
}

// DefaultResilientConfig returns defaults for executor resilience.
func DefaultResilientConfig() ResilientConfig {
	return ResilientConfig{
		EnableCircuitBreaker: true,
		EnableRetry:          true,
		EnableBulkhead:       true,
		EnableRateLimit:      true,
		MaxConcurrent:        4,
		SubmissionsPerMinute: 30,
	}
}

// NewResilientExecutor wraps executor with the enabled patterns.
func NewResilientExecutor(executor Executor, cfg ResilientConfig) *ResilientExecutor {
	re := &ResilientExecutor{executor: executor, logger: cfg.Logger}
	if re.logger == nil {
		re.logger = slog.Default()
	}

	if cfg.EnableCircuitBreaker {
		re.circuitBreaker = circuitbreaker.New[*Output](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 5
			},
			OnStateChange: func(from, to circuitbreaker.State) {
				re.logger.Warn("executor circuit breaker state change",
					"from", from.String(),
					"to", to.String())
			},
		})
	}

	if cfg.EnableRetry {
		re.retrier = retry.New[*Output](retry.Config{
			MaxAttempts:   2,
			InitialDelay:  200 * time.Millisecond,
			MaxDelay:      2 * time.Second,
			Multiplier:    2.0,
			BackoffPolicy: retry.BackoffExponential,
			Jitter:        true,
			IsRetryable:   isInfrastructureError,
		})
	}

	if cfg.EnableBulkhead {
		maxConcurrent := cfg.MaxConcurrent
		if maxConcurrent <= 0 {
			maxConcurrent = 4
		}
		re.bulkhead = bulkhead.New[*Output](bulkhead.Config{
			MaxConcurrent: maxConcurrent,
			MaxQueue:      maxConcurrent * 4,
			QueueTimeout:  30 * time.Second,
		})
	}

	if cfg.EnableRateLimit {
		perMinute := cfg.SubmissionsPerMinute
		if perMinute <= 0 {
			perMinute = 30
		}
		re.rateLimit = ratelimit.New(&ratelimit.Config{
			Rate:     perMinute,
			Burst:    perMinute / 3,
			Interval: time.Minute,
		})
	}

	return re
}

// Execute runs the request through rate limit, bulkhead, retry and circuit
// breaker, in that order from the outside in.
func (e *ResilientExecutor) Execute(ctx context.Context, req ExecRequest) (*Output, error) {
	if e.rateLimit != nil && !e.rateLimit.Allow(ctx, req.SessionID) {
		return nil, fmt.Errorf("%w: session %s", ErrRateLimited, req.SessionID)
	}

	// A run cut short by its deadline is the learner's timeout, not an
	// executor failure: it is passed through as a success and surfaced after.
	var runErr error
	operation := func(ctx context.Context) (*Output, error) {
		out, err := e.executor.Execute(ctx, req)
		if err != nil && !isInfrastructureError(err) {
			runErr = err
			return nil, nil
		}
		return out, err
	}

	if e.circuitBreaker != nil {
		inner := operation
		operation = func(ctx context.Context) (*Output, error) {
			return e.circuitBreaker.Execute(ctx, inner)
		}
	}

	if e.retrier != nil {
		inner := operation
		operation = func(ctx context.Context) (*Output, error) {
			return e.retrier.Do(ctx, inner)
		}
	}

	if e.bulkhead != nil {
		inner := operation
		operation = func(ctx context.Context) (*Output, error) {
			return e.bulkhead.Execute(ctx, inner)
		}
	}

	out, err := operation(ctx)
	if runErr != nil {
		return nil, runErr
	}
	return out, err
}

// Close releases the rate limiter.
func (e *ResilientExecutor) Close() error {
	if e.rateLimit != nil {
		return e.rateLimit.Close()
	}
	return nil
}

func isInfrastructureError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, context.Canceled) &&
		!errors.Is(err, ErrRateLimited)
}

var _ Executor = (*ResilientExecutor)(nil)
