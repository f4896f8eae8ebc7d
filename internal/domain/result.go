package domain

import (
	"fmt"
	"strings"
)

// ExecutionResult is the structured outcome of running a submission. A run
// either completes (outputs populated, no error) or fails (error set,
// outputs empty), never both.
type ExecutionResult struct {
	Code                   string               `json:"code"`
	Output                 string               `json:"output"`
	ObservedOutputs        [][][]Value          `json:"observed_outputs"`
	BuggyOutputTestResults [][]bool             `json:"buggy_output_test_results"`
	PerformanceTestResults [][]PerformanceClass `json:"performance_test_results"`
	ErrorMessage           string               `json:"error_message,omitempty"`
	ErrorInput             Value                `json:"error_input,omitempty"`
}

// NewCompletedResult builds the result of a run that finished without error.
func NewCompletedResult(code, output string, observed [][][]Value, buggy [][]bool, perf [][]PerformanceClass) *ExecutionResult {
	return &ExecutionResult{
		Code:                   code,
		Output:                 output,
		ObservedOutputs:        observed,
		BuggyOutputTestResults: buggy,
		PerformanceTestResults: perf,
	}
}

// NewErrorResult builds the result of a run that raised an error.
func NewErrorResult(code, errorMessage string, errorInput Value) *ExecutionResult {
	return &ExecutionResult{
		Code:         code,
		ErrorMessage: errorMessage,
		ErrorInput:   errorInput,
	}
}

// HasError reports whether the run failed.
func (r *ExecutionResult) HasError() bool {
	return r.ErrorMessage != ""
}

// Validate enforces the mutual exclusion of error and outputs.
func (r *ExecutionResult) Validate() error {
	if r.HasError() && (len(r.ObservedOutputs) > 0 || len(r.BuggyOutputTestResults) > 0 || len(r.PerformanceTestResults) > 0) {
		return fmt.Errorf("%w: error and outputs are both set", ErrInvalidResult)
	}
	return nil
}

// HasSameRawCodeAs reports whether both results were produced by the same
// submission text.
func (r *ExecutionResult) HasSameRawCodeAs(other *ExecutionResult) bool {
	return other != nil && r.Code == other.Code
}

// ErrorKind classifies how a run failed.
type ErrorKind int

const (
	ErrorKindNone ErrorKind = iota
	ErrorKindTimeout
	ErrorKindStackExceeded
	ErrorKindSyntax
	ErrorKindRuntime
)

// String returns the name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorKindNone:
		return "none"
	case ErrorKindTimeout:
		return "timeout"
	case ErrorKindStackExceeded:
		return "stack_exceeded"
	case ErrorKindSyntax:
		return "syntax"
	case ErrorKindRuntime:
		return "runtime"
	}
	return "unknown"
}

// Error message prefixes produced by the execution adapter.
const (
	TimeLimitErrorPrefix = "TimeLimitError"
	RecursionErrorPrefix = "RecursionError"
)

var syntaxErrorPrefixes = []string{"SyntaxError", "IndentationError", "TabError"}

var stackExceededMarkers = []string{RecursionErrorPrefix, "maximum recursion depth", "Maximum call stack"}

// ErrorKind classifies the error message of the run.
func (r *ExecutionResult) ErrorKind() ErrorKind {
	msg := r.ErrorMessage
	if msg == "" {
		return ErrorKindNone
	}
	if strings.HasPrefix(msg, TimeLimitErrorPrefix) {
		return ErrorKindTimeout
	}
	for _, marker := range stackExceededMarkers {
		if strings.Contains(msg, marker) {
			return ErrorKindStackExceeded
		}
	}
	for _, prefix := range syntaxErrorPrefixes {
		if strings.HasPrefix(msg, prefix) {
			return ErrorKindSyntax
		}
	}
	return ErrorKindRuntime
}

// ObservedOutput returns the observed output for a test case, or nil when
// the result has no slot for it.
func (r *ExecutionResult) ObservedOutput(task, suite, testCase int) Value {
	if task >= len(r.ObservedOutputs) || suite >= len(r.ObservedOutputs[task]) ||
		testCase >= len(r.ObservedOutputs[task][suite]) {
		return nil
	}
	return r.ObservedOutputs[task][suite][testCase]
}
