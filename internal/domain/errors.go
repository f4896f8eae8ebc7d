package domain

import "errors"

// -----------------------------------------------------------------------------
// Domain Errors
// These errors represent domain-level failures and are used by stores and
// services to communicate domain-specific error conditions.
// -----------------------------------------------------------------------------

// Question errors
var (
	ErrQuestionNotFound = errors.New("question not found")
	ErrTaskNotFound     = errors.New("task not found")
	ErrInvalidTask      = errors.New("invalid task")
)

// Session errors
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrDraftNotFound   = errors.New("draft not found")
)

// Execution result errors
var (
	ErrInvalidResult  = errors.New("invalid execution result")
	ErrResultHasError = errors.New("execution result carries an error")
	ErrResultShape    = errors.New("execution result does not match tasks")
)

// Internal invariant violations. These never produce learner-facing text.
var (
	ErrLineIndexOutOfRange  = errors.New("line number index out of range")
	ErrUnknownPrereqFailure = errors.New("unrecognized prerequisite failure kind")
	ErrUnsupportedLanguage  = errors.New("language not supported")
)

// General errors
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
)
