// Package engine runs one submission through the prerequisite checks, the
// sandboxed execution, evaluation and feedback selection, and persists the
// outcome in the session.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/evaluator"
	"github.com/felixgeelhaar/coach/internal/feedback"
	"github.com/felixgeelhaar/coach/internal/reinforcement"
	"github.com/felixgeelhaar/coach/internal/runner"
	"github.com/felixgeelhaar/coach/internal/session"
	"github.com/felixgeelhaar/coach/internal/transcript"
)

// ErrSessionCompleted is returned for submissions to a finished session.
var ErrSessionCompleted = errors.New("session is completed")

// Checker performs the static checks on a submission.
type Checker interface {
	Check(ctx context.Context, lang domain.Language, starterCode, code string) (domain.PrereqFailure, error)
}

// Observer is notified of every evaluated submission.
type Observer interface {
	ObserveSubmission(category domain.FeedbackCategory, duration time.Duration)
}

// Config configures an Engine.
type Config struct {
	// UnfamiliarThreshold is the number of consecutive syntax-error or
	// wrong-language feedbacks after which the language primer is suggested.
	UnfamiliarThreshold int
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{UnfamiliarThreshold: 3}
}

// Deps are the collaborators of an Engine.
type Deps struct {
	Questions   session.QuestionSource
	Sessions    session.Store
	Transcripts transcript.Store
	Checker     Checker
	Runner      runner.Adapter
	Selector    *feedback.Selector
	Tracker     *reinforcement.Tracker
	Locker      Locker   // optional, defaults to a LocalLocker
	Observer    Observer // optional
}

// Engine evaluates submissions. It is safe for concurrent use; submissions
// to the same session are serialized.
type Engine struct {
	cfg  Config
	deps Deps
}

// New creates an engine.
func New(cfg Config, deps Deps) *Engine {
	if cfg.UnfamiliarThreshold <= 0 {
		cfg.UnfamiliarThreshold = DefaultConfig().UnfamiliarThreshold
	}
	if deps.Locker == nil {
		deps.Locker = NewLocalLocker()
	}
	if deps.Tracker == nil {
		deps.Tracker = reinforcement.NewTracker()
	}
	return &Engine{cfg: cfg, deps: deps}
}

// SubmitRequest is one submission.
type SubmitRequest struct {
	SessionID string
	Code      string
	// LanguageUnfamiliar forces the language primer paragraph.
	LanguageUnfamiliar bool
}

// Outcome is what a submission produced.
type Outcome struct {
	SessionID     string           `json:"session_id"`
	SnapshotID    string           `json:"snapshot_id"`
	TaskIndex     int              `json:"task_index"`
	Feedback      *domain.Feedback `json:"feedback"`
	Reinforcement []string         `json:"reinforcement,omitempty"`
	// Advanced is set when the submission unlocked the next task.
	Advanced         bool     `json:"advanced"`
	NextInstructions []string `json:"next_instructions,omitempty"`
	Completed        bool     `json:"completed"`
}

// Submit evaluates code for a session. A returned error is either a lookup
// failure or an internal invariant violation; infrastructure failures while
// running the code come back as SERVER_ERROR feedback.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*Outcome, error) {
	unlock, err := e.deps.Locker.Lock(ctx, req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	defer unlock()

	start := time.Now()
	sess, err := e.deps.Sessions.Get(ctx, req.SessionID)
	if err != nil {
		return nil, err
	}
	if !sess.IsActive() {
		return nil, fmt.Errorf("%w: %s", ErrSessionCompleted, sess.ID)
	}
	q, err := e.deps.Questions.Get(sess.QuestionID)
	if err != nil {
		return nil, err
	}
	task, err := q.Task(sess.TaskIndex)
	if err != nil {
		return nil, err
	}
	tr, err := e.deps.Transcripts.Load(ctx, sess.ID)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	tasks := q.TasksThrough(sess.TaskIndex)
	state := feedback.NewSessionState()
	if sess.State != nil {
		state = sess.State.Clone()
	}
	fr := feedback.Request{
		SessionID:          sess.ID,
		Tasks:              tasks,
		TaskIndex:          sess.TaskIndex,
		HasNextTask:        !q.IsLastTask(sess.TaskIndex),
		Transcript:         tr,
		State:              state,
		Language:           sess.Language,
		LanguageUnfamiliar: req.LanguageUnfamiliar || sess.UnfamiliarStreak >= e.cfg.UnfamiliarThreshold,
	}

	e.run(ctx, sess, q, req.Code, &fr)

	if fr.Result != nil && !fr.Result.HasError() {
		eval, err := evaluator.Evaluate(tasks, fr.Result)
		if err != nil {
			slog.Error("evaluation failed", "session_id", sess.ID, "error", err)
			return nil, err
		}
		fr.Evaluation = eval
	}
	if fr.Result != nil {
		fr.Reinforcement = e.deps.Tracker.Update(task, fr.Result, tr)
	}

	fb, err := e.deps.Selector.Select(fr)
	if err != nil {
		return nil, err
	}

	snap := tr.MostRecent()
	before := sess.Clone()

	out := &Outcome{
		SessionID:  sess.ID,
		SnapshotID: snap.ID,
		TaskIndex:  sess.TaskIndex,
		Feedback:   fb,
	}
	if snap.Reinforcement != nil {
		out.Reinforcement = snap.Reinforcement.Summary()
	}

	if fb.Category != domain.CategoryServerError {
		sess.State = state
	}
	sess.TrackUnfamiliarity(fb.Category)
	sess.RecordSubmission()
	if fb.Category == domain.CategorySuccessful && fr.Evaluation != nil && fr.Evaluation.AllPassed() {
		if q.IsLastTask(sess.TaskIndex) {
			sess.Complete()
			out.Completed = true
		} else {
			sess.AdvanceTask()
			out.Advanced = true
			out.NextInstructions = q.Tasks[sess.TaskIndex].Instructions
		}
	}
	// The session is saved before the snapshot. If the append fails the
	// session is put back, so neither store holds half an attempt.
	if err := e.deps.Sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	if err := e.deps.Transcripts.Append(ctx, sess.ID, snap); err != nil {
		if rerr := e.deps.Sessions.Save(context.WithoutCancel(ctx), before); rerr != nil {
			slog.Error("session saved without its snapshot",
				"session_id", sess.ID,
				"snapshot_id", snap.ID,
				"error", rerr)
		}
		return nil, fmt.Errorf("append snapshot: %w", err)
	}

	if e.deps.Observer != nil {
		e.deps.Observer.ObserveSubmission(fb.Category, time.Since(start))
	}
	slog.Info("submission evaluated",
		"session_id", sess.ID,
		"task_index", out.TaskIndex,
		"category", fb.Category,
		"advanced", out.Advanced,
		"duration", time.Since(start))
	return out, nil
}

// run fills in the prerequisite failure, the execution result or the
// infrastructure error of fr.
func (e *Engine) run(ctx context.Context, sess *session.Session, q *domain.Question, code string, fr *feedback.Request) {
	failure, err := e.deps.Checker.Check(ctx, sess.Language, q.StarterCode[sess.Language], code)
	if err != nil {
		slog.Error("prerequisite check failed", "session_id", sess.ID, "error", err)
		fr.ExecErr = err
		return
	}
	if failure != nil {
		fr.PrereqFailure = failure
		return
	}

	exec, err := e.deps.Runner.Run(ctx, runner.Program{
		SessionID:     sess.ID,
		Code:          code,
		AuxiliaryCode: q.AuxiliaryCode[sess.Language],
		Tasks:         fr.Tasks,
	})
	if err != nil {
		slog.Error("execution failed", "session_id", sess.ID, "error", err)
		fr.ExecErr = err
		return
	}
	fr.Result = exec.Result
	fr.RawLineIndexes = exec.RawLineIndexes
}
