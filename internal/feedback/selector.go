// Package feedback chooses the single piece of feedback returned for a
// submission and records the attempt in the session transcript.
package feedback

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"regexp"
	"strconv"
	"strings"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/evaluator"
	"github.com/felixgeelhaar/coach/internal/prereq"
)

// ErrNoState is returned when a request carries no session state.
var ErrNoState = errors.New("feedback: session state is required")

// Config configures a Selector.
type Config struct {
	// TimeoutSeconds is the execution budget quoted in timeout feedback.
	TimeoutSeconds int
	// SupportedLibraries is listed in bad import feedback.
	SupportedLibraries []string
	// Intn draws a random index in [0, n). Defaults to math/rand.
	Intn func(n int) int
}

// Selector picks feedback for submissions. It holds no per-session data;
// everything that persists between attempts lives in the transcript and the
// SessionState passed with each request.
type Selector struct {
	timeoutSeconds int
	libraries      []string
	intn           func(int) int
}

// NewSelector creates a selector.
func NewSelector(cfg Config) *Selector {
	s := &Selector{
		timeoutSeconds: cfg.TimeoutSeconds,
		libraries:      cfg.SupportedLibraries,
		intn:           cfg.Intn,
	}
	if s.timeoutSeconds <= 0 {
		s.timeoutSeconds = 10
	}
	if len(s.libraries) == 0 {
		s.libraries = prereq.DefaultSupportedLibraries
	}
	if s.intn == nil {
		s.intn = rand.Intn
	}
	return s
}

// Request is everything known about one submission.
type Request struct {
	SessionID string
	Tasks     []domain.Task
	TaskIndex int
	// HasNextTask is set when the visible tasks are not the question's last.
	HasNextTask bool

	// Exactly one of PrereqFailure, ExecErr and Result describes the outcome.
	PrereqFailure  domain.PrereqFailure
	ExecErr        error
	Result         *domain.ExecutionResult
	RawLineIndexes []int
	// Evaluation of Result; computed on demand when nil.
	Evaluation *evaluator.Evaluation

	Reinforcement *domain.ReinforcementRecord
	Transcript    *domain.Transcript
	State         *SessionState

	Language           domain.Language
	LanguageUnfamiliar bool
}

// Select returns the feedback for req and appends a snapshot of the attempt
// to req.Transcript. A returned error is an internal invariant violation;
// no snapshot is recorded for it.
func (s *Selector) Select(req Request) (*domain.Feedback, error) {
	if req.State == nil {
		return nil, ErrNoState
	}
	req.State.ensure()

	fb, err := s.selectFeedback(&req)
	if err != nil {
		slog.Error("feedback selection failed",
			"session_id", req.SessionID,
			"task_index", req.TaskIndex,
			"error", err)
		return nil, err
	}

	if req.LanguageUnfamiliar {
		if text := UnfamiliarLanguageText(req.Language); text != "" {
			fb.AppendText(text)
		}
	}

	snap := domain.NewSnapshot(req.TaskIndex, req.PrereqFailure, req.Result, fb)
	if req.ExecErr != nil {
		snap.Result = nil
	} else if req.Result != nil {
		snap.Reinforcement = req.Reinforcement
	}
	req.Transcript.Append(snap)
	return fb, nil
}

func (s *Selector) selectFeedback(req *Request) (*domain.Feedback, error) {
	switch {
	case req.PrereqFailure != nil:
		return s.prereqFeedback(req.PrereqFailure)
	case req.ExecErr != nil:
		return domain.NewFeedback(domain.CategoryServerError).AppendText(serverErrorText), nil
	case req.Result == nil:
		return nil, fmt.Errorf("%w: no result, prerequisite failure or execution error", domain.ErrInvalidResult)
	}

	result := req.Result
	switch result.ErrorKind() {
	case domain.ErrorKindTimeout:
		return domain.NewFeedback(domain.CategoryTimeLimitError).AppendText(timeoutText(s.timeoutSeconds)), nil
	case domain.ErrorKindStackExceeded:
		return domain.NewFeedback(domain.CategoryStackExceededError).AppendText(stackExceededText), nil
	case domain.ErrorKindSyntax:
		return syntaxErrorFeedback(result.ErrorMessage, req.RawLineIndexes)
	case domain.ErrorKindRuntime:
		return runtimeErrorFeedback(result, req.RawLineIndexes)
	}

	eval := req.Evaluation
	if eval == nil {
		var err error
		if eval, err = evaluator.Evaluate(req.Tasks, result); err != nil {
			return nil, err
		}
	}
	return s.taskFeedback(req, eval), nil
}

// taskFeedback scans tasks in order. Within a task, buggy output tests come
// first, then suite-level tests, correctness tests and performance tests.
func (s *Selector) taskFeedback(req *Request, eval *evaluator.Evaluation) *domain.Feedback {
	codeChanged := hasCodeChanged(req.Result, req.Transcript)

	for i := range req.Tasks {
		task := &req.Tasks[i]
		te := &eval.Tasks[i]

		for j, failing := range te.BuggyFailures {
			if !failing {
				continue
			}
			fb := hintFeedback(task.BuggyOutputTests[j].Messages, domain.CategoryKnownBugFailure, codeChanged, req.Transcript)
			if fb == nil {
				break
			}
			return fb
		}

		for j, failing := range te.SuiteLevelFailures {
			if !failing {
				continue
			}
			fb := hintFeedback(task.SuiteLevelTests[j].Messages, domain.CategorySuiteLevelFailure, codeChanged, req.Transcript)
			if fb == nil {
				break
			}
			return fb
		}

		for si, suite := range task.TestSuites {
			for ci, tc := range suite.TestCases {
				if te.CorrectnessPasses[si][ci] {
					continue
				}
				observed := req.Result.ObservedOutput(i, si, ci)
				return s.correctnessFeedback(req, tc, suite.ID, ci, observed, codeChanged)
			}
		}

		for j, failing := range te.PerformanceFailures {
			if failing {
				return domain.NewFeedback(domain.CategoryPerformanceTestFailure).
					AppendText(performanceText(task.PerformanceTests[j].ExpectedPerformance))
			}
		}
	}

	text := successText
	if req.HasNextTask {
		text = nextTaskText
	}
	return domain.NewFeedback(domain.CategorySuccessful).AppendText(text)
}

// hasCodeChanged reports whether the previous attempt ran different code.
func hasCodeChanged(result *domain.ExecutionResult, transcript *domain.Transcript) bool {
	last := transcript.LastAttempt()
	return last != nil && last.Result != nil && !result.HasSameRawCodeAs(last.Result)
}

// hintFeedback escalates through messages. The index carries over from the
// latest attempt with the same category, even when that attempt reported a
// different test, so it never goes down. It moves on only when the code
// changed and the learner already saw messages[index]. It returns nil once
// the hints run out.
func hintFeedback(messages []string, category domain.FeedbackCategory, codeChanged bool, transcript *domain.Transcript) *domain.Feedback {
	index := 0
	if prev := transcript.MostRecentWithCategory(category); prev != nil {
		index = prev.Feedback.HintIndexOr(0)
		first, ok := prev.Feedback.FirstParagraph()
		if codeChanged && ok && index < len(messages) && messages[index] == first {
			index++
		}
	}
	if index >= len(messages) {
		return nil
	}

	fb := domain.NewFeedback(category).AppendText(messages[index])
	fb.SetHintIndex(index)
	return fb
}

// correctnessFeedback walks a failing test case through its three stages.
func (s *Selector) correctnessFeedback(req *Request, tc domain.CorrectnessTest, suiteID string, caseIndex int, observed domain.Value, codeChanged bool) *domain.Feedback {
	state := req.State
	key := domain.TestCaseKey(suiteID, caseIndex)

	// Resubmitting the same code for the same case shows the same stage.
	if last := req.Transcript.LastAttempt(); !codeChanged && last != nil && last.Result != nil &&
		last.Category() == domain.CategoryIncorrectOutputFailure && state.PreviousSuiteID == suiteID &&
		state.PreviousCaseKey == key {
		return cloneFeedback(last.Feedback, req.Language)
	}
	state.PreviousCaseKey = key

	input := domain.HumanReadable(tc.Input)
	expected := domain.HumanReadable(tc.AnyAllowedOutput())
	fb := domain.NewFeedback(domain.CategoryIncorrectOutputFailure)

	if suiteID != state.PreviousSuiteID {
		state.PreviousSuiteID = suiteID
		if st, ok := state.CorrectnessStates[key]; ok && st != domain.CorrectnessStarting {
			return fb.AppendText(regressionText).
				AppendCode("Input: " + input + "\nExpected Output: " + expected)
		}
		state.CorrectnessStates[key] = domain.CorrectnessStarting
	}

	// The sample's input and expected output are already in the instructions.
	if suiteID == domain.SampleInputSuiteID {
		state.CorrectnessStates[key] = domain.CorrectnessExpectedOutputDisplayed
	}

	current := state.State(key)
	state.CorrectnessStates[key] = current.Next()
	switch current {
	case domain.CorrectnessStarting:
		return fb.AppendText(state.pick(typeInputToTry, s.intn)).
			AppendCode("Input: " + input)
	case domain.CorrectnessInputDisplayed:
		return fb.AppendText(state.pick(typeExpectedOutput, s.intn)).
			AppendCode("Input: " + input + "\nExpected Output: " + expected)
	default:
		return fb.AppendText(state.pick(typeOutputEnabled, s.intn)).
			AppendOutput("Input: " + input + "\nExpected Output: " + expected +
				"\nActual Output: " + domain.HumanReadable(observed))
	}
}

// cloneFeedback copies the selected part of f. A trailing unfamiliar
// language paragraph is dropped; Select decides again whether to add it.
func cloneFeedback(f *domain.Feedback, lang domain.Language) *domain.Feedback {
	out := domain.NewFeedback(f.Category)
	out.Paragraphs = f.GetParagraphs()
	if text := UnfamiliarLanguageText(lang); text != "" {
		for n := len(out.Paragraphs); n > 0 && out.Paragraphs[n-1].Content == text; n-- {
			out.Paragraphs = out.Paragraphs[:n-1]
		}
	}
	if f.HintIndex != nil {
		out.SetHintIndex(*f.HintIndex)
	}
	if f.ErrorLineNumber != nil {
		out.SetErrorLineNumber(*f.ErrorLineNumber)
	}
	return out
}

// trailingLine matches the line reference at the end of an error message.
var trailingLine = regexp.MustCompile(`line ([0-9]+)$`)

// testCodeLocation replaces a line reference that falls outside the
// learner's code.
const testCodeLocation = "a line in the test code"

// remapLine rewrites a trailing "line N" of the preprocessed program into
// the learner's own numbering. It returns the rewritten message and the
// learner's 1-based line, or 0 when the line is not the learner's.
func remapLine(msg string, rawLineIndexes []int) (string, int, error) {
	loc := trailingLine.FindStringSubmatchIndex(msg)
	if loc == nil {
		return msg, 0, nil
	}
	n, err := strconv.Atoi(msg[loc[2]:loc[3]])
	if err != nil {
		return "", 0, fmt.Errorf("%w: %q", domain.ErrLineIndexOutOfRange, msg[loc[2]:loc[3]])
	}
	index := n - 1
	if index < 0 || index >= len(rawLineIndexes) {
		return "", 0, fmt.Errorf("%w: %d", domain.ErrLineIndexOutOfRange, index)
	}

	raw := rawLineIndexes[index]
	if raw < 0 {
		slog.Debug("error raised outside the submission", "preprocessed_line", index)
		return msg[:loc[0]] + testCodeLocation, 0, nil
	}
	return msg[:loc[0]] + "line " + strconv.Itoa(raw+1), raw + 1, nil
}

// embeddedLine matches a line reference inside a compiler message, such as
// "expected an indented block after function definition on line 2".
var embeddedLine = regexp.MustCompile(`on line ([0-9]+)\b`)

// remapEmbedded rewrites the line references of msg other than the trailing
// one. References it cannot place are left as they are.
func remapEmbedded(msg string, rawLineIndexes []int) string {
	var b strings.Builder
	last := 0
	for _, loc := range embeddedLine.FindAllStringSubmatchIndex(msg, -1) {
		if loc[1] == len(msg) {
			break
		}
		n, err := strconv.Atoi(msg[loc[2]:loc[3]])
		if err != nil || n < 1 || n > len(rawLineIndexes) {
			continue
		}
		b.WriteString(msg[last:loc[0]])
		if raw := rawLineIndexes[n-1]; raw < 0 {
			b.WriteString("in " + testCodeLocation)
		} else {
			b.WriteString("on line " + strconv.Itoa(raw+1))
		}
		last = loc[1]
	}
	b.WriteString(msg[last:])
	return b.String()
}

func runtimeErrorFeedback(result *domain.ExecutionResult, rawLineIndexes []int) (*domain.Feedback, error) {
	msg, line, err := remapLine(result.ErrorMessage, rawLineIndexes)
	if err != nil {
		return nil, err
	}

	fb := domain.NewFeedback(domain.CategoryRuntimeError)
	if explanation, ok := explainRuntimeError(msg); ok {
		fb.AppendText(explanation)
	} else {
		fb.AppendText(runtimeErrorText(result.ErrorInput)).AppendError(msg)
	}
	if line > 0 {
		fb.SetErrorLineNumber(line)
	}
	return fb, nil
}

func syntaxErrorFeedback(errorMessage string, rawLineIndexes []int) (*domain.Feedback, error) {
	msg, line, err := remapLine(remapEmbedded(errorMessage, rawLineIndexes), rawLineIndexes)
	if err != nil {
		return nil, err
	}
	fb := domain.NewFeedback(domain.CategorySyntaxError).AppendText(syntaxErrorText).AppendError(msg)
	if line > 0 {
		fb.SetErrorLineNumber(line)
	}
	return fb, nil
}

// prereqFeedback renders a prerequisite failure.
func (s *Selector) prereqFeedback(failure domain.PrereqFailure) (*domain.Feedback, error) {
	r := &prereqRenderer{libraries: s.libraries}
	failure.Accept(r)
	if r.err != nil {
		return nil, r.err
	}
	if r.fb == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnknownPrereqFailure, failure.Kind())
	}
	return r.fb, nil
}

// prereqRenderer builds the feedback for each kind of prerequisite failure.
type prereqRenderer struct {
	libraries []string
	fb        *domain.Feedback
	err       error
}

func (r *prereqRenderer) VisitMissingStarterCode(f domain.MissingStarterCode) {
	r.fb = domain.NewFeedback(domain.CategoryFailsStarterCodeCheck).
		AppendText(starterCodeText).
		AppendCode(f.StarterCode)
}

func (r *prereqRenderer) VisitBadImport(f domain.BadImport) {
	r.fb = domain.NewFeedback(domain.CategoryFailsBadImportCheck).
		AppendText(badImportText).
		AppendCode(strings.Join(f.Imports, "\n")).
		AppendText(supportedLibrariesText).
		AppendCode(strings.Join(r.libraries, ", "))
}

func (r *prereqRenderer) VisitGlobalCode(f domain.GlobalCode) {
	r.fb = domain.NewFeedback(domain.CategoryFailsGlobalCodeCheck).AppendText(globalCodeText)
	if f.Line > 0 {
		r.fb.SetErrorLineNumber(f.Line)
	}
}

func (r *prereqRenderer) VisitWrongLanguage(f domain.WrongLanguage) {
	paragraphs, ok := wrongLanguageParagraphs[f.ErrorKey]
	if !ok {
		r.err = fmt.Errorf("%w: wrong language key %q", domain.ErrUnknownPrereqFailure, f.ErrorKey)
		return
	}

	fb := domain.NewFeedback(domain.CategoryFailsLanguageDetectionCheck)
	for _, p := range paragraphs {
		switch p.Type {
		case domain.ParagraphCode:
			fb.AppendCode(p.Content)
		case domain.ParagraphError:
			fb.AppendText(syntaxErrorText).AppendError(p.Content)
		default:
			fb.AppendText(p.Content)
		}
	}
	if f.Line > 0 {
		fb.SetErrorLineNumber(f.Line)
		fb.AppendText(fmt.Sprintf("(See line %d of the code.)", f.Line))
	}
	r.fb = fb
}

func (r *prereqRenderer) VisitInvalidAuxiliaryCodeCall(domain.InvalidAuxiliaryCodeCall) {
	r.fb = forbiddenNamespaceFeedback(prereq.AuxiliaryNamespace, true)
}

func (r *prereqRenderer) VisitInvalidSystemCall(domain.InvalidSystemCall) {
	r.fb = forbiddenNamespaceFeedback(prereq.SystemNamespace, false)
}

func (r *prereqRenderer) VisitInvalidStudentCodeCall(domain.InvalidStudentCodeCall) {
	r.fb = forbiddenNamespaceFeedback(prereq.StudentNamespace, true)
}

func forbiddenNamespaceFeedback(namespace string, calling bool) *domain.Feedback {
	return domain.NewFeedback(domain.CategoryFailsForbiddenNamespaceCheck).
		AppendText(forbiddenNamespaceText).
		AppendCode(forbiddenNamespaceError(namespace, calling))
}

var _ domain.PrereqFailureVisitor = (*prereqRenderer)(nil)
