// Package evaluator classifies a completed execution result against the
// tests each task declares. Every category is computed for every task; the
// feedback selector applies its own priority on top.
package evaluator

import (
	"fmt"

	"github.com/felixgeelhaar/coach/internal/domain"
)

// TaskEvaluation holds the classification of one task.
type TaskEvaluation struct {
	// BuggyFailures[j] is true when buggy output test j matched.
	BuggyFailures []bool
	// PassingSuiteIDs holds the suites for which every case passed.
	PassingSuiteIDs map[string]bool
	// SuiteLevelFailures[j] is true when the conditions of suite-level test j
	// are met.
	SuiteLevelFailures []bool
	// CorrectnessPasses[suite][case] is true when the observed output is
	// allowed.
	CorrectnessPasses [][]bool
	// PerformanceFailures[j] is true when the observed class differs from the
	// expected one. An inconclusive measurement never fails.
	PerformanceFailures []bool
}

// Passed reports whether nothing in the task fails.
func (t *TaskEvaluation) Passed() bool {
	return !anyTrue(t.BuggyFailures) && !anyTrue(t.SuiteLevelFailures) &&
		!anyTrue(t.PerformanceFailures) && t.AllCorrect()
}

// AllCorrect reports whether every correctness test passes.
func (t *TaskEvaluation) AllCorrect() bool {
	for _, suite := range t.CorrectnessPasses {
		for _, ok := range suite {
			if !ok {
				return false
			}
		}
	}
	return true
}

// Evaluation is the classification of a result against an ordered task list.
type Evaluation struct {
	Tasks []TaskEvaluation
}

// AllPassed reports whether every evaluated task passed.
func (e *Evaluation) AllPassed() bool {
	for i := range e.Tasks {
		if !e.Tasks[i].Passed() {
			return false
		}
	}
	return true
}

// Evaluate classifies result against tasks. The result must come from a run
// that completed and must carry one slot per declared test.
func Evaluate(tasks []domain.Task, result *domain.ExecutionResult) (*Evaluation, error) {
	if result == nil {
		return nil, fmt.Errorf("%w: nil result", domain.ErrInvalidResult)
	}
	if result.HasError() {
		return nil, fmt.Errorf("%w: %s", domain.ErrResultHasError, result.ErrorMessage)
	}
	if err := checkShape(tasks, result); err != nil {
		return nil, err
	}

	eval := &Evaluation{Tasks: make([]TaskEvaluation, len(tasks))}
	for i := range tasks {
		eval.Tasks[i] = evaluateTask(&tasks[i], i, result)
	}
	return eval, nil
}

func evaluateTask(task *domain.Task, i int, result *domain.ExecutionResult) TaskEvaluation {
	te := TaskEvaluation{
		BuggyFailures:       append([]bool(nil), result.BuggyOutputTestResults[i]...),
		PassingSuiteIDs:     make(map[string]bool),
		CorrectnessPasses:   make([][]bool, len(task.TestSuites)),
		SuiteLevelFailures:  make([]bool, len(task.SuiteLevelTests)),
		PerformanceFailures: make([]bool, len(task.PerformanceTests)),
	}

	for s, suite := range task.TestSuites {
		passes := make([]bool, len(suite.TestCases))
		all := true
		for c, tc := range suite.TestCases {
			passes[c] = tc.MatchesOutput(result.ObservedOutputs[i][s][c])
			all = all && passes[c]
		}
		te.CorrectnessPasses[s] = passes
		if all {
			te.PassingSuiteIDs[suite.ID] = true
		}
	}

	for j, st := range task.SuiteLevelTests {
		te.SuiteLevelFailures[j] = st.ConditionsMet(te.PassingSuiteIDs)
	}

	for j, pt := range task.PerformanceTests {
		observed := result.PerformanceTestResults[i][j]
		te.PerformanceFailures[j] = observed != domain.PerformanceInconclusive && observed != pt.ExpectedPerformance
	}
	return te
}

func checkShape(tasks []domain.Task, r *domain.ExecutionResult) error {
	if len(r.ObservedOutputs) != len(tasks) || len(r.BuggyOutputTestResults) != len(tasks) ||
		len(r.PerformanceTestResults) != len(tasks) {
		return fmt.Errorf("%w: %d tasks, result covers %d/%d/%d", domain.ErrResultShape,
			len(tasks), len(r.ObservedOutputs), len(r.BuggyOutputTestResults), len(r.PerformanceTestResults))
	}
	for i, task := range tasks {
		if len(r.ObservedOutputs[i]) != len(task.TestSuites) {
			return fmt.Errorf("%w: task %s has %d suites, result has %d", domain.ErrResultShape,
				task.ID, len(task.TestSuites), len(r.ObservedOutputs[i]))
		}
		for s, suite := range task.TestSuites {
			if len(r.ObservedOutputs[i][s]) != len(suite.TestCases) {
				return fmt.Errorf("%w: task %s suite %s has %d cases, result has %d", domain.ErrResultShape,
					task.ID, suite.ID, len(suite.TestCases), len(r.ObservedOutputs[i][s]))
			}
		}
		if len(r.BuggyOutputTestResults[i]) != len(task.BuggyOutputTests) {
			return fmt.Errorf("%w: task %s buggy output tests", domain.ErrResultShape, task.ID)
		}
		if len(r.PerformanceTestResults[i]) != len(task.PerformanceTests) {
			return fmt.Errorf("%w: task %s performance tests", domain.ErrResultShape, task.ID)
		}
	}
	return nil
}

func anyTrue(bs []bool) bool {
	for _, b := range bs {
		if b {
			return true
		}
	}
	return false
}
