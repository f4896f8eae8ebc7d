package domain

import (
	"fmt"
	"strings"
)

// SampleInputSuiteID identifies the test suite whose input and expected
// output are already shown in the task instructions.
const SampleInputSuiteID = "SAMPLE_INPUT"

// Task is one ordered stage of a question with its own test battery.
type Task struct {
	ID                 string
	Instructions       []string
	MainFunctionName   string
	InputFunctionName  string // optional, applied to each input before the main function
	OutputFunctionName string // optional, applied to each output of the main function
	TestSuites         []TestSuite
	BuggyOutputTests   []BuggyOutputTest
	SuiteLevelTests    []SuiteLevelTest
	PerformanceTests   []PerformanceTest
}

// TestSuite groups correctness tests under a stable identifier.
type TestSuite struct {
	ID                string
	HumanReadableName string
	TestCases         []CorrectnessTest
}

// CorrectnessTest checks functional correctness for one input.
type CorrectnessTest struct {
	Input            Value
	AllowedOutputs   []Value
	Tag              string
	OrderIndependent bool
}

// BuggyOutputTest detects a known misconception by comparing the learner's
// outputs against a known-incorrect reference implementation.
type BuggyOutputTest struct {
	BuggyFunctionName string
	Messages          []string
}

// SuiteLevelTest fires when a particular combination of suites passes and
// fails.
type SuiteLevelTest struct {
	SuiteIDsThatMustPass []string
	SuiteIDsThatMustFail []string
	Messages             []string
}

// PerformanceTest checks the asymptotic behaviour of a function.
type PerformanceTest struct {
	InputDataAtom              string
	TransformationFunctionName string
	ExpectedPerformance        PerformanceClass
	EvaluationFunctionName     string
}

// PerformanceClass is an asymptotic running-time class.
type PerformanceClass string

const (
	PerformanceConstant  PerformanceClass = "constant"
	PerformanceLinear    PerformanceClass = "linear"
	PerformanceQuadratic PerformanceClass = "quadratic"
	PerformanceCubic     PerformanceClass = "cubic"

	// PerformanceInconclusive is observed when the timings are too few or too
	// fast to fit. It is never expected and never fails a test.
	PerformanceInconclusive PerformanceClass = "inconclusive"
)

// IsValid reports whether a performance test may expect the class.
func (p PerformanceClass) IsValid() bool {
	switch p {
	case PerformanceConstant, PerformanceLinear, PerformanceQuadratic, PerformanceCubic:
		return true
	}
	return false
}

// MatchesOutput reports whether the observed output is one of the allowed
// outputs.
func (t CorrectnessTest) MatchesOutput(observed Value) bool {
	for _, allowed := range t.AllowedOutputs {
		if ValuesEqual(allowed, observed, t.OrderIndependent) {
			return true
		}
	}
	return false
}

// AnyAllowedOutput returns an example of an allowed output.
func (t CorrectnessTest) AnyAllowedOutput() Value {
	if len(t.AllowedOutputs) == 0 {
		return nil
	}
	return t.AllowedOutputs[0]
}

// ConditionsMet reports whether every must-pass suite is passing and no
// must-fail suite is passing.
func (s SuiteLevelTest) ConditionsMet(passingSuiteIDs map[string]bool) bool {
	for _, id := range s.SuiteIDsThatMustPass {
		if !passingSuiteIDs[id] {
			return false
		}
	}
	for _, id := range s.SuiteIDsThatMustFail {
		if passingSuiteIDs[id] {
			return false
		}
	}
	return true
}

// CorrectnessTests returns all test cases of the task in suite order.
func (t *Task) CorrectnessTests() []CorrectnessTest {
	var tests []CorrectnessTest
	for _, suite := range t.TestSuites {
		tests = append(tests, suite.TestCases...)
	}
	return tests
}

// Validate checks the structural invariants of a task.
func (t *Task) Validate() error {
	var problems []string
	if t.MainFunctionName == "" {
		problems = append(problems, "main function name is required")
	}

	seen := make(map[string]bool)
	for i, suite := range t.TestSuites {
		if suite.ID == "" {
			problems = append(problems, fmt.Sprintf("test suite %d has no id", i))
		}
		if seen[suite.ID] {
			problems = append(problems, fmt.Sprintf("duplicate test suite id %q", suite.ID))
		}
		seen[suite.ID] = true
		for j, tc := range suite.TestCases {
			if len(tc.AllowedOutputs) == 0 {
				problems = append(problems, fmt.Sprintf("suite %q case %d has no allowed outputs", suite.ID, j))
			}
		}
	}
	for i, bt := range t.BuggyOutputTests {
		if len(bt.Messages) == 0 {
			problems = append(problems, fmt.Sprintf("buggy output test %d has no messages", i))
		}
	}
	for i, st := range t.SuiteLevelTests {
		if len(st.Messages) == 0 {
			problems = append(problems, fmt.Sprintf("suite-level test %d has no messages", i))
		}
	}
	for i, pt := range t.PerformanceTests {
		if !pt.ExpectedPerformance.IsValid() {
			problems = append(problems, fmt.Sprintf("performance test %d has unknown class %q", i, pt.ExpectedPerformance))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: task %s: %s", ErrInvalidTask, t.ID, strings.Join(problems, "; "))
	}
	return nil
}
