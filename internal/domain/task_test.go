package domain

import (
	"errors"
	"testing"
)

func TestCorrectnessTest_MatchesOutput(t *testing.T) {
	tc := CorrectnessTest{Input: "((()))", AllowedOutputs: []Value{true}}
	if !tc.MatchesOutput(true) {
		t.Error("MatchesOutput(true) = false, want true")
	}
	if tc.MatchesOutput(false) {
		t.Error("MatchesOutput(false) = true, want false")
	}
	if tc.MatchesOutput(nil) {
		t.Error("MatchesOutput(nil) = true, want false")
	}

	anyOf := CorrectnessTest{AllowedOutputs: []Value{[]any{"a", "b"}, []any{"b", "a"}}}
	if !anyOf.MatchesOutput([]any{"b", "a"}) {
		t.Error("any allowed output should match")
	}

	unordered := CorrectnessTest{AllowedOutputs: []Value{[]any{1, 2, 3}}, OrderIndependent: true}
	if !unordered.MatchesOutput([]any{3, 1, 2}) {
		t.Error("order-independent test should ignore element order")
	}
}

func TestSuiteLevelTest_ConditionsMet(t *testing.T) {
	st := SuiteLevelTest{
		SuiteIDsThatMustPass: []string{"GENERAL"},
		SuiteIDsThatMustFail: []string{"EDGE"},
		Messages:             []string{"m"},
	}

	tests := []struct {
		name    string
		passing map[string]bool
		want    bool
	}{
		{"general passes edge fails", map[string]bool{"GENERAL": true}, true},
		{"both pass", map[string]bool{"GENERAL": true, "EDGE": true}, false},
		{"general fails", map[string]bool{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := st.ConditionsMet(tt.passing); got != tt.want {
				t.Errorf("ConditionsMet() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTask_Validate(t *testing.T) {
	valid := Task{
		ID:               "t1",
		MainFunctionName: "isBalanced",
		TestSuites: []TestSuite{{
			ID:        "GENERAL",
			TestCases: []CorrectnessTest{{Input: "()", AllowedOutputs: []Value{true}}},
		}},
		BuggyOutputTests: []BuggyOutputTest{{BuggyFunctionName: "AuxiliaryCode.f", Messages: []string{"m"}}},
		PerformanceTests: []PerformanceTest{{ExpectedPerformance: PerformanceLinear}},
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Task)
	}{
		{"no allowed outputs", func(t *Task) { t.TestSuites[0].TestCases[0].AllowedOutputs = nil }},
		{"empty buggy messages", func(t *Task) { t.BuggyOutputTests[0].Messages = nil }},
		{"missing main function", func(t *Task) { t.MainFunctionName = "" }},
		{"unknown performance class", func(t *Task) { t.PerformanceTests[0].ExpectedPerformance = "n log n" }},
		{"duplicate suite", func(t *Task) { t.TestSuites = append(t.TestSuites, t.TestSuites[0]) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := valid
			task.TestSuites = []TestSuite{{
				ID:        "GENERAL",
				TestCases: []CorrectnessTest{{Input: "()", AllowedOutputs: []Value{true}}},
			}}
			task.BuggyOutputTests = []BuggyOutputTest{{Messages: []string{"m"}}}
			task.PerformanceTests = []PerformanceTest{{ExpectedPerformance: PerformanceLinear}}
			tt.mutate(&task)
			if err := task.Validate(); !errors.Is(err, ErrInvalidTask) {
				t.Errorf("Validate() = %v, want ErrInvalidTask", err)
			}
		})
	}
}
