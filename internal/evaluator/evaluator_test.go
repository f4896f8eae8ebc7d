package evaluator

import (
	"errors"
	"testing"

	"github.com/felixgeelhaar/coach/internal/domain"
)

func testTask() domain.Task {
	return domain.Task{
		ID:               "balanced",
		MainFunctionName: "isBalanced",
		TestSuites: []domain.TestSuite{
			{ID: "SAMPLE_INPUT", TestCases: []domain.CorrectnessTest{
				{Input: "((()))", AllowedOutputs: []domain.Value{true}},
			}},
			{ID: "ORDER", TestCases: []domain.CorrectnessTest{
				{Input: "))((", AllowedOutputs: []domain.Value{false}},
				{Input: ")(", AllowedOutputs: []domain.Value{false}},
			}},
			{ID: "LISTS", TestCases: []domain.CorrectnessTest{
				{Input: "x", AllowedOutputs: []domain.Value{[]any{1.0, 2.0}}, OrderIndependent: true},
			}},
		},
		BuggyOutputTests: []domain.BuggyOutputTest{{BuggyFunctionName: "AuxiliaryCode.count", Messages: []string{"a"}}},
		SuiteLevelTests: []domain.SuiteLevelTest{{
			SuiteIDsThatMustPass: []string{"SAMPLE_INPUT"},
			SuiteIDsThatMustFail: []string{"ORDER"},
			Messages:             []string{"order matters"},
		}},
		PerformanceTests: []domain.PerformanceTest{{ExpectedPerformance: domain.PerformanceLinear}},
	}
}

func TestEvaluate(t *testing.T) {
	tasks := []domain.Task{testTask()}

	tests := []struct {
		name          string
		observed      [][]domain.Value
		buggy         []bool
		perf          domain.PerformanceClass
		wantPassing   []string
		wantSuite     bool
		wantPerfFail  bool
		wantAllPassed bool
	}{
		{
			name:          "everything passes",
			observed:      [][]domain.Value{{true}, {false, false}, {[]any{2.0, 1.0}}},
			buggy:         []bool{false},
			perf:          domain.PerformanceLinear,
			wantPassing:   []string{"SAMPLE_INPUT", "ORDER", "LISTS"},
			wantAllPassed: true,
		},
		{
			name:          "inconclusive timing passes",
			observed:      [][]domain.Value{{true}, {false, false}, {[]any{1.0, 2.0}}},
			buggy:         []bool{false},
			perf:          domain.PerformanceInconclusive,
			wantPassing:   []string{"SAMPLE_INPUT", "ORDER", "LISTS"},
			wantAllPassed: true,
		},
		{
			name:         "constant is not linear",
			observed:     [][]domain.Value{{true}, {false, false}, {[]any{1.0, 2.0}}},
			buggy:        []bool{false},
			perf:         domain.PerformanceConstant,
			wantPassing:  []string{"SAMPLE_INPUT", "ORDER", "LISTS"},
			wantPerfFail: true,
		},
		{
			name:         "counting bug trips every category at once",
			observed:     [][]domain.Value{{true}, {true, false}, {[]any{1.0}}},
			buggy:        []bool{true},
			perf:         domain.PerformanceQuadratic,
			wantPassing:  []string{"SAMPLE_INPUT"},
			wantSuite:    true,
			wantPerfFail: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := domain.NewCompletedResult("code", "",
				[][][]domain.Value{tt.observed}, [][]bool{tt.buggy}, [][]domain.PerformanceClass{{tt.perf}})
			got, err := Evaluate(tasks, result)
			if err != nil {
				t.Fatalf("Evaluate() error = %v", err)
			}
			te := got.Tasks[0]
			if len(te.PassingSuiteIDs) != len(tt.wantPassing) {
				t.Errorf("PassingSuiteIDs = %v, want %v", te.PassingSuiteIDs, tt.wantPassing)
			}
			for _, id := range tt.wantPassing {
				if !te.PassingSuiteIDs[id] {
					t.Errorf("suite %s not passing", id)
				}
			}
			if te.BuggyFailures[0] != tt.buggy[0] {
				t.Errorf("BuggyFailures = %v", te.BuggyFailures)
			}
			if te.SuiteLevelFailures[0] != tt.wantSuite {
				t.Errorf("SuiteLevelFailures = %v, want %v", te.SuiteLevelFailures[0], tt.wantSuite)
			}
			if te.PerformanceFailures[0] != tt.wantPerfFail {
				t.Errorf("PerformanceFailures = %v, want %v", te.PerformanceFailures[0], tt.wantPerfFail)
			}
			if got.AllPassed() != tt.wantAllPassed {
				t.Errorf("AllPassed() = %v, want %v", got.AllPassed(), tt.wantAllPassed)
			}
		})
	}
}

func TestEvaluate_Errors(t *testing.T) {
	tasks := []domain.Task{testTask()}

	tests := []struct {
		name    string
		result  *domain.ExecutionResult
		wantErr error
	}{
		{
			name:    "errored result",
			result:  domain.NewErrorResult("code", "ValueError: x", nil),
			wantErr: domain.ErrResultHasError,
		},
		{
			name:    "missing task",
			result:  domain.NewCompletedResult("code", "", nil, nil, nil),
			wantErr: domain.ErrResultShape,
		},
		{
			name: "short suite",
			result: domain.NewCompletedResult("code", "",
				[][][]domain.Value{{{true}, {false}, {nil}}}, [][]bool{{false}}, [][]domain.PerformanceClass{{domain.PerformanceLinear}}),
			wantErr: domain.ErrResultShape,
		},
		{
			name:    "nil result",
			wantErr: domain.ErrInvalidResult,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Evaluate(tasks, tt.result); !errors.Is(err, tt.wantErr) {
				t.Errorf("Evaluate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}
