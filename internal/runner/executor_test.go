package runner_test

import (
	"context"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/exercise"
	"github.com/felixgeelhaar/coach/internal/runner"
)

const parensAux = `class AuxiliaryCode(object):
    @classmethod
    def createBalancedParenthesesString(cls, atom, input_size):
        return "%s%s" % (atom[0] * input_size, atom[1] * input_size)

    @classmethod
    def countNumberOfParentheses(cls, s):
        return s.count('(') == s.count(')')
`

func requirePython(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping harness run in short mode")
	}
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available")
	}
}

func parensProgram(code string) runner.Program {
	return runner.Program{
		SessionID:     "local",
		Code:          code,
		AuxiliaryCode: parensAux,
		Tasks: []domain.Task{{
			ID:               "balanced",
			MainFunctionName: "isBalanced",
			TestSuites: []domain.TestSuite{{
				ID: "GENERAL",
				TestCases: []domain.CorrectnessTest{
					{Input: "((()))", AllowedOutputs: []domain.Value{true}},
					{Input: "))((", AllowedOutputs: []domain.Value{false}},
				},
			}},
			BuggyOutputTests: []domain.BuggyOutputTest{{
				BuggyFunctionName: "AuxiliaryCode.countNumberOfParentheses",
				Messages:          []string{"hint"},
			}},
		}},
	}
}

func TestLocalExecutor_Harness(t *testing.T) {
	requirePython(t)
	svc := runner.NewService(runner.Config{Timeout: 20 * time.Second}, runner.NewLocalExecutor(""))
	ctx := context.Background()

	tests := []struct {
		name      string
		code      string
		wantKind  domain.ErrorKind
		wantBuggy bool
		wantMsg   string
	}{
		{
			name: "correct solution",
			code: "def isBalanced(s):\n    depth = 0\n    for c in s:\n        depth += 1 if c == '(' else -1\n        if depth < 0:\n            return False\n    return depth == 0\n",
		},
		{
			name:      "counting solution matches the buggy function",
			code:      "def isBalanced(s):\n    return s.count('(') == s.count(')')\n",
			wantBuggy: true,
		},
		{
			name:     "syntax error",
			code:     "def isBalanced(s):\n    return (\n",
			wantKind: domain.ErrorKindSyntax,
		},
		{
			name:     "runtime error reports the submission line",
			code:     "def isBalanced(s):\n    x = 1\n    return s[100]\n",
			wantKind: domain.ErrorKindRuntime,
			wantMsg:  "IndexError: string index out of range on line 4",
		},
		{
			name:     "infinite recursion",
			code:     "def isBalanced(s):\n    return self.isBalanced(s)\n",
			wantKind: domain.ErrorKindStackExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Run(ctx, parensProgram(tt.code))
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			res := got.Result
			if kind := res.ErrorKind(); kind != tt.wantKind {
				t.Fatalf("ErrorKind() = %s, want %s (message %q)", kind, tt.wantKind, res.ErrorMessage)
			}
			if tt.wantMsg != "" && res.ErrorMessage != tt.wantMsg {
				t.Errorf("ErrorMessage = %q, want %q", res.ErrorMessage, tt.wantMsg)
			}
			if tt.wantKind == domain.ErrorKindRuntime && res.ErrorInput != "((()))" {
				t.Errorf("ErrorInput = %v, want ((()))", res.ErrorInput)
			}
			if tt.wantKind != domain.ErrorKindNone {
				return
			}
			if res.BuggyOutputTestResults[0][0] != tt.wantBuggy {
				t.Errorf("buggy flagged = %v, want %v", res.BuggyOutputTestResults[0][0], tt.wantBuggy)
			}
		})
	}
}

func TestLocalExecutor_Timeout(t *testing.T) {
	requirePython(t)
	svc := runner.NewService(runner.Config{Timeout: 2 * time.Second}, runner.NewLocalExecutor(""))

	got, err := svc.Run(context.Background(), parensProgram("def isBalanced(s):\n    while True:\n        pass\n"))
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !strings.HasPrefix(got.Result.ErrorMessage, domain.TimeLimitErrorPrefix) {
		t.Errorf("ErrorMessage = %q, want TimeLimitError", got.Result.ErrorMessage)
	}
}

func TestLocalExecutor_FastLinearSolutionIsNotConstant(t *testing.T) {
	requirePython(t)
	svc := runner.NewService(runner.Config{Timeout: 30 * time.Second}, runner.NewLocalExecutor(""))

	prog := parensProgram("def isBalanced(s):\n    depth = 0\n    for c in s:\n        depth += 1 if c == '(' else -1\n        if depth < 0:\n            return False\n    return depth == 0\n")
	prog.Tasks[0].PerformanceTests = []domain.PerformanceTest{{
		InputDataAtom:              "()",
		TransformationFunctionName: "AuxiliaryCode.createBalancedParenthesesString",
		ExpectedPerformance:        domain.PerformanceLinear,
		EvaluationFunctionName:     "isBalanced",
	}}

	got, err := svc.Run(context.Background(), prog)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if msg := got.Result.ErrorMessage; msg != "" {
		t.Fatalf("ErrorMessage = %q", msg)
	}
	switch class := got.Result.PerformanceTestResults[0][0]; class {
	case domain.PerformanceLinear, domain.PerformanceInconclusive:
	default:
		t.Errorf("performance class = %s, want linear or inconclusive", class)
	}
}

func TestLocalExecutor_UnorderedBuggyMatch(t *testing.T) {
	requirePython(t)
	registry := exercise.NewRegistry(exercise.NewLoader(""))
	if err := registry.Load(); err != nil {
		t.Fatal(err)
	}
	q, err := registry.Get("strobogrammatic")
	if err != nil {
		t.Fatal(err)
	}
	svc := runner.NewService(runner.Config{Timeout: 20 * time.Second}, runner.NewLocalExecutor(""))

	tests := []struct {
		name      string
		code      string
		wantBuggy []bool
	}{
		{
			name:      "correct in reverse order",
			code:      "def strobogrammatic(num_digits):\n    return AuxiliaryCode.build(num_digits, ['0', '1', '8'], False)[::-1]\n",
			wantBuggy: []bool{false, false},
		},
		{
			name:      "zero forgotten, reverse order",
			code:      "def strobogrammatic(num_digits):\n    return AuxiliaryCode.forgetToIncludeZero(num_digits)[::-1]\n",
			wantBuggy: []bool{true, false},
		},
		{
			name:      "leading zero allowed",
			code:      "def strobogrammatic(num_digits):\n    return AuxiliaryCode.allowLeadingZeroInResult(num_digits)\n",
			wantBuggy: []bool{false, true},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Run(context.Background(), runner.Program{
				SessionID:     "local",
				Code:          tt.code,
				AuxiliaryCode: q.AuxiliaryCode[domain.LanguagePython],
				Tasks:         q.Tasks,
			})
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if msg := got.Result.ErrorMessage; msg != "" {
				t.Fatalf("ErrorMessage = %q", msg)
			}
			for j, want := range tt.wantBuggy {
				if got.Result.BuggyOutputTestResults[0][j] != want {
					t.Errorf("buggy test %d flagged = %v, want %v", j, got.Result.BuggyOutputTestResults[0][j], want)
				}
			}
		})
	}
}
