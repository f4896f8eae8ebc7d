package runner

import (
	"bufio"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/felixgeelhaar/coach/internal/domain"
)

// harnessResult is the JSON document printed by the harness.
type harnessResult struct {
	Observed     [][][]domain.Value `json:"observed"`
	BuggyMatches [][]bool           `json:"buggy_matches"`
	Performance  [][][][2]float64   `json:"performance"`
	Output       string             `json:"output"`
	Error        *string            `json:"error"`
	ErrorInput   domain.Value       `json:"error_input"`
}

// Parser turns harness output into execution results.
type Parser struct{}

// NewParser creates a new parser
func NewParser() *Parser {
	return &Parser{}
}

// Parse finds the harness result line in stdout and converts it into an
// ExecutionResult for prog. A missing or malformed result line is an
// infrastructure failure.
func (p *Parser) Parse(prog Program, out *Output) (*domain.ExecutionResult, error) {
	line, ok := p.resultLine(out.Stdout)
	if !ok {
		return nil, fmt.Errorf("%w: exit code %d: %s", ErrNoResult, out.ExitCode, tail(out.Stderr, 512))
	}

	var hr harnessResult
	if err := json.Unmarshal([]byte(line), &hr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoResult, err)
	}

	if hr.Error != nil {
		return domain.NewErrorResult(prog.Code, *hr.Error, domain.NormalizeValue(hr.ErrorInput)), nil
	}

	if len(hr.Observed) != len(prog.Tasks) || len(hr.BuggyMatches) != len(prog.Tasks) ||
		len(hr.Performance) != len(prog.Tasks) {
		return nil, fmt.Errorf("%w: result covers %d tasks, want %d", domain.ErrResultShape, len(hr.Observed), len(prog.Tasks))
	}

	observed := make([][][]domain.Value, len(hr.Observed))
	for i, suites := range hr.Observed {
		observed[i] = make([][]domain.Value, len(suites))
		for j, cases := range suites {
			observed[i][j] = make([]domain.Value, len(cases))
			for k, v := range cases {
				observed[i][j][k] = domain.NormalizeValue(v)
			}
		}
	}

	buggy := make([][]bool, len(prog.Tasks))
	perf := make([][]domain.PerformanceClass, len(prog.Tasks))
	for i := range prog.Tasks {
		failing := hasFailingTest(&prog.Tasks[i], observed[i])
		buggy[i] = make([]bool, len(hr.BuggyMatches[i]))
		for j, matches := range hr.BuggyMatches[i] {
			buggy[i][j] = matches && failing
		}
		perf[i] = make([]domain.PerformanceClass, len(hr.Performance[i]))
		for j, points := range hr.Performance[i] {
			timings := make([]Timing, len(points))
			for k, pt := range points {
				timings[k] = Timing{Size: int(pt[0]), Seconds: pt[1]}
			}
			perf[i][j] = ClassifyPerformance(timings)
		}
	}

	return domain.NewCompletedResult(prog.Code, hr.Output, observed, buggy, perf), nil
}

func (p *Parser) resultLine(stdout string) (string, bool) {
	var found string
	ok := false
	scanner := bufio.NewScanner(strings.NewReader(stdout))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if line := scanner.Text(); strings.HasPrefix(line, ResultPrefix) {
			found, ok = strings.TrimPrefix(line, ResultPrefix), true
		}
	}
	return found, ok
}

// hasFailingTest reports whether any correctness test of the task fails on
// the observed outputs. A buggy implementation is only flagged when the
// learner's code is actually wrong.
func hasFailingTest(task *domain.Task, observed [][]domain.Value) bool {
	for s, suite := range task.TestSuites {
		for c, tc := range suite.TestCases {
			if s >= len(observed) || c >= len(observed[s]) || !tc.MatchesOutput(observed[s][c]) {
				return true
			}
		}
	}
	return false
}

func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
