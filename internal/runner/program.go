package runner

import (
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/coach/internal/domain"
)

// Files written into the run directory.
const (
	HarnessFile    = "harness.py"
	SubmissionFile = "submission.py"
	TestsFile      = "tests.json"
)

// ResultPrefix starts the harness's result line on stdout.
const ResultPrefix = "__COACH_RESULT__ "

//go:embed harness.py
var harnessSource string

// Program is one submission to run.
type Program struct {
	RunID         uuid.UUID
	SessionID     string
	Code          string
	AuxiliaryCode string
	Tasks         []domain.Task
}

type harnessTests struct {
	PerformanceSizes     []int         `json:"performance_sizes"`
	PerformanceRepeats   int           `json:"performance_repeats"`
	MinMeasurableSeconds float64       `json:"min_measurable_seconds"`
	Tasks                []harnessTask `json:"tasks"`
}

type harnessTask struct {
	MainFunction     string               `json:"main_function"`
	InputFunction    string               `json:"input_function,omitempty"`
	OutputFunction   string               `json:"output_function,omitempty"`
	Suites           [][]domain.Value     `json:"suites"`
	Unordered        [][]bool             `json:"unordered"`
	BuggyFunctions   []string             `json:"buggy_functions"`
	PerformanceTests []harnessPerformance `json:"performance_tests"`
}

type harnessPerformance struct {
	InputDataAtom          string `json:"input_data_atom"`
	TransformationFunction string `json:"transformation_function"`
	EvaluationFunction     string `json:"evaluation_function"`
}

// buildFiles assembles the files the harness needs for a run.
func buildFiles(pre *PreprocessedCode, tasks []domain.Task, cfg Config) (map[string]string, error) {
	tests := harnessTests{
		PerformanceSizes:     cfg.PerformanceSizes,
		PerformanceRepeats:   cfg.PerformanceRepeats,
		MinMeasurableSeconds: MinMeasurableSeconds,
		Tasks:                make([]harnessTask, 0, len(tasks)),
	}
	for _, task := range tasks {
		ht := harnessTask{
			MainFunction:     task.MainFunctionName,
			InputFunction:    task.InputFunctionName,
			OutputFunction:   task.OutputFunctionName,
			Suites:           make([][]domain.Value, 0, len(task.TestSuites)),
			Unordered:        make([][]bool, 0, len(task.TestSuites)),
			BuggyFunctions:   make([]string, 0, len(task.BuggyOutputTests)),
			PerformanceTests: make([]harnessPerformance, 0, len(task.PerformanceTests)),
		}
		for _, suite := range task.TestSuites {
			inputs := make([]domain.Value, 0, len(suite.TestCases))
			unordered := make([]bool, 0, len(suite.TestCases))
			for _, tc := range suite.TestCases {
				inputs = append(inputs, tc.Input)
				unordered = append(unordered, tc.OrderIndependent)
			}
			ht.Suites = append(ht.Suites, inputs)
			ht.Unordered = append(ht.Unordered, unordered)
		}
		for _, bt := range task.BuggyOutputTests {
			ht.BuggyFunctions = append(ht.BuggyFunctions, bt.BuggyFunctionName)
		}
		for _, pt := range task.PerformanceTests {
			ht.PerformanceTests = append(ht.PerformanceTests, harnessPerformance{
				InputDataAtom:          pt.InputDataAtom,
				TransformationFunction: pt.TransformationFunctionName,
				EvaluationFunction:     pt.EvaluationFunctionName,
			})
		}
		tests.Tasks = append(tests.Tasks, ht)
	}

	data, err := json.Marshal(tests)
	if err != nil {
		return nil, fmt.Errorf("encode tests: %w", err)
	}
	return map[string]string{
		HarnessFile:    harnessSource,
		SubmissionFile: pre.Code,
		TestsFile:      string(data),
	}, nil
}
