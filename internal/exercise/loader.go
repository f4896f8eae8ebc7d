package exercise

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/coach/internal/domain"
)

//go:embed questions/*.yaml
var builtin embed.FS

// QuestionFile is the YAML form of a question.
type QuestionFile struct {
	ID            string            `yaml:"id" validate:"required"`
	Title         string            `yaml:"title" validate:"required"`
	StarterCode   map[string]string `yaml:"starter_code" validate:"required,min=1"`
	AuxiliaryCode map[string]string `yaml:"auxiliary_code"`
	Tasks         []TaskFile        `yaml:"tasks" validate:"required,min=1,dive"`
}

// TaskFile is the YAML form of a task.
type TaskFile struct {
	ID                 string                `yaml:"id" validate:"required"`
	Instructions       []string              `yaml:"instructions" validate:"required,min=1"`
	MainFunctionName   string                `yaml:"main_function_name" validate:"required"`
	InputFunctionName  string                `yaml:"input_function_name"`
	OutputFunctionName string                `yaml:"output_function_name"`
	TestSuites         []TestSuiteFile       `yaml:"test_suites" validate:"required,min=1,dive"`
	BuggyOutputTests   []BuggyOutputTestFile `yaml:"buggy_output_tests" validate:"dive"`
	SuiteLevelTests    []SuiteLevelTestFile  `yaml:"suite_level_tests" validate:"dive"`
	PerformanceTests   []PerformanceTestFile `yaml:"performance_tests" validate:"dive"`
}

// TestSuiteFile is the YAML form of a test suite.
type TestSuiteFile struct {
	ID                string     `yaml:"id" validate:"required"`
	HumanReadableName string     `yaml:"human_readable_name"`
	TestCases         []TestCase `yaml:"test_cases" validate:"required,min=1,dive"`
}

// TestCase is the YAML form of a correctness test.
type TestCase struct {
	Input            any    `yaml:"input"`
	AllowedOutputs   []any  `yaml:"allowed_outputs" validate:"required,min=1"`
	Tag              string `yaml:"tag"`
	OrderIndependent bool   `yaml:"order_independent"`
}

// BuggyOutputTestFile is the YAML form of a buggy output test.
type BuggyOutputTestFile struct {
	BuggyFunctionName string   `yaml:"buggy_function_name" validate:"required"`
	Messages          []string `yaml:"messages" validate:"required,min=1"`
}

// SuiteLevelTestFile is the YAML form of a suite-level test.
type SuiteLevelTestFile struct {
	SuiteIDsThatMustPass []string `yaml:"suite_ids_that_must_pass"`
	SuiteIDsThatMustFail []string `yaml:"suite_ids_that_must_fail"`
	Messages             []string `yaml:"messages" validate:"required,min=1"`
}

// PerformanceTestFile is the YAML form of a performance test.
type PerformanceTestFile struct {
	InputDataAtom              string `yaml:"input_data_atom" validate:"required"`
	TransformationFunctionName string `yaml:"transformation_function_name" validate:"required"`
	ExpectedPerformance        string `yaml:"expected_performance" validate:"required,oneof=constant linear quadratic cubic"`
	EvaluationFunctionName     string `yaml:"evaluation_function_name" validate:"required"`
}

var validate = validator.New()

// Loader reads question files from the built-in pack and, optionally, a
// directory on disk.
type Loader struct {
	basePath string
}

// NewLoader creates a loader. An empty basePath loads only the built-in
// questions.
func NewLoader(basePath string) *Loader {
	return &Loader{basePath: basePath}
}

// LoadAll loads the built-in questions followed by those under basePath. A
// question on disk replaces a built-in one with the same ID.
func (l *Loader) LoadAll() ([]*domain.Question, error) {
	questions, err := loadFS(builtin, "questions")
	if err != nil {
		return nil, fmt.Errorf("load built-in questions: %w", err)
	}
	if l.basePath == "" {
		return questions, nil
	}
	if _, err := os.Stat(l.basePath); os.IsNotExist(err) {
		return questions, nil
	}

	local, err := loadFS(os.DirFS(l.basePath), ".")
	if err != nil {
		return nil, fmt.Errorf("load questions from %s: %w", l.basePath, err)
	}
	return merge(questions, local), nil
}

func loadFS(fsys fs.FS, dir string) ([]*domain.Question, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, err
	}

	var questions []*domain.Question
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		data, err := fs.ReadFile(fsys, filepath.ToSlash(filepath.Join(dir, entry.Name())))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", entry.Name(), err)
		}
		q, err := Parse(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry.Name(), err)
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func merge(base, overrides []*domain.Question) []*domain.Question {
	out := append([]*domain.Question(nil), base...)
	for _, q := range overrides {
		replaced := false
		for i := range out {
			if out[i].ID == q.ID {
				out[i] = q
				replaced = true
			}
		}
		if !replaced {
			out = append(out, q)
		}
	}
	return out
}

// Parse decodes and validates one question file.
func Parse(data []byte) (*domain.Question, error) {
	var file QuestionFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse question file: %w", err)
	}
	if err := validate.Struct(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidTask, err)
	}

	q := &domain.Question{
		ID:            file.ID,
		Title:         file.Title,
		StarterCode:   make(map[domain.Language]string),
		AuxiliaryCode: make(map[domain.Language]string),
		Tasks:         make([]domain.Task, len(file.Tasks)),
	}
	for lang, code := range file.StarterCode {
		l, err := domain.ParseLanguage(lang)
		if err != nil {
			return nil, fmt.Errorf("starter code: %w", err)
		}
		q.StarterCode[l] = code
	}
	for lang, code := range file.AuxiliaryCode {
		l, err := domain.ParseLanguage(lang)
		if err != nil {
			return nil, fmt.Errorf("auxiliary code: %w", err)
		}
		q.AuxiliaryCode[l] = code
	}
	for i, tf := range file.Tasks {
		q.Tasks[i] = tf.toDomain()
	}

	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}

func (tf TaskFile) toDomain() domain.Task {
	task := domain.Task{
		ID:                 tf.ID,
		Instructions:       tf.Instructions,
		MainFunctionName:   tf.MainFunctionName,
		InputFunctionName:  tf.InputFunctionName,
		OutputFunctionName: tf.OutputFunctionName,
	}
	for _, sf := range tf.TestSuites {
		suite := domain.TestSuite{ID: sf.ID, HumanReadableName: sf.HumanReadableName}
		for _, tc := range sf.TestCases {
			outputs := make([]domain.Value, len(tc.AllowedOutputs))
			for i, o := range tc.AllowedOutputs {
				outputs[i] = domain.NormalizeValue(o)
			}
			suite.TestCases = append(suite.TestCases, domain.CorrectnessTest{
				Input:            domain.NormalizeValue(tc.Input),
				AllowedOutputs:   outputs,
				Tag:              tc.Tag,
				OrderIndependent: tc.OrderIndependent,
			})
		}
		task.TestSuites = append(task.TestSuites, suite)
	}
	for _, bt := range tf.BuggyOutputTests {
		task.BuggyOutputTests = append(task.BuggyOutputTests, domain.BuggyOutputTest(bt))
	}
	for _, st := range tf.SuiteLevelTests {
		task.SuiteLevelTests = append(task.SuiteLevelTests, domain.SuiteLevelTest(st))
	}
	for _, pt := range tf.PerformanceTests {
		task.PerformanceTests = append(task.PerformanceTests, domain.PerformanceTest{
			InputDataAtom:              pt.InputDataAtom,
			TransformationFunctionName: pt.TransformationFunctionName,
			ExpectedPerformance:        domain.PerformanceClass(pt.ExpectedPerformance),
			EvaluationFunctionName:     pt.EvaluationFunctionName,
		})
	}
	return task
}
