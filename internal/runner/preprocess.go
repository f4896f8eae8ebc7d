package runner

import (
	"errors"
	"regexp"
	"strings"
)

// StudentClassName is the class learner code is wrapped into.
const StudentClassName = "StudentAnswer"

// TestCodeLine marks a line of the program that did not come from the
// learner's code.
const TestCodeLine = -1

const indent = "    "

// ErrIncompleteDef is returned when a top-level def has no argument list.
var ErrIncompleteDef = errors.New(`Incomplete line: missing "(" in def statement.`)

var topLevelDef = regexp.MustCompile(`^def\s`)

// PreprocessedCode is the program text handed to the harness.
type PreprocessedCode struct {
	// Code is the wrapped learner code followed by the auxiliary code.
	Code string
	// RawLineIndexes maps each 0-based line of Code to the 0-based line of
	// the learner's original code, or TestCodeLine.
	RawLineIndexes []int
}

// Preprocess wraps raw learner code into the student class and appends the
// auxiliary code.
func Preprocess(raw, auxiliaryCode string) (*PreprocessedCode, error) {
	wrapped, indexes, err := WrapCodeIntoClass(raw)
	if err != nil {
		return nil, err
	}

	lines := []string{wrapped, ""}
	indexes = append(indexes, TestCodeLine)
	if aux := strings.TrimRight(auxiliaryCode, "\n"); aux != "" {
		lines = append(lines, aux)
		for range strings.Split(aux, "\n") {
			indexes = append(indexes, TestCodeLine)
		}
	}
	return &PreprocessedCode{
		Code:           strings.Join(lines, "\n") + "\n",
		RawLineIndexes: indexes,
	}, nil
}

// WrapCodeIntoClass turns top-level functions into methods of the student
// class. Leading and trailing blank lines are dropped; every remaining line
// is indented one level and "self, " is injected into each top-level def.
// The returned slice maps each wrapped line to its raw line index.
func WrapCodeIntoClass(raw string) (string, []int, error) {
	rawLines := strings.Split(raw, "\n")
	first, last := 0, len(rawLines)-1
	for first <= last && strings.TrimSpace(rawLines[first]) == "" {
		first++
	}
	for last >= first && strings.TrimSpace(rawLines[last]) == "" {
		last--
	}

	out := []string{"class " + StudentClassName + "(object):"}
	indexes := []int{TestCodeLine}
	for i := first; i <= last; i++ {
		line := rawLines[i]
		if topLevelDef.MatchString(line) {
			paren := strings.Index(line, "(")
			if paren < 0 {
				return "", nil, ErrIncompleteDef
			}
			line = line[:paren+1] + "self, " + line[paren+1:]
		}
		out = append(out, indent+line)
		indexes = append(indexes, i)
	}
	return strings.Join(out, "\n"), indexes, nil
}
