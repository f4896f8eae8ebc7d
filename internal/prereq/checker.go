// Package prereq performs static checks on a submission before it is run.
package prereq

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/felixgeelhaar/coach/internal/domain"
)

// DefaultSupportedLibraries are the modules a submission may import.
var DefaultSupportedLibraries = []string{
	"collections", "image", "math", "operator", "random", "re", "string", "time",
}

// Reserved class names a submission may not reference.
const (
	AuxiliaryNamespace = "AuxiliaryCode"
	SystemNamespace    = "System"
	StudentNamespace   = "StudentAnswer"
)

// Config configures a Checker.
type Config struct {
	SupportedLibraries []string
}

// DefaultConfig returns the default checker configuration.
func DefaultConfig() Config {
	return Config{SupportedLibraries: append([]string(nil), DefaultSupportedLibraries...)}
}

// Checker runs the prerequisite checks. It holds no per-call state and is
// safe for concurrent use.
type Checker struct {
	supported map[string]bool
	rules     []Rule
}

// NewChecker creates a checker.
func NewChecker(cfg Config) *Checker {
	libs := cfg.SupportedLibraries
	if len(libs) == 0 {
		libs = DefaultSupportedLibraries
	}
	supported := make(map[string]bool, len(libs))
	for _, lib := range libs {
		supported[lib] = true
	}
	return &Checker{supported: supported, rules: WrongLanguageRules()}
}

// Check validates code against the starter code. It returns a nil failure
// when every check passes; the first failing check wins.
func (c *Checker) Check(ctx context.Context, lang domain.Language, starterCode, code string) (domain.PrereqFailure, error) {
	if lang != domain.LanguagePython {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedLanguage, lang)
	}

	if !hasStarterSkeleton(starterCode, code) {
		return domain.MissingStarterCode{StarterCode: starterCode}, nil
	}

	src := []byte(code)
	parser := sitter.NewParser()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse submission: %w", err)
	}
	defer tree.Close()
	root := tree.RootNode()

	if bad := c.unsupportedImports(root, src); len(bad) > 0 {
		return domain.BadImport{Imports: bad}, nil
	}
	if line, ok := globalCodeLine(root); ok {
		return domain.GlobalCode{Line: line}, nil
	}
	if root.HasError() {
		if key, line, ok := c.detectWrongLanguage(code); ok {
			return domain.WrongLanguage{ErrorKey: key, Line: line}, nil
		}
	}

	idents := identifiers(root, src)
	switch {
	case idents[AuxiliaryNamespace]:
		return domain.InvalidAuxiliaryCodeCall{}, nil
	case idents[SystemNamespace]:
		return domain.InvalidSystemCall{}, nil
	case idents[StudentNamespace]:
		return domain.InvalidStudentCodeCall{}, nil
	}
	return nil, nil
}

var (
	defHeader  = regexp.MustCompile(`^def\s+\w+\s*\(.*\)\s*:`)
	whitespace = regexp.MustCompile(`\s+`)
	punctSpace = regexp.MustCompile(`\s*([(),:=])\s*`)
)

// hasStarterSkeleton reports whether every top-level def header of the
// starter code survives in code, ignoring whitespace differences.
func hasStarterSkeleton(starterCode, code string) bool {
	present := make(map[string]bool)
	for _, line := range strings.Split(code, "\n") {
		if defHeader.MatchString(line) {
			present[normalizeHeader(line)] = true
		}
	}
	for _, line := range strings.Split(starterCode, "\n") {
		if defHeader.MatchString(line) && !present[normalizeHeader(line)] {
			return false
		}
	}
	return true
}

func normalizeHeader(line string) string {
	line = defHeader.FindString(strings.TrimRight(line, " \t\r"))
	line = whitespace.ReplaceAllString(line, " ")
	return punctSpace.ReplaceAllString(line, "$1")
}

// unsupportedImports returns the root modules imported anywhere in the tree
// that are not supported, deduplicated in source order.
func (c *Checker) unsupportedImports(root *sitter.Node, src []byte) []string {
	var bad []string
	seen := make(map[string]bool)
	add := func(module string) {
		if c.supported[module] || seen[module] {
			return
		}
		seen[module] = true
		bad = append(bad, module)
	}

	walk(root, func(n *sitter.Node) bool {
		switch n.Type() {
		case "import_statement":
			for i := 0; i < int(n.NamedChildCount()); i++ {
				child := n.NamedChild(i)
				if child.Type() == "aliased_import" {
					child = child.ChildByFieldName("name")
				}
				if child != nil && child.Type() == "dotted_name" {
					add(rootModule(child.Content(src)))
				}
			}
			return false
		case "import_from_statement", "future_import_statement":
			if mod := n.ChildByFieldName("module_name"); mod != nil {
				add(rootModule(mod.Content(src)))
			} else if n.Type() == "future_import_statement" {
				add("__future__")
			}
			return false
		}
		return true
	})
	return bad
}

func rootModule(name string) string {
	if strings.HasPrefix(name, ".") {
		return name
	}
	if i := strings.Index(name, "."); i >= 0 {
		return name[:i]
	}
	return name
}

// globalCodeLine finds the first top-level statement that would run at
// import time. Nodes containing parse errors are left to the language check.
func globalCodeLine(root *sitter.Node) (int, bool) {
	for i := 0; i < int(root.NamedChildCount()); i++ {
		n := root.NamedChild(i)
		if n.HasError() || n.IsMissing() {
			continue
		}
		switch n.Type() {
		case "function_definition", "class_definition", "decorated_definition",
			"import_statement", "import_from_statement", "future_import_statement",
			"comment":
			continue
		case "expression_statement":
			if n.NamedChildCount() == 1 && n.NamedChild(0).Type() == "string" {
				continue
			}
		}
		return int(n.StartPoint().Row) + 1, true
	}
	return 0, false
}

func identifiers(root *sitter.Node, src []byte) map[string]bool {
	found := make(map[string]bool)
	walk(root, func(n *sitter.Node) bool {
		if n.Type() == "identifier" {
			switch name := n.Content(src); name {
			case AuxiliaryNamespace, SystemNamespace, StudentNamespace:
				found[name] = true
			}
		}
		return true
	})
	return found
}

// walk visits n and its descendants depth first. Returning false from visit
// skips the node's children.
func walk(n *sitter.Node, visit func(*sitter.Node) bool) {
	if n == nil || !visit(n) {
		return
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		walk(n.Child(i), visit)
	}
}
