package prereq

import (
	"regexp"
	"strings"
)

// Wrong-language error keys.
const (
	KeyJavaComment      = "java_comment"
	KeyBlockComment     = "block_comment"
	KeyCurlyBraces      = "curly_braces"
	KeyAndOperator      = "and_operator"
	KeyOrOperator       = "or_operator"
	KeyNotOperator      = "not_operator"
	KeyIncrement        = "increment_operator"
	KeyDecrement        = "decrement_operator"
	KeyElseIf           = "else_if"
	KeyTypedDeclaration = "typed_declaration"
	KeyCStyleFor        = "c_style_for"
	KeyAccessModifier   = "access_modifier"
	KeyNullLiteral      = "null_literal"
	KeyBooleanLiteral   = "lowercase_boolean"
	KeySemicolon        = "semicolon"
)

// Rule maps a pattern that is never valid Python to an error key.
type Rule struct {
	Key     string
	Pattern *regexp.Regexp
}

// WrongLanguageRules returns the detection table in match priority order.
func WrongLanguageRules() []Rule {
	return []Rule{
		{KeyJavaComment, regexp.MustCompile(`^\s*//`)},
		{KeyBlockComment, regexp.MustCompile(`^\s*/\*|\*/\s*$`)},
		{KeyAccessModifier, regexp.MustCompile(`^\s*(public|private|protected|static)\s`)},
		{KeyTypedDeclaration, regexp.MustCompile(`^\s*(int|long|double|float|char|boolean|bool|String|void)(\[\])?\s+\w+\s*(=|;|\(|$)`)},
		{KeyCStyleFor, regexp.MustCompile(`\bfor\s*\(.*;.*;.*\)`)},
		{KeyElseIf, regexp.MustCompile(`\belse\s+if\b`)},
		{KeyCurlyBraces, regexp.MustCompile(`\)\s*\{\s*$|^\s*\}\s*$|^\s*\}\s*else\b`)},
		{KeyAndOperator, regexp.MustCompile(`&&`)},
		{KeyOrOperator, regexp.MustCompile(`\|\|`)},
		{KeyIncrement, regexp.MustCompile(`\w\+\+|\+\+\w`)},
		{KeyDecrement, regexp.MustCompile(`\w--|--\w`)},
		{KeyNotOperator, regexp.MustCompile(`(^|[^!=<>])!([^=]|$)`)},
		{KeyNullLiteral, regexp.MustCompile(`\bnull\b`)},
		{KeyBooleanLiteral, regexp.MustCompile(`\b(true|false)\b`)},
		{KeySemicolon, regexp.MustCompile(`;\s*$`)},
	}
}

// detectWrongLanguage scans code line by line and returns the key of the
// first rule matching a line, with the 1-based line number.
func (c *Checker) detectWrongLanguage(code string) (string, int, bool) {
	for i, line := range strings.Split(code, "\n") {
		masked := maskLine(line)
		for _, rule := range c.rules {
			if rule.Pattern.MatchString(masked) {
				return rule.Key, i + 1, true
			}
		}
	}
	return "", 0, false
}

// maskLine blanks out string literal contents and drops a trailing Python
// comment so their text cannot trigger a rule.
func maskLine(line string) string {
	var b strings.Builder
	b.Grow(len(line))
	var quote rune
	escaped := false
	for _, r := range line {
		switch {
		case quote != 0:
			switch {
			case escaped:
				escaped = false
				r = ' '
			case r == '\\':
				escaped = true
				r = ' '
			case r == quote:
				quote = 0
			default:
				r = ' '
			}
		case r == '"' || r == '\'':
			quote = r
		case r == '#':
			return b.String()
		}
		b.WriteRune(r)
	}
	return b.String()
}
