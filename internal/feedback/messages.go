package feedback

import (
	"fmt"
	"regexp"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/prereq"
)

// PrimerButtonName is the label of the button linking to the language primer.
const PrimerButtonName = "Python Primer"

// Fixed texts.
const (
	successText = "You've completed all the tasks for this question! Click the " +
		`"Next" button to move on to the next question.`
	nextTaskText = "You've completed this task! The next task's instructions are " +
		"now shown above."
	syntaxErrorText = "It looks like your code has a syntax error. " +
		"Try to figure out what the error is."
	stackExceededText = "Looks like your code is hitting an infinite recursive loop. " +
		"Check to see that your recursive calls terminate."
	serverErrorText = "A server error has occurred. We are looking into it " +
		"and will fix it as quickly as possible. We apologize for the inconvenience."
	regressionText = "It looks like there was a regression in your code. Your code " +
		"used to work for the following, but it now fails:"
	starterCodeText = "It looks like you deleted or modified the starter code!  Our " +
		"evaluation program requires the function names given in the starter code.  " +
		"You can press the 'Reset Code' button to start over.  Or, you can copy the " +
		"starter code below:"
	badImportText = "It looks like you're importing an external library. However, the " +
		"following libraries are not supported:\n"
	supportedLibrariesText = "Here is a list of libraries we currently support:\n"
	globalCodeText         = "Please keep your code within the existing predefined functions " +
		"or define your own helper functions if you need to " +
		"-- we cannot process code in the global scope."
	forbiddenNamespaceText = "Looks like your code had a runtime error. Here is the error message: "
)

func timeoutText(seconds int) string {
	return fmt.Sprintf("Your program's exceeded the time limit (%d seconds) we've set. "+
		"Can you try to make it run more efficiently?", seconds)
}

func performanceText(expected domain.PerformanceClass) string {
	return fmt.Sprintf("Your code is running more slowly than expected. Can you "+
		"reconfigure it such that it runs in %s time?", expected)
}

func runtimeErrorText(input domain.Value) string {
	return fmt.Sprintf("Looks like your code had a runtime error when evaluating the input %s.",
		domain.HumanReadable(input))
}

func forbiddenNamespaceError(namespace string, calling bool) string {
	if calling {
		return fmt.Sprintf("ForbiddenNamespaceError: It looks like you're trying to call the %s "+
			"class or its methods, which is forbidden. Please resubmit without using this class.", namespace)
	}
	return fmt.Sprintf("ForbiddenNamespaceError: It looks like you're using the %s class or its "+
		"methods, which is forbidden. Please resubmit without using this class.", namespace)
}

// UnfamiliarLanguageText returns the paragraph pointing a learner at the
// reference material for lang, or "" when there is none.
func UnfamiliarLanguageText(lang domain.Language) string {
	if lang != domain.LanguagePython {
		return ""
	}
	return "Seems like you're having some trouble with Python. Why don't you take a look " +
		"at the page linked through the '" + PrimerButtonName + "' button at the bottom of the screen?"
}

// Correctness feedback types, each with interchangeable texts.
const (
	typeInputToTry     = "input_to_try"
	typeExpectedOutput = "expected_output"
	typeOutputEnabled  = "output_enabled"
)

var correctnessTexts = map[string][]string{
	typeInputToTry: {
		"Your code gave an unexpected result. Try walking through it by hand with this input:",
		"Hmm, something isn't quite right. What does your code do when given this input?",
		"Let's trace through your code with a concrete example. Try this input:",
		"Your code doesn't handle every case yet. Can you work out what it does for this input?",
	},
	typeExpectedOutput: {
		"Here's the output we expected for that input. Compare it with what your code would produce:",
		"For this input, the answer should be the following. Does your code agree?",
		"Take another look at this input. This is the output we were looking for:",
	},
	typeOutputEnabled: {
		"Your code still gives the wrong answer for this input. Here's what it actually produced:",
		"Let's compare the expected output with your code's actual output:",
		"Here is the output your code gave, next to the one we expected:",
	},
}

// runtimeExplanation turns a recognised runtime error into plain language.
// The error text has already had its line number remapped.
type runtimeExplanation struct {
	pattern *regexp.Regexp
	explain func(m []string) string
}

// where matches the trailing location of a remapped error message.
const where = `(?: on (line \d+|a line in the test code))?$`

var runtimeExplanations = []runtimeExplanation{
	{
		pattern: regexp.MustCompile(`^NameError: name '(\w+)' is not defined` + where),
		explain: func(m []string) string {
			return fmt.Sprintf("It looks like %s isn't a declared variable%s. Did you make sure "+
				"to spell it correctly? And is it correctly initialized?", m[1], at(m[2]))
		},
	},
	{
		pattern: regexp.MustCompile(`^ZeroDivisionError: .*?` + where),
		explain: func(m []string) string {
			return fmt.Sprintf("It looks like your code divides by zero%s. Can you check "+
				"that the divisor can never be 0?", at(m[1]))
		},
	},
	{
		pattern: regexp.MustCompile(`^IndexError: (list|string|tuple) index out of range` + where),
		explain: func(m []string) string {
			return fmt.Sprintf("It looks like your code tried to access an index past the end of "+
				"a %s%s. Double-check your loop bounds and index arithmetic.", m[1], at(m[2]))
		},
	},
	{
		pattern: regexp.MustCompile(`^KeyError: (.+?)` + where),
		explain: func(m []string) string {
			return fmt.Sprintf("The key %s isn't in the dictionary you're looking it up in%s. "+
				"Check that it's added before it's read, or use get() with a default.", m[1], at(m[2]))
		},
	},
	{
		pattern: regexp.MustCompile(`^AttributeError: '(\w+)' object has no attribute '(\w+)'` + where),
		explain: func(m []string) string {
			return fmt.Sprintf("It looks like you called %s on a value of type %s%s, "+
				"but that type has no such attribute.", m[2], m[1], at(m[3]))
		},
	},
	{
		pattern: regexp.MustCompile(`^TypeError: can only concatenate (\w+) \(not "(\w+)"\) to \w+` + where),
		explain: func(m []string) string {
			return fmt.Sprintf("It looks like you're adding a %s to a %s%s. Convert one of them "+
				"first, for example with str() or int().", m[2], m[1], at(m[3]))
		},
	},
	{
		pattern: regexp.MustCompile(`^TypeError: '(\w+)' object is not (subscriptable|iterable|callable)` + where),
		explain: func(m []string) string {
			return fmt.Sprintf("It looks like you're treating a value of type %s as if it were "+
				"%s%s. Check what that variable holds at that point.", m[1], article(m[2]), at(m[3]))
		},
	},
}

func at(location string) string {
	if location == "" {
		return ""
	}
	return " (" + location + ")"
}

func article(kind string) string {
	switch kind {
	case "subscriptable":
		return "a list or string"
	case "iterable":
		return "a sequence"
	default:
		return "a function"
	}
}

// explainRuntimeError returns the plain-language explanation of the first
// recognised error, if any.
func explainRuntimeError(errorText string) (string, bool) {
	for _, re := range runtimeExplanations {
		if m := re.pattern.FindStringSubmatch(errorText); m != nil {
			return re.explain(m), true
		}
	}
	return "", false
}

// wrongLanguageParagraphs holds the feedback for each wrong-language key.
// Error paragraphs are preceded by the syntax error text when rendered.
var wrongLanguageParagraphs = map[string][]domain.Paragraph{
	prereq.KeyJavaComment: {
		{Type: domain.ParagraphText, Content: "It looks like you're using // to start a comment. In Python, comments start with #:"},
		{Type: domain.ParagraphCode, Content: "# This is a comment."},
	},
	prereq.KeyBlockComment: {
		{Type: domain.ParagraphText, Content: "Python has no /* ... */ block comments. Start each comment line with # instead, or use a docstring:"},
		{Type: domain.ParagraphCode, Content: "# First line of the comment.\n# Second line of the comment."},
	},
	prereq.KeyCurlyBraces: {
		{Type: domain.ParagraphText, Content: "It looks like you're using curly braces to mark a block. Python uses a colon and indentation instead:"},
		{Type: domain.ParagraphCode, Content: "if x > 0:\n    return x"},
	},
	prereq.KeyAndOperator: {
		{Type: domain.ParagraphText, Content: "Python doesn't use && for a logical AND. Use the keyword and instead:"},
		{Type: domain.ParagraphCode, Content: "if a > 0 and b > 0:"},
	},
	prereq.KeyOrOperator: {
		{Type: domain.ParagraphText, Content: "Python doesn't use || for a logical OR. Use the keyword or instead:"},
		{Type: domain.ParagraphCode, Content: "if a > 0 or b > 0:"},
	},
	prereq.KeyNotOperator: {
		{Type: domain.ParagraphText, Content: "Python doesn't use ! to negate a condition. Use the keyword not instead:"},
		{Type: domain.ParagraphCode, Content: "if not found:"},
	},
	prereq.KeyIncrement: {
		{Type: domain.ParagraphText, Content: "Python has no ++ operator. To add one to a variable, write:"},
		{Type: domain.ParagraphCode, Content: "i += 1"},
	},
	prereq.KeyDecrement: {
		{Type: domain.ParagraphText, Content: "Python has no -- operator. To subtract one from a variable, write:"},
		{Type: domain.ParagraphCode, Content: "i -= 1"},
	},
	prereq.KeyElseIf: {
		{Type: domain.ParagraphText, Content: "In Python, \"else if\" is written as one keyword, elif:"},
		{Type: domain.ParagraphCode, Content: "if x < 0:\n    ...\nelif x == 0:\n    ..."},
	},
	prereq.KeyTypedDeclaration: {
		{Type: domain.ParagraphText, Content: "Python variables don't need a type in front of them. Just assign a value:"},
		{Type: domain.ParagraphCode, Content: "count = 0"},
	},
	prereq.KeyCStyleFor: {
		{Type: domain.ParagraphText, Content: "Python for loops iterate over a sequence rather than using (init; condition; step). To loop over indexes, use range:"},
		{Type: domain.ParagraphCode, Content: "for i in range(len(s)):"},
	},
	prereq.KeyAccessModifier: {
		{Type: domain.ParagraphText, Content: "Python has no public, private, protected or static keywords. Define functions with def:"},
		{Type: domain.ParagraphCode, Content: "def helper(s):"},
	},
	prereq.KeyNullLiteral: {
		{Type: domain.ParagraphText, Content: "Python has no null. The empty value is written None:"},
		{Type: domain.ParagraphCode, Content: "result = None"},
	},
	prereq.KeyBooleanLiteral: {
		{Type: domain.ParagraphText, Content: "In Python the boolean values are capitalized: True and False."},
		{Type: domain.ParagraphCode, Content: "return True"},
	},
	prereq.KeySemicolon: {
		{Type: domain.ParagraphError, Content: "SyntaxError: Python statements don't end with a semicolon."},
		{Type: domain.ParagraphText, Content: "Try removing the semicolon at the end of the line."},
	},
}
