package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/felixgeelhaar/coach/internal/domain"
	"github.com/felixgeelhaar/coach/internal/engine"
)

func printInstructions(w io.Writer, instructions []string) {
	fmt.Fprintln(w, "Instructions:")
	for _, line := range instructions {
		fmt.Fprintf(w, "  %s\n", line)
	}
}

// printFeedback writes paragraphs separated by blank lines. Code, output
// and error paragraphs are indented so they stand apart from prose.
func printFeedback(w io.Writer, f *domain.Feedback) {
	if f == nil {
		return
	}
	for i, p := range f.GetParagraphs() {
		if i > 0 {
			fmt.Fprintln(w)
		}
		if p.Type == domain.ParagraphText {
			fmt.Fprintln(w, p.Content)
			continue
		}
		for _, line := range strings.Split(strings.TrimRight(p.Content, "\n"), "\n") {
			fmt.Fprintf(w, "    %s\n", line)
		}
	}
}

func printOutcome(w io.Writer, o *engine.Outcome) {
	fmt.Fprintf(w, "[%s] task %d\n\n", categoryLabel(o.Feedback.Category), o.TaskIndex+1)
	printFeedback(w, o.Feedback)

	if len(o.Reinforcement) > 0 {
		fmt.Fprintln(w, "\nProgress:")
		for _, line := range o.Reinforcement {
			fmt.Fprintf(w, "  ✓ %s\n", line)
		}
	}
	switch {
	case o.Completed:
		fmt.Fprintln(w, "\n✓ All tasks complete.")
	case o.Advanced:
		fmt.Fprintln(w, "\n✓ Task complete. Next:")
		printInstructions(w, o.NextInstructions)
	}
}

// categoryLabel turns SYNTAX_ERROR into "syntax error".
func categoryLabel(c domain.FeedbackCategory) string {
	return strings.ToLower(strings.ReplaceAll(string(c), "_", " "))
}
