package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/coach/internal/domain"
)

func newQuestionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "question",
		Aliases: []string{"questions", "q"},
		Short:   "Browse the available questions",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List all questions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			questions := a.Questions.List()
			if len(questions) == 0 {
				fmt.Fprintln(out, "No questions found.")
				return nil
			}
			fmt.Fprintln(out, "Available Questions:")
			for _, q := range questions {
				fmt.Fprintf(out, "  %-20s %s (%d tasks, %s)\n", q.ID, q.Title, len(q.Tasks), strings.Join(languages(q), ", "))
			}
			fmt.Fprintln(out, "\nUse 'coach session new <question>' to start")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <question>",
		Short: "Show a question and its first task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			q, err := a.Questions.Get(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Question: %s\n\n", q.Title)
			fmt.Fprintf(out, "ID:        %s\n", q.ID)
			fmt.Fprintf(out, "Languages: %s\n", strings.Join(languages(q), ", "))
			fmt.Fprintf(out, "Tasks:     %d\n\n", len(q.Tasks))
			printInstructions(out, q.Tasks[0].Instructions)
			return nil
		},
	})

	return cmd
}

func languages(q *domain.Question) []string {
	langs := make([]string, 0, len(q.StarterCode))
	for lang := range q.StarterCode {
		langs = append(langs, string(lang))
	}
	sort.Strings(langs)
	return langs
}
