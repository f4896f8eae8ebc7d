package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/coach/internal/session"
)

func newSessionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "session",
		Short: "Start, inspect and end practice sessions",
	}
	cmd.AddCommand(newSessionNewCmd(), newSessionListCmd(), newSessionShowCmd(), newSessionDeleteCmd())
	return cmd
}

func newSessionNewCmd() *cobra.Command {
	var language, outPath string

	cmd := &cobra.Command{
		Use:   "new <question>",
		Short: "Start a session on a question",
		Long: `Start a session on a question. The starting code is your saved draft when
one exists, otherwise the question's starter code. Use --out to write it to a
file you can edit and submit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			started, err := a.Sessions.Create(cmd.Context(), session.CreateRequest{
				QuestionID: args[0],
				Language:   language,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session: %s\n\n", started.Session.ID)
			printInstructions(out, started.Instructions)

			if outPath != "" {
				if err := os.WriteFile(outPath, []byte(started.Code), 0644); err != nil {
					return fmt.Errorf("write starting code: %w", err)
				}
				fmt.Fprintf(out, "\nStarting code written to %s\n", outPath)
				fmt.Fprintf(out, "Submit with: coach submit %s %s\n", started.Session.ID, outPath)
				return nil
			}
			fmt.Fprintf(out, "\nStarting code:\n\n%s\n", started.Code)
			return nil
		},
	}
	cmd.Flags().StringVarP(&language, "language", "l", "python", "solution language")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write the starting code to this file")
	return cmd
}

func newSessionListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			sessions, err := a.Sessions.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions.")
				return nil
			}
			for _, s := range sessions {
				fmt.Fprintf(out, "%s  %-12s %-9s task %d  %d submissions  %s\n",
					s.ID, s.QuestionID, s.Status, s.TaskIndex+1, s.SubmissionCount, s.CreatedAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}
}

func newSessionShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "show <session>",
		Aliases: []string{"transcript"},
		Short:   "Show a session and its feedback history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			s, err := a.Sessions.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			transcript, err := a.Sessions.Transcript(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Session:     %s\n", s.ID)
			fmt.Fprintf(out, "Question:    %s (%s)\n", s.QuestionID, s.Language)
			fmt.Fprintf(out, "Status:      %s\n", s.Status)
			fmt.Fprintf(out, "Task:        %d\n", s.TaskIndex+1)
			fmt.Fprintf(out, "Submissions: %d\n", s.SubmissionCount)

			for i, snap := range transcript.Snapshots() {
				fmt.Fprintf(out, "\n#%d  %s  [%s] task %d\n\n", i+1, snap.CreatedAt.Format("15:04:05"), categoryLabel(snap.Category()), snap.TaskIndex+1)
				printFeedback(out, snap.Feedback)
			}
			return nil
		},
	}
}

func newSessionDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "delete <session>",
		Aliases: []string{"rm"},
		Short:   "Delete a session and its transcript",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Sessions.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Session deleted")
			return nil
		},
	}
}
