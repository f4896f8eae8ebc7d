package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newDraftCmd() *cobra.Command {
	var language string

	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Save and restore in-progress code per question",
	}
	cmd.PersistentFlags().StringVarP(&language, "language", "l", "python", "solution language")

	cmd.AddCommand(&cobra.Command{
		Use:   "save <question> <file>",
		Short: "Save a file as the draft for a question",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := readSource(cmd.InOrStdin(), args[1])
			if err != nil {
				return err
			}
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Sessions.SaveDraft(cmd.Context(), args[0], language, code); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Draft saved")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <question> [file]",
		Short: "Print the draft for a question, or write it to a file",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			code, err := a.Sessions.LoadDraft(cmd.Context(), args[0], language)
			if err != nil {
				return err
			}
			if len(args) == 2 {
				return os.WriteFile(args[1], []byte(code), 0644)
			}
			fmt.Fprint(cmd.OutOrStdout(), code)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "clear <question>",
		Short: "Discard the draft for a question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := a.Sessions.ClearDraft(cmd.Context(), args[0], language); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Draft cleared")
			return nil
		},
	})

	return cmd
}
