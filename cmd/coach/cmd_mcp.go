package main

import (
	"github.com/spf13/cobra"

	mcpserver "github.com/felixgeelhaar/coach/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Start the MCP server for editor integration",
		Long: `Start an MCP server exposing the coach tools. It speaks stdio by default,
which is what editors such as Cursor expect; use --http to listen on an
address instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := mcpserver.NewServer(mcpserver.Config{
				Version:   Version,
				Questions: a.Questions,
				Sessions:  a.Sessions,
				Engine:    a.Engine,
			})
			if httpAddr != "" {
				return srv.ServeHTTP(ctx, httpAddr)
			}
			return srv.ServeStdio(ctx)
		},
	}
	cmd.Flags().StringVar(&httpAddr, "http", "", "serve over HTTP on this address instead of stdio")
	return cmd
}
