package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/cobra"

	"github.com/dshills/scaffoldhost/internal/app"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var (
		scaffoldDir string
		saveDir     string
		watch       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the native API over MCP on stdin/stdout",
		Long: `Serve the native API to the client over the Model Context Protocol on
stdin/stdout. Logs go to stderr or the configured log file.

The host runs until stdin closes or it receives SIGINT or SIGTERM. Every
process it started is killed before it exits.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts, err := g.options()
			if err != nil {
				return err
			}
			opts.ScaffoldDir = scaffoldDir
			opts.SaveDir = saveDir
			opts.Watch = watch

			application, err := app.New(opts)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer application.Shutdown()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return application.Run(ctx, &mcp.StdioTransport{})
		},
	}

	cmd.Flags().StringVar(&scaffoldDir, "scaffold-dir", "", "directory returned to openScaffoldDirectory")
	cmd.Flags().StringVar(&saveDir, "save-dir", "", "directory that receives exported maps")
	cmd.Flags().BoolVar(&watch, "watch", true, "reload the config file when it changes")

	return cmd
}
