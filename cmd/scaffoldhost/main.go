// Package main is the entry point for scaffoldhost, the native backend of
// the scaffold client.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dshills/scaffoldhost/internal/app"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type globalFlags struct {
	configPath string
	logLevel   string
}

// options builds the application options shared by every subcommand.
func (g *globalFlags) options() (app.Options, error) {
	opts := app.Options{
		ConfigPath: g.configPath,
		Version:    version,
		Overrides:  map[string]any{},
	}

	if g.logLevel != "" {
		switch g.logLevel {
		case "debug", "info", "warn", "error":
		default:
			return opts, fmt.Errorf("invalid log level %q (must be debug, info, warn, or error)", g.logLevel)
		}
		opts.Overrides["log.level"] = g.logLevel
	}
	return opts, nil
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:   "scaffoldhost",
		Short: "Native host for the scaffold client",
		Long: `scaffoldhost performs the operations the scaffold client cannot do from a
browser sandbox: choosing directories, reading and writing files, finding
Java and Python installs, and running the scaffold's build processes.

Children started by the host never outlive it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&g.configPath, "config", "c", "", "path to configuration file (TOML or YAML)")
	root.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (debug, info, warn, error)")

	root.AddCommand(newServeCmd(g))
	root.AddCommand(newRunCmd(g))
	root.AddCommand(newVersionCmd())

	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var ee *exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
