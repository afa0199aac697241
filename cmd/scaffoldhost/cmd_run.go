package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/dshills/scaffoldhost/internal/app"
	"github.com/dshills/scaffoldhost/internal/event"
	"github.com/dshills/scaffoldhost/internal/process"
)

// exitError carries a child's exit status out of the run command.
type exitError struct {
	code int
}

func (e *exitError) Error() string {
	return "process exited with status " + strconv.Itoa(e.code)
}

func newRunCmd(g *globalFlags) *cobra.Command {
	var (
		lang        string
		runtimePath string
		format      string
	)

	cmd := &cobra.Command{
		Use:   "run <workdir> [-- args...]",
		Short: "Run one scaffold process in the terminal",
		Long: `Run the scaffold's Gradle wrapper (or a Python interpreter) in <workdir>
through the same supervisor the client uses, printing its output as it
arrives. Arguments after -- are passed to the process.

Output is plain text on a terminal and JSON lines otherwise; use --format
to choose. Ctrl+C kills the process and everything it started.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			language, err := process.ParseLanguage(lang)
			if err != nil {
				return err
			}

			req := process.SpawnRequest{WorkDir: args[0], Language: language}
			if cmd.ArgsLenAtDash() > 0 {
				req.Args = args[cmd.ArgsLenAtDash():]
			}
			if language == process.LanguagePython {
				req.Interpreter = runtimePath
			} else {
				req.RuntimeHome = runtimePath
			}

			asJSON, err := useJSON(format)
			if err != nil {
				return err
			}

			opts, err := g.options()
			if err != nil {
				return err
			}

			exits := make(chan event.TerminationEvent, 16)
			console := newConsoleSink(cmd.OutOrStdout(), cmd.ErrOrStderr(), asJSON)
			opts.Sink = event.Fanout{
				console,
				event.SinkFunc(func(e event.Event) {
					if te, ok := e.(event.TerminationEvent); ok {
						select {
						case exits <- te:
						default:
						}
					}
				}),
			}

			application, err := app.New(opts)
			if err != nil {
				return fmt.Errorf("failed to initialize: %w", err)
			}
			defer application.Shutdown()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			pid, err := application.Supervisor().Spawn(ctx, req)
			if err != nil {
				return err
			}
			application.Logger().WithField("pid", pid).Debug("started %s", req.WorkDir)

			return waitExit(ctx, application, pid, exits)
		},
	}

	cmd.Flags().StringVar(&lang, "lang", "java", "language of the scaffold (java or python)")
	cmd.Flags().StringVar(&runtimePath, "runtime", "", "Java home or Python interpreter to use")
	cmd.Flags().StringVar(&format, "format", "auto", "output format (auto, text, json)")

	return cmd
}

// waitExit blocks until pid exits or ctx is cancelled, in which case every
// process is killed.
func waitExit(ctx context.Context, application *app.Application, pid string, exits <-chan event.TerminationEvent) error {
	for {
		select {
		case <-ctx.Done():
			application.Shutdown()
			return nil
		case te := <-exits:
			if te.PID != pid {
				continue
			}
			if te.Exit.HasCode && te.Exit.Code != 0 {
				return &exitError{code: te.Exit.Code}
			}
			if te.Exit.HasSignal {
				return &exitError{code: 128 + te.Exit.Signal}
			}
			return nil
		}
	}
}

// useJSON resolves the --format flag. auto picks JSON when stdout is not
// a terminal.
func useJSON(format string) (bool, error) {
	switch format {
	case "json":
		return true, nil
	case "text":
		return false, nil
	case "auto", "":
		return !term.IsTerminal(int(os.Stdout.Fd())), nil
	default:
		return false, fmt.Errorf("invalid format %q (must be auto, text, or json)", format)
	}
}
