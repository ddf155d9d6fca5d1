// Package cli implements the cobra command for examplewatch.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/examplewatch/internal/config"
	"github.com/hupe1980/examplewatch/internal/logging"
	"github.com/hupe1980/examplewatch/internal/target"
	"github.com/hupe1980/examplewatch/internal/version"
)

const usageLine = "Usage: examplewatch <example>"

// ExitError wraps an error with a specific process exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}

	return fmt.Sprintf("exit code %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

// Execute builds the command, runs it, and returns the exit code.
func Execute() int {
	return run(NewRootCommand(), os.Stderr)
}

func run(cmd *cobra.Command, stderr io.Writer) int {
	err := cmd.Execute()
	if err == nil {
		return 0
	}

	fmt.Fprintf(stderr, "Error: %v\n", err)

	var usageErr *target.UsageError
	if errors.As(err, &usageErr) {
		fmt.Fprintln(stderr, usageLine)
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	return 1
}

// NewRootCommand constructs the examplewatch command.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "examplewatch <example>",
		Short: "Rebuild and relaunch a native example whenever its sources change",
		Long: `examplewatch builds an example with the project's build tool, runs it,
and watches the source tree and the build description. Every change
terminates the running example, rebuilds it, and launches it again.

While it runs, single keystrokes control the example:

  c    clean the native build artifacts, then rebuild and run
  a    clean everything, then rebuild and run
  r    restart the example
  l    restart the example with extra logging enabled
  k    keep the example closed until r or l
  0-9  ask the running example to trace that many frames
  q    quit`,
		Version:       version.GetInfo().Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			if opts.printConfig || opts.completion != "" {
				return nil
			}

			t, err := target.Resolve(args)
			if err != nil {
				return &ExitError{Code: 1, Err: err}
			}

			opts.target = t

			return nil
		},
		ValidArgsFunction: completeTargets,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if opts.completion != "" {
				return nil
			}

			cfg, err := config.Load(cmd, opts.configFile)
			if err != nil {
				return &ExitError{Code: 2, Err: err}
			}

			logger := logging.Setup(cfg)

			ctx := cmd.Context()
			ctx = config.NewContext(ctx, cfg)
			ctx = logging.NewContext(ctx, logger)
			cmd.SetContext(ctx)

			logger.Debug("configuration loaded",
				slog.String("logLevel", cfg.LogLevel),
				slog.String("root", cfg.Root),
				slog.String("configFile", cfg.ConfigFile),
			)

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			switch {
			case opts.completion != "":
				return writeCompletion(cmd, opts.completion)
			case opts.printConfig:
				return printConfig(cmd)
			}

			return runSupervisor(cmd.Context(), cmd, opts.target)
		},
	}

	cmd.SetVersionTemplate(version.GetInfo().String() + "\n")

	registerFlags(cmd, opts)

	// Flag parsing errors return exit code 2.
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: 2, Err: err}
	})

	return cmd
}

func printConfig(cmd *cobra.Command) error {
	out, err := config.FromContext(cmd.Context()).YAML()
	if err != nil {
		return err
	}

	_, err = cmd.OutOrStdout().Write(out)

	return err
}
