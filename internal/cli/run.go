package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/hupe1980/examplewatch/internal/build"
	"github.com/hupe1980/examplewatch/internal/config"
	"github.com/hupe1980/examplewatch/internal/console"
	"github.com/hupe1980/examplewatch/internal/keys"
	"github.com/hupe1980/examplewatch/internal/logging"
	"github.com/hupe1980/examplewatch/internal/process"
	"github.com/hupe1980/examplewatch/internal/supervisor"
	"github.com/hupe1980/examplewatch/internal/target"
	"github.com/hupe1980/examplewatch/internal/watch"
)

// runSupervisor wires the collaborators together and blocks until the
// operator quits or a SIGINT/SIGTERM arrives.
func runSupervisor(ctx context.Context, cmd *cobra.Command, t target.Target) error {
	cfg := config.FromContext(ctx)
	logger := logging.ForTarget(ctx, t.String())

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()
	tty := isTerminal(stdout)

	printer := console.New(stdout, tty && !cfg.NoColor, tty && !cfg.NoColor)

	invoker := &build.Invoker{
		Root:           cfg.Root,
		BuildCmd:       cfg.BuildCmd,
		CleanNativeCmd: cfg.CleanNativeCmd,
		CleanAllCmd:    cfg.CleanAllCmd,
		Stdout:         stdout,
		Stderr:         stderr,
		Logger:         logger,
	}

	manager := process.NewManager(process.Options{
		Target:     t,
		Binary:     cfg.Resolve(build.Expand([]string{cfg.Binary}, t)[0]),
		Dir:        cfg.Root,
		InheritEnv: cfg.InheritEnv,
		Stdout:     stdout,
		Stderr:     stderr,
		Logger:     logger,
	})

	sup := supervisor.New(supervisor.Options{
		Target:     t,
		Builder:    invoker,
		Runner:     manager,
		Printer:    printer,
		Logger:     logger,
		BaseEnv:    cfg.Env,
		LoggingEnv: cfg.LoggingEnv,
	})

	printer.Clear()

	watcher, err := watch.New(watch.Options{
		Dirs:     resolveAll(cfg, cfg.WatchDirs),
		Files:    resolveAll(cfg, cfg.WatchFiles),
		Debounce: cfg.Debounce,
		Logger:   logger,
	}, sup.NotifyChange)
	if err != nil {
		return &ExitError{Code: 1, Err: err}
	}
	defer watcher.Close()

	printer.Status("👀", "Watching the tree")

	keyboard, err := keys.NewReader(cmd.InOrStdin())
	if err != nil {
		return &ExitError{Code: 1, Err: fmt.Errorf("reading the keyboard: %w", err)}
	}
	defer keyboard.Close()

	if err := sup.Run(ctx, keyboard.Keys()); err != nil {
		return &ExitError{Code: 1, Err: err}
	}

	return nil
}

func resolveAll(cfg *config.Config, paths []string) []string {
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		out = append(out, cfg.Resolve(p))
	}

	return out
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)

	return ok && term.IsTerminal(int(f.Fd()))
}
