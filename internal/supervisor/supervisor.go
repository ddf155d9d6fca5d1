package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/hupe1980/examplewatch/internal/build"
	"github.com/hupe1980/examplewatch/internal/console"
	"github.com/hupe1980/examplewatch/internal/keys"
	"github.com/hupe1980/examplewatch/internal/logging"
	"github.com/hupe1980/examplewatch/internal/process"
	"github.com/hupe1980/examplewatch/internal/target"
)

// shutdownTimeout bounds how long quitting waits for the child to be reaped.
const shutdownTimeout = 5 * time.Second

// Builder runs the external build tool.
type Builder interface {
	Build(ctx context.Context, t target.Target) error
	Clean(ctx context.Context, step build.Step, t target.Target) error
}

// Runner owns the child-process slot. *process.Manager implements it.
type Runner interface {
	State() process.State
	Binary() string
	Start(env map[string]string) error
	Terminate() error
	AwaitExit(ctx context.Context) error
	Done() <-chan process.Exit
	Observe(ex process.Exit) process.Outcome
	LastExit() process.Exit
	SendLine(text string) bool
}

// Options wires the supervisor's collaborators.
type Options struct {
	Target  target.Target
	Builder Builder
	Runner  Runner
	Printer *console.Printer
	Logger  *slog.Logger

	// BaseEnv is passed to every launch.
	BaseEnv map[string]string

	// LoggingEnv is layered over BaseEnv after the operator asks for a
	// restart with logging.
	LoggingEnv map[string]string
}

// Supervisor owns the run state shared by all event handlers.
type Supervisor struct {
	opts    Options
	out     *console.Printer
	logger  *slog.Logger
	changes chan string

	keptClosed bool
	logging    bool
	pending    string
}

// New creates a Supervisor. Call Run to start it.
func New(opts Options) *Supervisor {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	out := opts.Printer
	if out == nil {
		out = console.New(os.Stdout, false, false)
	}

	return &Supervisor{
		opts:    opts,
		out:     out,
		logger:  logger,
		changes: make(chan string, 1),
	}
}

// NotifyChange queues a file change for the event loop. It never blocks: a
// change arriving while another is still queued is folded into it, since one
// rebuild covers both.
func (s *Supervisor) NotifyChange(path string) {
	select {
	case s.changes <- path:
	default:
		s.logger.Debug("change already queued", slog.String("path", path))
	}
}

// KeptClosed reports whether launches are suspended.
func (s *Supervisor) KeptClosed() bool { return s.keptClosed }

// Run builds and launches the example, then handles events until the
// operator quits or ctx is cancelled. It returns nil on a graceful quit and
// an error only when process control failed.
func (s *Supervisor) Run(ctx context.Context, keystrokes <-chan byte) error {
	if err := s.cycle(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return s.shutdown()

		case path := <-s.changes:
			s.out.Clear()
			s.out.Status("🙈", "File change detected %s", path)

			if err := s.cycle(ctx); err != nil {
				return err
			}

		case b, ok := <-keystrokes:
			if !ok {
				// Input ended; keep serving file changes until cancelled.
				keystrokes = nil
				continue
			}

			quit, err := s.handleKey(ctx, b)
			if err != nil {
				return err
			}

			if quit {
				return s.shutdown()
			}

		case ex := <-s.opts.Runner.Done():
			s.handleExit(ex)
		}
	}
}

// cycle terminates the current child, rebuilds, and launches on success.
func (s *Supervisor) cycle(ctx context.Context) error {
	if err := s.stop(); err != nil {
		return err
	}

	defer keys.Help(s.out.Writer())

	s.out.Status("🛠 ", "Building %s", s.opts.Target)

	if err := s.opts.Builder.Build(ctx, s.opts.Target); err != nil {
		s.logger.Debug("build failed", slog.String("error", err.Error()))
		s.out.Error("🛑", "Could not build %s", s.opts.Target)

		return nil
	}

	if s.keptClosed {
		s.out.Warn("🔒", "%s is kept closed, press r or l to launch it", s.opts.Target)
		return nil
	}

	if err := s.opts.Runner.AwaitExit(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}

		return err
	}

	return s.launch()
}

func (s *Supervisor) launch() error {
	var overrides map[string]string
	if s.logging {
		overrides = s.opts.LoggingEnv
	}

	env := process.MergeEnv(s.opts.BaseEnv, overrides)

	if s.opts.Runner.State() == process.StateStopped {
		s.out.Status("🚂", "Running %s again, the last run ended with %s", s.opts.Target, s.opts.Runner.LastExit())
	} else {
		s.out.Status("🚂", "Running %s", s.opts.Target)
	}

	if err := s.opts.Runner.Start(env); err != nil {
		if errors.Is(err, process.ErrAlreadyRunning) {
			return err
		}

		s.out.Error("🛑", "Could not launch %s: %v", s.opts.Target, err)

		return nil
	}

	if s.pending != "" {
		s.opts.Runner.SendLine(s.pending)
		s.pending = ""
	}

	return nil
}

// handleKey performs the action mapped to b and reports whether to quit.
func (s *Supervisor) handleKey(ctx context.Context, b byte) (bool, error) {
	action, ok := keys.Lookup(b)
	if !ok {
		return false, nil
	}

	s.logger.Debug("key pressed", slog.String("action", action.Kind.String()))

	switch action.Kind {
	case keys.CleanNative:
		s.out.Clear()
		s.out.Status("🧹", "Cleaning all of the native files.")
		s.clean(ctx, build.StepCleanNative, "Could not clean the native files")

		return false, s.cycle(ctx)

	case keys.CleanAll:
		s.out.Clear()
		s.out.Status("🧹", "It's time for a fresh start")
		s.clean(ctx, build.StepCleanAll, "Could not clean the files")

		return false, s.cycle(ctx)

	case keys.Restart:
		s.keptClosed = false
		s.logging = false
		s.out.Clear()

		return false, s.cycle(ctx)

	case keys.RestartLogging:
		s.keptClosed = false
		s.logging = true
		s.out.Clear()
		s.out.Status("📜", "Restarting %s with logging", s.opts.Target)

		return false, s.cycle(ctx)

	case keys.KeepClosed:
		if err := s.stop(); err != nil {
			return false, err
		}

		s.keptClosed = true
		s.out.Warn("🔒", "Keeping %s closed, press r or l to launch it again", s.opts.Target)
		keys.Help(s.out.Writer())

		return false, nil

	case keys.Trace:
		s.trace(string(action.Digit))
		return false, nil

	case keys.Quit:
		return true, nil
	}

	return false, nil
}

func (s *Supervisor) clean(ctx context.Context, step build.Step, failure string) {
	s.out.Line("")

	if err := s.opts.Builder.Clean(ctx, step, s.opts.Target); err != nil {
		s.logger.Debug("clean failed", slog.String("step", string(step)), slog.String("error", err.Error()))
		s.out.Error("🛑", "%s. %s", failure, s.opts.Target)
	}
}

// trace forwards a digit to the running child, or holds it for the next
// launch.
func (s *Supervisor) trace(digit string) {
	if s.opts.Runner.State() == process.StateRunning && s.opts.Runner.SendLine(digit) {
		s.out.Status("🔍", "Tracing %s frame(s)", digit)
		return
	}

	s.pending = digit
	s.out.Status("🔍", "Tracing %s frame(s) on the next launch", digit)
}

func (s *Supervisor) handleExit(ex process.Exit) {
	if s.opts.Runner.Observe(ex) == process.OutcomeExpected {
		return
	}

	s.logger.Info("example exited", slog.String("target", s.opts.Target.String()), slog.String("exit", ex.String()))
	s.out.Error("💥", "%s exited unexpectedly (%s)", s.opts.Target, ex)
	s.out.Line("Press r to relaunch it, l to relaunch it with logging, or attach a debugger:")
	s.out.Line("  lldb %s", s.opts.Runner.Binary())
	keys.Help(s.out.Writer())
}

// stop terminates the child. A child that exited on its own before the kill
// landed is reported like any other unexpected exit.
func (s *Supervisor) stop() error {
	if err := s.opts.Runner.Terminate(); err != nil {
		return err
	}

	if s.opts.Runner.State() == process.StateRunning {
		s.handleExit(<-s.opts.Runner.Done())
	}

	return nil
}

// shutdown terminates the child and waits briefly for it to be reaped.
func (s *Supervisor) shutdown() error {
	s.out.Status("👋", "Closing %s", s.opts.Target)

	if err := s.stop(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.opts.Runner.AwaitExit(ctx); err != nil {
		return fmt.Errorf("waiting for %s to exit: %w", s.opts.Target, err)
	}

	return nil
}
