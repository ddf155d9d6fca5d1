// Package build runs the external build tool for an example. Output goes
// straight to the console; only the exit status is observed.
package build

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"

	"github.com/hupe1980/examplewatch/internal/logging"
	"github.com/hupe1980/examplewatch/internal/target"
)

// Placeholder is replaced by the target name in command templates.
const Placeholder = "{target}"

// Step identifies which build-tool invocation ran.
type Step string

// Build-tool invocations.
const (
	StepBuild       Step = "build"
	StepCleanNative Step = "clean-native"
	StepCleanAll    Step = "clean-all"
)

// BuildError reports a failed build-tool invocation. The tool's own console
// output is the diagnostic, so no further detail is carried.
type BuildError struct {
	Step   Step
	Target target.Target
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Step, e.Target, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// Invoker runs the configured build-tool commands in the project root.
type Invoker struct {
	// Root is the working directory for every command.
	Root string

	// BuildCmd, CleanNativeCmd and CleanAllCmd are argv templates;
	// Placeholder is substituted with the target name.
	BuildCmd       []string
	CleanNativeCmd []string
	CleanAllCmd    []string

	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// DefaultInvoker returns an Invoker driving make, as the example projects do.
func DefaultInvoker(root string) *Invoker {
	return &Invoker{
		Root:           root,
		BuildCmd:       []string{"make", "./bin/" + Placeholder},
		CleanNativeCmd: []string{"make", "clean-cpp"},
		CleanAllCmd:    []string{"make", "clean"},
		Stdout:         os.Stdout,
		Stderr:         os.Stderr,
		Logger:         slog.Default(),
	}
}

// Build compiles t. It blocks until the build tool exits.
func (i *Invoker) Build(ctx context.Context, t target.Target) error {
	return i.run(ctx, StepBuild, i.BuildCmd, t)
}

// Clean runs one of the clean steps for t.
func (i *Invoker) Clean(ctx context.Context, step Step, t target.Target) error {
	switch step {
	case StepCleanNative:
		return i.run(ctx, step, i.CleanNativeCmd, t)
	case StepCleanAll:
		return i.run(ctx, step, i.CleanAllCmd, t)
	default:
		return fmt.Errorf("unknown clean step %q", step)
	}
}

func (i *Invoker) run(ctx context.Context, step Step, tmpl []string, t target.Target) error {
	argv := Expand(tmpl, t)
	if len(argv) == 0 {
		return &BuildError{Step: step, Target: t, Err: errors.New("empty command")}
	}

	logger := i.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...) //nolint:gosec
	cmd.Dir = i.Root
	cmd.Stdout = writerOr(i.Stdout, os.Stdout)
	cmd.Stderr = writerOr(i.Stderr, os.Stderr)

	logger.Debug("running build tool",
		slog.String("step", string(step)),
		slog.String("command", strings.Join(argv, " ")),
		slog.String("dir", i.Root),
	)

	done := logging.Since(logger, "build tool finished", slog.String("step", string(step)))
	defer done()

	if err := cmd.Run(); err != nil {
		return &BuildError{Step: step, Target: t, Err: err}
	}

	return nil
}

// Expand substitutes the target name into an argv template.
func Expand(tmpl []string, t target.Target) []string {
	argv := make([]string, 0, len(tmpl))
	for _, arg := range tmpl {
		argv = append(argv, strings.ReplaceAll(arg, Placeholder, t.String()))
	}

	return argv
}

func writerOr(w, fallback io.Writer) io.Writer {
	if w == nil {
		return fallback
	}

	return w
}
