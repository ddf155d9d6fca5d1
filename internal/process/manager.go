package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/hupe1980/examplewatch/internal/logging"
	"github.com/hupe1980/examplewatch/internal/target"
)

// Options configures how the child is spawned.
type Options struct {
	// Target names the example.
	Target target.Target

	// Binary is the executable to run. Relative paths resolve against Dir.
	Binary string

	// Args are passed to the binary.
	Args []string

	// Dir is the working directory of the child.
	Dir string

	// InheritEnv layers the launch environment over the supervisor's own
	// environment instead of passing it alone.
	InheritEnv bool

	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

// child is one spawned binary.
type child struct {
	cmd       *exec.Cmd
	stdin     io.WriteCloser
	done      chan Exit
	startedAt time.Time
}

// Manager owns the single child-process slot.
type Manager struct {
	opts  Options
	state State
	child *child
	last  Exit
}

// NewManager creates a Manager with an empty slot.
func NewManager(opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}

	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	return &Manager{opts: opts, state: StateNoProcess}
}

// State returns the current lifecycle state.
func (m *Manager) State() State { return m.state }

// Binary returns the resolved path of the supervised executable.
func (m *Manager) Binary() string {
	if filepath.IsAbs(m.opts.Binary) || m.opts.Dir == "" {
		return m.opts.Binary
	}

	return filepath.Join(m.opts.Dir, m.opts.Binary)
}

// LastExit returns the exit observed when the slot last moved to Stopped.
func (m *Manager) LastExit() Exit { return m.last }

// Pid returns the process id of the owned child, or 0.
func (m *Manager) Pid() int {
	if m.child == nil || m.child.cmd.Process == nil {
		return 0
	}

	return m.child.cmd.Process.Pid
}

// Start spawns the binary with env as its environment. It is valid from
// NoProcess and, as an explicit restart, from Stopped.
func (m *Manager) Start(env map[string]string) error {
	if m.state == StateRunning || m.state == StateTerminating {
		return fmt.Errorf("starting %s: %w", m.opts.Target, ErrAlreadyRunning)
	}

	bin := m.Binary()

	cmd := exec.Command(bin, m.opts.Args...) //nolint:gosec
	cmd.Dir = m.opts.Dir
	cmd.Env = Environ(env, m.opts.InheritEnv)
	cmd.Stdout = m.opts.Stdout
	cmd.Stderr = m.opts.Stderr
	detach(cmd)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("creating stdin pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting %s: %w", bin, err)
	}

	c := &child{
		cmd:       cmd,
		stdin:     stdin,
		done:      make(chan Exit, 1),
		startedAt: time.Now(),
	}

	go func() {
		err := cmd.Wait()
		c.done <- exitFrom(cmd.ProcessState, err)
	}()

	m.child = c
	m.state = StateRunning

	m.opts.Logger.Debug("process started",
		slog.String("target", m.opts.Target.String()),
		slog.Int("pid", cmd.Process.Pid),
		slog.String("binary", bin),
	)

	return nil
}

// Terminate kills the running child and moves to Terminating. The exit is
// observed later through Done or AwaitExit. Without a running child it is a
// no-op. A child that already exited on its own stays Running until its exit
// is observed.
func (m *Manager) Terminate() error {
	if m.state != StateRunning {
		return nil
	}

	if err := m.child.cmd.Process.Kill(); err != nil {
		if errors.Is(err, os.ErrProcessDone) {
			// Already reaped: the exit is waiting on Done and is reported as
			// the child's own.
			m.opts.Logger.Debug("process exited before termination",
				slog.String("target", m.opts.Target.String()),
			)

			return nil
		}

		return &TerminationFailure{Target: m.opts.Target, Err: err}
	}

	m.state = StateTerminating

	m.opts.Logger.Debug("process terminating",
		slog.String("target", m.opts.Target.String()),
		slog.Int("pid", m.Pid()),
	)

	return nil
}

// AwaitExit blocks until a terminating child has exited and the slot is
// free again.
func (m *Manager) AwaitExit(ctx context.Context) error {
	if m.state != StateTerminating {
		return nil
	}

	select {
	case ex := <-m.child.done:
		m.Observe(ex)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Done delivers the exit of the owned child. It returns nil when the slot is
// empty, which blocks forever in a select.
func (m *Manager) Done() <-chan Exit {
	if m.child == nil {
		return nil
	}

	return m.child.done
}

// Observe settles the state after the owned child exited. A child that was
// being terminated is an expected exit; one that was running is not, and the
// slot moves to Stopped.
func (m *Manager) Observe(ex Exit) Outcome {
	switch m.state {
	case StateTerminating:
		m.child = nil
		m.state = StateNoProcess

		return OutcomeExpected

	case StateRunning:
		m.opts.Logger.Debug("process exited",
			slog.String("target", m.opts.Target.String()),
			slog.String("exit", ex.String()),
			slog.Duration("uptime", time.Since(m.child.startedAt)),
		)

		m.child = nil
		m.last = ex
		m.state = StateStopped

		return OutcomeUnexpected

	default:
		return OutcomeExpected
	}
}

// SendLine writes text and a newline to the child's stdin. It reports
// whether the line was delivered; outside Running it is silently dropped.
func (m *Manager) SendLine(text string) bool {
	if m.state != StateRunning {
		return false
	}

	if _, err := io.WriteString(m.child.stdin, text+"\n"); err != nil {
		m.opts.Logger.Debug("writing to process stdin failed", slog.String("error", err.Error()))
		return false
	}

	return true
}
