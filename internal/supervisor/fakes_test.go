package supervisor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hupe1980/examplewatch/internal/build"
	"github.com/hupe1980/examplewatch/internal/process"
	"github.com/hupe1980/examplewatch/internal/target"
)

// fakeBuilder records build-tool invocations.
type fakeBuilder struct {
	mu       sync.Mutex
	builds   int
	cleans   []build.Step
	buildErr error
	cleanErr error
}

func (b *fakeBuilder) Build(_ context.Context, t target.Target) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.builds++

	if b.buildErr != nil {
		return &build.BuildError{Step: build.StepBuild, Target: t, Err: b.buildErr}
	}

	return nil
}

func (b *fakeBuilder) Clean(_ context.Context, step build.Step, t target.Target) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.cleans = append(b.cleans, step)

	if b.cleanErr != nil {
		return &build.BuildError{Step: step, Target: t, Err: b.cleanErr}
	}

	return nil
}

func (b *fakeBuilder) setBuildErr(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.buildErr = err
}

func (b *fakeBuilder) buildCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.builds
}

func (b *fakeBuilder) cleanSteps() []build.Step {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]build.Step(nil), b.cleans...)
}

// fakeRunner mimics process.Manager without spawning anything. A kill
// delivers the exit immediately, as a real SIGKILL would shortly after.
type fakeRunner struct {
	mu      sync.Mutex
	state   process.State
	done    chan process.Exit
	live    int
	maxLive int
	envs    []map[string]string
	lines   []string
	kills   int
	killErr error
	exited  bool
	last    process.Exit
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{state: process.StateNoProcess}
}

func (r *fakeRunner) State() process.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.state
}

func (r *fakeRunner) Binary() string { return "/project/bin/bunny" }

func (r *fakeRunner) Start(env map[string]string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == process.StateRunning || r.state == process.StateTerminating {
		return fmt.Errorf("starting bunny: %w", process.ErrAlreadyRunning)
	}

	r.state = process.StateRunning
	r.exited = false
	r.done = make(chan process.Exit, 1)
	r.envs = append(r.envs, env)
	r.live++

	if r.live > r.maxLive {
		r.maxLive = r.live
	}

	return nil
}

func (r *fakeRunner) Terminate() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != process.StateRunning {
		return nil
	}

	if r.killErr != nil {
		return &process.TerminationFailure{Target: "bunny", Err: r.killErr}
	}

	// Already reaped; the exit waits on done.
	if r.exited {
		return nil
	}

	r.kills++
	r.live--
	r.state = process.StateTerminating
	r.done <- process.Exit{Code: -1, Signal: "killed"}

	return nil
}

// crash makes the running child exit on its own.
func (r *fakeRunner) crash(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.live--
	r.exited = true
	r.done <- process.Exit{Code: code}
}

func (r *fakeRunner) AwaitExit(ctx context.Context) error {
	r.mu.Lock()
	if r.state != process.StateTerminating {
		r.mu.Unlock()
		return nil
	}

	done := r.done
	r.mu.Unlock()

	select {
	case ex := <-done:
		r.Observe(ex)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *fakeRunner) Done() <-chan process.Exit {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != process.StateRunning && r.state != process.StateTerminating {
		return nil
	}

	return r.done
}

func (r *fakeRunner) LastExit() process.Exit {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.last
}

func (r *fakeRunner) Observe(ex process.Exit) process.Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case process.StateTerminating:
		r.state = process.StateNoProcess
		return process.OutcomeExpected
	case process.StateRunning:
		r.state = process.StateStopped
		r.last = ex

		return process.OutcomeUnexpected
	default:
		return process.OutcomeExpected
	}
}

func (r *fakeRunner) SendLine(text string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != process.StateRunning {
		return false
	}

	r.lines = append(r.lines, text+"\n")

	return true
}

func (r *fakeRunner) setKillErr(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.killErr = err
}

func (r *fakeRunner) starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.envs)
}

func (r *fakeRunner) lastEnv() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.envs) == 0 {
		return nil
	}

	return r.envs[len(r.envs)-1]
}

func (r *fakeRunner) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.lines...)
}

func (r *fakeRunner) killCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.kills
}

func (r *fakeRunner) peakLive() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.maxLive
}

// syncBuffer is a bytes.Buffer safe for the loop goroutine and the test.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

var errBuildBroken = errors.New("exit status 2")
