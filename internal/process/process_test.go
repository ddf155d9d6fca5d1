package process

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// The test binary doubles as the supervised example: the manager re-executes
// it with -test.run=TestHelperProcess and the helper acts per HELPER_MODE.
func TestHelperProcess(t *testing.T) {
	if os.Getenv("EXAMPLEWATCH_HELPER") != "1" {
		return
	}

	out := os.Getenv("HELPER_OUT")

	switch os.Getenv("HELPER_MODE") {
	case "echo":
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			appendLine(out, scanner.Text())
		}
	case "env":
		appendLine(out, strings.Join(os.Environ(), "\n"))
		time.Sleep(time.Minute)
	case "exit":
		os.Exit(3)
	default:
		time.Sleep(time.Minute)
	}

	os.Exit(0)
}

func appendLine(path, line string) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		os.Exit(2)
	}
	defer f.Close()

	_, _ = f.WriteString(line + "\n")
}

func helperEnv(mode, out string) map[string]string {
	return map[string]string{
		"EXAMPLEWATCH_HELPER": "1",
		"HELPER_MODE":         mode,
		"HELPER_OUT":          out,
	}
}

func newTestManager(t *testing.T) *Manager {
	t.Helper()

	exe, err := os.Executable()
	require.NoError(t, err)

	m := NewManager(Options{
		Target: "bunny",
		Binary: exe,
		Args:   []string{"-test.run=^TestHelperProcess$"},
		Dir:    t.TempDir(),
		Stdout: io.Discard,
		Stderr: io.Discard,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	t.Cleanup(func() {
		_ = m.Terminate()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.AwaitExit(ctx)
	})

	return m
}

func readFile(t *testing.T, path string) string {
	t.Helper()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ""
	}

	require.NoError(t, err)

	return string(data)
}

func waitExit(t *testing.T, m *Manager) Exit {
	t.Helper()

	select {
	case ex := <-m.Done():
		return ex
	case <-time.After(10 * time.Second):
		t.Fatal("timed out waiting for the child to exit")
		return Exit{}
	}
}

// ---------------------------------------------------------------------------
// State machine
// ---------------------------------------------------------------------------

func TestManager_InitialState(t *testing.T) {
	m := newTestManager(t)

	assert.Equal(t, StateNoProcess, m.State())
	assert.Nil(t, m.Done())
	assert.Zero(t, m.Pid())
}

func TestManager_StartAndTerminate(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Start(helperEnv("sleep", "")))
	assert.Equal(t, StateRunning, m.State())
	assert.NotZero(t, m.Pid())

	require.NoError(t, m.Terminate())
	assert.Equal(t, StateTerminating, m.State())

	require.NoError(t, m.AwaitExit(context.Background()))
	assert.Equal(t, StateNoProcess, m.State())
	assert.Nil(t, m.Done())
}

func TestManager_StartWhileOwnedFails(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Start(helperEnv("sleep", "")))

	err := m.Start(helperEnv("sleep", ""))
	require.ErrorIs(t, err, ErrAlreadyRunning)

	require.NoError(t, m.Terminate())

	err = m.Start(helperEnv("sleep", ""))
	require.ErrorIs(t, err, ErrAlreadyRunning, "start must wait for the terminating child")
}

func TestManager_RestartAfterTermination(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Start(helperEnv("sleep", "")))
	first := m.Pid()

	require.NoError(t, m.Terminate())
	require.NoError(t, m.AwaitExit(context.Background()))

	require.NoError(t, m.Start(helperEnv("sleep", "")))
	assert.NotEqual(t, first, m.Pid())
	assert.Equal(t, StateRunning, m.State())
}

func TestManager_TerminateWithoutProcess(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Terminate())
	assert.Equal(t, StateNoProcess, m.State())
	require.NoError(t, m.AwaitExit(context.Background()))
}

func TestManager_TerminateIsIdempotent(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Start(helperEnv("sleep", "")))
	require.NoError(t, m.Terminate())
	require.NoError(t, m.Terminate())
	assert.Equal(t, StateTerminating, m.State())
}

func TestManager_ExpectedExitIsSilent(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Start(helperEnv("sleep", "")))
	require.NoError(t, m.Terminate())

	ex := waitExit(t, m)
	assert.Equal(t, OutcomeExpected, m.Observe(ex))
	assert.Equal(t, StateNoProcess, m.State())

	if runtime.GOOS != "windows" {
		assert.Equal(t, "killed", ex.Signal)
	}
}

func TestManager_UnexpectedExitStops(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Start(helperEnv("exit", "")))

	ex := waitExit(t, m)
	assert.Equal(t, 3, ex.Code)
	assert.Empty(t, ex.Signal)
	assert.Equal(t, "exit code 3", ex.String())

	assert.Equal(t, OutcomeUnexpected, m.Observe(ex))
	assert.Equal(t, StateStopped, m.State())
	assert.Equal(t, ex, m.LastExit())
	assert.Nil(t, m.Done())

	// Stopped only leaves through an explicit start.
	require.NoError(t, m.Terminate())
	assert.Equal(t, StateStopped, m.State())

	require.NoError(t, m.Start(helperEnv("sleep", "")))
	assert.Equal(t, StateRunning, m.State())
}

func TestManager_TerminateAfterOwnExit(t *testing.T) {
	m := newTestManager(t)

	require.NoError(t, m.Start(helperEnv("exit", "")))

	// The exit is queued once the child has been reaped.
	require.Eventually(t, func() bool { return len(m.child.done) == 1 }, 10*time.Second, 10*time.Millisecond)

	require.NoError(t, m.Terminate())
	assert.Equal(t, StateRunning, m.State())

	ex := waitExit(t, m)
	assert.Equal(t, OutcomeUnexpected, m.Observe(ex))
	assert.Equal(t, StateStopped, m.State())
	assert.Equal(t, 3, m.LastExit().Code)
}

func TestManager_StartFailureKeepsState(t *testing.T) {
	m := NewManager(Options{
		Target: "bunny",
		Binary: filepath.Join(t.TempDir(), "bin", "missing"),
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})

	require.Error(t, m.Start(nil))
	assert.Equal(t, StateNoProcess, m.State())
}

// ---------------------------------------------------------------------------
// Input and environment
// ---------------------------------------------------------------------------

func TestManager_SendLine(t *testing.T) {
	m := newTestManager(t)
	out := filepath.Join(t.TempDir(), "stdin.txt")

	require.NoError(t, m.Start(helperEnv("echo", out)))
	assert.True(t, m.SendLine("5"))
	assert.True(t, m.SendLine("9"))

	require.Eventually(t, func() bool {
		return readFile(t, out) == "5\n9\n"
	}, 5*time.Second, 10*time.Millisecond)
}

func TestManager_SendLineDroppedWhenNotRunning(t *testing.T) {
	m := newTestManager(t)

	assert.False(t, m.SendLine("5"))

	require.NoError(t, m.Start(helperEnv("sleep", "")))
	require.NoError(t, m.Terminate())
	assert.False(t, m.SendLine("5"))
}

func TestManager_ChildEnvironment(t *testing.T) {
	m := newTestManager(t)
	out := filepath.Join(t.TempDir(), "env.txt")

	t.Setenv("EXAMPLEWATCH_PARENT_ONLY", "leak")

	env := MergeEnv(helperEnv("env", out), map[string]string{"MTL_SHADER_VALIDATION": "1"})
	require.NoError(t, m.Start(env))

	require.Eventually(t, func() bool {
		return strings.Contains(readFile(t, out), "HELPER_MODE=env")
	}, 5*time.Second, 10*time.Millisecond)

	got := readFile(t, out)
	assert.Contains(t, got, "MTL_SHADER_VALIDATION=1")
	assert.NotContains(t, got, "EXAMPLEWATCH_PARENT_ONLY")
}

func TestMergeEnv(t *testing.T) {
	base := map[string]string{"A": "1", "B": "2"}
	overrides := map[string]string{"B": "3", "C": "4"}

	merged := MergeEnv(base, overrides)
	assert.Equal(t, map[string]string{"A": "1", "B": "3", "C": "4"}, merged)

	// Inputs are untouched.
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, base)
	assert.Equal(t, map[string]string{"B": "3", "C": "4"}, overrides)
}

func TestEnviron(t *testing.T) {
	assert.Equal(t, []string{"A=1", "B=2"}, Environ(map[string]string{"B": "2", "A": "1"}, false))

	t.Setenv("EXAMPLEWATCH_INHERITED", "yes")

	inherited := Environ(map[string]string{"EXAMPLEWATCH_INHERITED": "override"}, true)
	assert.Contains(t, inherited, "EXAMPLEWATCH_INHERITED=override")
	assert.NotContains(t, inherited, "EXAMPLEWATCH_INHERITED=yes")
}

func TestTerminationFailure(t *testing.T) {
	err := &TerminationFailure{Target: "bunny", Err: errors.New("operation not permitted")}

	assert.Contains(t, err.Error(), "bunny")
	assert.ErrorContains(t, err, "operation not permitted")
}

func TestExitString(t *testing.T) {
	assert.Equal(t, "exit code 0", Exit{}.String())
	assert.Equal(t, "signal killed", Exit{Code: -1, Signal: "killed"}.String())
	assert.Contains(t, Exit{Err: errors.New("boom")}.String(), "boom")
}

func TestManager_Binary(t *testing.T) {
	m := NewManager(Options{Binary: "bin/bunny", Dir: "/project"})
	assert.Equal(t, filepath.Join("/project", "bin", "bunny"), m.Binary())

	abs := NewManager(Options{Binary: "/opt/bunny", Dir: "/project"})
	assert.Equal(t, "/opt/bunny", abs.Binary())
}
