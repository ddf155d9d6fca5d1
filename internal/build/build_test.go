package build

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/examplewatch/internal/target"
)

func requireShell(t *testing.T) {
	t.Helper()

	if runtime.GOOS == "windows" {
		t.Skip("build tool tests use sh")
	}

	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func newTestInvoker(t *testing.T, out *bytes.Buffer) *Invoker {
	t.Helper()

	inv := DefaultInvoker(t.TempDir())
	inv.Stdout = out
	inv.Stderr = out

	return inv
}

func TestExpand(t *testing.T) {
	got := Expand([]string{"make", "./bin/{target}", "NAME={target}-dbg"}, "bunny")
	assert.Equal(t, []string{"make", "./bin/bunny", "NAME=bunny-dbg"}, got)
}

func TestExpand_Empty(t *testing.T) {
	assert.Empty(t, Expand(nil, "bunny"))
}

func TestBuild_Success(t *testing.T) {
	requireShell(t)

	var out bytes.Buffer
	inv := newTestInvoker(t, &out)
	inv.BuildCmd = []string{"sh", "-c", "echo building $0; touch built-$0", Placeholder}

	require.NoError(t, inv.Build(context.Background(), "bunny"))
	assert.Contains(t, out.String(), "building bunny")

	_, err := os.Stat(filepath.Join(inv.Root, "built-bunny"))
	assert.NoError(t, err, "command should run in the project root")
}

func TestBuild_Failure(t *testing.T) {
	requireShell(t)

	var out bytes.Buffer
	inv := newTestInvoker(t, &out)
	inv.BuildCmd = []string{"sh", "-c", "echo broken >&2; exit 3"}

	err := inv.Build(context.Background(), "bunny")
	require.Error(t, err)

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, StepBuild, buildErr.Step)
	assert.Equal(t, target.Target("bunny"), buildErr.Target)
	assert.Contains(t, out.String(), "broken")

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 3, exitErr.ExitCode())
}

func TestBuild_EmptyCommand(t *testing.T) {
	var out bytes.Buffer
	inv := newTestInvoker(t, &out)
	inv.BuildCmd = nil

	var buildErr *BuildError
	require.ErrorAs(t, inv.Build(context.Background(), "bunny"), &buildErr)
}

func TestClean_Steps(t *testing.T) {
	requireShell(t)

	var out bytes.Buffer
	inv := newTestInvoker(t, &out)
	inv.CleanNativeCmd = []string{"sh", "-c", "echo native"}
	inv.CleanAllCmd = []string{"sh", "-c", "echo everything"}

	require.NoError(t, inv.Clean(context.Background(), StepCleanNative, "bunny"))
	require.NoError(t, inv.Clean(context.Background(), StepCleanAll, "bunny"))
	assert.Contains(t, out.String(), "native")
	assert.Contains(t, out.String(), "everything")
}

func TestClean_UnknownStep(t *testing.T) {
	var out bytes.Buffer
	inv := newTestInvoker(t, &out)

	assert.ErrorContains(t, inv.Clean(context.Background(), StepBuild, "bunny"), "unknown clean step")
}
