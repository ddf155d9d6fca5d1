package process

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
)

// Exit describes how a child terminated.
type Exit struct {
	// Code is the exit status, or -1 when the child was killed by a signal.
	Code int
	// Signal names the terminating signal, if any.
	Signal string
	// Err is set when waiting on the child failed for reasons other than a
	// non-zero status.
	Err error
}

func (e Exit) String() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("wait failed: %v", e.Err)
	case e.Signal != "":
		return fmt.Sprintf("signal %s", e.Signal)
	default:
		return fmt.Sprintf("exit code %d", e.Code)
	}
}

func exitFrom(ps *os.ProcessState, err error) Exit {
	ex := Exit{Code: -1}

	if ps != nil {
		ex.Code = ps.ExitCode()

		if ws, ok := ps.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			ex.Signal = ws.Signal().String()
		}
	}

	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		ex.Err = err
	}

	return ex
}
