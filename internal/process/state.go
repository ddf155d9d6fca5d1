package process

import (
	"errors"
	"fmt"

	"github.com/hupe1980/examplewatch/internal/target"
)

// State represents the lifecycle state of the child slot.
type State string

// Lifecycle states.
const (
	StateNoProcess   State = "no-process"  // Nothing spawned, ready to start
	StateRunning     State = "running"     // Child alive and owned
	StateTerminating State = "terminating" // Kill sent, exit not yet observed
	StateStopped     State = "stopped"     // Child exited on its own
)

// Outcome classifies an observed exit.
type Outcome int

const (
	// OutcomeExpected is the exit of a supervisor-initiated termination.
	OutcomeExpected Outcome = iota
	// OutcomeUnexpected is a child that exited on its own.
	OutcomeUnexpected
)

// ErrAlreadyRunning is returned by Start while a child is still owned.
var ErrAlreadyRunning = errors.New("a process is still running")

// TerminationFailure reports that the platform refused to kill the child.
// Process control is assumed reliable, so callers treat it as fatal.
type TerminationFailure struct {
	Target target.Target
	Err    error
}

func (e *TerminationFailure) Error() string {
	return fmt.Sprintf("unable to close the example %s: %v", e.Target, e.Err)
}

func (e *TerminationFailure) Unwrap() error { return e.Err }
