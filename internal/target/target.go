// Package target resolves and validates the name of the example that
// examplewatch builds and runs.
package target

import (
	"fmt"
	"regexp"
)

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Target names the example binary selected for build and run.
type Target string

// String returns the target name.
func (t Target) String() string { return string(t) }

// UsageError reports an invalid command line. It is fatal: the caller prints
// usage and exits with status 1.
type UsageError struct {
	Msg string
}

func (e *UsageError) Error() string { return e.Msg }

// Resolve validates the positional arguments and returns the single target.
func Resolve(args []string) (Target, error) {
	switch {
	case len(args) == 0:
		return "", &UsageError{Msg: "no example given to be built"}
	case len(args) > 1:
		return "", &UsageError{Msg: "only one argument may be given to this command"}
	}

	return Parse(args[0])
}

// Parse validates a single target name.
func Parse(name string) (Target, error) {
	if !namePattern.MatchString(name) {
		return "", &UsageError{
			Msg: fmt.Sprintf("examples should only be alphanumeric with dashes or underscores, got %q", name),
		}
	}

	return Target(name), nil
}
