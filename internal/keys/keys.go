// Package keys maps single keystrokes to supervisor actions and reads them
// from an unbuffered terminal.
package keys

import (
	"fmt"
	"io"
)

// Kind identifies a supervisor action.
type Kind int

// Supervisor actions.
const (
	CleanNative Kind = iota + 1
	CleanAll
	Restart
	RestartLogging
	KeepClosed
	Trace
	Quit
)

var kindNames = map[Kind]string{
	CleanNative:    "clean-native",
	CleanAll:       "clean-all",
	Restart:        "restart",
	RestartLogging: "restart-logging",
	KeepClosed:     "keep-closed",
	Trace:          "trace",
	Quit:           "quit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("kind(%d)", int(k))
}

// Action is the result of a keystroke lookup.
type Action struct {
	Kind Kind
	// Digit holds the pressed digit for Trace actions.
	Digit byte
}

// ctrlC arrives as a byte once the terminal no longer generates signals.
const ctrlC = 0x03

var table = map[byte]Kind{
	'c':   CleanNative,
	'a':   CleanAll,
	'r':   Restart,
	'l':   RestartLogging,
	'k':   KeepClosed,
	'q':   Quit,
	ctrlC: Quit,
}

// Lookup maps a key to its action. Unrecognized keys report false.
func Lookup(b byte) (Action, bool) {
	if b >= '0' && b <= '9' {
		return Action{Kind: Trace, Digit: b}, true
	}

	kind, ok := table[b]
	if !ok {
		return Action{}, false
	}

	return Action{Kind: kind}, true
}

// Help prints the keyboard shortcuts.
func Help(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "-------------------------")
	fmt.Fprintln(w, "| Keyboard shortcuts:   |")
	fmt.Fprintln(w, "-------------------------")
	fmt.Fprintln(w, "  c   - Clean the native files and rebuild")
	fmt.Fprintln(w, "  a   - Clean all the files and rebuild")
	fmt.Fprintln(w, "  r   - Restart the example")
	fmt.Fprintln(w, "  l   - Restart the example with logging")
	fmt.Fprintln(w, "  k   - Keep the example closed")
	fmt.Fprintln(w, "  0-9 - Trace that many frames")
	fmt.Fprintln(w, "  q   - Quit")
	fmt.Fprintln(w)
}
