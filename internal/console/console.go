// Package console writes operator-facing status lines. Structured logs go
// through log/slog instead.
package console

import (
	"fmt"
	"io"
)

const (
	clearScreen = "\033[2J\033[3J\033[1;1H"
	red         = "\033[31m"
	yellow      = "\033[33m"
	reset       = "\033[0m"
)

// Printer formats status lines for the operator.
type Printer struct {
	w     io.Writer
	color bool
	clear bool
}

// New returns a Printer writing to w. Color enables ANSI colors; clear
// enables clearing the screen between cycles.
func New(w io.Writer, color, clear bool) *Printer {
	return &Printer{w: w, color: color, clear: clear}
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer { return p.w }

// Clear wipes the screen and scrollback.
func (p *Printer) Clear() {
	if p.clear {
		fmt.Fprint(p.w, clearScreen)
	}
}

// Status prints an informational line prefixed with icon.
func (p *Printer) Status(icon, format string, args ...any) {
	fmt.Fprintf(p.w, "%s %s\n", icon, fmt.Sprintf(format, args...))
}

// Warn prints a highlighted line.
func (p *Printer) Warn(icon, format string, args ...any) {
	p.colored(yellow, icon, format, args...)
}

// Error prints a failure line.
func (p *Printer) Error(icon, format string, args ...any) {
	p.colored(red, icon, format, args...)
}

// Line prints plain text.
func (p *Printer) Line(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *Printer) colored(code, icon, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	if p.color {
		msg = code + msg + reset
	}

	fmt.Fprintf(p.w, "%s %s\n", icon, msg)
}
