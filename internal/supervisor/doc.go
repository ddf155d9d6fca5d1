// Package supervisor drives the build-and-run cycle of one example.
//
// All event sources (cancellation, debounced file changes, keystrokes and
// child exits) are consumed by a single loop in Run, so handlers never run
// concurrently and the child slot needs no locking. Every trigger follows
// the same cycle: terminate the current child, build, and launch on success
// unless the operator asked to keep the example closed.
package supervisor
