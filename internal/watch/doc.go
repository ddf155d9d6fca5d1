// Package watch observes an example's sources and build description and
// reports each settled burst of filesystem changes exactly once. The initial
// scan that registers the watch set is a silent baseline.
package watch
