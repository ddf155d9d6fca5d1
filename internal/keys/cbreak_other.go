//go:build !(linux || darwin || dragonfly || freebsd || netbsd || openbsd)

package keys

import "golang.org/x/term"

func makeCbreak(fd int) (*term.State, error) {
	return term.MakeRaw(fd)
}
