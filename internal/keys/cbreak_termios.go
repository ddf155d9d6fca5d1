//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package keys

import (
	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// makeCbreak turns off line buffering, echo and signal generation but keeps
// output processing, so child output still renders newlines correctly.
func makeCbreak(fd int) (*term.State, error) {
	old, err := term.GetState(fd)
	if err != nil {
		return nil, err
	}

	t, err := unix.IoctlGetTermios(fd, ioctlReadTermios)
	if err != nil {
		return nil, err
	}

	t.Iflag &^= unix.BRKINT | unix.ICRNL | unix.INPCK | unix.ISTRIP | unix.IXON
	t.Lflag &^= unix.ECHO | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag |= unix.CS8
	t.Cc[unix.VMIN] = 1
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(fd, ioctlWriteTermios, t); err != nil {
		return nil, err
	}

	return old, nil
}
