package keys

import (
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Reader delivers keystrokes one byte at a time. When the input is a
// terminal it is switched to unbuffered, no-echo mode until Close.
type Reader struct {
	in       io.Reader
	fd       int
	oldState *term.State
	keys     chan byte
	once     sync.Once
}

// NewReader starts reading keys from in.
func NewReader(in io.Reader) (*Reader, error) {
	r := &Reader{in: in, fd: -1, keys: make(chan byte, 16)}

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.fd = int(f.Fd())

		state, err := makeCbreak(r.fd)
		if err != nil {
			return nil, err
		}

		r.oldState = state
	}

	go r.read()

	return r, nil
}

// Keys returns the keystroke channel. It is closed when the input ends.
func (r *Reader) Keys() <-chan byte { return r.keys }

// Raw reports whether the terminal mode was changed.
func (r *Reader) Raw() bool { return r.oldState != nil }

// Close restores the terminal. The pending read is abandoned.
func (r *Reader) Close() error {
	var err error

	r.once.Do(func() {
		if r.oldState != nil {
			err = term.Restore(r.fd, r.oldState)
		}
	})

	return err
}

func (r *Reader) read() {
	defer close(r.keys)

	buf := make([]byte, 64)

	for {
		n, err := r.in.Read(buf)
		for _, b := range buf[:n] {
			r.keys <- b
		}

		// EOF or a closed terminal both end the key stream.
		if err != nil {
			return
		}
	}
}
