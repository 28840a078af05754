// Package term wraps the raw terminal plumbing clieng needs: putting the
// controlling tty into raw mode, reading it byte at a time, and finding
// its current width for wrap arithmetic. Grounded on the teacher's own
// golang.org/x/sys/unix usage elsewhere in the module, generalized here
// to golang.org/x/term for MakeRaw/Restore, the library the rest of the
// retrieval pack's interactive tools (Aureuma-si/tools/si) reach for
// ahead of hand-rolled termios syscalls.
package term

import (
	"bufio"
	"os"

	"golang.org/x/sys/unix"
	xterm "golang.org/x/term"

	"github.com/jiufeng-go/jiufeng/internal/jferr"
)

// ErrNotATerminal is returned by Open when fd is not a terminal.
var ErrNotATerminal = jferr.NewSentinel(jferr.ModuleClieng, 1, "fd is not a terminal")

// defaultWidth is used when the controlling terminal's size can't be
// queried (piped stdout, no controlling tty), matching the 80-column
// fallback spec.md §4.4's wrap arithmetic assumes.
const defaultWidth = 80

// defaultHeight is the "more" pager's fallback row count under the same
// circumstances.
const defaultHeight = 24

// Term is one raw-mode terminal session over an open file descriptor.
type Term struct {
	fd     int
	state  *xterm.State
	file   *os.File
	reader *bufio.Reader
}

// Open puts fd into raw mode and returns a Term for reading/querying it.
// Callers must call Restore when done to return the terminal to its
// original mode.
func Open(fd int) (*Term, error) {
	if !xterm.IsTerminal(fd) {
		return nil, ErrNotATerminal.New("Open")
	}
	state, err := xterm.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	f := os.NewFile(uintptr(fd), "clieng-tty")
	return &Term{
		fd:     fd,
		state:  state,
		file:   f,
		reader: bufio.NewReader(f),
	}, nil
}

// Restore returns the terminal to the mode it was in before Open.
func (t *Term) Restore() error {
	return xterm.Restore(t.fd, t.state)
}

// ReadByte blocks for the next byte of input.
func (t *Term) ReadByte() (byte, error) {
	return t.reader.ReadByte()
}

// Width reports the terminal's current column count via TIOCGWINSZ,
// falling back to 80 if the ioctl fails (no controlling tty, e.g. under
// a test harness or a pipe).
func (t *Term) Width() int {
	ws, err := unix.IoctlGetWinsize(t.fd, unix.TIOCGWINSZ)
	if err != nil || ws.Col == 0 {
		return defaultWidth
	}
	return int(ws.Col)
}

// Height reports the terminal's current row count via TIOCGWINSZ, used
// by the "more" pager to decide when a page is full. Falls back to 24.
func (t *Term) Height() int {
	ws, err := unix.IoctlGetWinsize(t.fd, unix.TIOCGWINSZ)
	if err != nil || ws.Row == 0 {
		return defaultHeight
	}
	return int(ws.Row)
}

// Write sends bytes to the terminal.
func (t *Term) Write(p []byte) (int, error) {
	return t.file.Write(p)
}
