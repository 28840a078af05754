package clieng

import (
	"bufio"
	"fmt"
	"io"

	"github.com/jiufeng-go/jiufeng/internal/clieng/term"
)

const moreCancelPrompt = "---Press ENTER to continue or CTRL-X to quit---"

// IO is the CLI engine's output sink: plain writes, paged ("more")
// output, and password-mode echo, per spec.md §4.4. Ported in spirit
// from original_source/clieng/engio.c, split from the line editor per
// Design Notes §9 ("keep them separate: the output sink counts lines
// and decides when to pause; the line editor knows nothing about
// paging").
type IO struct {
	w   io.Writer
	r   *bufio.Reader
	tty *term.Term // nil in script/pipe mode

	more      bool
	lineCount int
	canceled  bool

	passwordMode bool
}

// NewIO wraps w/r as the driver's output/input pair. tty is non-nil
// only when the underlying descriptor is a real terminal (raw mode is
// then active and Height()/Width() query the kernel); when it is nil,
// "more" paging uses the default terminal size and GetInputKey reads
// bytes from r.
func NewIO(w io.Writer, r io.Reader, tty *term.Term) *IO {
	return &IO{w: w, r: bufio.NewReader(r), tty: tty}
}

// SetMore enables or disables paged output. Disabling resets the line
// counter and the cancel flag, per spec.md §4.4.
func (o *IO) SetMore(on bool) {
	o.more = on
	if !on {
		o.lineCount = 0
		o.canceled = false
	}
}

// SetPasswordMode toggles echo-as-'*' for subsequent input. Per Design
// Notes §9's open question, this is documented as a precondition rather
// than enforced by inference: callers must disable "more" before
// enabling password mode.
func (o *IO) SetPasswordMode(on bool) {
	if on && o.more {
		panic("clieng: SetPasswordMode(true) while paged output is enabled")
	}
	o.passwordMode = on
}

// Output writes a formatted string with no trailing newline, subject to
// paging and cancellation exactly like OutputLine.
func (o *IO) Output(format string, args ...any) error {
	return o.write(fmt.Sprintf(format, args...), false)
}

// OutputLine writes a formatted string followed by a newline, pausing
// for a "more" prompt every (rows-2) lines when paging is enabled.
func (o *IO) OutputLine(format string, args ...any) error {
	return o.write(fmt.Sprintf(format, args...), true)
}

// OutputRaw writes line verbatim plus a newline, bypassing formatting
// but not paging.
func (o *IO) OutputRaw(line string) error {
	return o.write(line, true)
}

func (o *IO) write(s string, newline bool) error {
	if o.more && o.canceled {
		return nil
	}
	if newline {
		s += "\n"
	}
	if _, err := io.WriteString(o.w, s); err != nil {
		return err
	}
	if !o.more || !newline {
		return nil
	}

	o.lineCount++
	threshold := o.rows() - 2
	if threshold < 1 {
		threshold = 1
	}
	if o.lineCount < threshold {
		return nil
	}

	_, _ = io.WriteString(o.w, moreCancelPrompt)
	key, err := o.GetInputKey()
	_, _ = io.WriteString(o.w, "\n")
	if err != nil {
		return err
	}
	if key == 0x18 { // CTRL-X
		o.canceled = true
		return ErrMoreCanceled.New("write")
	}
	o.lineCount = 0
	return nil
}

func (o *IO) rows() int {
	if o.tty != nil {
		return o.tty.Height()
	}
	return 24
}

func (o *IO) cols() int {
	if o.tty != nil {
		return o.tty.Width()
	}
	return 80
}

// GetInputKey reads a single byte of input, blocking until available. It
// reads from the raw terminal directly when one is attached so it sees
// keystrokes the editor hasn't already consumed through a separate
// buffered reader over the same fd.
func (o *IO) GetInputKey() (byte, error) {
	if o.tty != nil {
		return o.tty.ReadByte()
	}
	return o.r.ReadByte()
}

// ClearScreen emits the ANSI clear-screen-and-home sequence.
func (o *IO) ClearScreen() error {
	_, err := io.WriteString(o.w, "\x1b[2J\x1b[H")
	return err
}

// echoPasswordByte writes '*' for a printable keystroke or erases one
// '*' on backspace/DEL, used by the driver while passwordMode is set.
func (o *IO) echoPasswordByte(b byte) {
	if !o.passwordMode {
		return
	}
	switch b {
	case 0x7f, 0x08:
		_, _ = io.WriteString(o.w, "\b \b")
	default:
		_, _ = io.WriteString(o.w, "*")
	}
}
