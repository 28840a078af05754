// Package editor is the line editor clieng's Driver feeds raw input
// bytes into: an edit buffer, a cursor position inside it, and the
// cursor-across-wraps escape-sequence arithmetic spec.md §4.4 describes.
//
// Grounded on original_source/clieng/clieditor.c's keystroke state
// machine (arrow/Home/End escape parsing, insert-shift-tail, the
// terminal-width-aware redraw math) reworked as a byte-at-a-time Feed
// method so clieng.Driver can own the actual I/O loop.
package editor

import (
	"fmt"
	"strings"

	"github.com/jiufeng-go/jiufeng/internal/jferr"
)

// ErrNonPrintable is returned by Feed when fed a control byte that isn't
// one of the recognized editing keys (Enter as CR or LF, Backspace/DEL,
// Tab, arrow/Home/End escape sequences).
var ErrNonPrintable = jferr.NewSentinel(jferr.ModuleClieng, 2, "non-printable input byte")

// Action classifies what a Feed call produced.
type Action int

const (
	// ActionNone: the byte was consumed with no visible effect yet (e.g.
	// the ESC of a still-incomplete escape sequence).
	ActionNone Action = iota
	// ActionRedraw: the buffer or cursor changed; Output holds the bytes
	// to write to the terminal to reflect it.
	ActionRedraw
	// ActionEnter: Enter was pressed; Line holds the finalized buffer.
	ActionEnter
	// ActionNavigateUp / ActionNavigateDown: Up/Down were pressed; the
	// driver should consult History and call SetLine with the result.
	ActionNavigateUp
	ActionNavigateDown
	// ActionIgnored: Tab — recognized but a no-op. CR and LF are both
	// Enter; a CR is never treated as stray and skipped.
	ActionIgnored
)

// Result is what Feed returns for one input byte.
type Result struct {
	Action Action
	Output []byte // terminal bytes to write (ActionRedraw only)
	Line   string // finalized line (ActionEnter only)
}

// escape parser states, for the small state machine recognizing
// ESC '[' <letter-or-digit-tilde> sequences.
type escState int

const (
	escNone escState = iota
	escSawEsc
	escSawBracket
	escSawDigit
)

// Editor holds one in-progress edit buffer plus enough terminal context
// (prompt length, width) to compute cursor-across-wraps redraws.
type Editor struct {
	promptLen int
	width     int

	buf    []byte
	cursor int // index into buf, 0..len(buf)

	esc      escState
	escDigit byte
}

// New constructs an Editor for a prompt of the given display length and
// a terminal of the given column width.
func New(promptLen, width int) *Editor {
	if width <= 0 {
		width = 80
	}
	return &Editor{promptLen: promptLen, width: width}
}

// SetWidth updates the terminal width, queried once per driver read loop
// per spec.md §4.4 ("queried once per call on POSIX").
func (e *Editor) SetWidth(w int) {
	if w > 0 {
		e.width = w
	}
}

// Reset clears the buffer and cursor for a fresh line.
func (e *Editor) Reset() {
	e.buf = e.buf[:0]
	e.cursor = 0
	e.esc = escNone
}

// SetLine replaces the buffer with s and places the cursor at its end,
// used by Driver after a history navigation.
func (e *Editor) SetLine(s string) []byte {
	from := e.cursor
	e.buf = []byte(s)
	e.cursor = len(e.buf)
	return e.redrawFullLine(from)
}

// Line returns the buffer's current contents.
func (e *Editor) Line() string { return string(e.buf) }

// cell returns the 1-indexed screen cell a cursor at index i occupies:
// the prompt fills cells 1..promptLen, and buffer index i's character
// (or, at i==len(buf), the next empty slot the cursor is parked over,
// ready to receive the next typed byte) occupies cell promptLen+i+1.
// This is the same position original_source/clieng/engio.c's
// _right_arrow/_left_arrow calls operate on (there, "j+PromptLen+1" is
// this cell for the cursor's post-move index j+1): the wrap decision at
// a row boundary is cell-1 ≡ 0 (mod width), one past a row's last
// filled column, matching the arithmetic rowCol does below.
func (e *Editor) cell(i int) int { return e.promptLen + i + 1 }

// rowCol converts a 1-indexed cell to a 0-indexed row and 1-indexed
// column within that row, per spec.md §4.4's wrap arithmetic.
func (e *Editor) rowCol(cell int) (row, col int) {
	row = (cell - 1) / e.width
	col = (cell-1)%e.width + 1
	return
}

// moveSeq emits the compound escape sequence to move the visual cursor
// from index `from` to index `to`: up/down rows as needed, then a
// carriage return and a forward jump to the target column.
func (e *Editor) moveSeq(from, to int) []byte {
	fromRow, _ := e.rowCol(e.cell(from))
	toRow, toCol := e.rowCol(e.cell(to))

	var b strings.Builder
	switch {
	case toRow < fromRow:
		fmt.Fprintf(&b, "\x1b[%dA", fromRow-toRow)
	case toRow > fromRow:
		fmt.Fprintf(&b, "\x1b[%dB", toRow-fromRow)
	}
	b.WriteByte('\r')
	if toCol > 1 {
		fmt.Fprintf(&b, "\x1b[%dC", toCol-1)
	}
	return []byte(b.String())
}

// redrawFullLine emits: move to column 1 of the prompt's row, redraw the
// whole buffer, clear to end of screen, then move the cursor back to its
// logical position. Used whenever the buffer's tail shifts (insert,
// backspace) or the whole line is replaced (history navigation).
func (e *Editor) redrawFullLine(fromCursor int) []byte {
	var b strings.Builder
	b.Write(e.moveSeq(fromCursor, 0))
	b.Write(e.buf)
	b.WriteString("\x1b[0J")
	b.Write(e.moveSeq(len(e.buf), e.cursor))
	return []byte(b.String())
}

func printable(b byte) bool { return b >= 0x20 && b < 0x7f }

// Feed processes one input byte and returns the resulting Action.
func (e *Editor) Feed(b byte) (Result, error) {
	if e.esc != escNone {
		return e.feedEscape(b)
	}

	switch b {
	case '\r', '\n':
		return Result{Action: ActionEnter, Line: string(e.buf)}, nil
	case '\t':
		return Result{Action: ActionIgnored}, nil
	case 0x7f, 0x08: // DEL, Backspace
		return e.backspace(), nil
	case 0x1b: // ESC — start of a possible arrow/Home/End sequence
		e.esc = escSawEsc
		return Result{Action: ActionNone}, nil
	}

	if !printable(b) {
		return Result{}, ErrNonPrintable.New("Feed")
	}
	return e.insert(b), nil
}

func (e *Editor) insert(b byte) Result {
	from := e.cursor
	e.buf = append(e.buf, 0)
	copy(e.buf[e.cursor+1:], e.buf[e.cursor:])
	e.buf[e.cursor] = b
	e.cursor++
	return Result{Action: ActionRedraw, Output: e.redrawFullLine(from)}
}

func (e *Editor) backspace() Result {
	if e.cursor == 0 {
		return Result{Action: ActionRedraw, Output: nil}
	}
	from := e.cursor
	copy(e.buf[e.cursor-1:], e.buf[e.cursor:])
	e.buf = e.buf[:len(e.buf)-1]
	e.cursor--
	return Result{Action: ActionRedraw, Output: e.redrawFullLine(from)}
}

func (e *Editor) moveLeft() Result {
	if e.cursor == 0 {
		return Result{Action: ActionRedraw}
	}
	from := e.cursor
	e.cursor--
	return Result{Action: ActionRedraw, Output: e.moveSeq(from, e.cursor)}
}

func (e *Editor) moveRight() Result {
	if e.cursor >= len(e.buf) {
		return Result{Action: ActionRedraw}
	}
	from := e.cursor
	e.cursor++
	return Result{Action: ActionRedraw, Output: e.moveSeq(from, e.cursor)}
}

func (e *Editor) moveHome() Result {
	from := e.cursor
	e.cursor = 0
	return Result{Action: ActionRedraw, Output: e.moveSeq(from, e.cursor)}
}

func (e *Editor) moveEnd() Result {
	from := e.cursor
	e.cursor = len(e.buf)
	return Result{Action: ActionRedraw, Output: e.moveSeq(from, e.cursor)}
}

// feedEscape advances the ESC '[' <final> state machine. Recognizes:
// ESC [ A/B/C/D (up/down/right/left), ESC [ H / ESC [ F (home/end),
// ESC [ 1 ~ / ESC [ 4 ~ (home/end, the "multi-keyboard variant" spec.md
// §4.4 mentions), and O-prefixed application-mode variants (ESC O H/F).
func (e *Editor) feedEscape(b byte) (Result, error) {
	switch e.esc {
	case escSawEsc:
		switch b {
		case '[', 'O':
			e.esc = escSawBracket
			return Result{Action: ActionNone}, nil
		default:
			e.esc = escNone
			return Result{Action: ActionIgnored}, nil
		}
	case escSawBracket:
		switch b {
		case 'A':
			e.esc = escNone
			return Result{Action: ActionNavigateUp}, nil
		case 'B':
			e.esc = escNone
			return Result{Action: ActionNavigateDown}, nil
		case 'C':
			e.esc = escNone
			return e.moveRight(), nil
		case 'D':
			e.esc = escNone
			return e.moveLeft(), nil
		case 'H':
			e.esc = escNone
			return e.moveHome(), nil
		case 'F':
			e.esc = escNone
			return e.moveEnd(), nil
		case '1', '4', '7', '8':
			e.escDigit = b
			e.esc = escSawDigit
			return Result{Action: ActionNone}, nil
		default:
			e.esc = escNone
			return Result{Action: ActionIgnored}, nil
		}
	case escSawDigit:
		e.esc = escNone
		if b != '~' {
			return Result{Action: ActionIgnored}, nil
		}
		switch e.escDigit {
		case '1', '7':
			return e.moveHome(), nil
		case '4', '8':
			return e.moveEnd(), nil
		}
		return Result{Action: ActionIgnored}, nil
	}
	e.esc = escNone
	return Result{Action: ActionIgnored}, nil
}
