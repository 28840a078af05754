package clieng

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/jiufeng-go/jiufeng/internal/clieng/editor"
	"github.com/jiufeng-go/jiufeng/internal/clieng/term"
	"github.com/jiufeng-go/jiufeng/internal/jferr"
	"github.com/jiufeng-go/jiufeng/internal/logging"
)

const (
	defaultHistoryCapacity = 64
	defaultMaxLine         = 4096
)

// Params configures Driver.Init per spec.md §4.7's lifecycle contract.
type Params struct {
	Prompt string

	Greeting func(d *Driver) error
	PreEnter func(d *Driver) error
	PostExit func(d *Driver) error

	// Script, if non-empty, puts the driver in script mode: it dispatches
	// this canned input once (one command per line) and returns, per
	// spec.md §4.7 "if script mode, dispatches the canned input once and
	// returns."
	Script string

	// Reader/Writer default to stdin/stdout. Supplying both lets tests
	// drive the engine without a real terminal.
	Reader io.Reader
	Writer io.Writer

	Logger *logging.Logger
}

// Driver owns one CLI engine instance end to end: I/O, history, the
// command registry, and the input->parse->dispatch loop, per spec.md
// §4.7 and Design Notes §9 ("model as an owned singleton acquired at
// init and released at fini"). Unlike jiukun's package-level singleton,
// nothing prevents constructing more than one Driver in-process — only
// the original's global signal-handler/TTY-mode state is process-wide,
// and each Driver here owns its own *term.Term, so two Drivers over two
// different descriptors coexist safely.
type Driver struct {
	prompt   string
	greeting func(d *Driver) error
	preEnter func(d *Driver) error
	postExit func(d *Driver) error
	script   string

	registry *Registry
	history  *History
	io       *IO
	editor   *editor.Editor
	tty      *term.Term // nil in script/pipe mode

	log *logging.Logger

	terminate bool
}

// Init wires the prompt, greeting/pre/post callbacks, history, I/O, and
// parser, per spec.md §4.7. It does not call Run.
func Init(p Params) (*Driver, error) {
	reader := p.Reader
	if reader == nil {
		reader = os.Stdin
	}
	writer := p.Writer
	if writer == nil {
		writer = os.Stdout
	}
	log := p.Logger
	if log == nil {
		log = logging.Default()
	}

	d := &Driver{
		prompt:   p.Prompt,
		greeting: p.Greeting,
		preEnter: p.PreEnter,
		postExit: p.PostExit,
		script:   p.Script,
		registry: NewRegistry(),
		history:  NewHistory(defaultHistoryCapacity, defaultMaxLine),
		log:      log,
	}

	var tty *term.Term
	if f, ok := reader.(*os.File); ok && p.Script == "" && isatty.IsTerminal(f.Fd()) {
		var err error
		tty, err = term.Open(int(f.Fd()))
		if err != nil {
			return nil, jferr.Wrap("Init", ErrInvalidOption.Code(), err)
		}
	}
	d.tty = tty
	d.io = NewIO(writer, reader, tty)
	d.editor = editor.New(len(p.Prompt), d.io.cols())

	log.Info("clieng driver initialized", "prompt", p.Prompt, "raw_mode", tty != nil)
	return d, nil
}

// Registry exposes the driver's command registry for RegisterBuiltins
// and caller-specific command registration.
func (d *Driver) Registry() *Registry { return d.registry }

// History exposes the driver's command history.
func (d *Driver) History() *History { return d.history }

// IO exposes the driver's output/paging/password sink.
func (d *Driver) IO() *IO { return d.io }

// Stop sets the terminate flag; the loop exits at the next iteration
// boundary without aborting a command mid-dispatch, per spec.md §4.7.
func (d *Driver) Stop() { d.terminate = true }

// Run invokes greeting then pre-enter; in script mode it dispatches the
// canned input (one command per line) once and returns; otherwise it
// loops prompt/read/dispatch until Stop is called or input ends. It
// finally invokes post-exit and tears down the terminal, even on error
// paths, per spec.md §4.7.
func (d *Driver) Run() error {
	defer d.teardown()

	if d.greeting != nil {
		if err := d.greeting(d); err != nil {
			return err
		}
	}
	if d.preEnter != nil {
		if err := d.preEnter(d); err != nil {
			return err
		}
	}

	var runErr error
	if d.script != "" {
		runErr = d.runScript()
	} else {
		runErr = d.runInteractive()
	}

	if d.postExit != nil {
		if err := d.postExit(d); err != nil && runErr == nil {
			runErr = err
		}
	}
	return runErr
}

func (d *Driver) runScript() error {
	scanner := bufioScanLines(d.script)
	for scanner.Scan() {
		if d.terminate {
			return nil
		}
		d.dispatchLine(scanner.Text())
	}
	return nil
}

func (d *Driver) runInteractive() error {
	for !d.terminate {
		d.io.Output("%s", d.prompt)
		line, nav, err := d.readLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		if nav {
			continue
		}
		d.io.Output("\n")
		d.dispatchLine(line)
	}
	return nil
}

// readLine feeds bytes through the editor until Enter. Up/Down replace
// the edit buffer with the previous/next history entry (SetLine redraws
// it) and reading goes on with that buffer.
func (d *Driver) readLine() (line string, navigated bool, err error) {
	d.editor.SetWidth(d.io.cols())
	d.editor.Reset()

	for {
		b, rerr := d.io.GetInputKey()
		if rerr != nil {
			return "", false, rerr
		}

		res, ferr := d.editor.Feed(b)
		if ferr != nil {
			continue // non-printable control byte; ignored rather than fatal
		}

		d.io.echoPasswordByte(b)

		switch res.Action {
		case editor.ActionEnter:
			return res.Line, false, nil
		case editor.ActionNavigateUp:
			out := d.editor.SetLine(d.history.Prev())
			_, _ = d.io.w.Write(out)
		case editor.ActionNavigateDown:
			out := d.editor.SetLine(d.history.Next())
			_, _ = d.io.w.Write(out)
		case editor.ActionRedraw:
			if !d.io.passwordMode {
				_, _ = d.io.w.Write(res.Output)
			}
		}
	}
}

// dispatchLine appends line to history (unless blank/comment) and runs
// it through the registry, printing any error per spec.md §7's
// propagation policy ("silent outcomes are not printed").
func (d *Driver) dispatchLine(line string) {
	trimmed := strings.TrimSpace(line)
	result := d.registry.Dispatch(d, line)

	switch result.Kind {
	case ParseBlank, ParseComment:
		return
	}
	if trimmed != "" {
		d.history.Append(trimmed)
	}
	if result.Err != nil {
		d.io.OutputLine("error: %s", result.Err)
		return
	}
	if result.Outcome != OutcomeOK {
		d.io.OutputLine("command failed")
	}
}

// teardown restores the terminal to its original mode, even on an error
// path out of Run, per spec.md §4.7's signals note.
func (d *Driver) teardown() {
	if d.tty != nil {
		if err := d.tty.Restore(); err != nil {
			d.log.Warn("failed to restore terminal mode", "error", err)
		}
	}
}

func bufioScanLines(script string) *bufio.Scanner {
	return bufio.NewScanner(strings.NewReader(script))
}
