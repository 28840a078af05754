package clieng

// Outcome is what one of a Command's callbacks reports back to the
// dispatcher. Any value other than OutcomeOK short-circuits the
// set-default/parse/process chain, per spec.md §4.6 step 5.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeError
)

// Command is one registered name and its three callbacks, per spec.md
// §4.6's contract and §3's command-registry row. SetDefault resets
// per-invocation option state before Parse populates it from argv;
// Process does the actual work. Param is the opaque per-command pointer
// the original passes alongside a master context; here it's just a
// closed-over value on whatever the callbacks capture, so Param exists
// only as a place callers can stash it for introspection (Registry
// never reads it).
type Command struct {
	Name string

	SetDefault func(d *Driver) Outcome
	Parse      func(d *Driver, argv []string) Outcome
	Process    func(d *Driver, argv []string) Outcome

	Param any

	// Help is a one-line description shown by the help builtin.
	Help string
}

const maxCmdNameLen = 64

func noopSetDefault(*Driver) Outcome { return OutcomeOK }
