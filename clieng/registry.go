package clieng

import "strings"

// Registry is the name->Command table the driver dispatches lines
// against, per spec.md §4.6. Accessed only from the driver thread
// (spec.md §5 "CLI history, registry, and I/O are accessed only from
// the driver thread"), so it carries no locking of its own.
type Registry struct {
	cmds  map[string]*Command
	order []string // registration order, for help listing
}

// NewRegistry builds an empty command registry.
func NewRegistry() *Registry {
	return &Registry{cmds: make(map[string]*Command)}
}

// Register adds cmd, rejecting a name collision or a name over
// maxCmdNameLen bytes.
func (r *Registry) Register(cmd *Command) error {
	if len(cmd.Name) == 0 || len(cmd.Name) > maxCmdNameLen {
		return ErrCmdNameTooLong.New("Register")
	}
	if _, exists := r.cmds[cmd.Name]; exists {
		return ErrCmdAlreadyExist.New("Register")
	}
	if cmd.SetDefault == nil {
		cmd.SetDefault = noopSetDefault
	}
	r.cmds[cmd.Name] = cmd
	r.order = append(r.order, cmd.Name)
	return nil
}

// Lookup returns the command named name, or nil if none is registered.
func (r *Registry) Lookup(name string) *Command {
	return r.cmds[name]
}

// Commands returns every registered command in registration order.
func (r *Registry) Commands() []*Command {
	out := make([]*Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.cmds[name])
	}
	return out
}

// ParseKind classifies what a parsed line turned out to be, per spec.md
// §4.6 step 1's "silent, non-error outcomes" plus the normal dispatch
// path.
type ParseKind int

const (
	ParseBlank ParseKind = iota
	ParseComment
	ParseDispatched
)

// ParseResult reports what Dispatch did with one line.
type ParseResult struct {
	Kind    ParseKind
	Argv    []string
	Paged   bool
	Outcome Outcome
	Err     error
}

const maxLineLen = 4096

// tokenize splits line on whitespace, honoring double-quoted groups
// whose surrounding quotes are stripped, per spec.md §4.6 step 2.
func tokenize(line string) []string {
	var tokens []string
	var cur strings.Builder
	inQuotes := false
	hasToken := false

	flush := func() {
		if hasToken {
			tokens = append(tokens, cur.String())
			cur.Reset()
			hasToken = false
		}
	}

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
			hasToken = true
		case !inQuotes && (r == ' ' || r == '\t'):
			flush()
		default:
			cur.WriteRune(r)
			hasToken = true
		}
	}
	flush()
	return tokens
}

// stripMoreTrailer drops a trailing "|" "more" or "|more" pair, per
// spec.md §4.6 step 3, reporting whether paging was requested.
func stripMoreTrailer(argv []string) ([]string, bool) {
	n := len(argv)
	if n == 0 {
		return argv, false
	}
	if argv[n-1] == "|more" {
		return argv[:n-1], true
	}
	if n >= 2 && argv[n-1] == "more" && argv[n-2] == "|" {
		return argv[:n-2], true
	}
	return argv, false
}

// Dispatch runs spec.md §4.6's full parse pipeline against one raw
// input line: trim, classify blank/comment, tokenize, strip a "| more"
// trailer, look up argv[0], and run the matched Command's
// SetDefault/Parse/Process chain, short-circuiting on the first
// non-OK outcome.
func (r *Registry) Dispatch(d *Driver, line string) ParseResult {
	trimmed := strings.TrimRight(strings.TrimLeft(line, " \t"), "\r\n")
	if len(trimmed) > maxLineLen {
		return ParseResult{Kind: ParseDispatched, Err: ErrCmdTooLong.New("Dispatch")}
	}
	if trimmed == "" {
		return ParseResult{Kind: ParseBlank}
	}
	if trimmed[0] == '#' {
		return ParseResult{Kind: ParseComment}
	}

	argv := tokenize(trimmed)
	argv, paged := stripMoreTrailer(argv)
	if len(argv) == 0 {
		return ParseResult{Kind: ParseBlank}
	}

	cmd := r.Lookup(argv[0])
	if cmd == nil {
		return ParseResult{Kind: ParseDispatched, Argv: argv, Paged: paged, Err: ErrInvalidCommand.New("Dispatch")}
	}

	if paged && d != nil {
		d.io.SetMore(true)
	}
	defer func() {
		if d != nil {
			d.io.SetMore(false)
		}
	}()

	outcome := cmd.SetDefault(d)
	if outcome == OutcomeOK {
		if cmd.Parse != nil {
			outcome = cmd.Parse(d, argv)
		}
	}
	if outcome == OutcomeOK && cmd.Process != nil {
		outcome = cmd.Process(d, argv)
	}

	return ParseResult{Kind: ParseDispatched, Argv: argv, Paged: paged, Outcome: outcome}
}
