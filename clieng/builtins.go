package clieng

import (
	"fmt"

	"github.com/jiufeng-go/jiufeng/internal/logging"
)

// RegisterBuiltins registers the handful of commands every clieng-hosted
// program gets for free, ported from
// _examples/original_source/cli/clicmd.c's always-registered command
// set (help/exit/quit/verbose) per SPEC_FULL.md §5.1. This is a
// supplement beyond spec.md's explicit module list, not a replacement
// for it.
func RegisterBuiltins(r *Registry) error {
	cmds := []*Command{
		{
			Name: "help",
			Help: "list available commands",
			Process: func(d *Driver, argv []string) Outcome {
				cmds := r.Commands()
				if len(cmds) > 3 {
					d.io.SetMore(true)
					defer d.io.SetMore(false)
				}
				for _, c := range cmds {
					if c.Help != "" {
						d.io.OutputLine("%-16s %s", c.Name, c.Help)
					} else {
						d.io.OutputLine("%s", c.Name)
					}
				}
				return OutcomeOK
			},
		},
		{
			Name: "exit",
			Help: "exit the shell",
			Process: func(d *Driver, argv []string) Outcome {
				d.Stop()
				return OutcomeOK
			},
		},
		{
			Name: "quit",
			Help: "exit the shell",
			Process: func(d *Driver, argv []string) Outcome {
				d.Stop()
				return OutcomeOK
			},
		},
		{
			Name: "verbose",
			Help: "toggle verbose logging (verbose on|off)",
			Process: func(d *Driver, argv []string) Outcome {
				if len(argv) != 2 {
					d.io.OutputLine("usage: verbose on|off")
					return OutcomeError
				}
				switch argv[1] {
				case "on":
					d.log.SetLevel(logging.LevelDebug)
				case "off":
					d.log.SetLevel(logging.LevelInfo)
				default:
					d.io.OutputLine(fmt.Sprintf("usage: verbose on|off, got %q", argv[1]))
					return OutcomeError
				}
				return OutcomeOK
			},
		},
	}

	for _, c := range cmds {
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}
