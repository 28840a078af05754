package clieng

import (
	"bytes"
	"strings"
	"testing"
)

func TestScriptModeDispatchesOnceAndReturns(t *testing.T) {
	var out bytes.Buffer
	var got []string

	d, err := Init(Params{
		Script: "greet alice\n# a comment\n\ngreet bob\n",
		Reader: strings.NewReader(""),
		Writer: &out,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := d.Registry().Register(&Command{
		Name: "greet",
		Process: func(d *Driver, argv []string) Outcome {
			got = append(got, argv[1:]...)
			return OutcomeOK
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"alice", "bob"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("dispatched args = %#v, want %#v", got, want)
	}
}

func TestGreetingPreEnterPostExitOrder(t *testing.T) {
	var order []string
	d, err := Init(Params{
		Script: "\n",
		Reader: strings.NewReader(""),
		Writer: &bytes.Buffer{},
		Greeting: func(d *Driver) error {
			order = append(order, "greeting")
			return nil
		},
		PreEnter: func(d *Driver) error {
			order = append(order, "pre-enter")
			return nil
		},
		PostExit: func(d *Driver) error {
			order = append(order, "post-exit")
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"greeting", "pre-enter", "post-exit"}
	for i, w := range want {
		if order[i] != w {
			t.Fatalf("order = %#v, want %#v", order, want)
		}
	}
}

func TestBuiltinExitStopsInteractiveLoop(t *testing.T) {
	var out bytes.Buffer
	d, err := Init(Params{
		Prompt: "cli> ",
		Reader: strings.NewReader("exit\n"),
		Writer: &out,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := RegisterBuiltins(d.Registry()); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	// Script mode is off (Script == ""), but Reader is a strings.Reader,
	// not an *os.File, so Init never attempts raw mode; runInteractive
	// reads bytes straight through the editor.
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !d.terminate {
		t.Fatal("expected Stop() (called by the exit builtin) to set terminate")
	}
}

func TestBuiltinHelpListsCommands(t *testing.T) {
	var out bytes.Buffer
	d, err := Init(Params{
		Script: "help\n",
		Reader: strings.NewReader(""),
		Writer: &out,
	})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if err := RegisterBuiltins(d.Registry()); err != nil {
		t.Fatalf("RegisterBuiltins: %v", err)
	}
	if err := d.Run(); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "help") || !strings.Contains(out.String(), "exit") {
		t.Fatalf("help output = %q, want it to list registered commands", out.String())
	}
}
