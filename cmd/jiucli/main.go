// Command jiucli is a clieng-hosted interactive shell wired to both
// jiukun and configmgr: alloc/free/reap/cachestat drive the memory
// manager directly, and get/set/begin/commit/rollback/traverse drive a
// config store, matching spec.md §4.8's contract. This is the repo's
// equivalent of the teacher's cmd/ublk-mem/main.go: a real, runnable
// demonstration of the façade packages wired together.
package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/jiufeng-go/jiufeng/clieng"
	"github.com/jiufeng-go/jiufeng/configmgr"
	"github.com/jiufeng-go/jiufeng/configmgr/backend"
	"github.com/jiufeng-go/jiufeng/configmgr/backend/file"
	"github.com/jiufeng-go/jiufeng/internal/logging"
	"github.com/jiufeng-go/jiufeng/jiukun"
)

func main() {
	var (
		script   = flag.String("script", "", "run a file of canned commands non-interactively, then exit")
		confPath = flag.String("conf", defaultConfPath(), "config store file path")
		poolSize = flag.Int("pool", 16<<20, "jiukun arena size in bytes")
		verbose  = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	logCfg := logging.DefaultConfig()
	if *verbose {
		logCfg.Level = logging.LevelDebug
	}
	logger := logging.NewLogger(logCfg)
	logging.SetDefault(logger)

	if err := jiukun.Init(jiukun.Params{PoolSize: *poolSize, Growable: true, GrowPages: 64}); err != nil {
		fmt.Fprintf(os.Stderr, "jiucli: jiukun init: %v\n", err)
		os.Exit(1)
	}
	defer jiukun.Fini()

	store, err := configmgr.Init(configmgr.Params{
		Backend: backend.Config{Path: *confPath},
		Store:   file.New(),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "jiucli: configmgr init: %v\n", err)
		os.Exit(1)
	}
	defer store.Fini()

	sh := newShell(store)

	scriptText := ""
	if *script != "" {
		b, err := os.ReadFile(*script)
		if err != nil {
			fmt.Fprintf(os.Stderr, "jiucli: read script: %v\n", err)
			os.Exit(1)
		}
		scriptText = string(b)
	}

	d, err := clieng.Init(clieng.Params{
		Prompt: "jiucli> ",
		Greeting: func(d *clieng.Driver) error {
			d.IO().OutputLine("jiucli — jiukun/configmgr shell. Type 'help' for commands.")
			return nil
		},
		Script: scriptText,
		Logger: logger,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "jiucli: driver init: %v\n", err)
		os.Exit(1)
	}

	if err := clieng.RegisterBuiltins(d.Registry()); err != nil {
		fmt.Fprintf(os.Stderr, "jiucli: register builtins: %v\n", err)
		os.Exit(1)
	}
	if err := sh.register(d.Registry()); err != nil {
		fmt.Fprintf(os.Stderr, "jiucli: register commands: %v\n", err)
		os.Exit(1)
	}

	if err := d.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "jiucli: %v\n", err)
		os.Exit(1)
	}
}

func defaultConfPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "jiucli.conf"
	}
	return home + "/.jiufeng/jiucli.conf"
}

// shell holds the live jiukun allocations a session has handed out, so
// free <id> can look one back up by the id alloc printed.
type shell struct {
	store  *configmgr.Store
	allocs map[int][]byte
	nextID int
}

func newShell(store *configmgr.Store) *shell {
	return &shell{store: store, allocs: make(map[int][]byte)}
}

func (s *shell) register(r *clieng.Registry) error {
	cmds := []*clieng.Command{
		{
			Name: "alloc",
			Help: "alloc <bytes> — allocate from jiukun, prints a handle id",
			Process: func(d *clieng.Driver, argv []string) clieng.Outcome {
				if len(argv) != 2 {
					d.IO().OutputLine("usage: alloc <bytes>")
					return clieng.OutcomeError
				}
				n, err := strconv.Atoi(argv[1])
				if err != nil || n <= 0 {
					d.IO().OutputLine("alloc: invalid size %q", argv[1])
					return clieng.OutcomeError
				}
				buf, err := jiukun.AllocBytes(n)
				if err != nil {
					d.IO().OutputLine("alloc: %v", err)
					return clieng.OutcomeError
				}
				s.nextID++
				s.allocs[s.nextID] = buf
				d.IO().OutputLine("handle %d (%d bytes)", s.nextID, n)
				return clieng.OutcomeOK
			},
		},
		{
			Name: "free",
			Help: "free <handle> — release an allocation made by alloc",
			Process: func(d *clieng.Driver, argv []string) clieng.Outcome {
				if len(argv) != 2 {
					d.IO().OutputLine("usage: free <handle>")
					return clieng.OutcomeError
				}
				id, err := strconv.Atoi(argv[1])
				if err != nil {
					d.IO().OutputLine("free: invalid handle %q", argv[1])
					return clieng.OutcomeError
				}
				buf, ok := s.allocs[id]
				if !ok {
					d.IO().OutputLine("free: unknown handle %d", id)
					return clieng.OutcomeError
				}
				if err := jiukun.FreeBytes(buf); err != nil {
					d.IO().OutputLine("free: %v", err)
					return clieng.OutcomeError
				}
				delete(s.allocs, id)
				return clieng.OutcomeOK
			},
		},
		{
			Name: "reap",
			Help: "reap [nowait] — reclaim fully-free slabs back to buddy",
			Process: func(d *clieng.Driver, argv []string) clieng.Outcome {
				noWait := len(argv) > 1 && argv[1] == "nowait"
				if err := jiukun.Reap(noWait); err != nil {
					d.IO().OutputLine("reap: %v", err)
					return clieng.OutcomeError
				}
				return clieng.OutcomeOK
			},
		},
		{
			Name: "cachestat",
			Help: "cachestat — print jiukun pool-wide counters",
			Process: func(d *clieng.Driver, argv []string) clieng.Outcome {
				m := jiukun.Metrics()
				d.IO().OutputLine("pages_allocated=%d pages_freed=%d", m.PagesAllocated, m.PagesFreed)
				d.IO().OutputLine("objects_allocated=%d objects_freed=%d bytes_in_use=%d", m.ObjectsAllocated, m.ObjectsFreed, m.BytesInUse)
				d.IO().OutputLine("cache_growths=%d reaped_slabs=%d", m.CacheGrowths, m.ReapedSlabs)
				return clieng.OutcomeOK
			},
		},
		{
			Name: "get",
			Help: "get <name> [txn] — read a config entry, optionally inside a transaction",
			Process: func(d *clieng.Driver, argv []string) clieng.Outcome {
				if len(argv) < 2 || len(argv) > 3 {
					d.IO().OutputLine("usage: get <name> [txn]")
					return clieng.OutcomeError
				}
				txn, ok := parseOptionalTxn(d, argv, 2)
				if !ok {
					return clieng.OutcomeError
				}
				value, err := s.store.Get(txn, argv[1])
				if err != nil {
					d.IO().OutputLine("get: %v", err)
					return clieng.OutcomeError
				}
				d.IO().OutputLine("%s", value)
				return clieng.OutcomeOK
			},
		},
		{
			Name: "set",
			Help: "set <name> <value> [txn] — write a config entry, optionally inside a transaction",
			Process: func(d *clieng.Driver, argv []string) clieng.Outcome {
				if len(argv) < 3 || len(argv) > 4 {
					d.IO().OutputLine("usage: set <name> <value> [txn]")
					return clieng.OutcomeError
				}
				txn, ok := parseOptionalTxn(d, argv, 3)
				if !ok {
					return clieng.OutcomeError
				}
				if err := s.store.Set(txn, argv[1], argv[2]); err != nil {
					d.IO().OutputLine("set: %v", err)
					return clieng.OutcomeError
				}
				return clieng.OutcomeOK
			},
		},
		{
			Name: "begin",
			Help: "begin — start a transaction, prints its id",
			Process: func(d *clieng.Driver, argv []string) clieng.Outcome {
				id, err := s.store.StartTransaction()
				if err != nil {
					d.IO().OutputLine("begin: %v", err)
					return clieng.OutcomeError
				}
				d.IO().OutputLine("%d", id)
				return clieng.OutcomeOK
			},
		},
		{
			Name: "commit",
			Help: "commit <txn> — commit a transaction's buffered writes",
			Process: func(d *clieng.Driver, argv []string) clieng.Outcome {
				id, ok := requireTxnArg(d, argv, "commit")
				if !ok {
					return clieng.OutcomeError
				}
				if err := s.store.CommitTransaction(id); err != nil {
					d.IO().OutputLine("commit: %v", err)
					return clieng.OutcomeError
				}
				return clieng.OutcomeOK
			},
		},
		{
			Name: "rollback",
			Help: "rollback <txn> — discard a transaction's buffered writes",
			Process: func(d *clieng.Driver, argv []string) clieng.Outcome {
				id, ok := requireTxnArg(d, argv, "rollback")
				if !ok {
					return clieng.OutcomeError
				}
				if err := s.store.RollbackTransaction(id); err != nil {
					d.IO().OutputLine("rollback: %v", err)
					return clieng.OutcomeError
				}
				return clieng.OutcomeOK
			},
		},
		{
			Name: "traverse",
			Help: "traverse — list every committed config entry",
			Process: func(d *clieng.Driver, argv []string) clieng.Outcome {
				s.store.Traverse(func(name, value string) bool {
					d.IO().OutputLine("%s=%s", name, value)
					return true
				})
				return clieng.OutcomeOK
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

// parseOptionalTxn parses argv[idx] as a transaction id if present,
// returning 0 (the direct-to-committed-store id) if argv is too short.
func parseOptionalTxn(d *clieng.Driver, argv []string, idx int) (uint64, bool) {
	if len(argv) <= idx {
		return 0, true
	}
	txn, err := strconv.ParseUint(argv[idx], 10, 64)
	if err != nil {
		d.IO().OutputLine("invalid transaction id %q", argv[idx])
		return 0, false
	}
	return txn, true
}

func requireTxnArg(d *clieng.Driver, argv []string, name string) (uint64, bool) {
	if len(argv) != 2 {
		d.IO().OutputLine("usage: %s <txn>", name)
		return 0, false
	}
	id, err := strconv.ParseUint(argv[1], 10, 64)
	if err != nil {
		d.IO().OutputLine("%s: invalid transaction id %q", name, argv[1])
		return 0, false
	}
	return id, true
}
