// Package backend defines the pluggable persistence layer configmgr.Store
// flushes committed writes through, generalized from
// internal/interfaces.Backend's byte-range I/O shape (ReadAt/WriteAt/
// Size/Close/Flush) to whole-map flush/load, per SPEC_FULL.md §6 and
// spec.md §4.8's "Backends (abstract)".
package backend

// Config carries whatever a concrete Backend needs to open its
// underlying store (a file path, a DSN, …). Each implementation only
// reads the fields it understands.
type Config struct {
	Path string
}

// Backend is implemented by each persistence variant (file, sqlite,
// in-memory). Opaque to Store: spec.md §4.8 "Either backend is opaque to
// the manager".
type Backend interface {
	Open(cfg Config) error
	Close() error
	Flush(entries map[string]string) error
	Load() (map[string]string, error)
}
