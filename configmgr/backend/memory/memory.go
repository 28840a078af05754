// Package memory is an in-process, non-persistent configmgr/backend.Backend,
// the test double standing in for the teacher's MockBackend pattern
// (internal/interfaces.Backend has no such double in the pack).
package memory

import (
	"maps"

	"github.com/jiufeng-go/jiufeng/configmgr/backend"
)

// Backend stores entries in a plain map, discarded on process exit.
type Backend struct {
	entries map[string]string
}

// New constructs an empty memory Backend.
func New() *Backend { return &Backend{entries: make(map[string]string)} }

// Open is a no-op; cfg is ignored.
func (b *Backend) Open(cfg backend.Config) error { return nil }

// Close is a no-op.
func (b *Backend) Close() error { return nil }

// Flush replaces the stored entries with a copy of entries.
func (b *Backend) Flush(entries map[string]string) error {
	b.entries = maps.Clone(entries)
	return nil
}

// Load returns a copy of the stored entries.
func (b *Backend) Load() (map[string]string, error) {
	return maps.Clone(b.entries), nil
}
