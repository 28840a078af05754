// Package arena owns the one contiguous byte region jiukun's buddy
// allocator carves into pages (spec.md §3 "Arena"). The region is backed
// by an anonymous mmap rather than a plain make([]byte, ...) slice so it
// has a stable address for page<->pointer arithmetic and can be extended
// in place when the arena is growable (spec.md §4.1 "Growing") — the same
// mmap idiom the retrieval pack uses for byte-addressable regions
// (github.com/edsrzf/mmap-go in AKJUS-bsc-erigon; golang.org/x/sys/unix
// itself is the teacher's own direct dependency).
package arena

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// PageSize is the page granularity jiukun's buddy allocator works in.
// 4096 matches the host's usual VM page size and BUDDY_PAGE_SIZE in
// original_source/jiukun/buddy.h.
const PageSize = 4096

// maxGrowablePages bounds how much address space a growable arena
// reserves up front: 1GiB worth of pages. Anonymous mmap pages are
// demand-paged, so reserving this much virtual address space at New
// costs no physical memory until a page is actually touched — it only
// has to be reserved once, so Grow never has to remap (and invalidate
// every pointer already handed out into) the arena. Growth past this
// ceiling is a hard error rather than a relocating remap.
const maxGrowablePages = 1 << 18

// Arena is one owned byte region of size P (spec.md §3). It is immutable
// after init except for Grow, which is only permitted when the arena was
// created growable.
type Arena struct {
	full     []byte // the exact slice returned by Mmap; only Close touches it
	mem      []byte // full[:currentSize], the logical view Bytes() returns
	growable bool
}

// New reserves address space for at least npages pages and maps the
// first npages of it read/write. When growable, the reservation covers
// maxGrowablePages up front so later Grow calls extend the logical view
// in place instead of remapping.
func New(npages int, growable bool) (*Arena, error) {
	if npages <= 0 {
		return nil, fmt.Errorf("arena: npages must be positive, got %d", npages)
	}

	reservePages := npages
	if growable && reservePages < maxGrowablePages {
		reservePages = maxGrowablePages
	}
	reserveSize := reservePages * PageSize

	full, err := unix.Mmap(-1, 0, reserveSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE|unix.MAP_NORESERVE)
	if err != nil {
		return nil, fmt.Errorf("arena: mmap %d bytes: %w", reserveSize, err)
	}
	return &Arena{full: full, mem: full[:npages*PageSize], growable: growable}, nil
}

// Bytes returns the backing byte slice. Callers must not reslice or
// reassign it; it is sized exactly to NPages()*PageSize.
func (a *Arena) Bytes() []byte { return a.mem }

// NPages returns the current page count of the arena.
func (a *Arena) NPages() int { return len(a.mem) / PageSize }

// Growable reports whether this arena accepts Grow calls.
func (a *Arena) Growable() bool { return a.growable }

// MaxPages returns the page count the arena's reservation can grow to
// without remapping, i.e. the ceiling Grow is measured against.
func (a *Arena) MaxPages() int { return len(a.full) / PageSize }

// Grow extends the arena by addPages pages within its existing
// reservation, so every address already handed out of Bytes() stays
// valid. Returns an error if the arena was not created growable — "if
// not growable, exhaustion is a hard error" per spec.md §4.1 — or if
// growth would exceed the address space reserved at New.
func (a *Arena) Grow(addPages int) error {
	if !a.growable {
		return fmt.Errorf("arena: not growable")
	}
	if addPages <= 0 {
		return fmt.Errorf("arena: addPages must be positive, got %d", addPages)
	}

	newSize := len(a.mem) + addPages*PageSize
	if newSize > len(a.full) {
		return fmt.Errorf("arena: growth to %d bytes exceeds the %d bytes reserved at creation", newSize, len(a.full))
	}
	a.mem = a.full[:newSize]
	return nil
}

// Close releases the arena's backing mapping. Safe to call once.
func (a *Arena) Close() error {
	if a.full == nil {
		return nil
	}
	err := unix.Munmap(a.full)
	a.full = nil
	a.mem = nil
	return err
}
