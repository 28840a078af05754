// Package page implements the jiukun page descriptor table: one
// Descriptor per arena page, packed as spec.md §4.1 "Page metadata layout"
// describes — a single word carrying the allocated bit, the slab bit, the
// order, and a zone id — plus a list-link slot and the owning cache/slab
// ids kept outside that word.
//
// Design Notes §9 warns that the C original stashes the owning
// cache/slab in the same link slots a free page would use, and recommends
// modeling the descriptor as a tagged variant instead: Free{prev,next} vs
// SlabBacked{cache,slab}, never both. Kind() reports which of the two a
// descriptor is, from the slab bit alone; it does not check the other
// fields.
package page

import (
	"fmt"

	"github.com/jiufeng-go/jiufeng/internal/list"
)

const (
	bitAllocated = 1 << 0
	bitSlab      = 1 << 1

	orderShift = 8
	orderMask  = 0xff

	zoneShift = 16
	zoneMask  = 0xff
)

// Kind distinguishes what a Descriptor's link slot currently means.
type Kind int

const (
	// KindFree: the page sits on one of buddy's order free lists.
	KindFree Kind = iota
	// KindSlab: the page backs a slab and carries owning cache/slab ids.
	KindSlab
)

// Descriptor is one page's metadata. Index is this page's position in the
// arena, fixed at construction; Link is shared by buddy's free lists
// (when Kind()==KindFree) — slab ownership is recorded in CacheID/SlabID
// instead of reusing the link slot, matching the tagged-variant guidance.
type Descriptor struct {
	Index int

	word uint64

	Link *list.Node[*Descriptor]

	// Valid only when the Slab flag is set (Kind()==KindSlab).
	CacheID uint32
	SlabID  uint64
}

// Kind reports whether this descriptor is currently free or slab-backed.
func (d *Descriptor) Kind() Kind {
	if d.word&bitSlab != 0 {
		return KindSlab
	}
	return KindFree
}

// Allocated reports the allocated bit (set for every page in an allocated
// run, not just the head page).
func (d *Descriptor) Allocated() bool { return d.word&bitAllocated != 0 }

// SetAllocated sets or clears the allocated bit.
func (d *Descriptor) SetAllocated(v bool) {
	if v {
		d.word |= bitAllocated
	} else {
		d.word &^= bitAllocated
	}
}

// Slab reports whether this page is in use by a slab cache.
func (d *Descriptor) Slab() bool { return d.word&bitSlab != 0 }

// SetSlab sets or clears the slab-use bit.
func (d *Descriptor) SetSlab(v bool) {
	if v {
		d.word |= bitSlab
	} else {
		d.word &^= bitSlab
	}
}

// Order returns the log2 run size this page heads. Only meaningful on the
// head page of an allocated run, per spec.md §3's page descriptor
// invariant.
func (d *Descriptor) Order() uint8 { return uint8((d.word >> orderShift) & orderMask) }

// SetOrder records the head-page order.
func (d *Descriptor) SetOrder(order uint8) {
	d.word = (d.word &^ (orderMask << orderShift)) | (uint64(order) << orderShift)
}

// ZoneID returns the zone id packed into this descriptor.
func (d *Descriptor) ZoneID() uint8 { return uint8((d.word >> zoneShift) & zoneMask) }

// SetZoneID records the zone id.
func (d *Descriptor) SetZoneID(zone uint8) {
	d.word = (d.word &^ (zoneMask << zoneShift)) | (uint64(zone) << zoneShift)
}

// Reset clears every flag and ownership field, returning the descriptor to
// its just-constructed state (used when a run is fully freed back to
// buddy).
func (d *Descriptor) Reset() {
	d.word = 0
	d.CacheID = 0
	d.SlabID = 0
	d.Link = nil
}

func (d *Descriptor) String() string {
	return fmt.Sprintf("page[%d] allocated=%v slab=%v order=%d zone=%d",
		d.Index, d.Allocated(), d.Slab(), d.Order(), d.ZoneID())
}

// Table is the array of per-page descriptors for one arena, plus the
// index<->address arithmetic spec.md §3 describes ("converting between a
// page and its address is arithmetic").
type Table struct {
	descs    []Descriptor
	base     uintptr
	pageSize int
}

// NewTable builds a descriptor table of npages entries over an arena whose
// base address is base and whose page size is pageSize. maxPages
// pre-reserves the backing array's capacity so a later Grow (up to
// maxPages entries) never reallocates — every *Descriptor a caller
// already holds (buddy's free-list nodes, a slab's owning page) stays
// valid across growth. maxPages is clamped up to npages if given smaller.
func NewTable(base uintptr, pageSize, npages, maxPages int) *Table {
	if maxPages < npages {
		maxPages = npages
	}
	t := &Table{
		descs:    make([]Descriptor, npages, maxPages),
		base:     base,
		pageSize: pageSize,
	}
	for i := range t.descs {
		t.descs[i].Index = i
	}
	return t
}

// Len returns the number of page descriptors (the arena's page count).
func (t *Table) Len() int { return len(t.descs) }

// At returns the descriptor for page index i.
func (t *Table) At(i int) *Descriptor { return &t.descs[i] }

// Grow extends the table to cover additional pages, for arenas created
// growable (spec.md §4.1 "Growing"). newBase is the arena's (possibly
// unchanged) base address. Grow never reallocates the descriptor array
// as long as it stays within the capacity reserved at NewTable — every
// *Descriptor obtained via At before this call remains valid afterward.
// Returns an error if growth would exceed that reserved capacity.
func (t *Table) Grow(addPages int, newBase uintptr) error {
	start := len(t.descs)
	newLen := start + addPages
	if newLen > cap(t.descs) {
		return fmt.Errorf("page: growth to %d descriptors exceeds the %d reserved at creation", newLen, cap(t.descs))
	}
	t.descs = t.descs[:newLen]
	for i := start; i < newLen; i++ {
		t.descs[i] = Descriptor{Index: i}
	}
	t.base = newBase
	return nil
}

// PageToAddr converts a page index to its address within the arena.
func (t *Table) PageToAddr(index int) uintptr {
	return t.base + uintptr(index*t.pageSize)
}

// AddrToPage converts an address within the arena back to the index of
// the page containing it — addr need not be page-aligned, since slab
// objects live at arbitrary offsets inside a page run. Panics (an invalid-
// address invariant violation, spec.md §7 INVALID_JIUKUN_ADDRESS) if addr
// falls outside the arena entirely.
func (t *Table) AddrToPage(addr uintptr) int {
	if addr < t.base {
		panic(fmt.Sprintf("page: address %#x below arena base %#x", addr, t.base))
	}
	off := addr - t.base
	index := int(off) / t.pageSize
	if index >= len(t.descs) {
		panic(fmt.Sprintf("page: address %#x outside arena (npages=%d)", addr, len(t.descs)))
	}
	return index
}
