// Package buddy implements jiukun's buddy page allocator (spec.md §4.1):
// splits/coalesces an arena into power-of-two page runs and tracks
// per-page metadata via internal/jiukun/page.
package buddy

import (
	"errors"
	"fmt"
	"sync"

	"github.com/jiufeng-go/jiufeng/internal/jferr"
	"github.com/jiufeng-go/jiufeng/internal/jiukun/arena"
	"github.com/jiufeng-go/jiufeng/internal/jiukun/page"
	"github.com/jiufeng-go/jiufeng/internal/list"
)

// Errors, namespaced under ModuleJiukun per internal/jferr's module+code
// scheme. Re-exported by the jiukun façade package as e.g.
// jiukun.ErrInvalidOrder.
var (
	ErrInvalidOrder    = jferr.NewSentinel(jferr.ModuleJiukun, 1, "invalid jiukun page order")
	ErrOutOfMemory     = jferr.NewSentinel(jferr.ModuleJiukun, 2, "jiukun out of memory")
	ErrFreeUnallocated = jferr.NewSentinel(jferr.ModuleJiukun, 3, "free of unallocated jiukun page")
	ErrInvalidAddress  = jferr.NewSentinel(jferr.ModuleJiukun, 4, "invalid jiukun address")
)

// MaxOrder bounds the largest run buddy will hand out: 2^MaxOrder pages.
// Matches a conservative but still useful ceiling; original_source's
// buddy_param_t.bp_u8MaxOrder is configurable, so Params.MaxOrder is too.
const MaxOrder = 20

// Flag controls allocation behavior, mirroring spec.md §4.1's getJiukunPage
// flag parameter.
type Flag uint32

const (
	// FlagNone requests ordinary allocation: may grow the arena if growable.
	FlagNone Flag = 0
	// FlagNoGrow forbids extending the arena even if it is growable.
	FlagNoGrow Flag = 1 << 0
)

// Params configures a new Allocator, mirroring original_source's
// buddy_param_t (bp_u8MaxOrder, bp_bNoGrow).
type Params struct {
	// NPages is the arena's initial page count.
	NPages int
	// MaxOrder bounds 2^order page runs. Defaults to MaxOrder if zero.
	MaxOrder uint8
	// Growable allows the arena to be extended on exhaustion.
	Growable bool
	// GrowPages is how many pages to add per growth step.
	GrowPages int
}

// Allocator is the buddy page allocator over one Arena. A single mutex
// guards all orders' free lists together, since coalescing at free time
// walks up through them — see DESIGN.md's "Buddy free-list locking
// granularity" note.
type Allocator struct {
	mu       sync.Mutex
	arena    *arena.Arena
	table    *page.Table
	maxOrder uint8
	free     []*list.List[*page.Descriptor] // free[k] = runs of order k
	grow     int
}

// New constructs an Allocator per Params.
func New(p Params) (*Allocator, error) {
	if p.NPages <= 0 {
		return nil, fmt.Errorf("buddy: NPages must be positive")
	}
	maxOrder := p.MaxOrder
	if maxOrder == 0 {
		maxOrder = MaxOrder
	}

	a, err := arena.New(p.NPages, p.Growable)
	if err != nil {
		return nil, err
	}

	tbl := page.NewTable(uintptrOf(a), arena.PageSize, a.NPages(), a.MaxPages())

	b := &Allocator{
		arena:    a,
		table:    tbl,
		maxOrder: maxOrder,
		free:     make([]*list.List[*page.Descriptor], maxOrder+1),
		grow:     p.GrowPages,
	}
	for i := range b.free {
		b.free[i] = list.New[*page.Descriptor]()
	}
	b.seedFreeRuns(0, tbl.Len())

	return b, nil
}

// uintptrOf returns the arena's backing slice address (0 for an empty
// arena).
func uintptrOf(a *arena.Arena) uintptr {
	if len(a.Bytes()) == 0 {
		return 0
	}
	return addrOf(&a.Bytes()[0])
}

// seedFreeRuns places the largest possible maximal runs covering
// [start, start+npages) onto their natural free lists. Called at
// construction and after growth.
func (b *Allocator) seedFreeRuns(start, npages int) {
	i := start
	for i < start+npages {
		remaining := start + npages - i
		order := b.maxOrder
		for order > 0 {
			runLen := 1 << order
			if runLen <= remaining && i%runLen == 0 {
				break
			}
			order--
		}
		b.linkFree(i, order)
		i += 1 << order
	}
}

func (b *Allocator) linkFree(index int, order uint8) {
	d := b.table.At(index)
	d.SetOrder(order)
	d.Link = b.free[order].PushBack(d)
}

// Close releases the underlying arena.
func (b *Allocator) Close() error { return b.arena.Close() }

// NPages returns the arena's current page count.
func (b *Allocator) NPages() int { return b.table.Len() }

// Alloc returns a run of exactly 2^order pages, per spec.md §4.1's
// algorithm: scan from the requested order upward, split on hit.
func (b *Allocator) Alloc(order uint8, flag Flag) (*page.Descriptor, error) {
	if order > b.maxOrder {
		return nil, ErrInvalidOrder.New("alloc")
	}

	b.mu.Lock()
	head, err := b.allocLocked(order)
	if err == nil {
		b.mu.Unlock()
		return head, nil
	}
	b.mu.Unlock()

	if !errors.Is(err, ErrOutOfMemory) {
		return nil, err
	}
	if flag&FlagNoGrow != 0 || !b.arena.Growable() || b.grow <= 0 {
		return nil, ErrOutOfMemory.New("alloc")
	}

	if growErr := b.growArena(); growErr != nil {
		return nil, growErr
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	return b.allocLocked(order)
}

// allocLocked implements the scan-and-split algorithm. Caller holds mu.
func (b *Allocator) allocLocked(order uint8) (*page.Descriptor, error) {
	k := order
	for ; k <= b.maxOrder; k++ {
		if !b.free[k].Empty() {
			break
		}
	}
	if k > b.maxOrder {
		return nil, ErrOutOfMemory.New("alloc")
	}

	n := b.free[k].Front()
	d := n.Remove()
	d.Link = nil

	for k > order {
		k--
		buddyIndex := d.Index ^ (1 << k)
		buddy := b.table.At(buddyIndex)
		buddy.SetOrder(k)
		buddy.Link = b.free[k].PushBack(buddy)
	}

	d.SetOrder(order)
	d.SetAllocated(true)
	for i := 1; i < 1<<order; i++ {
		b.table.At(d.Index + i).SetAllocated(true)
	}
	return d, nil
}

// Free releases a previously allocated run. The run's order is read from
// the head page, per spec.md §4.1. Passing a page that is already free is
// a fatal invariant violation and panics, per spec.md §7. A page that is
// allocated but not the head of its run is not detected.
func (b *Allocator) Free(head *page.Descriptor) {
	if !head.Allocated() {
		panic(ErrFreeUnallocated.New("free"))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	order := head.Order()
	for i := 0; i < 1<<order; i++ {
		d := b.table.At(head.Index + i)
		d.SetAllocated(false)
		if i != 0 {
			d.SetOrder(0)
		}
	}

	index := head.Index
	for order < b.maxOrder {
		buddyIndex := index ^ (1 << order)
		if buddyIndex+1<<order > b.table.Len() {
			break
		}
		buddy := b.table.At(buddyIndex)
		if buddy.Allocated() || buddy.Order() != order || buddy.Link == nil {
			break
		}
		buddy.Link.Remove()
		buddy.Link = nil
		if buddyIndex < index {
			index = buddyIndex
		}
		order++
	}

	final := b.table.At(index)
	final.SetOrder(order)
	final.Link = b.free[order].PushBack(final)
}

// growArena extends the arena by Params.GrowPages pages and seeds the new
// region's free runs.
func (b *Allocator) growArena() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	oldPages := b.table.Len()
	if err := b.arena.Grow(b.grow); err != nil {
		return fmt.Errorf("buddy: grow: %w", err)
	}
	if err := b.table.Grow(b.grow, uintptrOf(b.arena)); err != nil {
		return fmt.Errorf("buddy: grow: %w", err)
	}
	b.seedFreeRuns(oldPages, b.grow)
	return nil
}

// PageToAddr converts a page descriptor to its arena address.
func (b *Allocator) PageToAddr(d *page.Descriptor) uintptr {
	return b.table.PageToAddr(d.Index)
}

// AddrToPage converts an arena address back to its page descriptor.
func (b *Allocator) AddrToPage(addr uintptr) *page.Descriptor {
	return b.table.At(b.table.AddrToPage(addr))
}

// Table exposes the underlying page table for slab's page->cache
// back-pointer bookkeeping.
func (b *Allocator) Table() *page.Table { return b.table }

// PageBytes returns the byte range within the arena backing the run headed
// by d. The slice's length is exactly (1<<d.Order())*arena.PageSize. Used
// by slab to carve object storage out of a page run.
func (b *Allocator) PageBytes(d *page.Descriptor) []byte {
	off := d.Index * arena.PageSize
	n := (1 << d.Order()) * arena.PageSize
	return b.arena.Bytes()[off : off+n]
}

// FreePagesAtOrder reports how many runs currently sit on order k's free
// list, for tests and metrics.
func (b *Allocator) FreePagesAtOrder(k uint8) int {
	if int(k) >= len(b.free) {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.free[k].Len()
}
