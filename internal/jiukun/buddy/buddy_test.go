package buddy

import (
	"math/rand"
	"testing"

	"github.com/jiufeng-go/jiufeng/internal/jiukun/page"
)

func newTestAllocator(t *testing.T, npages int) *Allocator {
	t.Helper()
	b, err := New(Params{NPages: npages, MaxOrder: 4})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestAllocSplitsAndFreeCoalesces(t *testing.T) {
	b := newTestAllocator(t, 16)

	d, err := b.Alloc(0, FlagNone)
	if err != nil {
		t.Fatalf("Alloc(0): %v", err)
	}
	if d.Order() != 0 || !d.Allocated() {
		t.Fatalf("unexpected descriptor state after Alloc(0): %+v", d)
	}
	if got := b.FreePagesAtOrder(4); got != 0 {
		t.Fatalf("order-4 free list should be emptied by the split, got %d runs", got)
	}

	b.Free(d)
	if got := b.FreePagesAtOrder(4); got != 1 {
		t.Fatalf("after freeing the only allocation, expected one order-4 run, got %d", got)
	}
	for k := uint8(0); k < 4; k++ {
		if got := b.FreePagesAtOrder(k); got != 0 {
			t.Fatalf("order-%d free list should be empty post-coalesce, got %d", k, got)
		}
	}
}

func TestAddrRoundTripForEveryPage(t *testing.T) {
	b := newTestAllocator(t, 16)

	for i := 0; i < b.NPages(); i++ {
		d := b.Table().At(i)
		addr := b.PageToAddr(d)
		if got := b.AddrToPage(addr); got.Index != i {
			t.Fatalf("AddrToPage(PageToAddr(%d)).Index = %d, want %d", i, got.Index, i)
		}
	}
}

func TestAllocFreeSameOrderReturnsSameAddress(t *testing.T) {
	b := newTestAllocator(t, 16)

	d1, err := b.Alloc(2, FlagNone)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	addr1 := b.PageToAddr(d1)
	b.Free(d1)

	d2, err := b.Alloc(2, FlagNone)
	if err != nil {
		t.Fatalf("second Alloc: %v", err)
	}
	addr2 := b.PageToAddr(d2)

	if addr1 != addr2 {
		t.Fatalf("alloc-free-alloc at the same order returned different addresses: %#x vs %#x", addr1, addr2)
	}
	b.Free(d2)
}

func TestRandomAllocFreeSequenceReturnsToSingleRun(t *testing.T) {
	b := newTestAllocator(t, 16)
	rng := rand.New(rand.NewSource(1))

	var live []*pageRef
	for i := 0; i < 200; i++ {
		if len(live) > 0 && rng.Intn(2) == 0 {
			idx := rng.Intn(len(live))
			b.Free(live[idx].d)
			live = append(live[:idx], live[idx+1:]...)
			continue
		}
		order := uint8(rng.Intn(3))
		d, err := b.Alloc(order, FlagNone)
		if err != nil {
			continue
		}
		live = append(live, &pageRef{d: d, order: order})
	}

	for _, r := range live {
		b.Free(r.d)
	}

	if got := b.FreePagesAtOrder(4); got != 1 {
		t.Fatalf("after draining all live allocations, expected a single order-4 run, got %d", got)
	}
	for k := uint8(0); k < 4; k++ {
		if got := b.FreePagesAtOrder(k); got != 0 {
			t.Fatalf("order-%d free list should be empty once fully coalesced, got %d", k, got)
		}
	}
}

type pageRef struct {
	d     *page.Descriptor
	order uint8
}
