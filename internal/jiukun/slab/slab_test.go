package slab

import (
	"testing"
	"unsafe"

	"github.com/jiufeng-go/jiufeng/internal/jiukun/buddy"
)

func newTestBuddy(t *testing.T) *buddy.Allocator {
	t.Helper()
	b, err := buddy.New(buddy.Params{NPages: 64, MaxOrder: 6})
	if err != nil {
		t.Fatalf("buddy.New: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return b
}

func TestAllocFreeRoundTrip(t *testing.T) {
	b := newTestBuddy(t)
	c, err := NewCache(Params{Name: "test-32", ObjSize: 32, Buddy: b})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	obj, err := c.Alloc(FlagNone)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if uint32(len(obj)) < c.ObjSize() {
		t.Fatalf("len(obj) = %d, want >= %d", len(obj), c.ObjSize())
	}
	if got := c.Stats().Active; got != 1 {
		t.Fatalf("Active = %d, want 1", got)
	}

	c.Free(obj)
	if got := c.Stats().Active; got != 0 {
		t.Fatalf("Active after Free = %d, want 0", got)
	}
}

func TestZeroOnAlloc(t *testing.T) {
	b := newTestBuddy(t)
	c, err := NewCache(Params{Name: "test-zero", ObjSize: 64, Flags: FlagZeroOnAlloc, Buddy: b})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	obj, err := c.Alloc(FlagNone)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	for i := range obj {
		obj[i] = 0xAA
	}
	c.Free(obj)

	obj2, err := c.Alloc(FlagNone)
	if err != nil {
		t.Fatalf("second Alloc: %v", err)
	}
	for i, b := range obj2 {
		if b != 0 {
			t.Fatalf("ZeroOnAlloc left byte %d = %#x, want 0", i, b)
		}
	}
}

func TestAllocGrowsAcrossSlabs(t *testing.T) {
	b := newTestBuddy(t)
	c, err := NewCache(Params{Name: "test-grow", ObjSize: 16, Buddy: b})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	var objs [][]byte
	want := int(c.numPerSlab)*2 + 1
	for i := 0; i < want; i++ {
		o, err := c.Alloc(FlagNone)
		if err != nil {
			t.Fatalf("Alloc #%d: %v", i, err)
		}
		objs = append(objs, o)
	}
	if got := c.Stats().Grown; got < 2 {
		t.Fatalf("Grown = %d, want at least 2 slabs to satisfy %d objects", got, want)
	}

	for _, o := range objs {
		c.Free(o)
	}
	if got := c.Stats().Active; got != 0 {
		t.Fatalf("Active after draining = %d, want 0", got)
	}
}

func TestDoubleFreePanics(t *testing.T) {
	b := newTestBuddy(t)
	c, err := NewCache(Params{Name: "test-dbl", ObjSize: 32, Buddy: b})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	obj, err := c.Alloc(FlagNone)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	c.Free(obj)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double free")
		}
	}()
	c.Free(obj)
}

func TestRedZoneDetectsCorruption(t *testing.T) {
	b := newTestBuddy(t)
	c, err := NewCache(Params{Name: "test-rz", ObjSize: 32, Flags: FlagRedZone, Buddy: b})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	obj, err := c.Alloc(FlagNone)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	// Reach one byte past the end of the usable region, into the trailing
	// red zone word, and stomp it — an out-of-bounds write a buggy caller
	// might make.
	tailAddr := uintptr(unsafe.Pointer(&obj[len(obj)-1])) + 1
	tailByte := (*byte)(unsafe.Pointer(tailAddr))
	*tailByte = 0xFF

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on red zone corruption")
		}
	}()
	c.Free(obj)
}

func TestReapFreesEmptySlabsBackToBuddy(t *testing.T) {
	b := newTestBuddy(t)
	c, err := NewCache(Params{Name: "test-reap", ObjSize: 32, Buddy: b})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	obj, err := c.Alloc(FlagNone)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	c.Free(obj)

	n := c.Reap(false)
	if n == 0 {
		t.Fatal("Reap should have freed the one fully-empty slab")
	}
	if got := c.Stats().Reaped; got != int64(n) {
		t.Fatalf("Reaped stat = %d, want %d", got, n)
	}
}

func TestDestroyReportsLeak(t *testing.T) {
	b := newTestBuddy(t)
	c, err := NewCache(Params{Name: "test-leak", ObjSize: 32, Buddy: b})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}

	if _, err := c.Alloc(FlagNone); err != nil {
		t.Fatalf("Alloc: %v", err)
	}

	if err := c.Destroy(); err == nil {
		t.Fatal("Destroy should report a leak for an outstanding object")
	}
}

func TestOffSlabLayoutForLargeObjects(t *testing.T) {
	b := newTestBuddy(t)
	c, err := NewCache(Params{Name: "test-large", ObjSize: 2048, Buddy: b})
	if err != nil {
		t.Fatalf("NewCache: %v", err)
	}
	if !c.offSlab {
		t.Fatal("a 2048-byte object (>= page/8) should use off-slab bufctl placement")
	}

	obj, err := c.Alloc(FlagNone)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	c.Free(obj)
}
