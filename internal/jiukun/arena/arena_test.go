package arena

import "testing"

func TestNewAndBytes(t *testing.T) {
	a, err := New(4, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if a.NPages() != 4 {
		t.Fatalf("NPages() = %d, want 4", a.NPages())
	}
	if len(a.Bytes()) != 4*PageSize {
		t.Fatalf("len(Bytes()) = %d, want %d", len(a.Bytes()), 4*PageSize)
	}

	// Region should be writable.
	a.Bytes()[0] = 0x42
	if a.Bytes()[0] != 0x42 {
		t.Fatal("write to arena bytes did not stick")
	}
}

func TestGrowRejectedWhenNotGrowable(t *testing.T) {
	a, err := New(2, false)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	if err := a.Grow(2); err == nil {
		t.Fatal("Grow should fail on a non-growable arena")
	}
}

func TestGrowPreservesContents(t *testing.T) {
	a, err := New(2, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	a.Bytes()[0] = 0x7
	a.Bytes()[2*PageSize-1] = 0x9

	if err := a.Grow(2); err != nil {
		t.Fatalf("Grow: %v", err)
	}
	if a.NPages() != 4 {
		t.Fatalf("NPages() after grow = %d, want 4", a.NPages())
	}
	if a.Bytes()[0] != 0x7 || a.Bytes()[2*PageSize-1] != 0x9 {
		t.Fatal("Grow lost existing contents")
	}
}

// TestGrowPreservesPreGrowthPointer reproduces the shape every jiukun
// allocation actually takes: a caller holds a []byte sliced out of
// Bytes() before growth (what AllocBytes/slab.Slab.mem effectively do),
// then growth happens, then the caller reads and writes through that
// same slice. Growing by remapping would unmap the memory this slice
// points at; growing in place must not disturb it.
func TestGrowPreservesPreGrowthPointer(t *testing.T) {
	a, err := New(2, true)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer a.Close()

	preGrowth := a.Bytes()[:PageSize] // a live "allocation" into page 0
	preGrowth[0] = 0xAB

	if err := a.Grow(2); err != nil {
		t.Fatalf("Grow: %v", err)
	}

	if preGrowth[0] != 0xAB {
		t.Fatal("pre-growth slice lost its contents across Grow")
	}
	preGrowth[PageSize-1] = 0xCD
	if a.Bytes()[PageSize-1] != 0xCD {
		t.Fatal("write through pre-growth slice after Grow did not reach the arena's backing memory")
	}
}
