package buddy

import "unsafe"

// addrOf returns the address of a byte as a uintptr, used once at
// construction to anchor the page table's base address to the arena's
// backing mmap region. Safe here because the arena's mapping has a fixed
// address for its lifetime (it is never moved: growth extends the mapping
// in place inside its reservation, so the page table's base stays valid).
func addrOf(b *byte) uintptr {
	return uintptr(unsafe.Pointer(b))
}
