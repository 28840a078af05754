// Package jiukun is the public façade over the two-tier in-process
// memory manager: a buddy page allocator (internal/jiukun/buddy) backing
// a spectrum of general slab caches (internal/jiukun/slab), plus support
// for caller-defined object caches. The shape mirrors original_source's
// single process-wide `jf_jiukun_init`/`jf_jiukun_fini`/`jf_jiukun_alloc*`
// global API — a deliberate carryover, since every consumer (jiucli and
// original_source's own callers) expects one shared pool, not
// a handle threaded through every call site.
package jiukun

import (
	"fmt"
	"math/bits"
	"sync"
	"unsafe"

	"github.com/jiufeng-go/jiufeng/internal/jferr"
	"github.com/jiufeng-go/jiufeng/internal/jiukun/arena"
	"github.com/jiufeng-go/jiufeng/internal/jiukun/buddy"
	"github.com/jiufeng-go/jiufeng/internal/jiukun/slab"
	"github.com/jiufeng-go/jiufeng/internal/logging"
)

// Re-exported so callers can errors.Is against jiukun.ErrXxx without
// importing the internal subpackages directly.
var (
	ErrNotInitialized        = jferr.NewSentinel(jferr.ModuleJiukun, 20, "jiukun not initialized")
	ErrAlreadyInitialized    = jferr.NewSentinel(jferr.ModuleJiukun, 21, "jiukun already initialized")
	ErrUnsupportedMemorySize = jferr.NewSentinel(jferr.ModuleJiukun, 22, "requested size exceeds the general cache ceiling")
	ErrNotOwned              = jferr.NewSentinel(jferr.ModuleJiukun, 23, "pointer not owned by jiukun")

	ErrInvalidOrder    = buddy.ErrInvalidOrder
	ErrOutOfMemory     = buddy.ErrOutOfMemory
	ErrFreeUnallocated = buddy.ErrFreeUnallocated
	ErrInvalidAddress  = buddy.ErrInvalidAddress

	ErrInvalidSize      = slab.ErrInvalidSize
	ErrObjSizeTooLarge  = slab.ErrObjSizeTooLarge
	ErrRedZoneCorrupted = slab.ErrRedZoneCorrupted
	ErrDoubleFree       = slab.ErrDoubleFree
	ErrMemoryLeak       = slab.ErrMemoryLeak
)

// CacheFlags controls cache creation/allocation behavior; an alias onto
// slab.Flag so callers of the façade never need to import internal/jiukun/slab.
type CacheFlags = slab.Flag

const (
	FlagNone        = slab.FlagNone
	FlagZeroOnAlloc = slab.FlagZeroOnAlloc
	FlagNoReap      = slab.FlagNoReap
	FlagRedZone     = slab.FlagRedZone
)

// Params configures Init. Mirrors original_source's jf_jiukun_init_param_t
// (jjip_sPool, jjip_bNoGrow).
type Params struct {
	// PoolSize is the arena's initial size in bytes. Rounded up to a whole
	// number of pages.
	PoolSize int
	// Growable allows the arena to grow when exhausted; GrowPages controls
	// how many pages are added per growth step (required if Growable).
	Growable  bool
	GrowPages int
	// DebugMode turns on red-zone sentinels across every general cache
	// whose object size is under page/8 (slab refuses red zones on larger
	// objects), per spec.md §4.2.
	DebugMode bool
}

// minPoolSize mirrors original_source's MIN_JIUKUN_POOL_SIZE (1MB).
const minPoolSize = 1 << 20

type manager struct {
	buddy        *buddy.Allocator
	classes      []*slab.Cache
	classSizes   []uint32
	customMu     sync.Mutex
	customCaches []*slab.Cache
	debug        bool

	metrics metrics
}

var (
	mu  sync.Mutex
	mgr *manager
)

// generalCacheSizes returns the jiukun general-cache size-class ladder:
// size-32 through size-131072, doubling. See DESIGN.md's "General cache
// size classes" decision for why this range.
func generalCacheSizes() []uint32 {
	var sizes []uint32
	for sz := uint32(32); sz <= 131072; sz *= 2 {
		sizes = append(sizes, sz)
	}
	return sizes
}

// Init brings up the shared jiukun pool. Calling Init twice without an
// intervening Fini is a no-op, matching original_source's
// "if (initialized) return no error".
func Init(p Params) error {
	mu.Lock()
	defer mu.Unlock()

	if mgr != nil {
		return nil
	}
	if p.PoolSize < minPoolSize {
		return fmt.Errorf("jiukun: PoolSize must be at least %d bytes", minPoolSize)
	}

	npages := (p.PoolSize + arena.PageSize - 1) / arena.PageSize
	maxOrder := uint8(bits.Len(uint(npages - 1)))
	if maxOrder > buddy.MaxOrder {
		maxOrder = buddy.MaxOrder
	}

	b, err := buddy.New(buddy.Params{
		NPages:    npages,
		MaxOrder:  maxOrder,
		Growable:  p.Growable,
		GrowPages: p.GrowPages,
	})
	if err != nil {
		return fmt.Errorf("jiukun: init buddy: %w", err)
	}

	m := &manager{buddy: b, debug: p.DebugMode}

	for _, sz := range generalCacheSizes() {
		flags := CacheFlags(FlagNone)
		if p.DebugMode && sz < uint32(arena.PageSize)/8 {
			flags |= FlagRedZone
		}
		c, err := slab.NewCache(slab.Params{
			Name:    fmt.Sprintf("size-%d", sz),
			ObjSize: sz,
			Flags:   flags,
			Buddy:   b,
		})
		if err != nil {
			b.Close()
			return fmt.Errorf("jiukun: init general cache size-%d: %w", sz, err)
		}
		m.classes = append(m.classes, c)
		m.classSizes = append(m.classSizes, sz)
	}

	mgr = m
	logging.Debug("jiukun initialized", "pages", npages, "maxOrder", maxOrder, "debug", p.DebugMode)
	return nil
}

// Fini tears down the shared pool, destroying every general and custom
// cache and releasing the arena. Leak errors from any cache are logged,
// not returned, matching original_source's fire-and-forget fini.
func Fini() {
	mu.Lock()
	defer mu.Unlock()

	if mgr == nil {
		return
	}
	for _, c := range mgr.classes {
		if err := c.Destroy(); err != nil {
			logging.Warn("jiukun cache destroyed with leaked objects", "cache", c.Name(), "err", err)
		}
	}
	mgr.customMu.Lock()
	for _, c := range mgr.customCaches {
		if err := c.Destroy(); err != nil {
			logging.Warn("jiukun cache destroyed with leaked objects", "cache", c.Name(), "err", err)
		}
	}
	mgr.customMu.Unlock()

	mgr.buddy.Close()
	mgr = nil
}

func classIndexFor(m *manager, n int) int {
	for i, sz := range m.classSizes {
		if int(sz) >= n {
			return i
		}
	}
	return -1
}

// AllocBytes returns an n-byte buffer from the smallest general cache
// size class that fits it, per spec.md §4.3.
func AllocBytes(n int) ([]byte, error) {
	mu.Lock()
	m := mgr
	mu.Unlock()
	if m == nil {
		return nil, ErrNotInitialized.New("AllocBytes")
	}
	if n <= 0 {
		return nil, ErrInvalidSize.New("AllocBytes")
	}

	idx := classIndexFor(m, n)
	if idx < 0 {
		return nil, ErrUnsupportedMemorySize.New("AllocBytes")
	}

	obj, err := m.classes[idx].Alloc(FlagNone)
	if err != nil {
		return nil, err
	}
	m.metrics.objectsAllocated.Add(1)
	m.metrics.bytesInUse.Add(int64(m.classSizes[idx]))
	return obj[:n], nil
}

// FreeBytes returns a buffer obtained from AllocBytes or CloneBytes.
func FreeBytes(b []byte) error {
	mu.Lock()
	m := mgr
	mu.Unlock()
	if m == nil {
		return ErrNotInitialized.New("FreeBytes")
	}
	if len(b) == 0 {
		return nil
	}

	desc := m.buddy.AddrToPage(uintptr(unsafe.Pointer(&b[0])))
	for i, c := range m.classes {
		if c.ID() == desc.CacheID {
			c.Free(b)
			m.metrics.objectsFreed.Add(1)
			m.metrics.bytesInUse.Add(-int64(m.classSizes[i]))
			return nil
		}
	}

	m.customMu.Lock()
	defer m.customMu.Unlock()
	for _, c := range m.customCaches {
		if c.ID() == desc.CacheID {
			c.Free(b)
			m.metrics.objectsFreed.Add(1)
			return nil
		}
	}

	return ErrNotOwned.New("FreeBytes")
}

// CloneBytes allocates n bytes and copies src (truncated or zero-padded
// to n) into it.
func CloneBytes(src []byte, n int) ([]byte, error) {
	dst, err := AllocBytes(n)
	if err != nil {
		return nil, err
	}
	k := copy(dst, src)
	for i := k; i < len(dst); i++ {
		dst[i] = 0
	}
	return dst, nil
}

// CreateCache creates a caller-defined object cache of fixed objSize,
// tracked by jiukun so Reap and Fini cover it too.
func CreateCache(name string, objSize int, flags CacheFlags) (*slab.Cache, error) {
	mu.Lock()
	m := mgr
	mu.Unlock()
	if m == nil {
		return nil, ErrNotInitialized.New("CreateCache")
	}
	if m.debug {
		flags |= FlagRedZone
	}
	c, err := slab.NewCache(slab.Params{Name: name, ObjSize: uint32(objSize), Flags: flags, Buddy: m.buddy})
	if err != nil {
		return nil, err
	}

	m.customMu.Lock()
	m.customCaches = append(m.customCaches, c)
	m.customMu.Unlock()
	return c, nil
}

// Reap reclaims every fully-free slab across every general and custom
// cache, per spec.md §4.2's reap semantics. If noWait is true, caches
// currently locked by a concurrent operation are skipped rather than
// blocked on.
func Reap(noWait bool) error {
	mu.Lock()
	m := mgr
	mu.Unlock()
	if m == nil {
		return ErrNotInitialized.New("Reap")
	}

	total := 0
	for _, c := range m.classes {
		total += c.Reap(noWait)
	}
	m.customMu.Lock()
	for _, c := range m.customCaches {
		total += c.Reap(noWait)
	}
	m.customMu.Unlock()

	m.metrics.reapedSlabs.Add(int64(total))
	logging.Debug("jiukun reap complete", "noWait", noWait, "reaped", total)
	return nil
}
