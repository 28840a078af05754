// Package slab implements jiukun's slab object cache (spec.md §4.2): a
// cache of same-sized objects carved out of page runs obtained from
// buddy, keeping per-slab free/partial/full lists so that allocation and
// release are O(1) in the common case.
//
// Grounded on original_source/jiukun/slab.c: the full/partial/free list
// chaining, the bufctl free-chain representation, the on-slab/off-slab
// control-block placement decision, and the cache-size-estimation loop
// all follow that file's _allocObj/_freeOneObj/_slabCacheEstimate. One
// deliberate departure: in C, "on-slab" also means the slab_t header
// itself lives inside the page run's raw bytes; here the Slab struct (it
// holds a *list.Node, a Go pointer) always lives on the Go heap, since
// placing live Go pointers inside unmanaged mmap'd memory would break the
// garbage collector. Only the bufctl free-chain — plain uint32s, never
// pointers — is actually placed inside the page run's tail bytes for
// on-slab caches; for off-slab caches (large objects, where stealing page
// space for bookkeeping would waste too much) it is an ordinary slice.
package slab

import (
	"encoding/binary"
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/jiufeng-go/jiufeng/internal/jferr"
	"github.com/jiufeng-go/jiufeng/internal/jiukun/arena"
	"github.com/jiufeng-go/jiufeng/internal/jiukun/buddy"
	"github.com/jiufeng-go/jiufeng/internal/jiukun/page"
	"github.com/jiufeng-go/jiufeng/internal/list"
)

// Errors, namespaced under ModuleJiukun per internal/jferr.
var (
	ErrInvalidSize     = jferr.NewSentinel(jferr.ModuleJiukun, 10, "invalid slab object size")
	ErrObjSizeTooLarge = jferr.NewSentinel(jferr.ModuleJiukun, 11, "slab object size too large for any page order")
	ErrOutOfMemory     = jferr.NewSentinel(jferr.ModuleJiukun, 12, "slab cache out of memory")
	ErrRedZoneCorrupted = jferr.NewSentinel(jferr.ModuleJiukun, 13, "slab red zone corrupted")
	ErrDoubleFree      = jferr.NewSentinel(jferr.ModuleJiukun, 14, "slab object freed twice")
	ErrNotOwned        = jferr.NewSentinel(jferr.ModuleJiukun, 15, "pointer not owned by this slab cache")
	ErrMemoryLeak      = jferr.NewSentinel(jferr.ModuleJiukun, 16, "slab cache destroyed with outstanding objects")
)

// Flag mirrors spec.md §4.2's cache creation / alloc flags.
type Flag uint32

const (
	FlagNone Flag = 0
	// FlagZeroOnAlloc zero-fills every object handed out by Alloc.
	FlagZeroOnAlloc Flag = 1 << 0
	// FlagNoReap exempts a cache from Reap.
	FlagNoReap Flag = 1 << 1
	// FlagRedZone enables red-zone debug sentinels around each object.
	// Only valid when the aligned object size before red-zone padding stays
	// under page/8, same restriction original_source applies ("do not red zone
	// large object, causes severe fragmentation").
	FlagRedZone Flag = 1 << 2
)

const (
	// alignSize matches original_source's SLAB_ALIGN_SIZE (one machine
	// word), so on-slab bufctl tables and red-zone words never straddle
	// an unaligned boundary.
	alignSize = 8

	bufctlEnd  = ^uint32(0)
	bufctlFree = ^uint32(0) - 1

	redMagicActive   = uint64(0x5A2CF071170FC2A5)
	redMagicInactive = uint64(0x170FC2A55A2CF071)
)

func alignCeil(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// nextCacheID hands out stable, small cache identifiers. Page descriptors
// tag their owning cache by this id rather than by reinterpreting a *Cache
// pointer as an integer, which would hide the reference from the garbage
// collector.
var nextCacheID atomic.Uint32

// Params configures a new Cache.
type Params struct {
	// Name is used only for diagnostics (metrics, dumps).
	Name string
	// ObjSize is the caller-visible object size in bytes.
	ObjSize uint32
	Flags   Flag
	// Buddy supplies the page runs each slab is carved from.
	Buddy *buddy.Allocator
}

// Cache is a pool of fixed-size objects, analogous to original_source's
// slab_cache_t.
type Cache struct {
	name        string
	objSize     uint32 // aligned, plus red-zone padding if enabled
	realObjSize uint32
	flags       Flag
	numPerSlab  uint32
	order       uint8
	offSlab     bool
	redZone     bool
	buddy       *buddy.Allocator
	id          uint32

	mu          sync.Mutex
	full        *list.List[*Slab]
	partial     *list.List[*Slab]
	free        *list.List[*Slab]
	destroying  bool
	slabsByID   map[uint64]*Slab
	nextSlabID  uint64

	active   atomic.Int64
	alloced  atomic.Int64
	highMark atomic.Int64
	grown    atomic.Int64
	reaped   atomic.Int64
	errors   atomic.Int64
}

// Slab is one page run's worth of same-sized objects, analogous to
// original_source's slab_t.
type Slab struct {
	link *list.Node[*Slab]

	desc   *page.Descriptor // head page of the backing run
	slabID uint64
	mem    []byte // object storage, len == numPerSlab*objSize

	// bufctl is the free chain: bufctl[i] is the index of the next free
	// object after i, or bufctlEnd. inlineTail is non-nil for on-slab
	// caches, where the chain is encoded into the page run's own tail
	// bytes instead of a separately allocated slice.
	bufctl     []uint32
	inlineTail []byte

	inUse    uint32
	freeHead uint32
}

func (s *Slab) ctlGet(i uint32) uint32 {
	if s.inlineTail != nil {
		return binary.LittleEndian.Uint32(s.inlineTail[i*4:])
	}
	return s.bufctl[i]
}

func (s *Slab) ctlSet(i, v uint32) {
	if s.inlineTail != nil {
		binary.LittleEndian.PutUint32(s.inlineTail[i*4:], v)
		return
	}
	s.bufctl[i] = v
}

// estimate mirrors original_source's _slabCacheEstimate: given a page
// order and whether bufctl is on-slab, how many objects fit and how many
// bytes are left over.
func estimate(order uint8, objSize uint32, offSlab bool) (num, leftover uint32) {
	wastage := uint32(arena.PageSize) << order
	var extra uint32
	if !offSlab {
		extra = 4
	}
	var i uint32
	for i*objSize+alignCeil(i*extra, alignSize) <= wastage {
		i++
	}
	if i > 0 {
		i--
	}
	num = i
	leftover = wastage - num*objSize - alignCeil(num*extra, alignSize)
	return num, leftover
}

// chooseLayout mirrors original_source's order-growing loop in
// _createSlabCache: grow the order until the objects-per-slab count is
// non-zero and internal fragmentation is acceptable (leftover*8 <= slab
// size), capped at maxOrder.
func chooseLayout(objSize uint32, offSlab bool, maxOrder uint8) (order uint8, num uint32, err error) {
	var fallbackOrder uint8
	var fallbackNum uint32
	haveFallback := false

	for o := uint8(0); o <= maxOrder; o++ {
		n, left := estimate(o, objSize, offSlab)
		if n == 0 {
			continue
		}
		if !haveFallback {
			fallbackOrder, fallbackNum = o, n
			haveFallback = true
		}
		if left*8 <= uint32(arena.PageSize)<<o {
			return o, n, nil
		}
	}
	if haveFallback {
		return fallbackOrder, fallbackNum, nil
	}
	return 0, 0, ErrObjSizeTooLarge.New("chooseLayout")
}

// NewCache builds a Cache per Params, sizing slabs the way
// original_source's _createSlabCache does.
func NewCache(p Params) (*Cache, error) {
	if p.Buddy == nil {
		return nil, fmt.Errorf("slab: Buddy allocator is required")
	}
	if p.ObjSize == 0 {
		return nil, ErrInvalidSize.New("NewCache")
	}

	real := p.ObjSize
	objSize := alignCeil(real, alignSize)

	redZone := p.Flags&FlagRedZone != 0
	if redZone {
		if objSize >= uint32(arena.PageSize)/8 {
			return nil, fmt.Errorf("slab: %s: red zone not allowed on objects >= page/8", p.Name)
		}
		objSize = alignCeil(objSize+2*alignSize, alignSize)
	}

	offSlab := objSize >= uint32(arena.PageSize)/8

	order, num, err := chooseLayout(objSize, offSlab, 10)
	if err != nil {
		return nil, err
	}

	c := &Cache{
		name:        p.Name,
		objSize:     objSize,
		realObjSize: real,
		flags:       p.Flags,
		numPerSlab:  num,
		order:       order,
		offSlab:     offSlab,
		redZone:     redZone,
		buddy:       p.Buddy,
		id:          nextCacheID.Add(1),
		full:        list.New[*Slab](),
		partial:     list.New[*Slab](),
		free:        list.New[*Slab](),
		slabsByID:   make(map[uint64]*Slab),
		nextSlabID:  1,
	}
	return c, nil
}

// ID returns the cache's stable identifier, as stashed in the CacheID
// field of every page descriptor it owns.
func (c *Cache) ID() uint32 { return c.id }

// Name returns the cache's diagnostic name.
func (c *Cache) Name() string { return c.name }

// ObjSize returns the real (caller-visible) object size.
func (c *Cache) ObjSize() uint32 { return c.realObjSize }

// Alloc returns one zero-or-garbage-filled object from the cache,
// growing it with a fresh slab if every existing slab is full.
func (c *Cache) Alloc(flag Flag) ([]byte, error) {
	c.mu.Lock()
	s := c.availableSlabLocked()
	if s == nil {
		c.mu.Unlock()
		if err := c.grow(); err != nil {
			return nil, err
		}
		c.mu.Lock()
		s = c.availableSlabLocked()
		if s == nil {
			c.mu.Unlock()
			return nil, ErrOutOfMemory.New("Alloc")
		}
	}

	obj := c.allocFromSlabLocked(s)
	c.mu.Unlock()

	c.alloced.Add(1)
	n := c.active.Add(1)
	for {
		hm := c.highMark.Load()
		if n <= hm || c.highMark.CompareAndSwap(hm, n) {
			break
		}
	}

	if c.flags&FlagZeroOnAlloc != 0 || flag&FlagZeroOnAlloc != 0 {
		for i := range obj {
			obj[i] = 0
		}
	}
	return obj, nil
}

// availableSlabLocked returns a slab with at least one free object,
// preferring partial slabs over free ones, per original_source's
// _allocObj. Caller holds c.mu.
func (c *Cache) availableSlabLocked() *Slab {
	if n := c.partial.Front(); n != nil {
		return n.Value()
	}
	if n := c.free.Front(); n != nil {
		return n.Value()
	}
	return nil
}

// allocFromSlabLocked pulls one object off s's free chain and moves s
// between lists as needed. Caller holds c.mu.
func (c *Cache) allocFromSlabLocked(s *Slab) []byte {
	idx := s.freeHead
	s.freeHead = s.ctlGet(idx)
	s.inUse++

	if s.link != nil {
		s.link.Remove()
	}
	if s.freeHead == bufctlEnd {
		s.link = c.full.PushBack(s)
	} else {
		s.link = c.partial.PushBack(s)
	}

	obj := s.mem[idx*c.objSize : (idx+1)*c.objSize]
	if c.redZone {
		c.checkRedZone(obj, redMagicInactive, "Alloc")
		binary.LittleEndian.PutUint64(obj, redMagicActive)
		binary.LittleEndian.PutUint64(obj[len(obj)-alignSize:], redMagicActive)
		return obj[alignSize : len(obj)-alignSize]
	}
	return obj
}

func (c *Cache) checkRedZone(obj []byte, want uint64, op string) {
	head := binary.LittleEndian.Uint64(obj)
	tail := binary.LittleEndian.Uint64(obj[len(obj)-alignSize:])
	if head != want || tail != want {
		c.errors.Add(1)
		panic(ErrRedZoneCorrupted.New(op))
	}
}

// Free returns obj to the cache, identifying its owning slab via the
// page descriptor obj's address falls in, mirroring
// addrToJiukunPage/GET_PAGE_SLAB in original_source.
func (c *Cache) Free(obj []byte) {
	if len(obj) == 0 {
		panic(ErrNotOwned.New("Free"))
	}

	raw := obj
	if c.redZone {
		addr := uintptr(unsafe.Pointer(&obj[0])) - alignSize
		raw = unsafe.Slice((*byte)(unsafe.Pointer(addr)), c.objSize)
		c.checkRedZone(raw, redMagicActive, "Free")
		binary.LittleEndian.PutUint64(raw, redMagicInactive)
		binary.LittleEndian.PutUint64(raw[len(raw)-alignSize:], redMagicInactive)
	}

	addr := uintptr(unsafe.Pointer(&raw[0]))
	desc := c.buddy.AddrToPage(addr)
	if !desc.Slab() || desc.CacheID != c.id {
		panic(ErrNotOwned.New("Free"))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slabsByID[desc.SlabID]
	if !ok {
		panic(ErrNotOwned.New("Free"))
	}

	objnr := uint32((addr - uintptr(unsafe.Pointer(&s.mem[0]))) / uintptr(c.objSize))
	if objnr >= c.numPerSlab {
		panic(ErrNotOwned.New("Free"))
	}
	for i := s.freeHead; i != bufctlEnd; i = s.ctlGet(i) {
		if i == objnr {
			c.errors.Add(1)
			panic(ErrDoubleFree.New("Free"))
		}
	}

	s.ctlSet(objnr, s.freeHead)
	s.freeHead = objnr
	c.active.Add(-1)
	s.inUse--

	if s.link != nil {
		s.link.Remove()
	}
	if s.inUse == 0 {
		s.link = c.free.PushBack(s)
	} else {
		s.link = c.partial.PushBack(s)
	}
}

// grow allocates a fresh page run and carves a new, fully-free Slab out
// of it, mirroring original_source's _growSlabCache.
func (c *Cache) grow() error {
	desc, err := c.buddy.Alloc(c.order, buddy.FlagNone)
	if err != nil {
		return err
	}

	mem := c.buddy.PageBytes(desc)
	s := &Slab{desc: desc}

	if c.offSlab {
		s.bufctl = make([]uint32, c.numPerSlab)
		s.mem = mem[:c.numPerSlab*c.objSize]
	} else {
		ctlBytes := alignCeil(c.numPerSlab*4, alignSize)
		s.inlineTail = mem[len(mem)-int(ctlBytes):]
		s.mem = mem[:c.numPerSlab*c.objSize]
	}

	for i := uint32(0); i < c.numPerSlab; i++ {
		if c.redZone {
			obj := s.mem[i*c.objSize : (i+1)*c.objSize]
			binary.LittleEndian.PutUint64(obj, redMagicInactive)
			binary.LittleEndian.PutUint64(obj[len(obj)-alignSize:], redMagicInactive)
		}
		if i+1 < c.numPerSlab {
			s.ctlSet(i, i+1)
		} else {
			s.ctlSet(i, bufctlEnd)
		}
	}
	s.freeHead = 0

	c.mu.Lock()
	slabID := c.nextSlabID
	c.nextSlabID++
	s.slabID = slabID
	c.slabsByID[slabID] = s

	npages := 1 << c.order
	for i := 0; i < npages; i++ {
		pd := c.buddy.Table().At(desc.Index + i)
		pd.SetSlab(true)
		pd.CacheID = c.id
		pd.SlabID = slabID
	}

	s.link = c.free.PushBack(s)
	c.mu.Unlock()

	c.grown.Add(1)
	return nil
}

// Reap frees every fully-free slab back to buddy, mirroring
// original_source's reapJiukunSlab. If noWait is true and the cache is
// busy, Reap returns 0 immediately instead of blocking.
func (c *Cache) Reap(noWait bool) int {
	if c.flags&FlagNoReap != 0 {
		return 0
	}

	if noWait {
		if !c.mu.TryLock() {
			return 0
		}
	} else {
		c.mu.Lock()
	}

	var freed []*Slab
	for n := c.free.Front(); n != nil; n = c.free.Front() {
		s := n.Value()
		n.Remove()
		delete(c.slabsByID, s.slabID)
		freed = append(freed, s)
	}
	c.mu.Unlock()

	for _, s := range freed {
		c.destroySlab(s)
	}
	c.reaped.Add(int64(len(freed)))
	return len(freed)
}

// destroySlab releases a slab's page run back to buddy and clears the
// pages' slab tags, mirroring original_source's _destroySlab.
func (c *Cache) destroySlab(s *Slab) {
	npages := 1 << c.order
	for i := 0; i < npages; i++ {
		pd := c.buddy.Table().At(s.desc.Index + i)
		pd.SetSlab(false)
		pd.CacheID = 0
		pd.SlabID = 0
	}
	c.buddy.Free(s.desc)
}

// Destroy releases every slab in the cache, regardless of list, back to
// buddy. It reports ErrMemoryLeak (without panicking) if any slab still
// had objects in use, matching original_source's "destroy cache slabs"
// leak log.
func (c *Cache) Destroy() error {
	c.mu.Lock()
	c.destroying = true
	var leaked bool
	var all []*Slab
	for _, l := range []*list.List[*Slab]{c.free, c.partial, c.full} {
		for n := l.Front(); n != nil; n = l.Front() {
			s := n.Value()
			n.Remove()
			delete(c.slabsByID, s.slabID)
			if s.inUse != 0 {
				leaked = true
			}
			all = append(all, s)
		}
	}
	c.mu.Unlock()

	for _, s := range all {
		c.destroySlab(s)
	}

	if leaked {
		return ErrMemoryLeak.New("Destroy")
	}
	return nil
}

// Stats is a point-in-time snapshot of a cache's counters, for
// jiukun/metrics.go.
type Stats struct {
	Active   int64
	Alloced  int64
	HighMark int64
	Grown    int64
	Reaped   int64
	Errors   int64
}

// Stats returns the cache's current counters.
func (c *Cache) Stats() Stats {
	return Stats{
		Active:   c.active.Load(),
		Alloced:  c.alloced.Load(),
		HighMark: c.highMark.Load(),
		Grown:    c.grown.Load(),
		Reaped:   c.reaped.Load(),
		Errors:   c.errors.Load(),
	}
}
