package jiukun

import (
	"sync/atomic"

	"github.com/jiufeng-go/jiufeng/internal/jiukun/buddy"
)

// metrics holds the façade-level atomic counters backing MetricsSnapshot.
// Per-cache counters (Stats) already track active/alloced/grown/reaped
// per cache; these roll the same events up across every cache so a
// caller doesn't have to enumerate caches to get a pool-wide picture.
type metrics struct {
	objectsAllocated atomic.Int64
	objectsFreed     atomic.Int64
	bytesInUse       atomic.Int64
	reapedSlabs      atomic.Int64
}

// MetricsSnapshot is a point-in-time read of jiukun's pool-wide counters,
// per spec.md §4.4.
type MetricsSnapshot struct {
	// PagesAllocated is the number of arena pages currently part of an
	// allocated run (not a cumulative counter — reread any time).
	PagesAllocated uint64
	// PagesFreed is the number of arena pages currently sitting on a
	// buddy free list.
	PagesFreed uint64
	// ObjectsAllocated/ObjectsFreed are cumulative counts of AllocBytes/
	// FreeBytes calls that succeeded, across every general cache;
	// ObjectsFreed also counts FreeBytes calls on custom-cache objects.
	ObjectsAllocated uint64
	ObjectsFreed     uint64
	// CacheGrowths is the cumulative count of slabs grown across every
	// general and custom cache.
	CacheGrowths uint64
	// ReapedSlabs is the cumulative count of slabs released back to
	// buddy by Reap calls.
	ReapedSlabs uint64
	// BytesInUse is the sum of general-cache size classes currently
	// outstanding via AllocBytes (approximate: tracks the size class, not
	// the caller's requested n).
	BytesInUse uint64
}

// Metrics returns a snapshot of jiukun's pool-wide counters. Returns the
// zero value if jiukun is not initialized.
func Metrics() MetricsSnapshot {
	mu.Lock()
	m := mgr
	mu.Unlock()
	if m == nil {
		return MetricsSnapshot{}
	}

	var pagesAllocated, pagesFreed uint64
	total := uint64(m.buddy.NPages())
	for k := uint8(0); k <= buddy.MaxOrder; k++ {
		pagesFreed += uint64(m.buddy.FreePagesAtOrder(k)) * (1 << k)
	}
	if pagesFreed <= total {
		pagesAllocated = total - pagesFreed
	}

	var cacheGrowths uint64
	for _, c := range m.classes {
		cacheGrowths += uint64(c.Stats().Grown)
	}
	m.customMu.Lock()
	for _, c := range m.customCaches {
		cacheGrowths += uint64(c.Stats().Grown)
	}
	m.customMu.Unlock()

	return MetricsSnapshot{
		PagesAllocated:   pagesAllocated,
		PagesFreed:       pagesFreed,
		ObjectsAllocated: uint64(m.metrics.objectsAllocated.Load()),
		ObjectsFreed:     uint64(m.metrics.objectsFreed.Load()),
		CacheGrowths:     cacheGrowths,
		ReapedSlabs:      uint64(m.metrics.reapedSlabs.Load()),
		BytesInUse:       uint64(m.metrics.bytesInUse.Load()),
	}
}
