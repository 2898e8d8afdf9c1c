// Package memory provides an Arrow allocator that reports its usage.
package memory

import (
	"sync/atomic"

	"github.com/apache/arrow-go/v18/arrow/memory"
)

// TrackedAllocator wraps a memory.Allocator and tracks live and peak bytes.
type TrackedAllocator struct {
	underlying memory.Allocator
	bytesUsed  atomic.Int64
	peak       atomic.Int64
}

// NewTrackedAllocator wraps underlying, or the Go allocator when it is nil.
func NewTrackedAllocator(underlying memory.Allocator) *TrackedAllocator {
	if underlying == nil {
		underlying = memory.NewGoAllocator()
	}
	return &TrackedAllocator{underlying: underlying}
}

// Allocate implements memory.Allocator.
func (a *TrackedAllocator) Allocate(size int) []byte {
	a.add(int64(size))
	return a.underlying.Allocate(size)
}

// Reallocate implements memory.Allocator.
func (a *TrackedAllocator) Reallocate(size int, b []byte) []byte {
	a.add(int64(size - len(b)))
	return a.underlying.Reallocate(size, b)
}

// Free implements memory.Allocator.
func (a *TrackedAllocator) Free(b []byte) {
	a.bytesUsed.Add(-int64(len(b)))
	a.underlying.Free(b)
}

func (a *TrackedAllocator) add(n int64) {
	used := a.bytesUsed.Add(n)
	for {
		peak := a.peak.Load()
		if used <= peak || a.peak.CompareAndSwap(peak, used) {
			return
		}
	}
}

// BytesUsed returns the bytes currently allocated.
func (a *TrackedAllocator) BytesUsed() int64 {
	return a.bytesUsed.Load()
}

// PeakBytes returns the highest BytesUsed observed.
func (a *TrackedAllocator) PeakBytes() int64 {
	return a.peak.Load()
}
