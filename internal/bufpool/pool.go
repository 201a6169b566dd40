// File: internal/bufpool/pool.go
// Package bufpool implements the fixed-size buffer slab shared between the
// recv and send paths of the event loop.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// The pool is conceptually immutable after construction: a single
// contiguous allocation is carved into BufferCount equal slots, and
// ownership of a slot moves exclusively through the free-index queue.
// No per-Get/Put allocation or locking happens on the hot path.
package bufpool

import (
	"fmt"

	"github.com/candtechsoftware/zever/internal/queue"
)

// Pool is a slab of BufferCount buffers of BufferSize bytes, indexed by a
// uint16 slot id recycled through a single-producer/single-consumer queue.
type Pool struct {
	slab   []byte
	size   int
	count  int
	free   *queue.IndexQueue
	allocs int64
	frees  int64
}

// New allocates a pool of count buffers of size bytes each. count may be at
// most 1<<16, so every slot index fits in a uint16 (spec.md: buffer indices
// are u16).
func New(count, size int) (*Pool, error) {
	if count <= 0 || size <= 0 {
		return nil, fmt.Errorf("bufpool: count and size must be positive, got count=%d size=%d", count, size)
	}
	if count > 1<<16 {
		return nil, fmt.Errorf("bufpool: count %d exceeds u16 index space", count)
	}
	p := &Pool{
		slab:  make([]byte, count*size),
		size:  size,
		count: count,
		free:  queue.NewIndexQueue(count),
	}
	for i := 0; i < count; i++ {
		if !p.free.Enqueue(uint16(i)) {
			return nil, fmt.Errorf("bufpool: free queue rejected initial index %d", i)
		}
	}
	return p, nil
}

// Get reserves a free slot and returns its index along with the byte slice
// backing it. ok is false when every slot is currently in use (the
// server's recv/send helpers then drop that submission; see spec.md §4.4).
func (p *Pool) Get() (idx uint16, buf []byte, ok bool) {
	idx, ok = p.free.Dequeue()
	if !ok {
		return 0, nil, false
	}
	p.allocs++
	return idx, p.Bytes(idx), true
}

// Put returns idx to the free set. It is always safe to call regardless of
// whether the associated CQE succeeded or failed (spec.md §4.2).
func (p *Pool) Put(idx uint16) {
	if int(idx) >= p.count {
		return
	}
	if p.free.Enqueue(idx) {
		p.frees++
	}
}

// Bytes returns the slice backing slot idx without affecting ownership.
func (p *Pool) Bytes(idx uint16) []byte {
	start := int(idx) * p.size
	return p.slab[start : start+p.size]
}

// Count returns the number of slots in the slab.
func (p *Pool) Count() int { return p.count }

// Size returns the per-slot byte size.
func (p *Pool) Size() int { return p.size }

// Stats reports cumulative allocation/free counters and the number of
// slots currently free, for the telemetry sink.
type Stats struct {
	Allocs int64
	Frees  int64
	Free   int
	Total  int
}

// Stats returns a point-in-time snapshot of pool usage.
func (p *Pool) Stats() Stats {
	return Stats{
		Allocs: p.allocs,
		Frees:  p.frees,
		Free:   p.free.Len(),
		Total:  p.count,
	}
}
