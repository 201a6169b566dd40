// File: internal/ioarena/arena.go
// Package ioarena implements the slot table of in-flight IoRequest records,
// the opaque context the ring returns untouched in cqe.user_data.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Design notes (spec.md §9, revised): io_uring gives no guarantee a
// submission's completion arrives within the same loop iteration it was
// posted in — a recv or send can still be in flight several iterations
// later. A blanket per-iteration reset (the original bump-allocator shape)
// would therefore free a slot still referenced by an outstanding *Request,
// letting a later Alloc overwrite it out from under the earlier submission
// (spec.md §3's "a request pointer must remain valid until its CQE has
// been consumed" invariant). This follows the teacher's pool.ObjectPool
// shape (pool/objpool.go) more literally than the original design did: a
// slot is only returned to the free list once the dispatcher has actually
// consumed that slot's own CQE (see internal/server/dispatch.go's Free
// call at the end of every dispatch), never on a loop-iteration boundary.
package ioarena

// Op enumerates the io_uring operations the server loop submits.
type Op int

const (
	OpAccept Op = iota
	OpRecv
	OpSend
	OpClose
)

func (o Op) String() string {
	switch o {
	case OpAccept:
		return "accept"
	case OpRecv:
		return "recv"
	case OpSend:
		return "send"
	case OpClose:
		return "close"
	default:
		return "unknown"
	}
}

// Request is one in-flight submission's context, referenced through
// user_data by a stable pointer for the lifetime of the submission. slot
// records this record's position in the owning Arena so Free can return it
// to the free list without a separate lookup.
type Request struct {
	Op        Op
	Fd        int32
	BufferIdx uint16

	slot int
}

// Arena is a slot table of *Request records. Alloc reuses a slot freed by
// a prior Free call when one is available, and only grows the backing
// slice when every existing slot is still in flight. A *Request handed out
// by Alloc remains valid and un-reused until the caller explicitly Frees
// it — never on a timer or loop-iteration boundary — which is what makes
// it safe for completions to arrive arbitrarily many iterations after
// their submission.
type Arena struct {
	records []Request
	free    []int
}

// New creates an arena pre-sized for an expected number of in-flight
// requests; it grows past this if more are needed.
func New(initialCapacity int) *Arena {
	if initialCapacity <= 0 {
		initialCapacity = 16
	}
	return &Arena{records: make([]Request, 0, initialCapacity)}
}

// Alloc reserves a slot — reusing one most recently Freed if any exist,
// otherwise growing the backing slice — and returns a pointer to it. The
// pointer remains valid and exclusively owned by the caller until Free is
// called with it.
func (a *Arena) Alloc(op Op, fd int32, bufIdx uint16) *Request {
	var idx int
	if n := len(a.free); n > 0 {
		idx = a.free[n-1]
		a.free = a.free[:n-1]
	} else {
		a.records = append(a.records, Request{})
		idx = len(a.records) - 1
	}
	r := &a.records[idx]
	*r = Request{Op: op, Fd: fd, BufferIdx: bufIdx, slot: idx}
	return r
}

// Free returns r's slot to the free list. Must only be called once r's own
// CQE has been fully consumed by the dispatcher (spec.md §3 invariant); r
// must not be accessed again afterward.
func (a *Arena) Free(r *Request) {
	a.free = append(a.free, r.slot)
}

// Len reports how many slots are currently allocated (in flight).
func (a *Arena) Len() int { return len(a.records) - len(a.free) }
