// File: internal/uring/fake.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// NewFakeRing backs a Ring with plain Go slices instead of mmap'd kernel
// memory, so packages that drive a Ring (internal/server's dispatch loop)
// can be exercised in tests without a kernel that supports io_uring.
//
//go:build linux

package uring

import "unsafe"

// NewFakeRing builds a Ring whose SQ/CQ bookkeeping lives entirely over Go
// slices. GetSQE, FlushSQ, Submit, and SubmitAndWait run the same
// bookkeeping as against a real ring; enter() is short-circuited so no
// syscall is ever made. Nothing consumes published SQEs, so sq_head stays
// put and GetSQE returns ErrQueueFull once sqEntries SQEs have been
// reserved in total, unless the caller advances sq_head itself.
// Completions are injected with PushCQE rather than arriving from the
// kernel.
func NewFakeRing(sqEntries, cqEntries uint32) *Ring {
	r := &Ring{sqEntries: sqEntries, fake: true}

	sqHeadTail := make([]uint32, 2)
	r.sqHead = &sqHeadTail[0]
	r.sqTail = &sqHeadTail[1]
	r.sqMask = sqEntries - 1
	r.sqArray = make([]uint32, sqEntries)

	sqes := make([]SQE, sqEntries)
	r.sqeMmap = unsafe.Slice((*byte)(unsafe.Pointer(&sqes[0])), int(sqEntries)*int(unsafe.Sizeof(SQE{})))

	cqHeadTail := make([]uint32, 2)
	r.cqHead = &cqHeadTail[0]
	r.cqTail = &cqHeadTail[1]
	r.cqMask = cqEntries - 1
	r.cqes = make([]CQE, cqEntries)

	return r
}

// PushCQE appends a synthetic completion to the fake ring's completion
// queue and advances its kernel-visible tail, as if the kernel had just
// written it. Only valid on rings built by NewFakeRing.
func (r *Ring) PushCQE(cqe CQE) {
	tail := *r.cqTail
	r.cqes[tail&r.cqMask] = cqe
	*r.cqTail = tail + 1
}
