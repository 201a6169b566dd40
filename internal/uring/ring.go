// File: internal/uring/ring.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
//go:build linux

package uring

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Ring owns the three memory-mapped regions shared with the kernel (SQ
// ring, CQ ring, SQE array) and the private sqe_head/sqe_tail cursors that
// track SQEs filled but not yet published (spec.md §3).
type Ring struct {
	fd int

	sqMmap  []byte
	cqMmap  []byte
	sqeMmap []byte

	sqHead    *uint32 // kernel-written
	sqTail    *uint32 // we write
	sqMask    uint32
	sqDropped *uint32
	sqArray   []uint32 // ring slot -> SQE index

	cqHead *uint32 // we write
	cqTail *uint32 // kernel-written
	cqMask uint32
	cqes   []CQE

	sqEntries uint32
	sqeHead   uint32 // private: SQEs filled, not yet flushed
	sqeTail   uint32

	fake bool // true for rings built by NewFakeRing: enter() skips the syscall
}

// Setup allocates a ring of the given size (rounded up by the kernel to a
// power of two) and maps its shared memory. entries defaults to 256 in the
// server's configuration layer.
func Setup(entries uint32) (*Ring, error) {
	var params setupParams
	params.SQEntries = entries

	fd, _, errno := unix.Syscall(sysIoUringSetup, uintptr(entries), uintptr(unsafe.Pointer(&params)), 0)
	if errno != 0 {
		return nil, fmt.Errorf("io_uring_setup: %w", errno)
	}

	r := &Ring{fd: int(fd), sqEntries: params.SQEntries}

	sqSize := int(params.SQOff.Array) + int(params.SQEntries)*4
	sqMmap, err := unix.Mmap(r.fd, offSQRing, sqSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Close(r.fd)
		return nil, fmt.Errorf("mmap SQ ring: %w", err)
	}
	r.sqMmap = sqMmap

	cqSize := int(params.CQOff.CQEs) + int(params.CQEntries)*int(unsafe.Sizeof(CQE{}))
	cqMmap, err := unix.Mmap(r.fd, offCQRing, cqSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Munmap(r.sqMmap)
		unix.Close(r.fd)
		return nil, fmt.Errorf("mmap CQ ring: %w", err)
	}
	r.cqMmap = cqMmap

	sqeSize := int(params.SQEntries) * int(unsafe.Sizeof(SQE{}))
	sqeMmap, err := unix.Mmap(r.fd, offSQEs, sqeSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED|unix.MAP_POPULATE)
	if err != nil {
		unix.Munmap(r.cqMmap)
		unix.Munmap(r.sqMmap)
		unix.Close(r.fd)
		return nil, fmt.Errorf("mmap SQE array: %w", err)
	}
	r.sqeMmap = sqeMmap

	r.sqHead = (*uint32)(unsafe.Pointer(&r.sqMmap[params.SQOff.Head]))
	r.sqTail = (*uint32)(unsafe.Pointer(&r.sqMmap[params.SQOff.Tail]))
	r.sqMask = *(*uint32)(unsafe.Pointer(&r.sqMmap[params.SQOff.RingMask]))
	r.sqDropped = (*uint32)(unsafe.Pointer(&r.sqMmap[params.SQOff.Dropped]))
	r.sqArray = unsafe.Slice((*uint32)(unsafe.Pointer(&r.sqMmap[params.SQOff.Array])), params.SQEntries)

	r.cqHead = (*uint32)(unsafe.Pointer(&r.cqMmap[params.CQOff.Head]))
	r.cqTail = (*uint32)(unsafe.Pointer(&r.cqMmap[params.CQOff.Tail]))
	r.cqMask = *(*uint32)(unsafe.Pointer(&r.cqMmap[params.CQOff.RingMask]))
	r.cqes = unsafe.Slice((*CQE)(unsafe.Pointer(&r.cqMmap[params.CQOff.CQEs])), params.CQEntries)

	return r, nil
}

// ErrQueueFull is returned by GetSQE when the SQ is saturated. It is not
// fatal (spec.md §4.1): the caller drops the submission.
var ErrQueueFull = fmt.Errorf("submission queue full")

// GetSQE reserves the next private SQE slot, zeroes it, and returns a
// pointer the caller fills in. The caller must never touch sqe_tail
// directly; FlushSQ/Submit own that bookkeeping.
func (r *Ring) GetSQE() (*SQE, error) {
	head := atomic.LoadUint32(r.sqHead) // acquire
	if r.sqeTail+1-head > r.sqEntries {
		return nil, ErrQueueFull
	}
	idx := r.sqeTail & r.sqMask
	sqe := r.sqeAt(idx)
	*sqe = SQE{}
	r.sqeTail++
	return sqe, nil
}

func (r *Ring) sqeAt(idx uint32) *SQE {
	base := unsafe.Pointer(&r.sqeMmap[0])
	return (*SQE)(unsafe.Add(base, uintptr(idx)*unsafe.Sizeof(SQE{})))
}

// FlushSQ publishes every SQE filled since the last flush into the kernel
// -visible sq_array and advances sq_tail with release ordering. It returns
// the number of SQEs made visible.
func (r *Ring) FlushSQ() uint32 {
	kernelTail := atomic.LoadUint32(r.sqTail)
	var flushed uint32
	for r.sqeHead != r.sqeTail {
		idx := r.sqeHead & r.sqMask
		r.sqArray[kernelTail&r.sqMask] = idx
		kernelTail++
		r.sqeHead++
		flushed++
	}
	if flushed > 0 {
		atomic.StoreUint32(r.sqTail, kernelTail) // release
	}
	return flushed
}

// enter invokes io_uring_enter directly. Fake rings (see NewFakeRing) never
// reach the kernel: their completions are injected directly via PushCQE, so
// there is nothing for a real io_uring_enter call to do.
func (r *Ring) enter(toSubmit, minComplete, flags uint32) (int, error) {
	if r.fake {
		return int(toSubmit), nil
	}
	n, _, errno := unix.Syscall6(sysIoUringEnter, uintptr(r.fd), uintptr(toSubmit), uintptr(minComplete), uintptr(flags), 0, 0)
	if errno != 0 {
		return 0, fmt.Errorf("io_uring_enter: %w", errno)
	}
	return int(n), nil
}

// Submit flushes pending SQEs and submits them without waiting for
// completions.
func (r *Ring) Submit() (int, error) {
	n := r.FlushSQ()
	if n == 0 {
		return 0, nil
	}
	return r.enter(n, 0, 0)
}

// SubmitAndWait flushes pending SQEs, submits them, and blocks until at
// least waitNr completions are available.
func (r *Ring) SubmitAndWait(waitNr uint32) (int, error) {
	n := r.FlushSQ()
	return r.enter(n, waitNr, EnterGetEvents)
}

// CQHeadTail snapshots the completion queue bounds with acquire ordering
// on the kernel-written tail.
func (r *Ring) CQHeadTail() (head, tail uint32) {
	head = atomic.LoadUint32(r.cqHead)
	tail = atomic.LoadUint32(r.cqTail) // acquire
	return
}

// CQEAt returns the completion queue entry at ring position pos (an
// absolute, unsigned-wrapping counter, not yet masked).
func (r *Ring) CQEAt(pos uint32) *CQE {
	return &r.cqes[pos&r.cqMask]
}

// AdvanceCQHead publishes a new cq_head with release ordering after the
// caller has drained completions up to newHead.
func (r *Ring) AdvanceCQHead(newHead uint32) {
	atomic.StoreUint32(r.cqHead, newHead) // release
}

// RegisterBuffers would perform IORING_REGISTER_BUFFERS for zero-copy
// submission. It is implemented for interface completeness but never
// invoked by the core loop (spec.md Open Questions / Non-goals).
func (r *Ring) RegisterBuffers(iovecs []unix.Iovec) error {
	const ioRingRegisterBuffers = 0
	_, _, errno := unix.Syscall6(sysIoUringRegister, uintptr(r.fd), uintptr(ioRingRegisterBuffers),
		uintptr(unsafe.Pointer(&iovecs[0])), uintptr(len(iovecs)), 0, 0)
	if errno != 0 {
		return fmt.Errorf("io_uring_register: %w", errno)
	}
	return nil
}

// Close tears down the mapped regions and the ring fd.
func (r *Ring) Close() error {
	if r.sqeMmap != nil {
		unix.Munmap(r.sqeMmap)
	}
	if r.cqMmap != nil {
		unix.Munmap(r.cqMmap)
	}
	if r.sqMmap != nil {
		unix.Munmap(r.sqMmap)
	}
	return unix.Close(r.fd)
}
