// File: internal/server/dispatch.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Per-CQE dispatch implementing the op state machine from spec.md §4.4:
// accept -> recv -> parse -> send -> close.
//
//go:build linux

package server

import (
	"errors"
	"fmt"
	"unsafe"

	"github.com/candtechsoftware/zever/internal/httpparse"
	"github.com/candtechsoftware/zever/internal/ioarena"
	"github.com/candtechsoftware/zever/internal/telemetry"
	"github.com/candtechsoftware/zever/internal/uring"
)

// errBufferPoolExhausted is returned by postRecv when every pool slot is
// currently in use; the caller logs it and drops that recv rather than
// treating it as fatal (spec.md §4.4 back-pressure). Nothing re-posts the
// dropped recv later.
var errBufferPoolExhausted = errors.New("server: buffer pool exhausted")

// dispatch handles a single CQE, matching spec.md §4.4's defensive
// zero-user_data skip, negative-res error path, and per-op success path.
// req's slot is returned to the arena's free list exactly once, after this
// CQE — and only this CQE — has been fully handled; req must not be
// touched again afterward.
func (s *Server) dispatch(cqe *uring.CQE) {
	if cqe.UserData == 0 {
		s.warn(0, "dispatch", "completion with zero user_data, skipping")
		return
	}
	req := (*ioarena.Request)(unsafe.Pointer(uintptr(cqe.UserData)))
	defer s.arena.Free(req)

	if cqe.Res < 0 {
		s.handleAsyncError(req, cqe.Res)
		return
	}

	switch req.Op {
	case ioarena.OpAccept:
		s.onAccept(cqe.Res)
	case ioarena.OpRecv:
		s.onRecv(req, cqe.Res)
	case ioarena.OpSend:
		s.onSend(req)
	case ioarena.OpClose:
		s.onClose(req.Fd)
	}
}

// handleAsyncError implements spec.md §7 item 3: log the errno, recycle
// any borrowed buffer, and schedule a close if the fd is still tracked.
func (s *Server) handleAsyncError(req *ioarena.Request, res int32) {
	s.errorf(req.Fd, req.Op.String(), "cqe error: %d", res)
	if req.Op == ioarena.OpRecv || req.Op == ioarena.OpSend {
		s.pool.Put(req.BufferIdx)
	}
	if _, ok := s.conns.Get(req.Fd); ok {
		s.postClose(req.Fd)
	}
}

// onAccept handles a successful accept completion: res is the new client
// fd. A fresh recv is posted for it, and — if the server is still
// running — the listening socket is re-armed with another accept.
func (s *Server) onAccept(newFd int32) {
	s.conns.Insert(newFd)
	s.sink.Post(telemetry.Record{Level: telemetry.LevelDebug, Op: "accept", Fd: newFd, Message: "accepted"})

	if err := s.postRecv(newFd); err != nil {
		s.warn(newFd, "recv", "back-pressure: "+err.Error())
	}
	if s.running {
		if err := s.postAccept(); err != nil {
			s.warn(0, "accept", "back-pressure: "+err.Error())
		}
	}
	if _, err := s.ring.Submit(); err != nil {
		s.errorf(0, "submit", "%v", err)
	}
}

// onRecv handles a successful recv completion. res==0 means the peer
// closed; otherwise the bytes are appended to the connection's reassembly
// buffer, the borrowed buffer is recycled immediately, and the parser is
// re-run over everything accumulated so far.
func (s *Server) onRecv(req *ioarena.Request, res int32) {
	conn, ok := s.conns.Get(req.Fd)
	if !ok {
		s.pool.Put(req.BufferIdx)
		return
	}

	if res == 0 {
		s.pool.Put(req.BufferIdx)
		s.postClose(req.Fd)
		return
	}

	conn.Append(s.pool.Bytes(req.BufferIdx)[:res])
	s.pool.Put(req.BufferIdx)
	s.sink.Post(telemetry.Record{Level: telemetry.LevelDebug, Op: "recv", Fd: req.Fd, Message: "appended bytes"})

	result := httpparse.ParseHead(conn.Buf)
	switch result.Status {
	case httpparse.Incomplete:
		if err := s.postRecv(req.Fd); err != nil {
			s.warn(req.Fd, "recv", "back-pressure: "+err.Error())
		}
	case httpparse.Error:
		s.postSend(req.Fd, formatBadRequest())
	case httpparse.Complete:
		s.postSend(req.Fd, formatEcho(&result.Req, conn.Buf))
	}
}

// onSend handles a send completion: the buffer is recycled, the
// connection is torn down, and a close is posted for the fd (spec.md §4.4
// — the loop always closes after one response; no keep-alive).
func (s *Server) onSend(req *ioarena.Request) {
	s.pool.Put(req.BufferIdx)
	s.conns.Remove(req.Fd)
	s.sink.Post(telemetry.Record{Level: telemetry.LevelDebug, Op: "send", Fd: req.Fd, Message: "response sent"})
	s.postClose(req.Fd)
}

// onClose removes the connection table entry if still present. Idempotent:
// closing an already-absent fd is a no-op (spec.md §8).
func (s *Server) onClose(fd int32) {
	s.conns.Remove(fd)
	s.sink.Post(telemetry.Record{Level: telemetry.LevelDebug, Op: "close", Fd: fd, Message: "closed"})
}

func (s *Server) warn(fd int32, op, msg string) {
	s.sink.Post(telemetry.Record{Level: telemetry.LevelWarn, Op: op, Fd: fd, Message: msg})
}

func (s *Server) errorf(fd int32, op, format string, args ...any) {
	s.sink.Post(telemetry.Record{Level: telemetry.LevelError, Op: op, Fd: fd, Message: fmt.Sprintf(format, args...)})
}

// postAccept submits an accept on the listening socket. Back-pressure
// (queue full) is non-fatal: the caller logs it, and no later iteration
// posts another accept, so the listening socket then has none outstanding.
// The reserved arena slot is freed immediately if the submission itself
// never made it onto the ring, since no CQE will ever arrive to free it.
func (s *Server) postAccept() error {
	req := s.arena.Alloc(ioarena.OpAccept, int32(s.listenFd), 0)
	if err := s.ring.PrepAccept(int32(s.listenFd), nil, nil, uint64(uintptr(unsafe.Pointer(req)))); err != nil {
		s.arena.Free(req)
		s.sink.Post(telemetry.Record{Level: telemetry.LevelWarn, Op: "reject", Fd: int32(s.listenFd), Message: "accept dropped: " + err.Error()})
		return err
	}
	return nil
}

// postRecv reserves a buffer and submits a recv for fd. If the pool is
// exhausted or the SQ is full, the reservation (if any) is released and
// the error is returned so the caller can back off for this iteration.
func (s *Server) postRecv(fd int32) error {
	idx, buf, ok := s.pool.Get()
	if !ok {
		return errBufferPoolExhausted
	}
	req := s.arena.Alloc(ioarena.OpRecv, fd, idx)
	if err := s.ring.PrepRecv(fd, buf, uint64(uintptr(unsafe.Pointer(req)))); err != nil {
		s.pool.Put(idx)
		s.arena.Free(req)
		return err
	}
	return nil
}

// postSend submits a send of resp on fd. The response bytes are copied
// into a pooled buffer so their lifetime matches the borrowed-buffer
// discipline the ring requires. On back-pressure (pool exhausted or SQ
// full) the submission is abandoned, as postRecv does for recv: any
// reserved buffer is returned to the pool and the connection is left in
// the table — it is not torn down here. Nothing re-posts the send later,
// so the connection then has no operation outstanding until Close.
func (s *Server) postSend(fd int32, resp []byte) {
	idx, buf, ok := s.pool.Get()
	if !ok {
		s.warn(fd, "send", "back-pressure: buffer pool exhausted")
		return
	}
	n := copy(buf, resp)
	req := s.arena.Alloc(ioarena.OpSend, fd, idx)
	if err := s.ring.PrepSend(fd, buf[:n], uint64(uintptr(unsafe.Pointer(req)))); err != nil {
		s.pool.Put(idx)
		s.arena.Free(req)
		s.warn(fd, "send", "back-pressure: "+err.Error())
		return
	}
}

// postClose submits a close for fd.
func (s *Server) postClose(fd int32) {
	req := s.arena.Alloc(ioarena.OpClose, fd, 0)
	if err := s.ring.PrepClose(fd, uint64(uintptr(unsafe.Pointer(req)))); err != nil {
		s.arena.Free(req)
		s.warn(fd, "close", "back-pressure: "+err.Error())
	}
}
