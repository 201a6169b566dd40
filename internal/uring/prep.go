// File: internal/uring/prep.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// SQE preparation helpers for the four operations the core loop submits.
// Mirrors the Prep* family the pack's io_uring bindings expose (e.g.
// Ring.PrepAccept/PrepSend/PrepRecv/PrepClose).
//
//go:build linux

package uring

import "unsafe"

// PrepAccept prepares an accept on the listening socket fd. addrLen is
// filled by the kernel but unused by the core loop, which treats accept as
// address-agnostic.
func (r *Ring) PrepAccept(fd int32, addr unsafe.Pointer, addrLen *uint32, userData uint64) error {
	sqe, err := r.GetSQE()
	if err != nil {
		return err
	}
	sqe.Opcode = OpAccept
	sqe.Fd = fd
	sqe.Addr = uint64(uintptr(addr))
	sqe.Off = uint64(uintptr(unsafe.Pointer(addrLen)))
	sqe.UserData = userData
	return nil
}

// PrepRecv prepares a recv of up to len(buf) bytes on fd into buf.
func (r *Ring) PrepRecv(fd int32, buf []byte, userData uint64) error {
	sqe, err := r.GetSQE()
	if err != nil {
		return err
	}
	sqe.Opcode = OpRecv
	sqe.Fd = fd
	if len(buf) > 0 {
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	sqe.Len = uint32(len(buf))
	sqe.UserData = userData
	return nil
}

// PrepSend prepares a send of buf on fd.
func (r *Ring) PrepSend(fd int32, buf []byte, userData uint64) error {
	sqe, err := r.GetSQE()
	if err != nil {
		return err
	}
	sqe.Opcode = OpSend
	sqe.Fd = fd
	if len(buf) > 0 {
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	sqe.Len = uint32(len(buf))
	sqe.UserData = userData
	return nil
}

// PrepClose prepares a close of fd.
func (r *Ring) PrepClose(fd int32, userData uint64) error {
	sqe, err := r.GetSQE()
	if err != nil {
		return err
	}
	sqe.Opcode = OpClose
	sqe.Fd = fd
	sqe.UserData = userData
	return nil
}
