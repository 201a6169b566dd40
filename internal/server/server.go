// File: internal/server/server.go
// Package server drives the single-threaded op state machine described in
// spec.md §4.4: submit → drain completions → dispatch by op → submit
// again. Grounded on the teacher's internal/concurrency/eventloop.go (the
// drain-then-dispatch shape) and internal/transport/transport_linux_uring.go
// (the accept/recv/send/close wiring against a raw io_uring instance).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
//go:build linux

package server

import (
	"fmt"
	"net"

	"github.com/candtechsoftware/zever/internal/bufpool"
	"github.com/candtechsoftware/zever/internal/config"
	"github.com/candtechsoftware/zever/internal/conntable"
	"github.com/candtechsoftware/zever/internal/ioarena"
	"github.com/candtechsoftware/zever/internal/telemetry"
	"github.com/candtechsoftware/zever/internal/uring"
	"golang.org/x/sys/unix"
)

// Server owns the listening socket, the ring, the buffer pool, the
// connection table, and the IoRequest slot table. It is not safe
// for concurrent use: every method here runs on the single loop thread
// (spec.md §5).
type Server struct {
	cfg *config.ServerConfig

	listenFd int
	ring     *uring.Ring
	pool     *bufpool.Pool
	conns    *conntable.Table
	arena    *ioarena.Arena
	sink     *telemetry.Sink

	running bool
}

// New constructs a Server bound to cfg.Host:cfg.Port. It performs every
// setup-fatal step spec.md §7 names: socket/bind/listen, ring setup, and
// pool allocation. Any failure here aborts startup with the OS error.
func New(cfg *config.ServerConfig, sink *telemetry.Sink) (*Server, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("setsockopt SO_REUSEADDR: %w", err)
	}

	addr, err := resolveAddr(cfg.Host, cfg.Port)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	if err := unix.Bind(fd, addr); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("bind: %w", err)
	}
	if err := unix.Listen(fd, 128); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("listen: %w", err)
	}

	r, err := uring.Setup(cfg.QueueDepth)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("ring setup: %w", err)
	}

	pool, err := bufpool.New(cfg.BufferCount, cfg.BufferSize)
	if err != nil {
		r.Close()
		unix.Close(fd)
		return nil, err
	}

	return &Server{
		cfg:      cfg,
		listenFd: fd,
		ring:     r,
		pool:     pool,
		conns:    conntable.New(),
		arena:    ioarena.New(int(cfg.QueueDepth)),
		sink:     sink,
	}, nil
}

func resolveAddr(host string, port uint16) (unix.Sockaddr, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		return nil, fmt.Errorf("resolveAddr: invalid IPv4 host %q", host)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("resolveAddr: %q is not an IPv4 address", host)
	}
	var addr [4]byte
	copy(addr[:], ip4)
	return &unix.SockaddrInet4{Port: int(port), Addr: addr}, nil
}

// Serve posts the initial accept and runs the loop until Stop is called.
func (s *Server) Serve() error {
	s.running = true
	if err := s.postAccept(); err != nil {
		return fmt.Errorf("initial accept: %w", err)
	}
	if _, err := s.ring.Submit(); err != nil {
		return fmt.Errorf("initial submit: %w", err)
	}

	for s.running {
		if err := s.runIteration(); err != nil {
			return err
		}
	}
	return nil
}

// runIteration executes one pass of spec.md §4.4's five steps. There is no
// per-iteration arena reset: a submission posted in this iteration may not
// complete until several iterations later, so each IoRequest slot is freed
// individually by dispatch once its own CQE has been consumed, never on an
// iteration boundary (internal/ioarena.Arena.Free; spec.md §3).
func (s *Server) runIteration() error {
	if _, err := s.ring.SubmitAndWait(1); err != nil {
		return fmt.Errorf("submit_and_wait: %w", err)
	}

	head, tail := s.ring.CQHeadTail()
	for pos := head; pos != tail; pos++ {
		cqe := s.ring.CQEAt(pos)
		s.dispatch(cqe)
	}
	s.ring.AdvanceCQHead(tail)

	if _, err := s.ring.Submit(); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	return nil
}

// Stop requests orderly shutdown: the listening socket is closed and the
// loop exits at the top of its next iteration. Completions reaped in the
// current iteration are dispatched normally; operations still in flight
// after that are not awaited.
func (s *Server) Stop() {
	s.running = false
	unix.Close(s.listenFd)
}

// Close closes the fd of every surviving connection, then the ring. The
// pool has no teardown step; its slab is left to the garbage collector.
// Must only be called after Serve has returned.
func (s *Server) Close() {
	s.conns.Range(func(c *conntable.Connection) {
		unix.Close(int(c.Fd))
	})
	s.ring.Close()
}
