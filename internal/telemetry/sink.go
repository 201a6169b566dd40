// File: internal/telemetry/sink.go
// Package telemetry offloads logging and metrics recording off the
// event-loop thread, so a slow stderr write or counter update never stalls
// the single-threaded ring dispatch (spec.md §5: handlers must stay
// non-blocking).
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Grounded on internal/concurrency.Executor: an eapache/queue-backed task
// queue drained by a small fixed worker pool. Unlike the teacher's
// executor, this one never touches request handling — it only drains
// Record values the loop posts after each CQE. Posting costs the loop a
// short mutex-guarded queue append; the stderr writes happen on the
// workers.
package telemetry

import (
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
)

// Record is one telemetry event posted by the event loop.
type Record struct {
	Level   Level
	Op      string
	Fd      int32
	Message string
}

// Level mirrors the severity the teacher's ad-hoc log lines imply.
type Level int

const (
	LevelDebug Level = iota
	LevelWarn
	LevelError
)

// ParseLevel maps a config string (e.g. config.ServerConfig.LogLevel) onto
// a Level. Unrecognized values fall back to LevelDebug rather than erroring,
// since a bad --log-level flag shouldn't keep the server from starting.
func ParseLevel(s string) Level {
	switch s {
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelDebug
	}
}

// Counters tracks cumulative operation outcomes for the shutdown summary
// cmd/ringhttpd prints (control.MetricsRegistry's role in the teacher).
type Counters struct {
	Accepts  atomic.Int64
	Recvs    atomic.Int64
	Sends    atomic.Int64
	Closes   atomic.Int64
	Errors   atomic.Int64
	Rejected atomic.Int64 // records posted with Op "reject": accept submissions dropped due to back-pressure; dropped recv/send/close submissions are counted under their own op
}

// Sink drains posted Records on background workers and accumulates
// Counters. The queue is unbounded, so Post never drops or rejects a
// record; it only waits for the short mutex guarding the queue.
type Sink struct {
	logger   *log.Logger
	queue    *queue.Queue
	mu       sync.Mutex
	notify   chan struct{}
	stop     chan struct{}
	wg       sync.WaitGroup
	minLevel atomic.Int32
	Counts   Counters
}

// New creates a Sink with numWorkers background drains. minLevel sets the
// initial logging threshold (records below it are still counted but not
// printed); SetMinLevel can raise or lower it later, e.g. from a
// config.Store reload hook.
func New(numWorkers int, minLevel Level) *Sink {
	if numWorkers <= 0 {
		numWorkers = 2
	}
	s := &Sink{
		logger: log.New(os.Stderr, "", log.LstdFlags),
		queue:  queue.New(),
		notify: make(chan struct{}, 1),
		stop:   make(chan struct{}),
	}
	s.minLevel.Store(int32(minLevel))
	for i := 0; i < numWorkers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// SetMinLevel changes the logging threshold at runtime without restarting
// the sink's workers. Safe to call concurrently with Post/drain.
func (s *Sink) SetMinLevel(l Level) {
	s.minLevel.Store(int32(l))
}

// Post enqueues a telemetry record and bumps the relevant counter. It
// takes the queue mutex for the append and wakes a worker without
// blocking; it never logs the record itself.
func (s *Sink) Post(r Record) {
	switch r.Op {
	case "accept":
		s.Counts.Accepts.Add(1)
	case "recv":
		s.Counts.Recvs.Add(1)
	case "send":
		s.Counts.Sends.Add(1)
	case "close":
		s.Counts.Closes.Add(1)
	case "reject":
		s.Counts.Rejected.Add(1)
	}
	if r.Level == LevelError {
		s.Counts.Errors.Add(1)
	}

	s.mu.Lock()
	s.queue.Add(r)
	s.mu.Unlock()

	select {
	case s.notify <- struct{}{}:
	default:
	}
}

func (s *Sink) worker() {
	defer s.wg.Done()
	for {
		select {
		case <-s.stop:
			s.drain()
			return
		case <-s.notify:
			s.drain()
		}
	}
}

func (s *Sink) drain() {
	for {
		s.mu.Lock()
		if s.queue.Length() == 0 {
			s.mu.Unlock()
			return
		}
		item := s.queue.Remove()
		s.mu.Unlock()

		rec, ok := item.(Record)
		if !ok {
			continue
		}
		if int32(rec.Level) < s.minLevel.Load() {
			continue
		}
		s.logger.Printf("[%s] fd=%d %s", levelTag(rec.Level), rec.Fd, rec.Message)
	}
}

func levelTag(l Level) string {
	switch l {
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "debug"
	}
}

// Close stops all workers after draining anything already queued.
func (s *Sink) Close() {
	close(s.stop)
	s.wg.Wait()
}

// String renders a snapshot of the counters, for the shutdown summary.
func (c *Counters) String() string {
	return fmt.Sprintf("accepts=%d recvs=%d sends=%d closes=%d errors=%d rejected=%d",
		c.Accepts.Load(), c.Recvs.Load(), c.Sends.Load(), c.Closes.Load(), c.Errors.Load(), c.Rejected.Load())
}
