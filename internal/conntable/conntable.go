// File: internal/conntable/conntable.go
// Package conntable maps an accepted socket descriptor to its per-connection
// reassembly state. Modeled on the teacher's internal/session.SessionManager,
// simplified to a flat, unsharded map because spec.md §5 requires no
// synchronization here: the connection table is owned exclusively by the
// single event-loop thread.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package conntable

// Connection holds the accepted fd and the growable reassembly buffer for
// the incoming request head (and any body prefix already read).
type Connection struct {
	Fd   int32
	Buf  []byte
}

// Append grows the reassembly buffer with freshly received bytes.
func (c *Connection) Append(p []byte) {
	c.Buf = append(c.Buf, p...)
}

// Table maps fd -> *Connection. fds are reused by the kernel once closed, so
// entries must be removed on close before a later accept can reuse the same
// number (spec.md §9).
type Table struct {
	conns map[int32]*Connection
}

// New creates an empty connection table.
func New() *Table {
	return &Table{conns: make(map[int32]*Connection)}
}

// Insert creates and registers a new connection for fd. Any prior entry for
// the same fd is replaced (the kernel only reuses an fd after it has been
// closed and removed, so this should never observe a live collision).
func (t *Table) Insert(fd int32) *Connection {
	c := &Connection{Fd: fd}
	t.conns[fd] = c
	return c
}

// Get returns the connection for fd, if any.
func (t *Table) Get(fd int32) (*Connection, bool) {
	c, ok := t.conns[fd]
	return c, ok
}

// Remove deletes the entry for fd. A no-op if fd is already absent, which
// makes repeated close handling for the same fd idempotent (spec.md §8).
func (t *Table) Remove(fd int32) {
	delete(t.conns, fd)
}

// Len reports the number of live connections, for telemetry.
func (t *Table) Len() int { return len(t.conns) }

// Range applies fn to every live connection. Used only at shutdown to tear
// down stragglers.
func (t *Table) Range(fn func(*Connection)) {
	for _, c := range t.conns {
		fn(c)
	}
}
