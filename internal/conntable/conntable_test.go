package conntable

import "testing"

func TestInsertGetRemove(t *testing.T) {
	tbl := New()
	c := tbl.Insert(7)
	c.Append([]byte("GET"))
	got, ok := tbl.Get(7)
	if !ok || got != c {
		t.Fatal("expected to retrieve the inserted connection")
	}
	tbl.Remove(7)
	if _, ok := tbl.Get(7); ok {
		t.Fatal("connection should be gone after Remove")
	}
}

func TestRemoveAbsentFdIsNoop(t *testing.T) {
	tbl := New()
	tbl.Remove(42) // must not panic
	if tbl.Len() != 0 {
		t.Fatalf("expected empty table, got %d", tbl.Len())
	}
}

func TestReusedFdAfterClose(t *testing.T) {
	tbl := New()
	tbl.Insert(3)
	tbl.Remove(3)
	c := tbl.Insert(3)
	if c.Fd != 3 {
		t.Fatal("fd reuse after close should succeed cleanly")
	}
}

func TestAppendGrowsBuffer(t *testing.T) {
	c := &Connection{Fd: 1}
	c.Append([]byte("abc"))
	c.Append([]byte("def"))
	if string(c.Buf) != "abcdef" {
		t.Fatalf("expected accumulated bytes, got %q", c.Buf)
	}
}
