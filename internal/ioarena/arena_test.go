package ioarena

import "testing"

func TestAllocGrowsAndKeepsPriorPointersStable(t *testing.T) {
	a := New(2)

	first := a.Alloc(OpAccept, 3, 0)
	a.Alloc(OpRecv, 4, 1)
	// Forces a grow past the initial capacity of 2.
	a.Alloc(OpSend, 5, 2)

	if first.Fd != 3 || first.Op != OpAccept {
		t.Fatalf("pointer returned before grow was corrupted: %+v", first)
	}
	if a.Len() != 3 {
		t.Fatalf("expected 3 live records, got %d", a.Len())
	}
}

func TestFreeReleasesOnlyItsOwnSlot(t *testing.T) {
	a := New(4)
	first := a.Alloc(OpClose, 1, 0)
	second := a.Alloc(OpClose, 2, 0)

	a.Free(first)
	if a.Len() != 1 {
		t.Fatalf("expected 1 live record after freeing one of two, got %d", a.Len())
	}
	if second.Fd != 2 {
		t.Fatalf("freeing one record must not disturb another still-live record: %+v", second)
	}

	a.Free(second)
	if a.Len() != 0 {
		t.Fatalf("expected 0 live records after freeing both, got %d", a.Len())
	}
}

// TestAllocDoesNotReuseAnUnfreedSlot is the regression test for the
// overwrite-in-flight bug: a record that has not been Freed must never be
// handed back out by a later Alloc, even across many intervening
// allocations and frees of other slots (simulating completions that
// straggle across many loop iterations).
func TestAllocDoesNotReuseAnUnfreedSlot(t *testing.T) {
	a := New(2)

	longLived := a.Alloc(OpRecv, 100, 7)

	for i := 0; i < 50; i++ {
		r := a.Alloc(OpAccept, int32(i), 0)
		if r == longLived {
			t.Fatalf("iteration %d: Alloc reused the still-in-flight slot", i)
		}
		a.Free(r)
	}

	if longLived.Op != OpRecv || longLived.Fd != 100 || longLived.BufferIdx != 7 {
		t.Fatalf("long-lived record was overwritten while still in flight: %+v", longLived)
	}
}

func TestFreedSlotIsRecycledByLaterAlloc(t *testing.T) {
	a := New(2)
	r1 := a.Alloc(OpAccept, 1, 0)
	a.Free(r1)

	before := len(a.records)
	a.Alloc(OpAccept, 2, 0)
	if len(a.records) != before {
		t.Fatalf("expected Alloc to recycle the freed slot instead of growing, backing slice grew from %d to %d", before, len(a.records))
	}
}

func TestNewDefaultsNonPositiveCapacity(t *testing.T) {
	a := New(0)
	if cap(a.records) != 16 {
		t.Fatalf("expected default capacity of 16, got %d", cap(a.records))
	}
}
