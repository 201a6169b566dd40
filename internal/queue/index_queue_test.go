package queue

import "testing"

func TestIndexQueueFIFO(t *testing.T) {
	q := NewIndexQueue(4)
	for i := uint16(0); i < 4; i++ {
		if !q.Enqueue(i) {
			t.Fatalf("enqueue %d failed, should have room", i)
		}
	}
	if q.Enqueue(99) {
		t.Fatal("enqueue on full queue should fail")
	}
	for i := uint16(0); i < 4; i++ {
		got, ok := q.Dequeue()
		if !ok {
			t.Fatalf("dequeue %d: queue unexpectedly empty", i)
		}
		if got != i {
			t.Fatalf("dequeue order broken: want %d got %d", i, got)
		}
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("dequeue on empty queue should fail")
	}
}

func TestIndexQueueRecyclePreservesSingleIndex(t *testing.T) {
	q := NewIndexQueue(8)
	if !q.Enqueue(5) {
		t.Fatal("enqueue failed")
	}
	got, ok := q.Dequeue()
	if !ok || got != 5 {
		t.Fatalf("expected to dequeue 5, got %d ok=%v", got, ok)
	}
	if _, ok := q.Dequeue(); ok {
		t.Fatal("queue should be empty after single recycle/dequeue pair")
	}
}

func TestIndexQueueWrapsAcrossCapacityBoundary(t *testing.T) {
	q := NewIndexQueue(4)
	// Push enough cycles through the ring to wrap head/tail several times
	// over, verifying no index is lost or duplicated.
	const cycles = 1000
	next := uint16(0)
	for c := 0; c < cycles; c++ {
		if !q.Enqueue(next) {
			t.Fatalf("cycle %d: enqueue failed unexpectedly", c)
		}
		got, ok := q.Dequeue()
		if !ok || got != next {
			t.Fatalf("cycle %d: want %d got %d ok=%v", c, next, got, ok)
		}
		next++
	}
}

func TestIndexQueueCapacityRoundsToPowerOfTwo(t *testing.T) {
	q := NewIndexQueue(5)
	if q.Cap() != 8 {
		t.Fatalf("expected capacity rounded to 8, got %d", q.Cap())
	}
}

func TestIndexQueueFullAndLen(t *testing.T) {
	q := NewIndexQueue(2)
	if q.Full() {
		t.Fatal("fresh queue should not be full")
	}
	q.Enqueue(1)
	q.Enqueue(2)
	if !q.Full() {
		t.Fatal("queue at capacity should report full")
	}
	if q.Len() != 2 {
		t.Fatalf("expected len 2, got %d", q.Len())
	}
}
