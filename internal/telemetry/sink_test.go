package telemetry

import "testing"

func TestSinkCountersAccumulate(t *testing.T) {
	s := New(1, LevelDebug)

	s.Post(Record{Level: LevelDebug, Op: "accept", Fd: 4, Message: "accepted"})
	s.Post(Record{Level: LevelError, Op: "recv", Fd: 4, Message: "recv failed"})

	// Close drains the queue synchronously before returning, so counters
	// observed afterward are stable.
	s.Close()

	if s.Counts.Accepts.Load() != 1 {
		t.Fatalf("expected 1 accept, got %d", s.Counts.Accepts.Load())
	}
	if s.Counts.Recvs.Load() != 1 {
		t.Fatalf("expected 1 recv, got %d", s.Counts.Recvs.Load())
	}
	if s.Counts.Errors.Load() != 1 {
		t.Fatalf("expected 1 error, got %d", s.Counts.Errors.Load())
	}
}

func TestCountersString(t *testing.T) {
	var c Counters
	c.Accepts.Add(2)
	out := c.String()
	if out == "" {
		t.Fatal("expected non-empty counters summary")
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   LevelDebug,
		"warn":    LevelWarn,
		"error":   LevelError,
		"bogus":   LevelDebug,
		"":        LevelDebug,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetMinLevelStillCountsEveryRecord(t *testing.T) {
	s := New(1, LevelError)

	// Counters still accumulate regardless of the logging threshold; only
	// the printed log line is suppressed, which this test can't observe
	// directly without capturing stderr, so it only asserts the counters
	// and that SetMinLevel doesn't panic or block.
	s.Post(Record{Level: LevelDebug, Op: "recv", Fd: 1, Message: "below threshold"})
	s.SetMinLevel(LevelDebug)
	s.Post(Record{Level: LevelDebug, Op: "recv", Fd: 1, Message: "now at threshold"})
	s.Close()

	if s.Counts.Recvs.Load() != 2 {
		t.Fatalf("expected both posts to be counted regardless of level, got %d", s.Counts.Recvs.Load())
	}
}
