package observability

import (
	"testing"
	"time"
)

func TestLatencyWindowSnapshot(t *testing.T) {
	w := NewLatencyWindow(8)
	w.Observe("weather", 500*time.Millisecond)
	w.Observe("weather", 700*time.Millisecond)
	w.Observe("weather", 900*time.Millisecond)
	w.ObserveEvent("service_error:weather")
	w.ObserveEvent("service_error:weather")

	snap := w.Snapshot()
	if snap.WindowSize != 8 {
		t.Fatalf("WindowSize = %d, want 8", snap.WindowSize)
	}
	if len(snap.Intents) != 1 {
		t.Fatalf("len(Intents) = %d, want 1", len(snap.Intents))
	}
	s := snap.Intents[0]
	if s.Intent != "weather" || s.Samples != 3 {
		t.Fatalf("stats = %+v, want 3 weather samples", s)
	}
	if s.LastMS != 900 {
		t.Fatalf("LastMS = %.2f, want 900", s.LastMS)
	}
	if s.P50MS != 700 {
		t.Fatalf("P50MS = %.2f, want 700", s.P50MS)
	}
	if s.P95MS <= 700 || s.P95MS > 900 {
		t.Fatalf("P95MS = %.2f, want (700,900]", s.P95MS)
	}
	if s.TargetP95MS != 5000 {
		t.Fatalf("TargetP95MS = %.2f, want 5000", s.TargetP95MS)
	}
	if s.OverTarget {
		t.Fatalf("OverTarget = true for p95 %.2f under 5000", s.P95MS)
	}
	if len(snap.Events) != 1 || snap.Events[0].Count != 2 {
		t.Fatalf("Events = %+v, want one event counted twice", snap.Events)
	}
}

func TestLatencyWindowWrapsAround(t *testing.T) {
	w := NewLatencyWindow(2)
	w.Observe("time", time.Millisecond)
	w.Observe("time", 2*time.Millisecond)
	w.Observe("time", 30*time.Millisecond)

	s := w.Snapshot().Intents[0]
	if s.Samples != 2 {
		t.Fatalf("Samples = %d, want 2", s.Samples)
	}
	if s.AvgMS != 16 {
		t.Fatalf("AvgMS = %.2f, want 16 (oldest sample evicted)", s.AvgMS)
	}
}

func TestNilLatencyWindow(t *testing.T) {
	var w *LatencyWindow
	w.Observe("time", time.Millisecond)
	w.ObserveEvent("x")
	if got := w.Snapshot(); len(got.Intents) != 0 {
		t.Fatalf("nil window snapshot = %+v", got)
	}
}

func TestLatencyWindowFlagsLocalIntentOverTarget(t *testing.T) {
	w := NewLatencyWindow(4)
	w.Observe("time", 2*time.Millisecond)
	w.Observe("time", 80*time.Millisecond)

	s := w.Snapshot().Intents[0]
	if s.TargetP95MS != 50 {
		t.Fatalf("TargetP95MS = %.2f, want 50", s.TargetP95MS)
	}
	if !s.OverTarget {
		t.Fatalf("OverTarget = false for p95 %.2f over 50", s.P95MS)
	}
}
