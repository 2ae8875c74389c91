package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"
)

// IntentLatency is the time from a normalized query reaching the dispatcher to
// its reply text being ready, for one intent. Remote intents include the
// collaborator round trip; OverTarget flags a p95 above the intent's budget.
type IntentLatency struct {
	Intent      string  `json:"intent"`
	Samples     int     `json:"samples"`
	LastMS      float64 `json:"last_ms"`
	AvgMS       float64 `json:"avg_ms"`
	P50MS       float64 `json:"p50_ms"`
	P95MS       float64 `json:"p95_ms"`
	P99MS       float64 `json:"p99_ms"`
	TargetP95MS float64 `json:"target_p95_ms,omitempty"`
	OverTarget  bool    `json:"over_target"`
}

// EventCount tallies a failure or prompt since process start, e.g.
// "reminder_delivery_failed" or "service_error:weather".
type EventCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

type LatencySnapshot struct {
	GeneratedAt time.Time       `json:"generated_at"`
	WindowSize  int             `json:"window_size"`
	Intents     []IntentLatency `json:"intents"`
	Events      []EventCount    `json:"events,omitempty"`
}

// LatencyWindow backs GET /v1/perf/dispatch. Only the most recent maxSamples
// dispatches of each intent count, so a slow upstream that recovers stops
// showing in the percentiles once enough fresh requests arrive. Event counts
// never reset.
type LatencyWindow struct {
	mu         sync.RWMutex
	maxSamples int
	intents    map[string]*latencyRing
	events     map[string]int
}

type latencyRing struct {
	values []float64
	next   int
	filled bool
	last   float64
}

func NewLatencyWindow(maxSamples int) *LatencyWindow {
	if maxSamples <= 0 {
		maxSamples = 256
	}
	return &LatencyWindow{
		maxSamples: maxSamples,
		intents:    make(map[string]*latencyRing),
		events:     make(map[string]int),
	}
}

func (w *LatencyWindow) Observe(intent string, d time.Duration) {
	if w == nil || intent == "" || d < 0 {
		return
	}
	ms := float64(d) / float64(time.Millisecond)
	w.mu.Lock()
	defer w.mu.Unlock()

	ring, ok := w.intents[intent]
	if !ok {
		ring = &latencyRing{values: make([]float64, w.maxSamples)}
		w.intents[intent] = ring
	}
	ring.values[ring.next] = ms
	ring.last = ms
	ring.next++
	if ring.next >= len(ring.values) {
		ring.next = 0
		ring.filled = true
	}
}

func (w *LatencyWindow) ObserveEvent(name string) {
	if w == nil {
		return
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.events[name]++
}

func (w *LatencyWindow) Snapshot() LatencySnapshot {
	if w == nil {
		return LatencySnapshot{GeneratedAt: time.Now().UTC()}
	}
	w.mu.RLock()
	defer w.mu.RUnlock()

	names := make([]string, 0, len(w.intents))
	for name := range w.intents {
		names = append(names, name)
	}
	sort.Strings(names)

	intents := make([]IntentLatency, 0, len(names))
	for _, name := range names {
		ring := w.intents[name]
		n := ring.next
		if ring.filled {
			n = len(ring.values)
		}
		if n == 0 {
			continue
		}
		samples := make([]float64, n)
		copy(samples, ring.values[:n])
		sort.Float64s(samples)

		sum := 0.0
		for _, v := range samples {
			sum += v
		}
		p95 := round2(quantile(samples, 0.95))
		target := intentTargetP95MS(name)
		intents = append(intents, IntentLatency{
			Intent:      name,
			Samples:     n,
			LastMS:      round2(ring.last),
			AvgMS:       round2(sum / float64(n)),
			P50MS:       round2(quantile(samples, 0.50)),
			P95MS:       p95,
			P99MS:       round2(quantile(samples, 0.99)),
			TargetP95MS: target,
			OverTarget:  target > 0 && p95 > target,
		})
	}

	eventNames := make([]string, 0, len(w.events))
	for name := range w.events {
		eventNames = append(eventNames, name)
	}
	sort.Strings(eventNames)
	events := make([]EventCount, 0, len(eventNames))
	for _, name := range eventNames {
		events = append(events, EventCount{Name: name, Count: w.events[name]})
	}

	return LatencySnapshot{
		GeneratedAt: time.Now().UTC(),
		WindowSize:  w.maxSamples,
		Intents:     intents,
		Events:      events,
	}
}

func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if q <= 0 {
		return sorted[0]
	}
	if q >= 1 {
		return sorted[len(sorted)-1]
	}
	idx := q * float64(len(sorted)-1)
	lo := int(math.Floor(idx))
	hi := int(math.Ceil(idx))
	if lo == hi {
		return sorted[lo]
	}
	frac := idx - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Intents backed by a remote collaborator are bounded by the service timeout;
// everything else answers locally.
func intentTargetP95MS(intent string) float64 {
	switch intent {
	case "knowledge", "weather", "news", "translate", "calculate":
		return 5000
	case "screenshot", "system":
		return 1500
	case "":
		return 0
	default:
		return 50
	}
}
