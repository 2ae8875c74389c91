package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the assistant. Every
// helper is safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry
	window   *LatencyWindow

	Intents            *prometheus.CounterVec
	DispatchLatency    prometheus.Histogram
	RemindersSet       prometheus.Counter
	RemindersDelivered prometheus.Counter
	ReminderFailures   prometheus.Counter
	StoreErrors        *prometheus.CounterVec
	ServiceErrors      *prometheus.CounterVec
	SilencePrompts     prometheus.Counter
	BridgeClients      prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		window:   NewLatencyWindow(256),
		Intents: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "intents_total",
			Help:      "Dispatched utterances by matched intent.",
		}, []string{"intent"}),
		DispatchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent classifying and handling one utterance.",
			Buckets:   []float64{0.001, 0.005, 0.025, 0.1, 0.5, 1, 2.5, 5},
		}),
		RemindersSet: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_set_total",
			Help:      "Reminders created.",
		}),
		RemindersDelivered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminders_delivered_total",
			Help:      "Reminders delivered and acknowledged.",
		}),
		ReminderFailures: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reminder_delivery_failures_total",
			Help:      "Reminder deliveries that failed and will be retried.",
		}),
		StoreErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Persistence failures by operation.",
		}, []string{"op"}),
		ServiceErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "service_errors_total",
			Help:      "External collaborator failures by service.",
		}, []string{"service"}),
		SilencePrompts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "silence_prompts_total",
			Help:      "Wake-up prompts emitted after consecutive empty inputs.",
		}),
		BridgeClients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_clients",
			Help:      "Connected websocket voice clients.",
		}),
	}
}

func (m *Metrics) ObserveDispatch(intent string, d time.Duration) {
	if m == nil {
		return
	}
	m.Intents.WithLabelValues(intent).Inc()
	m.DispatchLatency.Observe(d.Seconds())
	m.window.Observe(intent, d)
}

func (m *Metrics) ReminderSet() {
	if m == nil {
		return
	}
	m.RemindersSet.Inc()
}

func (m *Metrics) ReminderDelivered() {
	if m == nil {
		return
	}
	m.RemindersDelivered.Inc()
}

func (m *Metrics) ReminderFailed() {
	if m == nil {
		return
	}
	m.ReminderFailures.Inc()
	m.window.ObserveEvent("reminder_delivery_failed")
}

func (m *Metrics) StoreError(op string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(op).Inc()
	m.window.ObserveEvent("store_error:" + op)
}

func (m *Metrics) ServiceError(service string) {
	if m == nil {
		return
	}
	m.ServiceErrors.WithLabelValues(service).Inc()
	m.window.ObserveEvent("service_error:" + service)
}

func (m *Metrics) SilencePrompt() {
	if m == nil {
		return
	}
	m.SilencePrompts.Inc()
	m.window.ObserveEvent("silence_prompt")
}

func (m *Metrics) SetBridgeClients(n int) {
	if m == nil {
		return
	}
	m.BridgeClients.Set(float64(n))
}

// Handler serves this instance's registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Latency reports recent per-intent dispatch latencies.
func (m *Metrics) Latency() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{GeneratedAt: time.Now().UTC()}
	}
	return m.window.Snapshot()
}
