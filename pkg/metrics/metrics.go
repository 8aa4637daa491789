package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry groups the Prometheus gauges/counters the audit coordinator keeps
// up to date as a pull-based complement to the push-based UDP counter
// stream. A nil *Registry is valid: every method is a no-op, so unit tests
// can construct an audit.Coordinator without touching the global Prometheus
// registry.
type Registry struct {
	Errors           prometheus.Gauge
	ForgottenErrors  prometheus.Gauge
	MemorySize       prometheus.Gauge
	HistorySize      *prometheus.GaugeVec
	LeaderDeadCount  prometheus.Gauge
	PrimaryDeadCount prometheus.Gauge
	LeaderStuckCount prometheus.Gauge
	EmittedTotal     *prometheus.CounterVec
	DispatchDuration prometheus.Histogram
}

// NewRegistry builds a Registry and registers its collectors against reg.
// Pass prometheus.NewRegistry() in tests to avoid collisions with the global
// DefaultRegisterer; pass prometheus.DefaultRegisterer in production.
func NewRegistry(reg prometheus.Registerer, nodeID string) *Registry {
	r := &Registry{
		Errors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ward_audit_errors",
			Help:        "Number of errors currently retained plus the forgotten-error count.",
			ConstLabels: prometheus.Labels{"node_id": nodeID},
		}),
		ForgottenErrors: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ward_audit_forgotten_errors",
			Help:        "Number of recorded errors evicted from the bounded history so far.",
			ConstLabels: prometheus.Labels{"node_id": nodeID},
		}),
		MemorySize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ward_audit_memory_size",
			Help:        "Sum of Raft commit history, error sequence, and leader history sizes.",
			ConstLabels: prometheus.Labels{"node_id": nodeID},
		}),
		HistorySize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name:        "ward_audit_history_size",
			Help:        "Number of entries retained per bounded history.",
			ConstLabels: prometheus.Labels{"node_id": nodeID},
		}, []string{"history"}),
		LeaderDeadCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ward_audit_leader_dead_count",
			Help:        "Consecutive leader-alive timer expiries since the last heartbeat.",
			ConstLabels: prometheus.Labels{"node_id": nodeID},
		}),
		PrimaryDeadCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ward_audit_primary_dead_count",
			Help:        "Consecutive primary-alive timer expiries since the last heartbeat.",
			ConstLabels: prometheus.Labels{"node_id": nodeID},
		}),
		LeaderStuckCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "ward_audit_leader_stuck_count",
			Help:        "Consecutive leader-progress timer expiries since the leader last advanced.",
			ConstLabels: prometheus.Labels{"node_id": nodeID},
		}),
		EmittedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "ward_audit_emitted_total",
			Help:        "Counter-line metrics emitted, by suffix, whether or not a monitor endpoint is configured.",
			ConstLabels: prometheus.Labels{"node_id": nodeID},
		}, []string{"metric"}),
		DispatchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "ward_audit_dispatch_duration_seconds",
			Help:        "Time spent decoding and routing one inbound audit_event.",
			ConstLabels: prometheus.Labels{"node_id": nodeID},
			Buckets:     prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		reg.MustRegister(r.Errors, r.ForgottenErrors, r.MemorySize, r.HistorySize,
			r.LeaderDeadCount, r.PrimaryDeadCount, r.LeaderStuckCount, r.EmittedTotal,
			r.DispatchDuration)
	}

	return r
}

// ObserveEmit records that a counter-line metric with the given suffix was
// emitted, regardless of whether the UDP send ultimately succeeded (emission
// is fire-and-forget).
func (r *Registry) ObserveEmit(suffix string) {
	if r == nil {
		return
	}
	r.EmittedTotal.WithLabelValues(suffix).Inc()
}

// Handler returns the Prometheus HTTP scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
