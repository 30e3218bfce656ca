// Package telemetry exposes the core's runtime health as Prometheus
// collectors: per-system scheduler timing, per-module circuit-breaker
// state, and the flight recorder's dropped-frame counter.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns one isolated Prometheus registry — isolated rather than
// the package-level global the pack's own metrics packages use, so
// concurrent tests (and concurrent simcore processes embedding this
// package as a library) never collide registering the same collector
// name twice.
type Metrics struct {
	registry *prometheus.Registry

	systemDuration *prometheus.HistogramVec
	systemFaults   *prometheus.CounterVec

	breakerState *prometheus.GaugeVec

	recorderDropped prometheus.Counter
	recorderFrames  prometheus.Counter

	snapshotPoolWarm prometheus.Gauge
	snapshotPoolCold prometheus.Counter
}

// New creates a Metrics instance with every collector registered against
// a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		systemDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "simcore",
				Subsystem: "scheduler",
				Name:      "system_duration_seconds",
				Help:      "Per-system execution duration within a frame.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14),
			},
			[]string{"system", "phase"},
		),
		systemFaults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "simcore",
				Subsystem: "scheduler",
				Name:      "system_faults_total",
				Help:      "Total system executions that returned an error.",
			},
			[]string{"system"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "simcore",
				Subsystem: "modulehost",
				Name:      "circuit_breaker_state",
				Help:      "Per-module circuit breaker state: 0=closed, 1=open, 2=half-open.",
			},
			[]string{"module"},
		),
		recorderDropped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "simcore",
				Subsystem: "recorder",
				Name:      "dropped_frames_total",
				Help:      "Frames discarded after an I/O failure rather than crashing the simulation.",
			},
		),
		recorderFrames: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "simcore",
				Subsystem: "recorder",
				Name:      "captured_frames_total",
				Help:      "Frames successfully written to the recording.",
			},
		),
		snapshotPoolWarm: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "simcore",
				Subsystem: "snapshot",
				Name:      "pool_warm_replicas",
				Help:      "Replicas currently idle in the warm pool.",
			},
		),
		snapshotPoolCold: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "simcore",
				Subsystem: "snapshot",
				Name:      "pool_cold_allocations_total",
				Help:      "Replica allocations that missed the warm pool.",
			},
		),
	}

	m.registry.MustRegister(
		m.systemDuration,
		m.systemFaults,
		m.breakerState,
		m.recorderDropped,
		m.recorderFrames,
		m.snapshotPoolWarm,
		m.snapshotPoolCold,
	)
	return m
}

// Handler returns the HTTP handler serving this instance's registry in
// the Prometheus text exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSystemDuration records one system's phase execution time.
func (m *Metrics) ObserveSystemDuration(system, phase string, seconds float64) {
	m.systemDuration.WithLabelValues(system, phase).Observe(seconds)
}

// IncSystemFault records one system execution that returned an error.
func (m *Metrics) IncSystemFault(system string) {
	m.systemFaults.WithLabelValues(system).Inc()
}

// Breaker state values reported via SetBreakerState.
const (
	BreakerClosed   = 0
	BreakerOpen     = 1
	BreakerHalfOpen = 2
)

// SetBreakerState reports module's current circuit-breaker state.
func (m *Metrics) SetBreakerState(module string, state float64) {
	m.breakerState.WithLabelValues(module).Set(state)
}

// IncRecorderDropped records one frame discarded by the flight recorder
// after an I/O failure.
func (m *Metrics) IncRecorderDropped() {
	m.recorderDropped.Inc()
}

// IncRecorderCaptured records one frame successfully written.
func (m *Metrics) IncRecorderCaptured() {
	m.recorderFrames.Inc()
}

// SetSnapshotPoolWarm reports the number of idle replicas in the warm
// pool.
func (m *Metrics) SetSnapshotPoolWarm(n float64) {
	m.snapshotPoolWarm.Set(n)
}

// IncSnapshotPoolCold records one replica allocation that missed the
// warm pool.
func (m *Metrics) IncSnapshotPoolCold() {
	m.snapshotPoolCold.Inc()
}
