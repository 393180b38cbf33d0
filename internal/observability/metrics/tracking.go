package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// TrackingMetrics contains metrics of the tracking engine and its scheduler.
// All methods are safe to call on a nil receiver.
type TrackingMetrics struct {
	Ticks        *prometheus.CounterVec
	TickDuration prometheus.Histogram
	Transitions  *prometheus.CounterVec
	CallErrors   *prometheus.CounterVec
	Restarts     prometheus.Counter
}

// NewTrackingMetrics creates and registers the tracking metrics.
func NewTrackingMetrics(registry prometheus.Registerer) (*TrackingMetrics, error) {
	m := &TrackingMetrics{
		Ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "tracking",
			Name:      "ticks_total",
			Help:      "Scheduler ticks by result (ok, skipped, error)",
		}, []string{"result"}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "tracking",
			Name:      "tick_duration_seconds",
			Help:      "Duration of one tracking cycle",
			Buckets:   latencyBuckets,
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "tracking",
			Name:      "transitions_total",
			Help:      "Camera state transitions by camera and action",
		}, []string{"camera", "action"}),
		CallErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "tracking",
			Name:      "call_errors_total",
			Help:      "Failed camera calls during a transition",
		}, []string{"camera"}),
		Restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "tracking",
			Name:      "restarts_total",
			Help:      "Scheduler restarts after an unexpected failure",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register tracking metrics: %w", err)
	}
	return m, nil
}

// RecordTick counts a finished tick and its duration.
func (m *TrackingMetrics) RecordTick(result string, seconds float64) {
	if m == nil {
		return
	}
	m.Ticks.WithLabelValues(result).Inc()
	m.TickDuration.Observe(seconds)
}

// RecordTransition counts a successful camera move.
func (m *TrackingMetrics) RecordTransition(camera, action string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(camera, action).Inc()
}

// RecordCallError counts a failed camera call.
func (m *TrackingMetrics) RecordCallError(camera string) {
	if m == nil {
		return
	}
	m.CallErrors.WithLabelValues(camera).Inc()
}

// RecordRestart counts a scheduler restart.
func (m *TrackingMetrics) RecordRestart() {
	if m == nil {
		return
	}
	m.Restarts.Inc()
}

// Describe implements the prometheus.Collector interface.
func (m *TrackingMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Ticks.Describe(ch)
	ch <- m.TickDuration.Desc()
	m.Transitions.Describe(ch)
	m.CallErrors.Describe(ch)
	ch <- m.Restarts.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *TrackingMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Ticks.Collect(ch)
	ch <- m.TickDuration
	m.Transitions.Collect(ch)
	m.CallErrors.Collect(ch)
	ch <- m.Restarts
}
