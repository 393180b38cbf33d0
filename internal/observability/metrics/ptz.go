package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PTZMetrics contains metrics of camera CGI requests.
// All methods are safe to call on a nil receiver.
type PTZMetrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

// NewPTZMetrics creates and registers the camera client metrics.
func NewPTZMetrics(registry prometheus.Registerer) (*PTZMetrics, error) {
	m := &PTZMetrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "ptz",
			Name:      "requests_total",
			Help:      "Camera CGI requests by action and status",
		}, []string{"action", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "ptz",
			Name:      "request_duration_seconds",
			Help:      "Camera CGI request latency by action",
			Buckets:   latencyBuckets,
		}, []string{"action"}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register ptz metrics: %w", err)
	}
	return m, nil
}

// RecordRequest counts one request and its latency.
func (m *PTZMetrics) RecordRequest(action string, err error, seconds float64) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.Requests.WithLabelValues(action, status).Inc()
	m.RequestDuration.WithLabelValues(action).Observe(seconds)
}

// Describe implements the prometheus.Collector interface.
func (m *PTZMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Requests.Describe(ch)
	m.RequestDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *PTZMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Requests.Collect(ch)
	m.RequestDuration.Collect(ch)
}
