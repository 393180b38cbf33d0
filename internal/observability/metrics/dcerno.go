package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// DcernoMetrics contains metrics of the microphone controller link.
// All methods are safe to call on a nil receiver.
type DcernoMetrics struct {
	Connects   *prometheus.CounterVec
	Reconnects prometheus.Counter
	RoundTrip  *prometheus.HistogramVec
	Connected  prometheus.Gauge
}

// NewDcernoMetrics creates and registers the link metrics.
func NewDcernoMetrics(registry prometheus.Registerer) (*DcernoMetrics, error) {
	m := &DcernoMetrics{
		Connects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "dcerno",
			Name:      "connects_total",
			Help:      "Session attempts against the microphone controller by result",
		}, []string{"result"}),
		Reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "dcerno",
			Name:      "reconnects_total",
			Help:      "Reconnects triggered by a failed send or receive",
		}),
		RoundTrip: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "dcerno",
			Name:      "roundtrip_seconds",
			Help:      "Request/reply latency by request",
			Buckets:   latencyBuckets,
		}, []string{"operation"}),
		Connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: "dcerno",
			Name:      "connected",
			Help:      "1 while a controller session is open",
		}),
	}
	if err := registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register dcerno metrics: %w", err)
	}
	return m, nil
}

// RecordConnect counts a session attempt and updates the connected gauge.
func (m *DcernoMetrics) RecordConnect(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.Connects.WithLabelValues(StatusError).Inc()
		m.Connected.Set(0)
		return
	}
	m.Connects.WithLabelValues(StatusSuccess).Inc()
	m.Connected.Set(1)
}

// RecordReconnect counts a reconnect caused by an I/O failure.
func (m *DcernoMetrics) RecordReconnect() {
	if m == nil {
		return
	}
	m.Reconnects.Inc()
}

// RecordDisconnect clears the connected gauge.
func (m *DcernoMetrics) RecordDisconnect() {
	if m == nil {
		return
	}
	m.Connected.Set(0)
}

// ObserveRoundTrip records the latency of one request/reply exchange.
func (m *DcernoMetrics) ObserveRoundTrip(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.RoundTrip.WithLabelValues(operation).Observe(seconds)
}

// Describe implements the prometheus.Collector interface.
func (m *DcernoMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.Connects.Describe(ch)
	ch <- m.Reconnects.Desc()
	m.RoundTrip.Describe(ch)
	ch <- m.Connected.Desc()
}

// Collect implements the prometheus.Collector interface.
func (m *DcernoMetrics) Collect(ch chan<- prometheus.Metric) {
	m.Connects.Collect(ch)
	ch <- m.Reconnects
	m.RoundTrip.Collect(ch)
	ch <- m.Connected
}
