package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// NotificationMetrics contains metrics of outage alert delivery.
type NotificationMetrics struct {
	Deliveries *prometheus.CounterVec // by kind (outage, recovery) and status
}

// NewNotificationMetrics creates and registers the notification metrics.
func NewNotificationMetrics(registry prometheus.Registerer) (*NotificationMetrics, error) {
	m := &NotificationMetrics{
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "notification",
			Name:      "deliveries_total",
			Help:      "Alert deliveries by kind and status",
		}, []string{"kind", "status"}),
	}
	if err := registry.Register(m.Deliveries); err != nil {
		return nil, fmt.Errorf("failed to register notification metrics: %w", err)
	}
	return m, nil
}

// RecordDelivery counts one alert delivery attempt.
func (m *NotificationMetrics) RecordDelivery(kind string, err error) {
	if m == nil {
		return
	}
	status := StatusSuccess
	if err != nil {
		status = StatusError
	}
	m.Deliveries.WithLabelValues(kind, status).Inc()
}
