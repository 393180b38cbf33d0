package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// ErrorMetrics counts built errors by category.
type ErrorMetrics struct {
	Errors *prometheus.CounterVec
}

// NewErrorMetrics creates and registers the error counter.
func NewErrorMetrics(registry prometheus.Registerer) (*ErrorMetrics, error) {
	m := &ErrorMetrics{
		Errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "errors_total",
			Help:      "Errors raised by category",
		}, []string{"category", "component"}),
	}
	if err := registry.Register(m.Errors); err != nil {
		return nil, fmt.Errorf("failed to register error metrics: %w", err)
	}
	return m, nil
}

// RecordError counts one error.
func (m *ErrorMetrics) RecordError(category, component string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(category, component).Inc()
}
