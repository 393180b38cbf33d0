// Package observability provides metrics and monitoring capabilities for camtrack.
package observability

import (
	"fmt"
	stdlog "log"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/observability/metrics"
)

// Metrics holds all the metric collectors for the application.
type Metrics struct {
	registry     *prometheus.Registry
	Dcerno       *metrics.DcernoMetrics
	PTZ          *metrics.PTZMetrics
	Tracking     *metrics.TrackingMetrics
	MQTT         *metrics.MQTTMetrics
	Notification *metrics.NotificationMetrics
	Errors       *metrics.ErrorMetrics
}

// NewMetrics creates a new instance of Metrics, initializing all metric collectors.
// It returns an error if any metric collector fails to initialize.
func NewMetrics() (*Metrics, error) {
	registry := prometheus.NewRegistry()

	if err := registry.Register(collectors.NewGoCollector()); err != nil {
		return nil, fmt.Errorf("failed to register Go collector: %w", err)
	}
	if err := registry.Register(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{})); err != nil {
		return nil, fmt.Errorf("failed to register process collector: %w", err)
	}

	dcernoMetrics, err := metrics.NewDcernoMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create D-Cerno metrics: %w", err)
	}

	ptzMetrics, err := metrics.NewPTZMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create PTZ metrics: %w", err)
	}

	trackingMetrics, err := metrics.NewTrackingMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create tracking metrics: %w", err)
	}

	mqttMetrics, err := metrics.NewMQTTMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create MQTT metrics: %w", err)
	}

	notificationMetrics, err := metrics.NewNotificationMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification metrics: %w", err)
	}

	errorMetrics, err := metrics.NewErrorMetrics(registry)
	if err != nil {
		return nil, fmt.Errorf("failed to create error metrics: %w", err)
	}

	return &Metrics{
		registry:     registry,
		Dcerno:       dcernoMetrics,
		PTZ:          ptzMetrics,
		Tracking:     trackingMetrics,
		MQTT:         mqttMetrics,
		Notification: notificationMetrics,
		Errors:       errorMetrics,
	}, nil
}

// CountErrors installs an error hook that counts every built error by category.
// Call it once per process; hooks are global.
func (m *Metrics) CountErrors() {
	errors.AddErrorHook(func(ee *errors.EnhancedError) {
		m.Errors.RecordError(ee.GetCategory(), ee.GetComponent())
	})
}

// Registry exposes the underlying registry for tests and custom collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RegisterHandlers registers the metrics endpoint with the provided http.ServeMux.
func (m *Metrics) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/metrics", m.metricsHandler)
}

// metricsHandler is the HTTP handler for the /metrics endpoint.
func (m *Metrics) metricsHandler(w http.ResponseWriter, r *http.Request) {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      stdlog.New(os.Stderr, "metrics handler: ", stdlog.LstdFlags),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
	h.ServeHTTP(w, r)
}
