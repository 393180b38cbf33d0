// Package metrics provides custom Prometheus metrics for the components of camtrack.
package metrics

import "time"

// Namespace prefixes every metric name.
const Namespace = "camtrack"

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// Tick result label values.
const (
	TickOK      = "ok"
	TickSkipped = "skipped"
	TickError   = "error"
	TickRestart = "restart"
)

// ShutdownTimeout bounds the graceful stop of the metrics HTTP server.
const ShutdownTimeout = 5 * time.Second

// latencyBuckets cover LAN round trips up to the 20s controller timeout.
var latencyBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20}
