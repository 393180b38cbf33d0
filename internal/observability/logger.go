package observability

import "github.com/camtrack/dcerno-vhd/internal/logger"

// Package-level cached logger instance.
var log = logger.Global().Module("telemetry")
