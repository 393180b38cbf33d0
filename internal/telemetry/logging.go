package telemetry

import "github.com/camtrack/dcerno-vhd/internal/logger"

// GetLogger returns the telemetry module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("telemetry")
}
