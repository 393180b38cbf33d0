package tracking

import "github.com/camtrack/dcerno-vhd/internal/logger"

// GetLogger returns the tracking module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("tracking")
}
