package scheduler

import "github.com/camtrack/dcerno-vhd/internal/logger"

// GetLogger returns the scheduler module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("scheduler")
}
