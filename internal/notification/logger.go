package notification

import "github.com/camtrack/dcerno-vhd/internal/logger"

// GetLogger returns the notification module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("notification")
}
