package mqtt

import "github.com/camtrack/dcerno-vhd/internal/logger"

// GetLogger returns the mqtt module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("mqtt")
}
