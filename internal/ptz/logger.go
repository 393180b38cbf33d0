package ptz

import "github.com/camtrack/dcerno-vhd/internal/logger"

// GetLogger returns the ptz module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("ptz")
}
