package store

import "github.com/camtrack/dcerno-vhd/internal/logger"

// GetLogger returns the store module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("store")
}
