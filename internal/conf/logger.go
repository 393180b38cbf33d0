// Package conf provides configuration management for camtrack.
package conf

import "github.com/camtrack/dcerno-vhd/internal/logger"

// GetLogger returns the config package logger.
// Fetched on each call so it follows the central logger once it is set.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
