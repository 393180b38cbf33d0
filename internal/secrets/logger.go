package secrets

import "github.com/camtrack/dcerno-vhd/internal/logger"

// GetLogger returns the secrets module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("secrets")
}
