package operator

import "github.com/camtrack/dcerno-vhd/internal/logger"

// GetLogger returns the operator module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("operator")
}
