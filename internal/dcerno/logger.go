package dcerno

import "github.com/camtrack/dcerno-vhd/internal/logger"

// GetLogger returns the package logger, resolved on each call so that a
// logger installed with logger.SetGlobal after init is picked up.
func GetLogger() logger.Logger {
	return logger.Global().Module("dcerno")
}
