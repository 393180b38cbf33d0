// Package secrets resolves credentials referenced from the config file:
// ${VAR} and ${VAR:-default} environment references, and secret files as
// mounted by Docker (/run/secrets) or Kubernetes.
package secrets

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/logger"
)

const component = "secrets"

// maxFileSize bounds a secret file; secrets are tokens and passwords.
const maxFileSize = 64 << 10

// Expand replaces ${VAR} and ${VAR:-default} references in s. A reference
// to an unset or empty variable without a default is an error naming the
// variable, never its value. Values without "${" are returned as-is, so
// passwords may contain a bare "$".
func Expand(s string) (string, error) {
	if !strings.Contains(s, "${") {
		return s, nil
	}

	var missing []string
	expanded := os.Expand(s, func(key string) string {
		name, fallback, hasFallback := strings.Cut(key, ":-")
		if value := os.Getenv(name); value != "" {
			return value
		}
		if hasFallback {
			return fallback
		}
		missing = append(missing, name)
		return ""
	})

	if len(missing) > 0 {
		return "", errors.New(fmt.Errorf("missing environment variable(s): %s", strings.Join(missing, ", "))).
			Component(component).
			Category(errors.CategoryConfiguration).
			Context("variables", missing).
			Build()
	}
	return expanded, nil
}

// ReadFile returns the contents of a secret file without trailing newlines.
// Group or world readable files are accepted with a warning.
func ReadFile(path string) (string, error) {
	clean := filepath.Clean(path)

	info, err := os.Stat(clean)
	if err != nil {
		return "", fileError(err, clean)
	}
	if !info.Mode().IsRegular() {
		return "", fileError(errors.NewStd("not a regular file"), clean)
	}
	if info.Size() > maxFileSize {
		return "", fileError(fmt.Errorf("larger than %d bytes", maxFileSize), clean)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		GetLogger().Warn("secret file is readable by group or others",
			logger.String("path", clean),
			logger.String("mode", fmt.Sprintf("%04o", perm)))
	}

	data, err := os.ReadFile(clean)
	if err != nil {
		return "", fileError(err, clean)
	}
	secret := strings.TrimRight(string(data), "\r\n")
	if secret == "" {
		return "", fileError(errors.NewStd("file is empty"), clean)
	}
	return secret, nil
}

// Resolve returns the secret from filePath when set, otherwise value with
// environment references expanded.
func Resolve(filePath, value string) (string, error) {
	if filePath != "" {
		return ReadFile(filePath)
	}
	return Expand(value)
}

// ResolveAll expands every value of values in place, stopping at the first
// error.
func ResolveAll(values []string) error {
	for i, v := range values {
		expanded, err := Expand(v)
		if err != nil {
			return err
		}
		values[i] = expanded
	}
	return nil
}

func fileError(err error, path string) error {
	return errors.New(fmt.Errorf("secret file %s: %w", path, err)).
		Component(component).
		Category(errors.CategoryConfiguration).
		Build()
}
