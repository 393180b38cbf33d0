// env.go - environment variable configuration and validation
package conf

import (
	"fmt"
	"net"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// envBinding holds metadata for environment variable bindings
type envBinding struct {
	ConfigKey string             // Viper config key
	EnvVar    string             // Environment variable name
	Validate  func(string) error // Optional validation function
}

// getEnvBindings returns all environment variable bindings with validation
func getEnvBindings() []envBinding {
	return []envBinding{
		{"debug", "CAMTRACK_DEBUG", validateEnvBool},

		// Microphone controller
		{"dcerno.host", "CAMTRACK_DCERNO_HOST", validateEnvHost},
		{"dcerno.port", "CAMTRACK_DCERNO_PORT", validateEnvPort},
		{"dcerno.connecttimeout", "CAMTRACK_DCERNO_CONNECTTIMEOUT", validateEnvDuration},
		{"dcerno.iotimeout", "CAMTRACK_DCERNO_IOTIMEOUT", validateEnvDuration},

		// Cameras and tracking
		{"ptz.protocol", "CAMTRACK_PTZ_PROTOCOL", nil},
		{"ptz.timeout", "CAMTRACK_PTZ_TIMEOUT", validateEnvDuration},
		{"tracking.interval", "CAMTRACK_TRACKING_INTERVAL", validateEnvDuration},
		{"tracking.parallel", "CAMTRACK_TRACKING_PARALLEL", validateEnvBool},

		// Stores
		{"store.backend", "CAMTRACK_STORE_BACKEND", validateEnvStoreBackend},
		{"store.mappingfile", "CAMTRACK_STORE_MAPPINGFILE", nil},
		{"store.settingsfile", "CAMTRACK_STORE_SETTINGSFILE", nil},
		{"store.mysql.password", "CAMTRACK_STORE_MYSQL_PASSWORD", nil},

		// Integrations
		{"mqtt.enabled", "CAMTRACK_MQTT_ENABLED", validateEnvBool},
		{"mqtt.broker", "CAMTRACK_MQTT_BROKER", nil},
		{"mqtt.password", "CAMTRACK_MQTT_PASSWORD", nil},
		{"telemetry.enabled", "CAMTRACK_TELEMETRY_ENABLED", validateEnvBool},
		{"telemetry.listen", "CAMTRACK_TELEMETRY_LISTEN", validateEnvListen},
		{"sentry.dsn", "CAMTRACK_SENTRY_DSN", nil},
	}
}

// bindEnvVars sets up environment variable bindings with validation
func bindEnvVars() error {
	var warnings []string

	for _, binding := range getEnvBindings() {
		if err := viper.BindEnv(binding.ConfigKey, binding.EnvVar); err != nil {
			warnings = append(warnings, fmt.Sprintf("Failed to bind %s: %v", binding.EnvVar, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		if envValue := os.Getenv(binding.EnvVar); envValue != "" {
			if err := binding.Validate(envValue); err != nil {
				warnings = append(warnings, fmt.Sprintf("Invalid %s value '%s': %v", binding.EnvVar, envValue, err))
			}
		}
	}

	if len(warnings) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(warnings, "\n  - "))
	}
	return nil
}

func validateEnvBool(value string) error {
	if _, err := strconv.ParseBool(value); err != nil {
		return fmt.Errorf("invalid boolean value '%s': must be true/false, 1/0, t/f", value)
	}
	return nil
}

func validateEnvHost(value string) error {
	if strings.TrimSpace(value) == "" || strings.ContainsAny(value, " /") {
		return fmt.Errorf("host must be an IP address or hostname, got '%s'", value)
	}
	return nil
}

func validateEnvPort(value string) error {
	port, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid port: %w", err)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", port)
	}
	return nil
}

func validateEnvDuration(value string) error {
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("invalid duration: %w", err)
	}
	if d <= 0 {
		return fmt.Errorf("duration must be positive, got %s", d)
	}
	return nil
}

// StoreBackends lists the accepted store.backend values.
var StoreBackends = []string{"json", "sqlite", "mysql"}

func validateEnvStoreBackend(value string) error {
	if !slices.Contains(StoreBackends, value) {
		return fmt.Errorf("must be one of: %s", strings.Join(StoreBackends, ", "))
	}
	return nil
}

func validateEnvListen(value string) error {
	if _, _, err := net.SplitHostPort(value); err != nil {
		return fmt.Errorf("listen address must be host:port: %w", err)
	}
	return nil
}
