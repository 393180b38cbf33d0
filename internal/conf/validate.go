// conf/validate.go

package conf

import (
	"fmt"
	"net"
	"net/url"
	"slices"
	"strings"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

// Error returns a string representation of the validation errors
func (ve ValidationError) Error() string {
	return fmt.Sprintf("Validation errors: %v", ve.Errors)
}

// ValidateSettings validates the entire Settings struct and reports every problem at once.
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	validators := []func(*Settings) []string{
		validateDcernoSettings,
		validatePTZSettings,
		validateTrackingSettings,
		validateStoreSettings,
		validateMQTTSettings,
		validateTelemetrySettings,
		validateSentrySettings,
	}
	for _, validate := range validators {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateDcernoSettings(s *Settings) []string {
	var errs []string
	d := &s.Dcerno

	if strings.TrimSpace(d.Host) == "" {
		errs = append(errs, "dcerno.host must not be empty")
	}
	if d.Port < 1 || d.Port > 65535 {
		errs = append(errs, fmt.Sprintf("dcerno.port must be between 1 and 65535, got %d", d.Port))
	}
	if d.ConnectTimeout <= 0 || d.IOTimeout <= 0 {
		errs = append(errs, "dcerno.connecttimeout and dcerno.iotimeout must be positive")
	}
	if d.MaxReplyBytes < 64 {
		errs = append(errs, fmt.Sprintf("dcerno.maxreplybytes must be at least 64, got %d", d.MaxReplyBytes))
	}
	if d.ClientName == "" {
		errs = append(errs, "dcerno.clientname must not be empty")
	}
	return errs
}

func validatePTZSettings(s *Settings) []string {
	var errs []string
	p := &s.PTZ

	if p.Protocol == "" {
		errs = append(errs, "ptz.protocol must not be empty")
	}
	if p.Timeout <= 0 {
		errs = append(errs, "ptz.timeout must be positive")
	}
	if p.RateLimit < 0 {
		errs = append(errs, "ptz.ratelimit must not be negative")
	}
	if p.RateLimit > 0 && p.Burst < 1 {
		errs = append(errs, "ptz.burst must be at least 1 when ptz.ratelimit is set")
	}

	seen := make(map[string]bool, len(p.Cameras))
	for i, cam := range p.Cameras {
		if cam.IP == "" {
			errs = append(errs, fmt.Sprintf("ptz.cameras[%d].ip must not be empty", i))
			continue
		}
		if seen[cam.IP] {
			errs = append(errs, fmt.Sprintf("ptz.cameras[%d]: duplicate camera %s", i, cam.IP))
		}
		seen[cam.IP] = true
		if cam.BaseURL != "" {
			if u, err := url.Parse(cam.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
				errs = append(errs, fmt.Sprintf("ptz.cameras[%d].baseurl is not an absolute URL: %s", i, cam.BaseURL))
			}
		}
	}
	return errs
}

func validateTrackingSettings(s *Settings) []string {
	var errs []string
	t := &s.Tracking

	if t.Interval <= 0 {
		errs = append(errs, "tracking.interval must be positive")
	}
	if t.ErrorBackoff < 0 || t.Cooldown < 0 {
		errs = append(errs, "tracking.errorbackoff and tracking.cooldown must not be negative")
	}
	if t.HomePosition == "" || t.HomeZoom == "" {
		errs = append(errs, "tracking.homeposition and tracking.homezoom must not be empty")
	}
	if t.AlertAfter < 0 {
		errs = append(errs, "tracking.alertafter must not be negative")
	}
	return errs
}

func validateStoreSettings(s *Settings) []string {
	var errs []string
	st := &s.Store

	if !slices.Contains(StoreBackends, st.Backend) {
		return append(errs, fmt.Sprintf("store.backend must be one of %s, got %q", strings.Join(StoreBackends, ", "), st.Backend))
	}

	switch st.Backend {
	case "json":
		if st.MappingFile == "" || st.SettingsFile == "" {
			errs = append(errs, "store.mappingfile and store.settingsfile are required for the json backend")
		}
		if st.MappingFile != "" && st.MappingFile == st.SettingsFile {
			errs = append(errs, "store.mappingfile and store.settingsfile must differ")
		}
	case "sqlite":
		if st.SQLite.Path == "" {
			errs = append(errs, "store.sqlite.path is required for the sqlite backend")
		}
	case "mysql":
		if st.MySQL.Host == "" || st.MySQL.Database == "" || st.MySQL.Username == "" {
			errs = append(errs, "store.mysql.host, database and username are required for the mysql backend")
		}
	}
	return errs
}

func validateMQTTSettings(s *Settings) []string {
	if !s.MQTT.Enabled {
		return nil
	}

	var errs []string
	u, err := url.Parse(s.MQTT.Broker)
	if err != nil || u.Host == "" {
		errs = append(errs, fmt.Sprintf("mqtt.broker is not a valid broker URL: %s", s.MQTT.Broker))
	} else if !slices.Contains([]string{"tcp", "ssl", "tls", "mqtt", "mqtts", "ws", "wss"}, u.Scheme) {
		errs = append(errs, fmt.Sprintf("mqtt.broker has unsupported scheme %q", u.Scheme))
	}
	if s.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic must not be empty when mqtt is enabled")
	}
	return errs
}

func validateTelemetrySettings(s *Settings) []string {
	if !s.Telemetry.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(s.Telemetry.Listen); err != nil {
		return []string{fmt.Sprintf("telemetry.listen must be host:port, got %q", s.Telemetry.Listen)}
	}
	return nil
}

func validateSentrySettings(s *Settings) []string {
	if s.Sentry.Enabled && s.Sentry.DSN == "" {
		return []string{"sentry.dsn is required when sentry is enabled"}
	}
	return nil
}
