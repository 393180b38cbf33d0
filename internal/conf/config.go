// config.go: settings struct for camtrack and functions to load and save it.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/logger"
	"github.com/camtrack/dcerno-vhd/internal/secrets"
)

//go:embed config.yaml
var configFiles embed.FS

// DcernoSettings describes the microphone controller endpoint.
type DcernoSettings struct {
	Host           string        // controller address
	Port           int           // controller TCP port
	ConnectTimeout time.Duration // connect + handshake timeout
	IOTimeout      time.Duration // per send/receive timeout
	PingTimeout    time.Duration // timeout for `mic ping`
	MaxReplyBytes  int           // upper bound for one reply
	ClientName     string        // name announced in the handshake
	ClientVersion  string        // version announced in the handshake
}

// CameraSettings overrides how one camera is reached.
type CameraSettings struct {
	IP       string // camera address as used in the mapping and settings stores
	BaseURL  string // optional, defaults to http://<ip>
	Protocol string // optional, defaults to ptz.protocol
}

// PTZSettings contains settings for the camera control client.
type PTZSettings struct {
	Protocol  string           // camera protocol, "vhd"
	Timeout   time.Duration    // HTTP request timeout
	RateLimit float64          // max requests per second per camera, 0 disables
	Burst     int              // limiter burst
	Cameras   []CameraSettings // per-camera overrides
}

// TrackingSettings contains settings for the tracking engine and scheduler.
type TrackingSettings struct {
	Interval         time.Duration // tick cadence
	ErrorBackoff     time.Duration // extra sleep after a failed tick
	Cooldown         time.Duration // sleep before restarting after an unexpected failure
	HomePosition     string        // position argument of the home command
	HomeZoom         string        // zoom argument of the home command
	Parallel         bool          // issue camera calls of one tick concurrently
	AlertAfter       int           // consecutive failed ticks before an outage alert, 0 disables
	ErrorLogInterval time.Duration // identical tick errors are logged at most once per interval
}

// MySQLSettings contains the mysql store connection.
type MySQLSettings struct {
	Username     string
	Password     string
	PasswordFile string // takes precedence over Password
	Database     string
	Host     string
	Port     string
}

// StoreSettings selects and configures the mapping and settings stores.
type StoreSettings struct {
	Backend      string // json, sqlite or mysql
	MappingFile  string // json backend: microphone to preset mapping
	SettingsFile string // json backend: per-camera tracking flags
	SQLite       struct {
		Path string
	}
	MySQL MySQLSettings
}

// MQTTSettings contains settings for tracking event publishing.
type MQTTSettings struct {
	Enabled      bool   // true to publish tracking events
	Broker       string // MQTT (tcp://host:port)
	Topic        string // topic prefix
	Username     string
	Password     string
	PasswordFile string // takes precedence over Password
	Retain       bool   // retain camera state messages
}

// NotificationSettings contains settings for outage alerts.
type NotificationSettings struct {
	Enabled bool
	URLs    []string // shoutrrr service URLs
}

// TelemetrySettings contains settings for the Prometheus endpoint.
type TelemetrySettings struct {
	Enabled bool   // true to serve /metrics
	Listen  string // IP address and port to listen on
}

// SentrySettings contains settings for opt-in error reporting.
type SentrySettings struct {
	Enabled     bool
	DSN         string
	Environment string
}

// Settings is the root configuration.
type Settings struct {
	Debug bool // true to force debug logging

	// Runtime values, not stored in config file
	Version   string `yaml:"-"`
	BuildDate string `yaml:"-"`

	Dcerno       DcernoSettings
	PTZ          PTZSettings
	Tracking     TrackingSettings
	Store        StoreSettings
	Logging      logger.LoggingConfig
	MQTT         MQTTSettings
	Notification NotificationSettings
	Telemetry    TelemetrySettings
	Sentry       SentrySettings
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads configuration from configFile, or from the default config paths
// when configFile is empty. A missing file is created from the embedded default.
func Load(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings := &Settings{}

	if err := initViper(configFile); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	if err := viper.Unmarshal(settings); err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "unmarshal-config").
			Build()
	}

	if settings.Debug {
		settings.Logging.DefaultLevel = string(logger.LogLevelDebug)
		if settings.Logging.Console != nil {
			settings.Logging.Console.Level = string(logger.LogLevelDebug)
		}
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("error validating settings: %w", err)
	}

	settingsInstance = settings
	return settingsInstance, nil
}

// resolveSecrets replaces credential references with their values.
// Saved configs therefore hold resolved secrets.
func resolveSecrets(s *Settings) error {
	var err error
	if s.Store.MySQL.Password, err = secrets.Resolve(s.Store.MySQL.PasswordFile, s.Store.MySQL.Password); err != nil {
		return fmt.Errorf("store.mysql.password: %w", err)
	}
	if s.MQTT.Password, err = secrets.Resolve(s.MQTT.PasswordFile, s.MQTT.Password); err != nil {
		return fmt.Errorf("mqtt.password: %w", err)
	}
	if s.Sentry.DSN, err = secrets.Expand(s.Sentry.DSN); err != nil {
		return fmt.Errorf("sentry.dsn: %w", err)
	}
	if err := secrets.ResolveAll(s.Notification.URLs); err != nil {
		return fmt.Errorf("notification.urls: %w", err)
	}
	return nil
}

// initViper sets defaults, binds the environment and reads the config file.
func initViper(configFile string) error {
	setDefaultConfig()

	if err := bindEnvVars(); err != nil {
		// bad env values are reported but the file and defaults still apply
		GetLogger().Warn("environment configuration issues", logger.Error(err))
	}

	if configFile != "" {
		viper.SetConfigFile(configFile)
		if _, err := os.Stat(configFile); os.IsNotExist(err) {
			if err := writeDefaultConfig(configFile); err != nil {
				return err
			}
		}
		return readConfig()
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return fmt.Errorf("error getting default config paths: %w", err)
	}
	for _, path := range configPaths {
		viper.AddConfigPath(path)
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return createDefaultConfig(configPaths)
		}
		return fmt.Errorf("fatal error reading config file: %w", err)
	}
	return nil
}

func readConfig() error {
	if err := viper.ReadInConfig(); err != nil {
		return errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("config_file", viper.ConfigFileUsed()).
			Build()
	}
	return nil
}

// createDefaultConfig writes the embedded default config to the first default path.
func createDefaultConfig(configPaths []string) error {
	if len(configPaths) == 0 {
		return errors.Newf("no config path available").
			Category(errors.CategoryConfiguration).
			Build()
	}
	configPath := filepath.Join(configPaths[0], "config.yaml")
	if err := writeDefaultConfig(configPath); err != nil {
		return err
	}
	viper.SetConfigFile(configPath)
	return readConfig()
}

func writeDefaultConfig(configPath string) error {
	defaultConfig, err := getDefaultConfig()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "create-config-dir").
			Build()
	}

	if err := os.WriteFile(configPath, defaultConfig, 0o600); err != nil {
		return errors.New(err).
			Category(errors.CategoryFileIO).
			Context("operation", "write-default-config").
			Build()
	}

	GetLogger().Info("created default config file", logger.String("path", configPath))
	return nil
}

// getDefaultConfig reads the embedded config.yaml.
func getDefaultConfig() ([]byte, error) {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return nil, errors.New(err).
			Category(errors.CategoryConfiguration).
			Context("operation", "read-embedded-config").
			Build()
	}
	return data, nil
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// MarshalYAML renders settings in config file form.
func MarshalYAML(settings *Settings) ([]byte, error) {
	data, err := yaml.Marshal(settings)
	if err != nil {
		return nil, fmt.Errorf("error marshaling settings to YAML: %w", err)
	}
	return data, nil
}

// SaveYAMLConfig writes settings to configPath atomically.
// Comments and ordering of an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := MarshalYAML(settings)
	if err != nil {
		return err
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer func() { _ = os.Remove(tempFileName) }()

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return fmt.Errorf("error replacing config file: %w", err)
	}
	return nil
}

// CameraOverride returns the configured override for a camera IP, if any.
func (p PTZSettings) CameraOverride(ip string) (CameraSettings, bool) {
	for _, cam := range p.Cameras {
		if cam.IP == ip {
			return cam, true
		}
	}
	return CameraSettings{}, false
}
