// conf/defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Default values shared with the packages that consume them.
const (
	DefaultDcernoPort      = 5005
	DefaultConnectTimeout  = 20 * time.Second
	DefaultIOTimeout       = 20 * time.Second
	DefaultPingTimeout     = 2 * time.Second
	DefaultMaxReplyBytes   = 4096
	DefaultTickInterval    = time.Second
	DefaultErrorBackoff    = time.Second
	DefaultRestartCooldown = 10 * time.Second
	DefaultHomePosition    = "10"
	DefaultHomeZoom        = "10"
)

// setDefaultConfig sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("dcerno.host", "127.0.0.1")
	viper.SetDefault("dcerno.port", DefaultDcernoPort)
	viper.SetDefault("dcerno.connecttimeout", DefaultConnectTimeout)
	viper.SetDefault("dcerno.iotimeout", DefaultIOTimeout)
	viper.SetDefault("dcerno.pingtimeout", DefaultPingTimeout)
	viper.SetDefault("dcerno.maxreplybytes", DefaultMaxReplyBytes)
	viper.SetDefault("dcerno.clientname", "DU")
	viper.SetDefault("dcerno.clientversion", "1.01")

	viper.SetDefault("ptz.protocol", "vhd")
	viper.SetDefault("ptz.timeout", 5*time.Second)
	viper.SetDefault("ptz.ratelimit", 5.0)
	viper.SetDefault("ptz.burst", 2)
	viper.SetDefault("ptz.cameras", []map[string]any{})

	viper.SetDefault("tracking.interval", DefaultTickInterval)
	viper.SetDefault("tracking.errorbackoff", DefaultErrorBackoff)
	viper.SetDefault("tracking.cooldown", DefaultRestartCooldown)
	viper.SetDefault("tracking.homeposition", DefaultHomePosition)
	viper.SetDefault("tracking.homezoom", DefaultHomeZoom)
	viper.SetDefault("tracking.parallel", false)
	viper.SetDefault("tracking.alertafter", 30)
	viper.SetDefault("tracking.errorloginterval", time.Minute)

	viper.SetDefault("store.backend", "json")
	viper.SetDefault("store.mappingfile", "data/mapping.json")
	viper.SetDefault("store.settingsfile", "data/settings.json")
	viper.SetDefault("store.sqlite.path", "data/camtrack.db")
	viper.SetDefault("store.mysql.username", "")
	viper.SetDefault("store.mysql.password", "")
	viper.SetDefault("store.mysql.passwordfile", "")
	viper.SetDefault("store.mysql.database", "camtrack")
	viper.SetDefault("store.mysql.host", "localhost")
	viper.SetDefault("store.mysql.port", "3306")

	viper.SetDefault("logging.default_level", "info")
	viper.SetDefault("logging.timezone", "Local")
	viper.SetDefault("logging.console.enabled", true)
	viper.SetDefault("logging.console.level", "info")
	viper.SetDefault("logging.file_output.enabled", false)
	viper.SetDefault("logging.file_output.path", "logs/camtrack.log")
	viper.SetDefault("logging.file_output.level", "info")

	viper.SetDefault("mqtt.enabled", false)
	viper.SetDefault("mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("mqtt.topic", "camtrack")
	viper.SetDefault("mqtt.username", "")
	viper.SetDefault("mqtt.password", "")
	viper.SetDefault("mqtt.passwordfile", "")
	viper.SetDefault("mqtt.retain", true)

	viper.SetDefault("notification.enabled", false)
	viper.SetDefault("notification.urls", []string{})

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.listen", "0.0.0.0:8090")

	viper.SetDefault("sentry.enabled", false)
	viper.SetDefault("sentry.dsn", "")
	viper.SetDefault("sentry.environment", "production")
}
