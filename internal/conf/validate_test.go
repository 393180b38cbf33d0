package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	s := &Settings{}
	s.Dcerno = DcernoSettings{
		Host:           "127.0.0.1",
		Port:           DefaultDcernoPort,
		ConnectTimeout: DefaultConnectTimeout,
		IOTimeout:      DefaultIOTimeout,
		MaxReplyBytes:  DefaultMaxReplyBytes,
		ClientName:     "DU",
		ClientVersion:  "1.01",
	}
	s.PTZ = PTZSettings{Protocol: "vhd", Timeout: 5 * time.Second, RateLimit: 5, Burst: 2}
	s.Tracking = TrackingSettings{
		Interval:     DefaultTickInterval,
		ErrorBackoff: DefaultErrorBackoff,
		Cooldown:     DefaultRestartCooldown,
		HomePosition: DefaultHomePosition,
		HomeZoom:     DefaultHomeZoom,
	}
	s.Store = StoreSettings{Backend: "json", MappingFile: "mapping.json", SettingsFile: "settings.json"}
	return s
}

func TestValidateSettings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Settings)
		wantErr string
	}{
		{"valid", func(*Settings) {}, ""},
		{"empty host", func(s *Settings) { s.Dcerno.Host = " " }, "dcerno.host"},
		{"bad port", func(s *Settings) { s.Dcerno.Port = 0 }, "dcerno.port"},
		{"zero interval", func(s *Settings) { s.Tracking.Interval = 0 }, "tracking.interval"},
		{"unknown backend", func(s *Settings) { s.Store.Backend = "redis" }, "store.backend"},
		{"same store files", func(s *Settings) { s.Store.SettingsFile = s.Store.MappingFile }, "must differ"},
		{"mysql without host", func(s *Settings) {
			s.Store.Backend = "mysql"
		}, "store.mysql"},
		{"duplicate camera", func(s *Settings) {
			s.PTZ.Cameras = []CameraSettings{{IP: "10.0.0.5"}, {IP: "10.0.0.5"}}
		}, "duplicate camera"},
		{"relative camera url", func(s *Settings) {
			s.PTZ.Cameras = []CameraSettings{{IP: "10.0.0.5", BaseURL: "10.0.0.5:8080"}}
		}, "baseurl"},
		{"mqtt bad scheme", func(s *Settings) {
			s.MQTT = MQTTSettings{Enabled: true, Broker: "http://broker:1883", Topic: "camtrack"}
		}, "unsupported scheme"},
		{"telemetry listen", func(s *Settings) {
			s.Telemetry = TelemetrySettings{Enabled: true, Listen: "8090"}
		}, "telemetry.listen"},
		{"sentry without dsn", func(s *Settings) { s.Sentry.Enabled = true }, "sentry.dsn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := validSettings()
			tt.mutate(s)

			err := ValidateSettings(s)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestEnvValidators(t *testing.T) {
	t.Parallel()

	assert.NoError(t, validateEnvPort("5005"))
	assert.Error(t, validateEnvPort("0"))
	assert.Error(t, validateEnvPort("abc"))
	assert.NoError(t, validateEnvDuration("250ms"))
	assert.Error(t, validateEnvDuration("-1s"))
	assert.NoError(t, validateEnvStoreBackend("sqlite"))
	assert.Error(t, validateEnvStoreBackend("postgres"))
	assert.NoError(t, validateEnvListen(":8090"))
	assert.Error(t, validateEnvHost("bad host"))
	assert.Error(t, validateEnvBool("maybe"))
}
