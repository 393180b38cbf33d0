// Package store persists the microphone to preset mapping and the
// per-camera tracking flags.
package store

import (
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/camtrack/dcerno-vhd/internal/conf"
	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/logger"
)

const component = "store"

// GlobalTrackingKey is the settings key of the global tracking switch.
const GlobalTrackingKey = "tracking_enabled"

// Backend names accepted by Open.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendMySQL  = "mysql"
	BackendMemory = "memory"
)

// Mapping points a microphone at a camera preset.
type Mapping struct {
	MicroID  string `json:"micro_id"`
	CameraIP string `json:"camera_ip"`
	Number   int    `json:"number"`
}

// TrackingFlags is a snapshot of the tracking settings.
type TrackingFlags struct {
	// GlobalEnabled is false until the global switch is turned on.
	GlobalEnabled bool
	// Cameras maps camera IP to its tracking flag.
	Cameras map[string]bool
}

// EnabledCameras returns the cameras with tracking on, sorted.
func (f TrackingFlags) EnabledCameras() []string {
	enabled := make([]string, 0, len(f.Cameras))
	for _, ip := range slices.Sorted(maps.Keys(f.Cameras)) {
		if f.Cameras[ip] {
			enabled = append(enabled, ip)
		}
	}
	return enabled
}

// MappingStore holds at most one mapping per microphone uid.
type MappingStore interface {
	// Mappings returns all mappings keyed by microphone uid.
	Mappings(ctx context.Context) (map[string]Mapping, error)
	// Mapping returns the mapping of uid; ok is false when none exists.
	Mapping(ctx context.Context, uid string) (m Mapping, ok bool, err error)
	// PutMapping creates or replaces the mapping of m.MicroID.
	PutMapping(ctx context.Context, m Mapping) error
	// DeleteMapping removes the mapping of uid; a missing uid is a NotFound error.
	DeleteMapping(ctx context.Context, uid string) error
}

// SettingsStore holds the tracking flags.
type SettingsStore interface {
	TrackingFlags(ctx context.Context) (TrackingFlags, error)
	SetCameraTracking(ctx context.Context, cameraIP string, enabled bool) error
	SetGlobalTracking(ctx context.Context, enabled bool) error
}

// Store is a backend serving both stores.
type Store interface {
	MappingStore
	SettingsStore

	// Init creates empty stores when absent.
	Init(ctx context.Context) error
	Close() error
}

// Open returns the backend selected by settings.Backend.
func Open(settings conf.StoreSettings, log logger.Logger) (Store, error) {
	if log == nil {
		log = GetLogger()
	}

	switch settings.Backend {
	case BackendJSON, "":
		return NewJSONStore(settings.MappingFile, settings.SettingsFile), nil
	case BackendSQLite:
		return OpenSQLite(settings.SQLite.Path, log)
	case BackendMySQL:
		return OpenMySQL(settings.MySQL, log)
	case BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, errors.New(fmt.Errorf("unknown store backend %q", settings.Backend)).
			Component(component).
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func notFound(uid string) error {
	return errors.New(fmt.Errorf("microphone %s has no preset", uid)).
		Component(component).
		Category(errors.CategoryNotFound).
		Context("uid", uid).
		Build()
}

func validateMapping(m Mapping) error {
	if m.MicroID == "" {
		return errors.New(errors.NewStd("mapping has no microphone id")).
			Component(component).
			Category(errors.CategoryValidation).
			Build()
	}
	if m.Number <= 0 {
		return errors.New(fmt.Errorf("preset number %d is not positive", m.Number)).
			Component(component).
			Category(errors.CategoryValidation).
			Context("uid", m.MicroID).
			Build()
	}
	return nil
}
