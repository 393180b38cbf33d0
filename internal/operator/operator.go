// Package operator implements the manual operations behind the CLI:
// calling a microphone's preset, registering presets and editing the
// tracking settings.
package operator

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"

	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/logger"
	"github.com/camtrack/dcerno-vhd/internal/ptz"
	"github.com/camtrack/dcerno-vhd/internal/store"
	"github.com/camtrack/dcerno-vhd/internal/tracking"
)

const component = "operator"

// Microphones is the controller view the operator needs. *dcerno.Link implements it.
type Microphones interface {
	HasMicrophone(ctx context.Context, uid string) (bool, error)
}

// Operator runs manual operations against one controller, one camera pool and one store.
type Operator struct {
	mics    Microphones
	cameras tracking.Controllers
	store   store.Store
	log     logger.Logger
}

// New returns an operator; the store must be initialized.
func New(mics Microphones, cameras tracking.Controllers, st store.Store) *Operator {
	return &Operator{
		mics:    mics,
		cameras: cameras,
		store:   st,
		log:     GetLogger(),
	}
}

// Registration is the result of RegisterPreset.
type Registration struct {
	Mapping store.Mapping
	// Reused is true when the microphone kept its existing preset number.
	Reused bool
	Result *ptz.Result
}

// CallMicrophone points the mapped camera at uid's preset.
func (o *Operator) CallMicrophone(ctx context.Context, uid string) (store.Mapping, *ptz.Result, error) {
	if err := o.requireMicrophone(ctx, uid); err != nil {
		return store.Mapping{}, nil, err
	}

	m, ok, err := o.store.Mapping(ctx, uid)
	if err != nil {
		return store.Mapping{}, nil, err
	}
	if !ok || m.CameraIP == "" || m.Number <= 0 {
		return store.Mapping{}, nil, errors.New(fmt.Errorf("microphone %s has no preset", uid)).
			Component(component).
			Category(errors.CategoryNotFound).
			Context("uid", uid).
			Build()
	}

	camera, err := o.cameras.Get(m.CameraIP)
	if err != nil {
		return m, nil, err
	}
	res, err := ptz.PosCall(ctx, camera, m.Number)
	if err != nil {
		return m, nil, err
	}

	o.log.Info("called microphone preset",
		logger.String("uid", uid),
		logger.String("camera", m.CameraIP),
		logger.Int("preset", m.Number))
	return m, res, nil
}

// RegisterPreset stores the current position of cameraIP as uid's preset.
// A mapped microphone keeps its number; otherwise the next free number is
// allocated. The mapping is saved only after the camera accepted posset.
func (o *Operator) RegisterPreset(ctx context.Context, uid, cameraIP string) (Registration, error) {
	if cameraIP == "" {
		return Registration{}, errors.ValidationError("camera IP is required")
	}
	if err := o.requireMicrophone(ctx, uid); err != nil {
		return Registration{}, err
	}

	number, reused, err := store.NextNumber(ctx, o.store, uid)
	if err != nil {
		return Registration{}, err
	}

	camera, err := o.cameras.Get(cameraIP)
	if err != nil {
		return Registration{}, err
	}
	res, err := ptz.PosSet(ctx, camera, number)
	if err != nil {
		return Registration{}, err
	}

	m := store.Mapping{MicroID: uid, CameraIP: cameraIP, Number: number}
	if err := o.store.PutMapping(ctx, m); err != nil {
		return Registration{}, err
	}

	o.log.Info("registered preset",
		logger.String("uid", uid),
		logger.String("camera", cameraIP),
		logger.Int("preset", number),
		logger.Bool("reused", reused))
	return Registration{Mapping: m, Reused: reused, Result: res}, nil
}

// Presets returns all mappings ordered by camera and preset number.
func (o *Operator) Presets(ctx context.Context) ([]store.Mapping, error) {
	mappings, err := o.store.Mappings(ctx)
	if err != nil {
		return nil, err
	}
	return slices.SortedFunc(maps.Values(mappings), func(a, b store.Mapping) int {
		return cmp.Or(
			cmp.Compare(a.CameraIP, b.CameraIP),
			cmp.Compare(a.Number, b.Number),
			cmp.Compare(a.MicroID, b.MicroID),
		)
	}), nil
}

// DeletePreset removes the mapping of uid. The camera keeps its preset slot.
func (o *Operator) DeletePreset(ctx context.Context, uid string) error {
	if err := o.store.DeleteMapping(ctx, uid); err != nil {
		return err
	}
	o.log.Info("deleted preset", logger.String("uid", uid))
	return nil
}

// TrackingFlags returns the tracking settings.
func (o *Operator) TrackingFlags(ctx context.Context) (store.TrackingFlags, error) {
	return o.store.TrackingFlags(ctx)
}

// SetCameraTracking turns tracking of one camera on or off.
func (o *Operator) SetCameraTracking(ctx context.Context, cameraIP string, enabled bool) error {
	if cameraIP == "" {
		return errors.ValidationError("camera IP is required")
	}
	if err := o.store.SetCameraTracking(ctx, cameraIP, enabled); err != nil {
		return err
	}
	o.log.Info("camera tracking changed",
		logger.String("camera", cameraIP),
		logger.Bool("enabled", enabled))
	return nil
}

// SetGlobalTracking turns the global tracking switch on or off.
func (o *Operator) SetGlobalTracking(ctx context.Context, enabled bool) error {
	if err := o.store.SetGlobalTracking(ctx, enabled); err != nil {
		return err
	}
	o.log.Info("global tracking changed", logger.Bool("enabled", enabled))
	return nil
}

func (o *Operator) requireMicrophone(ctx context.Context, uid string) error {
	if uid == "" {
		return errors.ValidationError("microphone uid is required")
	}
	ok, err := o.mics.HasMicrophone(ctx, uid)
	if err != nil {
		return err
	}
	if !ok {
		return errors.New(fmt.Errorf("microphone %s not found on controller", uid)).
			Component(component).
			Category(errors.CategoryNotFound).
			Context("uid", uid).
			Build()
	}
	return nil
}
