package ptz

import (
	"fmt"
	"sync"

	"github.com/camtrack/dcerno-vhd/internal/conf"
	"github.com/camtrack/dcerno-vhd/internal/errors"
)

// Pool builds controllers on demand and keeps one per camera.
type Pool struct {
	settings conf.PTZSettings
	base     Options

	mu          sync.Mutex
	controllers map[string]Controller
}

// NewPool returns a Pool for the configured protocol and per-camera overrides.
// base supplies the shared http client, metrics and logger.
func NewPool(settings conf.PTZSettings, base Options) *Pool {
	if base.Timeout == 0 {
		base.Timeout = settings.Timeout
	}
	if base.RateLimit == 0 {
		base.RateLimit = settings.RateLimit
	}
	if base.Burst == 0 {
		base.Burst = settings.Burst
	}
	return &Pool{
		settings:    settings,
		base:        base,
		controllers: make(map[string]Controller),
	}
}

// Validate checks the default protocol and every per-camera override
// against the registered protocols.
func (p *Pool) Validate() error {
	var errs []error
	check := func(field, protocol string) {
		if protocol == "" || registered(protocol) {
			return
		}
		errs = append(errs, fmt.Errorf("%s: unknown camera protocol %q", field, protocol))
	}
	check("ptz.protocol", p.settings.Protocol)
	for i, cam := range p.settings.Cameras {
		check(fmt.Sprintf("ptz.cameras[%d].protocol", i), cam.Protocol)
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.New(errors.Join(errs...)).
		Component(component).
		Category(errors.CategoryConfiguration).
		Context("available", Protocols()).
		Build()
}

// Get returns the controller of cameraIP, creating it on first use.
func (p *Pool) Get(cameraIP string) (Controller, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if c, ok := p.controllers[cameraIP]; ok {
		return c, nil
	}

	protocol := p.settings.Protocol
	opts := p.base
	if cam, ok := p.settings.CameraOverride(cameraIP); ok {
		if cam.Protocol != "" {
			protocol = cam.Protocol
		}
		opts.BaseURL = cam.BaseURL
	}
	if protocol == "" {
		protocol = ProtocolVHD
	}

	c, err := New(protocol, cameraIP, opts)
	if err != nil {
		return nil, err
	}
	p.controllers[cameraIP] = c
	return c, nil
}
