// Package ptz drives PTZ cameras over their HTTP CGI interface.
package ptz

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/httpclient"
	"github.com/camtrack/dcerno-vhd/internal/logger"
	"github.com/camtrack/dcerno-vhd/internal/observability/metrics"
)

const component = "ptz"

// Actions understood by ptzctrl.cgi.
const (
	ActionHome    = "home"
	ActionPosCall = "poscall"
	ActionPosSet  = "posset"
)

// Result is a successful camera answer.
type Result struct {
	Action     string
	StatusCode int
	Body       string
}

// Controller drives one camera.
type Controller interface {
	// Call issues ptzcmd with action and the optional position and zoom
	// arguments; empty strings are omitted.
	Call(ctx context.Context, action, position, zoom string) (*Result, error)

	// Ping fetches the device configuration as a liveness probe.
	Ping(ctx context.Context) (string, error)

	// Address is the camera IP the controller was built for.
	Address() string
}

// Home parks the camera at the given home position and zoom.
func Home(ctx context.Context, c Controller, position, zoom string) (*Result, error) {
	return c.Call(ctx, ActionHome, position, zoom)
}

// PosCall moves the camera to a saved preset.
func PosCall(ctx context.Context, c Controller, preset int) (*Result, error) {
	return c.Call(ctx, ActionPosCall, strconv.Itoa(preset), "")
}

// PosSet stores the current camera position as a preset.
func PosSet(ctx context.Context, c Controller, preset int) (*Result, error) {
	return c.Call(ctx, ActionPosSet, strconv.Itoa(preset), "")
}

// Options configure a controller built by a Factory.
type Options struct {
	// BaseURL overrides the default http://<camera ip>.
	BaseURL string
	// Timeout bounds one request.
	Timeout time.Duration
	// RateLimit is requests per second per camera; zero disables limiting.
	RateLimit float64
	Burst     int
	// Retry repeats requests that fail on transport errors or 5xx
	// answers. Nil sends each command once.
	Retry *httpclient.RetryPolicy

	HTTPClient *httpclient.Client
	Metrics    *metrics.PTZMetrics
	Logger     logger.Logger
}

// Factory builds a controller for one camera.
type Factory func(cameraIP string, opts Options) (Controller, error)

var (
	registryMu sync.RWMutex
	factories  = map[string]Factory{
		ProtocolVHD: NewVHD,
	}
)

// Register adds a camera protocol at startup. Registering a name twice replaces the factory.
func Register(protocol string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	factories[protocol] = factory
}

// Protocols lists the registered protocol names, sorted.
func Protocols() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return slices.Sorted(maps.Keys(factories))
}

func registered(protocol string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := factories[protocol]
	return ok
}

// New builds a controller for cameraIP speaking protocol.
func New(protocol, cameraIP string, opts Options) (Controller, error) {
	registryMu.RLock()
	factory, ok := factories[protocol]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.New(fmt.Errorf("unknown camera protocol %q", protocol)).
			Component(component).
			Category(errors.CategoryConfiguration).
			Context("protocol", protocol).
			Context("available", Protocols()).
			Build()
	}
	if cameraIP == "" {
		return nil, errors.New(errors.NewStd("camera address is empty")).
			Component(component).
			Category(errors.CategoryValidation).
			Build()
	}
	return factory(cameraIP, opts)
}
