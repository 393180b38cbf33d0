// Package tracking decides, once per tick, where each managed camera should
// point given the active microphones and the preset mapping.
package tracking

import (
	"context"
	"slices"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/camtrack/dcerno-vhd/internal/dcerno"
	"github.com/camtrack/dcerno-vhd/internal/logger"
	"github.com/camtrack/dcerno-vhd/internal/observability/metrics"
	"github.com/camtrack/dcerno-vhd/internal/ptz"
	"github.com/camtrack/dcerno-vhd/internal/store"
)

// Defaults of the home command arguments.
const (
	DefaultHomePosition = "10"
	DefaultHomeZoom     = "10"
)

// Controllers resolves the controller of a camera. *ptz.Pool implements it.
type Controllers interface {
	Get(cameraIP string) (ptz.Controller, error)
}

// EventSink receives completed transitions.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

// Config tunes the engine.
type Config struct {
	HomePosition string
	HomeZoom     string
	// Parallel issues the calls of different cameras concurrently.
	Parallel bool

	Logger  logger.Logger
	Metrics *metrics.TrackingMetrics
	Sink    EventSink
	Now     func() time.Time
}

// Engine owns the per-camera states. It is safe for use by one scheduler
// loop; State and States may be called concurrently with Evaluate.
type Engine struct {
	cfg         Config
	controllers Controllers
	log         logger.Logger

	mu     sync.Mutex
	states map[string]State
}

// NewEngine returns an engine with every camera assumed parked.
func NewEngine(controllers Controllers, cfg Config) *Engine {
	if cfg.HomePosition == "" {
		cfg.HomePosition = DefaultHomePosition
	}
	if cfg.HomeZoom == "" {
		cfg.HomeZoom = DefaultHomeZoom
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	log := cfg.Logger
	if log == nil {
		log = GetLogger()
	}
	return &Engine{
		cfg:         cfg,
		controllers: controllers,
		log:         log,
		states:      make(map[string]State),
	}
}

// State returns the state of cameraIP; unknown cameras are Home.
func (e *Engine) State(cameraIP string) State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.states[cameraIP]
}

// States returns a copy of all known states.
func (e *Engine) States() map[string]State {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make(map[string]State, len(e.states))
	for ip, s := range e.states {
		out[ip] = s
	}
	return out
}

func (e *Engine) setState(cameraIP string, s State) {
	e.mu.Lock()
	e.states[cameraIP] = s
	e.mu.Unlock()
}

// decision is the command one camera needs this tick; zero means no-op.
type decision struct {
	to       State
	action   string
	position string
	zoom     string
	preset   int
}

// decide applies the transition rules for one camera. active lists the
// active uids in controller listing order.
func (e *Engine) decide(cameraIP string, current State, active []string, mappings map[string]store.Mapping) decision {
	mappedHere := func(uid string) (store.Mapping, bool) {
		m, ok := mappings[uid]
		return m, ok && m.CameraIP == cameraIP && m.Number > 0
	}

	if !current.IsHome() && slices.Contains(active, current.MicroID) {
		if _, ok := mappedHere(current.MicroID); ok {
			return decision{}
		}
	}

	// first active uid mapped to this camera, in listing order
	for _, uid := range active {
		if uid == current.MicroID {
			continue
		}
		if m, ok := mappedHere(uid); ok {
			return decision{
				to:       Tracking(uid),
				action:   ptz.ActionPosCall,
				position: strconv.Itoa(m.Number),
				preset:   m.Number,
			}
		}
	}

	if current.IsHome() {
		return decision{}
	}
	return decision{
		to:       Home,
		action:   ptz.ActionHome,
		position: e.cfg.HomePosition,
		zoom:     e.cfg.HomeZoom,
	}
}

// Evaluate runs one tick for the given cameras against a single snapshot of
// units and mappings. Each camera gets at most one call. A failed call leaves
// that camera's state unchanged and is returned in its Outcome.
func (e *Engine) Evaluate(ctx context.Context, units []dcerno.MicrophoneUnit, mappings map[string]store.Mapping, cameras []string) []Outcome {
	active := make([]string, 0, len(units))
	for _, u := range units {
		if u.Active {
			active = append(active, u.UID)
		}
	}

	cameras = uniqueCameras(cameras)
	outcomes := make([]Outcome, len(cameras))

	if e.cfg.Parallel && len(cameras) > 1 {
		g, gctx := errgroup.WithContext(ctx)
		for i, ip := range cameras {
			g.Go(func() error {
				outcomes[i] = e.evaluateCamera(gctx, ip, active, mappings)
				return nil
			})
		}
		_ = g.Wait()
		return outcomes
	}

	for i, ip := range cameras {
		outcomes[i] = e.evaluateCamera(ctx, ip, active, mappings)
	}
	return outcomes
}

func (e *Engine) evaluateCamera(ctx context.Context, cameraIP string, active []string, mappings map[string]store.Mapping) Outcome {
	current := e.State(cameraIP)
	outcome := Outcome{CameraIP: cameraIP, From: current, To: current}

	d := e.decide(cameraIP, current, active, mappings)
	if d.action == "" {
		return outcome
	}

	log := e.log.With(
		logger.String("camera", cameraIP),
		logger.String("from", current.String()),
		logger.String("to", d.to.String()))

	controller, err := e.controllers.Get(cameraIP)
	if err == nil {
		_, err = controller.Call(ctx, d.action, d.position, d.zoom)
	}
	if err != nil {
		e.cfg.Metrics.RecordCallError(cameraIP)
		log.Warn("camera call failed, will retry next tick",
			logger.String("action", d.action),
			logger.Error(err))
		outcome.Err = err
		outcome.Action = d.action
		return outcome
	}

	e.setState(cameraIP, d.to)
	e.cfg.Metrics.RecordTransition(cameraIP, d.action)
	log.Info("camera moved", logger.String("action", d.action), logger.Int("preset", d.preset))

	outcome.To = d.to
	outcome.Action = d.action
	outcome.Preset = d.preset

	e.emit(ctx, Event{
		CameraIP: cameraIP,
		From:     current.String(),
		To:       d.to.String(),
		MicroID:  d.to.MicroID,
		Action:   d.action,
		Preset:   d.preset,
		Time:     e.cfg.Now(),
	})
	return outcome
}

func (e *Engine) emit(ctx context.Context, event Event) {
	if e.cfg.Sink == nil {
		return
	}
	if err := e.cfg.Sink.Publish(ctx, event); err != nil {
		e.log.Warn("failed to publish tracking event",
			logger.String("camera", event.CameraIP),
			logger.Error(err))
	}
}

func uniqueCameras(cameras []string) []string {
	seen := make(map[string]struct{}, len(cameras))
	out := make([]string, 0, len(cameras))
	for _, ip := range cameras {
		if ip == "" {
			continue
		}
		if _, ok := seen[ip]; ok {
			continue
		}
		seen[ip] = struct{}{}
		out = append(out, ip)
	}
	return out
}
