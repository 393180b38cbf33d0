// Package scheduler runs the tracking loop: one controller snapshot per
// tick, evaluated for every enabled camera, with backoff on errors and a
// full restart after unexpected failures.
package scheduler

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/camtrack/dcerno-vhd/internal/dcerno"
	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/logger"
	"github.com/camtrack/dcerno-vhd/internal/observability/metrics"
	"github.com/camtrack/dcerno-vhd/internal/store"
	"github.com/camtrack/dcerno-vhd/internal/tracking"
)

const component = "scheduler"

// Defaults applied by New to zero Config fields.
const (
	DefaultInterval         = time.Second
	DefaultErrorBackoff     = time.Second
	DefaultCooldown         = 10 * time.Second
	DefaultErrorLogInterval = time.Minute
)

// purgeEvery is how many ticks pass between sweeps of the error log cache.
const purgeEvery = 300

// UnitSource is the microphone controller session. *dcerno.Link implements it.
type UnitSource interface {
	GetActiveUnits(ctx context.Context) ([]dcerno.MicrophoneUnit, error)
	Close() error
}

// Connector opens a fresh controller session for each run.
type Connector func() UnitSource

// Alerter is told about controller outages.
type Alerter interface {
	Outage(ctx context.Context, failures int, cause error) error
	Recovered(ctx context.Context, downtime time.Duration) error
}

// Config tunes the loop.
type Config struct {
	Interval     time.Duration
	ErrorBackoff time.Duration
	Cooldown     time.Duration
	// AlertAfter is the number of consecutive controller failures before an
	// outage alert; zero disables alerts.
	AlertAfter int
	// ErrorLogInterval limits identical tick errors to one warning per interval.
	ErrorLogInterval time.Duration

	Logger  logger.Logger
	Metrics *metrics.TrackingMetrics
	Alerter Alerter
}

// Result of one tick.
type Result struct {
	Status   string // metrics.TickOK, TickSkipped or TickError
	Outcomes []tracking.Outcome
}

// Scheduler drives the engine.
type Scheduler struct {
	cfg     Config
	connect Connector
	store   store.Store
	engine  *tracking.Engine
	log     logger.Logger

	errorLog *cache.Cache
	ticks    int

	failures  int
	alerted   bool
	downSince time.Time
}

// New returns a scheduler; connect is called at the start of every run.
func New(cfg Config, connect Connector, st store.Store, engine *tracking.Engine) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = DefaultErrorBackoff
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	if cfg.ErrorLogInterval <= 0 {
		cfg.ErrorLogInterval = DefaultErrorLogInterval
	}
	log := cfg.Logger
	if log == nil {
		log = GetLogger()
	}
	return &Scheduler{
		cfg:     cfg,
		connect: connect,
		store:   st,
		engine:  engine,
		log:     log,
		// no janitor goroutine; expired entries are swept from the loop
		errorLog: cache.New(cfg.ErrorLogInterval, 0),
	}
}

// Run loops until ctx is done. An unexpected error or panic ends the
// current run; after the cooldown a new run starts with a fresh session.
// Camera states survive restarts.
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.Info("tracking scheduler started",
		logger.Duration("interval", s.cfg.Interval),
		logger.Duration("cooldown", s.cfg.Cooldown))

	for {
		err := s.runOnce(ctx)
		if ctx.Err() != nil {
			s.log.Info("tracking scheduler stopped")
			return nil
		}

		s.cfg.Metrics.RecordRestart()
		s.log.Error("tracking run failed, restarting after cooldown",
			logger.Duration("cooldown", s.cfg.Cooldown),
			logger.Error(err))
		if !sleep(ctx, s.cfg.Cooldown) {
			s.log.Info("tracking scheduler stopped")
			return nil
		}
	}
}

// runOnce owns one controller session. It returns on ctx cancellation or an
// unexpected error; panics are converted to errors.
func (s *Scheduler) runOnce(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.New(fmt.Errorf("panic in tracking loop: %v", r)).
				Component(component).
				Category(errors.CategorySystem).
				Priority(errors.PriorityCritical).
				Context("stack", string(debug.Stack())).
				Build()
		}
	}()

	link := s.connect()
	defer func() {
		if cerr := link.Close(); cerr != nil {
			s.log.Debug("closing controller session failed", logger.Error(cerr))
		}
	}()

	for {
		if !sleep(ctx, s.cfg.Interval) {
			return ctx.Err()
		}

		_, tickErr := s.Tick(ctx, link)
		if tickErr == nil {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isExpected(tickErr) {
			return tickErr
		}
		if !sleep(ctx, s.cfg.ErrorBackoff) {
			return ctx.Err()
		}
	}
}

// Tick runs one tracking cycle. Expected failures (controller, camera and
// store errors) are logged here and returned so the caller backs off.
func (s *Scheduler) Tick(ctx context.Context, link UnitSource) (Result, error) {
	start := time.Now()
	result, err := s.tick(ctx, link)
	s.cfg.Metrics.RecordTick(result.Status, time.Since(start).Seconds())

	s.ticks++
	if s.ticks%purgeEvery == 0 {
		s.errorLog.DeleteExpired()
	}

	if err != nil && isExpected(err) {
		s.logThrottled(err)
	}
	return result, err
}

func (s *Scheduler) tick(ctx context.Context, link UnitSource) (Result, error) {
	if err := s.store.Init(ctx); err != nil {
		return Result{Status: metrics.TickError}, err
	}

	flags, err := s.store.TrackingFlags(ctx)
	if err != nil {
		return Result{Status: metrics.TickError}, err
	}
	if !flags.GlobalEnabled {
		return Result{Status: metrics.TickSkipped}, nil
	}
	cameras := flags.EnabledCameras()
	if len(cameras) == 0 {
		return Result{Status: metrics.TickSkipped}, nil
	}

	mappings, err := s.store.Mappings(ctx)
	if err != nil {
		return Result{Status: metrics.TickError}, err
	}
	if len(mappings) == 0 && s.allParked(cameras) {
		return Result{Status: metrics.TickSkipped}, nil
	}

	units, err := link.GetActiveUnits(ctx)
	if err != nil {
		s.controllerFailed(ctx, err)
		return Result{Status: metrics.TickError}, err
	}
	s.controllerRecovered(ctx)

	outcomes := s.engine.Evaluate(ctx, units, mappings, cameras)
	var callErrs []error
	for _, o := range outcomes {
		if o.Err != nil {
			callErrs = append(callErrs, o.Err)
		}
	}
	if len(callErrs) > 0 {
		// per-camera failures never restart the run
		err := errors.New(errors.Join(callErrs...)).
			Component(component).
			Category(errors.CategoryClient).
			Context("failed_cameras", len(callErrs)).
			Build()
		return Result{Status: metrics.TickError, Outcomes: outcomes}, err
	}
	return Result{Status: metrics.TickOK, Outcomes: outcomes}, nil
}

func (s *Scheduler) allParked(cameras []string) bool {
	for _, ip := range cameras {
		if !s.engine.State(ip).IsHome() {
			return false
		}
	}
	return true
}

func (s *Scheduler) controllerFailed(ctx context.Context, err error) {
	if s.failures == 0 {
		s.downSince = time.Now()
	}
	s.failures++

	if s.cfg.Alerter == nil || s.cfg.AlertAfter <= 0 || s.alerted || s.failures < s.cfg.AlertAfter {
		return
	}
	s.alerted = true
	if aerr := s.cfg.Alerter.Outage(ctx, s.failures, err); aerr != nil {
		s.log.Warn("failed to send outage alert", logger.Error(aerr))
	}
}

func (s *Scheduler) controllerRecovered(ctx context.Context) {
	if s.failures == 0 {
		return
	}
	downtime := time.Since(s.downSince)
	if s.alerted && s.cfg.Alerter != nil {
		if aerr := s.cfg.Alerter.Recovered(ctx, downtime); aerr != nil {
			s.log.Warn("failed to send recovery notice", logger.Error(aerr))
		}
	}
	s.log.Info("microphone controller reachable again",
		logger.Int("failed_ticks", s.failures),
		logger.Duration("downtime", downtime))
	s.failures = 0
	s.alerted = false
}

// logThrottled warns once per ErrorLogInterval for each distinct message.
func (s *Scheduler) logThrottled(err error) {
	key := err.Error()
	if s.errorLog.Add(key, struct{}{}, cache.DefaultExpiration) == nil {
		s.log.Warn("tracking tick failed", logger.Error(err))
		return
	}
	s.log.Debug("tracking tick failed (repeated)", logger.Error(err))
}

// isExpected reports errors the loop backs off from instead of restarting.
func isExpected(err error) bool {
	for _, category := range []errors.ErrorCategory{
		errors.CategoryClient,
		errors.CategoryConnect,
		errors.CategoryTransport,
		errors.CategoryDecode,
		errors.CategoryFileIO,
		errors.CategoryDatabase,
	} {
		if errors.HasCategory(err, category) {
			return true
		}
	}
	return false
}

// sleep waits d or until ctx is done; it reports whether the full wait elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
