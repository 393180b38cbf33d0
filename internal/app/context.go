// Package app holds the application state shared by the cli commands and
// builds the components from it.
package app

import (
	"context"

	"github.com/camtrack/dcerno-vhd/internal/buildinfo"
	"github.com/camtrack/dcerno-vhd/internal/conf"
	"github.com/camtrack/dcerno-vhd/internal/dcerno"
	"github.com/camtrack/dcerno-vhd/internal/httpclient"
	"github.com/camtrack/dcerno-vhd/internal/mqtt"
	"github.com/camtrack/dcerno-vhd/internal/notification"
	"github.com/camtrack/dcerno-vhd/internal/observability"
	"github.com/camtrack/dcerno-vhd/internal/observability/metrics"
	"github.com/camtrack/dcerno-vhd/internal/operator"
	"github.com/camtrack/dcerno-vhd/internal/ptz"
	"github.com/camtrack/dcerno-vhd/internal/scheduler"
	"github.com/camtrack/dcerno-vhd/internal/store"
	"github.com/camtrack/dcerno-vhd/internal/tracking"
)

// Context holds the overall application state. Settings is filled by the
// root command before any subcommand runs; Metrics stays nil until then.
type Context struct {
	Settings *conf.Settings
	Build    *buildinfo.Context
	Metrics  *observability.Metrics
}

// NewContext returns a context for the given build metadata.
func NewContext(build *buildinfo.Context) *Context {
	if build == nil {
		build = &buildinfo.Context{}
	}
	return &Context{Build: build}
}

// DcernoConfig maps the dcerno settings section to a link config.
func (c *Context) DcernoConfig() dcerno.Config {
	s := c.Settings.Dcerno
	return dcerno.Config{
		Host:           s.Host,
		Port:           s.Port,
		ConnectTimeout: s.ConnectTimeout,
		IOTimeout:      s.IOTimeout,
		PingTimeout:    s.PingTimeout,
		MaxReplyBytes:  s.MaxReplyBytes,
		ClientName:     s.ClientName,
		ClientVersion:  s.ClientVersion,
		Metrics:        c.dcernoMetrics(),
	}
}

// NewLink returns an unconnected link to the configured controller.
func (c *Context) NewLink() *dcerno.Link {
	return dcerno.New(c.DcernoConfig())
}

// NewPool returns the camera pool. retry is nil for the tracking loop,
// which never repeats a camera command within one tick.
func (c *Context) NewPool(retry *httpclient.RetryPolicy) *ptz.Pool {
	client := httpclient.New(&httpclient.Config{DefaultTimeout: c.Settings.PTZ.Timeout})
	return ptz.NewPool(c.Settings.PTZ, ptz.Options{
		Retry:      retry,
		HTTPClient: client,
		Metrics:    c.ptzMetrics(),
	})
}

// OpenStore opens and initialises the configured store backend.
func (c *Context) OpenStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(c.Settings.Store, nil)
	if err != nil {
		return nil, err
	}
	if err := st.Init(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

// NewEngine returns a tracking engine over pool; sink may be nil.
func (c *Context) NewEngine(pool *ptz.Pool, sink tracking.EventSink) *tracking.Engine {
	t := c.Settings.Tracking
	return tracking.NewEngine(pool, tracking.Config{
		HomePosition: t.HomePosition,
		HomeZoom:     t.HomeZoom,
		Parallel:     t.Parallel,
		Metrics:      c.trackingMetrics(),
		Sink:         sink,
	})
}

// NewScheduler returns the tracking loop. Every run dials a fresh link.
// alerter may be nil.
func (c *Context) NewScheduler(st store.Store, engine *tracking.Engine, alerter scheduler.Alerter) *scheduler.Scheduler {
	t := c.Settings.Tracking
	cfg := scheduler.Config{
		Interval:         t.Interval,
		ErrorBackoff:     t.ErrorBackoff,
		Cooldown:         t.Cooldown,
		AlertAfter:       t.AlertAfter,
		ErrorLogInterval: t.ErrorLogInterval,
		Metrics:          c.trackingMetrics(),
		Alerter:          alerter,
	}
	connect := func() scheduler.UnitSource { return c.NewLink() }
	return scheduler.New(cfg, connect, st, engine)
}

// NewOperator returns the operator actions over an open link and store.
func (c *Context) NewOperator(link *dcerno.Link, pool *ptz.Pool, st store.Store) *operator.Operator {
	return operator.New(link, pool, st)
}

// OpenOperator opens the store and a controller link and returns an
// operator over them with a close function releasing both.
func (c *Context) OpenOperator(ctx context.Context, retry *httpclient.RetryPolicy) (*operator.Operator, func(), error) {
	st, err := c.OpenStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	link := c.NewLink()
	closeFn := func() {
		_ = link.Close()
		_ = st.Close()
	}
	return c.NewOperator(link, c.NewPool(retry), st), closeFn, nil
}

// NewNotifier returns the outage notifier, or nil when notifications are
// disabled.
func (c *Context) NewNotifier() (*notification.Notifier, error) {
	if !c.Settings.Notification.Enabled {
		return nil, nil
	}
	cfg := notification.ConfigFromSettings(c.Settings.Notification, c.DcernoConfig().Address())
	cfg.Metrics = c.notificationMetrics()
	return notification.New(cfg)
}

// ConnectMQTT connects the event publisher, or returns nil when mqtt is
// disabled. The caller disconnects the returned client.
func (c *Context) ConnectMQTT(ctx context.Context) (*mqtt.Client, error) {
	if !c.Settings.MQTT.Enabled {
		return nil, nil
	}
	client := mqtt.NewClient(mqtt.ConfigFromSettings(c.Settings.MQTT), c.mqttMetrics())
	if err := client.Connect(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

func (c *Context) dcernoMetrics() *metrics.DcernoMetrics {
	if c.Metrics == nil {
		return nil
	}
	return c.Metrics.Dcerno
}

func (c *Context) ptzMetrics() *metrics.PTZMetrics {
	if c.Metrics == nil {
		return nil
	}
	return c.Metrics.PTZ
}

func (c *Context) trackingMetrics() *metrics.TrackingMetrics {
	if c.Metrics == nil {
		return nil
	}
	return c.Metrics.Tracking
}

func (c *Context) mqttMetrics() *metrics.MQTTMetrics {
	if c.Metrics == nil {
		return nil
	}
	return c.Metrics.MQTT
}

func (c *Context) notificationMetrics() *metrics.NotificationMetrics {
	if c.Metrics == nil {
		return nil
	}
	return c.Metrics.Notification
}
