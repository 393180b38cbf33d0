// Package notification sends controller outage alerts through shoutrrr
// service URLs (telegram, discord, smtp, ntfy, generic webhooks).
package notification

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"slices"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/camtrack/dcerno-vhd/internal/conf"
	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/logger"
	"github.com/camtrack/dcerno-vhd/internal/observability/metrics"
	"github.com/camtrack/dcerno-vhd/internal/privacy"
)

const component = "notification"

// Delivery kinds, used as metric labels.
const (
	KindOutage   = "outage"
	KindRecovery = "recovery"
	KindTest     = "test"
)

// DefaultTimeout bounds one delivery to all services.
const DefaultTimeout = 10 * time.Second

// sender is the part of *router.ServiceRouter the notifier uses.
type sender interface {
	Send(message string, params *stypes.Params) []error
}

// Config configures a Notifier.
type Config struct {
	URLs    []string
	Timeout time.Duration
	// Controller names the watched controller in messages, "host:port".
	Controller string
	Metrics    *metrics.NotificationMetrics
}

// ConfigFromSettings builds a notifier config from the notification section.
func ConfigFromSettings(s conf.NotificationSettings, controller string) Config {
	return Config{URLs: slices.Clone(s.URLs), Controller: controller}
}

// Notifier delivers alerts to every configured service.
type Notifier struct {
	cfg      Config
	sender   sender
	hostname string
	log      logger.Logger
}

// New validates the service URLs and builds the sender.
func New(cfg Config) (*Notifier, error) {
	if len(cfg.URLs) == 0 {
		return nil, errors.Newf("at least one notification URL is required").
			Component(component).
			Category(errors.CategoryConfiguration).
			Build()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	router, err := shoutrrr.CreateSender(cfg.URLs...)
	if err != nil {
		return nil, errors.New(privacy.WrapError(err)).
			Component(component).
			Category(errors.CategoryConfiguration).
			Build()
	}
	router.Timeout = cfg.Timeout
	router.SetLogger(log.New(io.Discard, "", 0))

	return newNotifier(cfg, router), nil
}

func newNotifier(cfg Config, s sender) *Notifier {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "camtrack"
	}
	return &Notifier{cfg: cfg, sender: s, hostname: hostname, log: GetLogger()}
}

// Outage reports that the controller failed failures ticks in a row.
func (n *Notifier) Outage(ctx context.Context, failures int, cause error) error {
	title := "camtrack: microphone controller unreachable"
	body := fmt.Sprintf("%s: no answer from controller %s for %d consecutive ticks. Cameras keep their last position.",
		n.hostname, n.cfg.Controller, failures)
	if cause != nil {
		body += "\nLast error: " + privacy.ScrubMessage(cause.Error())
	}
	return n.send(ctx, KindOutage, title, body)
}

// Recovered reports the end of an outage.
func (n *Notifier) Recovered(ctx context.Context, downtime time.Duration) error {
	title := "camtrack: microphone controller reachable again"
	body := fmt.Sprintf("%s: controller %s answers again after %s. Tracking resumed.",
		n.hostname, n.cfg.Controller, downtime.Round(time.Second))
	return n.send(ctx, KindRecovery, title, body)
}

// Test sends a test message.
func (n *Notifier) Test(ctx context.Context) error {
	return n.send(ctx, KindTest, "camtrack: test notification",
		fmt.Sprintf("%s: notifications are configured correctly.", n.hostname))
}

func (n *Notifier) send(ctx context.Context, kind, title, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	params := stypes.Params{}
	params.SetTitle(title)

	var firstErr error
	for _, e := range n.sender.Send(body, &params) {
		if e != nil {
			firstErr = e
			break
		}
	}
	n.cfg.Metrics.RecordDelivery(kind, firstErr)

	if firstErr != nil {
		n.log.Warn("notification delivery failed",
			logger.String("kind", kind),
			logger.Error(privacy.WrapError(firstErr)))
		return errors.New(privacy.WrapError(firstErr)).
			Component(component).
			Category(errors.CategoryNotification).
			Context("kind", kind).
			Build()
	}
	n.log.Info("notification sent", logger.String("kind", kind))
	return nil
}
