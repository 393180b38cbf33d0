// Package telemetry provides opt-in, privacy-scrubbed error reporting to Sentry.
package telemetry

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/camtrack/dcerno-vhd/internal/conf"
	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/logger"
	"github.com/camtrack/dcerno-vhd/internal/privacy"
)

var (
	initMu      sync.Mutex
	initialized bool
)

// Options tune InitSentry; Transport is replaced in tests.
type Options struct {
	Version   string
	SystemID  string
	Transport sentry.Transport
}

// InitSentry initializes the Sentry SDK when settings.Enabled is set and
// routes enhanced errors to it. It is a no-op otherwise.
func InitSentry(settings conf.SentrySettings, opts Options) error {
	if !settings.Enabled {
		GetLogger().Debug("sentry telemetry is disabled")
		return nil
	}
	if settings.DSN == "" {
		return errors.Newf("sentry is enabled but no DSN is configured").
			Component("telemetry").
			Category(errors.CategoryConfiguration).
			Build()
	}

	initMu.Lock()
	defer initMu.Unlock()

	environment := settings.Environment
	if environment == "" {
		environment = "production"
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              settings.DSN,
		SampleRate:       1.0,
		AttachStacktrace: false,
		Environment:      environment,
		ServerName:       "",
		Release:          "camtrack@" + opts.Version,
		Transport:        opts.Transport,
		BeforeSend: func(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
			return applyPrivacyFilters(event)
		},
	})
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}

	sentry.ConfigureScope(func(scope *sentry.Scope) {
		scope.SetTag("os", runtime.GOOS)
		scope.SetTag("arch", runtime.GOARCH)
		if opts.SystemID != "" {
			scope.SetTag("system_id", opts.SystemID)
		}
		scope.SetContext("application", map[string]any{
			"name":    "camtrack",
			"version": opts.Version,
		})
	})

	errors.SetTelemetryReporter(errors.NewSentryReporter(true))
	initialized = true

	GetLogger().Info("sentry telemetry initialized",
		logger.String("environment", environment),
		logger.String("version", opts.Version))
	return nil
}

// Enabled reports whether InitSentry configured a client.
func Enabled() bool {
	initMu.Lock()
	defer initMu.Unlock()
	return initialized
}

// applyPrivacyFilters drops host identity and scrubs free text.
func applyPrivacyFilters(event *sentry.Event) *sentry.Event {
	event.User = sentry.User{}
	event.ServerName = ""
	event.Message = privacy.ScrubMessage(event.Message)
	for i := range event.Exception {
		event.Exception[i].Value = privacy.ScrubMessage(event.Exception[i].Value)
	}

	if event.Contexts != nil {
		delete(event.Contexts, "device")
		delete(event.Contexts, "os")
		delete(event.Contexts, "runtime")
	}
	for k := range event.Extra {
		if k != "error_type" && k != "component" {
			delete(event.Extra, k)
		}
	}
	if event.Tags != nil {
		delete(event.Tags, "server_name")
		delete(event.Tags, "hostname")
	}
	return event
}

// CaptureError reports a plain error; enhanced errors report themselves
// through the errors package.
func CaptureError(err error, component string) {
	if err == nil || !Enabled() {
		return
	}
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", component)
		scope.SetLevel(sentry.LevelError)
		sentry.CaptureMessage(privacy.ScrubMessage(err.Error()))
	})
}

// Flush waits up to timeout for buffered events.
func Flush(timeout time.Duration) {
	if !Enabled() {
		return
	}
	sentry.Flush(timeout)
}

// reset clears the package state; used by tests.
func reset() {
	initMu.Lock()
	initialized = false
	initMu.Unlock()
	errors.SetTelemetryReporter(nil)
}
