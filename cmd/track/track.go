package track

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/camtrack/dcerno-vhd/internal/app"
	"github.com/camtrack/dcerno-vhd/internal/logger"
	"github.com/camtrack/dcerno-vhd/internal/mqtt"
	"github.com/camtrack/dcerno-vhd/internal/observability"
	"github.com/camtrack/dcerno-vhd/internal/scheduler"
	"github.com/camtrack/dcerno-vhd/internal/tracking"
)

// Command creates the command that runs the tracking loop.
func Command(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "track",
		Short: "Run camera tracking",
		Long: `Poll the D-Cerno controller and point every camera with tracking enabled
at the preset of the active microphone. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), ctx)
		},
	}
}

func run(parent context.Context, a *app.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := logger.Global().Module("track")

	pool := a.NewPool(nil)
	if err := pool.Validate(); err != nil {
		return err
	}

	st, err := a.OpenStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	if flags, err := st.TrackingFlags(ctx); err == nil && !flags.GlobalEnabled {
		log.Warn("global tracking is off, cameras stay put until it is turned on",
			logger.String("command", "camtrack settings global on"))
	}

	var wg sync.WaitGroup
	quit := make(chan struct{})
	defer func() {
		close(quit)
		wg.Wait()
	}()

	if a.Settings.Telemetry.Enabled {
		endpoint, err := observability.NewEndpoint(a.Settings, a.Metrics)
		if err != nil {
			return err
		}
		endpoint.Start(&wg, quit)
	}

	var sink tracking.EventSink
	client, err := a.ConnectMQTT(ctx)
	switch {
	case err != nil:
		// tracking does not depend on the broker
		log.Warn("mqtt unavailable, tracking events will not be published", logger.Error(err))
	case client != nil:
		defer client.Disconnect()
		sink = mqtt.NewPublisher(client)
	}

	var alerter scheduler.Alerter
	notifier, err := a.NewNotifier()
	if err != nil {
		return err
	}
	if notifier != nil {
		alerter = notifier
	}

	engine := a.NewEngine(pool, sink)
	sched := a.NewScheduler(st, engine, alerter)

	log.Info("starting camera tracking",
		logger.String("controller", a.DcernoConfig().Address()),
		logger.String("store", a.Settings.Store.Backend),
		logger.String("version", a.Build.GetVersion()))

	return sched.Run(ctx)
}
