package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/camtrack/dcerno-vhd/cmd/camera"
	configcmd "github.com/camtrack/dcerno-vhd/cmd/config"
	"github.com/camtrack/dcerno-vhd/cmd/mic"
	"github.com/camtrack/dcerno-vhd/cmd/notify"
	"github.com/camtrack/dcerno-vhd/cmd/preset"
	settingscmd "github.com/camtrack/dcerno-vhd/cmd/settings"
	"github.com/camtrack/dcerno-vhd/cmd/track"
	"github.com/camtrack/dcerno-vhd/internal/app"
	"github.com/camtrack/dcerno-vhd/internal/conf"
	"github.com/camtrack/dcerno-vhd/internal/logger"
	"github.com/camtrack/dcerno-vhd/internal/observability"
	"github.com/camtrack/dcerno-vhd/internal/privacy"
	"github.com/camtrack/dcerno-vhd/internal/telemetry"
)

// flushTimeout bounds how long pending telemetry events are sent on exit.
const flushTimeout = 2 * time.Second

// RootCommand creates and returns the root command
func RootCommand(ctx *app.Context) *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:           "camtrack",
		Short:         "Point PTZ cameras at the active D-Cerno microphone",
		Version:       ctx.Build.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Set up the global flags for the root command.
	if err := setupFlags(rootCmd, &configFile); err != nil {
		panic(err)
	}

	rootCmd.AddCommand(
		track.Command(ctx),
		mic.Command(ctx),
		camera.Command(ctx),
		preset.Command(ctx),
		settingscmd.Command(ctx),
		configcmd.Command(ctx, &configFile),
		notify.Command(ctx),
	)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return initialize(ctx, configFile)
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		shutdown()
	}

	return rootCmd
}

// initialize loads the settings and brings up logging, error telemetry and
// metrics before any subcommand runs.
func initialize(ctx *app.Context, configFile string) error {
	settings, err := conf.Load(configFile)
	if err != nil {
		return err
	}
	settings.Version = ctx.Build.GetVersion()
	settings.BuildDate = ctx.Build.GetBuildDate()
	ctx.Settings = settings

	centralLogger, err := logger.NewCentralLogger(&settings.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}
	logger.SetGlobal(centralLogger)

	if ctx.Build.SystemID == "" {
		if id, err := privacy.GenerateSystemID(); err == nil {
			ctx.Build.SystemID = id
		}
	}

	if err := telemetry.InitSentry(settings.Sentry, telemetry.Options{
		Version:  settings.Version,
		SystemID: ctx.Build.SystemID,
	}); err != nil {
		return err
	}

	metrics, err := observability.NewMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	metrics.CountErrors()
	ctx.Metrics = metrics

	return nil
}

func shutdown() {
	telemetry.Flush(flushTimeout)
	_ = logger.Global().Flush()
}

// setupFlags defines flags that are global to the command line interface.
// Flags are bound to viper keys, so they take precedence over the config file
// and the environment when conf.Load unmarshals the settings.
func setupFlags(rootCmd *cobra.Command, configFile *string) error {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(configFile, "config", "c", "", "Path to the config file (default: search the standard config paths)")
	flags.BoolP("debug", "d", false, "Enable debug output")
	flags.String("dcerno-host", "", "D-Cerno controller address")
	flags.Int("dcerno-port", 0, "D-Cerno controller TCP port")

	bindings := map[string]string{
		"debug":       "debug",
		"dcerno.host": "dcerno-host",
		"dcerno.port": "dcerno-port",
	}
	for key, name := range bindings {
		if err := viper.BindPFlag(key, flags.Lookup(name)); err != nil {
			return fmt.Errorf("error binding flag %s: %w", name, err)
		}
	}

	return nil
}
