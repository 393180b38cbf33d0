package config

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/camtrack/dcerno-vhd/internal/app"
	"github.com/camtrack/dcerno-vhd/internal/conf"
	"github.com/camtrack/dcerno-vhd/internal/errors"
)

// redacted replaces secrets in printed settings.
const redacted = "********"

// Command creates the config command group. configFile points at the value
// of the global --config flag.
func Command(ctx *app.Context, configFile *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or save the effective configuration",
	}

	cmd.AddCommand(showCommand(ctx), saveCommand(ctx, configFile))
	return cmd
}

func showCommand(ctx *app.Context) *cobra.Command {
	var secrets bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings := *ctx.Settings
			if !secrets {
				redact(&settings)
			}
			data, err := conf.MarshalYAML(&settings)
			if err != nil {
				return err
			}
			if used := viper.ConfigFileUsed(); used != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", used)
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&secrets, "secrets", false, "Print passwords and service URLs unredacted")
	return cmd
}

func saveCommand(ctx *app.Context, configFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "save [path]",
		Short: "Write the effective configuration, including flag and environment overrides",
		Long: `Write the effective configuration to path, or to the config file in use.
Secrets given as ${VAR} references or password files are written resolved.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := viper.ConfigFileUsed()
			if *configFile != "" {
				path = *configFile
			}
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" {
				found, err := conf.FindConfigFile()
				if err != nil {
					return errors.Newf("no config file in use, pass a path").
						Category(errors.CategoryConfiguration).
						Build()
				}
				path = found
			}

			if err := conf.SaveYAMLConfig(path, ctx.Settings); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "configuration saved to %s\n", path)
			return nil
		},
	}
}

// redact blanks the secrets of a settings copy. Slices are replaced, not
// modified, so the live settings keep their values.
func redact(s *conf.Settings) {
	if s.Store.MySQL.Password != "" {
		s.Store.MySQL.Password = redacted
	}
	if s.MQTT.Password != "" {
		s.MQTT.Password = redacted
	}
	if s.Sentry.DSN != "" {
		s.Sentry.DSN = redacted
	}
	if len(s.Notification.URLs) > 0 {
		urls := make([]string, len(s.Notification.URLs))
		for i := range urls {
			urls[i] = redacted
		}
		s.Notification.URLs = urls
	}
}
