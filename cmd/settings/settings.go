package settings

import (
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"github.com/camtrack/dcerno-vhd/internal/app"
	"github.com/camtrack/dcerno-vhd/internal/errors"
)

// Command creates the tracking settings command group.
func Command(ctx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show and change which cameras are tracked",
	}

	cmd.AddCommand(
		showCommand(ctx),
		cameraCommand(ctx, "enable", true),
		cameraCommand(ctx, "disable", false),
		globalCommand(ctx),
	)
	return cmd
}

func showCommand(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the tracking flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			op, closeFn, err := ctx.OpenOperator(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeFn()

			flags, err := op.TrackingFlags(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "global tracking: %s\n", onOff(flags.GlobalEnabled))
			for _, ip := range slices.Sorted(maps.Keys(flags.Cameras)) {
				fmt.Fprintf(out, "%-16s %s\n", ip, onOff(flags.Cameras[ip]))
			}
			return nil
		},
	}
}

func cameraCommand(ctx *app.Context, use string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <camera ip>",
		Short: fmt.Sprintf("Turn tracking %s for a camera", onOff(enabled)),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, closeFn, err := ctx.OpenOperator(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := op.SetCameraTracking(cmd.Context(), args[0], enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tracking %s for camera %s\n", onOff(enabled), args[0])
			return nil
		},
	}
}

func globalCommand(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:       "global <on|off>",
		Short:     "Turn tracking on or off for all cameras",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			var enabled bool
			switch args[0] {
			case "on":
				enabled = true
			case "off":
				enabled = false
			default:
				return errors.ValidationError(fmt.Sprintf("expected on or off, got %q", args[0]))
			}

			op, closeFn, err := ctx.OpenOperator(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := op.SetGlobalTracking(cmd.Context(), enabled); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "global tracking %s\n", onOff(enabled))
			return nil
		},
	}
}

func onOff(enabled bool) string {
	if enabled {
		return "on"
	}
	return "off"
}
