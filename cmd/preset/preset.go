package preset

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/camtrack/dcerno-vhd/internal/app"
	"github.com/camtrack/dcerno-vhd/internal/errors"
)

// Command creates the preset command group.
func Command(ctx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "Manage microphone to camera preset mappings",
	}

	cmd.AddCommand(
		registerCommand(ctx),
		listCommand(ctx),
		deleteCommand(ctx),
	)
	return cmd
}

func registerCommand(ctx *app.Context) *cobra.Command {
	var cameraIP string

	cmd := &cobra.Command{
		Use:   "register <uid>",
		Short: "Save the current camera position as the preset of a microphone",
		Long: `Save the current position of a camera as the preset of a microphone.
A microphone that already has a preset keeps its number; otherwise the next
free number is allocated. The mapping is stored only if the camera accepted
the preset.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cameraIP == "" {
				return errors.ValidationError("--camera is required")
			}

			op, closeFn, err := ctx.OpenOperator(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeFn()

			reg, err := op.RegisterPreset(cmd.Context(), args[0], cameraIP)
			if err != nil {
				return err
			}

			verb := "registered"
			if reg.Reused {
				verb = "updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s preset %d of microphone %s on camera %s\n",
				verb, reg.Mapping.Number, reg.Mapping.MicroID, reg.Mapping.CameraIP)
			return nil
		},
	}
	cmd.Flags().StringVar(&cameraIP, "camera", "", "IP address of the camera to store the preset on")
	return cmd
}

func listCommand(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the stored presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			op, closeFn, err := ctx.OpenOperator(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeFn()

			presets, err := op.Presets(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(presets) == 0 {
				fmt.Fprintln(out, "no presets")
				return nil
			}
			fmt.Fprintf(out, "%-16s %-6s %s\n", "CAMERA", "PRESET", "MICROPHONE")
			for _, m := range presets {
				camera := m.CameraIP
				if camera == "" {
					camera = "-"
				}
				fmt.Fprintf(out, "%-16s %-6d %s\n", camera, m.Number, m.MicroID)
			}
			return nil
		},
	}
}

func deleteCommand(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <uid>",
		Short: "Remove the preset mapping of a microphone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, closeFn, err := ctx.OpenOperator(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeFn()

			if err := op.DeletePreset(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted preset of microphone %s\n", args[0])
			return nil
		},
	}
}
