package mic

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/camtrack/dcerno-vhd/internal/app"
	"github.com/camtrack/dcerno-vhd/internal/dcerno"
)

// allUnits asks gmicstat for every unit.
const allUnits = "0"

// Command creates the microphone controller command group.
func Command(ctx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mic",
		Short: "Query the D-Cerno microphone controller",
	}

	cmd.AddCommand(
		unitsCommand(ctx),
		statusCommand(ctx),
		pingCommand(ctx),
		callCommand(ctx),
	)
	return cmd
}

func unitsCommand(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "units",
		Short: "List the microphone units and their state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			link := ctx.NewLink()
			defer func() { _ = link.Close() }()

			units, err := link.GetActiveUnits(cmd.Context())
			if err != nil {
				return err
			}
			printUnits(cmd.OutOrStdout(), units)
			return nil
		},
	}
}

func statusCommand(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "status [uid]",
		Short: "Show the status of one microphone, or of all when uid is omitted or 0",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			link := ctx.NewLink()
			defer func() { _ = link.Close() }()

			uid := allUnits
			if len(args) == 1 {
				uid = args[0]
			}

			if uid == allUnits {
				units, err := link.GetMicrophoneStatuses(cmd.Context(), uid)
				if err != nil {
					return err
				}
				printUnits(cmd.OutOrStdout(), units)
				return nil
			}

			unit, err := link.GetMicrophoneStatus(cmd.Context(), uid)
			if err != nil {
				return err
			}
			printUnits(cmd.OutOrStdout(), []dcerno.MicrophoneUnit{unit})
			return nil
		},
	}
}

func pingCommand(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check that the controller accepts a session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			link := ctx.NewLink()
			if err := link.Ping(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "controller %s is reachable\n", link.Address())
			return nil
		},
	}
}

func callCommand(ctx *app.Context) *cobra.Command {
	return &cobra.Command{
		Use:   "call <uid>",
		Short: "Move the mapped camera to the preset of a microphone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			op, closeFn, err := ctx.OpenOperator(cmd.Context(), nil)
			if err != nil {
				return err
			}
			defer closeFn()

			mapping, _, err := op.CallMicrophone(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "camera %s moved to preset %d\n", mapping.CameraIP, mapping.Number)
			return nil
		},
	}
}

func printUnits(w io.Writer, units []dcerno.MicrophoneUnit) {
	if len(units) == 0 {
		fmt.Fprintln(w, "no microphone units")
		return
	}
	for _, u := range units {
		state := "off"
		if u.Active {
			state = "on"
		}
		fmt.Fprintf(w, "%-12s %s\n", u.UID, state)
	}
}
