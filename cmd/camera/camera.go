package camera

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/camtrack/dcerno-vhd/internal/app"
	"github.com/camtrack/dcerno-vhd/internal/errors"
	"github.com/camtrack/dcerno-vhd/internal/httpclient"
	"github.com/camtrack/dcerno-vhd/internal/ptz"
)

// Command creates the camera command group.
func Command(ctx *app.Context) *cobra.Command {
	var retries int

	cmd := &cobra.Command{
		Use:   "camera",
		Short: "Drive a PTZ camera by hand",
	}
	cmd.PersistentFlags().IntVar(&retries, "retries", 0, "Repeat a request failing with a transport error or 5xx answer up to this many times")

	controller := func(ip string) (ptz.Controller, error) {
		var retry *httpclient.RetryPolicy
		if retries > 0 {
			policy := httpclient.DefaultRetryPolicy()
			policy.MaxRetries = retries
			retry = &policy
		}
		return ctx.NewPool(retry).Get(ip)
	}

	cmd.AddCommand(
		pingCommand(controller),
		homeCommand(ctx, controller),
		poscallCommand(controller),
	)
	return cmd
}

type controllerFunc func(ip string) (ptz.Controller, error)

func pingCommand(controller controllerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "ping <camera ip>",
		Short: "Fetch the device configuration of a camera",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := controller(args[0])
			if err != nil {
				return err
			}
			conf, err := c.Ping(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), conf)
			return nil
		},
	}
}

func homeCommand(ctx *app.Context, controller controllerFunc) *cobra.Command {
	var position, zoom string

	cmd := &cobra.Command{
		Use:   "home <camera ip>",
		Short: "Park a camera at its home position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := controller(args[0])
			if err != nil {
				return err
			}
			if position == "" {
				position = ctx.Settings.Tracking.HomePosition
			}
			if zoom == "" {
				zoom = ctx.Settings.Tracking.HomeZoom
			}
			if _, err := ptz.Home(cmd.Context(), c, position, zoom); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "camera %s parked\n", c.Address())
			return nil
		},
	}
	cmd.Flags().StringVar(&position, "position", "", "Home position argument (default: tracking.homeposition)")
	cmd.Flags().StringVar(&zoom, "zoom", "", "Home zoom argument (default: tracking.homezoom)")
	return cmd
}

func poscallCommand(controller controllerFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "poscall <camera ip> <preset>",
		Short: "Move a camera to a saved preset",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			preset, err := strconv.Atoi(args[1])
			if err != nil || preset <= 0 {
				return errors.ValidationError(fmt.Sprintf("invalid preset number %q", args[1]))
			}
			c, err := controller(args[0])
			if err != nil {
				return err
			}
			if _, err := ptz.PosCall(cmd.Context(), c, preset); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "camera %s moved to preset %d\n", c.Address(), preset)
			return nil
		},
	}
}
