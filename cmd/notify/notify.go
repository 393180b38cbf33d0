package notify

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/camtrack/dcerno-vhd/internal/app"
	"github.com/camtrack/dcerno-vhd/internal/errors"
)

// Command returns a cobra command that sends a test notification to every
// configured service.
func Command(ctx *app.Context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "notify",
		Short: "Outage notification tools",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "test",
		Short: "Send a test notification",
		Long: `Send a test notification through every service URL in notification.urls.

Example:
  camtrack notify test`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			notifier, err := ctx.NewNotifier()
			if err != nil {
				return err
			}
			if notifier == nil {
				return errors.Newf("notifications are disabled, set notification.enabled").
					Category(errors.CategoryConfiguration).
					Build()
			}

			if err := notifier.Test(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "test notification sent to %d service(s)\n", len(ctx.Settings.Notification.URLs))
			return nil
		},
	})
	return cmd
}
