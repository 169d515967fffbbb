package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/homeservice/marketplace-agent/internal/app"
	"github.com/homeservice/marketplace-agent/internal/core/domain"
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"notif"},
	Short:   "Work with the signed-in user's notifications",
	Long: `List and update notifications of the signed-in user.

Examples:
  marketplace-agent notifications list             # All notifications
  marketplace-agent notifications list --unread    # Only unread ones
  marketplace-agent notifications read 42          # Mark one as read
  marketplace-agent notifications read-all         # Mark everything as read
  marketplace-agent notifications delete 42        # Delete one`,
}

var notificationsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List notifications, newest first",
	RunE:    runNotificationsList,
}

var notificationsReadCmd = &cobra.Command{
	Use:   "read <id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNotifications(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Notifications.MarkRead(ctx, domain.ID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "notification %s marked as read\n", args[0])
			return nil
		})
	},
}

var notificationsReadAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification as read",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNotifications(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Notifications.MarkAllRead(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "all notifications marked as read")
			return nil
		})
	},
}

var notificationsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a notification",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withNotifications(cmd, func(ctx context.Context, a *app.App) error {
			if err := a.Notifications.Delete(ctx, domain.ID(args[0])); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "notification %s deleted\n", args[0])
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(notificationsCmd)
	notificationsCmd.AddCommand(notificationsListCmd, notificationsReadCmd, notificationsReadAllCmd, notificationsDeleteCmd)

	notificationsListCmd.Flags().Bool("unread", false, "only unread notifications")
	notificationsListCmd.Flags().Bool("json", false, "output as JSON")
}

// withNotifications restores the session and runs fn when it is usable.
func withNotifications(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	a, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer a.Close(ctx)

	if !a.Session.Authenticated() {
		return fmt.Errorf("%w: run login first", domain.ErrNotAuthenticated)
	}
	return fn(ctx, a)
}

func runNotificationsList(cmd *cobra.Command, args []string) error {
	unreadOnly, _ := cmd.Flags().GetBool("unread")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return withNotifications(cmd, func(ctx context.Context, a *app.App) error {
		list, err := a.Notifications.FetchAll(ctx)
		if err != nil {
			return err
		}
		unread := domain.CountUnread(list)
		if unreadOnly {
			filtered := make([]domain.Notification, 0, unread)
			for _, n := range list {
				if !n.Read {
					filtered = append(filtered, n)
				}
			}
			list = filtered
		}

		w := cmd.OutOrStdout()
		if jsonOutput {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(map[string]any{"notifications": list, "unread": unread})
		}

		if len(list) == 0 {
			fmt.Fprintln(w, "no notifications")
			return nil
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tTITLE")
		for _, n := range list {
			status := "unread"
			if n.Read {
				status = "read"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", n.ID, status, n.CreatedAt.Format("2006-01-02 15:04"), n.Title)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(w, "\n%d unread\n", unread)
		return nil
	})
}
