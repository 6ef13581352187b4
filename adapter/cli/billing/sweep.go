package billing

import (
	"fmt"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Flag active subscriptions past the grace period as delinquent",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := requireApp(cmd.OutOrStdout())
		if app == nil {
			return nil
		}
		if app.Sweeper == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Delinquency sweeper is not configured.")
			return nil
		}
		n, err := app.Sweeper.Sweep(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marked %d subscription(s) delinquent (grace %d days).\n", n, app.Sweeper.GraceDays())
		return nil
	},
}
