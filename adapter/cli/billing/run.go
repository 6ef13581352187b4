package billing

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run today's renewal batch now",
	Long: `Renews every active, auto-renewing subscription due today and then
flags accounts past the grace period. Fails if another run holds the lock.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app := requireApp(cmd.OutOrStdout())
		if app == nil {
			return nil
		}
		if app.Scheduler == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Renewal scheduler is not configured.")
			return nil
		}
		summary, err := app.Scheduler.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Renewed:    %d\n", summary.Renewed)
		fmt.Fprintf(out, "Failed:     %d\n", summary.Failed)
		fmt.Fprintf(out, "Delinquent: %d\n", summary.Delinquent)
		fmt.Fprintf(out, "Took:       %s\n", summary.Duration())
		return nil
	},
}
