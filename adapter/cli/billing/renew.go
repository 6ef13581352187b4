package billing

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var renewCmd = &cobra.Command{
	Use:   "renew <subscription-id>",
	Short: "Renew one subscription now, regardless of its charge date",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid subscription id: %w", err)
		}
		app := requireApp(cmd.OutOrStdout())
		if app == nil {
			return nil
		}
		if app.Renewals == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Renewal service is not configured.")
			return nil
		}
		outcome, err := app.Renewals.ForceRenewal(cmd.Context(), id)
		fmt.Fprintf(cmd.OutOrStdout(), "Subscription %s: %s\n", id, outcome)
		return err
	},
}
