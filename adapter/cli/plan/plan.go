package plan

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/billora/adapter/cli"
	"github.com/felixgeelhaar/billora/internal/billing/domain"
)

var activeOnly bool

// Cmd is the plan command group.
var Cmd = &cobra.Command{
	Use:     "plans",
	Aliases: []string{"plan"},
	Short:   "Inspect subscription plans",
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List plans in display order",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := cli.GetApp()
		if app == nil || app.Billing == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "Plans require database connection.")
			return nil
		}

		var (
			plans []*domain.Plan
			err   error
		)
		if activeOnly {
			plans, err = app.Billing.ListActivePlans(cmd.Context())
		} else {
			plans, err = app.Billing.ListPlans(cmd.Context())
		}
		if err != nil {
			return err
		}
		if len(plans) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No plans.")
			return nil
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tTIER\tPRICE\tACTIVE\tFEATURES")
		for _, p := range plans {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%t\t%s\n",
				p.ID, p.Name, p.Tier, p.MonthlyPrice.StringFixed(2), p.Active, strings.Join(p.Features, ", "))
		}
		return tw.Flush()
	},
}

func init() {
	listCmd.Flags().BoolVar(&activeOnly, "active", false, "only active plans")
	Cmd.AddCommand(listCmd)
}
