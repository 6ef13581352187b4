package billing

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

var taxesCmd = &cobra.Command{
	Use:   "taxes",
	Short: "Show the tax rate applied per country",
	RunE: func(cmd *cobra.Command, args []string) error {
		app := requireApp(cmd.OutOrStdout())
		if app == nil {
			return nil
		}
		rates := app.Billing.TaxRates()
		countries := lo.Keys(rates)
		sort.Strings(countries)
		for _, country := range countries {
			fmt.Fprintf(cmd.OutOrStdout(), "%-16s %6s%%\n", country, rates[country].StringFixed(2))
		}
		return nil
	},
}
