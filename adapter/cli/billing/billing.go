package billing

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/billora/adapter/cli"
)

// Cmd is the billing command group.
var Cmd = &cobra.Command{
	Use:   "billing",
	Short: "Run renewals and inspect invoices",
	Long:  `Run the renewal batch on demand, force single renewals, sweep delinquent accounts and list invoices.`,
}

func init() {
	Cmd.AddCommand(runCmd)
	Cmd.AddCommand(renewCmd)
	Cmd.AddCommand(sweepCmd)
	Cmd.AddCommand(taxesCmd)
	Cmd.AddCommand(invoicesCmd)
}

// requireApp prints a notice and returns nil when the database is not wired.
func requireApp(out io.Writer) *cli.App {
	app := cli.GetApp()
	if app == nil || app.Billing == nil {
		fmt.Fprintln(out, "Billing commands require database connection.")
		return nil
	}
	return app
}
