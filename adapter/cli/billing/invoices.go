package billing

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	billingApp "github.com/felixgeelhaar/billora/internal/billing/application"
	"github.com/felixgeelhaar/billora/internal/billing/domain"
)

var (
	invoiceStatus string
	invoiceExport string
)

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "List invoices",
	RunE: func(cmd *cobra.Command, args []string) error {
		if invoiceExport != "" && invoiceExport != "csv" {
			return fmt.Errorf("unsupported export format %q", invoiceExport)
		}
		app := requireApp(cmd.OutOrStdout())
		if app == nil {
			return nil
		}

		var (
			invoices []*domain.Invoice
			err      error
		)
		if invoiceStatus != "" {
			invoices, err = app.Billing.ListInvoicesByStatus(cmd.Context(), invoiceStatus)
		} else {
			invoices, err = app.Billing.ListInvoices(cmd.Context())
		}
		if err != nil {
			return err
		}

		if invoiceExport == "csv" {
			return billingApp.WriteInvoicesCSV(cmd.OutOrStdout(), invoices)
		}
		if len(invoices) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No invoices.")
			return nil
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NUMBER\tISSUED\tDUE\tTOTAL\tSTATUS")
		for _, inv := range invoices {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				inv.Number(),
				inv.IssueDate().Format("2006-01-02"),
				inv.DueDate().Format("2006-01-02"),
				inv.Total().StringFixed(2),
				inv.Status())
		}
		return tw.Flush()
	},
}

func init() {
	invoicesCmd.Flags().StringVar(&invoiceStatus, "status", "", "only invoices with this status")
	invoicesCmd.Flags().StringVar(&invoiceExport, "export", "", "export format (csv)")
}
