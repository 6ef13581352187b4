package application

import (
	"fmt"
	"io"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/samber/lo"

	"github.com/felixgeelhaar/billora/internal/billing/domain"
)

// InvoiceRow is one line of the invoice CSV export.
type InvoiceRow struct {
	Number         string `csv:"number"`
	SubscriptionID string `csv:"subscription_id"`
	IssueDate      string `csv:"issue_date"`
	DueDate        string `csv:"due_date"`
	PaidAt         string `csv:"paid_at"`
	Subtotal       string `csv:"subtotal"`
	TaxRate        string `csv:"tax_rate"`
	TaxAmount      string `csv:"tax_amount"`
	Total          string `csv:"total"`
	Status         string `csv:"status"`
	Concept        string `csv:"concept"`
}

func newInvoiceRow(inv *domain.Invoice, _ int) *InvoiceRow {
	paidAt := ""
	if inv.PaidAt() != nil {
		paidAt = inv.PaidAt().UTC().Format(time.RFC3339)
	}
	return &InvoiceRow{
		Number:         inv.Number(),
		SubscriptionID: inv.SubscriptionID().String(),
		IssueDate:      inv.IssueDate().Format(time.DateOnly),
		DueDate:        inv.DueDate().Format(time.DateOnly),
		PaidAt:         paidAt,
		Subtotal:       inv.Subtotal().StringFixed(2),
		TaxRate:        inv.TaxRate().StringFixed(2),
		TaxAmount:      inv.TaxAmount().StringFixed(2),
		Total:          inv.Total().StringFixed(2),
		Status:         string(inv.Status()),
		Concept:        inv.Concept(),
	}
}

// WriteInvoicesCSV writes invoices as CSV with a header row.
func WriteInvoicesCSV(w io.Writer, invoices []*domain.Invoice) error {
	rows := lo.Map(invoices, newInvoiceRow)
	if err := gocsv.Marshal(rows, w); err != nil {
		return fmt.Errorf("failed to write invoice csv: %w", err)
	}
	return nil
}
