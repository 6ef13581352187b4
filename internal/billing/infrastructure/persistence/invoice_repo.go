package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/felixgeelhaar/billora/internal/billing/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/database"
)

const invoiceColumns = `id, number, subscription_id, issue_date, due_date, paid_at, subtotal, tax_rate,
	tax_amount, total, status, concept, prorated, notes, payment_method_id, created_at, updated_at`

// InvoiceRepository implements domain.InvoiceRepository. Amounts are written
// once on insert; later saves only touch settlement fields.
type InvoiceRepository struct {
	conn database.Connection
}

// NewInvoiceRepository creates an invoice repository.
func NewInvoiceRepository(conn database.Connection) *InvoiceRepository {
	return &InvoiceRepository{conn: conn}
}

func (r *InvoiceRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

func (r *InvoiceRepository) Save(ctx context.Context, inv *domain.Invoice) error {
	var paymentMethodID any
	if id := inv.PaymentMethodID(); id != nil {
		paymentMethodID = id.String()
	}

	_, err := r.exec(ctx).Exec(ctx, `INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			paid_at = excluded.paid_at,
			status = excluded.status,
			notes = excluded.notes,
			payment_method_id = excluded.payment_method_id,
			updated_at = excluded.updated_at`,
		inv.ID().String(),
		inv.Number(),
		inv.SubscriptionID().String(),
		database.FormatDate(inv.IssueDate()),
		database.FormatDate(inv.DueDate()),
		database.NullableTimestamp(inv.PaidAt()),
		inv.Subtotal(),
		inv.TaxRate(),
		inv.TaxAmount(),
		inv.Total(),
		string(inv.Status()),
		inv.Concept(),
		inv.Prorated(),
		inv.Notes(),
		paymentMethodID,
		database.FormatTimestamp(inv.CreatedAt()),
		database.FormatTimestamp(inv.UpdatedAt()),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateInvoiceNumber, inv.Number())
		}
		return fmt.Errorf("failed to save invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	return r.one(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, id.String())
}

func (r *InvoiceRepository) FindByNumber(ctx context.Context, number string) (*domain.Invoice, error) {
	return r.one(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE number = ?`, number)
}

func (r *InvoiceRepository) FindAll(ctx context.Context) ([]*domain.Invoice, error) {
	return r.list(ctx, `SELECT `+invoiceColumns+` FROM invoices ORDER BY issue_date DESC, number DESC`)
}

// FindByUser returns the invoices of every subscription the user owns.
func (r *InvoiceRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Invoice, error) {
	return r.list(ctx, `SELECT `+prefixed("i.", invoiceColumns)+` FROM invoices i
		JOIN subscriptions s ON s.id = i.subscription_id
		WHERE s.user_id = ?
		ORDER BY i.issue_date DESC, i.number DESC`, userID.String())
}

func (r *InvoiceRepository) FindBySubscription(ctx context.Context, subscriptionID uuid.UUID) ([]*domain.Invoice, error) {
	return r.list(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE subscription_id = ? ORDER BY issue_date DESC, number DESC`,
		subscriptionID.String())
}

func (r *InvoiceRepository) FindByStatus(ctx context.Context, status domain.InvoiceStatus) ([]*domain.Invoice, error) {
	return r.list(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE status = ? ORDER BY issue_date DESC, number DESC`,
		string(status))
}

// FindByIssueDateRange is inclusive on both ends.
func (r *InvoiceRepository) FindByIssueDateRange(ctx context.Context, from, to time.Time) ([]*domain.Invoice, error) {
	return r.list(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE issue_date >= ? AND issue_date <= ? ORDER BY issue_date, number`,
		database.FormatDate(from), database.FormatDate(to))
}

// FindByTotalRange is inclusive on both ends.
func (r *InvoiceRepository) FindByTotalRange(ctx context.Context, min, max decimal.Decimal) ([]*domain.Invoice, error) {
	return r.list(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE total >= ? AND total <= ? ORDER BY total, number`,
		min, max)
}

func (r *InvoiceRepository) FindOverdue(ctx context.Context, asOf time.Time) ([]*domain.Invoice, error) {
	return r.list(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE status = ? AND due_date < ? ORDER BY due_date, number`,
		string(domain.InvoicePending), database.FormatDate(asOf))
}

// PendingTotal sums pending totals in decimal arithmetic rather than in SQL,
// where SQLite would fall back to floating point.
func (r *InvoiceRepository) PendingTotal(ctx context.Context) (decimal.Decimal, error) {
	rows, err := r.exec(ctx).Query(ctx, `SELECT total FROM invoices WHERE status = ?`, string(domain.InvoicePending))
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum pending invoices: %w", err)
	}
	defer rows.Close()

	sum := decimal.Zero
	for rows.Next() {
		var total decimal.Decimal
		if err := rows.Scan(&total); err != nil {
			return decimal.Zero, err
		}
		sum = sum.Add(domain.RoundMoney(total))
	}
	return sum, rows.Err()
}

func (r *InvoiceRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.exec(ctx).Exec(ctx, `DELETE FROM invoices WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	return database.RequireAffected(result, domain.ErrInvoiceNotFound)
}

func (r *InvoiceRepository) one(ctx context.Context, query string, args ...any) (*domain.Invoice, error) {
	inv, err := scanInvoice(r.exec(ctx).QueryRow(ctx, query, args...))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrInvoiceNotFound
		}
		return nil, err
	}
	return inv, nil
}

func (r *InvoiceRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Invoice, error) {
	rows, err := r.exec(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []*domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

func scanInvoice(row database.Row) (*domain.Invoice, error) {
	var (
		st                         domain.InvoiceState
		id, subscriptionID, status string
		issueDate, dueDate, paidAt database.Time
		createdAt, updatedAt       database.Time
		paymentMethodID            *string
		subtotal, rate, tax, total decimal.Decimal
	)
	if err := row.Scan(&id, &st.Number, &subscriptionID, &issueDate, &dueDate, &paidAt,
		&subtotal, &rate, &tax, &total, &status, &st.Concept, &st.Prorated, &st.Notes,
		&paymentMethodID, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	parsedStatus, err := domain.ParseInvoiceStatus(status)
	if err != nil {
		return nil, fmt.Errorf("invoice %s: %w", st.Number, err)
	}
	st.ID, _ = uuid.Parse(id)
	st.SubscriptionID, _ = uuid.Parse(subscriptionID)
	st.IssueDate = issueDate.Date()
	st.DueDate = dueDate.Date()
	st.PaidAt = paidAt.Ptr()
	st.Subtotal = domain.RoundMoney(subtotal)
	st.TaxRate = domain.RoundMoney(rate)
	st.TaxAmount = domain.RoundMoney(tax)
	st.Total = domain.RoundMoney(total)
	st.Status = parsedStatus
	if paymentMethodID != nil {
		if pm, err := uuid.Parse(*paymentMethodID); err == nil {
			st.PaymentMethodID = &pm
		}
	}
	st.CreatedAt = createdAt.Time
	st.UpdatedAt = updatedAt.Time
	st.Version = 1
	return domain.RehydrateInvoice(st), nil
}
