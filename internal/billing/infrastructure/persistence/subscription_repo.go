// Package persistence stores billing aggregates through database.Connection,
// so one implementation serves both SQLite and Postgres.
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

const subscriptionColumns = `id, user_id, plan_id, start_date, end_date, next_charge_date, status,
	auto_renew, price, cancelled_at, cancel_reason, created_by, updated_by, version, created_at, updated_at`

// SubscriptionRepository implements domain.SubscriptionRepository.
type SubscriptionRepository struct {
	conn database.Connection
}

// NewSubscriptionRepository creates a subscription repository.
func NewSubscriptionRepository(conn database.Connection) *SubscriptionRepository {
	return &SubscriptionRepository{conn: conn}
}

func (r *SubscriptionRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

// Save inserts a new subscription or updates an existing one when the
// stored version still matches.
func (r *SubscriptionRepository) Save(ctx context.Context, s *domain.Subscription) error {
	if s.Version() == 0 {
		_, err := r.exec(ctx).Exec(ctx, `INSERT INTO subscriptions (`+subscriptionColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID().String(),
			s.UserID().String(),
			s.PlanID().String(),
			database.FormatDate(s.StartDate()),
			database.NullableDate(s.EndDate()),
			database.FormatDate(s.NextChargeDate()),
			string(s.Status()),
			s.AutoRenew(),
			s.Price(),
			database.NullableTimestamp(s.CancelledAt()),
			s.CancelReason(),
			s.CreatedBy(),
			s.UpdatedBy(),
			1,
			database.FormatTimestamp(s.CreatedAt()),
			database.FormatTimestamp(s.UpdatedAt()),
		)
		if err != nil {
			return fmt.Errorf("failed to insert subscription: %w", err)
		}
		s.IncrementVersion()
		return nil
	}

	result, err := r.exec(ctx).Exec(ctx, `UPDATE subscriptions SET
			plan_id = ?, end_date = ?, next_charge_date = ?, status = ?, auto_renew = ?, price = ?,
			cancelled_at = ?, cancel_reason = ?, updated_by = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		s.PlanID().String(),
		database.NullableDate(s.EndDate()),
		database.FormatDate(s.NextChargeDate()),
		string(s.Status()),
		s.AutoRenew(),
		s.Price(),
		database.NullableTimestamp(s.CancelledAt()),
		s.CancelReason(),
		s.UpdatedBy(),
		database.FormatTimestamp(s.UpdatedAt()),
		s.ID().String(),
		s.Version(),
	)
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	if err := database.RequireAffected(result, domain.ErrConcurrentModification); err != nil {
		return err
	}
	s.IncrementVersion()
	return nil
}

func (r *SubscriptionRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Subscription, error) {
	row := r.exec(ctx).QueryRow(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = ?`, id.String())
	sub, err := scanSubscription(row)
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return sub, nil
}

func (r *SubscriptionRepository) FindAll(ctx context.Context) ([]*domain.Subscription, error) {
	return r.list(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions ORDER BY created_at, id`)
}

func (r *SubscriptionRepository) FindByUser(ctx context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	return r.list(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? ORDER BY created_at, id`, userID.String())
}

func (r *SubscriptionRepository) FindByStatus(ctx context.Context, status domain.SubscriptionStatus) ([]*domain.Subscription, error) {
	return r.list(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE status = ? ORDER BY created_at, id`, string(status))
}

// FindDue selects active auto-renewing subscriptions charged on or before asOf.
func (r *SubscriptionRepository) FindDue(ctx context.Context, asOf time.Time) ([]*domain.Subscription, error) {
	return r.list(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = ? AND auto_renew = ? AND next_charge_date <= ?
		ORDER BY next_charge_date, id`,
		string(domain.StatusActive), true, database.FormatDate(asOf))
}

// FindDelinquentCandidates selects active subscriptions charged strictly before before.
func (r *SubscriptionRepository) FindDelinquentCandidates(ctx context.Context, before time.Time) ([]*domain.Subscription, error) {
	return r.list(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status = ? AND next_charge_date < ?
		ORDER BY next_charge_date, id`,
		string(domain.StatusActive), database.FormatDate(before))
}

func (r *SubscriptionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.exec(ctx).Exec(ctx, `DELETE FROM subscriptions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete subscription: %w", err)
	}
	return database.RequireAffected(result, domain.ErrSubscriptionNotFound)
}

func (r *SubscriptionRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Subscription, error) {
	rows, err := r.exec(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []*domain.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

func scanSubscription(row database.Row) (*domain.Subscription, error) {
	var (
		id, userID, planID string
		start, end, next   database.Time
		status             string
		autoRenew          bool
		price              decimal.Decimal
		cancelledAt        database.Time
		st                 domain.SubscriptionState
		createdAt          database.Time
		updatedAt          database.Time
	)
	if err := row.Scan(&id, &userID, &planID, &start, &end, &next, &status,
		&autoRenew, &price, &cancelledAt, &st.CancelReason, &st.CreatedBy, &st.UpdatedBy,
		&st.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	parsedStatus, err := domain.ParseSubscriptionStatus(status)
	if err != nil {
		return nil, fmt.Errorf("subscription %s: %w", id, err)
	}
	st.ID, _ = uuid.Parse(id)
	st.UserID, _ = uuid.Parse(userID)
	st.PlanID, _ = uuid.Parse(planID)
	st.StartDate = start.Date()
	st.EndDate = end.DatePtr()
	st.NextChargeDate = next.Date()
	st.Status = parsedStatus
	st.AutoRenew = autoRenew
	st.Price = price
	st.CancelledAt = cancelledAt.Ptr()
	st.CreatedAt = createdAt.Time
	st.UpdatedAt = updatedAt.Time
	return domain.RehydrateSubscription(st), nil
}
