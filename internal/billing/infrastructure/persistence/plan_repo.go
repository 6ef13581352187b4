package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/felixgeelhaar/billora/internal/billing/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/database"
)

const planColumns = `id, name, tier, monthly_price, description, features, max_users, storage_gb,
	priority_support, active, display_order, created_at, updated_at`

// PlanRepository implements domain.PlanRepository. Features are stored in
// Postgres array literal form in both drivers.
type PlanRepository struct {
	conn database.Connection
}

// NewPlanRepository creates a plan repository.
func NewPlanRepository(conn database.Connection) *PlanRepository {
	return &PlanRepository{conn: conn}
}

func (r *PlanRepository) exec(ctx context.Context) database.Executor {
	return database.ExecutorFromContext(ctx, r.conn)
}

func (r *PlanRepository) Save(ctx context.Context, p *domain.Plan) error {
	features, err := pq.StringArray(append([]string{}, p.Features...)).Value()
	if err != nil {
		return fmt.Errorf("failed to encode plan features: %w", err)
	}
	_, err = r.exec(ctx).Exec(ctx, `INSERT INTO plans (`+planColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			name = excluded.name,
			tier = excluded.tier,
			monthly_price = excluded.monthly_price,
			description = excluded.description,
			features = excluded.features,
			max_users = excluded.max_users,
			storage_gb = excluded.storage_gb,
			priority_support = excluded.priority_support,
			active = excluded.active,
			display_order = excluded.display_order,
			updated_at = excluded.updated_at`,
		p.ID.String(), p.Name, string(p.Tier), p.MonthlyPrice, p.Description, features,
		p.MaxUsers, p.StorageGB, p.PrioritySupport, p.Active, p.DisplayOrder,
		database.FormatTimestamp(p.CreatedAt), database.FormatTimestamp(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to save plan: %w", err)
	}
	return nil
}

func (r *PlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	p, err := scanPlan(r.exec(ctx).QueryRow(ctx, `SELECT `+planColumns+` FROM plans WHERE id = ?`, id.String()))
	if err != nil {
		if database.IsNoRows(err) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PlanRepository) FindAll(ctx context.Context) ([]*domain.Plan, error) {
	return r.list(ctx, `SELECT `+planColumns+` FROM plans ORDER BY display_order, name`)
}

func (r *PlanRepository) FindActive(ctx context.Context) ([]*domain.Plan, error) {
	return r.list(ctx, `SELECT `+planColumns+` FROM plans WHERE active = ? ORDER BY display_order, name`, true)
}

func (r *PlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.exec(ctx).Exec(ctx, `DELETE FROM plans WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete plan: %w", err)
	}
	return database.RequireAffected(result, domain.ErrPlanNotFound)
}

func (r *PlanRepository) list(ctx context.Context, query string, args ...any) ([]*domain.Plan, error) {
	rows, err := r.exec(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var plans []*domain.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func scanPlan(row database.Row) (*domain.Plan, error) {
	var (
		p                    domain.Plan
		id, tier             string
		features             pq.StringArray
		createdAt, updatedAt database.Time
	)
	if err := row.Scan(&id, &p.Name, &tier, &p.MonthlyPrice, &p.Description, &features,
		&p.MaxUsers, &p.StorageGB, &p.PrioritySupport, &p.Active, &p.DisplayOrder,
		&createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.ID, _ = uuid.Parse(id)
	p.Tier = domain.PlanTier(tier)
	p.MonthlyPrice = domain.RoundMoney(p.MonthlyPrice)
	p.Features = []string(features)
	p.CreatedAt = createdAt.Time
	p.UpdatedAt = updatedAt.Time
	return &p, nil
}
