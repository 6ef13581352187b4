package persistence

import (
	"context"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/felixgeelhaar/billora/internal/billing/domain"
)

// DefaultPlanCacheTTL bounds how stale a cached plan may be.
const DefaultPlanCacheTTL = 5 * time.Minute

const (
	allPlansKey    = "plans:all"
	activePlansKey = "plans:active"
)

// CachedPlanRepository keeps plans in memory. The renewal batch looks up the
// same few plans for every subscription; writes flush the cache.
type CachedPlanRepository struct {
	next  domain.PlanRepository
	cache *gocache.Cache
}

// NewCachedPlanRepository wraps next with a TTL cache.
func NewCachedPlanRepository(next domain.PlanRepository, ttl time.Duration) *CachedPlanRepository {
	if ttl <= 0 {
		ttl = DefaultPlanCacheTTL
	}
	return &CachedPlanRepository{next: next, cache: gocache.New(ttl, 2*ttl)}
}

func (r *CachedPlanRepository) Save(ctx context.Context, p *domain.Plan) error {
	if err := r.next.Save(ctx, p); err != nil {
		return err
	}
	r.cache.Flush()
	return nil
}

func (r *CachedPlanRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	key := "plan:" + id.String()
	if v, ok := r.cache.Get(key); ok {
		return clonePlan(v.(*domain.Plan)), nil
	}
	p, err := r.next.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(key, clonePlan(p))
	return p, nil
}

func (r *CachedPlanRepository) FindAll(ctx context.Context) ([]*domain.Plan, error) {
	return r.cachedList(allPlansKey, func() ([]*domain.Plan, error) { return r.next.FindAll(ctx) })
}

func (r *CachedPlanRepository) FindActive(ctx context.Context) ([]*domain.Plan, error) {
	return r.cachedList(activePlansKey, func() ([]*domain.Plan, error) { return r.next.FindActive(ctx) })
}

func (r *CachedPlanRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.next.Delete(ctx, id); err != nil {
		return err
	}
	r.cache.Flush()
	return nil
}

func (r *CachedPlanRepository) cachedList(key string, load func() ([]*domain.Plan, error)) ([]*domain.Plan, error) {
	if v, ok := r.cache.Get(key); ok {
		return clonePlans(v.([]*domain.Plan)), nil
	}
	plans, err := load()
	if err != nil {
		return nil, err
	}
	r.cache.SetDefault(key, clonePlans(plans))
	return plans, nil
}

// Callers may edit the plans they receive, so the cache never hands out its own copies.
func clonePlan(p *domain.Plan) *domain.Plan {
	c := *p
	c.Features = append([]string(nil), p.Features...)
	return &c
}

func clonePlans(plans []*domain.Plan) []*domain.Plan {
	out := make([]*domain.Plan, len(plans))
	for i, p := range plans {
		out[i] = clonePlan(p)
	}
	return out
}
