package application

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/felixgeelhaar/billora/internal/billing/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/outbox"
)

type memPlans struct {
	mu    sync.Mutex
	plans map[uuid.UUID]*domain.Plan
}

func newMemPlans(plans ...*domain.Plan) *memPlans {
	r := &memPlans{plans: map[uuid.UUID]*domain.Plan{}}
	for _, p := range plans {
		r.plans[p.ID] = p
	}
	return r
}

func (r *memPlans) Save(_ context.Context, p *domain.Plan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plans[p.ID] = p
	return nil
}

func (r *memPlans) FindByID(_ context.Context, id uuid.UUID) (*domain.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.plans[id]
	if !ok {
		return nil, domain.ErrPlanNotFound
	}
	return p, nil
}

func (r *memPlans) FindAll(_ context.Context) ([]*domain.Plan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Plan, 0, len(r.plans))
	for _, p := range r.plans {
		out = append(out, p)
	}
	return out, nil
}

func (r *memPlans) FindActive(ctx context.Context) ([]*domain.Plan, error) {
	all, _ := r.FindAll(ctx)
	var out []*domain.Plan
	for _, p := range all {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memPlans) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.plans[id]; !ok {
		return domain.ErrPlanNotFound
	}
	delete(r.plans, id)
	return nil
}

type memSubscriptions struct {
	mu      sync.Mutex
	subs    map[uuid.UUID]*domain.Subscription
	dueErr  error
	saveErr map[uuid.UUID]error
	saves   int
}

func newMemSubscriptions(subs ...*domain.Subscription) *memSubscriptions {
	r := &memSubscriptions{subs: map[uuid.UUID]*domain.Subscription{}, saveErr: map[uuid.UUID]error{}}
	for _, s := range subs {
		r.subs[s.ID()] = s
	}
	return r
}

func (r *memSubscriptions) Save(_ context.Context, s *domain.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.saveErr[s.ID()]; err != nil {
		return err
	}
	r.saves++
	r.subs[s.ID()] = s
	return nil
}

func (r *memSubscriptions) FindByID(_ context.Context, id uuid.UUID) (*domain.Subscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.subs[id]
	if !ok {
		return nil, domain.ErrSubscriptionNotFound
	}
	return s, nil
}

func (r *memSubscriptions) filter(keep func(*domain.Subscription) bool) []*domain.Subscription {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Subscription
	for _, s := range r.subs {
		if keep(s) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].NextChargeDate().Before(out[j].NextChargeDate()) })
	return out
}

func (r *memSubscriptions) FindAll(_ context.Context) ([]*domain.Subscription, error) {
	return r.filter(func(*domain.Subscription) bool { return true }), nil
}

func (r *memSubscriptions) FindByUser(_ context.Context, userID uuid.UUID) ([]*domain.Subscription, error) {
	return r.filter(func(s *domain.Subscription) bool { return s.UserID() == userID }), nil
}

func (r *memSubscriptions) FindByStatus(_ context.Context, status domain.SubscriptionStatus) ([]*domain.Subscription, error) {
	return r.filter(func(s *domain.Subscription) bool { return s.Status() == status }), nil
}

func (r *memSubscriptions) FindDue(_ context.Context, asOf time.Time) ([]*domain.Subscription, error) {
	if r.dueErr != nil {
		return nil, r.dueErr
	}
	return r.filter(func(s *domain.Subscription) bool {
		return s.Status() == domain.StatusActive && s.AutoRenew() && !s.NextChargeDate().After(asOf)
	}), nil
}

func (r *memSubscriptions) FindDelinquentCandidates(_ context.Context, before time.Time) ([]*domain.Subscription, error) {
	return r.filter(func(s *domain.Subscription) bool {
		return s.Status() == domain.StatusActive && s.NextChargeDate().Before(before)
	}), nil
}

func (r *memSubscriptions) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[id]; !ok {
		return domain.ErrSubscriptionNotFound
	}
	delete(r.subs, id)
	return nil
}

type memInvoices struct {
	mu       sync.Mutex
	invoices map[uuid.UUID]*domain.Invoice
	owners   map[uuid.UUID]uuid.UUID
}

func newMemInvoices() *memInvoices {
	return &memInvoices{invoices: map[uuid.UUID]*domain.Invoice{}, owners: map[uuid.UUID]uuid.UUID{}}
}

func (r *memInvoices) Save(_ context.Context, inv *domain.Invoice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.invoices {
		if existing.Number() == inv.Number() && existing.ID() != inv.ID() {
			return domain.ErrDuplicateInvoiceNumber
		}
	}
	r.invoices[inv.ID()] = inv
	return nil
}

func (r *memInvoices) FindByID(_ context.Context, id uuid.UUID) (*domain.Invoice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inv, ok := r.invoices[id]
	if !ok {
		return nil, domain.ErrInvoiceNotFound
	}
	return inv, nil
}

func (r *memInvoices) FindByNumber(_ context.Context, number string) (*domain.Invoice, error) {
	found := r.filter(func(inv *domain.Invoice) bool { return inv.Number() == number })
	if len(found) == 0 {
		return nil, domain.ErrInvoiceNotFound
	}
	return found[0], nil
}

func (r *memInvoices) filter(keep func(*domain.Invoice) bool) []*domain.Invoice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Invoice
	for _, inv := range r.invoices {
		if keep(inv) {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number() < out[j].Number() })
	return out
}

func (r *memInvoices) FindAll(_ context.Context) ([]*domain.Invoice, error) {
	return r.filter(func(*domain.Invoice) bool { return true }), nil
}

func (r *memInvoices) FindByUser(_ context.Context, userID uuid.UUID) ([]*domain.Invoice, error) {
	return r.filter(func(inv *domain.Invoice) bool { return r.owners[inv.SubscriptionID()] == userID }), nil
}

func (r *memInvoices) FindBySubscription(_ context.Context, subscriptionID uuid.UUID) ([]*domain.Invoice, error) {
	return r.filter(func(inv *domain.Invoice) bool { return inv.SubscriptionID() == subscriptionID }), nil
}

func (r *memInvoices) FindByStatus(_ context.Context, status domain.InvoiceStatus) ([]*domain.Invoice, error) {
	return r.filter(func(inv *domain.Invoice) bool { return inv.Status() == status }), nil
}

func (r *memInvoices) FindByIssueDateRange(_ context.Context, from, to time.Time) ([]*domain.Invoice, error) {
	return r.filter(func(inv *domain.Invoice) bool {
		return !inv.IssueDate().Before(from) && !inv.IssueDate().After(to)
	}), nil
}

func (r *memInvoices) FindByTotalRange(_ context.Context, min, max decimal.Decimal) ([]*domain.Invoice, error) {
	return r.filter(func(inv *domain.Invoice) bool {
		return inv.Total().GreaterThanOrEqual(min) && inv.Total().LessThanOrEqual(max)
	}), nil
}

func (r *memInvoices) FindOverdue(_ context.Context, asOf time.Time) ([]*domain.Invoice, error) {
	return r.filter(func(inv *domain.Invoice) bool { return inv.IsOverdue(asOf) }), nil
}

func (r *memInvoices) PendingTotal(_ context.Context) (decimal.Decimal, error) {
	total := decimal.Zero
	for _, inv := range r.filter(func(inv *domain.Invoice) bool { return inv.Status() == domain.InvoicePending }) {
		total = total.Add(inv.Total())
	}
	return total, nil
}

func (r *memInvoices) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.invoices[id]; !ok {
		return domain.ErrInvoiceNotFound
	}
	delete(r.invoices, id)
	return nil
}

type memOutbox struct {
	mu   sync.Mutex
	msgs []*outbox.Message
}

func (r *memOutbox) Save(ctx context.Context, msg *outbox.Message) error {
	return r.SaveBatch(ctx, []*outbox.Message{msg})
}

func (r *memOutbox) SaveBatch(_ context.Context, msgs []*outbox.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		m.ID = int64(len(r.msgs) + 1)
		r.msgs = append(r.msgs, m)
	}
	return nil
}

func (r *memOutbox) GetUnpublished(context.Context, int) ([]*outbox.Message, error) { return nil, nil }
func (r *memOutbox) MarkPublished(context.Context, int64) error                   { return nil }
func (r *memOutbox) MarkFailed(context.Context, int64, string, time.Time) error   { return nil }
func (r *memOutbox) MarkDead(context.Context, int64, string) error                { return nil }
func (r *memOutbox) DeleteOld(context.Context, int) (int64, error)                { return 0, nil }

// keys returns the routing keys recorded for aggregateID, in order.
func (r *memOutbox) keys(aggregateID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.msgs {
		if m.AggregateID == aggregateID {
			out = append(out, m.RoutingKey)
		}
	}
	return out
}

type staticCountry map[uuid.UUID]string

func (c staticCountry) CountryFor(_ context.Context, userID uuid.UUID) (string, error) {
	return c[userID], nil
}

// scriptedGateway approves unless the subscription is listed as declined
// or panicking.
type scriptedGateway struct {
	mu       sync.Mutex
	declined map[uuid.UUID]bool
	panics   map[uuid.UUID]bool
	charged  []uuid.UUID
}

func newScriptedGateway() *scriptedGateway {
	return &scriptedGateway{declined: map[uuid.UUID]bool{}, panics: map[uuid.UUID]bool{}}
}

func (g *scriptedGateway) Charge(_ context.Context, sub *domain.Subscription) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charged = append(g.charged, sub.ID())
	if g.panics[sub.ID()] {
		panic("gateway exploded")
	}
	return !g.declined[sub.ID()], nil
}

func (g *scriptedGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charged)
}

type sequenceFunc func() int64

func (f sequenceFunc) Next(context.Context, string) (int64, error) { return f(), nil }
