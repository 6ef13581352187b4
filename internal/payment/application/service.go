// Package application manages a user's payment methods.
package application

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/felixgeelhaar/billora/internal/audit"
	"github.com/felixgeelhaar/billora/internal/payment/domain"
	sharedApplication "github.com/felixgeelhaar/billora/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/felixgeelhaar/billora/pkg/observability"
)

// MethodView is the masked representation returned to callers.
type MethodView struct {
	ID        uuid.UUID   `json:"id"`
	UserID    uuid.UUID   `json:"user_id"`
	Type      domain.Kind `json:"type"`
	Masked    string      `json:"masked"`
	IsDefault bool        `json:"is_default"`
	Active    bool        `json:"active"`
	Valid     bool        `json:"valid"`
	CreatedAt time.Time   `json:"created_at"`
}

// AddInput carries the fields for every kind; only the ones matching Type are read.
type AddInput struct {
	UserID      uuid.UUID
	Type        string
	HolderName  string
	MakeDefault bool

	CardNumber string
	CVV        string
	ExpMonth   int
	ExpYear    int
	Brand      string

	PayPalEmail string
	PayPalID    string

	BankName    string
	IBAN        string
	SWIFT       string
	BankCountry string
}

func (in AddInput) details() (domain.Details, error) {
	kind, err := domain.ParseKind(in.Type)
	if err != nil {
		return nil, err
	}
	switch kind {
	case domain.KindCreditCard:
		return domain.Card{HolderName: in.HolderName, Number: in.CardNumber, CVV: in.CVV,
			ExpMonth: in.ExpMonth, ExpYear: in.ExpYear, Brand: in.Brand}, nil
	case domain.KindPayPal:
		return domain.PayPal{Email: in.PayPalEmail, AccountID: in.PayPalID}, nil
	default:
		return domain.BankTransfer{HolderName: in.HolderName, BankName: in.BankName, IBAN: in.IBAN,
			SWIFT: in.SWIFT, Country: in.BankCountry}, nil
	}
}

// Service is the payment-method use-case layer.
type Service struct {
	methods domain.Repository
	uow     sharedApplication.UnitOfWork
	audit   audit.Recorder
	clock   sharedDomain.Clock
}

func NewService(methods domain.Repository, uow sharedApplication.UnitOfWork, recorder audit.Recorder, clock sharedDomain.Clock) *Service {
	if uow == nil {
		uow = sharedApplication.NoopUnitOfWork{}
	}
	if recorder == nil {
		recorder = audit.NoopRecorder{}
	}
	if clock == nil {
		clock = sharedDomain.NewSystemClock(time.UTC)
	}
	return &Service{methods: methods, uow: uow, audit: recorder, clock: clock}
}

func NewMethodView(m *domain.Method, now time.Time) MethodView {
	return MethodView{
		ID:        m.ID,
		UserID:    m.UserID,
		Type:      m.Kind(),
		Masked:    m.Details.Masked(),
		IsDefault: m.IsDefault,
		Active:    m.Active,
		Valid:     m.Details.IsValid(now),
		CreatedAt: m.CreatedAt,
	}
}

// Add stores a new method. Expired cards, malformed PayPal emails and
// out-of-range IBANs fail with domain.ErrInvalidMethod.
func (s *Service) Add(ctx context.Context, in AddInput) (MethodView, error) {
	details, err := in.details()
	if err != nil {
		return MethodView{}, err
	}
	now := s.clock.Now()
	method, err := domain.NewMethod(in.UserID, details, now)
	if err != nil {
		return MethodView{}, err
	}
	method.IsDefault = in.MakeDefault

	err = s.write(ctx, func(txCtx context.Context, actor string) error {
		if method.IsDefault {
			if err := s.methods.ClearDefault(txCtx, method.UserID); err != nil {
				return err
			}
		}
		if err := s.methods.Save(txCtx, method); err != nil {
			return err
		}
		return s.audit.Record(txCtx, audit.EntityPaymentMethod, method.ID, audit.KindCreate, actor, NewMethodView(method, now))
	})
	if err != nil {
		return MethodView{}, err
	}
	return NewMethodView(method, now), nil
}

// ListByUser returns masked views, default first.
func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]MethodView, error) {
	methods, err := s.methods.FindByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	views := make([]MethodView, 0, len(methods))
	for _, m := range methods {
		views = append(views, NewMethodView(m, now))
	}
	return views, nil
}

// SetDefault makes id the user's only default method.
func (s *Service) SetDefault(ctx context.Context, id uuid.UUID) (MethodView, error) {
	var method *domain.Method
	now := s.clock.Now()
	err := s.write(ctx, func(txCtx context.Context, actor string) error {
		var err error
		method, err = s.methods.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if !method.Active {
			return domain.ErrMethodInactive
		}
		if err := s.methods.ClearDefault(txCtx, method.UserID); err != nil {
			return err
		}
		method.IsDefault = true
		method.UpdatedAt = now.UTC()
		if err := s.methods.Save(txCtx, method); err != nil {
			return err
		}
		return s.audit.Record(txCtx, audit.EntityPaymentMethod, method.ID, audit.KindUpdate, actor, NewMethodView(method, now))
	})
	if err != nil {
		return MethodView{}, err
	}
	return NewMethodView(method, now), nil
}

// Deactivate keeps the row for invoice history but stops offering it. A
// deactivated method is never the default.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) error {
	now := s.clock.Now()
	return s.write(ctx, func(txCtx context.Context, actor string) error {
		method, err := s.methods.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if !method.Active {
			return nil
		}
		method.Active = false
		method.IsDefault = false
		method.UpdatedAt = now.UTC()
		if err := s.methods.Save(txCtx, method); err != nil {
			return err
		}
		return s.audit.Record(txCtx, audit.EntityPaymentMethod, method.ID, audit.KindUpdate, actor, NewMethodView(method, now))
	})
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	now := s.clock.Now()
	return s.write(ctx, func(txCtx context.Context, actor string) error {
		method, err := s.methods.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.methods.Delete(txCtx, id); err != nil {
			return err
		}
		return s.audit.Record(txCtx, audit.EntityPaymentMethod, id, audit.KindDelete, actor, NewMethodView(method, now))
	})
}

func (s *Service) write(ctx context.Context, fn func(txCtx context.Context, actor string) error) error {
	actor := observability.ActorIDFromContext(ctx)
	if actor == "" {
		actor = "system"
	}
	return sharedApplication.WithUnitOfWork(ctx, s.uow, func(txCtx context.Context) error {
		return fn(txCtx, actor)
	})
}
