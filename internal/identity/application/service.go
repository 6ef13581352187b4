// Package application registers users, issues tokens and manages profiles.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/felixgeelhaar/billora/internal/audit"
	"github.com/felixgeelhaar/billora/internal/identity/domain"
	sharedApplication "github.com/felixgeelhaar/billora/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/billora/pkg/observability"
)

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = 24 * time.Hour

// TokenConfig signs and verifies HS256 tokens.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// Claims are the JWT claims carried by access tokens.
type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Token is an issued access token.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
	UserID      uuid.UUID `json:"user_id"`
	Email       string    `json:"email"`
}

// RegisterInput carries the fields accepted at sign-up.
type RegisterInput struct {
	Email    string
	Password string
	Profile  domain.Profile
}

// Service is the identity use-case layer.
type Service struct {
	users      domain.UserRepository
	outboxRepo outbox.Repository
	uow        sharedApplication.UnitOfWork
	audit      audit.Recorder
	tokens     TokenConfig
	clock      sharedDomain.Clock
	hashCost   int
}

// NewService creates an identity service.
func NewService(
	users domain.UserRepository,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	recorder audit.Recorder,
	tokens TokenConfig,
	clock sharedDomain.Clock,
) *Service {
	if uow == nil {
		uow = sharedApplication.NoopUnitOfWork{}
	}
	if recorder == nil {
		recorder = audit.NoopRecorder{}
	}
	if tokens.TTL <= 0 {
		tokens.TTL = DefaultTokenTTL
	}
	if tokens.Issuer == "" {
		tokens.Issuer = "billora"
	}
	if clock == nil {
		clock = sharedDomain.NewSystemClock(time.UTC)
	}
	return &Service{
		users:      users,
		outboxRepo: outboxRepo,
		uow:        uow,
		audit:      recorder,
		tokens:     tokens,
		clock:      clock,
		hashCost:   bcrypt.DefaultCost,
	}
}

// WithHashCost lowers the bcrypt cost, for tests.
func (s *Service) WithHashCost(cost int) *Service {
	s.hashCost = cost
	return s
}

// Register creates the user and profile together.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email, err := domain.NewEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if len(in.Password) < domain.MinPasswordLength {
		return nil, domain.ErrPasswordTooWeak
	}
	profile, err := in.Profile.Normalize()
	if err != nil {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := domain.NewUser(email, string(hash), profile, s.clock.Now())
	err = s.write(ctx, func(txCtx context.Context, actor string) error {
		taken, err := s.users.ExistsByEmail(txCtx, email)
		if err != nil {
			return err
		}
		if taken {
			return domain.ErrEmailTaken
		}
		if err := s.users.Save(txCtx, user); err != nil {
			return err
		}
		if err := s.audit.Record(txCtx, audit.EntityUser, user.ID(), audit.KindCreate, actor, NewUserView(user)); err != nil {
			return err
		}
		return s.saveEvents(txCtx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Login verifies the password and issues a token. Unknown emails, wrong
// passwords and disabled accounts all answer ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, emailAddr, password string) (*Token, error) {
	email, err := domain.NewEmail(emailAddr)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidCredentials
		}
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash()), []byte(password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	if !user.IsActive() {
		return nil, domain.ErrInvalidCredentials
	}

	now := s.clock.Now()
	user.RecordLogin(now)
	err = s.write(ctx, func(txCtx context.Context, _ string) error {
		return s.users.Save(txCtx, user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}
	return s.issue(user, now)
}

func (s *Service) issue(user *domain.User, now time.Time) (*Token, error) {
	expires := now.Add(s.tokens.TTL)
	claims := Claims{
		Email: user.Email().String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID().String(),
			Issuer:    s.tokens.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.tokens.Secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}
	return &Token{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresAt:   expires.UTC(),
		UserID:      user.ID(),
		Email:       user.Email().String(),
	}, nil
}

// ParseToken verifies signature and expiry against the service clock.
func (s *Service) ParseToken(raw string) (*Claims, error) {
	claims := &Claims{}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.tokens.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.clock.Now),
	)
	_, err := parser.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return s.tokens.Secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, fmt.Errorf("%w: subject is not a user id", domain.ErrInvalidToken)
	}
	return claims, nil
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *Service) ListUsers(ctx context.Context) ([]*domain.User, error) {
	return s.users.FindAll(ctx)
}

// UpdateInput changes the profile and, optionally, the active flag.
type UpdateInput struct {
	Profile domain.Profile
	Active  *bool
}

func (s *Service) UpdateUser(ctx context.Context, id uuid.UUID, in UpdateInput) (*domain.User, error) {
	profile, err := in.Profile.Normalize()
	if err != nil {
		return nil, err
	}
	var user *domain.User
	err = s.write(ctx, func(txCtx context.Context, actor string) error {
		user, err = s.users.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		now := s.clock.Now()
		user.UpdateProfile(profile, now)
		if in.Active != nil {
			user.SetActive(*in.Active, now)
		}
		if err := s.users.Save(txCtx, user); err != nil {
			return err
		}
		if err := s.audit.Record(txCtx, audit.EntityUser, user.ID(), audit.KindUpdate, actor, NewUserView(user)); err != nil {
			return err
		}
		return s.saveEvents(txCtx, user)
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

func (s *Service) DeleteUser(ctx context.Context, id uuid.UUID) error {
	return s.write(ctx, func(txCtx context.Context, actor string) error {
		user, err := s.users.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if err := s.users.Delete(txCtx, id); err != nil {
			return err
		}
		return s.audit.Record(txCtx, audit.EntityUser, id, audit.KindDelete, actor, NewUserView(user))
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

func (s *Service) saveEvents(ctx context.Context, user *domain.User) error {
	events := user.DomainEvents()
	if len(events) == 0 || s.outboxRepo == nil {
		return nil
	}
	actorID, _ := uuid.Parse(observability.ActorIDFromContext(ctx))
	sharedApplication.ApplyEventMetadata(events,
		sharedApplication.NewEventMetadata(observability.CorrelationUUID(ctx), actorID))
	msgs, err := outbox.FromEvents(events)
	if err != nil {
		return err
	}
	if err := s.outboxRepo.SaveBatch(ctx, msgs); err != nil {
		return fmt.Errorf("failed to save outbox messages: %w", err)
	}
	user.ClearDomainEvents()
	return nil
}
