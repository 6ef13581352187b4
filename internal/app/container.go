// Package app wires configuration, storage and services into one container
// shared by the API, worker, CLI and MCP binaries.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/felixgeelhaar/billora/internal/audit"
	billingApp "github.com/felixgeelhaar/billora/internal/billing/application"
	"github.com/felixgeelhaar/billora/internal/billing/application/subscribers"
	"github.com/felixgeelhaar/billora/internal/billing/infrastructure/gateway"
	billingPersistence "github.com/felixgeelhaar/billora/internal/billing/infrastructure/persistence"
	"github.com/felixgeelhaar/billora/internal/billing/infrastructure/redisstate"
	identityApp "github.com/felixgeelhaar/billora/internal/identity/application"
	identityPersistence "github.com/felixgeelhaar/billora/internal/identity/infrastructure/persistence"
	paymentApp "github.com/felixgeelhaar/billora/internal/payment/application"
	paymentPersistence "github.com/felixgeelhaar/billora/internal/payment/infrastructure/persistence"
	sharedApplication "github.com/felixgeelhaar/billora/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/billora/internal/shared/domain"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/crypto"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/database"
	_ "github.com/felixgeelhaar/billora/internal/shared/infrastructure/database/postgres" // Register PostgreSQL driver
	_ "github.com/felixgeelhaar/billora/internal/shared/infrastructure/database/sqlite"   // Register SQLite driver
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/eventbus"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/migrations"
	"github.com/felixgeelhaar/billora/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/billora/pkg/config"
	"github.com/felixgeelhaar/billora/pkg/observability"
)

const (
	planCacheTTL        = 5 * time.Minute
	rabbitDialTimeout   = 30 * time.Second
	developmentSecret   = "billora-development-secret"
	developmentCryptKey = "billora-development-encryption"
)

// Container holds all application dependencies.
type Container struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  sharedDomain.Clock

	// Storage
	DBConn      database.Connection
	RedisClient *redis.Client
	UnitOfWork  sharedApplication.UnitOfWork
	OutboxRepo  *outbox.SQLRepository
	Audit       *audit.SQLStore

	// Repositories
	PlanRepo         *billingPersistence.CachedPlanRepository
	SubscriptionRepo *billingPersistence.SubscriptionRepository
	InvoiceRepo      *billingPersistence.InvoiceRepository
	UserRepo         *identityPersistence.UserRepository
	MethodRepo       *paymentPersistence.MethodRepository

	// Services
	Identity  *identityApp.Service
	Billing   *billingApp.Service
	Payments  *paymentApp.Service
	Renewals  *billingApp.RenewalService
	Sweeper   *billingApp.Sweeper
	Scheduler *billingApp.Scheduler
	Gateway   *gateway.Breaker

	// Events
	EventPublisher  eventbus.Publisher
	EventRegistry   *eventbus.Registry
	OutboxProcessor *outbox.Processor

	// Observability
	Metrics *observability.PrometheusMetrics
	Health  *observability.HealthRegistry
}

// NewContainer connects to storage, applies migrations and builds every
// service. Redis and RabbitMQ are optional: without them invoice numbers
// come from an in-process sequence, the run lock is process-local and
// events go over an in-process bus.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Container, error) {
	if logger == nil {
		logger = slog.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	c := &Container{
		Config:  cfg,
		Logger:  logger,
		Clock:   sharedDomain.NewSystemClock(loc),
		Metrics: observability.NewPrometheusMetrics(prometheus.DefaultRegisterer, prometheus.DefaultGatherer),
		Health:  observability.NewHealthRegistry(),
	}

	if err := c.connectDatabase(ctx); err != nil {
		return nil, err
	}
	if err := c.connectRedis(ctx); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.buildServices(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.buildEvents(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Container) connectDatabase(ctx context.Context) error {
	dbCfg := database.Config{
		Driver:     database.Driver(c.Config.DatabaseDriver),
		URL:        c.Config.DatabaseURL,
		SQLitePath: c.Config.SQLitePath,
	}
	conn, err := database.NewConnection(ctx, dbCfg)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := conn.Ping(ctx); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	c.DBConn = conn
	c.Logger.Info("connected to database", "driver", conn.Driver().String())

	applied, err := migrations.Run(ctx, conn)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	if len(applied) > 0 {
		c.Logger.Info("applied migrations", "count", len(applied))
	}

	c.Health.Register("database", observability.DatabaseHealthChecker(conn.Ping))
	return nil
}

func (c *Container) connectRedis(ctx context.Context) error {
	if c.Config.RedisURL == "" {
		return nil
	}
	opt, err := redis.ParseURL(c.Config.RedisURL)
	if err != nil {
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		c.Logger.Warn("invalid Redis URL, using in-process sequence and lock", observability.ErrorKey, err)
		return nil
	}
	client := redis.NewClient(opt)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		if !c.Config.IsDevelopment() {
			return fmt.Errorf("failed to connect to Redis: %w", err)
		}
		c.Logger.Warn("Redis not available, using in-process sequence and lock", observability.ErrorKey, err)
		return nil
	}
	c.RedisClient = client
	c.Health.Register("redis", observability.RedisHealthChecker(func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}))
	c.Logger.Info("connected to Redis")
	return nil
}

func (c *Container) buildServices() error {
	cfg := c.Config
	conn := c.DBConn

	c.UnitOfWork = database.NewUnitOfWork(conn)
	c.OutboxRepo = outbox.NewSQLRepository(conn)
	c.Audit = audit.NewSQLStore(conn)

	c.PlanRepo = billingPersistence.NewCachedPlanRepository(billingPersistence.NewPlanRepository(conn), planCacheTTL)
	c.SubscriptionRepo = billingPersistence.NewSubscriptionRepository(conn)
	c.InvoiceRepo = billingPersistence.NewInvoiceRepository(conn)
	c.UserRepo = identityPersistence.NewUserRepository(conn)

	cipher, err := c.fieldCipher()
	if err != nil {
		return err
	}
	c.MethodRepo = paymentPersistence.NewMethodRepository(conn, cipher)

	secret := cfg.JWTSecret
	if secret == "" {
		c.Logger.Warn("JWT_SECRET not set, using the development secret")
		secret = developmentSecret
	}
	c.Identity = identityApp.NewService(c.UserRepo, c.OutboxRepo, c.UnitOfWork, c.Audit,
		identityApp.TokenConfig{Secret: []byte(secret), TTL: cfg.JWTTTL}, c.Clock)
	c.Payments = paymentApp.NewService(c.MethodRepo, c.UnitOfWork, c.Audit, c.Clock)

	taxes := billingApp.NewTaxTable()
	c.Billing = billingApp.NewService(c.PlanRepo, c.SubscriptionRepo, c.InvoiceRepo, c.OutboxRepo,
		c.UnitOfWork, c.Audit, taxes, c.Clock)

	var sequence billingApp.SequenceStore = billingApp.NewMemorySequence(c.Clock)
	var lock billingApp.RunLock = &billingApp.LocalRunLock{}
	if c.RedisClient != nil {
		sequence = redisstate.NewSequence(c.RedisClient)
		lock = redisstate.NewRunLock(c.RedisClient, "", redisstate.DefaultLockTTL)
	}
	numberer := billingApp.NewInvoiceNumberer(sequence, c.Clock)
	generator := billingApp.NewInvoiceGenerator(c.PlanRepo, identityApp.NewProfileCountryResolver(c.UserRepo),
		taxes, numberer, c.Clock)

	c.Gateway = gateway.NewBreaker(
		billingApp.NewSimulatedGateway(cfg.ChargeSuccessRate.InexactFloat64()),
		gateway.BreakerConfig{
			FailureThreshold: uint32(cfg.BreakerFailureThreshold),
			OpenTimeout:      cfg.BreakerOpenTimeout,
			HalfOpenRequests: 1,
		},
		c.Logger,
	)

	c.Renewals = billingApp.NewRenewalService(billingApp.RenewalDeps{
		Subscriptions: c.SubscriptionRepo,
		Invoices:      c.InvoiceRepo,
		Outbox:        c.OutboxRepo,
		UnitOfWork:    c.UnitOfWork,
		Generator:     generator,
		Gateway:       c.Gateway,
		Audit:         c.Audit,
		Clock:         c.Clock,
		Logger:        c.Logger,
		Metrics:       c.Metrics,
		Concurrency:   cfg.RenewalConcurrency,
	})
	c.Sweeper = billingApp.NewSweeper(c.SubscriptionRepo, c.OutboxRepo, c.UnitOfWork, c.Audit, c.Clock,
		cfg.RenewalGraceDays, c.Logger, c.Metrics)

	hour, minute, err := cfg.RunAt()
	if err != nil {
		return err
	}
	loc, err := cfg.Location()
	if err != nil {
		return err
	}
	c.Scheduler = billingApp.NewScheduler(c.Renewals, c.Sweeper, lock, c.Clock,
		billingApp.ScheduleConfig{Hour: hour, Minute: minute, Location: loc}, c.Logger, c.Metrics)
	return nil
}

// fieldCipher uses BILLORA_ENCRYPTION_KEY when set. Outside production a
// fixed passphrase stands in so local databases stay readable.
func (c *Container) fieldCipher() (*crypto.FieldCipher, error) {
	if c.Config.EncryptionKey != "" {
		enc, err := crypto.NewAESGCMFromBase64Key(c.Config.EncryptionKey)
		if err != nil {
			return nil, fmt.Errorf("invalid BILLORA_ENCRYPTION_KEY: %w", err)
		}
		return crypto.NewFieldCipher(enc), nil
	}
	if c.Config.IsProduction() {
		return nil, errors.New("BILLORA_ENCRYPTION_KEY is required in production")
	}
	c.Logger.Warn("BILLORA_ENCRYPTION_KEY not set, using the development key")
	enc, err := crypto.NewAESGCMFromPassphrase(developmentCryptKey)
	if err != nil {
		return nil, err
	}
	return crypto.NewFieldCipher(enc), nil
}

func (c *Container) buildEvents(ctx context.Context) error {
	notices := subscribers.NewNoticesSubscriber(nil, c.Logger, c.Metrics)
	c.EventRegistry = eventbus.NewRegistry(c.Logger)
	c.EventRegistry.Register(notices)

	if c.Config.RabbitMQURL == "" {
		bus := eventbus.NewInProcessBus(c.Logger)
		bus.RegisterConsumer(notices)
		c.EventPublisher = bus
	} else {
		publisher, err := eventbus.NewRabbitMQPublisher(ctx, c.rabbitDialConfig())
		if err != nil {
			if !c.Config.IsDevelopment() {
				return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
			}
			c.Logger.Warn("RabbitMQ not available, using noop publisher", observability.ErrorKey, err)
			c.EventPublisher = eventbus.NewNoopPublisher(c.Logger)
		} else {
			c.EventPublisher = publisher
			c.Health.Register("rabbitmq", observability.RabbitMQHealthChecker(publisher.Ping))
		}
	}

	processorCfg := outbox.DefaultProcessorConfig()
	processorCfg.PollInterval = c.Config.OutboxPollInterval
	processorCfg.BatchSize = c.Config.OutboxBatchSize
	processorCfg.MaxRetries = c.Config.OutboxMaxRetries
	c.OutboxProcessor = outbox.NewProcessor(c.OutboxRepo, c.EventPublisher, processorCfg, c.Logger).WithMetrics(c.Metrics)
	return nil
}

func (c *Container) rabbitDialConfig() eventbus.DialConfig {
	return eventbus.DialConfig{
		URL:        c.Config.RabbitMQURL,
		MaxElapsed: rabbitDialTimeout,
		Logger:     c.Logger,
	}
}

// NewEventConsumer binds a queue to the registered subscribers. It returns
// nil when events travel over the in-process bus.
func (c *Container) NewEventConsumer(ctx context.Context) (*eventbus.RabbitMQConsumer, error) {
	if c.Config.RabbitMQURL == "" {
		return nil, nil
	}
	return eventbus.NewRabbitMQConsumer(ctx, c.rabbitDialConfig(), eventbus.DefaultConsumerQueueName, c.EventRegistry)
}

// Migrate re-applies pending migrations.
func (c *Container) Migrate(ctx context.Context) error {
	applied, err := migrations.Run(ctx, c.DBConn)
	if err != nil {
		return err
	}
	c.Logger.Info("migrations up to date", "applied", len(applied))
	return nil
}

// Close releases every connection the container opened.
func (c *Container) Close() {
	if c.OutboxProcessor != nil {
		c.OutboxProcessor.Stop()
	}
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}
	if c.EventPublisher != nil {
		if err := c.EventPublisher.Close(); err != nil {
			c.Logger.Warn("failed to close event publisher", observability.ErrorKey, err)
		}
	}
	if c.RedisClient != nil {
		_ = c.RedisClient.Close()
	}
	if c.DBConn != nil {
		_ = c.DBConn.Close()
	}
}
