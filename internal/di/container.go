package di

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/config"
	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/platform/idempotency"
	"github.com/hanko-field/storefront/internal/platform/jobs"
	"github.com/hanko-field/storefront/internal/platform/observability"
	"github.com/hanko-field/storefront/internal/platform/requestctx"
	"github.com/hanko-field/storefront/internal/repositories"
	firestorerepo "github.com/hanko-field/storefront/internal/repositories/firestore"
	"github.com/hanko-field/storefront/internal/repositories/memory"
	"github.com/hanko-field/storefront/internal/repositories/postgres"
	"github.com/hanko-field/storefront/internal/services"
)

const (
	redisCheckTimeout   = time.Second
	storageCheckTimeout = 3 * time.Second
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Inventory services.InventoryService
	Cart      services.CartService
	Checkout  services.CheckoutService
	Orders    services.OrderService
	Dashboard services.DashboardService
	Catalog   services.CatalogService
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services

	// Health aggregates the storage backend with the optional Redis cache.
	Health      repositories.HealthRepository
	Idempotency idempotency.Store
	Events      services.EventPublisher

	closers []func(context.Context) error
}

// Option customises container construction.
type Option func(*options)

type options struct {
	logger *zap.Logger
	clock  func() time.Time
	redis  redis.UniversalClient
	events services.EventPublisher
}

// WithLogger sets the base logger used by services and infrastructure.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the clock handed to services.
func WithClock(clock func() time.Time) Option {
	return func(o *options) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// WithRedisClient supplies a pre-built Redis client instead of dialing cfg.Redis.Addr.
// The container does not close injected clients.
func WithRedisClient(client redis.UniversalClient) Option {
	return func(o *options) {
		o.redis = client
	}
}

// WithEventPublisher supplies the publisher instead of connecting to Pub/Sub.
func WithEventPublisher(publisher services.EventPublisher) Option {
	return func(o *options) {
		o.events = publisher
	}
}

// OpenRegistry selects the persistence backend named by cfg.Storage.Driver.
func OpenRegistry(ctx context.Context, cfg config.Config) (repositories.Registry, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Storage.Driver)) {
	case "", config.StorageDriverMemory:
		return memory.NewStore(), nil
	case config.StorageDriverFirestore:
		return firestorerepo.NewRegistry(pfirestore.NewProvider(cfg.Firestore))
	case config.StorageDriverPostgres:
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		if cfg.Postgres.MigrateOnStart {
			if err := postgres.Migrate(db); err != nil {
				_ = db.Close()
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		reg, err := postgres.NewRegistry(db)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return reg, nil
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Storage.Driver)
	}
}

// NewContainer constructs the runtime dependencies. Production wiring will provide real
// implementations, while tests can supply in-memory registries.
func NewContainer(ctx context.Context, cfg config.Config, reg repositories.Registry, opts ...Option) (*Container, error) {
	if reg == nil {
		return nil, errors.New("repositories registry is required")
	}

	o := options{logger: zap.NewNop(), clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	c := &Container{Config: cfg, Repositories: reg}

	redisClient := o.redis
	if redisClient == nil && strings.TrimSpace(cfg.Redis.Addr) != "" {
		redis.SetLogger(observability.NewPrintfAdapter(o.logger.Named("redis")))
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		c.closers = append(c.closers, func(context.Context) error { return client.Close() })
		redisClient = client
	}
	if redisClient != nil {
		c.Idempotency = idempotency.NewRedisStore(redisClient)
	} else {
		c.Idempotency = idempotency.NewMemoryStore()
	}

	events := o.events
	if events == nil && strings.TrimSpace(cfg.PubSub.ProjectID) != "" {
		publisher, err := c.connectPubSub(ctx, cfg, o.logger)
		if err != nil {
			_ = c.closeInfrastructure(ctx)
			return nil, err
		}
		events = publisher
	}
	c.Events = events

	svc, err := buildServices(reg, cfg, events, o)
	if err != nil {
		_ = c.closeInfrastructure(ctx)
		return nil, err
	}
	c.Services = svc

	health, err := buildHealth(reg, cfg, redisClient, o.clock)
	if err != nil {
		_ = c.closeInfrastructure(ctx)
		return nil, err
	}
	c.Health = health

	return c, nil
}

// Close releases resources such as repository clients, background workers, or caches.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	err := c.closeInfrastructure(ctx)
	if c.Repositories != nil {
		err = errors.Join(err, c.Repositories.Close(ctx))
	}
	return err
}

func (c *Container) closeInfrastructure(ctx context.Context) error {
	var err error
	for i := len(c.closers) - 1; i >= 0; i-- {
		err = errors.Join(err, c.closers[i](ctx))
	}
	c.closers = nil
	return err
}

func (c *Container) connectPubSub(ctx context.Context, cfg config.Config, logger *zap.Logger) (*jobs.PubSubEventPublisher, error) {
	client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("connect pubsub: %w", err)
	}
	orderTopic := client.Topic(cfg.PubSub.OrderTopic)
	inventoryTopic := client.Topic(cfg.PubSub.InventoryTopic)
	c.closers = append(c.closers, func(context.Context) error {
		orderTopic.Stop()
		inventoryTopic.Stop()
		return client.Close()
	})

	publisher, err := jobs.NewPubSubEventPublisher(orderTopic, inventoryTopic, jobs.BreakerSettings{
		MaxRequests:      cfg.Breaker.MaxRequests,
		Interval:         cfg.Breaker.Interval,
		Timeout:          cfg.Breaker.Timeout,
		FailureThreshold: cfg.Breaker.FailureThreshold,
	}, jobs.WithPublisherLogger(logger.Named("events")))
	if err != nil {
		return nil, fmt.Errorf("build event publisher: %w", err)
	}
	return publisher, nil
}

func buildServices(reg repositories.Registry, cfg config.Config, events services.EventPublisher, o options) (Services, error) {
	var svc Services

	inventory, err := services.NewInventoryService(services.InventoryServiceDeps{
		Inventory: reg.Inventory(),
		Events:    events,
		Clock:     o.clock,
		Logger:    requestctx.EventLogger(o.logger.Named("inventory")),
	})
	if err != nil {
		return svc, fmt.Errorf("build inventory service: %w", err)
	}
	svc.Inventory = inventory

	cart, err := services.NewCartService(services.CartServiceDeps{
		Carts:      reg.Carts(),
		Products:   reg.Products(),
		UnitOfWork: reg,
		Clock:      o.clock,
		Logger:     requestctx.EventLogger(o.logger.Named("cart")),
	})
	if err != nil {
		return svc, fmt.Errorf("build cart service: %w", err)
	}
	svc.Cart = cart

	checkout, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:      reg.Carts(),
		Orders:     reg.Orders(),
		Inventory:  inventory,
		UnitOfWork: reg,
		Events:     events,
		Clock:      o.clock,
		Logger:     requestctx.EventLogger(o.logger.Named("checkout")),
		Currency:   cfg.Commerce.Currency,
	})
	if err != nil {
		return svc, fmt.Errorf("build checkout service: %w", err)
	}
	svc.Checkout = checkout

	orders, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:       reg.Orders(),
		Inventory:    inventory,
		UnitOfWork:   reg,
		Events:       events,
		Clock:        o.clock,
		Logger:       requestctx.EventLogger(o.logger.Named("orders")),
		ReturnWindow: cfg.Commerce.ReturnWindow,
	})
	if err != nil {
		return svc, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orders

	dashboard, err := services.NewDashboardService(services.DashboardServiceDeps{
		Products:          reg.Products(),
		Orders:            reg.Orders(),
		Clock:             o.clock,
		LowStockThreshold: cfg.Commerce.LowStockThreshold,
	})
	if err != nil {
		return svc, fmt.Errorf("build dashboard service: %w", err)
	}
	svc.Dashboard = dashboard

	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:   reg.Products(),
		Carts:      reg.Carts(),
		UnitOfWork: reg,
		Clock:      o.clock,
		Logger:     requestctx.EventLogger(o.logger.Named("catalog")),
	})
	if err != nil {
		return svc, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalog

	return svc, nil
}

func buildHealth(reg repositories.Registry, cfg config.Config, client redis.UniversalClient, clock func() time.Time) (repositories.HealthRepository, error) {
	storage := reg.Health()
	if client == nil && storage != nil {
		return storage, nil
	}

	var checks []repositories.DependencyCheck
	if storage != nil {
		name := strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
		if name == "" {
			name = config.StorageDriverMemory
		}
		checks = append(checks, repositories.DependencyCheck{
			Name:    name,
			Timeout: storageCheckTimeout,
			Check: func(ctx context.Context) error {
				report, err := storage.Collect(ctx)
				if err != nil {
					return err
				}
				return reportError(report.Status, report.Checks)
			},
		})
	}
	if client != nil {
		checks = append(checks, repositories.DependencyCheck{
			Name:    "redis",
			Timeout: redisCheckTimeout,
			Check: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
		})
	}
	return repositories.NewDependencyHealthRepository(checks, clock)
}

// reportError folds a nested health report into a single check result.
func reportError(status string, checks map[string]domain.SystemHealthCheck) error {
	if status == domain.HealthStatusOK {
		return nil
	}
	names := make([]string, 0, len(checks))
	for name, check := range checks {
		if check.Status == domain.HealthStatusOK {
			continue
		}
		if check.Detail != "" {
			names = append(names, name+": "+check.Detail)
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return fmt.Errorf("storage %s", status)
	}
	return errors.New(strings.Join(names, "; "))
}
