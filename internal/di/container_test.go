package di

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/config"
	"github.com/hanko-field/storefront/internal/platform/idempotency"
	"github.com/hanko-field/storefront/internal/repositories/memory"
	"github.com/hanko-field/storefront/internal/services"
)

type recordingPublisher struct {
	mu        sync.Mutex
	orders    []services.OrderEvent
	inventory []services.InventoryEvent
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event services.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.orders = append(p.orders, event)
	return nil
}

func (p *recordingPublisher) PublishInventoryEvent(_ context.Context, event services.InventoryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.inventory = append(p.inventory, event)
	return nil
}

func testConfig() config.Config {
	return config.Config{
		Storage:  config.StorageConfig{Driver: config.StorageDriverMemory},
		Commerce: config.CommerceConfig{ReturnWindow: 15 * 24 * time.Hour, LowStockThreshold: 5, Currency: "JPY"},
	}
}

func TestNewContainerRequiresRegistry(t *testing.T) {
	if _, err := NewContainer(context.Background(), testConfig(), nil); err == nil {
		t.Fatalf("expected error without registry")
	}
}

func TestNewContainerWiresCheckoutFlow(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := memory.NewStore(domain.Product{ID: "tea", Name: "Sencha", Category: "tea", Price: 800, Stock: 6})
	events := &recordingPublisher{}

	container, err := NewContainer(ctx, testConfig(), store,
		WithEventPublisher(events),
		WithClock(func() time.Time { return now }),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	if _, ok := container.Idempotency.(*idempotency.MemoryStore); !ok {
		t.Fatalf("expected memory idempotency store without redis, got %T", container.Idempotency)
	}

	if _, err := container.Services.Cart.AddItem(ctx, services.AddCartItemCommand{UserID: "u1", ProductID: "tea", Quantity: 2}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	order, err := container.Services.Checkout.PlaceOrder(ctx, services.PlaceOrderCommand{
		UserID:          "u1",
		ShippingAddress: "1-1 Chiyoda",
		PaymentMethod:   "Cash on Delivery",
	})
	if err != nil {
		t.Fatalf("PlaceOrder: %v", err)
	}
	if order.TotalAmount != 1600 || order.Currency != "JPY" {
		t.Fatalf("unexpected order %+v", order)
	}

	product, err := container.Services.Catalog.GetProduct(ctx, "tea")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if product.Stock != 4 {
		t.Fatalf("expected stock 4 after checkout, got %d", product.Stock)
	}

	dashboard, err := container.Services.Dashboard.Dashboard(ctx)
	if err != nil {
		t.Fatalf("Dashboard: %v", err)
	}
	if len(dashboard.LowStock) != 1 {
		t.Fatalf("expected one low-stock product, got %d", len(dashboard.LowStock))
	}

	events.mu.Lock()
	defer events.mu.Unlock()
	if len(events.orders) != 1 || events.orders[0].Type != services.OrderEventPlaced {
		t.Fatalf("expected order.placed event, got %+v", events.orders)
	}
	if len(events.inventory) == 0 {
		t.Fatalf("expected inventory reservation event")
	}
}

func TestNewContainerUsesRedis(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	container, err := NewContainer(ctx, testConfig(), memory.NewStore(), WithRedisClient(client))
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	if _, ok := container.Idempotency.(*idempotency.RedisStore); !ok {
		t.Fatalf("expected redis idempotency store, got %T", container.Idempotency)
	}

	report, err := container.Health.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if report.Status != domain.HealthStatusOK {
		t.Fatalf("expected ok, got %+v", report)
	}
	if _, ok := report.Checks["redis"]; !ok {
		t.Fatalf("expected redis check, got %v", report.Checks)
	}
	if _, ok := report.Checks[config.StorageDriverMemory]; !ok {
		t.Fatalf("expected storage check, got %v", report.Checks)
	}

	mr.Close()
	report, err = container.Health.Collect(ctx)
	if err != nil {
		t.Fatalf("Collect after redis shutdown: %v", err)
	}
	if report.Status == domain.HealthStatusOK {
		t.Fatalf("expected degraded readiness once redis is gone")
	}
	if report.Checks["redis"].Status == domain.HealthStatusOK {
		t.Fatalf("expected redis check to fail, got %+v", report.Checks["redis"])
	}
}

func TestOpenRegistry(t *testing.T) {
	reg, err := OpenRegistry(context.Background(), config.Config{})
	if err != nil {
		t.Fatalf("OpenRegistry default: %v", err)
	}
	if _, ok := reg.(*memory.Store); !ok {
		t.Fatalf("expected memory store by default, got %T", reg)
	}

	_, err = OpenRegistry(context.Background(), config.Config{Storage: config.StorageConfig{Driver: "cassandra"}})
	if err == nil || !strings.Contains(err.Error(), "cassandra") {
		t.Fatalf("expected unsupported driver error, got %v", err)
	}
}

func TestReportError(t *testing.T) {
	if err := reportError(domain.HealthStatusOK, nil); err != nil {
		t.Fatalf("expected nil for ok report, got %v", err)
	}
	err := reportError(domain.HealthStatusDegraded, map[string]domain.SystemHealthCheck{
		"postgres": {Status: domain.HealthStatusError, Detail: "dial tcp: refused"},
		"cache":    {Status: domain.HealthStatusOK},
	})
	if err == nil || err.Error() != "postgres: dial tcp: refused" {
		t.Fatalf("unexpected error %v", err)
	}
}
