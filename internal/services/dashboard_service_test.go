package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
)

func TestDashboardAggregates(t *testing.T) {
	engine := newTestEngine(t,
		domain.Product{ID: "prod-1", Name: "Tea Cup", Category: "Kitchen", Price: 5000, Stock: 10},
		domain.Product{ID: "prod-2", Name: "Kettle", Category: "kitchen", Price: 12000, Stock: 4},
		domain.Product{ID: "prod-3", Name: "Lamp", Category: "Living", Price: 3000, Stock: 6},
	)
	ctx := context.Background()

	first := engine.placeCODOrder(t, "user-1", "prod-1", 2)
	engine.placeCODOrder(t, "user-2", "prod-3", 2)
	engine.placeCODOrder(t, "user-1", "prod-2", 1)

	deliverOrder(t, engine, first.ID)
	if _, err := engine.orders.RequestReturn(ctx, RequestReturnCommand{OrderID: first.ID, UserID: "user-1"}); err != nil {
		t.Fatalf("request return: %v", err)
	}
	admin := ReturnActionCommand{OrderID: first.ID}
	if _, err := engine.orders.ApproveReturn(ctx, admin); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if _, err := engine.orders.ReceiveReturn(ctx, ReceiveReturnCommand{OrderID: first.ID, Condition: ReturnConditionGood}); err != nil {
		t.Fatalf("receive: %v", err)
	}
	if _, err := engine.orders.InitiateRefund(ctx, admin); err != nil {
		t.Fatalf("refund: %v", err)
	}

	svc, err := NewDashboardService(DashboardServiceDeps{
		Products: engine.store.Products(),
		Orders:   engine.store.Orders(),
		Clock:    func() time.Time { return engine.clock.Now() },
	})
	if err != nil {
		t.Fatalf("new dashboard service: %v", err)
	}

	dashboard, err := svc.Dashboard(ctx)
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if dashboard.TotalProducts != 3 || dashboard.TotalOrders != 3 || dashboard.TotalCustomers != 2 {
		t.Fatalf("unexpected totals %+v", dashboard)
	}
	// Revenue is the sum of total minus refunded. The refunded order has a zero total and
	// a 10000 refund, so it offsets the lamp (6000) and the kettle (12000).
	if dashboard.TotalRevenue != 8000 {
		t.Fatalf("expected revenue 8000, got %d", dashboard.TotalRevenue)
	}
	if len(dashboard.LowStock) != 2 || dashboard.LowStock[0].ID != "prod-2" || dashboard.LowStock[1].ID != "prod-3" {
		t.Fatalf("unexpected low stock %+v", dashboard.LowStock)
	}
	if len(dashboard.StockSummary) != 2 {
		t.Fatalf("expected two categories, got %+v", dashboard.StockSummary)
	}
	kitchen := dashboard.StockSummary[0]
	if kitchen.Category != "Kitchen" || kitchen.TotalStock != 13 || kitchen.ProductCount != 2 {
		t.Fatalf("unexpected kitchen summary %+v", kitchen)
	}
	living := dashboard.StockSummary[1]
	if living.Category != "Living" || living.TotalStock != 4 || living.ProductCount != 1 {
		t.Fatalf("unexpected living summary %+v", living)
	}
}

func TestDashboardLowStockThresholdIsStrict(t *testing.T) {
	engine := newTestEngine(t,
		domain.Product{ID: "prod-1", Category: "A", Stock: 5},
		domain.Product{ID: "prod-2", Category: "A", Stock: 4},
	)
	svc, err := NewDashboardService(DashboardServiceDeps{Products: engine.store.Products(), Orders: engine.store.Orders()})
	if err != nil {
		t.Fatalf("new dashboard service: %v", err)
	}
	dashboard, err := svc.Dashboard(context.Background())
	if err != nil {
		t.Fatalf("dashboard: %v", err)
	}
	if len(dashboard.LowStock) != 1 || dashboard.LowStock[0].ID != "prod-2" {
		t.Fatalf("expected only prod-2 below 5, got %+v", dashboard.LowStock)
	}
	if dashboard.TotalRevenue != 0 || dashboard.TotalCustomers != 0 {
		t.Fatalf("expected empty order aggregates, got %+v", dashboard)
	}
}

func TestDashboardStockByCategory(t *testing.T) {
	engine := newTestEngine(t,
		domain.Product{ID: "prod-1", Category: "Kitchen", Stock: 1},
		domain.Product{ID: "prod-2", Category: "Living", Stock: 2},
	)
	svc, err := NewDashboardService(DashboardServiceDeps{Products: engine.store.Products(), Orders: engine.store.Orders()})
	if err != nil {
		t.Fatalf("new dashboard service: %v", err)
	}
	products, err := svc.StockByCategory(context.Background(), "kitchen")
	if err != nil {
		t.Fatalf("stock by category: %v", err)
	}
	if len(products) != 1 || products[0].ID != "prod-1" {
		t.Fatalf("unexpected products %+v", products)
	}
	if _, err := svc.StockByCategory(context.Background(), " "); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	summary, err := svc.StockSummary(context.Background())
	if err != nil {
		t.Fatalf("stock summary: %v", err)
	}
	if len(summary) != 2 || summary[0].Category != "Kitchen" {
		t.Fatalf("unexpected summary %+v", summary)
	}
}
