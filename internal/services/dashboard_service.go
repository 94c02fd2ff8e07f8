package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/textutil"
	"github.com/hanko-field/storefront/internal/repositories"
)

const (
	// DefaultLowStockThreshold flags products whose stock is strictly below this value.
	DefaultLowStockThreshold = 5

	dashboardScanPageSize = 200
)

// DashboardServiceDeps wires the read-side repositories used by the dashboard.
type DashboardServiceDeps struct {
	Products          repositories.ProductRepository
	Orders            repositories.OrderRepository
	Clock             func() time.Time
	LowStockThreshold int
}

type dashboardService struct {
	products  repositories.ProductRepository
	orders    repositories.OrderRepository
	now       func() time.Time
	threshold int
}

// NewDashboardService constructs the administrative read model service.
func NewDashboardService(deps DashboardServiceDeps) (DashboardService, error) {
	if deps.Products == nil {
		return nil, errors.New("dashboard service: product repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("dashboard service: order repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	threshold := deps.LowStockThreshold
	if threshold <= 0 {
		threshold = DefaultLowStockThreshold
	}
	return &dashboardService{
		products:  deps.Products,
		orders:    deps.Orders,
		now:       func() time.Time { return clock().UTC() },
		threshold: threshold,
	}, nil
}

func (s *dashboardService) Dashboard(ctx context.Context) (Dashboard, error) {
	products, err := s.allProducts(ctx, "")
	if err != nil {
		return Dashboard{}, err
	}
	orders, err := s.allOrders(ctx)
	if err != nil {
		return Dashboard{}, err
	}

	customers := make(map[string]struct{}, len(orders))
	var revenue int64
	for _, order := range orders {
		revenue += order.TotalAmount - order.RefundedAmount
		if order.UserID != "" {
			customers[order.UserID] = struct{}{}
		}
	}

	lowStock := make([]Product, 0)
	for _, product := range products {
		if product.Stock < s.threshold {
			lowStock = append(lowStock, product)
		}
	}
	sort.SliceStable(lowStock, func(i, j int) bool {
		if lowStock[i].Stock != lowStock[j].Stock {
			return lowStock[i].Stock < lowStock[j].Stock
		}
		return lowStock[i].ID < lowStock[j].ID
	})

	return Dashboard{
		TotalProducts:  len(products),
		TotalOrders:    len(orders),
		TotalCustomers: len(customers),
		TotalRevenue:   revenue,
		LowStock:       lowStock,
		StockSummary:   summariseStock(products),
		GeneratedAt:    s.now(),
	}, nil
}

func (s *dashboardService) StockSummary(ctx context.Context) ([]StockSummary, error) {
	products, err := s.allProducts(ctx, "")
	if err != nil {
		return nil, err
	}
	return summariseStock(products), nil
}

func (s *dashboardService) StockByCategory(ctx context.Context, category string) ([]Product, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return nil, fmt.Errorf("%w: category is required", ErrCatalogInvalidInput)
	}
	return s.allProducts(ctx, category)
}

func (s *dashboardService) allProducts(ctx context.Context, category string) ([]Product, error) {
	var out []Product
	pager := Pagination{PageSize: dashboardScanPageSize}
	for {
		page, err := s.products.List(ctx, repositories.ProductFilter{Category: category, Pagination: pager})
		if err != nil {
			return nil, mapRepositoryError(err, ErrCatalogProductNotFound)
		}
		out = append(out, page.Items...)
		if page.NextPageToken == "" {
			return out, nil
		}
		pager.PageToken = page.NextPageToken
	}
}

func (s *dashboardService) allOrders(ctx context.Context) ([]Order, error) {
	var out []Order
	pager := Pagination{PageSize: dashboardScanPageSize}
	for {
		page, err := s.orders.List(ctx, repositories.OrderListFilter{Pagination: pager})
		if err != nil {
			return nil, mapRepositoryError(err, ErrOrderNotFound)
		}
		out = append(out, page.Items...)
		if page.NextPageToken == "" {
			return out, nil
		}
		pager.PageToken = page.NextPageToken
	}
}

// summariseStock groups products by case-folded category, keeping the first spelling seen.
func summariseStock(products []Product) []StockSummary {
	byCategory := make(map[string]*StockSummary)
	for _, product := range products {
		key := textutil.Fold(product.Category)
		entry, ok := byCategory[key]
		if !ok {
			entry = &StockSummary{Category: strings.TrimSpace(product.Category)}
			byCategory[key] = entry
		}
		entry.TotalStock += product.Stock
		entry.ProductCount++
	}

	out := make([]domain.StockSummary, 0, len(byCategory))
	for _, entry := range byCategory {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}
