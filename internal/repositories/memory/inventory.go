package memory

import (
	"context"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories"
)

type inventoryRepository struct{ s *Store }

func (r inventoryRepository) Reserve(ctx context.Context, lines []domain.StockLine, now time.Time) (map[string]domain.Product, error) {
	defer r.s.lock(ctx)()

	// Validate every line before touching stock so a failure leaves no partial decrement.
	demand := make(map[string]int, len(lines))
	for _, line := range lines {
		demand[line.ProductID] += line.Quantity
	}
	for _, line := range lines {
		product, ok := r.s.products[line.ProductID]
		if !ok {
			return nil, repositories.ProductNotFound("inventory.reserve", line.ProductID)
		}
		if want := demand[line.ProductID]; want > product.Stock {
			return nil, repositories.InsufficientStock("inventory.reserve", line.ProductID, want, product.Stock)
		}
	}

	out := make(map[string]domain.Product, len(lines))
	for _, line := range lines {
		product := r.s.products[line.ProductID]
		product.Stock -= line.Quantity
		product.UpdatedAt = now
		r.s.products[line.ProductID] = product
		out[line.ProductID] = product
	}
	return out, nil
}

func (r inventoryRepository) Release(ctx context.Context, lines []domain.StockLine, now time.Time) ([]string, error) {
	defer r.s.lock(ctx)()
	var skipped []string
	for _, line := range lines {
		product, ok := r.s.products[line.ProductID]
		if !ok {
			skipped = append(skipped, line.ProductID)
			continue
		}
		product.Stock += line.Quantity
		product.UpdatedAt = now
		r.s.products[line.ProductID] = product
	}
	return skipped, nil
}

func (r inventoryRepository) SetStock(ctx context.Context, productID string, stock int, now time.Time) (domain.Product, error) {
	defer r.s.lock(ctx)()
	product, ok := r.s.products[productID]
	if !ok {
		return domain.Product{}, repositories.ProductNotFound("inventory.set_stock", productID)
	}
	product.Stock = stock
	product.UpdatedAt = now
	r.s.products[productID] = product
	return product, nil
}
