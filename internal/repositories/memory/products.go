package memory

import (
	"context"
	"sort"
	"strings"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/pagination"
	"github.com/hanko-field/storefront/internal/repositories"
)

type productRepository struct{ s *Store }

func (r productRepository) Insert(ctx context.Context, product domain.Product) error {
	defer r.s.lock(ctx)()
	if _, exists := r.s.products[product.ID]; exists {
		return conflict("products.insert", "product %s already exists", product.ID)
	}
	r.s.products[product.ID] = product
	return nil
}

func (r productRepository) Update(ctx context.Context, product domain.Product) error {
	defer r.s.lock(ctx)()
	current, ok := r.s.products[product.ID]
	if !ok {
		return notFound("products.update", "product %s not found", product.ID)
	}
	product.Stock = current.Stock
	product.CreatedAt = current.CreatedAt
	r.s.products[product.ID] = product
	return nil
}

func (r productRepository) Delete(ctx context.Context, productID string) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.products[productID]; !ok {
		return notFound("products.delete", "product %s not found", productID)
	}
	delete(r.s.products, productID)
	return nil
}

func (r productRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	defer r.s.lock(ctx)()
	product, ok := r.s.products[productID]
	if !ok {
		return domain.Product{}, notFound("products.find", "product %s not found", productID)
	}
	return product, nil
}

func (r productRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	defer r.s.lock(ctx)()
	out := make(map[string]domain.Product, len(productIDs))
	for _, id := range productIDs {
		if product, ok := r.s.products[id]; ok {
			out[id] = product
		}
	}
	return out, nil
}

func (r productRepository) List(ctx context.Context, filter repositories.ProductFilter) (domain.CursorPage[domain.Product], error) {
	unlock := r.s.lock(ctx)
	items := make([]domain.Product, 0, len(r.s.products))
	for _, product := range r.s.products {
		if filter.Category != "" && !strings.EqualFold(product.Category, filter.Category) {
			continue
		}
		if filter.StockBelow != nil && product.Stock >= *filter.StockBelow {
			continue
		}
		items = append(items, product)
	}
	unlock()

	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return pagination.Slice(items, filter.Pagination)
}
