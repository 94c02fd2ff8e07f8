package memory

import (
	"context"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/pagination"
	"github.com/hanko-field/storefront/internal/repositories"
)

type orderRepository struct{ s *Store }

func (r orderRepository) Insert(ctx context.Context, order domain.Order) error {
	defer r.s.lock(ctx)()
	if _, exists := r.s.orders[order.ID]; exists {
		return conflict("orders.insert", "order %s already exists", order.ID)
	}
	r.s.orders[order.ID] = order.Clone()
	r.s.orderIndex = append(r.s.orderIndex, order.ID)
	return nil
}

func (r orderRepository) Update(ctx context.Context, order domain.Order) error {
	defer r.s.lock(ctx)()
	if _, ok := r.s.orders[order.ID]; !ok {
		return notFound("orders.update", "order %s not found", order.ID)
	}
	r.s.orders[order.ID] = order.Clone()
	return nil
}

func (r orderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	defer r.s.lock(ctx)()
	order, ok := r.s.orders[orderID]
	if !ok {
		return domain.Order{}, notFound("orders.find", "order %s not found", orderID)
	}
	return order.Clone(), nil
}

// List returns orders newest first.
func (r orderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	unlock := r.s.lock(ctx)
	matches := make([]domain.Order, 0, len(r.s.orderIndex))
	for i := len(r.s.orderIndex) - 1; i >= 0; i-- {
		order := r.s.orders[r.s.orderIndex[i]]
		if repositories.MatchesOrderFilter(order, filter) {
			matches = append(matches, order.Clone())
		}
	}
	unlock()
	return pagination.Slice(matches, filter.Pagination)
}
