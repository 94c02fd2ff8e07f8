package memory

import (
	"context"

	domain "github.com/hanko-field/storefront/internal/domain"
)

type cartRepository struct{ s *Store }

func (r cartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	defer r.s.lock(ctx)()
	cart, ok := r.s.carts[userID]
	if !ok {
		return domain.Cart{}, notFound("carts.get", "cart for user %s not found", userID)
	}
	return cart.Clone(), nil
}

func (r cartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	defer r.s.lock(ctx)()
	r.s.carts[cart.UserID] = cart.Clone()
	return cart.Clone(), nil
}

func (r cartRepository) RemoveProduct(ctx context.Context, productID string) (int, error) {
	defer r.s.lock(ctx)()
	removed := 0
	for userID, cart := range r.s.carts {
		kept := cart.Items[:0:0]
		for _, item := range cart.Items {
			if item.ProductID == productID {
				removed++
				continue
			}
			kept = append(kept, item)
		}
		cart.Items = kept
		r.s.carts[userID] = cart
	}
	return removed, nil
}

func (r cartRepository) FindByItemID(ctx context.Context, itemID string) (domain.Cart, error) {
	defer r.s.lock(ctx)()
	for _, cart := range r.s.carts {
		for _, item := range cart.Items {
			if item.ID == itemID {
				return cart.Clone(), nil
			}
		}
	}
	return domain.Cart{}, notFound("carts.find_by_item", "cart item %s not found", itemID)
}
