// Package firestore implements the repository registry on Cloud Firestore. Every repository
// joins the transaction opened by RunInTx when handed its context.
package firestore

import (
	"context"
	"errors"
	"time"

	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/repositories"
)

const (
	productsCollection = "products"
	cartsCollection    = "carts"
	ordersCollection   = "orders"
)

// Registry exposes Firestore backed repositories.
type Registry struct {
	provider *pfirestore.Provider

	products *pfirestore.Collection[productDocument]
	carts    *pfirestore.Collection[cartDocument]
	orders   *pfirestore.Collection[orderDocument]
	health   repositories.HealthRepository
}

// NewRegistry wires the repositories onto a shared provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}
	r := &Registry{
		provider: provider,
		products: pfirestore.NewCollection[productDocument](provider, productsCollection),
		carts:    pfirestore.NewCollection[cartDocument](provider, cartsCollection),
		orders:   pfirestore.NewCollection[orderDocument](provider, ordersCollection),
	}
	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{
		Name:    "firestore",
		Timeout: 2 * time.Second,
		Check:   provider.Ping,
	}}, time.Now)
	if err != nil {
		return nil, err
	}
	r.health = health
	return r, nil
}

var _ repositories.Registry = (*Registry)(nil)

func (r *Registry) Close(ctx context.Context) error { return r.provider.Close(ctx) }

func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunInTx(ctx, fn)
}

func (r *Registry) Products() repositories.ProductRepository {
	return productRepository{products: r.products}
}

func (r *Registry) Inventory() repositories.InventoryRepository {
	return inventoryRepository{provider: r.provider, products: r.products}
}

func (r *Registry) Carts() repositories.CartRepository {
	return cartRepository{carts: r.carts}
}

func (r *Registry) Orders() repositories.OrderRepository {
	return orderRepository{orders: r.orders}
}

func (r *Registry) Health() repositories.HealthRepository { return r.health }
