package repositories

import (
	"context"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Products() ProductRepository
	Inventory() InventoryRepository
	Carts() CartRepository
	Orders() OrderRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
// Repositories invoked with the ctx passed to fn participate in the same transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductFilter narrows product listings.
type ProductFilter struct {
	Category   string
	StockBelow *int
	Pagination domain.Pagination
}

// ProductRepository persists catalog entries. Stock values written through Insert/Update
// are ignored on update; only InventoryRepository mutates stock after creation.
type ProductRepository interface {
	Insert(ctx context.Context, product domain.Product) error
	Update(ctx context.Context, product domain.Product) error
	Delete(ctx context.Context, productID string) error
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
	List(ctx context.Context, filter ProductFilter) (domain.CursorPage[domain.Product], error)
}

// InventoryRepository is the only writer of product stock quantities.
type InventoryRepository interface {
	// Reserve decrements stock for every line or for none. Lines arrive sorted by product id.
	// Returns the post-decrement product snapshots keyed by product id.
	Reserve(ctx context.Context, lines []domain.StockLine, now time.Time) (map[string]domain.Product, error)
	// Release increments stock. Unknown products are reported in the skipped slice.
	Release(ctx context.Context, lines []domain.StockLine, now time.Time) (skipped []string, err error)
	// SetStock overwrites the stock level of a single product.
	SetStock(ctx context.Context, productID string, stock int, now time.Time) (domain.Product, error)
}

// CartRepository persists carts keyed by owning user.
type CartRepository interface {
	// GetCart returns a RepositoryError with IsNotFound when no cart exists for the user.
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	// FindByItemID returns the cart holding itemID, whichever user owns it.
	FindByItemID(ctx context.Context, itemID string) (domain.Cart, error)
	// RemoveProduct drops lines referencing productID from every cart.
	RemoveProduct(ctx context.Context, productID string) (int, error)
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	UserID        string
	Status        []string
	ReturnStatus  []string
	HasReturn     bool
	ExcludeReturn []string
	Pagination    domain.Pagination
}

// OrderRepository persists orders together with their owned items.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
}

// HealthRepository reports dependency status for readiness checks.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.SystemHealthReport, error)
}
