// Package memory provides a process-local repository registry. Every operation runs under a
// single store lock and RunInTx rolls the whole store back when the callback fails.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories"
)

type txKey struct{}

// Error implements repositories.RepositoryError for the memory store.
type Error struct {
	op       string
	msg      string
	notFound bool
	conflict bool
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.op, e.msg)
}

func (e *Error) IsNotFound() bool    { return e.notFound }
func (e *Error) IsConflict() bool    { return e.conflict }
func (e *Error) IsUnavailable() bool { return false }

func notFound(op, format string, args ...any) error {
	return &Error{op: op, msg: fmt.Sprintf(format, args...), notFound: true}
}

func conflict(op, format string, args ...any) error {
	return &Error{op: op, msg: fmt.Sprintf(format, args...), conflict: true}
}

// Store keeps products, carts and orders in maps guarded by one mutex.
type Store struct {
	mu sync.Mutex

	products   map[string]domain.Product
	carts      map[string]domain.Cart
	orders     map[string]domain.Order
	orderIndex []string
}

var _ repositories.Registry = (*Store)(nil)

// NewStore constructs an empty store, optionally seeded with products.
func NewStore(seed ...domain.Product) *Store {
	s := &Store{
		products: make(map[string]domain.Product),
		carts:    make(map[string]domain.Cart),
		orders:   make(map[string]domain.Order),
	}
	for _, product := range seed {
		s.products[product.ID] = product
	}
	return s
}

type snapshot struct {
	products   map[string]domain.Product
	carts      map[string]domain.Cart
	orders     map[string]domain.Order
	orderIndex []string
}

func (s *Store) snapshot() snapshot {
	snap := snapshot{
		products:   make(map[string]domain.Product, len(s.products)),
		carts:      make(map[string]domain.Cart, len(s.carts)),
		orders:     make(map[string]domain.Order, len(s.orders)),
		orderIndex: append([]string(nil), s.orderIndex...),
	}
	for id, product := range s.products {
		snap.products[id] = product
	}
	for id, cart := range s.carts {
		snap.carts[id] = cart.Clone()
	}
	for id, order := range s.orders {
		snap.orders[id] = order.Clone()
	}
	return snap
}

func (s *Store) restore(snap snapshot) {
	s.products = snap.products
	s.carts = snap.carts
	s.orders = snap.orders
	s.orderIndex = snap.orderIndex
}

// lock acquires the store mutex unless ctx already runs inside this store's transaction.
func (s *Store) lock(ctx context.Context) func() {
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == s {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// RunInTx serialises fn against every other store operation and restores the previous state
// when fn returns an error or panics.
func (s *Store) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if owner, ok := ctx.Value(txKey{}).(*Store); ok && owner == s {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snap := s.snapshot()
	defer func() {
		if r := recover(); r != nil {
			s.restore(snap)
			panic(r)
		}
		if err != nil {
			s.restore(snap)
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, s))
}

// Close implements repositories.Registry.
func (s *Store) Close(context.Context) error { return nil }

func (s *Store) Products() repositories.ProductRepository     { return productRepository{s} }
func (s *Store) Inventory() repositories.InventoryRepository { return inventoryRepository{s} }
func (s *Store) Carts() repositories.CartRepository           { return cartRepository{s} }
func (s *Store) Orders() repositories.OrderRepository         { return orderRepository{s} }

// Health reports a single always-ok check.
func (s *Store) Health() repositories.HealthRepository {
	repo, _ := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{
		Name:  "memory",
		Check: func(context.Context) error { return nil },
	}}, time.Now)
	return repo
}
