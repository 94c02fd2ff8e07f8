package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/hanko-field/storefront/internal/repositories"
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

type txState struct {
	tx        *sql.Tx
	savepoint atomic.Int64
}

// Registry exposes PostgreSQL backed repositories sharing a single pool.
type Registry struct {
	db     *sql.DB
	health repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// NewRegistry wires the repositories onto db.
func NewRegistry(db *sql.DB) (*Registry, error) {
	if db == nil {
		return nil, errors.New("postgres registry: db is required")
	}
	health, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{{
		Name:    "postgres",
		Timeout: 2 * time.Second,
		Check:   db.PingContext,
	}}, time.Now)
	if err != nil {
		return nil, err
	}
	return &Registry{db: db, health: health}, nil
}

func (r *Registry) Close(context.Context) error { return r.db.Close() }

// RunInTx runs fn in a transaction. Nested calls join the outer transaction.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(txKey{}).(*txState); ok {
		return fn(ctx)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("postgres.begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		if commitErr := tx.Commit(); commitErr != nil {
			err = wrapError("postgres.commit", commitErr)
		}
	}()
	return fn(context.WithValue(ctx, txKey{}, &txState{tx: tx}))
}

func (r *Registry) Products() repositories.ProductRepository     { return productRepository{r} }
func (r *Registry) Inventory() repositories.InventoryRepository { return inventoryRepository{r} }
func (r *Registry) Carts() repositories.CartRepository           { return cartRepository{r} }
func (r *Registry) Orders() repositories.OrderRepository         { return orderRepository{r} }
func (r *Registry) Health() repositories.HealthRepository        { return r.health }

func (r *Registry) q(ctx context.Context) querier {
	if state, ok := ctx.Value(txKey{}).(*txState); ok {
		return state.tx
	}
	return r.db
}

// lockForTx appends FOR UPDATE when ctx carries a transaction, so read-modify-write sequences on
// the row serialise with concurrent transactions.
func lockForTx(ctx context.Context, query string) string {
	if _, inTx := ctx.Value(txKey{}).(*txState); inTx {
		return query + ` FOR UPDATE`
	}
	return query
}

// atomically runs fn so that a failure undoes only fn's writes. Inside an outer transaction it
// uses a savepoint; otherwise it opens its own transaction.
func (r *Registry) atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	state, ok := ctx.Value(txKey{}).(*txState)
	if !ok {
		return r.RunInTx(ctx, fn)
	}
	name := fmt.Sprintf("sp_%d", state.savepoint.Add(1))
	if _, err := state.tx.ExecContext(ctx, "SAVEPOINT "+name); err != nil {
		return wrapError("postgres.savepoint", err)
	}
	if err := fn(ctx); err != nil {
		if _, rbErr := state.tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); rbErr != nil {
			return errors.Join(err, wrapError("postgres.rollback_savepoint", rbErr))
		}
		return err
	}
	if _, err := state.tx.ExecContext(ctx, "RELEASE SAVEPOINT "+name); err != nil {
		return wrapError("postgres.release_savepoint", err)
	}
	return nil
}
