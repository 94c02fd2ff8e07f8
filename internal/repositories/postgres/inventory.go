package postgres

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories"
)

type inventoryRepository struct{ r *Registry }

// aggregate folds duplicate lines and orders them by product id so concurrent reservations lock
// rows in the same order.
func aggregate(lines []domain.StockLine) []domain.StockLine {
	totals := make(map[string]int, len(lines))
	for _, line := range lines {
		totals[line.ProductID] += line.Quantity
	}
	out := make([]domain.StockLine, 0, len(totals))
	for id, qty := range totals {
		out = append(out, domain.StockLine{ProductID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out
}

// Reserve uses a guarded decrement per line. A line that cannot be satisfied rolls back every
// earlier decrement through the surrounding savepoint.
func (repo inventoryRepository) Reserve(ctx context.Context, lines []domain.StockLine, now time.Time) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(lines))
	err := repo.r.atomically(ctx, func(ctx context.Context) error {
		q := repo.r.q(ctx)
		for _, line := range aggregate(lines) {
			row := q.QueryRowContext(ctx,
				`UPDATE products SET stock = stock - $2, updated_at = $3
				  WHERE id = $1 AND stock >= $2
				  RETURNING `+productColumns,
				line.ProductID, line.Quantity, now.UTC())
			p, err := scanProduct(row)
			if errors.Is(err, sql.ErrNoRows) {
				return repo.reserveFailure(ctx, line)
			}
			if err != nil {
				return wrapError("inventory.reserve", err)
			}
			out[p.ID] = p
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (repo inventoryRepository) reserveFailure(ctx context.Context, line domain.StockLine) error {
	var available int
	err := repo.r.q(ctx).QueryRowContext(ctx, `SELECT stock FROM products WHERE id = $1`, line.ProductID).Scan(&available)
	if errors.Is(err, sql.ErrNoRows) {
		return repositories.ProductNotFound("inventory.reserve", line.ProductID)
	}
	if err != nil {
		return wrapError("inventory.reserve", err)
	}
	return repositories.InsufficientStock("inventory.reserve", line.ProductID, line.Quantity, available)
}

func (repo inventoryRepository) Release(ctx context.Context, lines []domain.StockLine, now time.Time) ([]string, error) {
	var skipped []string
	err := repo.r.atomically(ctx, func(ctx context.Context) error {
		skipped = nil
		q := repo.r.q(ctx)
		for _, line := range aggregate(lines) {
			res, err := q.ExecContext(ctx,
				`UPDATE products SET stock = stock + $2, updated_at = $3 WHERE id = $1`,
				line.ProductID, line.Quantity, now.UTC())
			if err != nil {
				return wrapError("inventory.release", err)
			}
			if n, err := res.RowsAffected(); err != nil {
				return wrapError("inventory.release", err)
			} else if n == 0 {
				skipped = append(skipped, line.ProductID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return skipped, nil
}

func (repo inventoryRepository) SetStock(ctx context.Context, productID string, stock int, now time.Time) (domain.Product, error) {
	row := repo.r.q(ctx).QueryRowContext(ctx,
		`UPDATE products SET stock = $2, updated_at = $3 WHERE id = $1 RETURNING `+productColumns,
		productID, stock, now.UTC())
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, repositories.ProductNotFound("inventory.set_stock", productID)
	}
	if err != nil {
		return domain.Product{}, wrapError("inventory.set_stock", err)
	}
	return p, nil
}
