package firestore

import (
	"context"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/repositories"
)

type inventoryRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.Collection[productDocument]
}

// Reserve reads every product before writing any of them, which keeps the ledger all-or-nothing
// and satisfies Firestore's reads-before-writes rule.
func (r inventoryRepository) Reserve(ctx context.Context, lines []domain.StockLine, now time.Time) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(lines))
	err := r.provider.RunInTx(ctx, func(ctx context.Context) error {
		demand := make(map[string]int, len(lines))
		ids := make([]string, 0, len(lines))
		for _, line := range lines {
			if _, seen := demand[line.ProductID]; !seen {
				ids = append(ids, line.ProductID)
			}
			demand[line.ProductID] += line.Quantity
		}

		docs, err := r.products.GetAll(ctx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			doc, ok := docs[id]
			if !ok {
				return repositories.ProductNotFound("inventory.reserve", id)
			}
			if want := demand[id]; want > doc.Stock {
				return repositories.InsufficientStock("inventory.reserve", id, want, doc.Stock)
			}
		}

		for _, id := range ids {
			doc := docs[id]
			doc.Stock -= demand[id]
			doc.UpdatedAt = now.UTC()
			if err := r.products.Set(ctx, id, doc); err != nil {
				return err
			}
			out[id] = doc.toDomain(id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r inventoryRepository) Release(ctx context.Context, lines []domain.StockLine, now time.Time) ([]string, error) {
	var skipped []string
	err := r.provider.RunInTx(ctx, func(ctx context.Context) error {
		skipped = nil
		supply := make(map[string]int, len(lines))
		ids := make([]string, 0, len(lines))
		for _, line := range lines {
			if _, seen := supply[line.ProductID]; !seen {
				ids = append(ids, line.ProductID)
			}
			supply[line.ProductID] += line.Quantity
		}

		docs, err := r.products.GetAll(ctx, ids)
		if err != nil {
			return err
		}
		for _, id := range ids {
			doc, ok := docs[id]
			if !ok {
				skipped = append(skipped, id)
				continue
			}
			doc.Stock += supply[id]
			doc.UpdatedAt = now.UTC()
			if err := r.products.Set(ctx, id, doc); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return skipped, nil
}

func (r inventoryRepository) SetStock(ctx context.Context, productID string, stock int, now time.Time) (domain.Product, error) {
	var product domain.Product
	err := r.provider.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := r.products.Get(ctx, productID)
		if err != nil {
			var repoErr repositories.RepositoryError
			if asRepositoryError(err, &repoErr) && repoErr.IsNotFound() {
				return repositories.ProductNotFound("inventory.set_stock", productID)
			}
			return err
		}
		doc.Stock = stock
		doc.UpdatedAt = now.UTC()
		if err := r.products.Set(ctx, productID, doc); err != nil {
			return err
		}
		product = doc.toDomain(productID)
		return nil
	})
	return product, err
}
