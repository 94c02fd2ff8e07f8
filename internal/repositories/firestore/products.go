package firestore

import (
	"context"
	"sort"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/storefront/internal/domain"
	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/platform/pagination"
	"github.com/hanko-field/storefront/internal/platform/textutil"
	"github.com/hanko-field/storefront/internal/repositories"
)

type productDocument struct {
	Name        string    `firestore:"name"`
	Description string    `firestore:"description"`
	Category    string    `firestore:"category"`
	CategoryKey string    `firestore:"categoryKey"`
	Brand       string    `firestore:"brand"`
	Price       int64     `firestore:"price"`
	Stock       int       `firestore:"stock"`
	Image       string    `firestore:"image,omitempty"`
	CreatedAt   time.Time `firestore:"createdAt"`
	UpdatedAt   time.Time `firestore:"updatedAt"`
}

func newProductDocument(p domain.Product) productDocument {
	return productDocument{
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		CategoryKey: textutil.Fold(p.Category),
		Brand:       p.Brand,
		Price:       p.Price,
		Stock:       p.Stock,
		Image:       p.Image,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
	}
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:          id,
		Name:        d.Name,
		Description: d.Description,
		Category:    d.Category,
		Brand:       d.Brand,
		Price:       d.Price,
		Stock:       d.Stock,
		Image:       d.Image,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

type productRepository struct {
	products *pfirestore.Collection[productDocument]
}

func (r productRepository) Insert(ctx context.Context, product domain.Product) error {
	return r.products.Create(ctx, product.ID, newProductDocument(product))
}

// Update rewrites catalog fields. Stock and creation time are carried over from the stored
// document inside a transaction so a concurrent reservation is never overwritten.
func (r productRepository) Update(ctx context.Context, product domain.Product) error {
	return r.inTx(ctx, func(ctx context.Context) error {
		current, err := r.products.Get(ctx, product.ID)
		if err != nil {
			return err
		}
		doc := newProductDocument(product)
		doc.Stock = current.Stock
		doc.CreatedAt = current.CreatedAt
		return r.products.Set(ctx, product.ID, doc)
	})
}

func (r productRepository) Delete(ctx context.Context, productID string) error {
	return r.inTx(ctx, func(ctx context.Context) error {
		if _, err := r.products.Get(ctx, productID); err != nil {
			return err
		}
		return r.products.Delete(ctx, productID)
	})
}

func (r productRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.toDomain(productID), nil
}

func (r productRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	docs, err := r.products.GetAll(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	out := make(map[string]domain.Product, len(docs))
	for id, doc := range docs {
		out[id] = doc.toDomain(id)
	}
	return out, nil
}

// List filters by category on the server; the stock threshold is applied in process so no
// composite index is needed.
func (r productRepository) List(ctx context.Context, filter repositories.ProductFilter) (domain.CursorPage[domain.Product], error) {
	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		if filter.Category != "" {
			q = q.Where("categoryKey", "==", textutil.Fold(filter.Category))
		}
		return q
	})
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}

	items := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		if filter.StockBelow != nil && doc.Data.Stock >= *filter.StockBelow {
			continue
		}
		items = append(items, doc.Data.toDomain(doc.ID))
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return pagination.Slice(items, filter.Pagination)
}

func (r productRepository) inTx(ctx context.Context, fn func(context.Context) error) error {
	return r.products.Provider().RunInTx(ctx, fn)
}
