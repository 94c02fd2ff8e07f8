package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/storefront/internal/domain"
	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/repositories"
)

// Carts are keyed by user id. itemIds and productIds mirror the items so that item ownership and
// product removal can be answered with array-contains queries.
type cartDocument struct {
	ID         string             `firestore:"id"`
	UserID     string             `firestore:"userId"`
	Items      []cartItemDocument `firestore:"items"`
	ItemIDs    []string           `firestore:"itemIds"`
	ProductIDs []string           `firestore:"productIds"`
	CreatedAt  time.Time          `firestore:"createdAt"`
	UpdatedAt  time.Time          `firestore:"updatedAt"`
}

type cartItemDocument struct {
	ID        string    `firestore:"id"`
	ProductID string    `firestore:"productId"`
	Quantity  int       `firestore:"quantity"`
	AddedAt   time.Time `firestore:"addedAt"`
}

func newCartDocument(cart domain.Cart) cartDocument {
	doc := cartDocument{
		ID:         cart.ID,
		UserID:     cart.UserID,
		Items:      make([]cartItemDocument, 0, len(cart.Items)),
		ItemIDs:    make([]string, 0, len(cart.Items)),
		ProductIDs: make([]string, 0, len(cart.Items)),
		CreatedAt:  cart.CreatedAt.UTC(),
		UpdatedAt:  cart.UpdatedAt.UTC(),
	}
	for _, item := range cart.Items {
		doc.Items = append(doc.Items, cartItemDocument{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt.UTC(),
		})
		doc.ItemIDs = append(doc.ItemIDs, item.ID)
		doc.ProductIDs = append(doc.ProductIDs, item.ProductID)
	}
	return doc
}

func (d cartDocument) toDomain() domain.Cart {
	cart := domain.Cart{
		ID:        d.ID,
		UserID:    d.UserID,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, item := range d.Items {
		cart.Items = append(cart.Items, domain.CartItem{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt,
		})
	}
	return cart
}

type cartRepository struct {
	carts *pfirestore.Collection[cartDocument]
}

func (r cartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	doc, err := r.carts.Get(ctx, userID)
	if err != nil {
		return domain.Cart{}, err
	}
	return doc.toDomain(), nil
}

func (r cartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	doc := newCartDocument(cart)
	if err := r.carts.Set(ctx, cart.UserID, doc); err != nil {
		return domain.Cart{}, err
	}
	return doc.toDomain(), nil
}

func (r cartRepository) FindByItemID(ctx context.Context, itemID string) (domain.Cart, error) {
	docs, err := r.carts.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("itemIds", "array-contains", itemID).Limit(1)
	})
	if err != nil {
		return domain.Cart{}, err
	}
	if len(docs) == 0 {
		return domain.Cart{}, pfirestore.NotFound("carts.find_by_item", "cart item %s not found", itemID)
	}
	return docs[0].Data.toDomain(), nil
}

func (r cartRepository) RemoveProduct(ctx context.Context, productID string) (int, error) {
	removed := 0
	err := r.carts.Provider().RunInTx(ctx, func(ctx context.Context) error {
		removed = 0
		docs, err := r.carts.Query(ctx, func(q firestore.Query) firestore.Query {
			return q.Where("productIds", "array-contains", productID)
		})
		if err != nil {
			return err
		}
		for _, doc := range docs {
			cart := doc.Data.toDomain()
			kept := cart.Items[:0:0]
			for _, item := range cart.Items {
				if item.ProductID == productID {
					removed++
					continue
				}
				kept = append(kept, item)
			}
			cart.Items = kept
			if err := r.carts.Set(ctx, doc.ID, newCartDocument(cart)); err != nil {
				return err
			}
		}
		return nil
	})
	return removed, err
}

func asRepositoryError(err error, target *repositories.RepositoryError) bool {
	return errors.As(err, target)
}
