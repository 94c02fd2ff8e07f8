package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
)

type cartItemRecord struct {
	ID        string    `json:"id"`
	ProductID string    `json:"productId"`
	Quantity  int       `json:"quantity"`
	AddedAt   time.Time `json:"addedAt"`
}

func encodeItems(items []domain.CartItem) ([]byte, error) {
	records := make([]cartItemRecord, 0, len(items))
	for _, item := range items {
		records = append(records, cartItemRecord{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			AddedAt:   item.AddedAt.UTC(),
		})
	}
	return json.Marshal(records)
}

func decodeItems(raw []byte) ([]domain.CartItem, error) {
	var records []cartItemRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, err
	}
	var items []domain.CartItem
	for _, record := range records {
		items = append(items, domain.CartItem{
			ID:        record.ID,
			ProductID: record.ProductID,
			Quantity:  record.Quantity,
			AddedAt:   record.AddedAt,
		})
	}
	return items, nil
}

const cartColumns = "id, user_id, items, created_at, updated_at"

func scanCart(row rowScanner) (domain.Cart, error) {
	var (
		cart domain.Cart
		raw  []byte
	)
	if err := row.Scan(&cart.ID, &cart.UserID, &raw, &cart.CreatedAt, &cart.UpdatedAt); err != nil {
		return domain.Cart{}, err
	}
	items, err := decodeItems(raw)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("decode cart items: %w", err)
	}
	cart.Items = items
	return cart, nil
}

type cartRepository struct{ r *Registry }

// GetCart locks the row inside a transaction: checkout and every cart mutation read, modify and
// write the cart within one transaction.
func (repo cartRepository) GetCart(ctx context.Context, userID string) (domain.Cart, error) {
	query := lockForTx(ctx, `SELECT `+cartColumns+` FROM carts WHERE user_id = $1`)
	row := repo.r.q(ctx).QueryRowContext(ctx, query, userID)
	cart, err := scanCart(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{}, notFound("carts.get", "cart for user %s not found", userID)
	}
	if err != nil {
		return domain.Cart{}, wrapError("carts.get", err)
	}
	return cart, nil
}

func (repo cartRepository) UpsertCart(ctx context.Context, cart domain.Cart) (domain.Cart, error) {
	items, err := encodeItems(cart.Items)
	if err != nil {
		return domain.Cart{}, fmt.Errorf("carts.upsert: encode items: %w", err)
	}
	_, err = repo.r.q(ctx).ExecContext(ctx,
		`INSERT INTO carts (user_id, id, items, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (user_id) DO UPDATE SET items = EXCLUDED.items, updated_at = EXCLUDED.updated_at`,
		cart.UserID, cart.ID, items, cart.CreatedAt.UTC(), cart.UpdatedAt.UTC())
	if err != nil {
		return domain.Cart{}, wrapError("carts.upsert", err)
	}
	return cart.Clone(), nil
}

func (repo cartRepository) FindByItemID(ctx context.Context, itemID string) (domain.Cart, error) {
	needle, _ := json.Marshal([]map[string]string{{"id": itemID}})
	row := repo.r.q(ctx).QueryRowContext(ctx,
		`SELECT `+cartColumns+` FROM carts WHERE items @> $1::jsonb LIMIT 1`, needle)
	cart, err := scanCart(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Cart{}, notFound("carts.find_by_item", "cart item %s not found", itemID)
	}
	if err != nil {
		return domain.Cart{}, wrapError("carts.find_by_item", err)
	}
	return cart, nil
}

// RemoveProduct strips the product's lines from every cart in one statement and reports how many
// lines were dropped.
func (repo cartRepository) RemoveProduct(ctx context.Context, productID string) (int, error) {
	needle, _ := json.Marshal([]map[string]string{{"productId": productID}})
	var removed sql.NullInt64
	err := repo.r.q(ctx).QueryRowContext(ctx,
		`WITH affected AS (
		     SELECT user_id, items FROM carts WHERE items @> $1::jsonb FOR UPDATE
		 ), rewritten AS (
		     UPDATE carts c
		        SET items = COALESCE((
		                SELECT jsonb_agg(elem) FROM jsonb_array_elements(a.items) elem
		                 WHERE elem->>'productId' <> $2
		            ), '[]'::jsonb)
		       FROM affected a
		      WHERE c.user_id = a.user_id
		  RETURNING jsonb_array_length(a.items) - jsonb_array_length(c.items) AS dropped
		 )
		 SELECT SUM(dropped) FROM rewritten`,
		needle, productID).Scan(&removed)
	if err != nil {
		return 0, wrapError("carts.remove_product", err)
	}
	return int(removed.Int64), nil
}
