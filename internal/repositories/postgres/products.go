package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/pagination"
	"github.com/hanko-field/storefront/internal/platform/textutil"
	"github.com/hanko-field/storefront/internal/repositories"
)

const productColumns = "id, name, description, category, brand, price, stock, image, created_at, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Description, &p.Category, &p.Brand, &p.Price, &p.Stock, &p.Image, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

type productRepository struct{ r *Registry }

func (repo productRepository) Insert(ctx context.Context, p domain.Product) error {
	_, err := repo.r.q(ctx).ExecContext(ctx,
		`INSERT INTO products (id, name, description, category, category_key, brand, price, stock, image, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.Name, p.Description, p.Category, textutil.Fold(p.Category), p.Brand, p.Price, p.Stock, p.Image,
		p.CreatedAt.UTC(), p.UpdatedAt.UTC())
	return wrapError("products.insert", err)
}

// Update never touches stock or created_at; those belong to the ledger and the first insert.
func (repo productRepository) Update(ctx context.Context, p domain.Product) error {
	res, err := repo.r.q(ctx).ExecContext(ctx,
		`UPDATE products SET name = $2, description = $3, category = $4, category_key = $5, brand = $6,
		        price = $7, image = $8, updated_at = $9
		  WHERE id = $1`,
		p.ID, p.Name, p.Description, p.Category, textutil.Fold(p.Category), p.Brand, p.Price, p.Image, p.UpdatedAt.UTC())
	if err != nil {
		return wrapError("products.update", err)
	}
	return requireRow(res, "products.update", "product %s not found", p.ID)
}

func (repo productRepository) Delete(ctx context.Context, productID string) error {
	res, err := repo.r.q(ctx).ExecContext(ctx, `DELETE FROM products WHERE id = $1`, productID)
	if err != nil {
		return wrapError("products.delete", err)
	}
	return requireRow(res, "products.delete", "product %s not found", productID)
}

func (repo productRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	row := repo.r.q(ctx).QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID)
	p, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, notFound("products.find", "product %s not found", productID)
	}
	if err != nil {
		return domain.Product{}, wrapError("products.find", err)
	}
	return p, nil
}

func (repo productRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	out := make(map[string]domain.Product, len(productIDs))
	if len(productIDs) == 0 {
		return out, nil
	}
	rows, err := repo.r.q(ctx).QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1)`, pq.Array(productIDs))
	if err != nil {
		return nil, wrapError("products.find_many", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, wrapError("products.find_many", err)
		}
		out[p.ID] = p
	}
	return out, wrapError("products.find_many", rows.Err())
}

func (repo productRepository) List(ctx context.Context, filter repositories.ProductFilter) (domain.CursorPage[domain.Product], error) {
	offset, err := pagination.DecodeOffset(filter.Pagination.PageToken)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, err
	}
	size := pageSize(filter.Pagination)

	var (
		where []string
		args  []any
	)
	if filter.Category != "" {
		args = append(args, textutil.Fold(filter.Category))
		where = append(where, fmt.Sprintf("category_key = $%d", len(args)))
	}
	if filter.StockBelow != nil {
		args = append(args, *filter.StockBelow)
		where = append(where, fmt.Sprintf("stock < $%d", len(args)))
	}

	query := `SELECT ` + productColumns + ` FROM products`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, size+1, offset)
	query += fmt.Sprintf(" ORDER BY id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := repo.r.q(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return domain.CursorPage[domain.Product]{}, wrapError("products.list", err)
	}
	defer rows.Close()

	items := make([]domain.Product, 0, size)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return domain.CursorPage[domain.Product]{}, wrapError("products.list", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return domain.CursorPage[domain.Product]{}, wrapError("products.list", err)
	}
	return page(items, offset, size), nil
}

func pageSize(pager domain.Pagination) int {
	if pager.PageSize <= 0 {
		return pagination.DefaultPageSize
	}
	return pager.PageSize
}

// page trims the look-ahead row fetched with LIMIT size+1 and sets the next token.
func page[T any](items []T, offset, size int) domain.CursorPage[T] {
	out := domain.CursorPage[T]{Items: items}
	if len(items) > size {
		out.Items = items[:size]
		out.NextPageToken = pagination.EncodeOffset(offset + size)
	}
	return out
}

func requireRow(res sql.Result, op, format string, args ...any) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapError(op, err)
	}
	if n == 0 {
		return notFound(op, format, args...)
	}
	return nil
}
