package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/textutil"
	"github.com/hanko-field/storefront/internal/repositories"
)

const (
	productIDPrefix = "prod_"

	maxProductNameLength        = 200
	maxProductDescriptionLength = 4000
	maxProductLabelLength       = 100
)

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Products    repositories.ProductRepository
	Carts       repositories.CartRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type catalogService struct {
	products   repositories.ProductRepository
	carts      repositories.CartRepository
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("catalog service: cart repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	uow := deps.UnitOfWork
	if uow == nil {
		uow = noopUnitOfWork{}
	}
	return &catalogService{
		products:   deps.Products,
		carts:      deps.Carts,
		unitOfWork: uow,
		clock:      func() time.Time { return clock().UTC() },
		newID:      idGen,
		logger:     logger,
	}, nil
}

func (s *catalogService) ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error) {
	page, err := s.products.List(ctx, repositories.ProductFilter{
		Category: strings.TrimSpace(filter.Category),
		Pagination: domain.Pagination{
			PageSize:  filter.Pagination.PageSize,
			PageToken: strings.TrimSpace(filter.Pagination.PageToken),
		},
	})
	if err != nil {
		return domain.CursorPage[Product]{}, mapRepositoryError(err, ErrCatalogProductNotFound)
	}
	return page, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return Product{}, mapRepositoryError(err, ErrCatalogProductNotFound)
	}
	return product, nil
}

// CreateProduct inserts a new catalog entry with its opening stock level.
func (s *catalogService) CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	product, err := normaliseProduct(cmd)
	if err != nil {
		return Product{}, err
	}
	if cmd.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock must not be negative", ErrCatalogInvalidInput)
	}
	if product.ID == "" {
		product.ID = ensureIDPrefix(productIDPrefix, s.newID())
	}
	now := s.clock()
	product.Stock = cmd.Stock
	product.CreatedAt = now
	product.UpdatedAt = now

	if err := s.products.Insert(ctx, product); err != nil {
		mapped := mapRepositoryError(err, ErrCatalogProductNotFound)
		if errors.Is(mapped, ErrConflict) {
			return Product{}, fmt.Errorf("%w: %s", ErrCatalogConflict, product.ID)
		}
		return Product{}, mapped
	}

	s.logger(ctx, "catalog.product.created", map[string]any{"product": product.ID, "stock": product.Stock})
	return product, nil
}

// UpdateProduct replaces the descriptive fields of a product. Stock is left untouched and must be
// changed through the inventory service.
func (s *catalogService) UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error) {
	product, err := normaliseProduct(cmd)
	if err != nil {
		return Product{}, err
	}
	if product.ID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	var saved Product
	err = s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		existing, err := s.products.FindByID(txCtx, product.ID)
		if err != nil {
			return mapRepositoryError(err, ErrCatalogProductNotFound)
		}
		product.Stock = existing.Stock
		product.CreatedAt = existing.CreatedAt
		product.UpdatedAt = s.clock()
		if err := s.products.Update(txCtx, product); err != nil {
			return mapRepositoryError(err, ErrCatalogProductNotFound)
		}
		saved = product
		return nil
	})
	if err != nil {
		return Product{}, err
	}

	s.logger(ctx, "catalog.product.updated", map[string]any{"product": saved.ID})
	return saved, nil
}

// DeleteProduct removes the product and every cart line that references it. Orders keep their
// snapshots.
func (s *catalogService) DeleteProduct(ctx context.Context, productID string) error {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return fmt.Errorf("%w: product id is required", ErrCatalogInvalidInput)
	}

	var removed int
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.products.FindByID(txCtx, productID); err != nil {
			return mapRepositoryError(err, ErrCatalogProductNotFound)
		}
		count, err := s.carts.RemoveProduct(txCtx, productID)
		if err != nil {
			return mapRepositoryError(err, ErrCartNotFound)
		}
		removed = count
		if err := s.products.Delete(txCtx, productID); err != nil {
			return mapRepositoryError(err, ErrCatalogProductNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger(ctx, "catalog.product.deleted", map[string]any{"product": productID, "cartLines": removed})
	return nil
}

func normaliseProduct(cmd UpsertProductCommand) (Product, error) {
	product := Product{
		ID:          strings.TrimSpace(cmd.ID),
		Name:        textutil.PlainText(cmd.Name, maxProductNameLength),
		Description: textutil.PlainText(cmd.Description, maxProductDescriptionLength),
		Category:    textutil.PlainText(cmd.Category, maxProductLabelLength),
		Brand:       textutil.PlainText(cmd.Brand, maxProductLabelLength),
		Price:       cmd.Price,
		Image:       strings.TrimSpace(cmd.Image),
	}
	if product.Name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrCatalogInvalidInput)
	}
	if product.Category == "" {
		return Product{}, fmt.Errorf("%w: category is required", ErrCatalogInvalidInput)
	}
	if product.Price < 0 {
		return Product{}, fmt.Errorf("%w: price must not be negative", ErrCatalogInvalidInput)
	}
	if product.Image != "" {
		parsed, err := url.Parse(product.Image)
		if err != nil || (parsed.Scheme != "https" && parsed.Scheme != "http") || parsed.Host == "" {
			return Product{}, fmt.Errorf("%w: image must be an absolute http(s) url", ErrCatalogInvalidInput)
		}
	}
	return product, nil
}
