package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/repositories"
)

const (
	cartIDPrefix     = "cart_"
	cartItemIDPrefix = "citem_"

	maxCartLineQuantity = 999
)

var (
	errCartRepositoryRequired   = errors.New("cart service: repository is required")
	errCartProductsRepoRequired = errors.New("cart service: product repository is required")
)

// CartServiceDeps wires the repositories needed by cart operations.
type CartServiceDeps struct {
	Carts       repositories.CartRepository
	Products    repositories.ProductRepository
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type cartService struct {
	carts      repositories.CartRepository
	products   repositories.ProductRepository
	unitOfWork repositories.UnitOfWork
	now        func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil {
		return nil, errCartRepositoryRequired
	}
	if deps.Products == nil {
		return nil, errCartProductsRepoRequired
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

	return &cartService{
		carts:      deps.Carts,
		products:   deps.Products,
		unitOfWork: uow,
		now:        func() time.Time { return clock().UTC() },
		newID:      idGen,
		logger:     logger,
	}, nil
}

// GetCart returns the user's cart, creating an empty one on first access.
func (s *cartService) GetCart(ctx context.Context, userID string) (CartView, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return CartView{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}

	var cart Cart
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		loaded, err := s.loadOrCreate(txCtx, userID, true)
		if err != nil {
			return err
		}
		cart = loaded
		return nil
	})
	if err != nil {
		return CartView{}, err
	}
	return s.hydrate(ctx, cart)
}

// AddItem merges quantity into an existing line for the product or appends a new line.
// Stock is not checked here; availability is only enforced at checkout.
func (s *cartService) AddItem(ctx context.Context, cmd AddCartItemCommand) (CartView, error) {
	userID := strings.TrimSpace(cmd.UserID)
	productID := strings.TrimSpace(cmd.ProductID)
	if userID == "" {
		return CartView{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if productID == "" {
		return CartView{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
	}
	if err := validateCartQuantity(cmd.Quantity); err != nil {
		return CartView{}, err
	}

	var cart Cart
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if _, err := s.products.FindByID(txCtx, productID); err != nil {
			return mapRepositoryError(err, ErrCartProductNotFound)
		}
		loaded, err := s.loadOrCreate(txCtx, userID, false)
		if err != nil {
			return err
		}
		updated, err := s.mergeLine(loaded, productID, cmd.Quantity)
		if err != nil {
			return err
		}
		saved, err := s.save(txCtx, updated)
		if err != nil {
			return err
		}
		cart = saved
		return nil
	})
	if err != nil {
		return CartView{}, err
	}

	s.logger(ctx, "cart.item.added", map[string]any{
		"user":     userID,
		"product":  productID,
		"quantity": cmd.Quantity,
	})
	return s.hydrate(ctx, cart)
}

// SetQuantity replaces the quantity of an item. A zero quantity removes the line.
func (s *cartService) SetQuantity(ctx context.Context, cmd SetCartItemQuantityCommand) (CartView, error) {
	if cmd.Quantity == 0 {
		return s.RemoveItem(ctx, RemoveCartItemCommand{UserID: cmd.UserID, ItemID: cmd.ItemID})
	}
	if err := validateCartQuantity(cmd.Quantity); err != nil {
		return CartView{}, err
	}

	cart, err := s.mutateItem(ctx, cmd.UserID, cmd.ItemID, func(cart *Cart, idx int) {
		cart.Items[idx].Quantity = cmd.Quantity
	})
	if err != nil {
		return CartView{}, err
	}
	return s.hydrate(ctx, cart)
}

func (s *cartService) RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (CartView, error) {
	cart, err := s.mutateItem(ctx, cmd.UserID, cmd.ItemID, func(cart *Cart, idx int) {
		cart.Items = append(cart.Items[:idx], cart.Items[idx+1:]...)
	})
	if err != nil {
		return CartView{}, err
	}
	return s.hydrate(ctx, cart)
}

// Merge adds every guest cart line to the user's cart as if AddItem had been called for each.
func (s *cartService) Merge(ctx context.Context, cmd MergeCartCommand) (CartView, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return CartView{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	for _, line := range cmd.Items {
		if strings.TrimSpace(line.ProductID) == "" {
			return CartView{}, fmt.Errorf("%w: product id is required", ErrCartInvalidInput)
		}
		if err := validateCartQuantity(line.Quantity); err != nil {
			return CartView{}, err
		}
	}

	var cart Cart
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		ids := make([]string, 0, len(cmd.Items))
		for _, line := range cmd.Items {
			ids = append(ids, strings.TrimSpace(line.ProductID))
		}
		found, err := s.products.FindByIDs(txCtx, ids)
		if err != nil {
			return mapRepositoryError(err, ErrCartProductNotFound)
		}
		for _, id := range ids {
			if _, ok := found[id]; !ok {
				return fmt.Errorf("%w: %s", ErrCartProductNotFound, id)
			}
		}

		loaded, err := s.loadOrCreate(txCtx, userID, false)
		if err != nil {
			return err
		}
		for _, line := range cmd.Items {
			loaded, err = s.mergeLine(loaded, strings.TrimSpace(line.ProductID), line.Quantity)
			if err != nil {
				return err
			}
		}
		saved, err := s.save(txCtx, loaded)
		if err != nil {
			return err
		}
		cart = saved
		return nil
	})
	if err != nil {
		return CartView{}, err
	}

	s.logger(ctx, "cart.merged", map[string]any{"user": userID, "lines": len(cmd.Items)})
	return s.hydrate(ctx, cart)
}

func (s *cartService) Clear(ctx context.Context, userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	return s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		cart, err := s.carts.GetCart(txCtx, userID)
		if err != nil {
			mapped := mapRepositoryError(err, ErrCartNotFound)
			if errors.Is(mapped, ErrCartNotFound) {
				return nil
			}
			return mapped
		}
		if len(cart.Items) == 0 {
			return nil
		}
		cart.Items = nil
		_, err = s.save(txCtx, cart)
		return err
	})
}

// mutateItem loads the caller's cart, locates itemID and applies fn. Items held in another
// user's cart fail with ErrCartUnauthorized rather than not found.
func (s *cartService) mutateItem(ctx context.Context, userID, itemID string, fn func(cart *Cart, idx int)) (Cart, error) {
	userID = strings.TrimSpace(userID)
	itemID = strings.TrimSpace(itemID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	if itemID == "" {
		return Cart{}, fmt.Errorf("%w: item id is required", ErrCartInvalidInput)
	}

	var result Cart
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		cart, err := s.loadOrCreate(txCtx, userID, false)
		if err != nil {
			return err
		}
		idx := indexOfCartItem(cart.Items, itemID)
		if idx < 0 {
			return s.missingItemError(txCtx, userID, itemID)
		}
		fn(&cart, idx)
		saved, err := s.save(txCtx, cart)
		if err != nil {
			return err
		}
		result = saved
		return nil
	})
	return result, err
}

func (s *cartService) missingItemError(ctx context.Context, userID, itemID string) error {
	owner, err := s.carts.FindByItemID(ctx, itemID)
	if err == nil && owner.UserID != userID {
		return fmt.Errorf("%w: item %s", ErrCartUnauthorized, itemID)
	}
	return fmt.Errorf("%w: %s", ErrCartItemNotFound, itemID)
}

// loadOrCreate returns the user's cart or a fresh one. New carts are only written when persist
// is set; mutating callers save the cart once at the end of their transaction.
func (s *cartService) loadOrCreate(ctx context.Context, userID string, persist bool) (Cart, error) {
	cart, err := s.carts.GetCart(ctx, userID)
	if err == nil {
		return cart, nil
	}
	mapped := mapRepositoryError(err, ErrCartNotFound)
	if !errors.Is(mapped, ErrCartNotFound) {
		return Cart{}, mapped
	}

	now := s.now()
	created := Cart{
		ID:        cartIDPrefix + s.newID(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !persist {
		return created, nil
	}
	saved, err := s.carts.UpsertCart(ctx, created)
	if err != nil {
		return Cart{}, mapRepositoryError(err, ErrCartNotFound)
	}
	s.logger(ctx, "cart.created", map[string]any{"user": userID, "cart": saved.ID})
	return saved, nil
}

func (s *cartService) mergeLine(cart Cart, productID string, qty int) (Cart, error) {
	for i := range cart.Items {
		if cart.Items[i].ProductID == productID {
			total := cart.Items[i].Quantity + qty
			if err := validateCartQuantity(total); err != nil {
				return Cart{}, err
			}
			cart.Items[i].Quantity = total
			return cart, nil
		}
	}
	cart.Items = append(cart.Items, CartItem{
		ID:        cartItemIDPrefix + s.newID(),
		ProductID: productID,
		Quantity:  qty,
		AddedAt:   s.now(),
	})
	return cart, nil
}

func (s *cartService) save(ctx context.Context, cart Cart) (Cart, error) {
	cart.UpdatedAt = s.now()
	saved, err := s.carts.UpsertCart(ctx, cart)
	if err != nil {
		return Cart{}, mapRepositoryError(err, ErrCartNotFound)
	}
	return saved, nil
}

// hydrate joins cart items with the current catalog entries.
func (s *cartService) hydrate(ctx context.Context, cart Cart) (CartView, error) {
	view := CartView{Cart: cart, Lines: make([]CartLine, 0, len(cart.Items))}
	if len(cart.Items) == 0 {
		return view, nil
	}

	ids := make([]string, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.products.FindByIDs(ctx, ids)
	if err != nil {
		return CartView{}, mapRepositoryError(err, ErrCartProductNotFound)
	}

	for _, item := range cart.Items {
		line := CartLine{ItemID: item.ID, ProductID: item.ProductID, Quantity: item.Quantity}
		if product, ok := products[item.ProductID]; ok {
			line.Name = product.Name
			line.Description = product.Description
			line.Category = product.Category
			line.Brand = product.Brand
			line.Price = product.Price
			line.Image = product.Image
			line.Available = product.Stock >= item.Quantity
		}
		view.Lines = append(view.Lines, line)
	}
	return view, nil
}

func validateCartQuantity(qty int) error {
	if qty < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrCartInvalidInput)
	}
	if qty > maxCartLineQuantity {
		return fmt.Errorf("%w: quantity must not exceed %d", ErrCartInvalidInput, maxCartLineQuantity)
	}
	return nil
}

func indexOfCartItem(items []domain.CartItem, itemID string) int {
	for i, item := range items {
		if item.ID == itemID {
			return i
		}
	}
	return -1
}
