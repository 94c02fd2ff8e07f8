package services

import (
	"errors"
	"fmt"

	"github.com/hanko-field/storefront/internal/repositories"
)

// Error kinds shared by every service. Service specific sentinels wrap one of these so
// callers can match either the precise cause or the broad kind with errors.Is.
var (
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("unauthorized")
	ErrInvalidTransition   = errors.New("invalid transition")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrEmptyCart           = errors.New("empty cart")
	ErrDuplicateRequest    = errors.New("duplicate request")
	ErrReturnWindowExpired = errors.New("return window expired")
	ErrMissingData         = errors.New("missing data")
	ErrValidation          = errors.New("validation error")
	ErrAlreadyConfirmed    = errors.New("already confirmed")
	ErrConflict            = errors.New("conflict")
	ErrUnavailable         = errors.New("unavailable")
)

type kindError struct {
	msg  string
	kind error
}

func (e *kindError) Error() string { return e.msg }
func (e *kindError) Unwrap() error { return e.kind }

func newKindError(msg string, kind error) error {
	return &kindError{msg: msg, kind: kind}
}

var (
	ErrInventoryInvalidInput      = newKindError("inventory: invalid input", ErrValidation)
	ErrInventoryInsufficientStock = newKindError("inventory: insufficient stock", ErrInsufficientStock)
	ErrInventoryProductNotFound   = newKindError("inventory: product not found", ErrNotFound)

	ErrCartInvalidInput    = newKindError("cart: invalid input", ErrValidation)
	ErrCartNotFound        = newKindError("cart: not found", ErrNotFound)
	ErrCartItemNotFound    = newKindError("cart: item not found", ErrNotFound)
	ErrCartProductNotFound = newKindError("cart: product not found", ErrNotFound)
	ErrCartUnauthorized    = newKindError("cart: item belongs to another cart", ErrUnauthorized)

	ErrCheckoutInvalidInput = newKindError("checkout: invalid input", ErrValidation)
	ErrCheckoutEmptyCart    = newKindError("checkout: cart is empty", ErrEmptyCart)

	ErrOrderInvalidInput        = newKindError("order: invalid input", ErrValidation)
	ErrOrderNotFound            = newKindError("order: not found", ErrNotFound)
	ErrOrderUnauthorized        = newKindError("order: requester does not own order", ErrUnauthorized)
	ErrOrderInvalidTransition   = newKindError("order: invalid transition", ErrInvalidTransition)
	ErrOrderAlreadyConfirmed    = newKindError("order: payment already confirmed", ErrAlreadyConfirmed)
	ErrOrderConflict            = newKindError("order: conflict", ErrConflict)
	ErrReturnAlreadyRequested   = newKindError("order: return already requested", ErrDuplicateRequest)
	ErrReturnWindowClosed       = newKindError("order: return window expired", ErrReturnWindowExpired)
	ErrOrderDeliveryDateMissing = newKindError("order: delivery date missing", ErrMissingData)

	ErrCatalogInvalidInput    = newKindError("catalog: invalid input", ErrValidation)
	ErrCatalogProductNotFound = newKindError("catalog: product not found", ErrNotFound)
	ErrCatalogConflict        = newKindError("catalog: product already exists", ErrConflict)
)

// mapRepositoryError translates repository failures into the service taxonomy using the
// supplied not-found sentinel.
func mapRepositoryError(err error, notFound error) error {
	if err == nil {
		return nil
	}

	var invErr *repositories.InventoryError
	if errors.As(err, &invErr) {
		switch invErr.Code {
		case repositories.InventoryErrorInsufficientStock:
			return fmt.Errorf("%w: %w", ErrInventoryInsufficientStock, err)
		case repositories.InventoryErrorProductNotFound:
			return fmt.Errorf("%w: %w", ErrInventoryProductNotFound, err)
		case repositories.InventoryErrorInvalidQuantity:
			return fmt.Errorf("%w: %w", ErrInventoryInvalidInput, err)
		}
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			if notFound == nil {
				notFound = ErrNotFound
			}
			return fmt.Errorf("%w: %w", notFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
	}
	return err
}
