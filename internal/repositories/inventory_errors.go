package repositories

import "fmt"

// InventoryErrorCode enumerates repository error causes for ledger operations.
type InventoryErrorCode string

const (
	// InventoryErrorUnknown represents an unspecified failure.
	InventoryErrorUnknown InventoryErrorCode = "inventory_unknown"
	// InventoryErrorInsufficientStock indicates requested quantity exceeds availability.
	InventoryErrorInsufficientStock InventoryErrorCode = "inventory_insufficient_stock"
	// InventoryErrorProductNotFound indicates the product has no stock record.
	InventoryErrorProductNotFound InventoryErrorCode = "inventory_product_not_found"
	// InventoryErrorInvalidQuantity indicates a non-positive or otherwise unusable quantity.
	InventoryErrorInvalidQuantity InventoryErrorCode = "inventory_invalid_quantity"
)

// InventoryError wraps ledger failures with machine readable codes.
type InventoryError struct {
	Op        string
	Code      InventoryErrorCode
	ProductID string
	Requested int
	Available int
	Message   string
	Err       error
}

// Error implements the error interface.
func (e *InventoryError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *InventoryError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewInventoryError constructs a typed inventory error.
func NewInventoryError(code InventoryErrorCode, message string, err error) *InventoryError {
	if message == "" {
		message = string(code)
	}
	return &InventoryError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// InsufficientStock builds the error returned when a reservation exceeds availability.
func InsufficientStock(op, productID string, requested, available int) *InventoryError {
	err := NewInventoryError(InventoryErrorInsufficientStock,
		fmt.Sprintf("product %s has %d in stock, %d requested", productID, available, requested), nil)
	err.Op = op
	err.ProductID = productID
	err.Requested = requested
	err.Available = available
	return err
}

// ProductNotFound builds the error returned when a ledger line references an unknown product.
func ProductNotFound(op, productID string) *InventoryError {
	err := NewInventoryError(InventoryErrorProductNotFound, fmt.Sprintf("product %s not found", productID), nil)
	err.Op = op
	err.ProductID = productID
	return err
}
