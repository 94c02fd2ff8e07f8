package services

import (
	"context"
	"time"

	"github.com/hanko-field/storefront/internal/repositories"
)

// Order event types published after a lifecycle transition commits.
const (
	OrderEventPlaced           = "order.placed"
	OrderEventPaymentConfirmed = "order.payment_confirmed"
	OrderEventStatusChanged    = "order.status_changed"
	OrderEventCancelled        = "order.cancelled"
	OrderEventReturnChanged    = "order.return_changed"
	OrderEventRefundInitiated  = "order.refund_initiated"

	InventoryEventReserved = "inventory.reserved"
	InventoryEventReleased = "inventory.released"
	InventoryEventSet      = "inventory.stock_set"
)

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	UserID         string
	PreviousStatus string
	CurrentStatus  string
	ReturnStatus   string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// InventoryEvent captures a stock movement.
type InventoryEvent struct {
	Type       string
	Lines      []StockLine
	OccurredAt time.Time
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

var _ repositories.UnitOfWork = noopUnitOfWork{}

func noopLogger(context.Context, string, map[string]any) {}
