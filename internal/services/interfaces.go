package services

import (
	"context"

	domain "github.com/hanko-field/storefront/internal/domain"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Pagination      = domain.Pagination
	Product         = domain.Product
	StockLine       = domain.StockLine
	Cart            = domain.Cart
	CartItem        = domain.CartItem
	CartLine        = domain.CartLine
	CartView        = domain.CartView
	Order           = domain.Order
	OrderItem       = domain.OrderItem
	OrderStatus     = domain.OrderStatus
	PaymentStatus   = domain.PaymentStatus
	ReturnStatus    = domain.ReturnStatus
	ReturnCondition = domain.ReturnCondition
	StockSummary    = domain.StockSummary
	Dashboard       = domain.Dashboard
)

const (
	OrderStatusPaymentPending   = domain.OrderStatusPaymentPending
	OrderStatusOrderPlaced      = domain.OrderStatusOrderPlaced
	OrderStatusPaymentConfirmed = domain.OrderStatusPaymentConfirmed
	OrderStatusShipped          = domain.OrderStatusShipped
	OrderStatusOutForDelivery   = domain.OrderStatusOutForDelivery
	OrderStatusDelivered        = domain.OrderStatusDelivered
	OrderStatusCancelled        = domain.OrderStatusCancelled

	PaymentStatusPending   = domain.PaymentStatusPending
	PaymentStatusConfirmed = domain.PaymentStatusConfirmed

	ReturnStatusRequested       = domain.ReturnStatusRequested
	ReturnStatusApproved        = domain.ReturnStatusApproved
	ReturnStatusRejected        = domain.ReturnStatusRejected
	ReturnStatusReceived        = domain.ReturnStatusReceived
	ReturnStatusReturnRejected  = domain.ReturnStatusReturnRejected
	ReturnStatusRefundInitiated = domain.ReturnStatusRefundInitiated
	ReturnStatusRefundCompleted = domain.ReturnStatusRefundCompleted

	ReturnConditionGood    = domain.ReturnConditionGood
	ReturnConditionDamaged = domain.ReturnConditionDamaged
)

// InventoryService is the only writer of product stock quantities.
type InventoryService interface {
	Reserve(ctx context.Context, lines []StockLine) (map[string]Product, error)
	Release(ctx context.Context, lines []StockLine) error
	SetStock(ctx context.Context, cmd SetStockCommand) (Product, error)
}

// CartService manages the per-user pending line items prior to checkout.
type CartService interface {
	GetCart(ctx context.Context, userID string) (CartView, error)
	AddItem(ctx context.Context, cmd AddCartItemCommand) (CartView, error)
	SetQuantity(ctx context.Context, cmd SetCartItemQuantityCommand) (CartView, error)
	RemoveItem(ctx context.Context, cmd RemoveCartItemCommand) (CartView, error)
	Merge(ctx context.Context, cmd MergeCartCommand) (CartView, error)
	Clear(ctx context.Context, userID string) error
}

// CheckoutService converts a user's cart into an order.
type CheckoutService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error)
}

// OrderService applies lifecycle transitions to orders.
type OrderService interface {
	GetOrder(ctx context.Context, query GetOrderQuery) (Order, error)
	ListUserOrders(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Order], error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error)

	ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (Order, error)
	UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error)
	Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error)

	RequestReturn(ctx context.Context, cmd RequestReturnCommand) (Order, error)
	ApproveReturn(ctx context.Context, cmd ReturnActionCommand) (Order, error)
	RejectReturn(ctx context.Context, cmd RejectReturnCommand) (Order, error)
	ReceiveReturn(ctx context.Context, cmd ReceiveReturnCommand) (Order, error)
	InitiateRefund(ctx context.Context, cmd ReturnActionCommand) (Order, error)
	CompleteRefund(ctx context.Context, cmd ReturnActionCommand) (Order, error)
	ListOpenReturns(ctx context.Context, pager Pagination) (domain.CursorPage[Order], error)
}

// DashboardService exposes read-only administrative projections.
type DashboardService interface {
	Dashboard(ctx context.Context) (Dashboard, error)
	StockSummary(ctx context.Context) ([]StockSummary, error)
	StockByCategory(ctx context.Context, category string) ([]Product, error)
}

// CatalogService manages catalog entries on behalf of administrators.
type CatalogService interface {
	ListProducts(ctx context.Context, filter ProductListFilter) (domain.CursorPage[Product], error)
	GetProduct(ctx context.Context, productID string) (Product, error)
	CreateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	UpdateProduct(ctx context.Context, cmd UpsertProductCommand) (Product, error)
	DeleteProduct(ctx context.Context, productID string) error
}

// EventPublisher emits domain events to downstream consumers.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
	PublishInventoryEvent(ctx context.Context, event InventoryEvent) error
}

// SetStockCommand overwrites the stock level for a product.
type SetStockCommand struct {
	ProductID string
	Stock     int
	ActorID   string
}

// AddCartItemCommand adds quantity of a product to the user's cart.
type AddCartItemCommand struct {
	UserID    string
	ProductID string
	Quantity  int
}

// SetCartItemQuantityCommand replaces the quantity of an existing cart item.
type SetCartItemQuantityCommand struct {
	UserID   string
	ItemID   string
	Quantity int
}

// RemoveCartItemCommand drops a single item from the user's cart.
type RemoveCartItemCommand struct {
	UserID string
	ItemID string
}

// MergeCartCommand folds guest cart lines into the user's cart.
type MergeCartCommand struct {
	UserID string
	Items  []StockLine
}

// PlaceOrderCommand requests checkout of the user's current cart.
type PlaceOrderCommand struct {
	UserID          string
	ShippingAddress string
	PaymentMethod   string
}

// GetOrderQuery retrieves an order on behalf of its owner or an administrator.
type GetOrderQuery struct {
	OrderID string
	UserID  string
	Admin   bool
}

// OrderListFilter narrows administrative order listings.
type OrderListFilter struct {
	UserID     string
	Status     []string
	Pagination Pagination
}

// ConfirmPaymentCommand acknowledges receipt of payment for an order.
type ConfirmPaymentCommand struct {
	OrderID string
	ActorID string
}

// UpdateOrderStatusCommand advances the fulfilment status of an order.
type UpdateOrderStatusCommand struct {
	OrderID        string
	Status         OrderStatus
	TrackingNumber string
	ActorID        string
}

// CancelOrderCommand cancels an order on behalf of its owner.
type CancelOrderCommand struct {
	OrderID string
	UserID  string
	Reason  string
}

// RequestReturnCommand opens a return on a delivered order.
type RequestReturnCommand struct {
	OrderID string
	UserID  string
	Reason  string
	Images  []string
}

// ReturnActionCommand identifies an order for a parameterless return transition.
type ReturnActionCommand struct {
	OrderID string
	ActorID string
}

// RejectReturnCommand rejects a requested return.
type RejectReturnCommand struct {
	OrderID string
	ActorID string
	Reason  string
}

// ReceiveReturnCommand records the inspected condition of returned goods.
type ReceiveReturnCommand struct {
	OrderID   string
	ActorID   string
	Condition ReturnCondition
}

// ProductListFilter narrows catalog listings.
type ProductListFilter struct {
	Category   string
	Pagination Pagination
}

// UpsertProductCommand creates or updates a catalog entry. Stock is only honoured on create.
type UpsertProductCommand struct {
	ID          string
	Name        string
	Description string
	Category    string
	Brand       string
	Price       int64
	Stock       int
	Image       string
}
