package domain

import (
	"time"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// Product is the catalog entity referenced by carts and orders. Stock is only
// mutated through the inventory ledger.
type Product struct {
	ID          string
	Name        string
	Description string
	Category    string
	Brand       string
	Price       int64
	Stock       int
	Image       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// StockLine names a product and the quantity moved by a ledger operation.
type StockLine struct {
	ProductID string
	Quantity  int
}

// Cart holds a user's pending line items. At most one item exists per product.
type Cart struct {
	ID        string
	UserID    string
	Items     []CartItem
	CreatedAt time.Time
	UpdatedAt time.Time
}

// CartItem references a product with the desired quantity.
type CartItem struct {
	ID        string
	ProductID string
	Quantity  int
	AddedAt   time.Time
}

// CartLine joins a cart item with the current catalog fields for display.
type CartLine struct {
	ItemID      string
	ProductID   string
	Name        string
	Description string
	Category    string
	Brand       string
	Price       int64
	Image       string
	Quantity    int
	Available   bool
}

// CartView is the cart together with its hydrated lines.
type CartView struct {
	Cart  Cart
	Lines []CartLine
}

// OrderStatus is the fulfilment axis of an order.
type OrderStatus string

const (
	OrderStatusPaymentPending   OrderStatus = "PAYMENT_PENDING"
	OrderStatusOrderPlaced      OrderStatus = "ORDER_PLACED"
	OrderStatusPaymentConfirmed OrderStatus = "PAYMENT_CONFIRMED"
	OrderStatusShipped          OrderStatus = "SHIPPED"
	OrderStatusOutForDelivery   OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered        OrderStatus = "DELIVERED"
	OrderStatusCancelled        OrderStatus = "CANCELLED"
)

// PaymentStatus is the payment axis of an order.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusConfirmed PaymentStatus = "CONFIRMED"
)

// ReturnStatus is the return/refund axis of an order.
type ReturnStatus string

const (
	ReturnStatusRequested       ReturnStatus = "REQUESTED"
	ReturnStatusApproved        ReturnStatus = "APPROVED"
	ReturnStatusRejected        ReturnStatus = "REJECTED"
	ReturnStatusReceived        ReturnStatus = "RETURN_RECEIVED"
	ReturnStatusReturnRejected  ReturnStatus = "RETURN_REJECTED"
	ReturnStatusRefundInitiated ReturnStatus = "REFUND_INITIATED"
	ReturnStatusRefundCompleted ReturnStatus = "REFUND_COMPLETED"
)

// Terminal reports whether no further return transition is possible.
func (s ReturnStatus) Terminal() bool {
	switch s {
	case ReturnStatusRejected, ReturnStatusReturnRejected, ReturnStatusRefundCompleted:
		return true
	default:
		return false
	}
}

// ReturnCondition is the inspection outcome recorded when a return arrives.
type ReturnCondition string

const (
	ReturnConditionGood    ReturnCondition = "GOOD"
	ReturnConditionDamaged ReturnCondition = "DAMAGED"
)

// OrderItem is an immutable snapshot of a purchased line.
type OrderItem struct {
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   int64
}

// LineTotal returns UnitPrice × Quantity.
func (i OrderItem) LineTotal() int64 {
	return i.UnitPrice * int64(i.Quantity)
}

// Order is the unit of the lifecycle state machine.
type Order struct {
	ID              string
	UserID          string
	Items           []OrderItem
	ShippingAddress string
	PaymentMethod   string

	Status        OrderStatus
	PaymentStatus PaymentStatus
	ReturnStatus  *ReturnStatus

	TotalAmount    int64
	RefundedAmount int64
	Currency       string

	TrackingNumber        string
	CancelReason          string
	ReturnReason          string
	ReturnRejectionReason string
	ReturnImages          []string

	CreatedAt          time.Time
	UpdatedAt          time.Time
	PaymentConfirmedAt *time.Time
	ShippedAt          *time.Time
	DeliveredAt        *time.Time
	CancelledAt        *time.Time
	ReturnRequestedAt  *time.Time
	ReturnApprovedAt   *time.Time
	ReturnRejectedAt   *time.Time
	ReturnReceivedAt   *time.Time
	RefundInitiatedAt  *time.Time
	RefundCompletedAt  *time.Time
}

// ItemsTotal sums the snapshot line totals.
func (o Order) ItemsTotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.LineTotal()
	}
	return total
}

// CurrentReturnStatus returns the return status or "" when no return exists.
func (o Order) CurrentReturnStatus() ReturnStatus {
	if o.ReturnStatus == nil {
		return ""
	}
	return *o.ReturnStatus
}

// StockSummary aggregates stock per category.
type StockSummary struct {
	Category     string
	TotalStock   int
	ProductCount int
}

// Dashboard is the administrative read-side projection.
type Dashboard struct {
	TotalProducts  int
	TotalOrders    int
	TotalCustomers int
	TotalRevenue   int64
	LowStock       []Product
	StockSummary   []StockSummary
	GeneratedAt    time.Time
}

// Health status values reported by readiness checks.
const (
	HealthStatusOK       = "ok"
	HealthStatusDegraded = "degraded"
	HealthStatusError    = "error"
)

// SystemHealthCheck describes the outcome of an individual dependency check.
type SystemHealthCheck struct {
	Status    string
	Detail    string
	Latency   time.Duration
	CheckedAt time.Time
}

// SystemHealthReport aggregates dependency status for health endpoints.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]SystemHealthCheck
	GeneratedAt time.Time
}
