package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/textutil"
	"github.com/hanko-field/storefront/internal/repositories"
)

const (
	// DefaultReturnWindow is how long after delivery a return may be requested.
	DefaultReturnWindow = 15 * 24 * time.Hour

	maxReasonLength = 500
)

// orderStatusTransitions lists the statuses UpdateStatus may move an order to. Cancellation
// is only reachable through Cancel so that stock restoration cannot be bypassed.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPaymentPending:   {OrderStatusPaymentConfirmed},
	OrderStatusOrderPlaced:      {OrderStatusPaymentConfirmed, OrderStatusShipped},
	OrderStatusPaymentConfirmed: {OrderStatusShipped},
	OrderStatusShipped:          {OrderStatusOutForDelivery, OrderStatusDelivered},
	OrderStatusOutForDelivery:   {OrderStatusDelivered},
}

var nonCancellableStatuses = []OrderStatus{
	OrderStatusShipped,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

var knownOrderStatuses = []OrderStatus{
	OrderStatusPaymentPending,
	OrderStatusOrderPlaced,
	OrderStatusPaymentConfirmed,
	OrderStatusShipped,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders       repositories.OrderRepository
	Inventory    InventoryService
	UnitOfWork   repositories.UnitOfWork
	Events       EventPublisher
	Clock        func() time.Time
	Logger       func(ctx context.Context, event string, fields map[string]any)
	ReturnWindow time.Duration
}

type orderService struct {
	orders       repositories.OrderRepository
	inventory    InventoryService
	unitOfWork   repositories.UnitOfWork
	events       EventPublisher
	clock        func() time.Time
	logger       func(context.Context, string, map[string]any)
	returnWindow time.Duration
}

// orderMutation edits order in place and returns any stock that must be credited back in the
// same transaction.
type orderMutation func(order *Order, now time.Time) ([]StockLine, error)

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("order service: inventory service is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	window := deps.ReturnWindow
	if window <= 0 {
		window = DefaultReturnWindow
	}

	return &orderService{
		orders:     deps.Orders,
		inventory:  deps.Inventory,
		unitOfWork: unit,
		events:     deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger:       logger,
		returnWindow: window,
	}, nil
}

func (s *orderService) GetOrder(ctx context.Context, query GetOrderQuery) (Order, error) {
	orderID := strings.TrimSpace(query.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapRepositoryError(err, ErrOrderNotFound)
	}
	if !query.Admin && order.UserID != strings.TrimSpace(query.UserID) {
		return Order{}, ErrOrderUnauthorized
	}
	return order, nil
}

func (s *orderService) ListUserOrders(ctx context.Context, userID string, pager Pagination) (domain.CursorPage[Order], error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.CursorPage[Order]{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	page, err := s.orders.List(ctx, repositories.OrderListFilter{UserID: userID, Pagination: pager})
	if err != nil {
		return domain.CursorPage[Order]{}, mapRepositoryError(err, ErrOrderNotFound)
	}
	return page, nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[Order], error) {
	statuses := make([]string, 0, len(filter.Status))
	for _, raw := range filter.Status {
		status := OrderStatus(strings.ToUpper(strings.TrimSpace(raw)))
		if status == "" {
			continue
		}
		if !slices.Contains(knownOrderStatuses, status) {
			return domain.CursorPage[Order]{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, raw)
		}
		statuses = append(statuses, string(status))
	}

	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserID:     strings.TrimSpace(filter.UserID),
		Status:     statuses,
		Pagination: filter.Pagination,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, mapRepositoryError(err, ErrOrderNotFound)
	}
	return page, nil
}

// ConfirmPayment records payment. A second confirmation fails with ErrOrderAlreadyConfirmed.
// Cash on delivery orders may be confirmed after shipment, in which case only the payment axis
// changes.
func (s *orderService) ConfirmPayment(ctx context.Context, cmd ConfirmPaymentCommand) (Order, error) {
	before, after, err := s.mutate(ctx, cmd.OrderID, func(order *Order, now time.Time) ([]StockLine, error) {
		if order.Status == OrderStatusCancelled {
			return nil, fmt.Errorf("%w: order is cancelled", ErrOrderInvalidTransition)
		}
		if order.PaymentStatus == PaymentStatusConfirmed {
			return nil, ErrOrderAlreadyConfirmed
		}
		switch order.Status {
		case OrderStatusPaymentPending, OrderStatusOrderPlaced:
			order.Status = OrderStatusPaymentConfirmed
		}
		order.PaymentStatus = PaymentStatusConfirmed
		order.PaymentConfirmedAt = &now
		return nil, nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           OrderEventPaymentConfirmed,
		OrderID:        after.ID,
		UserID:         after.UserID,
		PreviousStatus: string(before.Status),
		CurrentStatus:  string(after.Status),
		ActorID:        strings.TrimSpace(cmd.ActorID),
		OccurredAt:     after.UpdatedAt,
	})
	return after, nil
}

// UpdateStatus advances the fulfilment status along orderStatusTransitions.
func (s *orderService) UpdateStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (Order, error) {
	target := OrderStatus(strings.ToUpper(strings.TrimSpace(string(cmd.Status))))
	if target == "" {
		return Order{}, fmt.Errorf("%w: status is required", ErrOrderInvalidInput)
	}
	if !slices.Contains(knownOrderStatuses, target) {
		return Order{}, fmt.Errorf("%w: unknown status %q", ErrOrderInvalidInput, cmd.Status)
	}
	if target == OrderStatusCancelled {
		return Order{}, fmt.Errorf("%w: orders are cancelled through cancel", ErrOrderInvalidTransition)
	}
	tracking := textutil.PlainText(cmd.TrackingNumber, 128)

	before, after, err := s.mutate(ctx, cmd.OrderID, func(order *Order, now time.Time) ([]StockLine, error) {
		if !slices.Contains(orderStatusTransitions[order.Status], target) {
			return nil, fmt.Errorf("%w: cannot move from %s to %s", ErrOrderInvalidTransition, order.Status, target)
		}
		order.Status = target
		switch target {
		case OrderStatusPaymentConfirmed:
			order.PaymentStatus = PaymentStatusConfirmed
			order.PaymentConfirmedAt = &now
		case OrderStatusShipped:
			order.ShippedAt = &now
			if tracking != "" {
				order.TrackingNumber = tracking
			}
		case OrderStatusDelivered:
			order.DeliveredAt = &now
		}
		return nil, nil
	})
	if err != nil {
		return Order{}, err
	}

	metadata := map[string]any{}
	if after.TrackingNumber != "" && target == OrderStatusShipped {
		metadata["trackingNumber"] = after.TrackingNumber
	}
	s.publishEvent(ctx, OrderEvent{
		Type:           OrderEventStatusChanged,
		OrderID:        after.ID,
		UserID:         after.UserID,
		PreviousStatus: string(before.Status),
		CurrentStatus:  string(after.Status),
		ActorID:        strings.TrimSpace(cmd.ActorID),
		OccurredAt:     after.UpdatedAt,
		Metadata:       metadata,
	})
	return after, nil
}

// Cancel cancels an order before shipment and restores stock for every item exactly once.
func (s *orderService) Cancel(ctx context.Context, cmd CancelOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	reason := textutil.PlainText(cmd.Reason, maxReasonLength)

	before, after, err := s.mutate(ctx, cmd.OrderID, func(order *Order, now time.Time) ([]StockLine, error) {
		if order.UserID != userID {
			return nil, ErrOrderUnauthorized
		}
		if slices.Contains(nonCancellableStatuses, order.Status) {
			return nil, fmt.Errorf("%w: order in status %s cannot be cancelled", ErrOrderInvalidTransition, order.Status)
		}
		order.Status = OrderStatusCancelled
		order.CancelledAt = &now
		order.CancelReason = reason
		return orderStockLines(*order), nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           OrderEventCancelled,
		OrderID:        after.ID,
		UserID:         after.UserID,
		PreviousStatus: string(before.Status),
		CurrentStatus:  string(after.Status),
		ActorID:        userID,
		OccurredAt:     after.UpdatedAt,
		Metadata:       map[string]any{"reason": reason},
	})
	return after, nil
}

// mutate re-reads the order inside a transaction, applies fn, credits any returned stock and
// persists the result. Reads happen before writes so document stores can honour the transaction.
func (s *orderService) mutate(ctx context.Context, orderID string, fn orderMutation) (Order, Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var before, after Order
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(err, ErrOrderNotFound)
		}
		before = current.Clone()

		now := s.clock()
		release, err := fn(&current, now)
		if err != nil {
			return err
		}
		current.UpdatedAt = now

		if len(release) > 0 {
			if err := s.inventory.Release(txCtx, release); err != nil {
				return err
			}
		}
		if err := s.orders.Update(txCtx, current); err != nil {
			return mapRepositoryError(err, ErrOrderNotFound)
		}
		after = current
		return nil
	})
	if err != nil {
		return Order{}, Order{}, err
	}

	s.logger(ctx, "order.updated", map[string]any{
		"order":        after.ID,
		"status":       string(after.Status),
		"payment":      string(after.PaymentStatus),
		"returnStatus": string(after.CurrentReturnStatus()),
	})
	return before, after, nil
}

func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  event.Type,
			"order": event.OrderID,
			"error": err.Error(),
		})
	}
}

func orderStockLines(order Order) []StockLine {
	lines := make([]StockLine, 0, len(order.Items))
	for _, item := range order.Items {
		if item.Quantity <= 0 {
			continue
		}
		lines = append(lines, StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
