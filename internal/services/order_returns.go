package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/textutil"
	"github.com/hanko-field/storefront/internal/repositories"
)

const (
	// DamagedReturnMessage is recorded when returned goods fail inspection.
	DamagedReturnMessage = "Product returned in unacceptable condition (damaged/dirty/modified)"

	maxReturnImages = 10
)

var closedReturnStatuses = []string{
	string(ReturnStatusRejected),
	string(ReturnStatusRefundCompleted),
	string(ReturnStatusReturnRejected),
}

// RequestReturn opens a return on a delivered order inside the return window.
func (s *orderService) RequestReturn(ctx context.Context, cmd RequestReturnCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	reason := textutil.PlainText(cmd.Reason, maxReasonLength)
	images, err := normaliseReturnImages(cmd.Images)
	if err != nil {
		return Order{}, err
	}

	_, after, err := s.mutate(ctx, cmd.OrderID, func(order *Order, now time.Time) ([]StockLine, error) {
		if order.UserID != userID {
			return nil, ErrOrderUnauthorized
		}
		if order.Status != OrderStatusDelivered {
			return nil, fmt.Errorf("%w: order in status %s cannot be returned", ErrOrderInvalidTransition, order.Status)
		}
		if order.DeliveredAt == nil {
			return nil, ErrOrderDeliveryDateMissing
		}
		if order.DeliveredAt.Before(now.Add(-s.returnWindow)) {
			return nil, ErrReturnWindowClosed
		}
		if order.ReturnStatus != nil {
			return nil, ErrReturnAlreadyRequested
		}
		setReturnStatus(order, ReturnStatusRequested)
		order.ReturnRequestedAt = &now
		order.ReturnReason = reason
		order.ReturnImages = images
		return nil, nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishReturnEvent(ctx, after, "", userID)
	return after, nil
}

func (s *orderService) ApproveReturn(ctx context.Context, cmd ReturnActionCommand) (Order, error) {
	return s.returnTransition(ctx, cmd.OrderID, cmd.ActorID, ReturnStatusRequested, func(order *Order, now time.Time) []StockLine {
		setReturnStatus(order, ReturnStatusApproved)
		order.ReturnApprovedAt = &now
		return nil
	})
}

func (s *orderService) RejectReturn(ctx context.Context, cmd RejectReturnCommand) (Order, error) {
	reason := textutil.PlainText(cmd.Reason, maxReasonLength)
	return s.returnTransition(ctx, cmd.OrderID, cmd.ActorID, ReturnStatusRequested, func(order *Order, now time.Time) []StockLine {
		setReturnStatus(order, ReturnStatusRejected)
		order.ReturnRejectedAt = &now
		order.ReturnRejectionReason = reason
		return nil
	})
}

// ReceiveReturn records the inspection outcome. Damaged goods end the return without a refund.
func (s *orderService) ReceiveReturn(ctx context.Context, cmd ReceiveReturnCommand) (Order, error) {
	condition := ReturnCondition(strings.ToUpper(strings.TrimSpace(string(cmd.Condition))))
	if condition != ReturnConditionGood && condition != ReturnConditionDamaged {
		return Order{}, fmt.Errorf("%w: condition must be GOOD or DAMAGED", ErrOrderInvalidInput)
	}
	return s.returnTransition(ctx, cmd.OrderID, cmd.ActorID, ReturnStatusApproved, func(order *Order, now time.Time) []StockLine {
		order.ReturnReceivedAt = &now
		if condition == ReturnConditionDamaged {
			setReturnStatus(order, ReturnStatusReturnRejected)
			order.ReturnRejectionReason = DamagedReturnMessage
			return nil
		}
		setReturnStatus(order, ReturnStatusReceived)
		return nil
	})
}

// InitiateRefund refunds the full order total once and restores stock for every item.
func (s *orderService) InitiateRefund(ctx context.Context, cmd ReturnActionCommand) (Order, error) {
	var refunded int64
	order, err := s.returnTransition(ctx, cmd.OrderID, cmd.ActorID, ReturnStatusReceived, func(order *Order, now time.Time) []StockLine {
		setReturnStatus(order, ReturnStatusRefundInitiated)
		order.RefundInitiatedAt = &now
		refunded = order.TotalAmount
		order.RefundedAmount = refunded
		order.TotalAmount = 0
		return orderStockLines(*order)
	})
	if err != nil {
		return Order{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          OrderEventRefundInitiated,
		OrderID:       order.ID,
		UserID:        order.UserID,
		CurrentStatus: string(order.Status),
		ReturnStatus:  string(order.CurrentReturnStatus()),
		ActorID:       strings.TrimSpace(cmd.ActorID),
		OccurredAt:    order.UpdatedAt,
		Metadata: map[string]any{
			"refundedAmount": refunded,
			"currency":       order.Currency,
		},
	})
	return order, nil
}

func (s *orderService) CompleteRefund(ctx context.Context, cmd ReturnActionCommand) (Order, error) {
	return s.returnTransition(ctx, cmd.OrderID, cmd.ActorID, ReturnStatusRefundInitiated, func(order *Order, now time.Time) []StockLine {
		setReturnStatus(order, ReturnStatusRefundCompleted)
		order.RefundCompletedAt = &now
		return nil
	})
}

// ListOpenReturns lists orders with a return that has not reached a terminal state.
func (s *orderService) ListOpenReturns(ctx context.Context, pager Pagination) (domain.CursorPage[Order], error) {
	page, err := s.orders.List(ctx, repositories.OrderListFilter{
		HasReturn:     true,
		ExcludeReturn: closedReturnStatuses,
		Pagination:    pager,
	})
	if err != nil {
		return domain.CursorPage[Order]{}, mapRepositoryError(err, ErrOrderNotFound)
	}
	return page, nil
}

// returnTransition applies apply when the order's return status is exactly from.
func (s *orderService) returnTransition(ctx context.Context, orderID, actorID string, from ReturnStatus, apply func(order *Order, now time.Time) []StockLine) (Order, error) {
	before, after, err := s.mutate(ctx, orderID, func(order *Order, now time.Time) ([]StockLine, error) {
		if current := order.CurrentReturnStatus(); current != from {
			if current == "" {
				current = "none"
			}
			return nil, fmt.Errorf("%w: return status is %s, expected %s", ErrOrderInvalidTransition, current, from)
		}
		return apply(order, now), nil
	})
	if err != nil {
		return Order{}, err
	}

	s.publishReturnEvent(ctx, after, before.CurrentReturnStatus(), actorID)
	return after, nil
}

func (s *orderService) publishReturnEvent(ctx context.Context, order Order, previous ReturnStatus, actorID string) {
	s.publishEvent(ctx, OrderEvent{
		Type:          OrderEventReturnChanged,
		OrderID:       order.ID,
		UserID:        order.UserID,
		CurrentStatus: string(order.Status),
		ReturnStatus:  string(order.CurrentReturnStatus()),
		ActorID:       strings.TrimSpace(actorID),
		OccurredAt:    order.UpdatedAt,
		Metadata:      map[string]any{"previousReturnStatus": string(previous)},
	})
}

func setReturnStatus(order *Order, status ReturnStatus) {
	order.ReturnStatus = &status
}

func normaliseReturnImages(images []string) ([]string, error) {
	if len(images) > maxReturnImages {
		return nil, fmt.Errorf("%w: at most %d images may be attached", ErrOrderInvalidInput, maxReturnImages)
	}
	out := make([]string, 0, len(images))
	for _, image := range images {
		if trimmed := strings.TrimSpace(image); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
