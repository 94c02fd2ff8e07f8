package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/services"
)

type updateStatusRequest struct {
	Status         string `json:"status"`
	TrackingNumber string `json:"tracking_number"`
}

type rejectReturnRequest struct {
	Reason string `json:"reason"`
}

type receiveReturnRequest struct {
	Condition string `json:"condition"`
}

func (h *AdminHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	pager, ok := parsePager(w, r, maxAdminPageSize)
	if !ok {
		return
	}
	query := r.URL.Query()

	page, err := h.orders.ListOrders(ctx, services.OrderListFilter{
		UserID:     strings.TrimSpace(query.Get("user_id")),
		Status:     parseFilterValues(query["status"]),
		Pagination: pager,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListPayload(page))
}

func (h *AdminHandlers) confirmPayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	identity, _ := auth.IdentityFromContext(ctx)

	order, err := h.orders.ConfirmPayment(ctx, services.ConfirmPaymentCommand{
		OrderID: orderIDParam(r),
		ActorID: actorID(identity),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	identity, _ := auth.IdentityFromContext(ctx)

	var req updateStatusRequest
	if !decodeJSONBody(w, r, maxAdminBodySize, &req, false) {
		return
	}
	status := services.OrderStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if status == "" {
		writeServiceError(ctx, w, fmt.Errorf("%w: status is required", services.ErrOrderInvalidInput))
		return
	}

	order, err := h.orders.UpdateStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID:        orderIDParam(r),
		Status:         status,
		TrackingNumber: strings.TrimSpace(req.TrackingNumber),
		ActorID:        actorID(identity),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) listReturns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	pager, ok := parsePager(w, r, maxAdminPageSize)
	if !ok {
		return
	}

	page, err := h.orders.ListOpenReturns(ctx, pager)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListPayload(page))
}

func (h *AdminHandlers) approveReturn(w http.ResponseWriter, r *http.Request) {
	h.returnAction(w, r, services.OrderService.ApproveReturn)
}

func (h *AdminHandlers) initiateRefund(w http.ResponseWriter, r *http.Request) {
	h.returnAction(w, r, services.OrderService.InitiateRefund)
}

func (h *AdminHandlers) completeRefund(w http.ResponseWriter, r *http.Request) {
	h.returnAction(w, r, services.OrderService.CompleteRefund)
}

func (h *AdminHandlers) rejectReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	identity, _ := auth.IdentityFromContext(ctx)

	var req rejectReturnRequest
	if !decodeJSONBody(w, r, maxAdminBodySize, &req, true) {
		return
	}

	order, err := h.orders.RejectReturn(ctx, services.RejectReturnCommand{
		OrderID: orderIDParam(r),
		ActorID: actorID(identity),
		Reason:  req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *AdminHandlers) receiveReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	identity, _ := auth.IdentityFromContext(ctx)

	var req receiveReturnRequest
	if !decodeJSONBody(w, r, maxAdminBodySize, &req, false) {
		return
	}
	condition := services.ReturnCondition(strings.ToUpper(strings.TrimSpace(req.Condition)))
	switch condition {
	case services.ReturnConditionGood, services.ReturnConditionDamaged:
	default:
		writeServiceError(ctx, w, fmt.Errorf("%w: condition must be GOOD or DAMAGED", services.ErrOrderInvalidInput))
		return
	}

	order, err := h.orders.ReceiveReturn(ctx, services.ReceiveReturnCommand{
		OrderID:   orderIDParam(r),
		ActorID:   actorID(identity),
		Condition: condition,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// returnActionFunc is a method expression on OrderService for parameterless return transitions.
type returnActionFunc func(services.OrderService, context.Context, services.ReturnActionCommand) (services.Order, error)

func (h *AdminHandlers) returnAction(w http.ResponseWriter, r *http.Request, action returnActionFunc) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	identity, _ := auth.IdentityFromContext(ctx)

	order, err := action(h.orders, ctx, services.ReturnActionCommand{
		OrderID: orderIDParam(r),
		ActorID: actorID(identity),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}
