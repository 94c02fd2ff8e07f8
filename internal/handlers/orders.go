package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/services"
)

const (
	maxOrderPageSize     = 100
	maxCheckoutBodySize  = 8 * 1024
	maxOrderActionBody   = 4 * 1024
	maxReturnImageFields = 10
)

// OrderHandlers exposes checkout and the customer-facing order endpoints.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	checkout    services.CheckoutService
	idempotency func(http.Handler) http.Handler
}

// OrderOption customises OrderHandlers.
type OrderOption func(*OrderHandlers)

// WithCheckoutIdempotency guards POST /orders with the provided middleware. It runs after
// authentication so replayed responses are scoped to the caller.
func WithCheckoutIdempotency(mw func(http.Handler) http.Handler) OrderOption {
	return func(h *OrderHandlers) {
		h.idempotency = mw
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, checkout services.CheckoutService, opts ...OrderOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:    authn,
		orders:   orders,
		checkout: checkout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	if h.idempotency != nil {
		r.With(h.idempotency).Post("/", h.placeOrder)
	} else {
		r.Post("/", h.placeOrder)
	}
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Post("/{orderID}:cancel", h.cancelOrder)
	r.Post("/{orderID}:request-return", h.requestReturn)
}

type placeOrderRequest struct {
	ShippingAddress string `json:"shipping_address"`
	PaymentMethod   string `json:"payment_method"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

type requestReturnRequest struct {
	Reason string   `json:"reason"`
	Images []string `json:"images"`
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.checkout == nil {
		writeUnavailable(ctx, w, "checkout")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req placeOrderRequest
	if !decodeJSONBody(w, r, maxCheckoutBodySize, &req, false) {
		return
	}

	order, err := h.checkout.PlaceOrder(ctx, services.PlaceOrderCommand{
		UserID:          identity.UID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/orders/"+order.ID)
	writeJSONResponse(w, http.StatusCreated, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}
	pager, ok := parsePager(w, r, maxOrderPageSize)
	if !ok {
		return
	}

	page, err := h.orders.ListUserOrders(ctx, identity.UID, pager)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderListPayload(page))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, services.GetOrderQuery{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		UserID:  identity.UID,
		Admin:   identity.IsBackOffice(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if !decodeJSONBody(w, r, maxOrderActionBody, &req, true) {
		return
	}

	order, err := h.orders.Cancel(ctx, services.CancelOrderCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		UserID:  identity.UID,
		Reason:  req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) requestReturn(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		writeUnavailable(ctx, w, "order")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req requestReturnRequest
	if !decodeJSONBody(w, r, maxOrderActionBody, &req, false) {
		return
	}
	images := make([]string, 0, len(req.Images))
	for _, image := range req.Images {
		if trimmed := strings.TrimSpace(image); trimmed != "" {
			images = append(images, trimmed)
		}
	}
	if len(images) > maxReturnImageFields {
		images = images[:maxReturnImageFields]
	}

	order, err := h.orders.RequestReturn(ctx, services.RequestReturnCommand{
		OrderID: strings.TrimSpace(chi.URLParam(r, "orderID")),
		UserID:  identity.UID,
		Reason:  req.Reason,
		Images:  images,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func buildOrderListPayload(page domain.CursorPage[services.Order]) orderListResponse {
	items := make([]orderPayload, 0, len(page.Items))
	for _, order := range page.Items {
		items = append(items, buildOrderPayload(order))
	}
	return orderListResponse{Items: items, NextPageToken: page.NextPageToken}
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:                    order.ID,
		UserID:                order.UserID,
		Items:                 make([]orderItemPayload, 0, len(order.Items)),
		ShippingAddress:       order.ShippingAddress,
		PaymentMethod:         order.PaymentMethod,
		Status:                string(order.Status),
		PaymentStatus:         string(order.PaymentStatus),
		ReturnStatus:          string(order.CurrentReturnStatus()),
		TotalAmount:           order.TotalAmount,
		RefundedAmount:        order.RefundedAmount,
		Currency:              order.Currency,
		TrackingNumber:        order.TrackingNumber,
		CancelReason:          order.CancelReason,
		ReturnReason:          order.ReturnReason,
		ReturnRejectionReason: order.ReturnRejectionReason,
		ReturnImages:          append([]string(nil), order.ReturnImages...),
		CreatedAt:             formatTime(order.CreatedAt),
		UpdatedAt:             formatTime(order.UpdatedAt),
		PaymentConfirmedAt:    formatTimePtr(order.PaymentConfirmedAt),
		ShippedAt:             formatTimePtr(order.ShippedAt),
		DeliveredAt:           formatTimePtr(order.DeliveredAt),
		CancelledAt:           formatTimePtr(order.CancelledAt),
		ReturnRequestedAt:     formatTimePtr(order.ReturnRequestedAt),
		ReturnApprovedAt:      formatTimePtr(order.ReturnApprovedAt),
		ReturnRejectedAt:      formatTimePtr(order.ReturnRejectedAt),
		ReturnReceivedAt:      formatTimePtr(order.ReturnReceivedAt),
		RefundInitiatedAt:     formatTimePtr(order.RefundInitiatedAt),
		RefundCompletedAt:     formatTimePtr(order.RefundCompletedAt),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			LineTotal:   item.LineTotal(),
		})
	}
	return payload
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

type orderPayload struct {
	ID                    string             `json:"id"`
	UserID                string             `json:"user_id"`
	Items                 []orderItemPayload `json:"items"`
	ShippingAddress       string             `json:"shipping_address"`
	PaymentMethod         string             `json:"payment_method"`
	Status                string             `json:"status"`
	PaymentStatus         string             `json:"payment_status"`
	ReturnStatus          string             `json:"return_status,omitempty"`
	TotalAmount           int64              `json:"total_amount"`
	RefundedAmount        int64              `json:"refunded_amount"`
	Currency              string             `json:"currency,omitempty"`
	TrackingNumber        string             `json:"tracking_number,omitempty"`
	CancelReason          string             `json:"cancel_reason,omitempty"`
	ReturnReason          string             `json:"return_reason,omitempty"`
	ReturnRejectionReason string             `json:"return_rejection_reason,omitempty"`
	ReturnImages          []string           `json:"return_images,omitempty"`
	CreatedAt             string             `json:"created_at,omitempty"`
	UpdatedAt             string             `json:"updated_at,omitempty"`
	PaymentConfirmedAt    string             `json:"payment_confirmed_at,omitempty"`
	ShippedAt             string             `json:"shipped_at,omitempty"`
	DeliveredAt           string             `json:"delivered_at,omitempty"`
	CancelledAt           string             `json:"cancelled_at,omitempty"`
	ReturnRequestedAt     string             `json:"return_requested_at,omitempty"`
	ReturnApprovedAt      string             `json:"return_approved_at,omitempty"`
	ReturnRejectedAt      string             `json:"return_rejected_at,omitempty"`
	ReturnReceivedAt      string             `json:"return_received_at,omitempty"`
	RefundInitiatedAt     string             `json:"refund_initiated_at,omitempty"`
	RefundCompletedAt     string             `json:"refund_completed_at,omitempty"`
}

type orderItemPayload struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	LineTotal   int64  `json:"line_total"`
}
