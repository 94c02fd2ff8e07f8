package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/services"
)

type stubCartService struct {
	getFunc    func(ctx context.Context, userID string) (services.CartView, error)
	addFunc    func(ctx context.Context, cmd services.AddCartItemCommand) (services.CartView, error)
	setFunc    func(ctx context.Context, cmd services.SetCartItemQuantityCommand) (services.CartView, error)
	removeFunc func(ctx context.Context, cmd services.RemoveCartItemCommand) (services.CartView, error)
	mergeFunc  func(ctx context.Context, cmd services.MergeCartCommand) (services.CartView, error)
	clearFunc  func(ctx context.Context, userID string) error
}

func (s *stubCartService) GetCart(ctx context.Context, userID string) (services.CartView, error) {
	if s.getFunc == nil {
		return services.CartView{}, nil
	}
	return s.getFunc(ctx, userID)
}

func (s *stubCartService) AddItem(ctx context.Context, cmd services.AddCartItemCommand) (services.CartView, error) {
	if s.addFunc == nil {
		return services.CartView{}, nil
	}
	return s.addFunc(ctx, cmd)
}

func (s *stubCartService) SetQuantity(ctx context.Context, cmd services.SetCartItemQuantityCommand) (services.CartView, error) {
	if s.setFunc == nil {
		return services.CartView{}, nil
	}
	return s.setFunc(ctx, cmd)
}

func (s *stubCartService) RemoveItem(ctx context.Context, cmd services.RemoveCartItemCommand) (services.CartView, error) {
	if s.removeFunc == nil {
		return services.CartView{}, nil
	}
	return s.removeFunc(ctx, cmd)
}

func (s *stubCartService) Merge(ctx context.Context, cmd services.MergeCartCommand) (services.CartView, error) {
	if s.mergeFunc == nil {
		return services.CartView{}, nil
	}
	return s.mergeFunc(ctx, cmd)
}

func (s *stubCartService) Clear(ctx context.Context, userID string) error {
	if s.clearFunc == nil {
		return nil
	}
	return s.clearFunc(ctx, userID)
}

type stubCheckoutService struct {
	placeFunc func(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error)
	calls     int
}

func (s *stubCheckoutService) PlaceOrder(ctx context.Context, cmd services.PlaceOrderCommand) (services.Order, error) {
	s.calls++
	return s.placeFunc(ctx, cmd)
}

// stubOrderService records the last command passed to each method and answers with order/err.
type stubOrderService struct {
	order services.Order
	page  domain.CursorPage[services.Order]
	err   error

	lastGet     services.GetOrderQuery
	lastUserID  string
	lastFilter  services.OrderListFilter
	lastPager   services.Pagination
	lastConfirm services.ConfirmPaymentCommand
	lastStatus  services.UpdateOrderStatusCommand
	lastCancel  services.CancelOrderCommand
	lastRequest services.RequestReturnCommand
	lastAction  services.ReturnActionCommand
	lastReject  services.RejectReturnCommand
	lastReceive services.ReceiveReturnCommand
	actions     []string
}

func (s *stubOrderService) GetOrder(_ context.Context, q services.GetOrderQuery) (services.Order, error) {
	s.lastGet = q
	return s.order, s.err
}

func (s *stubOrderService) ListUserOrders(_ context.Context, userID string, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	s.lastUserID = userID
	s.lastPager = pager
	return s.page, s.err
}

func (s *stubOrderService) ListOrders(_ context.Context, filter services.OrderListFilter) (domain.CursorPage[services.Order], error) {
	s.lastFilter = filter
	return s.page, s.err
}

func (s *stubOrderService) ConfirmPayment(_ context.Context, cmd services.ConfirmPaymentCommand) (services.Order, error) {
	s.lastConfirm = cmd
	return s.order, s.err
}

func (s *stubOrderService) UpdateStatus(_ context.Context, cmd services.UpdateOrderStatusCommand) (services.Order, error) {
	s.lastStatus = cmd
	return s.order, s.err
}

func (s *stubOrderService) Cancel(_ context.Context, cmd services.CancelOrderCommand) (services.Order, error) {
	s.lastCancel = cmd
	return s.order, s.err
}

func (s *stubOrderService) RequestReturn(_ context.Context, cmd services.RequestReturnCommand) (services.Order, error) {
	s.lastRequest = cmd
	return s.order, s.err
}

func (s *stubOrderService) ApproveReturn(_ context.Context, cmd services.ReturnActionCommand) (services.Order, error) {
	s.lastAction = cmd
	s.actions = append(s.actions, "approve")
	return s.order, s.err
}

func (s *stubOrderService) RejectReturn(_ context.Context, cmd services.RejectReturnCommand) (services.Order, error) {
	s.lastReject = cmd
	return s.order, s.err
}

func (s *stubOrderService) ReceiveReturn(_ context.Context, cmd services.ReceiveReturnCommand) (services.Order, error) {
	s.lastReceive = cmd
	return s.order, s.err
}

func (s *stubOrderService) InitiateRefund(_ context.Context, cmd services.ReturnActionCommand) (services.Order, error) {
	s.lastAction = cmd
	s.actions = append(s.actions, "refund")
	return s.order, s.err
}

func (s *stubOrderService) CompleteRefund(_ context.Context, cmd services.ReturnActionCommand) (services.Order, error) {
	s.lastAction = cmd
	s.actions = append(s.actions, "refund-complete")
	return s.order, s.err
}

func (s *stubOrderService) ListOpenReturns(_ context.Context, pager services.Pagination) (domain.CursorPage[services.Order], error) {
	s.lastPager = pager
	return s.page, s.err
}

type stubInventoryService struct {
	product services.Product
	err     error
	last    services.SetStockCommand
}

func (s *stubInventoryService) Reserve(context.Context, []services.StockLine) (map[string]services.Product, error) {
	return nil, nil
}

func (s *stubInventoryService) Release(context.Context, []services.StockLine) error { return nil }

func (s *stubInventoryService) SetStock(_ context.Context, cmd services.SetStockCommand) (services.Product, error) {
	s.last = cmd
	return s.product, s.err
}

type stubDashboardService struct {
	dashboard services.Dashboard
	summary   []services.StockSummary
	products  []services.Product
	category  string
	err       error
}

func (s *stubDashboardService) Dashboard(context.Context) (services.Dashboard, error) {
	return s.dashboard, s.err
}

func (s *stubDashboardService) StockSummary(context.Context) ([]services.StockSummary, error) {
	return s.summary, s.err
}

func (s *stubDashboardService) StockByCategory(_ context.Context, category string) ([]services.Product, error) {
	s.category = category
	return s.products, s.err
}

type stubCatalogService struct {
	product    services.Product
	page       domain.CursorPage[services.Product]
	err        error
	lastFilter services.ProductListFilter
	lastUpsert services.UpsertProductCommand
	deleted    string
}

func (s *stubCatalogService) ListProducts(_ context.Context, filter services.ProductListFilter) (domain.CursorPage[services.Product], error) {
	s.lastFilter = filter
	return s.page, s.err
}

func (s *stubCatalogService) GetProduct(context.Context, string) (services.Product, error) {
	return s.product, s.err
}

func (s *stubCatalogService) CreateProduct(_ context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	s.lastUpsert = cmd
	return s.product, s.err
}

func (s *stubCatalogService) UpdateProduct(_ context.Context, cmd services.UpsertProductCommand) (services.Product, error) {
	s.lastUpsert = cmd
	return s.product, s.err
}

func (s *stubCatalogService) DeleteProduct(_ context.Context, id string) error {
	s.deleted = id
	return s.err
}

var (
	_ services.CartService      = (*stubCartService)(nil)
	_ services.CheckoutService  = (*stubCheckoutService)(nil)
	_ services.OrderService     = (*stubOrderService)(nil)
	_ services.InventoryService = (*stubInventoryService)(nil)
	_ services.DashboardService = (*stubDashboardService)(nil)
	_ services.CatalogService   = (*stubCatalogService)(nil)
)

func newAuthedRequest(method, target, body string, identity *auth.Identity) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if identity != nil {
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
	}
	return req
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
	return body
}
