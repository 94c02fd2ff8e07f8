package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
	"github.com/go-chi/chi/v5"

	domain "github.com/hanko-field/storefront/internal/domain"
	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/services"
)

type adminFixture struct {
	orders    *stubOrderService
	inventory *stubInventoryService
	dashboard *stubDashboardService
	catalog   *stubCatalogService
	router    chi.Router
}

func newAdminFixture(authn *auth.Authenticator) *adminFixture {
	f := &adminFixture{
		orders:    &stubOrderService{order: sampleOrder()},
		inventory: &stubInventoryService{},
		dashboard: &stubDashboardService{},
		catalog:   &stubCatalogService{},
	}
	handler := NewAdminHandlers(authn, AdminDeps{
		Orders:    f.orders,
		Inventory: f.inventory,
		Dashboard: f.dashboard,
		Catalog:   f.catalog,
	})
	f.router = chi.NewRouter()
	f.router.Route("/admin", handler.Routes)
	return f
}

var adminIdentity = &auth.Identity{UID: "admin-1", Roles: []string{auth.RoleAdmin}}

type roleVerifier struct{ roles map[string]any }

func (v roleVerifier) VerifyIDToken(_ context.Context, token string) (*firebaseauth.Token, error) {
	role, ok := v.roles[token]
	if !ok {
		return nil, errors.New("unknown token")
	}
	return &firebaseauth.Token{UID: token, Claims: map[string]any{"role": role}}, nil
}

func TestAdminHandlersRequireBackOfficeRole(t *testing.T) {
	authn := auth.NewAuthenticator(roleVerifier{roles: map[string]any{
		"shopper": "customer",
		"clerk":   "staff",
		"boss":    "admin",
	}})
	f := newAdminFixture(authn)

	cases := map[string]int{
		"shopper": http.StatusForbidden,
		"clerk":   http.StatusOK,
		"boss":    http.StatusOK,
	}
	for token, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, req)
		if rr.Code != want {
			t.Fatalf("%s: expected %d, got %d", token, want, rr.Code)
		}
	}
}

func TestAdminHandlersListOrdersFilters(t *testing.T) {
	f := newAdminFixture(nil)
	f.orders.page = domain.CursorPage[services.Order]{Items: []services.Order{sampleOrder()}}

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodGet, "/admin/orders?status=shipped,delivered&status=shipped&user_id=user-1&page_size=10", "", adminIdentity))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	filter := f.orders.lastFilter
	if filter.UserID != "user-1" || filter.Pagination.PageSize != 10 {
		t.Fatalf("unexpected filter %+v", filter)
	}
	if len(filter.Status) != 2 || filter.Status[0] != "SHIPPED" || filter.Status[1] != "DELIVERED" {
		t.Fatalf("expected upper-cased deduplicated statuses, got %v", filter.Status)
	}
}

func TestAdminHandlersConfirmPayment(t *testing.T) {
	f := newAdminFixture(nil)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodPost, "/admin/orders/ord_1:confirm-payment", "", adminIdentity))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if f.orders.lastConfirm.OrderID != "ord_1" || f.orders.lastConfirm.ActorID != "admin-1" {
		t.Fatalf("unexpected confirm command %+v", f.orders.lastConfirm)
	}

	f.orders.err = services.ErrOrderAlreadyConfirmed
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodPost, "/admin/orders/ord_1:confirm-payment", "", adminIdentity))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 on second confirmation, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "payment_already_confirmed" {
		t.Fatalf("unexpected code %v", body["error"])
	}
}

func TestAdminHandlersUpdateStatus(t *testing.T) {
	f := newAdminFixture(nil)

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodPut, "/admin/orders/ord_1/status", `{"status":"shipped","tracking_number":" TRK1 "}`, adminIdentity))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	cmd := f.orders.lastStatus
	if cmd.Status != services.OrderStatusShipped || cmd.TrackingNumber != "TRK1" || cmd.OrderID != "ord_1" {
		t.Fatalf("unexpected status command %+v", cmd)
	}

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodPut, "/admin/orders/ord_1/status", `{"tracking_number":"x"}`, adminIdentity))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without status, got %d", rr.Code)
	}

	f.orders.err = services.ErrOrderInvalidTransition
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodPut, "/admin/orders/ord_1/status", `{"status":"DELIVERED"}`, adminIdentity))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for skipped transition, got %d", rr.Code)
	}
}

func TestAdminHandlersReturnActions(t *testing.T) {
	f := newAdminFixture(nil)

	for _, path := range []string{":approve", ":refund", ":refund-complete"} {
		rr := httptest.NewRecorder()
		f.router.ServeHTTP(rr, newAuthedRequest(http.MethodPost, "/admin/returns/ord_1"+path, "", adminIdentity))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
	}
	want := []string{"approve", "refund", "refund-complete"}
	if len(f.orders.actions) != len(want) {
		t.Fatalf("expected actions %v, got %v", want, f.orders.actions)
	}
	for i := range want {
		if f.orders.actions[i] != want[i] {
			t.Fatalf("expected actions %v, got %v", want, f.orders.actions)
		}
	}
	if f.orders.lastAction.ActorID != "admin-1" {
		t.Fatalf("expected actor to be forwarded, got %+v", f.orders.lastAction)
	}

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodPost, "/admin/returns/ord_1:reject", `{"reason":"worn"}`, adminIdentity))
	if rr.Code != http.StatusOK || f.orders.lastReject.Reason != "worn" {
		t.Fatalf("unexpected reject handling %d %+v", rr.Code, f.orders.lastReject)
	}

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodPost, "/admin/returns/ord_1:receive", `{"condition":"damaged"}`, adminIdentity))
	if rr.Code != http.StatusOK || f.orders.lastReceive.Condition != services.ReturnConditionDamaged {
		t.Fatalf("unexpected receive handling %d %+v", rr.Code, f.orders.lastReceive)
	}

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodPost, "/admin/returns/ord_1:receive", `{"condition":"lost"}`, adminIdentity))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown condition, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodGet, "/admin/returns?page_size=5", "", adminIdentity))
	if rr.Code != http.StatusOK || f.orders.lastPager.PageSize != 5 {
		t.Fatalf("unexpected open returns listing %d %+v", rr.Code, f.orders.lastPager)
	}
}

func TestAdminHandlersDashboardAndStock(t *testing.T) {
	f := newAdminFixture(nil)
	f.dashboard.dashboard = services.Dashboard{
		TotalProducts: 3,
		TotalRevenue:  4200,
		LowStock:      []services.Product{{ID: "p1", Stock: 2}},
		StockSummary:  []services.StockSummary{{Category: "tea", TotalStock: 12, ProductCount: 2}},
	}
	f.dashboard.products = []services.Product{{ID: "p1", Category: "green tea"}}

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodGet, "/admin/dashboard", "", adminIdentity))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var dash dashboardPayload
	if err := json.Unmarshal(rr.Body.Bytes(), &dash); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dash.TotalRevenue != 4200 || len(dash.LowStock) != 1 || dash.StockSummary[0].TotalStock != 12 {
		t.Fatalf("unexpected dashboard %+v", dash)
	}

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodGet, "/admin/stock/category/green%20tea", "", adminIdentity))
	if rr.Code != http.StatusOK || f.dashboard.category != "green tea" {
		t.Fatalf("unexpected category lookup %d %q", rr.Code, f.dashboard.category)
	}

	f.inventory.product = services.Product{ID: "p1", Stock: 40}
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodPut, "/admin/stock/p1", `{"stock":40}`, adminIdentity))
	if rr.Code != http.StatusOK || f.inventory.last.Stock != 40 || f.inventory.last.ProductID != "p1" {
		t.Fatalf("unexpected set stock handling %d %+v", rr.Code, f.inventory.last)
	}

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodPut, "/admin/stock/p1", `{}`, adminIdentity))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without stock, got %d", rr.Code)
	}
}

func TestAdminHandlersProducts(t *testing.T) {
	f := newAdminFixture(nil)
	f.catalog.product = services.Product{ID: "01HZX", Name: "Matcha", Price: 1500}

	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodPost, "/admin/products", `{"name":"Matcha","category":"tea","price":1500,"stock":8}`, adminIdentity))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if f.catalog.lastUpsert.Stock != 8 || f.catalog.lastUpsert.Name != "Matcha" {
		t.Fatalf("unexpected create command %+v", f.catalog.lastUpsert)
	}

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodPut, "/admin/products/other", `{"id":"01HZX","name":"Matcha"}`, adminIdentity))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for mismatched id, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodPut, "/admin/products/01HZX", `{"name":"Matcha Deluxe"}`, adminIdentity))
	if rr.Code != http.StatusOK || f.catalog.lastUpsert.ID != "01HZX" {
		t.Fatalf("unexpected update handling %d %+v", rr.Code, f.catalog.lastUpsert)
	}

	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodDelete, "/admin/products/01HZX", "", adminIdentity))
	if rr.Code != http.StatusNoContent || f.catalog.deleted != "01HZX" {
		t.Fatalf("unexpected delete handling %d %q", rr.Code, f.catalog.deleted)
	}

	f.catalog.err = services.ErrCatalogProductNotFound
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodGet, "/admin/products/missing", "", adminIdentity))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}

	f.catalog.err = nil
	rr = httptest.NewRecorder()
	f.router.ServeHTTP(rr, newAuthedRequest(http.MethodGet, "/admin/products?category=tea", "", adminIdentity))
	if rr.Code != http.StatusOK || f.catalog.lastFilter.Category != "tea" {
		t.Fatalf("unexpected list handling %d %+v", rr.Code, f.catalog.lastFilter)
	}
}
