package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/services"
)

func newCartRouter(handler *CartHandlers) chi.Router {
	router := chi.NewRouter()
	handler.MergeRoutes(router)
	router.Route("/cart", handler.Routes)
	return router
}

func TestCartHandlersGetCartSuccess(t *testing.T) {
	updated := time.Date(2024, 5, 12, 10, 0, 0, 0, time.UTC)
	service := &stubCartService{
		getFunc: func(ctx context.Context, userID string) (services.CartView, error) {
			if userID != "user-7" {
				t.Fatalf("unexpected user id %q", userID)
			}
			return services.CartView{
				Cart: services.Cart{
					ID:        "cart-1",
					UserID:    "user-7",
					Items:     []services.CartItem{{ID: "item-1", ProductID: "prod-1", Quantity: 2}, {ID: "item-2", ProductID: "gone", Quantity: 1}},
					UpdatedAt: updated,
				},
				Lines: []services.CartLine{
					{ItemID: "item-1", ProductID: "prod-1", Name: "Tea", Price: 1200, Quantity: 2, Available: true},
					{ItemID: "item-2", ProductID: "gone", Quantity: 1, Available: false},
				},
			}, nil
		},
	}

	router := newCartRouter(NewCartHandlers(nil, service))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodGet, "/cart", "", &auth.Identity{UID: "user-7"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if cc := rr.Header().Get("Cache-Control"); !strings.Contains(cc, "no-store") {
		t.Fatalf("expected Cache-Control no-store, got %q", cc)
	}
	if rr.Header().Get("ETag") == "" || rr.Header().Get("Last-Modified") == "" {
		t.Fatalf("expected cache validators, got %v", rr.Header())
	}

	var resp cartResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Cart.ID != "cart-1" || len(resp.Cart.Items) != 2 {
		t.Fatalf("unexpected cart payload %+v", resp.Cart)
	}
	if resp.Cart.ItemsCount != 3 {
		t.Fatalf("expected 3 units, got %d", resp.Cart.ItemsCount)
	}
	if resp.Cart.Subtotal != 2400 {
		t.Fatalf("expected subtotal to skip unavailable lines, got %d", resp.Cart.Subtotal)
	}
}

func TestCartHandlersRequireIdentity(t *testing.T) {
	router := newCartRouter(NewCartHandlers(nil, &stubCartService{}))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodGet, "/cart", "", nil))

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCartHandlersServiceUnavailable(t *testing.T) {
	router := newCartRouter(NewCartHandlers(nil, nil))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodGet, "/cart", "", &auth.Identity{UID: "u"}))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if body := decodeBody(t, rr); body["error"] != "cart_service_unavailable" {
		t.Fatalf("unexpected error code %v", body["error"])
	}
}

func TestCartHandlersAddItemDefaultsQuantity(t *testing.T) {
	var got services.AddCartItemCommand
	service := &stubCartService{
		addFunc: func(ctx context.Context, cmd services.AddCartItemCommand) (services.CartView, error) {
			got = cmd
			return services.CartView{Cart: services.Cart{ID: "cart-1"}}, nil
		},
	}
	router := newCartRouter(NewCartHandlers(nil, service))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodPost, "/cart/items", `{"product_id":" prod-9 "}`, &auth.Identity{UID: "user-1"}))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.UserID != "user-1" || got.ProductID != "prod-9" || got.Quantity != 1 {
		t.Fatalf("unexpected command %+v", got)
	}
}

func TestCartHandlersAddItemErrors(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		err    error
		status int
		code   string
	}{
		{name: "invalid json", body: `{`, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "empty body", body: "", status: http.StatusBadRequest, code: "invalid_request"},
		{name: "unknown product", body: `{"product_id":"nope","quantity":1}`, err: fmt.Errorf("%w: nope", services.ErrCartProductNotFound), status: http.StatusNotFound, code: "not_found"},
		{name: "bad quantity", body: `{"product_id":"p","quantity":0}`, err: services.ErrCartInvalidInput, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "backend down", body: `{"product_id":"p"}`, err: fmt.Errorf("%w: timeout", services.ErrUnavailable), status: http.StatusServiceUnavailable, code: "service_unavailable"},
		{name: "unexpected", body: `{"product_id":"p"}`, err: fmt.Errorf("boom"), status: http.StatusInternalServerError, code: "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			service := &stubCartService{
				addFunc: func(context.Context, services.AddCartItemCommand) (services.CartView, error) {
					return services.CartView{}, tc.err
				},
			}
			router := newCartRouter(NewCartHandlers(nil, service))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, newAuthedRequest(http.MethodPost, "/cart/items", tc.body, &auth.Identity{UID: "user-1"}))

			if rr.Code != tc.status {
				t.Fatalf("expected %d, got %d: %s", tc.status, rr.Code, rr.Body.String())
			}
			body := decodeBody(t, rr)
			if body["error"] != tc.code {
				t.Fatalf("expected code %s, got %v", tc.code, body["error"])
			}
			if tc.code == "internal_error" && body["message"] == "boom" {
				t.Fatalf("internal error text must not leak")
			}
		})
	}
}

func TestCartHandlersSetQuantity(t *testing.T) {
	var got services.SetCartItemQuantityCommand
	service := &stubCartService{
		setFunc: func(ctx context.Context, cmd services.SetCartItemQuantityCommand) (services.CartView, error) {
			got = cmd
			return services.CartView{}, nil
		},
	}
	router := newCartRouter(NewCartHandlers(nil, service))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodPut, "/cart/items/item-4", `{"quantity":3}`, &auth.Identity{UID: "user-1"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if got.ItemID != "item-4" || got.Quantity != 3 || got.UserID != "user-1" {
		t.Fatalf("unexpected command %+v", got)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodPut, "/cart/items/item-4", `{}`, &auth.Identity{UID: "user-1"}))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 without quantity, got %d", rr.Code)
	}
}

func TestCartHandlersRemoveItemForeignCart(t *testing.T) {
	service := &stubCartService{
		removeFunc: func(ctx context.Context, cmd services.RemoveCartItemCommand) (services.CartView, error) {
			return services.CartView{}, services.ErrCartUnauthorized
		},
	}
	router := newCartRouter(NewCartHandlers(nil, service))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodDelete, "/cart/items/item-9", "", &auth.Identity{UID: "user-1"}))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestCartHandlersClear(t *testing.T) {
	cleared := ""
	service := &stubCartService{
		clearFunc: func(ctx context.Context, userID string) error {
			cleared = userID
			return nil
		},
	}
	router := newCartRouter(NewCartHandlers(nil, service))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, newAuthedRequest(http.MethodDelete, "/cart", "", &auth.Identity{UID: "user-3"}))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if cleared != "user-3" {
		t.Fatalf("expected cart of user-3 to be cleared, got %q", cleared)
	}
}

func TestCartHandlersMerge(t *testing.T) {
	var got services.MergeCartCommand
	service := &stubCartService{
		mergeFunc: func(ctx context.Context, cmd services.MergeCartCommand) (services.CartView, error) {
			got = cmd
			return services.CartView{}, nil
		},
	}
	router := newCartRouter(NewCartHandlers(nil, service))

	rr := httptest.NewRecorder()
	body := `{"items":[{"product_id":"a","quantity":2},{"product_id":"b"}]}`
	router.ServeHTTP(rr, newAuthedRequest(http.MethodPost, "/cart:merge", body, &auth.Identity{UID: "user-1"}))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if len(got.Items) != 2 || got.Items[0] != (services.StockLine{ProductID: "a", Quantity: 2}) || got.Items[1].Quantity != 1 {
		t.Fatalf("unexpected merge command %+v", got)
	}
}

func TestBuildCartETagChangesWithUpdate(t *testing.T) {
	base := services.Cart{ID: "cart-1", UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	later := base
	later.UpdatedAt = base.UpdatedAt.Add(time.Second)

	if buildCartETag(base) == buildCartETag(later) {
		t.Fatalf("expected etag to change with updated_at")
	}
	if buildCartETag(services.Cart{}) != "" {
		t.Fatalf("expected empty etag for unsaved cart")
	}
}
