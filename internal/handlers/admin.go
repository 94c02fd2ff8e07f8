package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/services"
)

const (
	maxAdminPageSize = 200
	maxAdminBodySize = 16 * 1024
)

// AdminDeps wires the services backing the /admin group. Nil services answer 503.
type AdminDeps struct {
	Orders    services.OrderService
	Inventory services.InventoryService
	Dashboard services.DashboardService
	Catalog   services.CatalogService
}

// AdminHandlers exposes back-office endpoints for orders, returns, stock and the catalog.
type AdminHandlers struct {
	authn     *auth.Authenticator
	orders    services.OrderService
	inventory services.InventoryService
	dashboard services.DashboardService
	catalog   services.CatalogService
}

// NewAdminHandlers constructs admin handlers. Every route requires an admin or staff role.
func NewAdminHandlers(authn *auth.Authenticator, deps AdminDeps) *AdminHandlers {
	return &AdminHandlers{
		authn:     authn,
		orders:    deps.Orders,
		inventory: deps.Inventory,
		dashboard: deps.Dashboard,
		catalog:   deps.Catalog,
	}
}

// Routes registers the /admin endpoints.
func (h *AdminHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth(auth.BackOfficeRoles...))
	}

	r.Route("/orders", func(rt chi.Router) {
		rt.Get("/", h.listOrders)
		rt.Post("/{orderID}:confirm-payment", h.confirmPayment)
		rt.Put("/{orderID}/status", h.updateStatus)
	})
	r.Route("/returns", func(rt chi.Router) {
		rt.Get("/", h.listReturns)
		rt.Post("/{orderID}:approve", h.approveReturn)
		rt.Post("/{orderID}:reject", h.rejectReturn)
		rt.Post("/{orderID}:receive", h.receiveReturn)
		rt.Post("/{orderID}:refund", h.initiateRefund)
		rt.Post("/{orderID}:refund-complete", h.completeRefund)
	})

	r.Get("/dashboard", h.getDashboard)
	r.Route("/stock", func(rt chi.Router) {
		rt.Get("/summary", h.stockSummary)
		rt.Get("/category/{category}", h.stockByCategory)
		rt.Put("/{productID}", h.setStock)
	})

	r.Route("/products", func(rt chi.Router) {
		rt.Get("/", h.listProducts)
		rt.Post("/", h.createProduct)
		rt.Get("/{productID}", h.getProduct)
		rt.Put("/{productID}", h.updateProduct)
		rt.Delete("/{productID}", h.deleteProduct)
	})
}

func orderIDParam(r *http.Request) string {
	return strings.TrimSpace(chi.URLParam(r, "orderID"))
}
