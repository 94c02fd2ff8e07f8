package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/services"
)

type setStockRequest struct {
	Stock *int `json:"stock"`
}

type productRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Brand       string `json:"brand"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
	Image       string `json:"image"`
}

func (h *AdminHandlers) getDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.dashboard == nil {
		writeUnavailable(ctx, w, "dashboard")
		return
	}
	dashboard, err := h.dashboard.Dashboard(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	payload := dashboardPayload{
		TotalProducts:  dashboard.TotalProducts,
		TotalOrders:    dashboard.TotalOrders,
		TotalCustomers: dashboard.TotalCustomers,
		TotalRevenue:   dashboard.TotalRevenue,
		LowStock:       buildProductPayloads(dashboard.LowStock),
		StockSummary:   buildStockSummaryPayloads(dashboard.StockSummary),
		GeneratedAt:    formatTime(dashboard.GeneratedAt),
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *AdminHandlers) stockSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.dashboard == nil {
		writeUnavailable(ctx, w, "dashboard")
		return
	}
	summary, err := h.dashboard.StockSummary(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": buildStockSummaryPayloads(summary)})
}

func (h *AdminHandlers) stockByCategory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.dashboard == nil {
		writeUnavailable(ctx, w, "dashboard")
		return
	}
	category, err := url.PathUnescape(chi.URLParam(r, "category"))
	if err != nil {
		writeServiceError(ctx, w, fmt.Errorf("%w: category is malformed", services.ErrValidation))
		return
	}
	products, err := h.dashboard.StockByCategory(ctx, strings.TrimSpace(category))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": buildProductPayloads(products)})
}

func (h *AdminHandlers) setStock(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.inventory == nil {
		writeUnavailable(ctx, w, "inventory")
		return
	}
	identity, _ := auth.IdentityFromContext(ctx)

	var req setStockRequest
	if !decodeJSONBody(w, r, maxAdminBodySize, &req, false) {
		return
	}
	if req.Stock == nil {
		writeServiceError(ctx, w, fmt.Errorf("%w: stock is required", services.ErrInventoryInvalidInput))
		return
	}

	product, err := h.inventory.SetStock(ctx, services.SetStockCommand{
		ProductID: strings.TrimSpace(chi.URLParam(r, "productID")),
		Stock:     *req.Stock,
		ActorID:   actorID(identity),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *AdminHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	pager, ok := parsePager(w, r, maxAdminPageSize)
	if !ok {
		return
	}

	page, err := h.catalog.ListProducts(ctx, services.ProductListFilter{
		Category:   strings.TrimSpace(r.URL.Query().Get("category")),
		Pagination: pager,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productListResponse{
		Items:         buildProductPayloads(page.Items),
		NextPageToken: page.NextPageToken,
	})
}

func (h *AdminHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	product, err := h.catalog.GetProduct(ctx, strings.TrimSpace(chi.URLParam(r, "productID")))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *AdminHandlers) createProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	var req productRequest
	if !decodeJSONBody(w, r, maxAdminBodySize, &req, false) {
		return
	}

	product, err := h.catalog.CreateProduct(ctx, req.command(strings.TrimSpace(req.ID)))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/api/v1/admin/products/"+product.ID)
	writeJSONResponse(w, http.StatusCreated, productResponse{Product: buildProductPayload(product)})
}

func (h *AdminHandlers) updateProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	var req productRequest
	if !decodeJSONBody(w, r, maxAdminBodySize, &req, false) {
		return
	}
	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if body := strings.TrimSpace(req.ID); body != "" && body != productID {
		writeServiceError(ctx, w, fmt.Errorf("%w: id does not match path", services.ErrCatalogInvalidInput))
		return
	}

	product, err := h.catalog.UpdateProduct(ctx, req.command(productID))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *AdminHandlers) deleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		writeUnavailable(ctx, w, "catalog")
		return
	}
	if err := h.catalog.DeleteProduct(ctx, strings.TrimSpace(chi.URLParam(r, "productID"))); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (req productRequest) command(id string) services.UpsertProductCommand {
	return services.UpsertProductCommand{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Brand:       req.Brand,
		Price:       req.Price,
		Stock:       req.Stock,
		Image:       req.Image,
	}
}

func buildProductPayloads(products []services.Product) []productPayload {
	out := make([]productPayload, 0, len(products))
	for _, product := range products {
		out = append(out, buildProductPayload(product))
	}
	return out
}

func buildProductPayload(product services.Product) productPayload {
	return productPayload{
		ID:          product.ID,
		Name:        product.Name,
		Description: product.Description,
		Category:    product.Category,
		Brand:       product.Brand,
		Price:       product.Price,
		Stock:       product.Stock,
		Image:       product.Image,
		CreatedAt:   formatTime(product.CreatedAt),
		UpdatedAt:   formatTime(product.UpdatedAt),
	}
}

func buildStockSummaryPayloads(summary []services.StockSummary) []stockSummaryPayload {
	out := make([]stockSummaryPayload, 0, len(summary))
	for _, entry := range summary {
		out = append(out, stockSummaryPayload{
			Category:     entry.Category,
			TotalStock:   entry.TotalStock,
			ProductCount: entry.ProductCount,
		})
	}
	return out
}

type productResponse struct {
	Product productPayload `json:"product"`
}

type productListResponse struct {
	Items         []productPayload `json:"items"`
	NextPageToken string           `json:"next_page_token,omitempty"`
}

type productPayload struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category"`
	Brand       string `json:"brand,omitempty"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
	Image       string `json:"image,omitempty"`
	CreatedAt   string `json:"created_at,omitempty"`
	UpdatedAt   string `json:"updated_at,omitempty"`
}

type stockSummaryPayload struct {
	Category     string `json:"category"`
	TotalStock   int    `json:"total_stock"`
	ProductCount int    `json:"product_count"`
}

type dashboardPayload struct {
	TotalProducts  int                   `json:"total_products"`
	TotalOrders    int                   `json:"total_orders"`
	TotalCustomers int                   `json:"total_customers"`
	TotalRevenue   int64                 `json:"total_revenue"`
	LowStock       []productPayload      `json:"low_stock"`
	StockSummary   []stockSummaryPayload `json:"stock_summary"`
	GeneratedAt    string                `json:"generated_at,omitempty"`
}
