package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/services"
)

const (
	maxCartBodySize  = 16 * 1024
	maxMergeCartSize = 256
)

// CartHandlers exposes authenticated cart endpoints for the current user.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

// NewCartHandlers constructs handlers enforcing Firebase authentication before invoking the cart service.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireFirebaseAuth())
	}
	r.Get("/", h.getCart)
	r.Delete("/", h.clearCart)
	r.Post("/items", h.addItem)
	r.Put("/items/{itemID}", h.setQuantity)
	r.Delete("/items/{itemID}", h.removeItem)
}

// MergeRoutes wires POST /cart:merge onto the API root router.
func (h *CartHandlers) MergeRoutes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.With(h.authn.RequireFirebaseAuth()).Post("/cart:merge", h.mergeCart)
		return
	}
	r.Post("/cart:merge", h.mergeCart)
}

type addCartItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

type setCartItemRequest struct {
	Quantity *int `json:"quantity"`
}

type mergeCartRequest struct {
	Items []addCartItemRequest `json:"items"`
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	view, err := h.carts.GetCart(ctx, identity.UID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeCart(w, http.StatusOK, view)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req addCartItemRequest
	if !decodeJSONBody(w, r, maxCartBodySize, &req, false) {
		return
	}
	// An omitted quantity adds a single unit.
	qty := 1
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	view, err := h.carts.AddItem(ctx, services.AddCartItemCommand{
		UserID:    identity.UID,
		ProductID: strings.TrimSpace(req.ProductID),
		Quantity:  qty,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeCart(w, http.StatusOK, view)
}

func (h *CartHandlers) setQuantity(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req setCartItemRequest
	if !decodeJSONBody(w, r, maxCartBodySize, &req, false) {
		return
	}
	if req.Quantity == nil {
		writeServiceError(ctx, w, fmt.Errorf("%w: quantity is required", services.ErrCartInvalidInput))
		return
	}

	view, err := h.carts.SetQuantity(ctx, services.SetCartItemQuantityCommand{
		UserID:   identity.UID,
		ItemID:   strings.TrimSpace(chi.URLParam(r, "itemID")),
		Quantity: *req.Quantity,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeCart(w, http.StatusOK, view)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	view, err := h.carts.RemoveItem(ctx, services.RemoveCartItemCommand{
		UserID: identity.UID,
		ItemID: strings.TrimSpace(chi.URLParam(r, "itemID")),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeCart(w, http.StatusOK, view)
}

func (h *CartHandlers) clearCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	if err := h.carts.Clear(ctx, identity.UID); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CartHandlers) mergeCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.carts == nil {
		writeUnavailable(ctx, w, "cart")
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	var req mergeCartRequest
	if !decodeJSONBody(w, r, maxCartBodySize, &req, false) {
		return
	}
	if len(req.Items) > maxMergeCartSize {
		writeServiceError(ctx, w, fmt.Errorf("%w: at most %d items may be merged", services.ErrCartInvalidInput, maxMergeCartSize))
		return
	}
	lines := make([]services.StockLine, 0, len(req.Items))
	for _, item := range req.Items {
		qty := 1
		if item.Quantity != nil {
			qty = *item.Quantity
		}
		lines = append(lines, services.StockLine{ProductID: strings.TrimSpace(item.ProductID), Quantity: qty})
	}

	view, err := h.carts.Merge(ctx, services.MergeCartCommand{UserID: identity.UID, Items: lines})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeCart(w, http.StatusOK, view)
}

func writeCart(w http.ResponseWriter, status int, view services.CartView) {
	if !view.Cart.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", view.Cart.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	if etag := buildCartETag(view.Cart); etag != "" {
		w.Header().Set("ETag", etag)
	}
	writeJSONResponse(w, status, cartResponse{Cart: buildCartPayload(view)})
}

func buildCartPayload(view services.CartView) cartPayload {
	cart := view.Cart
	payload := cartPayload{
		ID:        strings.TrimSpace(cart.ID),
		UserID:    strings.TrimSpace(cart.UserID),
		Items:     make([]cartLinePayload, 0, len(view.Lines)),
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
	for _, line := range view.Lines {
		payload.Items = append(payload.Items, cartLinePayload{
			ID:          line.ItemID,
			ProductID:   line.ProductID,
			Name:        line.Name,
			Description: line.Description,
			Category:    line.Category,
			Brand:       line.Brand,
			Price:       line.Price,
			Image:       line.Image,
			Quantity:    line.Quantity,
			Available:   line.Available,
		})
		payload.ItemsCount += line.Quantity
		if line.Available {
			payload.Subtotal += line.Price * int64(line.Quantity)
		}
	}
	return payload
}

func buildCartETag(cart services.Cart) string {
	if strings.TrimSpace(cart.ID) == "" || cart.UpdatedAt.IsZero() {
		return ""
	}
	input := fmt.Sprintf("%s:%d:%d", strings.TrimSpace(cart.ID), cart.UpdatedAt.UTC().UnixNano(), len(cart.Items))
	sum := sha256.Sum256([]byte(input))
	return fmt.Sprintf(`W/"%s"`, hex.EncodeToString(sum[:8]))
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type cartPayload struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	ItemsCount int               `json:"items_count"`
	Subtotal   int64             `json:"subtotal"`
	Items      []cartLinePayload `json:"items"`
	UpdatedAt  string            `json:"updated_at,omitempty"`
}

type cartLinePayload struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Brand       string `json:"brand,omitempty"`
	Price       int64  `json:"price"`
	Image       string `json:"image,omitempty"`
	Quantity    int    `json:"quantity"`
	Available   bool   `json:"available"`
}
