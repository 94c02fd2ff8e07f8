package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hanko-field/storefront/internal/platform/httpx"
)

const (
	apiPrefix      = "/api/v1"
	requestTimeout = 60 * time.Second
)

// RouteRegistrar registers a set of routes against the provided router.
type RouteRegistrar func(r chi.Router)

// Routes names the storefront route groups. A nil group is simply not mounted.
type Routes struct {
	Health *HealthHandlers
	// CartMerge is registered on the API root because /cart:merge is a sibling of /cart.
	CartMerge RouteRegistrar
	Cart      RouteRegistrar
	Orders    RouteRegistrar
	Admin     RouteRegistrar
}

// Option customises the router.
type Option func(*[]func(http.Handler) http.Handler)

// WithMiddlewares appends global middleware after request id, real ip and timeout.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(chain *[]func(http.Handler) http.Handler) {
		*chain = append(*chain, mw...)
	}
}

// NewRouter serves /healthz and /readyz at the root and every other group under /api/v1.
func NewRouter(routes Routes, opts ...Option) chi.Router {
	chain := []func(http.Handler) http.Handler{
		middleware.RequestID,
		middleware.RealIP,
		middleware.Timeout(requestTimeout),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&chain)
		}
	}

	r := chi.NewRouter()
	for _, mw := range chain {
		if mw != nil {
			r.Use(mw)
		}
	}
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	health := routes.Health
	if health == nil {
		health = NewHealthHandlers()
	}
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	r.Route(apiPrefix, func(api chi.Router) {
		if routes.CartMerge != nil {
			routes.CartMerge(api)
		}
		for path, registrar := range map[string]RouteRegistrar{
			"/cart":   routes.Cart,
			"/orders": routes.Orders,
			"/admin":  routes.Admin,
		} {
			if registrar != nil {
				api.Route(path, registrar)
			}
		}
	})
	return r
}
