package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hanko-field/storefront/internal/platform/auth"
	"github.com/hanko-field/storefront/internal/platform/httpx"
	"github.com/hanko-field/storefront/internal/platform/pagination"
	"github.com/hanko-field/storefront/internal/platform/requestctx"
	"github.com/hanko-field/storefront/internal/services"
)

const defaultBodyLimit = 16 * 1024

var (
	errBodyTooLarge = errors.New("request body too large")
	errEmptyBody    = errors.New("request body is required")
)

// serviceErrors translates the service error taxonomy into response envelopes. Order matters:
// precise sentinels come before the broad kinds they wrap.
var serviceErrors = httpx.ErrorTable{
	{Target: pagination.ErrInvalidPageSize, Code: "invalid_request", Status: http.StatusBadRequest},
	{Target: pagination.ErrInvalidPageToken, Code: "invalid_request", Status: http.StatusBadRequest},
	{Target: services.ErrValidation, Code: "invalid_request", Status: http.StatusBadRequest},
	{Target: services.ErrEmptyCart, Code: "empty_cart", Status: http.StatusUnprocessableEntity, Message: "cart is empty"},
	{Target: services.ErrUnauthorized, Code: "forbidden", Status: http.StatusForbidden, Message: "resource belongs to another user"},
	{Target: services.ErrNotFound, Code: "not_found", Status: http.StatusNotFound},
	{Target: services.ErrInsufficientStock, Code: "insufficient_stock", Status: http.StatusConflict},
	{Target: services.ErrAlreadyConfirmed, Code: "payment_already_confirmed", Status: http.StatusConflict, Message: "payment already confirmed"},
	{Target: services.ErrDuplicateRequest, Code: "duplicate_request", Status: http.StatusConflict},
	{Target: services.ErrInvalidTransition, Code: "invalid_transition", Status: http.StatusConflict},
	{Target: services.ErrConflict, Code: "conflict", Status: http.StatusConflict},
	{Target: services.ErrReturnWindowExpired, Code: "return_window_expired", Status: http.StatusUnprocessableEntity, Message: "return window has expired"},
	{Target: services.ErrMissingData, Code: "missing_data", Status: http.StatusUnprocessableEntity},
	{Target: services.ErrUnavailable, Code: "service_unavailable", Status: http.StatusServiceUnavailable, Message: "backing store unavailable"},
	{Target: context.DeadlineExceeded, Code: "timeout", Status: http.StatusGatewayTimeout, Message: "request timed out"},
}

// writeServiceError resolves err against the service table. Unmapped errors are logged and
// reported as 500 without leaking their text.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	fallback := httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError)
	resolved := serviceErrors.Resolve(err, fallback)
	if resolved.Status >= http.StatusInternalServerError {
		requestctx.Logger(ctx).Error("request failed", zap.Error(err), zap.String("code", resolved.Code))
	}
	httpx.WriteError(ctx, w, resolved)
}

func writeUnavailable(ctx context.Context, w http.ResponseWriter, name string) {
	httpx.WriteError(ctx, w, httpx.NewError(name+"_service_unavailable", name+" service is unavailable", http.StatusServiceUnavailable))
}

// requireIdentity returns the authenticated identity or writes 401.
func requireIdentity(ctx context.Context, w http.ResponseWriter) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity == nil || strings.TrimSpace(identity.UID) == "" {
		httpx.WriteError(ctx, w, httpx.NewError("unauthenticated", "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	return identity, true
}

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultBodyLimit
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, limit+1))
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads and decodes the request body into dst. When optional is set an empty
// body leaves dst untouched.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, limit int64, dst any, optional bool) bool {
	ctx := r.Context()
	body, err := readLimitedBody(r, limit)
	switch {
	case errors.Is(err, errEmptyBody) && optional:
		return true
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
		return false
	case err != nil:
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return false
	}
	if err := json.Unmarshal(body, dst); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return false
	}
	return true
}

func parsePager(w http.ResponseWriter, r *http.Request, maxPageSize int) (services.Pagination, bool) {
	pager, err := pagination.Parse(r.URL.Query(), maxPageSize)
	if err != nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return services.Pagination{}, false
	}
	return pager, true
}

func parseFilterValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{})
	filters := make([]string, 0, len(values))
	for _, raw := range values {
		for _, part := range strings.Split(raw, ",") {
			trimmed := strings.ToUpper(strings.TrimSpace(part))
			if trimmed == "" {
				continue
			}
			if _, exists := seen[trimmed]; exists {
				continue
			}
			seen[trimmed] = struct{}{}
			filters = append(filters, trimmed)
		}
	}
	return filters
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}

// writeJSONResponse marks responses as uncacheable since every payload is user or admin scoped.
func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Cache-Control", "no-store")
	httpx.WriteJSON(w, status, payload)
}

func actorID(identity *auth.Identity) string {
	if identity == nil {
		return ""
	}
	return strings.TrimSpace(identity.UID)
}
