package repositories

import domain "github.com/hanko-field/storefront/internal/domain"

// MatchesOrderFilter reports whether order satisfies every populated field of filter.
// Backends that cannot express the whole filter natively apply it after fetching.
func MatchesOrderFilter(order domain.Order, filter OrderListFilter) bool {
	if filter.UserID != "" && order.UserID != filter.UserID {
		return false
	}
	if len(filter.Status) > 0 && !containsString(filter.Status, string(order.Status)) {
		return false
	}
	returnStatus := string(order.CurrentReturnStatus())
	if filter.HasReturn && returnStatus == "" {
		return false
	}
	if len(filter.ReturnStatus) > 0 && !containsString(filter.ReturnStatus, returnStatus) {
		return false
	}
	if returnStatus != "" && containsString(filter.ExcludeReturn, returnStatus) {
		return false
	}
	return true
}

func containsString(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
