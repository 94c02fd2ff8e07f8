package observability

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	defaultStringLimit = 256
	routeLimit         = 180
	methodLimit        = 10
	userIDLimit        = 64
)

// sanitizeString drops control characters, line breaks included, so one value cannot forge a log
// line, then truncates to limit runes.
func sanitizeString(value string, limit int) string {
	if limit <= 0 {
		limit = defaultStringLimit
	}
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) || r == utf8.RuneError {
			return -1
		}
		return r
	}, value)
	if utf8.RuneCountInString(cleaned) <= limit {
		return cleaned
	}
	runes := []rune(cleaned)
	return string(runes[:limit])
}

// SanitizeRoute returns a loggable path without query string.
func SanitizeRoute(route string) string {
	route, _, _ = strings.Cut(route, "?")
	if route == "" {
		return "/"
	}
	return sanitizeString(route, routeLimit)
}

func SanitizeMethod(method string) string {
	return strings.ToUpper(sanitizeString(method, methodLimit))
}

func SanitizeUserID(uid string) string {
	return sanitizeString(strings.TrimSpace(uid), userIDLimit)
}
