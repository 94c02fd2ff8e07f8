package textutil

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/cases"
)

var strictPolicy = bluemonday.StrictPolicy()

// PlainText strips all markup from free-form user input, collapses whitespace and truncates to
// limit runes. A non-positive limit disables truncation.
func PlainText(value string, limit int) string {
	cleaned := html.UnescapeString(strictPolicy.Sanitize(value))
	cleaned = strings.Join(strings.Fields(cleaned), " ")
	if limit > 0 && utf8.RuneCountInString(cleaned) > limit {
		runes := []rune(cleaned)
		cleaned = strings.TrimSpace(string(runes[:limit]))
	}
	return cleaned
}

// Fold returns the case-folded form of value for caseless comparison. Casers are stateful, so a
// fresh one is built per call.
func Fold(value string) string {
	return cases.Fold().String(strings.TrimSpace(value))
}

// EqualFold reports whether a and b match after trimming and Unicode case folding.
func EqualFold(a, b string) bool {
	return Fold(a) == Fold(b)
}
