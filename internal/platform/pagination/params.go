package pagination

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	domain "github.com/hanko-field/storefront/internal/domain"
)

const (
	// DefaultPageSize defines the fallback number of items returned when the client omits page_size.
	DefaultPageSize = 50
	// DefaultMaxPageSize caps the supported page_size to prevent unbounded listings.
	DefaultMaxPageSize = 200
)

var (
	ErrInvalidPageSize  = errors.New("pagination: invalid page_size")
	ErrInvalidPageToken = errors.New("pagination: invalid page_token")
)

// Parse reads page_size and page_token from the query string.
func Parse(values url.Values, maxPageSize int) (domain.Pagination, error) {
	if maxPageSize <= 0 {
		maxPageSize = DefaultMaxPageSize
	}
	pager := domain.Pagination{PageSize: DefaultPageSize}
	if pager.PageSize > maxPageSize {
		pager.PageSize = maxPageSize
	}

	if raw := strings.TrimSpace(values.Get("page_size")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil {
			return domain.Pagination{}, fmt.Errorf("%w: must be an integer", ErrInvalidPageSize)
		}
		if size <= 0 {
			return domain.Pagination{}, fmt.Errorf("%w: must be greater than zero", ErrInvalidPageSize)
		}
		if size > maxPageSize {
			size = maxPageSize
		}
		pager.PageSize = size
	}

	token := strings.TrimSpace(values.Get("page_token"))
	if token != "" {
		if _, err := DecodeOffset(token); err != nil {
			return domain.Pagination{}, err
		}
		pager.PageToken = token
	}
	return pager, nil
}

// Slice pages an in-memory result set using offset tokens.
func Slice[T any](items []T, pager domain.Pagination) (domain.CursorPage[T], error) {
	offset, err := DecodeOffset(pager.PageToken)
	if err != nil {
		return domain.CursorPage[T]{}, err
	}
	size := pager.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	if offset >= len(items) {
		return domain.CursorPage[T]{Items: []T{}}, nil
	}
	end := offset + size
	page := domain.CursorPage[T]{}
	if end < len(items) {
		page.NextPageToken = EncodeOffset(end)
	} else {
		end = len(items)
	}
	page.Items = append([]T(nil), items[offset:end]...)
	return page, nil
}
