package pagination

import (
	"errors"
	"net/url"
	"testing"

	domain "github.com/hanko-field/storefront/internal/domain"
)

func TestParseDefaults(t *testing.T) {
	pager, err := Parse(url.Values{}, 0)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if pager.PageSize != DefaultPageSize {
		t.Fatalf("expected default page size %d got %d", DefaultPageSize, pager.PageSize)
	}
	if pager.PageToken != "" {
		t.Fatalf("expected empty token, got %q", pager.PageToken)
	}
}

func TestParsePageSize(t *testing.T) {
	values := url.Values{}
	values.Set("page_size", "400")
	pager, err := Parse(values, 40)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if pager.PageSize != 40 {
		t.Fatalf("expected clamp to 40 got %d", pager.PageSize)
	}

	values.Set("page_size", "abc")
	if _, err := Parse(values, 40); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize, got %v", err)
	}

	values.Set("page_size", "0")
	if _, err := Parse(values, 40); !errors.Is(err, ErrInvalidPageSize) {
		t.Fatalf("expected ErrInvalidPageSize for zero, got %v", err)
	}
}

func TestParseRejectsGarbageToken(t *testing.T) {
	values := url.Values{}
	values.Set("page_token", "%%%")
	if _, err := Parse(values, 0); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}

func TestSliceWalksPages(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	page, err := Slice(items, domain.Pagination{PageSize: 2})
	if err != nil {
		t.Fatalf("Slice: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0] != 1 || page.NextPageToken == "" {
		t.Fatalf("unexpected first page: %#v", page)
	}

	var seen []int
	seen = append(seen, page.Items...)
	for page.NextPageToken != "" {
		page, err = Slice(items, domain.Pagination{PageSize: 2, PageToken: page.NextPageToken})
		if err != nil {
			t.Fatalf("Slice: %v", err)
		}
		seen = append(seen, page.Items...)
	}
	if len(seen) != len(items) {
		t.Fatalf("expected %d items, got %v", len(items), seen)
	}
}

func TestDecodeOffsetRoundTrip(t *testing.T) {
	offset, err := DecodeOffset(EncodeOffset(17))
	if err != nil {
		t.Fatalf("DecodeOffset: %v", err)
	}
	if offset != 17 {
		t.Fatalf("expected 17, got %d", offset)
	}
	if EncodeOffset(0) != "" {
		t.Fatal("expected empty token for zero offset")
	}
}
