package firestore

import (
	"testing"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
)

func TestCartDocumentMirrorsItemAndProductIDs(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.FixedZone("JST", 9*3600))
	cart := domain.Cart{
		ID:     "cart_1",
		UserID: "user-1",
		Items: []domain.CartItem{
			{ID: "ci_1", ProductID: "prd_a", Quantity: 2, AddedAt: now},
			{ID: "ci_2", ProductID: "prd_b", Quantity: 1, AddedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	doc := newCartDocument(cart)
	if len(doc.ItemIDs) != 2 || doc.ItemIDs[1] != "ci_2" {
		t.Fatalf("expected item ids to mirror items, got %v", doc.ItemIDs)
	}
	if len(doc.ProductIDs) != 2 || doc.ProductIDs[0] != "prd_a" {
		t.Fatalf("expected product ids to mirror items, got %v", doc.ProductIDs)
	}
	if doc.CreatedAt.Location() != time.UTC {
		t.Fatalf("expected timestamps stored in UTC")
	}

	empty := newCartDocument(domain.Cart{ID: "cart_2", UserID: "user-2"})
	if empty.Items == nil || empty.ItemIDs == nil {
		t.Fatalf("expected empty slices so array-contains queries see an array field")
	}
}

func TestOrderDocumentKeepsAbsentReturnStatusNil(t *testing.T) {
	order := domain.Order{
		ID:            "ord_1",
		UserID:        "user-1",
		Status:        domain.OrderStatusOrderPlaced,
		PaymentStatus: domain.PaymentStatusPending,
		Items:         []domain.OrderItem{{ProductID: "prd_a", ProductName: "Pen", Quantity: 2, UnitPrice: 500}},
		TotalAmount:   1000,
		Currency:      "JPY",
	}

	restored := newOrderDocument(order).toDomain("ord_1")
	if restored.ReturnStatus != nil {
		t.Fatalf("expected no return status, got %v", *restored.ReturnStatus)
	}
	if restored.ItemsTotal() != 1000 {
		t.Fatalf("expected item snapshot to survive, got total %d", restored.ItemsTotal())
	}

	status := domain.ReturnStatusRequested
	order.ReturnStatus = &status
	restored = newOrderDocument(order).toDomain("ord_1")
	if restored.CurrentReturnStatus() != domain.ReturnStatusRequested {
		t.Fatalf("expected return status REQUESTED, got %q", restored.CurrentReturnStatus())
	}
}

func TestProductDocumentFoldsCategoryKey(t *testing.T) {
	doc := newProductDocument(domain.Product{ID: "prd_1", Category: "Stationery"})
	if doc.CategoryKey != "stationery" {
		t.Fatalf("expected folded category key, got %q", doc.CategoryKey)
	}
}
