//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	domain "github.com/hanko-field/storefront/internal/domain"
	pconfig "github.com/hanko-field/storefront/internal/platform/config"
	pfirestore "github.com/hanko-field/storefront/internal/platform/firestore"
	"github.com/hanko-field/storefront/internal/repositories"
	rfirestore "github.com/hanko-field/storefront/internal/repositories/firestore"
)

func newEmulatorRegistry(t *testing.T) *rfirestore.Registry {
	t.Helper()
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{
		ProjectID:    "storefront-test-" + time.Now().Format("150405.000000"),
		EmulatorHost: host,
	})
	registry, err := rfirestore.NewRegistry(provider)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	t.Cleanup(func() { _ = registry.Close(context.Background()) })
	return registry
}

func TestReserveIsAllOrNothing(t *testing.T) {
	registry := newEmulatorRegistry(t)
	ctx := context.Background()
	now := time.Now().UTC()

	for _, p := range []domain.Product{
		{ID: "prd_a", Name: "A", Category: "Pens", Price: 100, Stock: 5, CreatedAt: now, UpdatedAt: now},
		{ID: "prd_b", Name: "B", Category: "Pens", Price: 200, Stock: 1, CreatedAt: now, UpdatedAt: now},
	} {
		if err := registry.Products().Insert(ctx, p); err != nil {
			t.Fatalf("Insert %s: %v", p.ID, err)
		}
	}

	_, err := registry.Inventory().Reserve(ctx, []domain.StockLine{
		{ProductID: "prd_a", Quantity: 2},
		{ProductID: "prd_b", Quantity: 3},
	}, now)
	var invErr *repositories.InventoryError
	if !errors.As(err, &invErr) || invErr.Code != repositories.InventoryErrorInsufficientStock {
		t.Fatalf("expected insufficient stock, got %v", err)
	}

	a, err := registry.Products().FindByID(ctx, "prd_a")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if a.Stock != 5 {
		t.Fatalf("expected untouched stock 5, got %d", a.Stock)
	}

	reserved, err := registry.Inventory().Reserve(ctx, []domain.StockLine{{ProductID: "prd_a", Quantity: 2}}, now)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if reserved["prd_a"].Stock != 3 {
		t.Fatalf("expected stock 3 after reserve, got %d", reserved["prd_a"].Stock)
	}
}

func TestCartLookupsUseMirroredArrays(t *testing.T) {
	registry := newEmulatorRegistry(t)
	ctx := context.Background()
	now := time.Now().UTC()

	cart := domain.Cart{ID: "cart_1", UserID: "user-1", Items: []domain.CartItem{
		{ID: "ci_1", ProductID: "prd_a", Quantity: 1, AddedAt: now},
		{ID: "ci_2", ProductID: "prd_b", Quantity: 1, AddedAt: now},
	}, CreatedAt: now, UpdatedAt: now}
	if _, err := registry.Carts().UpsertCart(ctx, cart); err != nil {
		t.Fatalf("UpsertCart: %v", err)
	}

	owner, err := registry.Carts().FindByItemID(ctx, "ci_2")
	if err != nil || owner.UserID != "user-1" {
		t.Fatalf("FindByItemID: %v %+v", err, owner)
	}

	removed, err := registry.Carts().RemoveProduct(ctx, "prd_a")
	if err != nil || removed != 1 {
		t.Fatalf("RemoveProduct: removed=%d err=%v", removed, err)
	}
	after, err := registry.Carts().GetCart(ctx, "user-1")
	if err != nil || len(after.Items) != 1 || after.Items[0].ProductID != "prd_b" {
		t.Fatalf("unexpected cart after removal: %+v %v", after, err)
	}
}
