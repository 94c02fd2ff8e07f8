package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hanko-field/storefront/internal/repositories"
)

// InventoryServiceDeps bundles the collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Inventory repositories.InventoryRepository
	Events    EventPublisher
	Clock     func() time.Time
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	repo   repositories.InventoryRepository
	events EventPublisher
	clock  func() time.Time
	logger func(context.Context, string, map[string]any)
}

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service: inventory repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}

	return &inventoryService{
		repo:   deps.Inventory,
		events: deps.Events,
		clock: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

// Reserve decrements stock for every line or none of them.
func (s *inventoryService) Reserve(ctx context.Context, lines []StockLine) (map[string]Product, error) {
	normalised, err := normaliseStockLines(lines)
	if err != nil {
		return nil, err
	}

	products, err := s.repo.Reserve(ctx, normalised, s.clock())
	if err != nil {
		mapped := mapRepositoryError(err, ErrInventoryProductNotFound)
		s.logger(ctx, "inventory.reserve.failed", map[string]any{
			"lines": len(normalised),
			"error": err.Error(),
		})
		return nil, mapped
	}

	s.publish(ctx, InventoryEventReserved, normalised)
	return products, nil
}

// Release credits stock back. Unknown products are logged and skipped.
func (s *inventoryService) Release(ctx context.Context, lines []StockLine) error {
	normalised, err := normaliseStockLines(lines)
	if err != nil {
		return err
	}

	skipped, err := s.repo.Release(ctx, normalised, s.clock())
	if err != nil {
		return mapRepositoryError(err, ErrInventoryProductNotFound)
	}
	if len(skipped) > 0 {
		s.logger(ctx, "inventory.release.skipped", map[string]any{
			"products": skipped,
		})
	}

	s.publish(ctx, InventoryEventReleased, normalised)
	return nil
}

func (s *inventoryService) SetStock(ctx context.Context, cmd SetStockCommand) (Product, error) {
	productID := strings.TrimSpace(cmd.ProductID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
	}
	if cmd.Stock < 0 {
		return Product{}, fmt.Errorf("%w: stock must not be negative", ErrInventoryInvalidInput)
	}

	product, err := s.repo.SetStock(ctx, productID, cmd.Stock, s.clock())
	if err != nil {
		return Product{}, mapRepositoryError(err, ErrInventoryProductNotFound)
	}

	s.logger(ctx, "inventory.stock.set", map[string]any{
		"product": productID,
		"stock":   cmd.Stock,
		"actor":   cmd.ActorID,
	})
	s.publish(ctx, InventoryEventSet, []StockLine{{ProductID: productID, Quantity: cmd.Stock}})
	return product, nil
}

func (s *inventoryService) publish(ctx context.Context, eventType string, lines []StockLine) {
	if s.events == nil {
		return
	}
	event := InventoryEvent{
		Type:       eventType,
		Lines:      append([]StockLine(nil), lines...),
		OccurredAt: s.clock(),
	}
	if err := s.events.PublishInventoryEvent(ctx, event); err != nil {
		s.logger(ctx, "inventory.event.publish.failed", map[string]any{
			"type":  eventType,
			"error": err.Error(),
		})
	}
}

// normaliseStockLines merges duplicate products and orders lines by product id so that
// concurrent reservations acquire rows in the same order.
func normaliseStockLines(lines []StockLine) ([]StockLine, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: at least one line is required", ErrInventoryInvalidInput)
	}

	merged := make(map[string]int, len(lines))
	for _, line := range lines {
		productID := strings.TrimSpace(line.ProductID)
		if productID == "" {
			return nil, fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("%w: quantity for %s must be positive", ErrInventoryInvalidInput, productID)
		}
		merged[productID] += line.Quantity
	}

	out := make([]StockLine, 0, len(merged))
	for productID, qty := range merged {
		out = append(out, StockLine{ProductID: productID, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}
