package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hanko-field/storefront/internal/platform/textutil"
	"github.com/hanko-field/storefront/internal/repositories"
)

const (
	orderIDPrefix = "ord_"

	// PaymentMethodCashOnDelivery is matched case-insensitively at checkout.
	PaymentMethodCashOnDelivery = "cash on delivery"

	defaultCurrency          = "JPY"
	maxShippingAddressLength = 1000
	maxPaymentMethodLength   = 64
)

// CheckoutServiceDeps wires the dependencies required by the checkout service.
type CheckoutServiceDeps struct {
	Carts       repositories.CartRepository
	Orders      repositories.OrderRepository
	Inventory   InventoryService
	UnitOfWork  repositories.UnitOfWork
	Events      EventPublisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
	Currency    string
}

type checkoutService struct {
	carts      repositories.CartRepository
	orders     repositories.OrderRepository
	inventory  InventoryService
	unitOfWork repositories.UnitOfWork
	events     EventPublisher
	now        func() time.Time
	newID      func() string
	logger     func(ctx context.Context, event string, fields map[string]any)
	currency   string
}

// NewCheckoutService constructs a CheckoutService validating required dependencies.
func NewCheckoutService(deps CheckoutServiceDeps) (CheckoutService, error) {
	if deps.Carts == nil {
		return nil, errors.New("checkout service: cart repository is required")
	}
	if deps.Orders == nil {
		return nil, errors.New("checkout service: order repository is required")
	}
	if deps.Inventory == nil {
		return nil, errors.New("checkout service: inventory service is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger
	}
	uow := deps.UnitOfWork
	if uow == nil {
		uow = noopUnitOfWork{}
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = defaultCurrency
	}

	return &checkoutService{
		carts:      deps.Carts,
		orders:     deps.Orders,
		inventory:  deps.Inventory,
		unitOfWork: uow,
		events:     deps.Events,
		now: func() time.Time {
			return clock().UTC()
		},
		newID:    idGen,
		logger:   logger,
		currency: currency,
	}, nil
}

// PlaceOrder reserves stock for every cart line, snapshots prices into a new order and clears
// the cart. Either all of that happens or none of it does.
func (s *checkoutService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (Order, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return Order{}, fmt.Errorf("%w: user id is required", ErrCheckoutInvalidInput)
	}
	address := textutil.PlainText(cmd.ShippingAddress, maxShippingAddressLength)
	if address == "" {
		return Order{}, fmt.Errorf("%w: shipping address is required", ErrCheckoutInvalidInput)
	}
	method := textutil.PlainText(cmd.PaymentMethod, maxPaymentMethodLength)
	if method == "" {
		return Order{}, fmt.Errorf("%w: payment method is required", ErrCheckoutInvalidInput)
	}

	var placed Order
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		cart, err := s.carts.GetCart(txCtx, userID)
		if err != nil {
			mapped := mapRepositoryError(err, ErrCartNotFound)
			if errors.Is(mapped, ErrCartNotFound) {
				return ErrCheckoutEmptyCart
			}
			return mapped
		}
		if len(cart.Items) == 0 {
			return ErrCheckoutEmptyCart
		}

		lines := make([]StockLine, 0, len(cart.Items))
		for _, item := range cart.Items {
			lines = append(lines, StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
		}

		products, err := s.inventory.Reserve(txCtx, lines)
		if err != nil {
			return err
		}

		order, err := s.buildOrder(userID, address, method, cart.Items, products)
		if err == nil {
			err = s.persist(txCtx, order, cart)
		}
		if err != nil {
			if releaseErr := s.inventory.Release(txCtx, lines); releaseErr != nil {
				s.logger(ctx, "checkout.compensation.failed", map[string]any{
					"user":  userID,
					"error": releaseErr.Error(),
				})
			}
			return err
		}
		placed = order
		return nil
	})
	if err != nil {
		s.logger(ctx, "checkout.failed", map[string]any{
			"user":  userID,
			"error": err.Error(),
		})
		return Order{}, err
	}

	s.logger(ctx, "checkout.order.placed", map[string]any{
		"order":  placed.ID,
		"user":   userID,
		"total":  placed.TotalAmount,
		"status": string(placed.Status),
	})
	s.publish(ctx, placed)
	return placed.Clone(), nil
}

func (s *checkoutService) buildOrder(userID, address, method string, items []CartItem, products map[string]Product) (Order, error) {
	now := s.now()
	order := Order{
		ID:              ensureIDPrefix(orderIDPrefix, s.newID()),
		UserID:          userID,
		ShippingAddress: address,
		PaymentMethod:   method,
		Status:          OrderStatusPaymentPending,
		PaymentStatus:   PaymentStatusPending,
		Currency:        s.currency,
		CreatedAt:       now,
		UpdatedAt:       now,
		Items:           make([]OrderItem, 0, len(items)),
	}
	if textutil.EqualFold(method, PaymentMethodCashOnDelivery) {
		order.Status = OrderStatusOrderPlaced
	}

	for _, item := range items {
		product, ok := products[item.ProductID]
		if !ok {
			return Order{}, fmt.Errorf("%w: %s", ErrInventoryProductNotFound, item.ProductID)
		}
		order.Items = append(order.Items, OrderItem{
			ProductID:   product.ID,
			ProductName: product.Name,
			Quantity:    item.Quantity,
			UnitPrice:   product.Price,
		})
	}
	order.TotalAmount = order.ItemsTotal()
	return order, nil
}

func (s *checkoutService) persist(ctx context.Context, order Order, cart Cart) error {
	if err := s.orders.Insert(ctx, order); err != nil {
		return mapRepositoryError(err, ErrOrderNotFound)
	}
	cart.Items = nil
	cart.UpdatedAt = order.CreatedAt
	if _, err := s.carts.UpsertCart(ctx, cart); err != nil {
		return mapRepositoryError(err, ErrCartNotFound)
	}
	return nil
}

func (s *checkoutService) publish(ctx context.Context, order Order) {
	if s.events == nil {
		return
	}
	event := OrderEvent{
		Type:          OrderEventPlaced,
		OrderID:       order.ID,
		UserID:        order.UserID,
		CurrentStatus: string(order.Status),
		OccurredAt:    order.CreatedAt,
		Metadata: map[string]any{
			"totalAmount":   order.TotalAmount,
			"currency":      order.Currency,
			"paymentMethod": order.PaymentMethod,
			"items":         len(order.Items),
		},
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "checkout.event.publish.failed", map[string]any{
			"order": order.ID,
			"error": err.Error(),
		})
	}
}

func ensureIDPrefix(prefix, id string) string {
	id = strings.TrimSpace(id)
	if strings.HasPrefix(id, prefix) {
		return id
	}
	return prefix + id
}
