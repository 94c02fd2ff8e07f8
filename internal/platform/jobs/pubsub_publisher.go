package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/hanko-field/storefront/internal/services"
)

// BreakerSettings tunes the circuit breaker guarding topic publishes.
type BreakerSettings struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// PubSubEventPublisher publishes order and inventory events to Pub/Sub topics.
// Publishes go through a circuit breaker so an unhealthy broker fails fast instead of
// stalling request handlers.
type PubSubEventPublisher struct {
	orders    *pubsub.Topic
	inventory *pubsub.Topic
	breaker   *gobreaker.CircuitBreaker[string]
	logger    *zap.Logger
	marshal   func(any) ([]byte, error)
}

// PublisherOption customises the publisher.
type PublisherOption func(*PubSubEventPublisher)

// WithPublisherLogger records breaker state changes.
func WithPublisherLogger(logger *zap.Logger) PublisherOption {
	return func(p *PubSubEventPublisher) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPubSubEventPublisher constructs a Pub/Sub backed services.EventPublisher.
func NewPubSubEventPublisher(orders, inventory *pubsub.Topic, settings BreakerSettings, opts ...PublisherOption) (*PubSubEventPublisher, error) {
	if orders == nil {
		return nil, errors.New("pubsub event publisher: order topic is required")
	}
	if inventory == nil {
		return nil, errors.New("pubsub event publisher: inventory topic is required")
	}

	p := &PubSubEventPublisher{
		orders:    orders,
		inventory: inventory,
		logger:    zap.NewNop(),
		marshal:   json.Marshal,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}

	threshold := settings.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	p.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "pubsub-publisher",
		MaxRequests: settings.MaxRequests,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			p.logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return p, nil
}

type orderEventMessage struct {
	Type           string         `json:"type"`
	OrderID        string         `json:"orderId"`
	UserID         string         `json:"userId,omitempty"`
	PreviousStatus string         `json:"previousStatus,omitempty"`
	CurrentStatus  string         `json:"currentStatus,omitempty"`
	ReturnStatus   string         `json:"returnStatus,omitempty"`
	ActorID        string         `json:"actorId,omitempty"`
	OccurredAt     time.Time      `json:"occurredAt"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

type stockLineMessage struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type inventoryEventMessage struct {
	Type       string             `json:"type"`
	Lines      []stockLineMessage `json:"lines"`
	OccurredAt time.Time          `json:"occurredAt"`
}

// PublishOrderEvent publishes an order lifecycle event keyed by order id.
func (p *PubSubEventPublisher) PublishOrderEvent(ctx context.Context, event services.OrderEvent) error {
	if p == nil || p.orders == nil {
		return errors.New("pubsub event publisher: not initialised")
	}
	data, err := p.marshal(orderEventMessage{
		Type:           event.Type,
		OrderID:        event.OrderID,
		UserID:         event.UserID,
		PreviousStatus: event.PreviousStatus,
		CurrentStatus:  event.CurrentStatus,
		ReturnStatus:   event.ReturnStatus,
		ActorID:        event.ActorID,
		OccurredAt:     event.OccurredAt.UTC(),
		Metadata:       event.Metadata,
	})
	if err != nil {
		return fmt.Errorf("marshal order event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "status", event.CurrentStatus)

	if _, err := p.publish(ctx, p.orders, &pubsub.Message{Data: data, Attributes: attrs}); err != nil {
		return fmt.Errorf("publish order event: %w", err)
	}
	return nil
}

// PublishInventoryEvent publishes a stock movement.
func (p *PubSubEventPublisher) PublishInventoryEvent(ctx context.Context, event services.InventoryEvent) error {
	if p == nil || p.inventory == nil {
		return errors.New("pubsub event publisher: not initialised")
	}
	lines := make([]stockLineMessage, 0, len(event.Lines))
	for _, line := range event.Lines {
		lines = append(lines, stockLineMessage{ProductID: line.ProductID, Quantity: line.Quantity})
	}
	data, err := p.marshal(inventoryEventMessage{
		Type:       event.Type,
		Lines:      lines,
		OccurredAt: event.OccurredAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal inventory event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "type", event.Type)

	if _, err := p.publish(ctx, p.inventory, &pubsub.Message{Data: data, Attributes: attrs}); err != nil {
		return fmt.Errorf("publish inventory event: %w", err)
	}
	return nil
}

// BreakerState reports the current breaker state, for health reporting.
func (p *PubSubEventPublisher) BreakerState() gobreaker.State {
	return p.breaker.State()
}

func (p *PubSubEventPublisher) publish(ctx context.Context, topic *pubsub.Topic, msg *pubsub.Message) (string, error) {
	return p.breaker.Execute(func() (string, error) {
		return topic.Publish(ctx, msg).Get(ctx)
	})
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}

var _ services.EventPublisher = (*PubSubEventPublisher)(nil)
