package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/sony/gobreaker/v2"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/hanko-field/storefront/internal/services"
)

func newTestTopics(t *testing.T) (*pstest.Server, *pubsub.Topic, *pubsub.Topic) {
	t.Helper()
	ctx := context.Background()
	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	orders, err := client.CreateTopic(ctx, "order-events")
	if err != nil {
		t.Fatalf("CreateTopic orders: %v", err)
	}
	inventory, err := client.CreateTopic(ctx, "inventory-events")
	if err != nil {
		t.Fatalf("CreateTopic inventory: %v", err)
	}
	t.Cleanup(func() {
		orders.Stop()
		inventory.Stop()
	})
	return srv, orders, inventory
}

func TestPubSubEventPublisherPublishesOrderEvent(t *testing.T) {
	srv, orders, inventory := newTestTopics(t)

	publisher, err := NewPubSubEventPublisher(orders, inventory, BreakerSettings{Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewPubSubEventPublisher: %v", err)
	}

	occurred := time.Date(2025, 5, 6, 9, 0, 0, 0, time.UTC)
	event := services.OrderEvent{
		Type:           services.OrderEventStatusChanged,
		OrderID:        "ord_0001",
		UserID:         "user-1",
		PreviousStatus: string(services.OrderStatusPaymentConfirmed),
		CurrentStatus:  string(services.OrderStatusShipped),
		ActorID:        "admin-1",
		OccurredAt:     occurred,
	}
	if err := publisher.PublishOrderEvent(context.Background(), event); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload orderEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != "ord_0001" || payload.CurrentStatus != string(services.OrderStatusShipped) {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if !payload.OccurredAt.Equal(occurred) {
		t.Fatalf("expected occurredAt %v, got %v", occurred, payload.OccurredAt)
	}
	if attr := messages[0].Attributes["orderId"]; attr != "ord_0001" {
		t.Fatalf("expected orderId attribute, got %q", attr)
	}
	if _, ok := messages[0].Attributes["userId"]; ok {
		t.Fatalf("userId attribute should not be present")
	}
}

func TestPubSubEventPublisherPublishesInventoryEvent(t *testing.T) {
	srv, orders, inventory := newTestTopics(t)

	publisher, err := NewPubSubEventPublisher(orders, inventory, BreakerSettings{})
	if err != nil {
		t.Fatalf("NewPubSubEventPublisher: %v", err)
	}

	event := services.InventoryEvent{
		Type:       services.InventoryEventReserved,
		Lines:      []services.StockLine{{ProductID: "p1", Quantity: 2}, {ProductID: "p2", Quantity: 1}},
		OccurredAt: time.Now(),
	}
	if err := publisher.PublishInventoryEvent(context.Background(), event); err != nil {
		t.Fatalf("PublishInventoryEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}
	var payload inventoryEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Lines) != 2 || payload.Lines[0].ProductID != "p1" || payload.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected lines %#v", payload.Lines)
	}
}

func TestPubSubEventPublisherBreakerOpensAfterFailures(t *testing.T) {
	_, orders, inventory := newTestTopics(t)

	publisher, err := NewPubSubEventPublisher(orders, inventory, BreakerSettings{FailureThreshold: 2, Timeout: time.Minute})
	if err != nil {
		t.Fatalf("NewPubSubEventPublisher: %v", err)
	}
	orders.Stop()

	for i := 0; i < 2; i++ {
		if err := publisher.PublishOrderEvent(context.Background(), services.OrderEvent{OrderID: "ord_1"}); err == nil {
			t.Fatalf("expected publish on stopped topic to fail")
		}
	}
	if state := publisher.BreakerState(); state != gobreaker.StateOpen {
		t.Fatalf("expected breaker to be open, got %s", state)
	}

	err = publisher.PublishOrderEvent(context.Background(), services.OrderEvent{OrderID: "ord_1"})
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open state error, got %v", err)
	}
}

func TestNewPubSubEventPublisherRequiresTopics(t *testing.T) {
	if _, err := NewPubSubEventPublisher(nil, nil, BreakerSettings{}); err == nil {
		t.Fatalf("expected error without topics")
	}
}
