package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/atelier-market/api/internal/domain"
	"github.com/atelier-market/api/internal/services"
)

func newTestTopic(t *testing.T, name string) (*pubsub.Topic, *pstest.Server) {
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

	topic, err := client.CreateTopic(ctx, name)
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}
	return topic, srv
}

func TestPubSubOrderEventPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	topic, srv := newTestTopic(t, "order-events")

	publisher, err := NewPubSubOrderEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubOrderEventPublisher: %v", err)
	}

	msg := services.OrderEventMessage{
		EventType:      "order.status.changed",
		OrderID:        "ord_01test",
		StoreID:        "st_01test",
		CustomerID:     "cust-1",
		Status:         domain.OrderStatusConfirmed,
		PreviousStatus: domain.OrderStatusPending,
		PaymentMethod:  domain.PaymentMethodCOD,
		Total:          125000,
		OccurredAt:     time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
	}

	if _, err := publisher.PublishOrderEvent(ctx, msg); err != nil {
		t.Fatalf("PublishOrderEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.OrderEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.OrderID != msg.OrderID || payload.Status != msg.Status {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["eventType"]; attr != "order.status.changed" {
		t.Fatalf("expected eventType attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["previousStatus"]; attr != string(domain.OrderStatusPending) {
		t.Fatalf("expected previousStatus attribute, got %q", attr)
	}
}

func TestPubSubStockEventPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	topic, srv := newTestTopic(t, "stock-events")

	publisher, err := NewPubSubStockEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubStockEventPublisher: %v", err)
	}

	msg := services.StockEventMessage{
		EventType: "stock.adjusted",
		StoreID:   "st_01test",
		OrderID:   "ord_01test",
		Adjustments: []services.StockAdjustmentRecord{
			{ProductID: "prod_01test", Delta: -2, Remaining: 3},
		},
		OccurredAt: time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC),
	}

	if _, err := publisher.PublishStockEvent(ctx, msg); err != nil {
		t.Fatalf("PublishStockEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.StockEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Adjustments) != 1 || payload.Adjustments[0].Delta != -2 {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["storeId"]; attr != "st_01test" {
		t.Fatalf("expected storeId attribute, got %q", attr)
	}
}

func TestNewPublishersRequireTopic(t *testing.T) {
	if _, err := NewPubSubOrderEventPublisher(nil); err == nil {
		t.Fatal("expected error for nil order topic")
	}
	if _, err := NewPubSubStockEventPublisher(nil); err == nil {
		t.Fatal("expected error for nil stock topic")
	}
}
