package notification

import (
	"context"
	"encoding/json"

	"github.com/ariefcatur/go-modular-shop/internal/clock"
	"github.com/ariefcatur/go-modular-shop/internal/kafka"
	"github.com/ariefcatur/go-modular-shop/internal/orders"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/trace"
)

const HeaderEventType = "event_type"

type Publisher interface {
	Publish(ctx context.Context, topic string, key, value []byte, headers ...kafkago.Header) error
}

// KafkaNotifier turns order lifecycle events into envelopes on the broker.
type KafkaNotifier struct {
	pub      Publisher
	producer string
	clock    clock.Clock
}

var _ orders.Notifier = (*KafkaNotifier)(nil)

func NewKafkaNotifier(pub Publisher, producer string, clk clock.Clock) *KafkaNotifier {
	return &KafkaNotifier{pub: pub, producer: producer, clock: clk}
}

func (n *KafkaNotifier) OrderCreated(ctx context.Context, ev orders.OrderCreated) error {
	return n.publish(ctx, orders.TopicOrderCreated, orders.EventOrderCreated, ev.OrderID, ev)
}

func (n *KafkaNotifier) OrderCancelled(ctx context.Context, ev orders.OrderCancelled) error {
	return n.publish(ctx, orders.TopicOrderCancelled, orders.EventOrderCancelled, ev.OrderID, ev)
}

func (n *KafkaNotifier) publish(ctx context.Context, topic, eventType, orderID string, payload any) error {
	env := orders.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    n.clock.Now(),
		Producer:      n.producer,
		CorrelationID: orderID,
		Payload:       json.RawMessage(kafka.MustMarshal(payload)),
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		env.TraceID = sc.TraceID().String()
	}
	return n.pub.Publish(ctx, topic, orders.PartitionKey(orderID), kafka.MustMarshal(env),
		kafkago.Header{Key: HeaderEventType, Value: []byte(eventType)},
	)
}
