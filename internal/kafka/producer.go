package kafka

import (
	"context"
	"errors"
	"sync"
	"time"

	otelkafka "github.com/Trendyol/otel-kafka-konsumer"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ErrInboxFull is returned by Publish when the message was dropped.
var ErrInboxFull = errors.New("kafka: producer inbox full, message dropped")

var ErrClosed = errors.New("kafka: producer closed")

// MessageWriter is satisfied by the traced otelkafka writer.
type MessageWriter interface {
	WriteMessage(ctx context.Context, msg kafka.Message) error
	Close() error
}

// NewWriter builds a traced writer. Topics are set per message.
func NewWriter(brokers []string, clientID string, tp trace.TracerProvider) (*otelkafka.Writer, error) {
	base := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		BatchTimeout:           10 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return otelkafka.NewWriter(base,
		otelkafka.WithTracerProvider(tp),
		otelkafka.WithPropagator(propagation.TraceContext{}),
		otelkafka.WithAttributes([]attribute.KeyValue{
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.kafka.client_id", clientID),
		}),
	)
}

type outgoing struct {
	ctx context.Context
	msg kafka.Message
}

// Producer feeds a single writer goroutine through a buffered inbox.
// Publish never blocks.
type Producer struct {
	w   MessageWriter
	log *zap.Logger

	mu      sync.RWMutex
	closed  bool
	inbox   chan outgoing
	closeCh chan struct{}
}

func NewProducer(w MessageWriter, buf int, log *zap.Logger) *Producer {
	if buf <= 0 {
		buf = 1
	}
	return &Producer{
		w:       w,
		log:     log,
		inbox:   make(chan outgoing, buf),
		closeCh: make(chan struct{}),
	}
}

// Start runs the writer loop until the inbox is closed. Cancelling ctx closes
// the inbox; anything already queued is still flushed.
func (p *Producer) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		p.Close()
	}()
	go func() {
		defer close(p.closeCh)
		for out := range p.inbox {
			if err := p.w.WriteMessage(out.ctx, out.msg); err != nil {
				p.log.Error("kafka write failed",
					zap.String("topic", out.msg.Topic),
					zap.ByteString("key", out.msg.Key),
					zap.Error(err),
				)
			}
		}
		if err := p.w.Close(); err != nil {
			p.log.Warn("kafka writer close", zap.Error(err))
		}
	}()
}

// Publish queues a message. The caller's trace context travels with it but
// its cancellation does not.
func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte, headers ...kafka.Header) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	msg := kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Time:    time.Now(),
		Headers: headers,
	}
	select {
	case p.inbox <- outgoing{ctx: context.WithoutCancel(ctx), msg: msg}:
		return nil
	default:
		p.log.Warn("kafka inbox full, dropping message", zap.String("topic", topic), zap.ByteString("key", key))
		return ErrInboxFull
	}
}

// Close stops accepting messages. Safe to call more than once.
func (p *Producer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.inbox)
}

// WaitClosed blocks until queued messages are flushed and the writer is closed.
func (p *Producer) WaitClosed() { <-p.closeCh }
