package notification

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-modular-shop/internal/kafka"
	"github.com/ariefcatur/go-modular-shop/internal/orders"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type Kind string

const (
	KindOrderConfirmation Kind = "order_confirmation"
	KindOrderCancellation Kind = "order_cancellation"
)

// Notification is one message addressed to a customer.
type Notification struct {
	Kind       Kind
	OrderID    string
	CustomerID string
	Email      string
	Subject    string
	Body       string
}

type Sender interface {
	Send(ctx context.Context, n Notification) error
}

type Deduper interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

// Service consumes order events and sends customer notifications. Each event
// id is handled at most once per dedup window.
type Service struct {
	sender Sender
	dedup  Deduper
	log    *zap.Logger
}

func NewService(sender Sender, dedup Deduper, log *zap.Logger) *Service {
	return &Service{sender: sender, dedup: dedup, log: log}
}

// HandleMessage is a kafka.Handler.
func (s *Service) HandleMessage(ctx context.Context, m kafkago.Message) error {
	if et := kafka.Header(m.Headers, HeaderEventType); et != "" && !handled(et) {
		s.log.Debug("ignoring event", zap.String("topic", m.Topic), zap.String("event_type", et))
		return nil
	}
	var env orders.Envelope
	if err := kafka.Decode(m.Value, &env); err != nil {
		// A malformed message never becomes valid; drop it.
		s.log.Error("undecodable order event", zap.String("topic", m.Topic), zap.Error(err))
		return nil
	}
	log := s.log.With(
		zap.String("event_id", env.EventID),
		zap.String("event_type", env.EventType),
		zap.String("order_id", env.CorrelationID),
	)

	n, ok, err := build(env)
	if err != nil {
		log.Error("undecodable event payload", zap.Error(err))
		return nil
	}
	if !ok {
		log.Debug("ignoring event")
		return nil
	}

	first, err := s.dedup.FirstSeen(ctx, env.EventID)
	if err != nil {
		return fmt.Errorf("dedup %s: %w", env.EventID, err)
	}
	if !first {
		log.Info("duplicate event skipped")
		return nil
	}

	if err := s.sender.Send(ctx, n); err != nil {
		if ferr := s.dedup.Forget(context.WithoutCancel(ctx), env.EventID); ferr != nil {
			log.Warn("dedup forget failed", zap.Error(ferr))
		}
		return fmt.Errorf("send %s: %w", n.Kind, err)
	}
	log.Info("notification sent", zap.String("kind", string(n.Kind)))
	return nil
}

func handled(eventType string) bool {
	return eventType == orders.EventOrderCreated || eventType == orders.EventOrderCancelled
}

func build(env orders.Envelope) (Notification, bool, error) {
	switch env.EventType {
	case orders.EventOrderCreated:
		ev, err := kafka.UnwrapPayload[orders.OrderCreated](env.Payload)
		if err != nil {
			return Notification{}, false, err
		}
		return Notification{
			Kind:       KindOrderConfirmation,
			OrderID:    ev.OrderID,
			CustomerID: ev.CustomerID,
			Email:      ev.Email,
			Subject:    "Order " + ev.OrderID + " confirmed",
			Body: fmt.Sprintf("Your order of %d item(s) totalling %s %s is confirmed.",
				ev.ItemsCount, ev.TotalAmount.StringFixed(2), ev.Currency),
		}, true, nil
	case orders.EventOrderCancelled:
		ev, err := kafka.UnwrapPayload[orders.OrderCancelled](env.Payload)
		if err != nil {
			return Notification{}, false, err
		}
		body := "Your order was cancelled."
		if ev.Reason != "" {
			body = "Your order was cancelled: " + ev.Reason
		}
		return Notification{
			Kind:       KindOrderCancellation,
			OrderID:    ev.OrderID,
			CustomerID: ev.CustomerID,
			Subject:    "Order " + ev.OrderID + " cancelled",
			Body:       body,
		}, true, nil
	}
	return Notification{}, false, nil
}

// LogSender writes notifications to the log instead of a mail gateway.
type LogSender struct {
	log *zap.Logger
}

func NewLogSender(log *zap.Logger) *LogSender { return &LogSender{log: log} }

func (s *LogSender) Send(_ context.Context, n Notification) error {
	s.log.Info("notify customer",
		zap.String("kind", string(n.Kind)),
		zap.String("order_id", n.OrderID),
		zap.String("customer_id", n.CustomerID),
		zap.String("email", n.Email),
		zap.String("subject", n.Subject),
		zap.String("body", n.Body),
	)
	return nil
}
