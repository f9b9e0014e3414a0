package orders

import (
	"context"
	"fmt"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/ariefcatur/go-modular-shop/internal/clock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const (
	defaultLimit = 100
	maxLimit     = 500
)

type Service struct {
	repo      OrderRepository
	inventory InventoryGateway
	notifier  Notifier
	clock     clock.Clock
	log       *zap.Logger
	tracer    trace.Tracer
}

func NewService(repo OrderRepository, inv InventoryGateway, n Notifier, clk clock.Clock, log *zap.Logger) *Service {
	if n == nil {
		n = nopNotifier{}
	}
	return &Service{
		repo:      repo,
		inventory: inv,
		notifier:  n,
		clock:     clk,
		log:       log,
		tracer:    otel.Tracer("orders"),
	}
}

func (s *Service) GetOrder(ctx context.Context, id string) (Order, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) ListByCustomer(ctx context.Context, customerID string, page Page) ([]Order, error) {
	if customerID == "" {
		return nil, apperr.Validation("customer_id", "customer_id is required")
	}
	if page.Skip < 0 {
		page.Skip = 0
	}
	if page.Limit <= 0 {
		page.Limit = defaultLimit
	}
	if page.Limit > maxLimit {
		page.Limit = maxLimit
	}
	return s.repo.GetByCustomer(ctx, customerID, page)
}

// UpdateStatus applies a status change and returns the updated order together
// with the status it had before. Any known status is accepted from a
// non-terminal order except cancelled: that fails with USE_CANCEL_ENDPOINT,
// since only CancelOrder gives the stock back.
func (s *Service) UpdateStatus(ctx context.Context, id, newStatus string) (Order, Status, error) {
	ctx, span := s.tracer.Start(ctx, "orders.UpdateStatus", trace.WithAttributes(
		attribute.String("order.id", id),
		attribute.String("order.new_status", newStatus),
	))
	defer span.End()

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, "", err
	}
	prev := o.Status
	if err := o.UpdateStatus(newStatus, s.clock.Now()); err != nil {
		return Order{}, prev, err
	}
	if prev != o.Status && !IsForward(prev, o.Status) {
		s.log.Warn("order status jumped outside the nominal lifecycle",
			zap.String("order_id", id),
			zap.String("from", string(prev)),
			zap.String("to", string(o.Status)),
		)
	}

	saved, err := s.repo.Update(ctx, o)
	if err != nil {
		return Order{}, prev, conflictAsRule(err, id)
	}
	s.log.Info("order status updated",
		zap.String("order_id", id),
		zap.String("from", string(prev)),
		zap.String("to", string(saved.Status)),
	)
	return saved, prev, nil
}

func conflictAsRule(err error, orderID string) error {
	if apperr.IsConflict(err) {
		return apperr.Wrapf(err, apperr.CodeConcurrency, "order '%s' was modified concurrently, retry the request", orderID)
	}
	return err
}

func linesOf(o Order) []StockLine {
	out := make([]StockLine, 0, len(o.Items))
	for _, it := range o.Items {
		out = append(out, StockLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return out
}

func describe(err error) string {
	if e, ok := apperr.As(err); ok {
		return e.Message
	}
	return fmt.Sprint(err)
}

type nopNotifier struct{}

func (nopNotifier) OrderCreated(context.Context, OrderCreated) error     { return nil }
func (nopNotifier) OrderCancelled(context.Context, OrderCancelled) error { return nil }
