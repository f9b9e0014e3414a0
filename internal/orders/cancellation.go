package orders

import (
	"context"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// CancelOrder cancels the order and gives its stock back. The versioned write
// is the commit point: if releasing stock fails nothing is persisted and the
// order keeps its previous status.
func (s *Service) CancelOrder(ctx context.Context, id, reason string) (Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.CancelOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return Order{}, err
	}
	prev := o.Status
	if err := o.Cancel(reason, s.clock.Now()); err != nil {
		return Order{}, err
	}

	lines := linesOf(o)
	if err := s.inventory.ReleaseStock(ctx, lines); err != nil {
		span.RecordError(err)
		s.log.Error("release stock for cancellation failed", zap.String("order_id", id), zap.Error(err))
		if apperr.KindOf(err) == apperr.KindInfrastructure {
			return Order{}, err
		}
		return Order{}, apperr.Wrapf(err, CodeReleaseFailed,
			"stock could not be released (%s); order '%s' was not cancelled", describe(err), id)
	}

	saved, err := s.repo.Update(ctx, o)
	if err != nil {
		// The order stays active, so the released stock goes back on hold.
		if rerr := s.inventory.ReserveStock(context.WithoutCancel(ctx), lines); rerr != nil {
			span.RecordError(rerr)
			s.log.Error("re-reserve after failed cancellation write failed",
				zap.String("order_id", id),
				zap.NamedError("write_error", err),
				zap.Error(rerr),
			)
			return Order{}, apperr.Infrastructure(CodeCompensationFailed,
				"order '"+id+"' was not cancelled and its released stock could not be reserved again", rerr).
				With("order_id", id)
		}
		return Order{}, conflictAsRule(err, id)
	}

	if err := s.notifier.OrderCancelled(ctx, OrderCancelled{OrderID: saved.ID, CustomerID: saved.Customer.ID, Reason: reason}); err != nil {
		s.log.Warn("order cancelled notification not delivered", zap.String("order_id", saved.ID), zap.Error(err))
	}
	s.log.Info("order cancelled",
		zap.String("order_id", saved.ID),
		zap.String("previous_status", string(prev)),
		zap.Int("lines_released", len(lines)),
	)
	return saved, nil
}
