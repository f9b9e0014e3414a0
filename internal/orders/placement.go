package orders

import (
	"context"
	"strings"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const CodeCompensationFailed = "COMPENSATION_FAILED"

type LineInput struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type PlaceOrderInput struct {
	Customer Customer
	Shipping Address
	Items    []LineInput
}

// PlaceOrder reserves stock for every line, then persists a confirmed order.
// Any failure after the first reservation releases what was reserved, so a
// failed attempt never holds stock.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (Order, error) {
	ctx, span := s.tracer.Start(ctx, "orders.PlaceOrder")
	defer span.End()

	lines, err := validatePlacement(in)
	if err != nil {
		return Order{}, err
	}
	span.SetAttributes(
		attribute.String("customer.id", in.Customer.ID),
		attribute.Int("order.lines", len(lines)),
	)

	snaps := make(map[string]ProductSnapshot, len(lines))
	currency := ""
	for _, ln := range lines {
		p, err := s.inventory.Product(ctx, ln.ProductID)
		if err != nil {
			return Order{}, err
		}
		if !p.Active {
			return Order{}, apperr.NotFound("Product", ln.ProductID).With("reason", "inactive")
		}
		if currency == "" {
			currency = p.Currency
		} else if p.Currency != currency {
			e := apperr.Validation("items", "all items of an order must share one currency")
			e.Code = CodeMixedCurrency
			return Order{}, e
		}
		snaps[ln.ProductID] = p
	}

	reserved := make([]StockLine, 0, len(lines))
	for _, ln := range lines {
		if err := s.inventory.ReserveStock(ctx, []StockLine{ln}); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "reservation failed")
			s.log.Info("reservation failed, compensating",
				zap.String("product_id", ln.ProductID),
				zap.Int("quantity", ln.Quantity),
				zap.Int("already_reserved", len(reserved)),
				zap.Error(err),
			)
			if cerr := s.compensate(ctx, reserved); cerr != nil {
				return Order{}, cerr
			}
			return Order{}, placementError(err)
		}
		reserved = append(reserved, ln)
	}

	items := make([]Item, 0, len(lines))
	for _, ln := range lines {
		p := snaps[ln.ProductID]
		items = append(items, Item{
			ProductID:   p.ID,
			ProductName: p.Name,
			Quantity:    ln.Quantity,
			UnitPrice:   p.UnitPrice,
		})
	}

	o, err := NewOrder(uuid.NewString(), in.Customer, in.Shipping, currency, items, s.clock.Now())
	if err != nil {
		if cerr := s.compensate(ctx, reserved); cerr != nil {
			return Order{}, cerr
		}
		return Order{}, err
	}

	saved, err := s.repo.Save(ctx, o)
	if err != nil {
		span.RecordError(err)
		s.log.Error("persist order failed, compensating", zap.String("order_id", o.ID), zap.Error(err))
		if cerr := s.compensate(ctx, reserved); cerr != nil {
			return Order{}, cerr
		}
		return Order{}, err
	}
	span.SetAttributes(attribute.String("order.id", saved.ID))

	if err := s.notifier.OrderCreated(ctx, NewOrderCreated(saved)); err != nil {
		s.log.Warn("order created notification not delivered", zap.String("order_id", saved.ID), zap.Error(err))
	}
	s.log.Info("order placed",
		zap.String("order_id", saved.ID),
		zap.String("customer_id", saved.Customer.ID),
		zap.String("total", saved.TotalAmount.String()),
	)
	return saved, nil
}

// compensate releases reserved lines in reverse order. It runs detached from
// the request's cancellation so an aborted request still gives stock back.
func (s *Service) compensate(ctx context.Context, reserved []StockLine) error {
	ctx = context.WithoutCancel(ctx)
	var failed []StockLine
	var lastErr error
	for i := len(reserved) - 1; i >= 0; i-- {
		ln := reserved[i]
		if err := s.inventory.ReleaseStock(ctx, []StockLine{ln}); err != nil {
			s.log.Error("compensating release failed",
				zap.String("product_id", ln.ProductID),
				zap.Int("quantity", ln.Quantity),
				zap.Error(err),
			)
			failed = append(failed, ln)
			lastErr = err
		}
	}
	if len(failed) > 0 {
		e := apperr.Infrastructure(CodeCompensationFailed, "reserved stock could not be released after a failed order", lastErr)
		return e.With("unreleased_lines", len(failed))
	}
	return nil
}

func placementError(err error) error {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound, apperr.KindValidation, apperr.KindInfrastructure:
		return err
	}
	code := apperr.CodeOf(err)
	if code == "" {
		code = CodePlacementFailed
	}
	return apperr.Wrapf(err, code, "order could not be placed: %s", describe(err))
}

func validatePlacement(in PlaceOrderInput) ([]StockLine, error) {
	c := in.Customer
	switch {
	case strings.TrimSpace(c.ID) == "":
		return nil, apperr.Validation("customer_id", "customer_id is required")
	case strings.TrimSpace(c.Name) == "":
		return nil, apperr.Validation("customer_name", "customer name is required")
	case !strings.Contains(c.Email, "@"):
		return nil, apperr.Validation("customer_email", "customer email is invalid")
	}
	a := in.Shipping
	if strings.TrimSpace(a.Street) == "" || strings.TrimSpace(a.City) == "" || strings.TrimSpace(a.Country) == "" {
		return nil, apperr.Validation("shipping_address", "street, city and country are required")
	}
	if len(in.Items) == 0 {
		return nil, apperr.Validation("items", "an order needs at least one item")
	}

	// Duplicate product lines are merged, keeping first-seen order.
	idx := make(map[string]int, len(in.Items))
	lines := make([]StockLine, 0, len(in.Items))
	for _, it := range in.Items {
		if it.ProductID == "" {
			return nil, apperr.Validation("product_id", "product_id is required")
		}
		if it.Quantity <= 0 {
			return nil, apperr.Validation("quantity", "quantity must be greater than zero").With("product_id", it.ProductID)
		}
		if i, ok := idx[it.ProductID]; ok {
			lines[i].Quantity += it.Quantity
			continue
		}
		idx[it.ProductID] = len(lines)
		lines = append(lines, StockLine{ProductID: it.ProductID, Quantity: it.Quantity})
	}
	return lines, nil
}
