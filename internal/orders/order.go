package orders

import (
	"fmt"
	"time"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/shopspring/decimal"
)

const (
	CodeNotCancellable  = "ORDER_NOT_CANCELLABLE"
	CodeTerminalState   = "ORDER_IN_TERMINAL_STATE"
	CodeInvalidStatus   = "INVALID_STATUS"
	CodeUseCancel       = "USE_CANCEL_ENDPOINT"
	CodeMixedCurrency   = "MIXED_CURRENCY"
	CodeReleaseFailed   = "STOCK_RELEASE_FAILED"
	CodePlacementFailed = "ORDER_PLACEMENT_FAILED"
)

type Customer struct {
	ID    string `json:"customer_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

type Address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Item snapshots the product name and price at order time.
type Item struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

func (it Item) Subtotal() decimal.Decimal {
	return it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Order struct {
	ID           string          `json:"order_id"`
	Customer     Customer        `json:"customer"`
	Shipping     Address         `json:"shipping_address"`
	Items        []Item          `json:"items"`
	Currency     string          `json:"currency"`
	TotalAmount  decimal.Decimal `json:"total_amount"`
	Status       Status          `json:"status"`
	Version      int             `json:"version"`
	CancelReason string          `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ConfirmedAt  *time.Time      `json:"confirmed_at,omitempty"`
	CancelledAt  *time.Time      `json:"cancelled_at,omitempty"`
}

// NewOrder builds a confirmed order. Stock has already been reserved by the
// time an order is constructed, so there is no pending window.
func NewOrder(id string, c Customer, ship Address, currency string, items []Item, now time.Time) (Order, error) {
	if len(items) == 0 {
		return Order{}, apperr.Validation("items", "an order needs at least one item")
	}
	for _, it := range items {
		if it.Quantity <= 0 {
			return Order{}, apperr.Validation("quantity", "quantity must be greater than zero").With("product_id", it.ProductID)
		}
		if !it.UnitPrice.IsPositive() {
			return Order{}, apperr.Validation("unit_price", "unit price must be greater than zero").With("product_id", it.ProductID)
		}
	}
	o := Order{
		ID:          id,
		Customer:    c,
		Shipping:    ship,
		Items:       append([]Item(nil), items...),
		Currency:    currency,
		Status:      StatusConfirmed,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
		ConfirmedAt: &now,
	}
	o.TotalAmount = o.Total()
	return o, nil
}

// Total recomputes the order amount from its items.
func (o *Order) Total() decimal.Decimal {
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(it.Subtotal())
	}
	return sum
}

func (o *Order) ItemCount() int {
	n := 0
	for _, it := range o.Items {
		n += it.Quantity
	}
	return n
}

func (o *Order) Cancel(reason string, now time.Time) error {
	if o.Status == StatusCancelled || o.Status == StatusDelivered {
		return apperr.BusinessRule(CodeNotCancellable,
			fmt.Sprintf("order in status '%s' cannot be cancelled", o.Status)).
			With("order_id", o.ID).With("status", string(o.Status))
	}
	o.Status = StatusCancelled
	o.CancelReason = reason
	o.CancelledAt = &now
	o.UpdatedAt = now
	return nil
}

// UpdateStatus moves a non-terminal order to any known status except
// cancelled, which has to go through Cancel so stock is released. Moving to
// cancelled here returns a USE_CANCEL_ENDPOINT business-rule error.
func (o *Order) UpdateStatus(raw string, now time.Time) error {
	next, ok := ParseStatus(raw)
	if !ok {
		return apperr.BusinessRule(CodeInvalidStatus, fmt.Sprintf("status '%s' is not valid", raw))
	}
	if o.Status.Terminal() {
		return apperr.BusinessRule(CodeTerminalState,
			fmt.Sprintf("order in status '%s' can no longer change", o.Status)).
			With("order_id", o.ID).With("status", string(o.Status))
	}
	if next == StatusCancelled {
		return apperr.BusinessRule(CodeUseCancel, "orders are cancelled through the cancel operation")
	}
	o.Status = next
	if next == StatusConfirmed && o.ConfirmedAt == nil {
		o.ConfirmedAt = &now
	}
	o.UpdatedAt = now
	return nil
}
