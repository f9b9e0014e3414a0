package orders

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

const (
	EventOrderCreated   = "OrderCreated"
	EventOrderCancelled = "OrderCancelled"
)

// Envelope wraps every event published to the broker.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderCreated struct {
	OrderID     string          `json:"order_id"`
	CustomerID  string          `json:"customer_id"`
	Email       string          `json:"email"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Currency    string          `json:"currency"`
	ItemsCount  int             `json:"items_count"`
}

type OrderCancelled struct {
	OrderID    string `json:"order_id"`
	CustomerID string `json:"customer_id"`
	Reason     string `json:"reason,omitempty"`
}

func NewOrderCreated(o Order) OrderCreated {
	return OrderCreated{
		OrderID:     o.ID,
		CustomerID:  o.Customer.ID,
		Email:       o.Customer.Email,
		TotalAmount: o.TotalAmount,
		Currency:    o.Currency,
		ItemsCount:  len(o.Items),
	}
}
