package orders

import (
	"context"

	"github.com/shopspring/decimal"
)

type Page struct {
	Skip  int
	Limit int
}

// OrderRepository is the persistence port for orders.
type OrderRepository interface {
	// Save inserts the order and its items in one transaction.
	Save(ctx context.Context, o Order) (Order, error)

	// GetByID returns an apperr NotFound for unknown ids.
	GetByID(ctx context.Context, id string) (Order, error)

	GetByCustomer(ctx context.Context, customerID string, page Page) ([]Order, error)

	// Update persists status fields only if the stored version equals o.Version,
	// returning the order with the bumped version. A stale version yields an
	// apperr Conflict.
	Update(ctx context.Context, o Order) (Order, error)
}

// ProductSnapshot is what the orders context knows about a product.
type ProductSnapshot struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	Currency  string
	Stock     int
	Active    bool
}

type StockLine struct {
	ProductID string
	Quantity  int
}

// InventoryGateway is the only way the orders context reaches inventory.
type InventoryGateway interface {
	// Product returns NotFound when the product is missing or deleted.
	Product(ctx context.Context, productID string) (ProductSnapshot, error)

	// ReserveStock reserves every line or none.
	ReserveStock(ctx context.Context, lines []StockLine) error

	ReleaseStock(ctx context.Context, lines []StockLine) error
}

// Notifier receives order lifecycle events. Delivery is best effort; a
// returned error is logged by the caller and otherwise ignored.
type Notifier interface {
	OrderCreated(ctx context.Context, ev OrderCreated) error
	OrderCancelled(ctx context.Context, ev OrderCancelled) error
}
