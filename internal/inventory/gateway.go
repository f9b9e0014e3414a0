// Package inventory connects the orders context to the catalog ledger.
package inventory

import (
	"context"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/ariefcatur/go-modular-shop/internal/catalog"
	"github.com/ariefcatur/go-modular-shop/internal/orders"
)

// Catalog is the part of catalog.Service the gateway needs.
type Catalog interface {
	GetProduct(ctx context.Context, id string) (catalog.Product, error)
	ReserveStock(ctx context.Context, lines []catalog.StockLine) ([]catalog.StockChange, error)
	ReleaseStock(ctx context.Context, lines []catalog.StockLine) ([]catalog.StockChange, error)
}

type Gateway struct {
	catalog Catalog
}

var _ orders.InventoryGateway = (*Gateway)(nil)

func NewGateway(c Catalog) *Gateway {
	return &Gateway{catalog: c}
}

func (g *Gateway) Product(ctx context.Context, productID string) (orders.ProductSnapshot, error) {
	p, err := g.catalog.GetProduct(ctx, productID)
	if err != nil {
		return orders.ProductSnapshot{}, err
	}
	if p.Deleted() {
		return orders.ProductSnapshot{}, apperr.NotFound("Product", productID)
	}
	return orders.ProductSnapshot{
		ID:        p.ID,
		Name:      p.Name,
		UnitPrice: p.Price.Amount,
		Currency:  p.Price.Currency,
		Stock:     p.Stock,
		Active:    p.IsActive,
	}, nil
}

func (g *Gateway) ReserveStock(ctx context.Context, lines []orders.StockLine) error {
	_, err := g.catalog.ReserveStock(ctx, toCatalog(lines))
	return err
}

func (g *Gateway) ReleaseStock(ctx context.Context, lines []orders.StockLine) error {
	_, err := g.catalog.ReleaseStock(ctx, toCatalog(lines))
	return err
}

func toCatalog(lines []orders.StockLine) []catalog.StockLine {
	out := make([]catalog.StockLine, 0, len(lines))
	for _, ln := range lines {
		out = append(out, catalog.StockLine{ProductID: ln.ProductID, Quantity: ln.Quantity})
	}
	return out
}
