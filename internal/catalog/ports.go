package catalog

import (
	"context"

	"github.com/shopspring/decimal"
)

// ProductRepository is the persistence port for products.
// Every read excludes soft-deleted rows.
type ProductRepository interface {
	// Create inserts p with version 1. A taken SKU yields a DUPLICATE_SKU business-rule error.
	Create(ctx context.Context, p Product) (Product, error)

	// GetByID returns a NotFound error for unknown or deleted products.
	GetByID(ctx context.Context, id string) (Product, error)

	GetBySKU(ctx context.Context, sku string) (Product, error)

	// Update writes p only if the stored version still equals p.Version.
	// On success the returned product carries p.Version+1.
	// A stale version yields an apperr Conflict.
	Update(ctx context.Context, p Product) (Product, error)

	List(ctx context.Context, page Page) ([]Product, error)
	Search(ctx context.Context, f SearchFilter) ([]Product, error)
}

type Page struct {
	Skip  int
	Limit int
}

const (
	DefaultLimit = 100
	MaxLimit     = 500
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	return p
}

type SearchFilter struct {
	Query    string
	MinPrice *decimal.Decimal
	MaxPrice *decimal.Decimal
	Page     Page
}
