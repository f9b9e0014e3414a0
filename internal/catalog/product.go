package catalog

import (
	"regexp"
	"strings"
	"time"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

const (
	CodeDuplicateSKU  = "DUPLICATE_SKU"
	CodeInvalidPrice  = "INVALID_PRICE"
	CodeInvalidStock  = "INVALID_STOCK"
	CodeInvalidSKU    = "INVALID_SKU"
	defaultCurrency   = "USD"
	maxNameLen        = 255
	maxDescriptionLen = 1000
)

var skuPattern = regexp.MustCompile(`^[A-Z0-9_-]{3,50}$`)

type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewMoney validates that amount is positive and that cur is an ISO-4217 code.
func NewMoney(amount decimal.Decimal, cur string) (Money, error) {
	if cur == "" {
		cur = defaultCurrency
	}
	unit, err := currency.ParseISO(strings.ToUpper(strings.TrimSpace(cur)))
	if err != nil {
		return Money{}, apperr.Validation("currency", "currency must be an ISO-4217 code").With("invalid_value", cur)
	}
	if !amount.IsPositive() {
		e := apperr.Validation("price", "price must be greater than zero").With("invalid_value", amount.String())
		e.Code = CodeInvalidPrice
		return Money{}, e
	}
	return Money{Amount: amount.Round(2), Currency: unit.String()}, nil
}

type Product struct {
	ID          string     `json:"product_id"`
	SKU         string     `json:"sku"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Price       Money      `json:"price"`
	Stock       int        `json:"stock_quantity"`
	IsActive    bool       `json:"is_active"`
	Version     int        `json:"version"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"-"`
}

func (p *Product) Deleted() bool { return p.DeletedAt != nil }

// Available reports whether the product can take part in a new order.
func (p *Product) Available() bool { return p.IsActive && !p.Deleted() }

// Reserve decrements stock. The caller persists and bumps the version.
func (p *Product) Reserve(qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity", "quantity must be greater than zero")
	}
	if qty > p.Stock {
		return apperr.InsufficientStock(p.ID, qty, p.Stock)
	}
	p.Stock -= qty
	return nil
}

func (p *Product) Release(qty int) error {
	if qty <= 0 {
		return apperr.Validation("quantity", "quantity must be greater than zero")
	}
	p.Stock += qty
	return nil
}

func (p *Product) Deactivate() { p.IsActive = false }

func (p *Product) MarkDeleted(at time.Time) {
	p.IsActive = false
	p.DeletedAt = &at
}

func NormalizeSKU(s string) (string, error) {
	sku := strings.ToUpper(strings.TrimSpace(s))
	if !skuPattern.MatchString(sku) {
		e := apperr.Validation("sku", "sku must be 3-50 characters of A-Z, 0-9, '-' or '_'").With("invalid_value", s)
		e.Code = CodeInvalidSKU
		return "", e
	}
	return sku, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || len(name) > maxNameLen {
		return "", apperr.Validation("name", "name must be between 1 and 255 characters")
	}
	return name, nil
}

func validateDescription(d string) (string, error) {
	if len(d) > maxDescriptionLen {
		return "", apperr.Validation("description", "description must be at most 1000 characters")
	}
	return d, nil
}

func validateStock(n int) error {
	if n < 0 {
		e := apperr.Validation("stock", "stock must not be negative").With("invalid_value", n)
		e.Code = CodeInvalidStock
		return e
	}
	return nil
}
