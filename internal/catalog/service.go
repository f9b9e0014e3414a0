package catalog

import (
	"context"
	"strings"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/ariefcatur/go-modular-shop/internal/clock"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const CodeCompensationFailed = "COMPENSATION_FAILED"

type Service struct {
	repo   ProductRepository
	ledger *Ledger
	clock  clock.Clock
	log    *zap.Logger
}

func NewService(repo ProductRepository, ledger *Ledger, clk clock.Clock, log *zap.Logger) *Service {
	return &Service{repo: repo, ledger: ledger, clock: clk, log: log}
}

type CreateProductInput struct {
	SKU          string
	Name         string
	Description  string
	Price        decimal.Decimal
	Currency     string
	InitialStock int
}

func (s *Service) CreateProduct(ctx context.Context, in CreateProductInput) (Product, error) {
	sku, err := NormalizeSKU(in.SKU)
	if err != nil {
		return Product{}, err
	}
	name, err := validateName(in.Name)
	if err != nil {
		return Product{}, err
	}
	desc, err := validateDescription(in.Description)
	if err != nil {
		return Product{}, err
	}
	price, err := NewMoney(in.Price, in.Currency)
	if err != nil {
		return Product{}, err
	}
	if err := validateStock(in.InitialStock); err != nil {
		return Product{}, err
	}

	if _, err := s.repo.GetBySKU(ctx, sku); err == nil {
		return Product{}, duplicateSKU(sku)
	} else if !apperr.IsNotFound(err) {
		return Product{}, err
	}

	now := s.clock.Now()
	p, err := s.repo.Create(ctx, Product{
		ID:          uuid.NewString(),
		SKU:         sku,
		Name:        name,
		Description: desc,
		Price:       price,
		Stock:       in.InitialStock,
		IsActive:    true,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
	if err != nil {
		return Product{}, err
	}
	s.log.Info("product created", zap.String("product_id", p.ID), zap.String("sku", p.SKU))
	return p, nil
}

func duplicateSKU(sku string) error {
	return apperr.BusinessRule(CodeDuplicateSKU, "a product with SKU '"+sku+"' already exists").With("sku", sku)
}

// DuplicateSKU is exported for repositories that detect the clash on insert.
func DuplicateSKU(sku string) error { return duplicateSKU(sku) }

func (s *Service) GetProduct(ctx context.Context, id string) (Product, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) GetBySKU(ctx context.Context, sku string) (Product, error) {
	return s.repo.GetBySKU(ctx, strings.ToUpper(strings.TrimSpace(sku)))
}

func (s *Service) ListProducts(ctx context.Context, page Page) ([]Product, error) {
	return s.repo.List(ctx, page.Normalize())
}

func (s *Service) SearchProducts(ctx context.Context, f SearchFilter) ([]Product, error) {
	if f.MinPrice != nil && f.MaxPrice != nil && f.MinPrice.GreaterThan(*f.MaxPrice) {
		return nil, apperr.Validation("min_price", "min_price must not exceed max_price")
	}
	f.Query = strings.TrimSpace(f.Query)
	f.Page = f.Page.Normalize()
	return s.repo.Search(ctx, f)
}

// UpdateProductInput carries a partial update; nil fields stay untouched.
// SKU is immutable and therefore absent.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Price       *decimal.Decimal
	Currency    *string
	Stock       *int
	IsActive    *bool
}

func (s *Service) UpdateProduct(ctx context.Context, id string, in UpdateProductInput) (Product, error) {
	if in.Name != nil {
		n, err := validateName(*in.Name)
		if err != nil {
			return Product{}, err
		}
		in.Name = &n
	}
	if in.Description != nil {
		if _, err := validateDescription(*in.Description); err != nil {
			return Product{}, err
		}
	}
	if in.Stock != nil {
		if err := validateStock(*in.Stock); err != nil {
			return Product{}, err
		}
	}

	now := s.clock.Now()
	p, err := s.ledger.mutate(ctx, "update", id, func(p *Product) error {
		if in.Name != nil {
			p.Name = *in.Name
		}
		if in.Description != nil {
			p.Description = *in.Description
		}
		if in.Price != nil || in.Currency != nil {
			amount, cur := p.Price.Amount, p.Price.Currency
			if in.Price != nil {
				amount = *in.Price
			}
			if in.Currency != nil {
				cur = *in.Currency
			}
			m, err := NewMoney(amount, cur)
			if err != nil {
				return err
			}
			p.Price = m
		}
		if in.Stock != nil {
			p.Stock = *in.Stock
		}
		if in.IsActive != nil {
			p.IsActive = *in.IsActive
		}
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return Product{}, err
	}
	s.log.Info("product updated", zap.String("product_id", id), zap.Int("version", p.Version))
	return p, nil
}

// DeleteProduct deactivates the product when logical is true, otherwise it
// sets the deletion marker so the product disappears from every read.
func (s *Service) DeleteProduct(ctx context.Context, id string, logical bool) error {
	now := s.clock.Now()
	_, err := s.ledger.mutate(ctx, "delete", id, func(p *Product) error {
		if logical {
			p.Deactivate()
		} else {
			p.MarkDeleted(now)
		}
		p.UpdatedAt = now
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Info("product deleted", zap.String("product_id", id), zap.Bool("logical", logical))
	return nil
}

// ReserveStock reserves every line or none: a partial batch is released again
// before the error is returned.
func (s *Service) ReserveStock(ctx context.Context, lines []StockLine) ([]StockChange, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}
	changes, err := s.ledger.ReserveBatch(ctx, lines)
	if err == nil {
		return changes, nil
	}
	return nil, s.reconcile(ctx, "reserve", changes, s.ledger.Release, err)
}

// ReleaseStock is all-or-nothing like ReserveStock: lines released before a
// failure are reserved again, so the caller still holds every unit.
func (s *Service) ReleaseStock(ctx context.Context, lines []StockLine) ([]StockChange, error) {
	if err := validateLines(lines); err != nil {
		return nil, err
	}
	changes, err := s.ledger.ReleaseBatch(ctx, lines)
	if err == nil {
		return changes, nil
	}
	return nil, s.reconcile(ctx, "release", changes, s.ledger.Restore, err)
}

// reconcile undoes applied in reverse order and returns cause. If an undo
// fails the batch stays partially applied and that is reported as
// COMPENSATION_FAILED instead.
func (s *Service) reconcile(ctx context.Context, op string, applied []StockChange,
	undo func(context.Context, string, int) (int, error), cause error,
) error {
	ctx = context.WithoutCancel(ctx)
	for i := len(applied) - 1; i >= 0; i-- {
		c := applied[i]
		if _, err := undo(ctx, c.ProductID, c.Quantity); err != nil {
			s.log.Error("reconcile partial stock batch failed",
				zap.String("op", op),
				zap.String("product_id", c.ProductID),
				zap.Int("quantity", c.Quantity),
				zap.NamedError("cause", cause),
				zap.Error(err),
			)
			return apperr.Infrastructure(CodeCompensationFailed,
				"stock "+op+" left partially applied", err).
				With("product_id", c.ProductID).With("quantity", c.Quantity)
		}
	}
	return cause
}

func validateLines(lines []StockLine) error {
	if len(lines) == 0 {
		return apperr.Validation("items", "at least one item is required")
	}
	for _, ln := range lines {
		if ln.ProductID == "" {
			return apperr.Validation("product_id", "product_id is required")
		}
		if ln.Quantity <= 0 {
			return apperr.Validation("quantity", "quantity must be greater than zero").With("product_id", ln.ProductID)
		}
	}
	return nil
}
