package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/ariefcatur/go-modular-shop/internal/catalog"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const productColumns = `id, sku, name, description, price_amount::text, price_currency,
	stock_quantity, is_active, version, created_at, updated_at, deleted_at`

type ProductRepository struct {
	pool *pgxpool.Pool
}

var _ catalog.ProductRepository = (*ProductRepository)(nil)

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (r *ProductRepository) Create(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	row := db(ctx, r.pool).QueryRow(ctx, `
INSERT INTO products (id, sku, name, description, price_amount, price_currency,
	stock_quantity, is_active, version, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, 1, $9, $9)
RETURNING `+productColumns,
		p.ID, p.SKU, p.Name, p.Description, p.Price.Amount.String(), p.Price.Currency,
		p.Stock, p.IsActive, p.CreatedAt,
	)
	out, err := scanProduct(row)
	if err != nil {
		if isUniqueViolation(err) {
			return catalog.Product{}, catalog.DuplicateSKU(p.SKU)
		}
		return catalog.Product{}, dbErr("create product", err)
	}
	return out, nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (catalog.Product, error) {
	row := db(ctx, r.pool).QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND deleted_at IS NULL`, id)
	p, err := scanProduct(row)
	if err != nil {
		return catalog.Product{}, notFoundOr(err, "Product", id, "get product")
	}
	return p, nil
}

func (r *ProductRepository) GetBySKU(ctx context.Context, sku string) (catalog.Product, error) {
	row := db(ctx, r.pool).QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE sku = $1 AND deleted_at IS NULL`, sku)
	p, err := scanProduct(row)
	if err != nil {
		return catalog.Product{}, notFoundOr(err, "Product", sku, "get product by sku")
	}
	return p, nil
}

// Update is the compare-and-swap on the version column.
func (r *ProductRepository) Update(ctx context.Context, p catalog.Product) (catalog.Product, error) {
	q := db(ctx, r.pool)
	row := q.QueryRow(ctx, `
UPDATE products
SET name = $2, description = $3, price_amount = $4::numeric, price_currency = $5,
	stock_quantity = $6, is_active = $7, deleted_at = $8, updated_at = $9,
	version = version + 1
WHERE id = $1 AND version = $10 AND deleted_at IS NULL
RETURNING `+productColumns,
		p.ID, p.Name, p.Description, p.Price.Amount.String(), p.Price.Currency,
		p.Stock, p.IsActive, p.DeletedAt, p.UpdatedAt, p.Version,
	)
	out, err := scanProduct(row)
	if err == nil {
		return out, nil
	}
	if isCheckViolation(err) {
		return catalog.Product{}, apperr.Validation("stock", "product constraint violated").With("product_id", p.ID)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return catalog.Product{}, notFoundOr(err, "Product", p.ID, "update product")
	}

	var exists bool
	if err := q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM products WHERE id = $1 AND deleted_at IS NULL)`, p.ID,
	).Scan(&exists); err != nil {
		return catalog.Product{}, dbErr("update product", err)
	}
	if !exists {
		return catalog.Product{}, apperr.NotFound("Product", p.ID)
	}
	return catalog.Product{}, apperr.Conflict("Product", p.ID, p.Version)
}

func (r *ProductRepository) List(ctx context.Context, page catalog.Page) ([]catalog.Product, error) {
	rows, err := db(ctx, r.pool).Query(ctx, `
SELECT `+productColumns+` FROM products
WHERE deleted_at IS NULL
ORDER BY sku
OFFSET $1 LIMIT $2`, page.Skip, page.Limit)
	if err != nil {
		return nil, dbErr("list products", err)
	}
	return collectProducts(rows)
}

func (r *ProductRepository) Search(ctx context.Context, f catalog.SearchFilter) ([]catalog.Product, error) {
	where := []string{"deleted_at IS NULL"}
	args := []any{}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Query != "" {
		p := arg("%" + f.Query + "%")
		where = append(where, "(name ILIKE "+p+" OR description ILIKE "+p+")")
	}
	if f.MinPrice != nil {
		where = append(where, "price_amount >= "+arg(f.MinPrice.String())+"::numeric")
	}
	if f.MaxPrice != nil {
		where = append(where, "price_amount <= "+arg(f.MaxPrice.String())+"::numeric")
	}
	sql := `SELECT ` + productColumns + ` FROM products WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY sku OFFSET ` + arg(f.Page.Skip) + ` LIMIT ` + arg(f.Page.Limit)

	rows, err := db(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, dbErr("search products", err)
	}
	return collectProducts(rows)
}

func collectProducts(rows pgx.Rows) ([]catalog.Product, error) {
	defer rows.Close()
	out := make([]catalog.Product, 0)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, dbErr("scan product", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("iterate products", err)
	}
	return out, nil
}

func scanProduct(row pgx.Row) (catalog.Product, error) {
	var (
		p      catalog.Product
		amount string
	)
	if err := row.Scan(
		&p.ID, &p.SKU, &p.Name, &p.Description, &amount, &p.Price.Currency,
		&p.Stock, &p.IsActive, &p.Version, &p.CreatedAt, &p.UpdatedAt, &p.DeletedAt,
	); err != nil {
		return catalog.Product{}, err
	}
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return catalog.Product{}, fmt.Errorf("parse price %q: %w", amount, err)
	}
	p.Price.Amount = d
	return p, nil
}
