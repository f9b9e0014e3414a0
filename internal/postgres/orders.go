package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ariefcatur/go-modular-shop/internal/apperr"
	"github.com/ariefcatur/go-modular-shop/internal/orders"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

const orderColumns = `id, customer_id, customer_name, customer_email, customer_phone,
	shipping_street, shipping_city, shipping_state, shipping_postal_code, shipping_country,
	currency, total_amount::text, status, version, cancel_reason,
	created_at, updated_at, confirmed_at, cancelled_at`

type OrderRepository struct {
	pool *pgxpool.Pool
}

var _ orders.OrderRepository = (*OrderRepository)(nil)

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Save(ctx context.Context, o orders.Order) (orders.Order, error) {
	err := withTx(ctx, r.pool, func(ctx context.Context) error {
		q := db(ctx, r.pool)
		c, a := o.Customer, o.Shipping
		_, err := q.Exec(ctx, `
INSERT INTO orders (id, customer_id, customer_name, customer_email, customer_phone,
	shipping_street, shipping_city, shipping_state, shipping_postal_code, shipping_country,
	currency, total_amount, status, version, cancel_reason,
	created_at, updated_at, confirmed_at, cancelled_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12::numeric, $13, $14, $15, $16, $17, $18, $19)`,
			o.ID, c.ID, c.Name, c.Email, c.Phone,
			a.Street, a.City, a.State, a.PostalCode, a.Country,
			o.Currency, o.TotalAmount.String(), string(o.Status), o.Version, o.CancelReason,
			o.CreatedAt, o.UpdatedAt, o.ConfirmedAt, o.CancelledAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return apperr.BusinessRule("DUPLICATE_ORDER", fmt.Sprintf("order '%s' already exists", o.ID))
			}
			return dbErr("insert order", err)
		}

		batch := &pgx.Batch{}
		for i, it := range o.Items {
			batch.Queue(`
INSERT INTO order_items (order_id, position, product_id, product_name, quantity, unit_price)
VALUES ($1, $2, $3, $4, $5, $6::numeric)`,
				o.ID, i, it.ProductID, it.ProductName, it.Quantity, it.UnitPrice.String())
		}
		tx := txFromContext(ctx)
		br := tx.SendBatch(ctx, batch)
		for range o.Items {
			if _, err := br.Exec(); err != nil {
				_ = br.Close()
				return dbErr("insert order item", err)
			}
		}
		if err := br.Close(); err != nil {
			return dbErr("insert order items", err)
		}
		return nil
	})
	if err != nil {
		return orders.Order{}, err
	}
	return o, nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (orders.Order, error) {
	q := db(ctx, r.pool)
	o, err := scanOrder(q.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return orders.Order{}, notFoundOr(err, "Order", id, "get order")
	}
	items, err := r.loadItems(ctx, q, []string{o.ID})
	if err != nil {
		return orders.Order{}, err
	}
	o.Items = items[o.ID]
	return o, nil
}

func (r *OrderRepository) GetByCustomer(ctx context.Context, customerID string, page orders.Page) ([]orders.Order, error) {
	q := db(ctx, r.pool)
	rows, err := q.Query(ctx, `
SELECT `+orderColumns+` FROM orders
WHERE customer_id = $1
ORDER BY created_at DESC
OFFSET $2 LIMIT $3`, customerID, page.Skip, page.Limit)
	if err != nil {
		return nil, dbErr("list orders", err)
	}
	defer rows.Close()

	out := make([]orders.Order, 0)
	ids := make([]string, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, dbErr("scan order", err)
		}
		out = append(out, o)
		ids = append(ids, o.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("iterate orders", err)
	}
	rows.Close()
	if len(ids) == 0 {
		return out, nil
	}

	items, err := r.loadItems(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Items = items[out[i].ID]
	}
	return out, nil
}

// Update writes the mutable status fields guarded by the version column.
func (r *OrderRepository) Update(ctx context.Context, o orders.Order) (orders.Order, error) {
	q := db(ctx, r.pool)
	tag, err := q.Exec(ctx, `
UPDATE orders
SET status = $2, cancel_reason = $3, updated_at = $4, confirmed_at = $5, cancelled_at = $6,
	version = version + 1
WHERE id = $1 AND version = $7`,
		o.ID, string(o.Status), o.CancelReason, o.UpdatedAt, o.ConfirmedAt, o.CancelledAt, o.Version,
	)
	if err != nil {
		return orders.Order{}, notFoundOr(err, "Order", o.ID, "update order")
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, o.ID).Scan(&exists); err != nil {
			return orders.Order{}, dbErr("update order", err)
		}
		if !exists {
			return orders.Order{}, apperr.NotFound("Order", o.ID)
		}
		return orders.Order{}, apperr.Conflict("Order", o.ID, o.Version)
	}
	o.Version++
	return o, nil
}

func (r *OrderRepository) loadItems(ctx context.Context, q querier, ids []string) (map[string][]orders.Item, error) {
	rows, err := q.Query(ctx, `
SELECT order_id::text, product_id::text, product_name, quantity, unit_price::text
FROM order_items
WHERE order_id::text = ANY($1)
ORDER BY order_id, position`, ids)
	if err != nil {
		return nil, dbErr("load order items", err)
	}
	defer rows.Close()

	out := make(map[string][]orders.Item, len(ids))
	for rows.Next() {
		var (
			orderID string
			it      orders.Item
			price   string
		)
		if err := rows.Scan(&orderID, &it.ProductID, &it.ProductName, &it.Quantity, &price); err != nil {
			return nil, dbErr("scan order item", err)
		}
		if it.UnitPrice, err = decimal.NewFromString(price); err != nil {
			return nil, dbErr("parse unit price", err)
		}
		out[orderID] = append(out[orderID], it)
	}
	if err := rows.Err(); err != nil {
		return nil, dbErr("iterate order items", err)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (orders.Order, error) {
	var (
		o      orders.Order
		total  string
		status string
	)
	err := row.Scan(
		&o.ID, &o.Customer.ID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Shipping.Street, &o.Shipping.City, &o.Shipping.State, &o.Shipping.PostalCode, &o.Shipping.Country,
		&o.Currency, &total, &status, &o.Version, &o.CancelReason,
		&o.CreatedAt, &o.UpdatedAt, &o.ConfirmedAt, &o.CancelledAt,
	)
	if err != nil {
		return orders.Order{}, err
	}
	st, ok := orders.ParseStatus(status)
	if !ok {
		return orders.Order{}, errors.New("unknown order status " + status)
	}
	o.Status = st
	if o.TotalAmount, err = decimal.NewFromString(total); err != nil {
		return orders.Order{}, fmt.Errorf("parse total %q: %w", total, err)
	}
	return o, nil
}
