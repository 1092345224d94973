package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/candle-shop/internal/domain/order"
)

const (
	createOrderSQL = `INSERT INTO orders (full_name, phone, email, city, warehouse, payment_method, notes, status)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	RETURNING id, created_at, updated_at`

	createOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, price)
	VALUES ($1, $2, $3, $4)
	RETURNING id`

	createOrderItemOptionSQL = `INSERT INTO order_item_options (order_item_id, option_name, value_name, price_modifier)
	VALUES ($1, $2, $3, $4)`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order with its lines and option snapshots in one
// transaction and fills in the generated ids and timestamps.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		c := o.Contact
		err := tx.QueryRow(ctx, createOrderSQL,
			c.FullName, c.Phone, c.Email, c.City, o.Warehouse, string(c.PaymentMethod), c.Notes, string(o.Status),
		).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
		if err != nil {
			return fmt.Errorf("inserting order: %w", err)
		}

		for i := range o.Lines {
			l := &o.Lines[i]
			if err := tx.QueryRow(ctx, createOrderItemSQL, o.ID, l.ProductID, l.Quantity, l.Price).Scan(&l.ID); err != nil {
				return fmt.Errorf("inserting order item: %w", err)
			}
			for _, opt := range l.Options {
				if _, err := tx.Exec(ctx, createOrderItemOptionSQL, l.ID, opt.OptionName, opt.ValueName, opt.PriceModifier); err != nil {
					return fmt.Errorf("inserting order item option: %w", err)
				}
			}
		}
		return nil
	})
	if err != nil {
		o.ID = 0
		return fmt.Errorf("creating order: %w", err)
	}
	return nil
}
