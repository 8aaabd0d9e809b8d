package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sportstyle/store/internal/domain/checkout"
)

const (
	orderColumns = `id, user_id, user_email, items, subtotal, shipping_cost, tax, discount, total,
		points_earned, points_redeemed, status, address, payment_method, settled, created_at, updated_at`

	createOrderSQL = `INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	getOrderSQL = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT ` + orderColumns + ` FROM orders
		WHERE user_id = $1 ORDER BY created_at DESC`

	listAllOrdersSQL = `SELECT ` + orderColumns + ` FROM orders
		ORDER BY created_at DESC LIMIT $1`

	updateOrderStatusSQL = `UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`

	markOrderSettledSQL = `UPDATE orders SET settled = TRUE WHERE id = $1`

	deleteOrderSQL = `DELETE FROM orders WHERE id = $1`
)

// defaultListLimit caps ListAll when the caller does not provide a limit.
const defaultListLimit = 100

var _ checkout.Repository = (*OrderRepository)(nil)

// OrderRepository implements checkout.Repository backed by PostgreSQL.
// Line items and the shipping address are serialized to JSONB columns.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order. A duplicate order ID fails with
// checkout.ErrOrderIDCollision.
func (r *OrderRepository) Create(ctx context.Context, o *checkout.Order) error {
	itemsJSON, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("marshaling order items: %w", err)
	}
	addressJSON, err := json.Marshal(o.Address)
	if err != nil {
		return fmt.Errorf("marshaling order address: %w", err)
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.UserID, o.UserEmail, itemsJSON,
		o.Subtotal, o.ShippingCost, o.Tax, o.Discount, o.Total,
		o.PointsEarned, o.PointsRedeemed, string(o.Status), addressJSON,
		o.PaymentMethod, o.Settled, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return checkout.ErrOrderIDCollision
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order or checkout.ErrOrderNotFound.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*checkout.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, checkout.ErrOrderNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}
	return o, nil
}

// ListByUser returns the user's orders, newest first.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]*checkout.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for %q: %w", userID, err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// ListAll returns the most recent orders across all users, capped at limit.
func (r *OrderRepository) ListAll(ctx context.Context, limit int) ([]*checkout.Order, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	rows, err := r.pool.Query(ctx, listAllOrdersSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("listing orders: %w", err)
	}
	return pgx.CollectRows(rows, scanOrder)
}

// UpdateStatus sets the order status. The transition itself is validated by
// the checkout service.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status checkout.Status, updatedAt time.Time) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status), updatedAt)
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return checkout.ErrOrderNotFound
	}
	return nil
}

// MarkSettled flags the order's loyalty settlement as applied.
func (r *OrderRepository) MarkSettled(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, markOrderSettledSQL, id)
	if err != nil {
		return fmt.Errorf("marking order %q settled: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return checkout.ErrOrderNotFound
	}
	return nil
}

// Delete removes the order record.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteOrderSQL, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return checkout.ErrOrderNotFound
	}
	return nil
}

func scanOrder(row pgx.CollectableRow) (*checkout.Order, error) {
	var (
		o           checkout.Order
		status      string
		itemsJSON   []byte
		addressJSON []byte
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.UserEmail, &itemsJSON,
		&o.Subtotal, &o.ShippingCost, &o.Tax, &o.Discount, &o.Total,
		&o.PointsEarned, &o.PointsRedeemed, &status, &addressJSON,
		&o.PaymentMethod, &o.Settled, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = checkout.Status(status)
	if err := json.Unmarshal(itemsJSON, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling order items: %w", err)
	}
	if err := json.Unmarshal(addressJSON, &o.Address); err != nil {
		return nil, fmt.Errorf("unmarshaling order address: %w", err)
	}
	return &o, nil
}
