package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sportstyle/store/internal/domain/cart"
)

const (
	getCartSQL = `SELECT user_id, user_email, items, total_items, subtotal, version, updated_at
		FROM carts WHERE user_id = $1`

	insertCartSQL = `INSERT INTO carts (user_id, user_email, items, total_items, subtotal, version, updated_at)
		VALUES ($1, $2, $3, $4, $5, 1, $6)
		ON CONFLICT (user_id) DO NOTHING`

	updateCartSQL = `UPDATE carts
		SET user_email = $2, items = $3, total_items = $4, subtotal = $5,
			version = version + 1, updated_at = $6
		WHERE user_id = $1 AND version = $7`

	deleteCartSQL = `DELETE FROM carts WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository backed by PostgreSQL. A version
// column on the cart row provides the optimistic concurrency check: a save
// carrying a stale version matches no row and fails with
// cart.ErrConcurrentModification.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Get returns the user's cart or cart.ErrNotFound.
func (r *CartRepository) Get(ctx context.Context, userID string) (*cart.Cart, error) {
	rows, err := r.pool.Query(ctx, getCartSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("getting cart for %q: %w", userID, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart for %q: %w", userID, err)
	}
	return c, nil
}

// Save persists the cart. Version zero inserts a fresh row; any other
// version updates the existing row only when it still carries that version.
func (r *CartRepository) Save(ctx context.Context, c *cart.Cart) error {
	itemsJSON, err := json.Marshal(c.Items)
	if err != nil {
		return fmt.Errorf("marshaling cart items: %w", err)
	}

	if c.Version == 0 {
		tag, err := r.pool.Exec(ctx, insertCartSQL,
			c.UserID, c.UserEmail, itemsJSON, c.TotalItems, c.Subtotal, c.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("inserting cart for %q: %w", c.UserID, err)
		}
		if tag.RowsAffected() == 0 {
			return cart.ErrConcurrentModification
		}
		return nil
	}

	tag, err := r.pool.Exec(ctx, updateCartSQL,
		c.UserID, c.UserEmail, itemsJSON, c.TotalItems, c.Subtotal, c.UpdatedAt, c.Version,
	)
	if err != nil {
		return fmt.Errorf("updating cart for %q: %w", c.UserID, err)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrConcurrentModification
	}
	return nil
}

// Delete removes the user's cart. Deleting an absent cart is a no-op.
func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, deleteCartSQL, userID); err != nil {
		return fmt.Errorf("deleting cart for %q: %w", userID, err)
	}
	return nil
}

func scanCart(row pgx.CollectableRow) (*cart.Cart, error) {
	var (
		c         cart.Cart
		itemsJSON []byte
	)
	err := row.Scan(&c.UserID, &c.UserEmail, &itemsJSON, &c.TotalItems, &c.Subtotal, &c.Version, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(itemsJSON, &c.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling cart items: %w", err)
	}
	return &c, nil
}
