package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sportstyle/store/internal/domain/loyalty"
)

const (
	getBalanceSQL = `SELECT balance FROM loyalty_accounts WHERE user_id = $1`

	ensureAccountSQL = `INSERT INTO loyalty_accounts (user_id, balance)
		VALUES ($1, 0) ON CONFLICT (user_id) DO NOTHING`

	settleBalanceSQL = `UPDATE loyalty_accounts
		SET balance = balance - $2 + $3, updated_at = now()
		WHERE user_id = $1 AND balance >= $2
		RETURNING balance`

	setBalanceSQL = `INSERT INTO loyalty_accounts (user_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE SET balance = EXCLUDED.balance, updated_at = now()`
)

var _ loyalty.Repository = (*LoyaltyRepository)(nil)

// LoyaltyRepository implements loyalty.Repository backed by PostgreSQL.
// Accounts are created lazily on first settlement.
type LoyaltyRepository struct {
	pool *pgxpool.Pool
}

// NewLoyaltyRepository returns a LoyaltyRepository that uses the given pool.
func NewLoyaltyRepository(pool *pgxpool.Pool) *LoyaltyRepository {
	return &LoyaltyRepository{pool: pool}
}

// GetBalance returns the user's point balance. Users without an account
// have a balance of zero.
func (r *LoyaltyRepository) GetBalance(ctx context.Context, userID string) (int, error) {
	var balance int
	err := r.pool.QueryRow(ctx, getBalanceSQL, userID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("getting balance for %q: %w", userID, err)
	}
	return balance, nil
}

// Settle atomically applies an order's point movement. The conditional
// update guards against overdraft: when the balance no longer covers the
// redemption the account is left untouched and
// loyalty.ErrInsufficientPoints is returned.
func (r *LoyaltyRepository) Settle(ctx context.Context, userID string, redeemed, earned int) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("beginning settle tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, ensureAccountSQL, userID); err != nil {
		return 0, fmt.Errorf("ensuring account for %q: %w", userID, err)
	}

	var balance int
	err = tx.QueryRow(ctx, settleBalanceSQL, userID, redeemed, earned).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, loyalty.ErrInsufficientPoints
		}
		return 0, fmt.Errorf("settling balance for %q: %w", userID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("committing settle tx: %w", err)
	}
	return balance, nil
}

// SetBalance overwrites the user's balance. Used by the seeding tool.
func (r *LoyaltyRepository) SetBalance(ctx context.Context, userID string, balance int) error {
	if _, err := r.pool.Exec(ctx, setBalanceSQL, userID, balance); err != nil {
		return fmt.Errorf("setting balance for %q: %w", userID, err)
	}
	return nil
}
