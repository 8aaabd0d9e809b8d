// Package loyalty tracks the per-user point balance: redemption previews
// during cart review and the atomic settlement applied when an order is
// confirmed.
package loyalty

import (
	"context"

	"github.com/go-faster/errors"
)

// ErrInsufficientPoints is returned when a settlement tries to redeem more
// points than the account holds at settlement time. This defends against the
// balance changing between preview and confirm, e.g. a concurrent redemption
// from another session.
var ErrInsufficientPoints = errors.New("insufficient loyalty points")

// Repository defines persistence for loyalty accounts. A user without an
// account has a zero balance.
type Repository interface {
	// GetBalance returns the current point balance for the user.
	GetBalance(ctx context.Context, userID string) (int, error)
	// Settle atomically decrements the balance by redeemed and increments it
	// by earned, returning the new balance. It must fail with
	// ErrInsufficientPoints when redeemed exceeds the balance, leaving the
	// account untouched.
	Settle(ctx context.Context, userID string, redeemed, earned int) (int, error)
}
