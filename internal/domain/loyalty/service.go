package loyalty

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/sportstyle/store/internal/domain/pricing"
)

// Redemption is the outcome of a redemption preview: the points actually
// accepted after capping and their euro discount value.
type Redemption struct {
	AcceptedPoints int
	Discount       decimal.Decimal
}

// Service implements the loyalty ledger operations on top of a Repository.
type Service struct {
	pricing  pricing.Config
	accounts Repository
}

// NewService creates a loyalty Service.
func NewService(cfg pricing.Config, accounts Repository) *Service {
	return &Service{pricing: cfg, accounts: accounts}
}

// GetBalance returns the user's current point balance.
func (s *Service) GetBalance(ctx context.Context, userID string) (int, error) {
	balance, err := s.accounts.GetBalance(ctx, userID)
	if err != nil {
		return 0, errors.Wrap(err, "get balance")
	}
	return balance, nil
}

// PreviewRedemption clamps the requested points to what the order subtotal
// and the user's balance allow and returns the resulting discount. It is a
// dry run: the balance is never mutated here. The accepted amount is always
// a whole multiple of the points-to-euro ratio.
func (s *Service) PreviewRedemption(ctx context.Context, userID string, subtotal decimal.Decimal, requestedPoints int) (*Redemption, error) {
	if requestedPoints <= 0 {
		return &Redemption{Discount: decimal.Zero}, nil
	}

	balance, err := s.accounts.GetBalance(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get balance")
	}

	maxPoints, err := s.pricing.MaxRedeemablePoints(subtotal, balance)
	if err != nil {
		return nil, err
	}

	accepted := requestedPoints
	if accepted > maxPoints {
		accepted = maxPoints
	}
	// Whole-euro increments only.
	accepted -= accepted % s.pricing.PointsToEuroRatio

	return &Redemption{
		AcceptedPoints: accepted,
		Discount:       s.pricing.PointsDiscount(accepted),
	}, nil
}

// ApplyOrderSettlement performs the atomic decrement-then-increment for a
// confirmed order and returns the new balance. ErrInsufficientPoints is
// surfaced unchanged so the checkout can reject the stale redemption.
func (s *Service) ApplyOrderSettlement(ctx context.Context, userID string, pointsRedeemed, pointsEarned int) (int, error) {
	if pointsRedeemed < 0 || pointsEarned < 0 {
		return 0, &pricing.InvalidInputError{Field: "points", Reason: "must not be negative"}
	}

	newBalance, err := s.accounts.Settle(ctx, userID, pointsRedeemed, pointsEarned)
	if err != nil {
		if errors.Is(err, ErrInsufficientPoints) {
			return 0, err
		}
		return 0, errors.Wrap(err, "settle loyalty account")
	}
	return newBalance, nil
}
