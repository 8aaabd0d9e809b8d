package checkout

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/sportstyle/store/internal/domain/auth"
	"github.com/sportstyle/store/internal/domain/cart"
	"github.com/sportstyle/store/internal/domain/loyalty"
	"github.com/sportstyle/store/internal/domain/pricing"
)

// ErrEmptyCart is returned when checkout is requested for a cart with no
// items.
var ErrEmptyCart = errors.New("cart is empty")

const (
	// idCollisionAttempts bounds how many fresh suffixes are tried when an
	// order insert collides with an existing ID.
	idCollisionAttempts = 5
	// settlementAttempts bounds the retries of the post-persist settlement
	// steps (loyalty settle, cart clear).
	settlementAttempts = 3
)

// Service drives the checkout state machine and order lifecycle.
type Service struct {
	pricing  pricing.Config
	carts    *cart.Service
	loyalty  *loyalty.Service
	orders   Repository
	attempts AttemptStore

	attemptTTL time.Duration
	retryDelay time.Duration
	now        func() time.Time
}

// NewService creates a checkout Service. attemptTTL bounds how long a
// checkout attempt stays valid (the cart reservation window); retryDelay is
// the base backoff delay for settlement retries.
func NewService(
	cfg pricing.Config,
	carts *cart.Service,
	loyaltySvc *loyalty.Service,
	orders Repository,
	attempts AttemptStore,
	attemptTTL time.Duration,
	retryDelay time.Duration,
) *Service {
	return &Service{
		pricing:    cfg,
		carts:      carts,
		loyalty:    loyaltySvc,
		orders:     orders,
		attempts:   attempts,
		attemptTTL: attemptTTL,
		retryDelay: retryDelay,
		now:        time.Now,
	}
}

// Review starts a checkout attempt from the user's current cart: it
// snapshots the priced line items, fixes the loyalty redemption, computes
// the full pricing preview, and generates the order ID that will identify
// this attempt through to confirmation. Nothing is persisted to the order
// store yet. A previous unconfirmed attempt for the same user is replaced.
func (s *Service) Review(ctx context.Context, user auth.Identity, requestedPoints int) (*Attempt, error) {
	c, err := s.carts.GetCart(ctx, user)
	if err != nil {
		return nil, errors.Wrap(err, "get cart")
	}
	if len(c.Items) == 0 {
		return nil, ErrEmptyCart
	}

	redemption, err := s.loyalty.PreviewRedemption(ctx, user.UserID, c.Subtotal, requestedPoints)
	if err != nil {
		return nil, errors.Wrap(err, "preview redemption")
	}

	shipping := s.pricing.ShippingCost(c.Subtotal)
	tax := s.pricing.Tax(c.Subtotal.Add(shipping))
	total, err := s.pricing.OrderTotal(c.Subtotal, shipping, tax, redemption.Discount)
	if err != nil {
		return nil, err
	}
	earned, err := s.pricing.PointsEarned(total)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	attempt := &Attempt{
		OrderID:        GenerateOrderID(now),
		UserID:         user.UserID,
		UserEmail:      user.Email,
		State:          StateReviewing,
		Items:          append([]cart.LineItem(nil), c.Items...),
		Subtotal:       c.Subtotal,
		ShippingCost:   shipping,
		Tax:            tax,
		Discount:       redemption.Discount,
		Total:          total,
		PointsToRedeem: redemption.AcceptedPoints,
		PointsEarned:   earned,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.attemptTTL),
	}

	if err := s.attempts.Put(ctx, attempt); err != nil {
		return nil, errors.Wrap(err, "store attempt")
	}
	return attempt, nil
}

// CollectAddress records the shipping address on the active attempt.
// Re-submitting an address before payment selection is allowed.
func (s *Service) CollectAddress(ctx context.Context, user auth.Identity, addr ShippingAddress) (*Attempt, error) {
	attempt, err := s.attempts.Get(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	if attempt.State != StateReviewing && attempt.State != StateAddressCollected {
		return nil, &InvalidStateError{State: attempt.State, Op: "collect address"}
	}
	if err := addr.Validate(); err != nil {
		return nil, err
	}
	if addr.Country == "" {
		addr.Country = "Spain"
	}

	attempt.Address = &addr
	attempt.State = StateAddressCollected
	if err := s.attempts.Put(ctx, attempt); err != nil {
		return nil, errors.Wrap(err, "store attempt")
	}
	return attempt, nil
}

// SelectPayment records the payment method label. No gateway is involved:
// payment is simulated and the label is stored verbatim on the order.
func (s *Service) SelectPayment(ctx context.Context, user auth.Identity, method string) (*Attempt, error) {
	attempt, err := s.attempts.Get(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	if attempt.State != StateAddressCollected && attempt.State != StatePaymentSelected {
		return nil, &InvalidStateError{State: attempt.State, Op: "select payment"}
	}
	if method == "" {
		return nil, errors.New("payment method is required")
	}

	attempt.PaymentMethod = method
	attempt.State = StatePaymentSelected
	if err := s.attempts.Put(ctx, attempt); err != nil {
		return nil, errors.Wrap(err, "store attempt")
	}
	return attempt, nil
}

// Abort cancels the active checkout attempt. The cart is untouched; a new
// review can start immediately. Aborting with no active attempt is an error
// so the caller can distinguish a stale client.
func (s *Service) Abort(ctx context.Context, user auth.Identity) error {
	attempt, err := s.attempts.Get(ctx, user.UserID)
	if err != nil {
		return err
	}
	if attempt.State == StateConfirmed {
		return &InvalidStateError{State: attempt.State, Op: "abort"}
	}
	return s.attempts.Delete(ctx, user.UserID)
}

// Confirm finalizes the checkout: it persists the order, settles the
// loyalty ledger, and clears the cart. The persisted order is the source of
// truth — once it exists it is never rolled back, and re-invoking Confirm
// after a partial failure resumes the settlement steps idempotently instead
// of double-charging.
func (s *Service) Confirm(ctx context.Context, user auth.Identity) (*Order, error) {
	attempt, err := s.attempts.Get(ctx, user.UserID)
	if err != nil {
		return nil, err
	}
	if attempt.State != StatePaymentSelected {
		return nil, &InvalidStateError{State: attempt.State, Op: "confirm"}
	}

	// Resume path: the order may already exist if a previous Confirm crashed
	// between persisting and settling.
	existing, err := s.orders.GetByID(ctx, attempt.OrderID)
	if err != nil && !errors.Is(err, ErrOrderNotFound) {
		return nil, errors.Wrap(err, "check existing order")
	}
	if existing != nil && existing.UserID == user.UserID {
		if err := s.settle(ctx, user, existing); err != nil {
			return nil, err
		}
		return existing, nil
	}

	// Balance may have changed since review; reject before persisting
	// anything rather than after.
	if attempt.PointsToRedeem > 0 {
		balance, err := s.loyalty.GetBalance(ctx, user.UserID)
		if err != nil {
			return nil, errors.Wrap(err, "get balance")
		}
		if balance < attempt.PointsToRedeem {
			return nil, loyalty.ErrInsufficientPoints
		}
	}

	o, err := s.buildOrder(attempt)
	if err != nil {
		return nil, err
	}

	if err := s.createWithFreshSuffix(ctx, o, attempt); err != nil {
		return nil, err
	}

	if err := s.settle(ctx, user, o); err != nil {
		return nil, err
	}
	return o, nil
}

// buildOrder recomputes the final totals from the attempt's snapshot and the
// redemption fixed at review time, then assembles the order record.
func (s *Service) buildOrder(attempt *Attempt) (*Order, error) {
	figures := make([]*pricing.Item, len(attempt.Items))
	for i := range attempt.Items {
		figures[i] = &pricing.Item{
			Quantity: attempt.Items[i].Quantity,
			Subtotal: attempt.Items[i].Subtotal,
		}
	}
	_, subtotal := s.pricing.Aggregate(figures)

	shipping := s.pricing.ShippingCost(subtotal)
	tax := s.pricing.Tax(subtotal.Add(shipping))
	total, err := s.pricing.OrderTotal(subtotal, shipping, tax, attempt.Discount)
	if err != nil {
		return nil, err
	}
	earned, err := s.pricing.PointsEarned(total)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	return &Order{
		ID:             attempt.OrderID,
		UserID:         attempt.UserID,
		UserEmail:      attempt.UserEmail,
		Items:          append([]cart.LineItem(nil), attempt.Items...),
		Subtotal:       subtotal,
		ShippingCost:   shipping,
		Tax:            tax,
		Discount:       attempt.Discount,
		Total:          total,
		PointsEarned:   earned,
		PointsRedeemed: attempt.PointsToRedeem,
		Status:         StatusPending,
		Address:        *attempt.Address,
		PaymentMethod:  attempt.PaymentMethod,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// createWithFreshSuffix inserts the order, regenerating the random suffix on
// an ID collision with another user's order for the same date.
func (s *Service) createWithFreshSuffix(ctx context.Context, o *Order, attempt *Attempt) error {
	for i := 0; i < idCollisionAttempts; i++ {
		err := s.orders.Create(ctx, o)
		if err == nil {
			if o.ID != attempt.OrderID {
				attempt.OrderID = o.ID
				if err := s.attempts.Put(ctx, attempt); err != nil {
					zctx.From(ctx).Warn("Failed to store regenerated order id",
						zap.String("order_id", o.ID), zap.Error(err))
				}
			}
			return nil
		}
		if !errors.Is(err, ErrOrderIDCollision) {
			return errors.Wrap(err, "create order")
		}
		zctx.From(ctx).Info("Order id collision, regenerating suffix",
			zap.String("order_id", o.ID))
		o.ID = GenerateOrderID(s.now())
	}
	return ErrOrderIDCollision
}

// settle applies the loyalty settlement and clears the cart, retrying each
// step with bounded backoff. The order is already persisted: failures here
// leave the order in place and the attempt active, so a later Confirm
// resumes exactly where this one stopped.
func (s *Service) settle(ctx context.Context, user auth.Identity, o *Order) error {
	if !o.Settled {
		err := s.withRetry(ctx, func() error {
			_, err := s.loyalty.ApplyOrderSettlement(ctx, user.UserID, o.PointsRedeemed, o.PointsEarned)
			if errors.Is(err, loyalty.ErrInsufficientPoints) {
				// Not transient: surface without burning retries.
				return retryAbort{err}
			}
			return err
		})
		if err != nil {
			return errors.Wrap(err, "settle loyalty")
		}
		if err := s.orders.MarkSettled(ctx, o.ID); err != nil {
			return errors.Wrap(err, "mark order settled")
		}
		o.Settled = true
	}

	err := s.withRetry(ctx, func() error {
		return s.carts.Clear(ctx, user)
	})
	if err != nil {
		return errors.Wrap(err, "clear cart")
	}

	if err := s.attempts.Delete(ctx, user.UserID); err != nil {
		zctx.From(ctx).Warn("Failed to delete checkout attempt",
			zap.String("order_id", o.ID), zap.Error(err))
	}
	return nil
}

// retryAbort wraps an error that must not be retried.
type retryAbort struct{ err error }

func (r retryAbort) Error() string { return r.err.Error() }
func (r retryAbort) Unwrap() error { return r.err }

// withRetry runs fn up to settlementAttempts times with doubling delay,
// honoring context cancellation between attempts.
func (s *Service) withRetry(ctx context.Context, fn func() error) error {
	var lastErr error
	delay := s.retryDelay
	for i := 0; i < settlementAttempts; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		var abort retryAbort
		if errors.As(err, &abort) {
			return abort.err
		}
		lastErr = err
		if i == settlementAttempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}
