package checkout

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/sportstyle/store/internal/domain/auth"
)

// ErrForbidden is returned when a user requests an order that belongs to
// someone else.
var ErrForbidden = errors.New("order belongs to another user")

// GetOrder returns a single order. Non-admin callers only see their own
// orders; a foreign order yields ErrForbidden rather than leaking its
// existence through a different error shape.
func (s *Service) GetOrder(ctx context.Context, user auth.Identity, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !user.Admin && o.UserID != user.UserID {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListUserOrders returns the caller's orders, newest first.
func (s *Service) ListUserOrders(ctx context.Context, user auth.Identity) ([]*Order, error) {
	orders, err := s.orders.ListByUser(ctx, user.UserID)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// ListAllOrders returns the most recent orders across all users, for the
// admin dashboard. limit caps the result; zero or negative means the
// repository default.
func (s *Service) ListAllOrders(ctx context.Context, user auth.Identity, limit int) ([]*Order, error) {
	if !user.Admin {
		return nil, ErrForbidden
	}
	orders, err := s.orders.ListAll(ctx, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list orders")
	}
	return orders, nil
}

// UpdateOrderStatus moves an order along its lifecycle. Transitions only go
// forward; cancellation is allowed until the order ships.
func (s *Service) UpdateOrderStatus(ctx context.Context, user auth.Identity, orderID string, next Status) (*Order, error) {
	if !user.Admin {
		return nil, ErrForbidden
	}
	if !next.Valid() {
		return nil, errors.Errorf("unknown order status %q", next)
	}

	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransitionTo(next) {
		return nil, &InvalidStatusTransitionError{From: o.Status, To: next}
	}

	now := s.now().UTC()
	if err := s.orders.UpdateStatus(ctx, orderID, next, now); err != nil {
		return nil, errors.Wrap(err, "update status")
	}
	o.Status = next
	o.UpdatedAt = now
	return o, nil
}

// DeleteOrder removes an order record entirely. Admin only; intended for
// test data cleanup, not order cancellation.
func (s *Service) DeleteOrder(ctx context.Context, user auth.Identity, orderID string) error {
	if !user.Admin {
		return ErrForbidden
	}
	return s.orders.Delete(ctx, orderID)
}
