// Package checkout converts a priced cart snapshot into an immutable order
// record through a small per-attempt state machine, and owns the order
// entity and its status lifecycle.
package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/sportstyle/store/internal/domain/cart"
)

var (
	// ErrOrderNotFound is returned when no order exists for the given ID.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderIDCollision is returned by the repository when an insert hits
	// an existing order ID. The service retries with a fresh suffix.
	ErrOrderIDCollision = errors.New("order id collision")
)

// Status is the lifecycle state of an order. Transitions move forward only;
// cancellation is allowed before shipment.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var statusRank = map[Status]int{
	StatusPending:    0,
	StatusProcessing: 1,
	StatusShipped:    2,
	StatusDelivered:  3,
}

// Valid reports whether the status is a known value.
func (s Status) Valid() bool {
	if s == StatusCancelled {
		return true
	}
	_, ok := statusRank[s]
	return ok
}

// CanTransitionTo reports whether the order status may move from s to next.
// Forward moves along pending -> processing -> shipped -> delivered are
// allowed; cancellation is allowed until the order has shipped. There are no
// backward transitions.
func (s Status) CanTransitionTo(next Status) bool {
	if s == next {
		return false
	}
	if s == StatusCancelled || s == StatusDelivered {
		return false
	}
	if next == StatusCancelled {
		return statusRank[s] < statusRank[StatusShipped]
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

// InvalidStatusTransitionError indicates a rejected status change.
type InvalidStatusTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidStatusTransitionError) Error() string {
	return "invalid order status transition from " + string(e.From) + " to " + string(e.To)
}

// ShippingAddress is the structured delivery address captured during
// checkout. Postal code and phone format checks belong to the presentation
// layer; here only presence is enforced.
type ShippingAddress struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

// Validate checks that the required fields are present.
func (a ShippingAddress) Validate() error {
	switch {
	case strings.TrimSpace(a.Street) == "":
		return errors.New("shipping address: street is required")
	case strings.TrimSpace(a.City) == "":
		return errors.New("shipping address: city is required")
	case strings.TrimSpace(a.PostalCode) == "":
		return errors.New("shipping address: postal code is required")
	}
	return nil
}

// Order is the immutable record of a confirmed purchase. Only Status (and
// the settlement flag) change after creation; the line items are a snapshot
// copied from the cart at confirmation time and never track later catalog or
// cart changes.
type Order struct {
	ID             string
	UserID         string
	UserEmail      string
	Items          []cart.LineItem
	Subtotal       decimal.Decimal
	ShippingCost   decimal.Decimal
	Tax            decimal.Decimal
	Discount       decimal.Decimal
	Total          decimal.Decimal
	PointsEarned   int
	PointsRedeemed int
	Status         Status
	Address        ShippingAddress
	PaymentMethod  string
	// Settled records whether the loyalty settlement for this order has been
	// applied, making the settle-and-clear recovery path idempotent.
	Settled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GenerateOrderID builds an order identifier of the form
// ORD-YYYYMMDD-XXXX with a random 4-character uppercase suffix. Suffix
// collisions within a day are possible and handled by retrying the insert.
func GenerateOrderID(now time.Time) string {
	suffix := strings.ToUpper(uuid.New().String()[:4])
	return "ORD-" + now.UTC().Format("20060102") + "-" + suffix
}

// Repository defines persistence for orders. Create must fail with
// ErrOrderIDCollision when the ID already exists; lookups fail with
// ErrOrderNotFound.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]*Order, error)
	ListAll(ctx context.Context, limit int) ([]*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status, updatedAt time.Time) error
	MarkSettled(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}
