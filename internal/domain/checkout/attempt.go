package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/sportstyle/store/internal/domain/cart"
)

// State is the progress of a single checkout attempt.
type State string

const (
	StateReviewing        State = "reviewing"
	StateAddressCollected State = "address_collected"
	StatePaymentSelected  State = "payment_selected"
	StateConfirmed        State = "confirmed"
	StateAborted          State = "aborted"
)

// ErrNoActiveCheckout is returned when an operation expects an in-flight
// checkout attempt and none exists (or it has expired).
var ErrNoActiveCheckout = errors.New("no active checkout")

// InvalidStateError indicates an operation was called in a state that does
// not allow it.
type InvalidStateError struct {
	State State
	Op    string
}

func (e *InvalidStateError) Error() string {
	return "checkout: cannot " + e.Op + " in state " + string(e.State)
}

// Attempt is one in-flight checkout. The order ID is generated when the
// attempt enters Reviewing and carried through to Confirmed, acting as the
// idempotency key for the whole sequence. Items are a copy of the cart at
// review time; later cart mutations do not affect the attempt.
type Attempt struct {
	// OrderID doubles as the attempt identifier.
	OrderID   string          `json:"order_id"`
	UserID    string          `json:"user_id"`
	UserEmail string          `json:"user_email"`
	State     State           `json:"state"`
	Items     []cart.LineItem `json:"items"`

	Subtotal       decimal.Decimal `json:"subtotal"`
	ShippingCost   decimal.Decimal `json:"shipping_cost"`
	Tax            decimal.Decimal `json:"tax"`
	Discount       decimal.Decimal `json:"discount"`
	Total          decimal.Decimal `json:"total"`
	PointsToRedeem int             `json:"points_to_redeem"`
	PointsEarned   int             `json:"points_earned"`

	Address       *ShippingAddress `json:"address,omitempty"`
	PaymentMethod string           `json:"payment_method,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AttemptStore persists in-flight checkout attempts, keyed by user: a user
// has at most one active checkout. Implementations must expire attempts
// after their ExpiresAt.
type AttemptStore interface {
	Put(ctx context.Context, a *Attempt) error
	Get(ctx context.Context, userID string) (*Attempt, error)
	Delete(ctx context.Context, userID string) error
}

// MemoryAttemptStore is the in-process AttemptStore used by default and in
// tests. Expiry is enforced lazily on Get plus by the optional cleanup loop.
type MemoryAttemptStore struct {
	mu       sync.RWMutex
	attempts map[string]*Attempt
	now      func() time.Time
}

// NewMemoryAttemptStore creates an empty in-memory store.
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{
		attempts: make(map[string]*Attempt),
		now:      time.Now,
	}
}

// Put stores the attempt, replacing any previous one for the same user.
func (s *MemoryAttemptStore) Put(_ context.Context, a *Attempt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	cp.Items = append([]cart.LineItem(nil), a.Items...)
	s.attempts[a.UserID] = &cp
	return nil
}

// Get returns the user's active attempt or ErrNoActiveCheckout.
func (s *MemoryAttemptStore) Get(_ context.Context, userID string) (*Attempt, error) {
	s.mu.RLock()
	a, ok := s.attempts[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrNoActiveCheckout
	}
	if !a.ExpiresAt.IsZero() && s.now().After(a.ExpiresAt) {
		s.mu.Lock()
		delete(s.attempts, userID)
		s.mu.Unlock()
		return nil, ErrNoActiveCheckout
	}
	cp := *a
	cp.Items = append([]cart.LineItem(nil), a.Items...)
	return &cp, nil
}

// Delete removes the user's attempt. Deleting an absent attempt is a no-op.
func (s *MemoryAttemptStore) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.attempts, userID)
	return nil
}

// StartCleanup launches a goroutine that evicts expired attempts at the
// given interval until the context is cancelled.
func (s *MemoryAttemptStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				now := s.now()
				s.mu.Lock()
				for userID, a := range s.attempts {
					if !a.ExpiresAt.IsZero() && now.After(a.ExpiresAt) {
						delete(s.attempts, userID)
					}
				}
				s.mu.Unlock()
			}
		}
	}()
}
