// Package cart owns the mutable per-user collection of line items and keeps
// its aggregates consistent. Every mutation recomputes figures through the
// pricing engine; aggregates are a derived cache and are never patched
// incrementally.
package cart

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/sportstyle/store/internal/domain/pricing"
)

var (
	// ErrItemNotFound is returned when an item key is not present in the
	// user's cart.
	ErrItemNotFound = errors.New("cart item not found")
	// ErrConcurrentModification is returned by the repository when a save
	// races with another mutation of the same cart. The service retries the
	// mutation once before surfacing it.
	ErrConcurrentModification = errors.New("cart modified concurrently")
	// ErrNotFound is returned by the repository when no cart row exists for
	// the user. Callers treat this as an empty cart, never as a failure.
	ErrNotFound = errors.New("cart not found")
)

// SizeUnavailableError indicates the requested size is not offered for the
// product.
type SizeUnavailableError struct {
	ProductID string
	Size      string
}

func (e *SizeUnavailableError) Error() string {
	return "size " + e.Size + " not available for product " + e.ProductID
}

// LineItem is one product/size/personalization selection with a quantity.
// Display fields are denormalized at add time and refreshed from the live
// catalog on every read.
type LineItem struct {
	Key             string                   `json:"key"`
	ProductID       string                   `json:"product_id"`
	ProductName     string                   `json:"product_name"`
	ProductImage    string                   `json:"product_image"`
	Team            string                   `json:"team"`
	Size            string                   `json:"size"`
	Quantity        int                      `json:"quantity"`
	UnitPrice       decimal.Decimal          `json:"unit_price"`
	Surcharge       decimal.Decimal          `json:"surcharge"`
	Personalization *pricing.Personalization `json:"personalization,omitempty"`
	Subtotal        decimal.Decimal          `json:"subtotal"`
}

// ItemKey builds the merge key for a line item. Two additions merge into one
// line only when product, size, and personalization all match. The key is
// addressable as a URL path segment, so every component must stay free of
// characters like '#', '%', and '/'.
func ItemKey(productID, size string, p *pricing.Personalization) string {
	return strings.Join([]string{productID, size, p.Fingerprint()}, ":")
}

// Cart is the per-user collection of line items plus derived aggregates.
// Version supports optimistic concurrency at the persistence layer.
type Cart struct {
	UserID     string
	UserEmail  string
	Items      []LineItem
	TotalItems int
	Subtotal   decimal.Decimal
	Version    int64
	UpdatedAt  time.Time
}

// Empty returns a fresh cart for the given user. A user without a stored
// cart has an empty one, not a missing one.
func Empty(userID, email string) *Cart {
	return &Cart{
		UserID:    userID,
		UserEmail: email,
		Subtotal:  decimal.Zero,
	}
}

// find returns the index of the item with the given key, or -1.
func (c *Cart) find(key string) int {
	for i := range c.Items {
		if c.Items[i].Key == key {
			return i
		}
	}
	return -1
}

// recompute refreshes the derived aggregates from the line items.
func (c *Cart) recompute(cfg pricing.Config) {
	figures := make([]*pricing.Item, len(c.Items))
	for i := range c.Items {
		figures[i] = &pricing.Item{
			Quantity: c.Items[i].Quantity,
			Subtotal: c.Items[i].Subtotal,
		}
	}
	c.TotalItems, c.Subtotal = cfg.Aggregate(figures)
}

// Repository defines persistence for carts. Save must reject writes based on
// a stale Version with ErrConcurrentModification and bump the version on
// success; the stored cart is the normalized form with no holes or nil
// entries.
type Repository interface {
	Get(ctx context.Context, userID string) (*Cart, error)
	Save(ctx context.Context, c *Cart) error
	Delete(ctx context.Context, userID string) error
}
