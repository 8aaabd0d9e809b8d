// Package product defines the catalog types consumed by the cart and
// checkout pipeline. The catalog itself is an external collaborator; this
// package only specifies the read contract.
package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist or is no
// longer active.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID          string
	Name        string
	Description string
	Price       decimal.Decimal
	Currency    string
	Category    string
	League      string
	Team        string
	ImageURL    string
	// PersonalizationFee is the per-product surcharge for a custom
	// name/number print.
	PersonalizationFee decimal.Decimal
	Sizes              []string
	// StockBySize maps size to units available.
	StockBySize map[string]int
	Featured    bool
	Active      bool
}

// HasSize reports whether the product is offered in the given size.
func (p *Product) HasSize(size string) bool {
	for _, s := range p.Sizes {
		if s == size {
			return true
		}
	}
	return false
}

// Repository defines read operations for the product catalog. Lookups return
// active products only; a missing or deactivated product is ErrNotFound.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
