// Package pricing implements the pure monetary computations for the
// storefront: line-item subtotals, cart aggregates, shipping, tax, order
// totals, and loyalty point math. All functions are side-effect free and
// operate on decimal values; results are rounded to 2 decimal places
// (half-up) only at storage boundaries, never mid-calculation.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// InvalidInputError indicates a pricing function was called with values that
// can never be valid: negative quantities, negative prices, or a quantity
// above the configured per-item cap. These are local validation failures and
// are never retried.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid pricing input: %s %s", e.Field, e.Reason)
}

// Config holds the injectable business rules for pricing. Monetary values and
// rates are decimals so no float arithmetic ever touches a price.
type Config struct {
	// FreeShippingThreshold is the cart subtotal at or above which shipping
	// is free.
	FreeShippingThreshold decimal.Decimal
	// ShippingFee is the flat fee charged below the free shipping threshold.
	ShippingFee decimal.Decimal
	// TaxRate is applied to subtotal plus shipping.
	TaxRate decimal.Decimal
	// PointsPerEuro is the loyalty accrual rate on an order's total.
	PointsPerEuro int
	// PointsToEuroRatio is how many points convert to one euro of discount.
	// Points are redeemed in whole-euro increments only.
	PointsToEuroRatio int
	// MaxRedemptionFraction caps the redeemable discount relative to the
	// order subtotal.
	MaxRedemptionFraction decimal.Decimal
	// MaxItemQuantity is the per-line-item quantity cap.
	MaxItemQuantity int
}

// DefaultConfig returns the store's standard business rules: free shipping
// from 50 EUR, 5 EUR flat fee, 21% VAT charged on shipping too, 10 points
// earned per euro, 100 points per euro of discount, redemption capped at
// half the subtotal, at most 10 units per line item.
func DefaultConfig() Config {
	return Config{
		FreeShippingThreshold: decimal.NewFromInt(50),
		ShippingFee:           decimal.NewFromInt(5),
		TaxRate:               decimal.RequireFromString("0.21"),
		PointsPerEuro:         10,
		PointsToEuroRatio:     100,
		MaxRedemptionFraction: decimal.RequireFromString("0.5"),
		MaxItemQuantity:       10,
	}
}

// Item carries the two figures of a line item that aggregate computation
// needs. Decoupled from the cart types so the engine stays dependency-free.
type Item struct {
	Quantity int
	Subtotal decimal.Decimal
}

// LineSubtotal computes (unitPrice + surcharge) * quantity rounded to
// 2 decimal places. The stored subtotal is always recomputed through this
// function, never trusted from client input.
func (c Config) LineSubtotal(unitPrice, surcharge decimal.Decimal, quantity int) (decimal.Decimal, error) {
	if unitPrice.IsNegative() {
		return decimal.Zero, &InvalidInputError{Field: "unit_price", Reason: "must not be negative"}
	}
	if surcharge.IsNegative() {
		return decimal.Zero, &InvalidInputError{Field: "surcharge", Reason: "must not be negative"}
	}
	if quantity < 1 {
		return decimal.Zero, &InvalidInputError{Field: "quantity", Reason: "must be at least 1"}
	}
	if c.MaxItemQuantity > 0 && quantity > c.MaxItemQuantity {
		return decimal.Zero, &InvalidInputError{
			Field:  "quantity",
			Reason: fmt.Sprintf("must not exceed %d", c.MaxItemQuantity),
		}
	}

	qty := decimal.NewFromInt(int64(quantity))
	return unitPrice.Add(surcharge).Mul(qty).Round(2), nil
}

// Surcharge returns the product's personalization fee when the payload is
// present with at least one populated field, zero otherwise. An empty name
// and a nil number both count as absent.
func (c Config) Surcharge(fee decimal.Decimal, p *Personalization) decimal.Decimal {
	if p == nil || p.Empty() {
		return decimal.Zero
	}
	if fee.IsNegative() {
		return decimal.Zero
	}
	return fee
}

// Aggregate sums quantities and subtotals across line items. Nil entries
// are skipped; stored carts may contain holes and the aggregate must
// survive them.
func (c Config) Aggregate(items []*Item) (totalItems int, subtotal decimal.Decimal) {
	subtotal = decimal.Zero
	for _, item := range items {
		if item == nil {
			continue
		}
		totalItems += item.Quantity
		subtotal = subtotal.Add(item.Subtotal)
	}
	return totalItems, subtotal.Round(2)
}

// ShippingCost is zero at or above the free threshold, the flat fee below it.
func (c Config) ShippingCost(subtotal decimal.Decimal) decimal.Decimal {
	if subtotal.GreaterThanOrEqual(c.FreeShippingThreshold) {
		return decimal.Zero
	}
	return c.ShippingFee
}

// Tax computes the tax on the given base rounded to 2 decimal places. The
// base is subtotal plus shipping: tax is charged on shipping as well, which
// matches the store's established order-creation behaviour.
func (c Config) Tax(taxableBase decimal.Decimal) decimal.Decimal {
	return taxableBase.Mul(c.TaxRate).Round(2)
}

// OrderTotal computes subtotal + shipping + tax - discount rounded to
// 2 decimal places. A discount exceeding the computable total is an
// inconsistent state: the total is clamped to zero and an InvalidInputError
// is returned so the caller can flag it.
func (c Config) OrderTotal(subtotal, shippingCost, tax, discount decimal.Decimal) (decimal.Decimal, error) {
	total := subtotal.Add(shippingCost).Add(tax).Sub(discount).Round(2)
	if total.IsNegative() {
		return decimal.Zero, &InvalidInputError{
			Field:  "discount",
			Reason: "exceeds order total",
		}
	}
	return total, nil
}

// PointsEarned returns floor(total * PointsPerEuro).
func (c Config) PointsEarned(total decimal.Decimal) (int, error) {
	if total.IsNegative() {
		return 0, &InvalidInputError{Field: "total", Reason: "must not be negative"}
	}
	earned := total.Mul(decimal.NewFromInt(int64(c.PointsPerEuro)))
	return int(earned.IntPart()), nil
}

// MaxRedeemablePoints returns the largest point amount redeemable against an
// order with the given subtotal: capped at MaxRedemptionFraction of the
// subtotal, clamped to the account balance, and rounded down to a whole
// multiple of PointsToEuroRatio.
func (c Config) MaxRedeemablePoints(subtotal decimal.Decimal, balance int) (int, error) {
	if subtotal.IsNegative() {
		return 0, &InvalidInputError{Field: "subtotal", Reason: "must not be negative"}
	}
	if balance < 0 {
		return 0, &InvalidInputError{Field: "balance", Reason: "must not be negative"}
	}

	ratio := decimal.NewFromInt(int64(c.PointsToEuroRatio))
	capPoints := int(subtotal.Mul(c.MaxRedemptionFraction).Mul(ratio).IntPart())
	if balance < capPoints {
		capPoints = balance
	}
	// Whole-euro increments only.
	capPoints -= capPoints % c.PointsToEuroRatio
	return capPoints, nil
}

// PointsDiscount converts a point amount into its euro discount value.
// The caller is expected to pass a multiple of PointsToEuroRatio (see
// MaxRedeemablePoints); fractional euros are preserved exactly otherwise.
func (c Config) PointsDiscount(points int) decimal.Decimal {
	if points <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(points)).
		Div(decimal.NewFromInt(int64(c.PointsToEuroRatio))).
		Round(2)
}
