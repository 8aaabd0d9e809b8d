package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func intPtr(v int) *int { return &v }

func TestLineSubtotal(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name      string
		unitPrice string
		surcharge string
		quantity  int
		want      string
		wantErr   bool
	}{
		{name: "jersey with print, quantity 2", unitPrice: "89.99", surcharge: "10.00", quantity: 2, want: "199.98"},
		{name: "no surcharge", unitPrice: "24.50", surcharge: "0", quantity: 3, want: "73.50"},
		{name: "single unit", unitPrice: "10.00", surcharge: "0", quantity: 1, want: "10.00"},
		{name: "rounds half up", unitPrice: "0.335", surcharge: "0", quantity: 1, want: "0.34"},
		{name: "negative price", unitPrice: "-1", surcharge: "0", quantity: 1, wantErr: true},
		{name: "negative surcharge", unitPrice: "10", surcharge: "-0.01", quantity: 1, wantErr: true},
		{name: "zero quantity", unitPrice: "10", surcharge: "0", quantity: 0, wantErr: true},
		{name: "negative quantity", unitPrice: "10", surcharge: "0", quantity: -3, wantErr: true},
		{name: "quantity above cap", unitPrice: "10", surcharge: "0", quantity: 11, wantErr: true},
		{name: "quantity at cap", unitPrice: "10", surcharge: "0", quantity: 10, want: "100.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cfg.LineSubtotal(dec(tt.unitPrice), dec(tt.surcharge), tt.quantity)

			if tt.wantErr {
				var inputErr *InvalidInputError
				require.ErrorAs(t, err, &inputErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, dec(tt.want).Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestSurcharge(t *testing.T) {
	cfg := DefaultConfig()
	fee := dec("10.00")

	tests := []struct {
		name string
		p    *Personalization
		want string
	}{
		{name: "nil payload", p: nil, want: "0"},
		{name: "both fields empty", p: &Personalization{}, want: "0"},
		{name: "empty name, nil number", p: &Personalization{Name: ""}, want: "0"},
		{name: "name only", p: &Personalization{Name: "MESSI"}, want: "10.00"},
		{name: "number only", p: &Personalization{Number: intPtr(10)}, want: "10.00"},
		{name: "number zero still counts", p: &Personalization{Number: intPtr(0)}, want: "10.00"},
		{name: "both fields", p: &Personalization{Name: "MESSI", Number: intPtr(10)}, want: "10.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := cfg.Surcharge(fee, tt.p)
			assert.True(t, dec(tt.want).Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestAggregate(t *testing.T) {
	cfg := DefaultConfig()

	t.Run("sums quantities and subtotals", func(t *testing.T) {
		count, subtotal := cfg.Aggregate([]*Item{
			{Quantity: 2, Subtotal: dec("199.98")},
			{Quantity: 1, Subtotal: dec("24.50")},
		})
		assert.Equal(t, 3, count)
		assert.True(t, dec("224.48").Equal(subtotal))
	})

	t.Run("skips nil entries", func(t *testing.T) {
		count, subtotal := cfg.Aggregate([]*Item{
			nil,
			{Quantity: 1, Subtotal: dec("10.00")},
			nil,
		})
		assert.Equal(t, 1, count)
		assert.True(t, dec("10.00").Equal(subtotal))
	})

	t.Run("empty cart", func(t *testing.T) {
		count, subtotal := cfg.Aggregate(nil)
		assert.Equal(t, 0, count)
		assert.True(t, subtotal.IsZero())
	})
}

func TestShippingCost(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		subtotal string
		want     string
	}{
		{subtotal: "45.00", want: "5"},
		{subtotal: "49.99", want: "5"},
		{subtotal: "50.00", want: "0"},
		{subtotal: "55.00", want: "0"},
		{subtotal: "0", want: "5"},
	}

	for _, tt := range tests {
		t.Run("subtotal "+tt.subtotal, func(t *testing.T) {
			got := cfg.ShippingCost(dec(tt.subtotal))
			assert.True(t, dec(tt.want).Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestTaxAndOrderTotal(t *testing.T) {
	cfg := DefaultConfig()

	// subtotal=100.00, shipping=5.00 -> tax on 105.00 at 21% = 22.05,
	// total = 127.05.
	subtotal := dec("100.00")
	shipping := cfg.ShippingCost(subtotal)
	require.True(t, shipping.IsZero())

	// Force the below-threshold case explicitly.
	shipping = dec("5.00")
	tax := cfg.Tax(subtotal.Add(shipping))
	assert.True(t, dec("22.05").Equal(tax), "expected 22.05, got %s", tax)

	total, err := cfg.OrderTotal(subtotal, shipping, tax, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, dec("127.05").Equal(total), "expected 127.05, got %s", total)
}

func TestOrderTotal_DiscountExceedsTotal(t *testing.T) {
	cfg := DefaultConfig()

	total, err := cfg.OrderTotal(dec("10.00"), dec("5.00"), dec("3.15"), dec("100.00"))

	var inputErr *InvalidInputError
	require.ErrorAs(t, err, &inputErr)
	assert.True(t, total.IsZero(), "total must be clamped to zero, got %s", total)
}

func TestOrderTotal_WithRedemption(t *testing.T) {
	cfg := DefaultConfig()

	total, err := cfg.OrderTotal(dec("100.00"), dec("0"), dec("21.00"), dec("2.00"))
	require.NoError(t, err)
	assert.True(t, dec("119.00").Equal(total))
}

func TestPointsEarned(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		total string
		want  int
	}{
		{total: "127.05", want: 1270},
		{total: "0", want: 0},
		{total: "0.09", want: 0},
		{total: "10.00", want: 100},
	}

	for _, tt := range tests {
		t.Run("total "+tt.total, func(t *testing.T) {
			got, err := cfg.PointsEarned(dec(tt.total))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("negative total", func(t *testing.T) {
		_, err := cfg.PointsEarned(dec("-1"))
		var inputErr *InvalidInputError
		require.ErrorAs(t, err, &inputErr)
	})
}

func TestMaxRedeemablePoints(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name     string
		subtotal string
		balance  int
		want     int
	}{
		// balance=250, subtotal=60.00: cap 3000, clamp to 250, round down
		// to the nearest 100 = 200 points.
		{name: "balance below cap", subtotal: "60.00", balance: 250, want: 200},
		{name: "cap below balance", subtotal: "10.00", balance: 5000, want: 500},
		{name: "balance under one euro of points", subtotal: "60.00", balance: 99, want: 0},
		{name: "zero balance", subtotal: "60.00", balance: 0, want: 0},
		{name: "zero subtotal", subtotal: "0", balance: 1000, want: 0},
		{name: "exact multiple unchanged", subtotal: "100.00", balance: 400, want: 400},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := cfg.MaxRedeemablePoints(dec(tt.subtotal), tt.balance)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	t.Run("negative balance", func(t *testing.T) {
		_, err := cfg.MaxRedeemablePoints(dec("10"), -1)
		var inputErr *InvalidInputError
		require.ErrorAs(t, err, &inputErr)
	})
}

func TestPointsDiscount(t *testing.T) {
	cfg := DefaultConfig()

	assert.True(t, dec("2.00").Equal(cfg.PointsDiscount(200)))
	assert.True(t, dec("5.00").Equal(cfg.PointsDiscount(500)))
	assert.True(t, cfg.PointsDiscount(0).IsZero())
	assert.True(t, cfg.PointsDiscount(-100).IsZero())
}

func TestPersonalization(t *testing.T) {
	t.Run("empty detection", func(t *testing.T) {
		assert.True(t, Personalization{}.Empty())
		assert.False(t, Personalization{Name: "KANE"}.Empty())
		assert.False(t, Personalization{Number: intPtr(0)}.Empty())
	})

	t.Run("validation", func(t *testing.T) {
		require.NoError(t, Personalization{Name: "LEWANDOWSKI", Number: intPtr(9)}.Validate())
		// The limit counts characters, not bytes: 15 accented runes fit.
		require.NoError(t, Personalization{Name: "ÁÉÍÓÚÀÈÌÒÙÂÊÎÔÛ"}.Validate())
		require.Error(t, Personalization{Name: "ABCDEFGHIJKLMNOP"}.Validate())
		require.Error(t, Personalization{Number: intPtr(100)}.Validate())
		require.Error(t, Personalization{Number: intPtr(-1)}.Validate())
	})

	t.Run("fingerprint distinguishes payloads", func(t *testing.T) {
		a := &Personalization{Name: "MESSI", Number: intPtr(10)}
		b := &Personalization{Name: "MESSI", Number: intPtr(30)}
		var none *Personalization

		assert.NotEqual(t, a.Fingerprint(), b.Fingerprint())
		assert.Equal(t, "-", none.Fingerprint())
		assert.Equal(t, "-", (&Personalization{}).Fingerprint())
		assert.True(t, none.Equal(&Personalization{}))
	})

	t.Run("fingerprint is path safe", func(t *testing.T) {
		// Fingerprints end up inside /cart/items/{key} routes, so they must
		// not contain characters that terminate or escape a path segment.
		payloads := []*Personalization{
			{Name: "GARCIA", Number: intPtr(10)},
			{Name: "FERNÁNDEZ", Number: intPtr(7)},
			{Name: "VAN DER SAR"},
			{Number: intPtr(0)},
		}
		for _, p := range payloads {
			fp := p.Fingerprint()
			assert.NotContainsf(t, fp, "#", "fingerprint %q", fp)
			assert.NotContainsf(t, fp, "%", "fingerprint %q", fp)
			assert.NotContainsf(t, fp, "/", "fingerprint %q", fp)
			assert.NotContainsf(t, fp, "?", "fingerprint %q", fp)
			assert.NotContainsf(t, fp, " ", "fingerprint %q", fp)
		}
	})
}
