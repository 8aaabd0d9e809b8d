package cart

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sportstyle/store/internal/domain/auth"
	"github.com/sportstyle/store/internal/domain/pricing"
	"github.com/sportstyle/store/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID map[string]*product.Product
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

// mockCartRepo keeps carts in memory and mimics the optimistic version
// check of the real repository. conflictsLeft forces that many saves to fail
// with ErrConcurrentModification first.
type mockCartRepo struct {
	carts         map[string]*Cart
	conflictsLeft int
	saves         int
}

func newMockCartRepo() *mockCartRepo {
	return &mockCartRepo{carts: make(map[string]*Cart)}
}

func (m *mockCartRepo) Get(_ context.Context, userID string) (*Cart, error) {
	c, ok := m.carts[userID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	cp.Items = append([]LineItem(nil), c.Items...)
	return &cp, nil
}

func (m *mockCartRepo) Save(_ context.Context, c *Cart) error {
	m.saves++
	if m.conflictsLeft > 0 {
		m.conflictsLeft--
		return ErrConcurrentModification
	}
	if stored, ok := m.carts[c.UserID]; ok && stored.Version != c.Version {
		return ErrConcurrentModification
	}
	cp := *c
	cp.Items = append([]LineItem(nil), c.Items...)
	cp.Version++
	m.carts[c.UserID] = &cp
	return nil
}

func (m *mockCartRepo) Delete(_ context.Context, userID string) error {
	delete(m.carts, userID)
	return nil
}

// --- Helpers ---

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

var buyer = auth.Identity{UserID: "u1", Email: "buyer@example.com"}

func jersey(id string, price, fee string) *product.Product {
	return &product.Product{
		ID:                 id,
		Name:               "Home Jersey " + id,
		Price:              dec(price),
		Team:               "Barcelona",
		ImageURL:           "https://cdn.example.com/" + id + ".jpg",
		PersonalizationFee: dec(fee),
		Sizes:              []string{"S", "M", "L", "XL"},
		Active:             true,
	}
}

func newService(products ...*product.Product) (*Service, *mockCartRepo) {
	byID := make(map[string]*product.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	carts := newMockCartRepo()
	svc := NewService(pricing.DefaultConfig(), &mockProductRepo{byID: byID}, carts)
	return svc, carts
}

// --- Tests ---

func TestGetCart_EmptyForNewUser(t *testing.T) {
	svc, _ := newService()

	c, err := svc.GetCart(context.Background(), buyer)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, "buyer@example.com", c.UserEmail)
	assert.Empty(t, c.Items)
	assert.Equal(t, 0, c.TotalItems)
	assert.True(t, c.Subtotal.IsZero())
}

func TestAddItem_ComputesSubtotal(t *testing.T) {
	svc, _ := newService(jersey("p1", "89.99", "10.00"))

	item, err := svc.AddItem(context.Background(), buyer, AddItemParams{
		ProductID:       "p1",
		Quantity:        2,
		Size:            "L",
		Personalization: &pricing.Personalization{Name: "MESSI", Number: intPtr(10)},
	})

	require.NoError(t, err)
	assert.True(t, dec("199.98").Equal(item.Subtotal), "got %s", item.Subtotal)
	assert.True(t, dec("10.00").Equal(item.Surcharge))

	c, err := svc.GetCart(context.Background(), buyer)
	require.NoError(t, err)
	assert.Equal(t, 2, c.TotalItems)
	assert.True(t, dec("199.98").Equal(c.Subtotal), "got %s", c.Subtotal)
}

func TestAddItem_MergesIdenticalSelection(t *testing.T) {
	svc, _ := newService(jersey("p1", "10.00", "10.00"))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 1, Size: "M"})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 1, Size: "M"})
	require.NoError(t, err)

	c, err := svc.GetCart(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 2, c.Items[0].Quantity)
	assert.True(t, dec("20.00").Equal(c.Items[0].Subtotal))
}

func TestAddItem_DifferentSizeDoesNotMerge(t *testing.T) {
	svc, _ := newService(jersey("p1", "10.00", "10.00"))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 1, Size: "M"})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 1, Size: "L"})
	require.NoError(t, err)

	c, err := svc.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)
}

func TestAddItem_DifferentPersonalizationDoesNotMerge(t *testing.T) {
	svc, _ := newService(jersey("p1", "10.00", "10.00"))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, buyer, AddItemParams{
		ProductID: "p1", Quantity: 1, Size: "M",
		Personalization: &pricing.Personalization{Name: "MESSI", Number: intPtr(10)},
	})
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, buyer, AddItemParams{
		ProductID: "p1", Quantity: 1, Size: "M",
		Personalization: &pricing.Personalization{Name: "PEDRI", Number: intPtr(8)},
	})
	require.NoError(t, err)

	c, err := svc.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.Len(t, c.Items, 2)
}

func TestAddItem_EmptyPersonalizationIncursNoSurcharge(t *testing.T) {
	svc, _ := newService(jersey("p1", "10.00", "10.00"))

	item, err := svc.AddItem(context.Background(), buyer, AddItemParams{
		ProductID:       "p1",
		Quantity:        1,
		Size:            "M",
		Personalization: &pricing.Personalization{},
	})

	require.NoError(t, err)
	assert.True(t, item.Surcharge.IsZero())
	assert.Nil(t, item.Personalization)
	assert.True(t, dec("10.00").Equal(item.Subtotal))
}

func TestAddItem_ProductNotFound(t *testing.T) {
	svc, _ := newService()

	_, err := svc.AddItem(context.Background(), buyer, AddItemParams{
		ProductID: "missing", Quantity: 1, Size: "M",
	})
	require.ErrorIs(t, err, product.ErrNotFound)
}

func TestAddItem_SizeUnavailable(t *testing.T) {
	svc, _ := newService(jersey("p1", "10.00", "10.00"))

	_, err := svc.AddItem(context.Background(), buyer, AddItemParams{
		ProductID: "p1", Quantity: 1, Size: "XS",
	})

	var sizeErr *SizeUnavailableError
	require.ErrorAs(t, err, &sizeErr)
	assert.Equal(t, "XS", sizeErr.Size)
}

func TestAddItem_FailureLeavesCartUnchanged(t *testing.T) {
	svc, repo := newService(jersey("p1", "10.00", "10.00"))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 1, Size: "M"})
	require.NoError(t, err)
	before := *repo.carts["u1"]

	// Quantity above the cap fails inside the mutation, before any save.
	_, err = svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 99, Size: "M"})
	var inputErr *pricing.InvalidInputError
	require.ErrorAs(t, err, &inputErr)

	after := *repo.carts["u1"]
	assert.Equal(t, before.Version, after.Version)
	assert.Equal(t, before.TotalItems, after.TotalItems)
	assert.True(t, before.Subtotal.Equal(after.Subtotal))
}

func TestUpdateItem_QuantityAndSubtotal(t *testing.T) {
	svc, _ := newService(jersey("p1", "10.00", "10.00"))
	ctx := context.Background()

	item, err := svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 1, Size: "M"})
	require.NoError(t, err)

	updated, err := svc.UpdateItem(ctx, buyer, item.Key, UpdateItemParams{Quantity: intPtr(3)})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Quantity)
	assert.True(t, dec("30.00").Equal(updated.Subtotal))

	c, err := svc.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, 3, c.TotalItems)
	assert.True(t, dec("30.00").Equal(c.Subtotal))
}

func TestUpdateItem_QuantityBelowOneRemoves(t *testing.T) {
	svc, _ := newService(jersey("p1", "10.00", "10.00"))
	ctx := context.Background()

	item, err := svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 2, Size: "M"})
	require.NoError(t, err)

	updated, err := svc.UpdateItem(ctx, buyer, item.Key, UpdateItemParams{Quantity: intPtr(0)})
	require.NoError(t, err)
	assert.Nil(t, updated)

	c, err := svc.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestUpdateItem_NotFound(t *testing.T) {
	svc, _ := newService(jersey("p1", "10.00", "10.00"))

	_, err := svc.UpdateItem(context.Background(), buyer, "nope", UpdateItemParams{Quantity: intPtr(1)})
	require.ErrorIs(t, err, ErrItemNotFound)
}

func TestUpdateItem_SizeChangeMergesWithExistingLine(t *testing.T) {
	svc, _ := newService(jersey("p1", "10.00", "10.00"))
	ctx := context.Background()

	_, err := svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 1, Size: "M"})
	require.NoError(t, err)
	itemL, err := svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 2, Size: "L"})
	require.NoError(t, err)

	updated, err := svc.UpdateItem(ctx, buyer, itemL.Key, UpdateItemParams{Size: strPtr("M")})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Quantity)
	assert.Equal(t, "M", updated.Size)

	c, err := svc.GetCart(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, 3, c.TotalItems)
}

func TestUpdateItem_ClearPersonalizationDropsSurcharge(t *testing.T) {
	svc, _ := newService(jersey("p1", "10.00", "10.00"))
	ctx := context.Background()

	item, err := svc.AddItem(ctx, buyer, AddItemParams{
		ProductID: "p1", Quantity: 1, Size: "M",
		Personalization: &pricing.Personalization{Name: "MESSI"},
	})
	require.NoError(t, err)
	assert.True(t, dec("20.00").Equal(item.Subtotal))

	updated, err := svc.UpdateItem(ctx, buyer, item.Key, UpdateItemParams{ClearPersonalization: true})
	require.NoError(t, err)
	assert.Nil(t, updated.Personalization)
	assert.True(t, updated.Surcharge.IsZero())
	assert.True(t, dec("10.00").Equal(updated.Subtotal))
}

func TestRemoveItem_Idempotent(t *testing.T) {
	svc, _ := newService(jersey("p1", "10.00", "10.00"))
	ctx := context.Background()

	item, err := svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 1, Size: "M"})
	require.NoError(t, err)

	removed, err := svc.RemoveItem(ctx, buyer, item.Key)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.RemoveItem(ctx, buyer, item.Key)
	require.NoError(t, err)
	assert.False(t, removed)

	c, err := svc.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
}

func TestClear_AlwaysSucceeds(t *testing.T) {
	svc, _ := newService(jersey("p1", "10.00", "10.00"))
	ctx := context.Background()

	// Clearing a cart that never existed is fine.
	require.NoError(t, svc.Clear(ctx, buyer))

	_, err := svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 2, Size: "M"})
	require.NoError(t, err)
	require.NoError(t, svc.Clear(ctx, buyer))

	c, err := svc.GetCart(ctx, buyer)
	require.NoError(t, err)
	assert.Empty(t, c.Items)
	assert.Equal(t, 0, c.TotalItems)
	assert.True(t, c.Subtotal.IsZero())
}

func TestMutate_RetriesConcurrentModificationOnce(t *testing.T) {
	svc, repo := newService(jersey("p1", "10.00", "10.00"))
	ctx := context.Background()

	repo.conflictsLeft = 1
	_, err := svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 1, Size: "M"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.saves)

	repo.conflictsLeft = 2
	repo.saves = 0
	_, err = svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 1, Size: "L"})
	require.ErrorIs(t, err, ErrConcurrentModification)
	assert.Equal(t, 2, repo.saves)
}

func TestGetCart_ResolvesLivePrices(t *testing.T) {
	p := jersey("p1", "10.00", "10.00")
	svc, _ := newService(p)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 2, Size: "M"})
	require.NoError(t, err)

	// The catalog price changes after the add; the cart reflects it.
	p.Price = dec("12.50")
	p.Name = "Away Jersey p1"

	c, err := svc.GetCart(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.True(t, dec("12.50").Equal(c.Items[0].UnitPrice))
	assert.Equal(t, "Away Jersey p1", c.Items[0].ProductName)
	assert.True(t, dec("25.00").Equal(c.Items[0].Subtotal))
	assert.True(t, dec("25.00").Equal(c.Subtotal))
}

func TestGetCart_KeepsSnapshotForVanishedProduct(t *testing.T) {
	p := jersey("p1", "10.00", "10.00")
	svc, repo := newService(p)
	ctx := context.Background()

	_, err := svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 1, Size: "M"})
	require.NoError(t, err)

	// Product disappears from the catalog; the stored snapshot survives.
	svcOrphan := NewService(pricing.DefaultConfig(), &mockProductRepo{byID: map[string]*product.Product{}}, repo)

	c, err := svcOrphan.GetCart(ctx, buyer)
	require.NoError(t, err)
	require.Len(t, c.Items, 1)
	assert.Equal(t, "Home Jersey p1", c.Items[0].ProductName)
	assert.True(t, dec("10.00").Equal(c.Items[0].Subtotal))
}

func TestItemCount(t *testing.T) {
	svc, _ := newService(jersey("p1", "10.00", "10.00"))
	ctx := context.Background()

	n, err := svc.ItemCount(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = svc.AddItem(ctx, buyer, AddItemParams{ProductID: "p1", Quantity: 3, Size: "M"})
	require.NoError(t, err)

	n, err = svc.ItemCount(ctx, buyer)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}
