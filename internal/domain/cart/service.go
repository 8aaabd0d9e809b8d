package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"

	"github.com/sportstyle/store/internal/domain/auth"
	"github.com/sportstyle/store/internal/domain/pricing"
	"github.com/sportstyle/store/internal/domain/product"
)

// Service encapsulates cart mutation and read logic. Mutations are
// read-modify-write cycles guarded by the repository's optimistic version
// check; a racing write is retried once with a fresh read before the
// conflict is surfaced.
type Service struct {
	pricing  pricing.Config
	products product.Repository
	carts    Repository
	now      func() time.Time
}

// NewService creates a cart Service with the required collaborators.
func NewService(cfg pricing.Config, products product.Repository, carts Repository) *Service {
	return &Service{
		pricing:  cfg,
		products: products,
		carts:    carts,
		now:      time.Now,
	}
}

// AddItemParams holds the input for adding a product selection to the cart.
type AddItemParams struct {
	ProductID       string
	Quantity        int
	Size            string
	Personalization *pricing.Personalization
}

// UpdateItemParams holds a partial update for an existing line item. Nil
// fields are left unchanged; ClearPersonalization removes the print payload
// (and its surcharge) regardless of the Personalization field.
type UpdateItemParams struct {
	Quantity             *int
	Size                 *string
	Personalization      *pricing.Personalization
	ClearPersonalization bool
}

// GetCart returns the user's cart, resolving display fields and the current
// unit price live from the catalog. A user without a stored cart gets an
// empty cart, not an error. When a product has vanished from the catalog the
// stored snapshot is kept as a fallback so the line item stays displayable.
func (s *Service) GetCart(ctx context.Context, user auth.Identity) (*Cart, error) {
	c, err := s.carts.Get(ctx, user.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Empty(user.UserID, user.Email), nil
		}
		return nil, errors.Wrap(err, "get cart")
	}
	if c.UserEmail == "" {
		c.UserEmail = user.Email
	}

	if err := s.refreshFromCatalog(ctx, c); err != nil {
		return nil, err
	}
	c.recompute(s.pricing)
	return c, nil
}

// ItemCount returns the total quantity across the user's cart without
// resolving products. An absent cart counts zero.
func (s *Service) ItemCount(ctx context.Context, user auth.Identity) (int, error) {
	c, err := s.carts.Get(ctx, user.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return 0, nil
		}
		return 0, errors.Wrap(err, "get cart")
	}
	return c.TotalItems, nil
}

// AddItem adds a product selection to the cart, merging with an existing
// line item when product, size, and personalization all match. The product
// must exist and be active; prices and the subtotal come from the catalog
// and the pricing engine, never from the caller.
func (s *Service) AddItem(ctx context.Context, user auth.Identity, params AddItemParams) (*LineItem, error) {
	if params.Personalization != nil {
		if err := params.Personalization.Validate(); err != nil {
			return nil, err
		}
		if params.Personalization.Empty() {
			params.Personalization = nil
		}
	}

	p, err := s.products.GetByID(ctx, params.ProductID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", params.ProductID)
	}
	if len(p.Sizes) > 0 && !p.HasSize(params.Size) {
		return nil, &SizeUnavailableError{ProductID: p.ID, Size: params.Size}
	}

	key := ItemKey(p.ID, params.Size, params.Personalization)

	var added *LineItem
	err = s.mutate(ctx, user, func(c *Cart) error {
		quantity := params.Quantity
		if i := c.find(key); i >= 0 {
			quantity += c.Items[i].Quantity
		}

		surcharge := s.pricing.Surcharge(p.PersonalizationFee, params.Personalization)
		subtotal, err := s.pricing.LineSubtotal(p.Price, surcharge, quantity)
		if err != nil {
			return err
		}

		item := LineItem{
			Key:             key,
			ProductID:       p.ID,
			ProductName:     p.Name,
			ProductImage:    p.ImageURL,
			Team:            p.Team,
			Size:            params.Size,
			Quantity:        quantity,
			UnitPrice:       p.Price,
			Surcharge:       surcharge,
			Personalization: params.Personalization,
			Subtotal:        subtotal,
		}

		if i := c.find(key); i >= 0 {
			c.Items[i] = item
		} else {
			c.Items = append(c.Items, item)
		}
		added = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return added, nil
}

// UpdateItem applies a partial update to a line item and recomputes its
// surcharge and subtotal. A quantity below 1 removes the item instead of
// failing; the returned item is nil in that case. Changing size or
// personalization re-keys the line and merges it into an existing line with
// the same new key.
func (s *Service) UpdateItem(ctx context.Context, user auth.Identity, key string, params UpdateItemParams) (*LineItem, error) {
	if params.Personalization != nil {
		if err := params.Personalization.Validate(); err != nil {
			return nil, err
		}
	}

	var updated *LineItem
	err := s.mutate(ctx, user, func(c *Cart) error {
		updated = nil
		i := c.find(key)
		if i < 0 {
			return ErrItemNotFound
		}
		item := c.Items[i]

		if params.Quantity != nil && *params.Quantity < 1 {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return nil
		}
		if params.Quantity != nil {
			item.Quantity = *params.Quantity
		}
		if params.Size != nil {
			item.Size = *params.Size
		}
		switch {
		case params.ClearPersonalization:
			item.Personalization = nil
		case params.Personalization != nil:
			if params.Personalization.Empty() {
				item.Personalization = nil
			} else {
				item.Personalization = params.Personalization
			}
		}

		p, err := s.products.GetByID(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, product.ErrNotFound) {
				return product.ErrNotFound
			}
			return errors.Wrapf(err, "get product %s", item.ProductID)
		}
		if params.Size != nil && len(p.Sizes) > 0 && !p.HasSize(item.Size) {
			return &SizeUnavailableError{ProductID: p.ID, Size: item.Size}
		}

		item.UnitPrice = p.Price
		item.Surcharge = s.pricing.Surcharge(p.PersonalizationFee, item.Personalization)
		item.Key = ItemKey(item.ProductID, item.Size, item.Personalization)

		// A size or personalization change may collide with another line;
		// merge quantities into a single line rather than duplicating keys.
		if item.Key != key {
			if j := c.find(item.Key); j >= 0 {
				item.Quantity += c.Items[j].Quantity
				c.Items = append(c.Items[:j], c.Items[j+1:]...)
				i = c.find(key)
			}
		}

		subtotal, err := s.pricing.LineSubtotal(item.UnitPrice, item.Surcharge, item.Quantity)
		if err != nil {
			return err
		}
		item.Subtotal = subtotal

		c.Items[i] = item
		updated = &item
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// RemoveItem deletes a line item from the cart. Removing an absent item is
// not an error: the call is idempotent and reports false.
func (s *Service) RemoveItem(ctx context.Context, user auth.Identity, key string) (bool, error) {
	removed := false
	err := s.mutate(ctx, user, func(c *Cart) error {
		i := c.find(key)
		if i < 0 {
			removed = false
			return nil
		}
		c.Items = append(c.Items[:i], c.Items[i+1:]...)
		removed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// Clear empties the user's cart. Clearing an already-empty or absent cart
// succeeds.
func (s *Service) Clear(ctx context.Context, user auth.Identity) error {
	err := s.mutate(ctx, user, func(c *Cart) error {
		c.Items = nil
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}

// mutate runs a read-modify-write cycle against the stored cart, recomputing
// aggregates before saving. A concurrent modification is retried once with a
// fresh read; a failed mutation leaves the stored cart untouched.
func (s *Service) mutate(ctx context.Context, user auth.Identity, apply func(*Cart) error) error {
	const attempts = 2

	var lastErr error
	for range attempts {
		c, err := s.carts.Get(ctx, user.UserID)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				return errors.Wrap(err, "get cart")
			}
			c = Empty(user.UserID, user.Email)
		}
		if c.UserEmail == "" {
			c.UserEmail = user.Email
		}

		if err := apply(c); err != nil {
			return err
		}

		c.recompute(s.pricing)
		c.UpdatedAt = s.now().UTC()

		if err := s.carts.Save(ctx, c); err != nil {
			if errors.Is(err, ErrConcurrentModification) {
				lastErr = err
				continue
			}
			return errors.Wrap(err, "save cart")
		}
		return nil
	}
	return lastErr
}

// refreshFromCatalog batch-fetches the products referenced by the cart and
// overwrites each item's display fields, unit price, and surcharge with
// current catalog data, recomputing subtotals. Items whose product is gone
// keep their stored snapshot.
func (s *Service) refreshFromCatalog(ctx context.Context, c *Cart) error {
	if len(c.Items) == 0 {
		return nil
	}

	ids := make([]string, 0, len(c.Items))
	seen := make(map[string]struct{}, len(c.Items))
	for i := range c.Items {
		id := c.Items[i].ProductID
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "get products")
	}
	byID := make(map[string]*product.Product, len(fetched))
	for i := range fetched {
		byID[fetched[i].ID] = &fetched[i]
	}

	for i := range c.Items {
		p, ok := byID[c.Items[i].ProductID]
		if !ok {
			continue
		}
		c.Items[i].ProductName = p.Name
		c.Items[i].ProductImage = p.ImageURL
		c.Items[i].Team = p.Team
		c.Items[i].UnitPrice = p.Price
		c.Items[i].Surcharge = s.pricing.Surcharge(p.PersonalizationFee, c.Items[i].Personalization)

		subtotal, err := s.pricing.LineSubtotal(c.Items[i].UnitPrice, c.Items[i].Surcharge, c.Items[i].Quantity)
		if err != nil {
			return err
		}
		c.Items[i].Subtotal = subtotal
	}
	return nil
}
