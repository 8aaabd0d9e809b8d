package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/sportstyle/store/internal/domain/cart"
	"github.com/sportstyle/store/internal/domain/pricing"
)

type addItemRequest struct {
	ProductID       string                   `json:"product_id" validate:"required"`
	Quantity        int                      `json:"quantity" validate:"required,gt=0"`
	Size            string                   `json:"size" validate:"required"`
	Personalization *pricing.Personalization `json:"personalization,omitempty"`
}

type updateItemRequest struct {
	Quantity             *int                     `json:"quantity,omitempty" validate:"omitempty,gte=0"`
	Size                 *string                  `json:"size,omitempty"`
	Personalization      *pricing.Personalization `json:"personalization,omitempty"`
	ClearPersonalization bool                     `json:"clear_personalization,omitempty"`
}

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.GetCart(r.Context(), identity(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) getCartCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.carts.ItemCount(r.Context(), identity(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

func (h *Handler) addCartItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := h.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.carts.AddItem(r.Context(), identity(r), cart.AddItemParams{
		ProductID:       req.ProductID,
		Quantity:        req.Quantity,
		Size:            req.Size,
		Personalization: req.Personalization,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *Handler) updateCartItem(w http.ResponseWriter, r *http.Request) {
	var req updateItemRequest
	if err := h.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	item, err := h.carts.UpdateItem(r.Context(), identity(r), chi.URLParam(r, "key"), cart.UpdateItemParams{
		Quantity:             req.Quantity,
		Size:                 req.Size,
		Personalization:      req.Personalization,
		ClearPersonalization: req.ClearPersonalization,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	if item == nil {
		// A zero quantity removed the line.
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) removeCartItem(w http.ResponseWriter, r *http.Request) {
	removed, err := h.carts.RemoveItem(r.Context(), identity(r), chi.URLParam(r, "key"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"removed": removed})
}

func (h *Handler) clearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.carts.Clear(r.Context(), identity(r)); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
