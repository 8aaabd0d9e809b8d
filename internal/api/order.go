package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/sportstyle/store/internal/domain/cart"
	"github.com/sportstyle/store/internal/domain/checkout"
)

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

// orderResponse is the wire shape of a placed order.
type orderResponse struct {
	ID             string                   `json:"id"`
	Items          []cart.LineItem          `json:"items"`
	Subtotal       decimal.Decimal          `json:"subtotal"`
	ShippingCost   decimal.Decimal          `json:"shipping_cost"`
	Tax            decimal.Decimal          `json:"tax"`
	Discount       decimal.Decimal          `json:"discount"`
	Total          decimal.Decimal          `json:"total"`
	PointsEarned   int                      `json:"points_earned"`
	PointsRedeemed int                      `json:"points_redeemed"`
	Status         checkout.Status          `json:"status"`
	Address        checkout.ShippingAddress `json:"address"`
	PaymentMethod  string                   `json:"payment_method"`
	CreatedAt      time.Time                `json:"created_at"`
	UpdatedAt      time.Time                `json:"updated_at"`
}

func toOrderResponse(o *checkout.Order) orderResponse {
	return orderResponse{
		ID:             o.ID,
		Items:          o.Items,
		Subtotal:       o.Subtotal,
		ShippingCost:   o.ShippingCost,
		Tax:            o.Tax,
		Discount:       o.Discount,
		Total:          o.Total,
		PointsEarned:   o.PointsEarned,
		PointsRedeemed: o.PointsRedeemed,
		Status:         o.Status,
		Address:        o.Address,
		PaymentMethod:  o.PaymentMethod,
		CreatedAt:      o.CreatedAt,
		UpdatedAt:      o.UpdatedAt,
	}
}

func toOrderResponses(orders []*checkout.Order) []orderResponse {
	out := make([]orderResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderResponse(o)
	}
	return out
}

// listOrders returns the caller's orders. Admins can pass all=true to see
// every user's orders, optionally capped with limit.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	user := identity(r)

	if r.URL.Query().Get("all") == "true" {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		orders, err := h.checkout.ListAllOrders(r.Context(), user, limit)
		if err != nil {
			h.writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toOrderResponses(orders))
		return
	}

	orders, err := h.checkout.ListUserOrders(r.Context(), user)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponses(orders))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.checkout.GetOrder(r.Context(), identity(r), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := h.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	next := checkout.Status(req.Status)
	if !next.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "unknown order status "+strconv.Quote(req.Status))
		return
	}

	o, err := h.checkout.UpdateOrderStatus(r.Context(), identity(r), chi.URLParam(r, "id"), next)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.DeleteOrder(r.Context(), identity(r), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
