package api

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sportstyle/store/internal/domain/cart"
	"github.com/sportstyle/store/internal/domain/checkout"
)

type reviewRequest struct {
	PointsToRedeem int `json:"points_to_redeem" validate:"gte=0"`
}

type addressRequest struct {
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code" validate:"required"`
	Country    string `json:"country"`
}

type paymentRequest struct {
	Method string `json:"method" validate:"required"`
}

// attemptResponse is the wire shape of an in-flight checkout.
type attemptResponse struct {
	OrderID        string                    `json:"order_id"`
	State          checkout.State            `json:"state"`
	Items          []cart.LineItem           `json:"items"`
	Subtotal       decimal.Decimal           `json:"subtotal"`
	ShippingCost   decimal.Decimal           `json:"shipping_cost"`
	Tax            decimal.Decimal           `json:"tax"`
	Discount       decimal.Decimal           `json:"discount"`
	Total          decimal.Decimal           `json:"total"`
	PointsToRedeem int                       `json:"points_to_redeem"`
	PointsEarned   int                       `json:"points_earned"`
	Address        *checkout.ShippingAddress `json:"address,omitempty"`
	PaymentMethod  string                    `json:"payment_method,omitempty"`
	ExpiresAt      time.Time                 `json:"expires_at"`
}

func toAttemptResponse(a *checkout.Attempt) attemptResponse {
	return attemptResponse{
		OrderID:        a.OrderID,
		State:          a.State,
		Items:          a.Items,
		Subtotal:       a.Subtotal,
		ShippingCost:   a.ShippingCost,
		Tax:            a.Tax,
		Discount:       a.Discount,
		Total:          a.Total,
		PointsToRedeem: a.PointsToRedeem,
		PointsEarned:   a.PointsEarned,
		Address:        a.Address,
		PaymentMethod:  a.PaymentMethod,
		ExpiresAt:      a.ExpiresAt,
	}
}

func (h *Handler) reviewCheckout(w http.ResponseWriter, r *http.Request) {
	var req reviewRequest
	if err := h.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attempt, err := h.checkout.Review(r.Context(), identity(r), req.PointsToRedeem)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttemptResponse(attempt))
}

func (h *Handler) collectAddress(w http.ResponseWriter, r *http.Request) {
	var req addressRequest
	if err := h.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attempt, err := h.checkout.CollectAddress(r.Context(), identity(r), checkout.ShippingAddress{
		Street:     req.Street,
		City:       req.City,
		State:      req.State,
		PostalCode: req.PostalCode,
		Country:    req.Country,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttemptResponse(attempt))
}

func (h *Handler) selectPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if err := h.decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	attempt, err := h.checkout.SelectPayment(r.Context(), identity(r), req.Method)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toAttemptResponse(attempt))
}

func (h *Handler) confirmCheckout(w http.ResponseWriter, r *http.Request) {
	o, err := h.checkout.Confirm(r.Context(), identity(r))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) abortCheckout(w http.ResponseWriter, r *http.Request) {
	if err := h.checkout.Abort(r.Context(), identity(r)); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) getLoyaltyBalance(w http.ResponseWriter, r *http.Request) {
	balance, err := h.loyalty.GetBalance(r.Context(), identity(r).UserID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"balance": balance})
}
