// Package api implements the HTTP surface of the store: thin chi handlers
// that decode and validate requests, delegate to the domain services, and
// map domain errors to HTTP status codes.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/sportstyle/store/internal/domain/cart"
	"github.com/sportstyle/store/internal/domain/checkout"
	"github.com/sportstyle/store/internal/domain/loyalty"
	"github.com/sportstyle/store/internal/domain/pricing"
	"github.com/sportstyle/store/internal/domain/product"
)

// Handler exposes the store API over HTTP.
type Handler struct {
	products product.Repository
	carts    *cart.Service
	loyalty  *loyalty.Service
	checkout *checkout.Service
	validate *validator.Validate
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	products product.Repository,
	carts *cart.Service,
	loyaltySvc *loyalty.Service,
	checkoutSvc *checkout.Service,
) *Handler {
	return &Handler{
		products: products,
		carts:    carts,
		loyalty:  loyaltySvc,
		checkout: checkoutSvc,
		validate: validator.New(),
	}
}

// Routes returns the router for all store endpoints. Every route except the
// catalog requires an authenticated identity.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(RequireIdentity)

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", h.getCart)
			r.Delete("/", h.clearCart)
			r.Get("/count", h.getCartCount)
			r.Post("/items", h.addCartItem)
			r.Patch("/items/{key}", h.updateCartItem)
			r.Delete("/items/{key}", h.removeCartItem)
		})

		r.Route("/checkout", func(r chi.Router) {
			r.Post("/review", h.reviewCheckout)
			r.Post("/address", h.collectAddress)
			r.Post("/payment", h.selectPayment)
			r.Post("/confirm", h.confirmCheckout)
			r.Delete("/", h.abortCheckout)
		})

		r.Get("/loyalty/balance", h.getLoyaltyBalance)

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", h.listOrders)
			r.Get("/{id}", h.getOrder)
			r.Patch("/{id}/status", h.updateOrderStatus)
			r.Delete("/{id}", h.deleteOrder)
		})
	})

	return r
}

// errorResponse is the JSON body of every non-2xx response.
type errorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Code: status, Message: message})
}

// writeDomainError maps domain errors onto HTTP statuses. Unknown errors
// become opaque 500s; the detail stays in the log.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		invalidInput  *pricing.InvalidInputError
		sizeErr       *cart.SizeUnavailableError
		stateErr      *checkout.InvalidStateError
		transitionErr *checkout.InvalidStatusTransitionError
	)

	switch {
	case errors.Is(err, product.ErrNotFound),
		errors.Is(err, cart.ErrItemNotFound),
		errors.Is(err, checkout.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, checkout.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, checkout.ErrNoActiveCheckout):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, cart.ErrConcurrentModification):
		writeError(w, http.StatusConflict, "cart was modified concurrently, retry")
	case errors.Is(err, loyalty.ErrInsufficientPoints),
		errors.Is(err, checkout.ErrEmptyCart):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &invalidInput),
		errors.As(err, &sizeErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &stateErr),
		errors.As(err, &transitionErr):
		writeError(w, http.StatusConflict, err.Error())
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// decodeJSON decodes the request body into v and runs struct validation.
func (h *Handler) decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Wrap(err, "invalid JSON body")
	}
	if err := h.validate.Struct(v); err != nil {
		return err
	}
	return nil
}
