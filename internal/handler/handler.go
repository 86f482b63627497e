// Package handler exposes the checkout engine over HTTP. Handlers are thin:
// decode, delegate to the domain, encode. JSON responses are written with the
// streaming jx encoder.
package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/bazarhut/checkout/internal/domain/auth"
	"github.com/bazarhut/checkout/internal/domain/cart"
	"github.com/bazarhut/checkout/internal/domain/order"
	"github.com/bazarhut/checkout/internal/domain/product"
	"github.com/bazarhut/checkout/internal/domain/promo"
	"github.com/bazarhut/checkout/internal/domain/shipping"
)

// Handler wires the domain services to HTTP routes.
type Handler struct {
	authn         *auth.Authenticator
	products      product.Repository
	shippingRates shipping.Repository
	promos        promo.Validator
	orders        *order.Service
	carts         cart.Store
}

// New constructs a Handler with the required domain dependencies.
func New(
	authn *auth.Authenticator,
	products product.Repository,
	shippingRates shipping.Repository,
	promos promo.Validator,
	orders *order.Service,
	carts cart.Store,
) *Handler {
	return &Handler{
		authn:         authn,
		products:      products,
		shippingRates: shippingRates,
		promos:        promos,
		orders:        orders,
		carts:         carts,
	}
}

// Register mounts all API routes on the mux. Catalog and shipping reads are
// public; everything touching a user's cart or orders requires a session.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/product", h.ListProducts)
	mux.HandleFunc("GET /api/shipping", h.ListShippingRates)
	mux.Handle("POST /api/promo/validate", h.requireSession(h.ValidatePromo))
	mux.Handle("GET /api/cart", h.requireSession(h.GetCart))
	mux.Handle("PUT /api/cart", h.requireSession(h.PutCart))
	mux.Handle("POST /api/checkout", h.requireSession(h.PlaceOrder))
	mux.Handle("GET /api/orders", h.requireSession(h.ListOrders))
	mux.Handle("GET /api/order/{id}", h.requireSession(h.GetOrder))
	mux.Handle("PUT /api/order/{id}/status", h.requireSession(h.UpdateOrderStatus))
}

// writeJSON writes the encoder's buffer as an application/json response.
func writeJSON(w http.ResponseWriter, status int, e *jx.Encoder) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeError writes a structured {code, message} error body.
func writeError(w http.ResponseWriter, status int, message string) {
	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Int(status)
	e.FieldStart("message")
	e.Str(message)
	e.ObjEnd()
	writeJSON(w, status, &e)
}

// writeDomainError maps a domain error to its HTTP representation. Validation
// outcomes keep their reason; anything unrecognized is a plain 500.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrNotAuthenticated):
		writeError(w, http.StatusUnauthorized, "not authenticated")
	case errors.Is(err, order.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, order.ErrNotAllowed):
		writeError(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, order.ErrEmptyCart),
		errors.Is(err, order.ErrInvalidPayment):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shipping.ErrInvalidArea),
		errors.Is(err, promo.ErrNotFound),
		errors.Is(err, promo.ErrExhausted),
		errors.Is(err, promo.ErrUserLimitReached),
		errors.Is(err, promo.ErrNotApplicable),
		errors.Is(err, promo.ErrMinimumNotMet):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, order.ErrUpstreamUnavailable):
		writeError(w, http.StatusServiceUnavailable, "temporarily unavailable, please retry")
	case errors.Is(err, order.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		var iq *order.InvalidQuantityError
		var pnf *order.ProductNotFoundError
		var placement *order.PlacementError
		switch {
		case errors.As(err, &iq):
			writeError(w, http.StatusUnprocessableEntity, iq.Error())
		case errors.As(err, &pnf):
			writeError(w, http.StatusUnprocessableEntity, pnf.Error())
		case errors.As(err, &placement):
			writeError(w, http.StatusBadGateway, "order placement failed, your cart was not charged")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
	}
}
