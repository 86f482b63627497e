package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/jx"

	"github.com/bazarhut/checkout/internal/domain/order"
)

// GetOrder returns a single order belonging to the authenticated user.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.orders.GetOrder(r.Context(), UserIDFromContext(r.Context()), r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, o)
	writeJSON(w, http.StatusOK, &e)
}

// ListOrders returns the authenticated user's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListOrders(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for i := range orders {
		encodeOrder(&e, &orders[i])
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

type statusUpdateRequest struct {
	Status string `json:"status"`
}

// UpdateOrderStatus moves an order through the fulfilment state machine.
// Admins may perform any valid transition; customers may only cancel their
// own orders.
func (h *Handler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req statusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	identity := IdentityFromContext(r.Context())
	actor := order.Actor{UserID: identity.UserID, Admin: identity.Admin()}
	if err := h.orders.UpdateStatus(r.Context(), actor, r.PathValue("id"), order.Status(req.Status)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	e.FieldStart("totalAmount")
	e.Float64(o.TotalAmount.InexactFloat64())
	e.FieldStart("shippingCost")
	e.Float64(o.ShippingCost.InexactFloat64())
	e.FieldStart("discountAmount")
	e.Float64(o.DiscountAmount.InexactFloat64())
	e.FieldStart("paymentMethod")
	e.Str(string(o.PaymentMethod))
	if o.PromoCode != "" {
		e.FieldStart("promoCode")
		e.Str(o.PromoCode)
	}
	e.FieldStart("status")
	e.Str(string(o.Status))
	e.FieldStart("createdAt")
	e.Str(o.CreatedAt.Format(time.RFC3339))
	e.FieldStart("items")
	e.ArrStart()
	for _, item := range o.Items {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(item.ProductID)
		e.FieldStart("quantity")
		e.Int(item.Quantity)
		e.FieldStart("price")
		e.Float64(item.UnitPrice.InexactFloat64())
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
