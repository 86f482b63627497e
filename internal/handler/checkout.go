package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/bazarhut/checkout/internal/domain/cart"
	"github.com/bazarhut/checkout/internal/domain/order"
	"github.com/bazarhut/checkout/internal/domain/product"
	"github.com/bazarhut/checkout/internal/domain/promo"
)

type cartLineRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Color     string `json:"color,omitempty"`
	Size      string `json:"size,omitempty"`
}

type checkoutRequest struct {
	Items          []cartLineRequest `json:"items"`
	ShippingAreaID string            `json:"shippingAreaId"`
	PromoCode      string            `json:"promoCode,omitempty"`
	PaymentMethod  string            `json:"paymentMethod"`
	FullName       string            `json:"fullName"`
	Phone          string            `json:"phone"`
	Address        string            `json:"address"`
	City           string            `json:"city"`
	SenderNumber   string            `json:"senderNumber,omitempty"`
	TransactionID  string            `json:"transactionId,omitempty"`
	Notes          string            `json:"notes,omitempty"`
}

func (req checkoutRequest) snapshot() cart.Snapshot {
	lines := make([]cart.Line, len(req.Items))
	for i, item := range req.Items {
		lines[i] = cart.Line{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			SelectedOptions: cart.Options{
				Color: item.Color,
				Size:  item.Size,
			},
		}
	}
	return cart.Snapshot{Lines: lines}
}

// PlaceOrder runs the full checkout for the authenticated user. Prices and
// discounts in the request are ignored; everything monetary is recomputed
// from live data.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	userID := UserIDFromContext(r.Context())

	// Requests without inline items check out the stored cart.
	snapshot := req.snapshot()
	if len(snapshot.Lines) == 0 {
		stored, err := h.carts.Get(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		snapshot = stored
	}

	result, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:         userID,
		Cart:           snapshot,
		ShippingAreaID: req.ShippingAreaID,
		PromoCode:      req.PromoCode,
		PaymentMethod:  order.PaymentMethod(req.PaymentMethod),
		Address: order.ShippingAddress{
			FullName:      req.FullName,
			Phone:         req.Phone,
			Address:       req.Address,
			City:          req.City,
			SenderNumber:  req.SenderNumber,
			TransactionID: req.TransactionID,
		},
		Notes: req.Notes,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var e jx.Encoder
	encodeOrder(&e, result.Order)
	writeJSON(w, http.StatusOK, &e)
}

type promoValidateRequest struct {
	Code  string            `json:"code"`
	Items []cartLineRequest `json:"items"`
}

// ValidatePromo dry-runs promo validation for the cart page. Prices come from
// the live catalog, same as checkout. It never consumes a redemption.
func (h *Handler) ValidatePromo(w http.ResponseWriter, r *http.Request) {
	var req promoValidateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	ids := make([]string, len(req.Items))
	for i, line := range req.Items {
		ids[i] = line.ProductID
	}
	fetched, err := h.products.GetByIDs(r.Context(), ids)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		if !p.Active {
			continue
		}
		byID[p.ID] = p
	}

	items := make([]promo.Item, len(req.Items))
	for i, line := range req.Items {
		p, ok := byID[line.ProductID]
		if !ok {
			writeDomainError(w, &order.ProductNotFoundError{ProductID: line.ProductID})
			return
		}
		items[i] = promo.Item{
			ProductID: line.ProductID,
			Price:     p.UnitPrice(),
			Quantity:  line.Quantity,
		}
	}

	d, err := h.promos.Validate(r.Context(), req.Code, UserIDFromContext(r.Context()), items)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var e jx.Encoder
	e.ObjStart()
	e.FieldStart("code")
	e.Str(d.Code)
	e.FieldStart("discount")
	e.Float64(d.Amount.InexactFloat64())
	e.ObjEnd()
	writeJSON(w, http.StatusOK, &e)
}
