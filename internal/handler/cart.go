package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/bazarhut/checkout/internal/domain/cart"
)

type cartPutRequest struct {
	Items []cartItemRequest `json:"items"`
}

type cartItemRequest struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name,omitempty"`
	UnitPrice float64 `json:"unitPrice,omitempty"`
	Quantity  int     `json:"quantity"`
	Color     string  `json:"color,omitempty"`
	Size      string  `json:"size,omitempty"`
}

// GetCart returns the authenticated user's stored cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	snap, err := h.carts.Get(r.Context(), UserIDFromContext(r.Context()))
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var e jx.Encoder
	encodeCart(&e, snap)
	writeJSON(w, http.StatusOK, &e)
}

// PutCart replaces the authenticated user's stored cart. Name and unit price
// are display values only; checkout re-reads live catalog prices.
func (h *Handler) PutCart(w http.ResponseWriter, r *http.Request) {
	var req cartPutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	lines := make([]cart.Line, len(req.Items))
	for i, item := range req.Items {
		lines[i] = cart.Line{
			ProductID: item.ProductID,
			Name:      item.Name,
			UnitPrice: decimal.NewFromFloat(item.UnitPrice),
			Quantity:  item.Quantity,
			SelectedOptions: cart.Options{
				Color: item.Color,
				Size:  item.Size,
			},
		}
	}

	snap := cart.Snapshot{Lines: lines}
	if err := h.carts.Set(r.Context(), UserIDFromContext(r.Context()), snap); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func encodeCart(e *jx.Encoder, snap cart.Snapshot) {
	e.ObjStart()
	e.FieldStart("items")
	e.ArrStart()
	for _, line := range snap.Lines {
		e.ObjStart()
		e.FieldStart("productId")
		e.Str(line.ProductID)
		if line.Name != "" {
			e.FieldStart("name")
			e.Str(line.Name)
		}
		if !line.UnitPrice.IsZero() {
			e.FieldStart("unitPrice")
			e.Float64(line.UnitPrice.InexactFloat64())
		}
		e.FieldStart("quantity")
		e.Int(line.Quantity)
		if line.SelectedOptions.Color != "" {
			e.FieldStart("color")
			e.Str(line.SelectedOptions.Color)
		}
		if line.SelectedOptions.Size != "" {
			e.FieldStart("size")
			e.Str(line.SelectedOptions.Size)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	e.ObjEnd()
}
