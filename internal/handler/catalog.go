package handler

import (
	"net/http"

	"github.com/go-faster/jx"
)

// ListProducts returns the active catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, p := range products {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(p.ID)
		e.FieldStart("name")
		e.Str(p.Name)
		e.FieldStart("price")
		e.Float64(p.Price.InexactFloat64())
		if p.SalePrice != nil {
			e.FieldStart("salePrice")
			e.Float64(p.SalePrice.InexactFloat64())
		}
		e.FieldStart("category")
		e.Str(p.Category)
		e.ObjEnd()
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}

// ListShippingRates returns the active delivery areas with fees and lead times.
func (h *Handler) ListShippingRates(w http.ResponseWriter, r *http.Request) {
	rates, err := h.shippingRates.List(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}

	var e jx.Encoder
	e.ArrStart()
	for _, rate := range rates {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(rate.ID)
		e.FieldStart("areaName")
		e.Str(rate.AreaName)
		e.FieldStart("rate")
		e.Float64(rate.Rate.InexactFloat64())
		if rate.EstimatedDays != nil {
			e.FieldStart("estimatedDays")
			e.Int(*rate.EstimatedDays)
		}
		e.ObjEnd()
	}
	e.ArrEnd()
	writeJSON(w, http.StatusOK, &e)
}
