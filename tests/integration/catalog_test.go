//go:build integration

package integration

import (
	"net/http"
	"testing"
)

func TestListProducts(t *testing.T) {
	resp := doGet(t, "/api/product")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	products := decodeJSON[[]productResponse](t, resp)
	if len(products) != 6 {
		t.Fatalf("expected 6 products, got %d", len(products))
	}

	byID := make(map[string]productResponse, len(products))
	for _, p := range products {
		if p.Name == "" {
			t.Errorf("product %s has empty name", p.ID)
		}
		if p.Price <= 0 {
			t.Errorf("product %s has non-positive price %v", p.ID, p.Price)
		}
		byID[p.ID] = p
	}

	kurti, ok := byID["p-kurti-01"]
	if !ok {
		t.Fatal("p-kurti-01 missing from catalog")
	}
	if kurti.SalePrice == nil || *kurti.SalePrice != 1200 {
		t.Errorf("kurti sale price: got %v, want 1200", kurti.SalePrice)
	}
}

func TestListShippingRates(t *testing.T) {
	resp := doGet(t, "/api/shipping")
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}

	rates := decodeJSON[[]shippingRateResponse](t, resp)
	if len(rates) != 4 {
		t.Fatalf("expected 4 shipping areas, got %d", len(rates))
	}

	for _, r := range rates {
		if r.ID == "area-dhaka" {
			if r.Rate != 60 {
				t.Errorf("dhaka rate: got %v, want 60", r.Rate)
			}
			if r.EstimatedDays == nil || *r.EstimatedDays != 2 {
				t.Errorf("dhaka estimated days: got %v, want 2", r.EstimatedDays)
			}
			return
		}
	}
	t.Error("area-dhaka missing from shipping rates")
}
