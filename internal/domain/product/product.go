package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	SalePrice *decimal.Decimal
	Category  string
	Active    bool
}

// UnitPrice returns the price a buyer pays right now: the sale price when one
// is set, the regular price otherwise. Checkout snapshots this value onto the
// order line, never a client-supplied figure.
func (p Product) UnitPrice() decimal.Decimal {
	if p.SalePrice != nil {
		return *p.SalePrice
	}
	return p.Price
}

// Repository defines read operations for the product catalog.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	GetByID(ctx context.Context, id string) (*Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]Product, error)
}
