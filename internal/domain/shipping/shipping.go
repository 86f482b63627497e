package shipping

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrInvalidArea is returned when a delivery area id is unknown or the rate
// for it has been deactivated.
var ErrInvalidArea = errors.New("invalid shipping area")

// Rate is the flat delivery fee for a named area. Read-only reference data
// maintained by the admin side.
type Rate struct {
	ID            string
	AreaName      string
	Rate          decimal.Decimal
	EstimatedDays *int
	Active        bool
}

// Quote is the resolved shipping cost for a checkout.
type Quote struct {
	AreaName      string
	Fee           decimal.Decimal
	EstimatedDays *int
}

// Repository provides lookup of shipping rates.
type Repository interface {
	List(ctx context.Context) ([]Rate, error)
	GetByID(ctx context.Context, id string) (*Rate, error)
}

// Resolver maps a chosen delivery-area id to a shipping quote.
type Resolver struct {
	rates Repository
}

// NewResolver creates a Resolver backed by the given Repository.
func NewResolver(rates Repository) *Resolver {
	return &Resolver{rates: rates}
}

// Resolve returns the quote for the given area. Unknown and inactive areas
// both report ErrInvalidArea. Pure read, no side effects.
func (r *Resolver) Resolve(ctx context.Context, areaID string) (*Quote, error) {
	rate, err := r.rates.GetByID(ctx, areaID)
	if err != nil {
		if errors.Is(err, ErrInvalidArea) {
			return nil, ErrInvalidArea
		}
		return nil, errors.Wrap(err, "lookup shipping rate")
	}
	if !rate.Active {
		return nil, ErrInvalidArea
	}

	return &Quote{
		AreaName:      rate.AreaName,
		Fee:           rate.Rate,
		EstimatedDays: rate.EstimatedDays,
	}, nil
}
