package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarhut/checkout/internal/domain/shipping"
)

const (
	listShippingRatesSQL = `SELECT id, area_name, rate, estimated_days, active
		FROM shipping_rates WHERE active = TRUE ORDER BY area_name`

	getShippingRateSQL = `SELECT id, area_name, rate, estimated_days, active
		FROM shipping_rates WHERE id = $1`
)

var _ shipping.Repository = (*ShippingRateRepository)(nil)

// ShippingRateRepository implements shipping.Repository backed by PostgreSQL.
type ShippingRateRepository struct {
	pool *pgxpool.Pool
}

// NewShippingRateRepository returns a ShippingRateRepository that uses the
// given pool.
func NewShippingRateRepository(pool *pgxpool.Pool) *ShippingRateRepository {
	return &ShippingRateRepository{pool: pool}
}

// List returns all active shipping rates ordered by area name.
func (r *ShippingRateRepository) List(ctx context.Context) ([]shipping.Rate, error) {
	rows, err := r.pool.Query(ctx, listShippingRatesSQL)
	if err != nil {
		return nil, fmt.Errorf("listing shipping rates: %w", err)
	}

	rates, err := pgx.CollectRows(rows, scanShippingRate)
	if err != nil {
		return nil, fmt.Errorf("listing shipping rates: %w", err)
	}
	return rates, nil
}

// GetByID returns a single shipping rate by area id. It returns
// shipping.ErrInvalidArea when no matching rate exists.
func (r *ShippingRateRepository) GetByID(ctx context.Context, id string) (*shipping.Rate, error) {
	rows, err := r.pool.Query(ctx, getShippingRateSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting shipping rate %q: %w", id, err)
	}

	rate, err := pgx.CollectExactlyOneRow(rows, scanShippingRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, shipping.ErrInvalidArea
		}
		return nil, fmt.Errorf("getting shipping rate %q: %w", id, err)
	}
	return &rate, nil
}

func scanShippingRate(row pgx.CollectableRow) (shipping.Rate, error) {
	var rate shipping.Rate
	err := row.Scan(&rate.ID, &rate.AreaName, &rate.Rate, &rate.EstimatedDays, &rate.Active)
	return rate, err
}
