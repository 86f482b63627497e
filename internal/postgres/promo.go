package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarhut/checkout/internal/domain/promo"
)

const (
	getPromoByCodeSQL = `SELECT id, code, discount_type, discount_value, min_order_amount,
		max_uses, used_count, usage_per_user, applies_to, product_ids, active, expires_at
		FROM promo_codes WHERE UPPER(code) = UPPER($1) AND active = TRUE`

	countUserUsageSQL = `SELECT COUNT(*) FROM promo_usages
		WHERE promo_code_id = $1 AND user_id = $2`
)

var _ promo.Repository = (*PromoRepository)(nil)

// PromoRepository implements promo.Repository backed by PostgreSQL.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// FindByCode looks up an active promo by its code (case-insensitive).
// Returns promo.ErrNotFound when no matching active promo exists. Expiry is
// the validator's concern so the lookup stays a pure index probe.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*promo.Rule, error) {
	rows, err := r.pool.Query(ctx, getPromoByCodeSQL, code)
	if err != nil {
		return nil, fmt.Errorf("finding promo by code %q: %w", code, err)
	}

	rule, err := pgx.CollectExactlyOneRow(rows, scanPromoRule)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrNotFound
		}
		return nil, fmt.Errorf("finding promo by code %q: %w", code, err)
	}
	return &rule, nil
}

// CountUserUsage returns how many times the user has already redeemed the
// promo, from the usage ledger.
func (r *PromoRepository) CountUserUsage(ctx context.Context, promoID, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, countUserUsageSQL, promoID, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting promo usage for %q: %w", promoID, err)
	}
	return count, nil
}

func scanPromoRule(row pgx.CollectableRow) (promo.Rule, error) {
	var (
		rule         promo.Rule
		discountType string
		appliesTo    string
	)
	err := row.Scan(
		&rule.ID, &rule.Code, &discountType, &rule.DiscountValue, &rule.MinOrderAmount,
		&rule.MaxUses, &rule.UsedCount, &rule.UsagePerUser, &appliesTo,
		&rule.ProductIDs, &rule.Active, &rule.ExpiresAt,
	)
	rule.DiscountType = promo.DiscountType(discountType)
	rule.AppliesTo = promo.AppliesTo(appliesTo)
	return rule, err
}
