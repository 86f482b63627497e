package promo

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// Validator validates a promo code against a cart on behalf of a user and
// returns the computed discount. Validation never consumes a redemption; the
// usage counter moves only when an order actually commits, so abandoning a
// checkout costs nothing.
type Validator interface {
	Validate(ctx context.Context, code, userID string, items []Item) (*Discount, error)
}

// RepoValidator implements Validator by looking up promo rules from a
// Repository and applying the eligibility checks in a fixed short-circuit
// order: existence, global exhaustion, per-user cap, cart applicability,
// minimum order amount.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate runs the full eligibility chain for the given code. The first
// failing check wins. Codes are matched case-insensitively; an expired rule
// behaves exactly like a missing one.
func (v *RepoValidator) Validate(ctx context.Context, code, userID string, items []Item) (*Discount, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))

	rule, err := v.repo.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, errors.Wrap(err, "lookup promo code")
	}

	if !rule.Active {
		return nil, ErrNotFound
	}
	if rule.ExpiresAt != nil && v.now().After(*rule.ExpiresAt) {
		return nil, ErrNotFound
	}

	if rule.MaxUses > 0 && rule.UsedCount >= rule.MaxUses {
		return nil, ErrExhausted
	}

	if rule.UsagePerUser > 0 {
		prior, err := v.repo.CountUserUsage(ctx, rule.ID, userID)
		if err != nil {
			return nil, errors.Wrap(err, "count prior promo usage")
		}
		if prior >= rule.UsagePerUser {
			return nil, ErrUserLimitReached
		}
	}

	minimum, err := EffectiveMinimum(rule, items)
	if err != nil {
		return nil, err
	}

	subtotal := Subtotal(items)
	if subtotal.LessThan(minimum) {
		return nil, ErrMinimumNotMet
	}

	amount, err := ComputeDiscount(rule, subtotal)
	if err != nil {
		return nil, err
	}

	return &Discount{
		PromoID: rule.ID,
		Code:    rule.Code,
		Amount:  amount,
	}, nil
}
