package promo

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Subtotal returns the sum of price * quantity across all items.
func Subtotal(items []Item) decimal.Decimal {
	sum := decimal.Zero
	for _, item := range items {
		line := item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		sum = sum.Add(line)
	}
	return sum
}

// EffectiveMinimum returns the minimum cart subtotal the rule demands.
//
// For product-specific promos the minimum is the highest unit price among the
// rule's products actually present in the cart, so the discount only kicks in
// once the qualifying item itself is affordable. An empty intersection means
// the promo does not apply to this cart at all and ErrNotApplicable is
// returned. For everything else the rule's configured minimum order amount is
// used as-is.
func EffectiveMinimum(rule *Rule, items []Item) (decimal.Decimal, error) {
	if rule.AppliesTo != AppliesSpecific {
		return rule.MinOrderAmount, nil
	}

	eligible := make(map[string]struct{}, len(rule.ProductIDs))
	for _, id := range rule.ProductIDs {
		eligible[id] = struct{}{}
	}

	found := false
	min := decimal.Zero
	for _, item := range items {
		if _, ok := eligible[item.ProductID]; !ok {
			continue
		}
		if !found || item.Price.GreaterThan(min) {
			min = item.Price
		}
		found = true
	}
	if !found {
		return decimal.Zero, ErrNotApplicable
	}
	return min, nil
}

// ComputeDiscount calculates the discount amount for an already-eligible rule.
// Percentage discounts are a share of the subtotal; fixed discounts are
// clamped so they never exceed the subtotal. The result is rounded to two
// decimal places and never negative.
func ComputeDiscount(rule *Rule, subtotal decimal.Decimal) (decimal.Decimal, error) {
	var amount decimal.Decimal
	switch rule.DiscountType {
	case DiscountPercentage:
		amount = subtotal.Mul(rule.DiscountValue).Div(hundred)
	case DiscountFixed:
		amount = decimal.Min(rule.DiscountValue, subtotal)
	default:
		return decimal.Zero, errors.Errorf("unsupported discount type: %q", rule.DiscountType)
	}

	if amount.IsNegative() {
		amount = decimal.Zero
	}
	return amount.Round(2), nil
}
