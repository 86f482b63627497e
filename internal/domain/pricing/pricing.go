// Package pricing computes the final payable total for a checkout.
package pricing

import "github.com/shopspring/decimal"

// Total combines the cart subtotal, shipping fee, and discount into the final
// payable amount: subtotal + shipping - discount, rounded to two decimal
// places. The result is floored at zero so an over-generous discount can
// never produce a negative charge, even when the caller failed to clamp it.
func Total(subtotal, shippingFee, discount decimal.Decimal) decimal.Decimal {
	total := subtotal.Add(shippingFee).Sub(discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	return total.Round(2)
}
