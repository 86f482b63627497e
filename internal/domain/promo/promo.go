package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// DiscountType enumerates the supported promo discount strategies.
type DiscountType string

const (
	// DiscountPercentage applies a percentage-based discount to the subtotal.
	DiscountPercentage DiscountType = "percentage"
	// DiscountFixed applies a fixed monetary discount capped at the subtotal.
	DiscountFixed DiscountType = "fixed"
)

// AppliesTo enumerates promo eligibility scopes.
type AppliesTo string

const (
	// AppliesAll makes the promo eligible for any cart.
	AppliesAll AppliesTo = "all"
	// AppliesSpecific restricts the promo to carts containing at least one
	// of the promo's listed products.
	AppliesSpecific AppliesTo = "specific"
)

// Validation errors, ordered the way the checks short-circuit.
var (
	// ErrNotFound is returned when no active, non-expired promo matches the code.
	ErrNotFound = errors.New("promo code not found")
	// ErrExhausted is returned when a promo has no redemptions left.
	ErrExhausted = errors.New("promo code usage limit reached")
	// ErrUserLimitReached is returned when this user has redeemed the promo
	// as many times as the per-user cap allows.
	ErrUserLimitReached = errors.New("promo code user limit reached")
	// ErrNotApplicable is returned when a product-specific promo matches
	// nothing in the cart.
	ErrNotApplicable = errors.New("promo code not applicable to cart")
	// ErrMinimumNotMet is returned when the cart subtotal is below the
	// promo's effective minimum order amount.
	ErrMinimumNotMet = errors.New("promo code minimum order amount not met")
)

// Rule defines a promo code's discount behaviour and eligibility constraints.
// MaxUses and UsagePerUser of zero mean unbounded.
type Rule struct {
	ID             string
	Code           string
	DiscountType   DiscountType
	DiscountValue  decimal.Decimal
	MinOrderAmount decimal.Decimal
	MaxUses        int
	UsedCount      int
	UsagePerUser   int
	AppliesTo      AppliesTo
	ProductIDs     []string
	Active         bool
	ExpiresAt      *time.Time
}

// Discount holds the accepted promo and its computed discount amount.
type Discount struct {
	PromoID string
	Code    string
	Amount  decimal.Decimal
}

// Item represents a cart line for discount calculation purposes. Price is the
// live catalog unit price, never a client-echoed number.
type Item struct {
	ProductID string
	Price     decimal.Decimal
	Quantity  int
}

// Usage is a single redemption record in the usage ledger.
type Usage struct {
	ID      string
	PromoID string
	UserID  string
	OrderID string
	UsedAt  time.Time
}

// Repository provides lookup of promo rules and per-user redemption counts.
// The usage counter increment deliberately lives on the order repository
// instead: it must commit in the same transaction as the order itself.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Rule, error)
	CountUserUsage(ctx context.Context, promoID, userID string) (int, error)
}
