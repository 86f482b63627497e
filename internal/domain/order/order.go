package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/bazarhut/checkout/internal/domain/promo"
)

// ErrNotFound is returned when a requested order does not exist.
var ErrNotFound = errors.New("order not found")

// PaymentMethod enumerates the accepted payment channels.
type PaymentMethod string

const (
	PaymentCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentBkash          PaymentMethod = "bkash"
	PaymentRocket         PaymentMethod = "rocket"
	PaymentNagad          PaymentMethod = "nagad"
)

// Valid reports whether the payment method is one of the accepted channels.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCashOnDelivery, PaymentBkash, PaymentRocket, PaymentNagad:
		return true
	}
	return false
}

// Status is the order fulfilment state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusShipped   Status = "shipped"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// CanTransitionTo reports whether the admin workflow may move an order from
// this status to the next one. Orders advance pending → confirmed → shipped →
// delivered one step at a time; any non-terminal order may be cancelled.
func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusPending:
		return next == StatusConfirmed || next == StatusCancelled
	case StatusConfirmed:
		return next == StatusShipped || next == StatusCancelled
	case StatusShipped:
		return next == StatusDelivered || next == StatusCancelled
	}
	return false
}

// ShippingAddress is the delivery destination captured at checkout.
// SenderNumber and TransactionID are only set for mobile-wallet payments.
type ShippingAddress struct {
	FullName      string
	Phone         string
	Address       string
	City          string
	SenderNumber  string
	TransactionID string
}

// Item is a single order line. UnitPrice is the catalog price snapshotted at
// purchase time and is never recomputed from the current product price.
type Item struct {
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
}

// Order is the order header together with its line items. Created once per
// checkout; only Status mutates afterwards.
type Order struct {
	ID             string
	UserID         string
	Items          []Item
	TotalAmount    decimal.Decimal
	ShippingCost   decimal.Decimal
	DiscountAmount decimal.Decimal
	Address        ShippingAddress
	PaymentMethod  PaymentMethod
	Notes          string
	PromoID        string
	PromoCode      string
	Status         Status
	CreatedAt      time.Time
}

// Repository defines persistence operations for orders.
//
// Create must commit the order header, its items, the conditional promo
// usage increment, and the ledger row as one transaction: either everything
// is visible afterwards or nothing is. When usage is non-nil and the promo
// has no redemptions left at commit time, Create rolls the whole transaction
// back and reports promo.ErrExhausted (or promo.ErrUserLimitReached when the
// per-user cap was the one lost to a race).
type Repository interface {
	Create(ctx context.Context, o *Order, usage *promo.Usage) error
	GetByID(ctx context.Context, id string) (*Order, error)
	ListByUser(ctx context.Context, userID string) ([]Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
}
