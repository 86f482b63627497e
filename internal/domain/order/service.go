package order

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/bazarhut/checkout/internal/domain/auth"
	"github.com/bazarhut/checkout/internal/domain/cart"
	"github.com/bazarhut/checkout/internal/domain/pricing"
	"github.com/bazarhut/checkout/internal/domain/product"
	"github.com/bazarhut/checkout/internal/domain/promo"
	"github.com/bazarhut/checkout/internal/domain/shipping"
)

// Sentinel errors for placement validation.
var (
	ErrEmptyCart = errors.New("cart is empty")
	// ErrUpstreamUnavailable is returned when a storage call exceeds its
	// deadline. Transient; the user may retry the submission unchanged.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	// ErrInvalidPayment is returned for an unknown payment method.
	ErrInvalidPayment = errors.New("invalid payment method")
	// ErrInvalidTransition is returned when a status update would skip a step.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrNotAllowed is returned when the actor may see the order but not
	// perform the requested transition on it.
	ErrNotAllowed = errors.New("not allowed")
)

// InvalidQuantityError indicates a cart line has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// ProductNotFoundError indicates a cart references a product that no longer
// exists or has been deactivated.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// PlacementError wraps a failure during the write phase. The transaction has
// been rolled back: no order row, no items, and an untouched usage counter.
// The cart is left intact so the user can retry.
type PlacementError struct {
	Err error
}

func (e *PlacementError) Error() string {
	return fmt.Sprintf("order placement failed: %s", e.Err)
}

func (e *PlacementError) Unwrap() error {
	return e.Err
}

// PlaceOrderRequest holds the input for placing an order. Cart prices are
// treated as display-only; live catalog prices are re-read before any money
// is computed.
type PlaceOrderRequest struct {
	UserID         string
	Cart           cart.Snapshot
	ShippingAreaID string
	PromoCode      string
	PaymentMethod  PaymentMethod
	Address        ShippingAddress
	Notes          string
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order    *Order
	Shipping *shipping.Quote
}

// Service coordinates order placement: it re-validates the shipping selection
// and promo code against live data, prices the order, and persists everything
// in one transaction.
type Service struct {
	products        product.Repository
	shippingRates   *shipping.Resolver
	promos          promo.Validator
	orders          Repository
	carts           cart.Store
	upstreamTimeout time.Duration
	now             func() time.Time

	placedOrders     metric.Int64Counter
	promoRedemptions metric.Int64Counter
}

// NewService creates an order Service with the required domain dependencies.
// upstreamTimeout bounds every storage call made during placement.
func NewService(
	products product.Repository,
	shippingRates *shipping.Resolver,
	promos promo.Validator,
	orders Repository,
	carts cart.Store,
	upstreamTimeout time.Duration,
	meter metric.Meter,
) (*Service, error) {
	placedOrders, err := meter.Int64Counter("checkout.orders_placed")
	if err != nil {
		return nil, errors.Wrap(err, "create orders counter")
	}
	promoRedemptions, err := meter.Int64Counter("checkout.promo_redemptions")
	if err != nil {
		return nil, errors.Wrap(err, "create redemptions counter")
	}

	return &Service{
		products:         products,
		shippingRates:    shippingRates,
		promos:           promos,
		orders:           orders,
		carts:            carts,
		upstreamTimeout:  upstreamTimeout,
		now:              time.Now,
		placedOrders:     placedOrders,
		promoRedemptions: promoRedemptions,
	}, nil
}

// PlaceOrder runs the whole checkout sequence. Validation errors are reported
// before the write phase begins, so they never require a rollback. The write
// phase is all-or-nothing; the cart is cleared only after it commits.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if req.UserID == "" {
		return nil, auth.ErrNotAuthenticated
	}
	if len(req.Cart.Lines) == 0 {
		return nil, ErrEmptyCart
	}
	if !req.PaymentMethod.Valid() {
		return nil, ErrInvalidPayment
	}
	for _, line := range req.Cart.Lines {
		if line.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: line.ProductID}
		}
	}

	// Live catalog prices: one batch fetch, never the cart's display prices.
	productIDs := req.Cart.ProductIDs()
	fetched, err := s.fetchProducts(ctx, productIDs)
	if err != nil {
		return nil, err
	}

	// Lines for the same product (different color or size) collapse into one
	// order item; per-variant detail lives in the cart, not in the ledger.
	quantities := make(map[string]int, len(productIDs))
	for _, line := range req.Cart.Lines {
		quantities[line.ProductID] += line.Quantity
	}

	promoItems := make([]promo.Item, len(productIDs))
	items := make([]Item, len(productIDs))
	subtotal := decimal.Zero
	for i, id := range productIDs {
		p, ok := fetched[id]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: id}
		}

		unitPrice := p.UnitPrice()
		quantity := quantities[id]
		qty := decimal.NewFromInt(int64(quantity))

		items[i] = Item{
			ProductID: id,
			Quantity:  quantity,
			UnitPrice: unitPrice,
		}
		promoItems[i] = promo.Item{
			ProductID: id,
			Price:     unitPrice,
			Quantity:  quantity,
		}
		subtotal = subtotal.Add(unitPrice.Mul(qty))
	}

	quote, err := s.resolveShipping(ctx, req.ShippingAreaID)
	if err != nil {
		return nil, err
	}

	// Promo re-validation against live data. A stale client-cached discount
	// must not survive this point.
	var discount *promo.Discount
	if req.PromoCode != "" {
		discount, err = s.validatePromo(ctx, req.PromoCode, req.UserID, promoItems)
		if err != nil {
			return nil, err
		}
	}

	discountAmount := decimal.Zero
	promoID, promoCode := "", ""
	var usage *promo.Usage
	if discount != nil {
		discountAmount = discount.Amount
		promoID = discount.PromoID
		promoCode = discount.Code
		usage = &promo.Usage{
			ID:      uuid.New().String(),
			PromoID: discount.PromoID,
			UserID:  req.UserID,
			UsedAt:  s.now(),
		}
	}

	o := &Order{
		ID:             uuid.New().String(),
		UserID:         req.UserID,
		Items:          items,
		TotalAmount:    pricing.Total(subtotal, quote.Fee, discountAmount),
		ShippingCost:   quote.Fee.Round(2),
		DiscountAmount: discountAmount.Round(2),
		Address:        req.Address,
		PaymentMethod:  req.PaymentMethod,
		Notes:          req.Notes,
		PromoID:        promoID,
		PromoCode:      promoCode,
		Status:         StatusPending,
		CreatedAt:      s.now(),
	}
	if usage != nil {
		usage.OrderID = o.ID
	}

	if err := s.createOrder(ctx, o, usage); err != nil {
		return nil, err
	}

	s.placedOrders.Add(ctx, 1)
	if usage != nil {
		s.promoRedemptions.Add(ctx, 1)
	}

	// The order is committed; a failed cart clear must not fail the checkout.
	if err := s.carts.Clear(ctx, req.UserID); err != nil {
		zctx.From(ctx).Warn("clear cart after placement",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}

	return &PlaceOrderResult{Order: o, Shipping: quote}, nil
}

// GetOrder returns a single order visible to the given user.
func (s *Service) GetOrder(ctx context.Context, userID, orderID string) (*Order, error) {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, mapUpstream(err)
	}
	if o.UserID != userID {
		return nil, ErrNotFound
	}
	return o, nil
}

// ListOrders returns the user's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, userID string) ([]Order, error) {
	out, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, mapUpstream(err)
	}
	return out, nil
}

// Actor identifies who is requesting a status change.
type Actor struct {
	UserID string
	Admin  bool
}

// UpdateStatus advances an order through the fulfilment state machine. Admins
// may perform any valid transition; the order's owner may only cancel. Orders
// belonging to someone else are reported as not found.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, orderID string, next Status) error {
	o, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return mapUpstream(err)
	}
	if !actor.Admin {
		if o.UserID != actor.UserID {
			return ErrNotFound
		}
		if next != StatusCancelled {
			return errors.Wrapf(ErrNotAllowed, "transition to %s", next)
		}
	}
	if !o.Status.CanTransitionTo(next) {
		return errors.Wrapf(ErrInvalidTransition, "%s -> %s", o.Status, next)
	}
	return mapUpstream(s.orders.UpdateStatus(ctx, orderID, next))
}

func (s *Service) fetchProducts(ctx context.Context, ids []string) (map[string]product.Product, error) {
	ctx, cancel := context.WithTimeout(ctx, s.upstreamTimeout)
	defer cancel()

	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, mapUpstream(errors.Wrap(err, "get products"))
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		if !p.Active {
			continue
		}
		byID[p.ID] = p
	}
	return byID, nil
}

func (s *Service) resolveShipping(ctx context.Context, areaID string) (*shipping.Quote, error) {
	ctx, cancel := context.WithTimeout(ctx, s.upstreamTimeout)
	defer cancel()

	quote, err := s.shippingRates.Resolve(ctx, areaID)
	if err != nil {
		if errors.Is(err, shipping.ErrInvalidArea) {
			return nil, err
		}
		return nil, mapUpstream(err)
	}
	return quote, nil
}

func (s *Service) validatePromo(ctx context.Context, code, userID string, items []promo.Item) (*promo.Discount, error) {
	ctx, cancel := context.WithTimeout(ctx, s.upstreamTimeout)
	defer cancel()

	d, err := s.promos.Validate(ctx, code, userID, items)
	if err != nil {
		if isPromoValidationErr(err) {
			return nil, err
		}
		return nil, mapUpstream(err)
	}
	return d, nil
}

// createOrder runs the write phase. Conditional-increment losses surface as
// the same promo errors validation uses; everything else becomes a
// PlacementError after the rollback.
func (s *Service) createOrder(ctx context.Context, o *Order, usage *promo.Usage) error {
	ctx, cancel := context.WithTimeout(ctx, s.upstreamTimeout)
	defer cancel()

	err := s.orders.Create(ctx, o, usage)
	switch {
	case err == nil:
		return nil
	case isPromoValidationErr(err):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return ErrUpstreamUnavailable
	default:
		return &PlacementError{Err: err}
	}
}

func isPromoValidationErr(err error) bool {
	return errors.Is(err, promo.ErrNotFound) ||
		errors.Is(err, promo.ErrExhausted) ||
		errors.Is(err, promo.ErrUserLimitReached) ||
		errors.Is(err, promo.ErrNotApplicable) ||
		errors.Is(err, promo.ErrMinimumNotMet)
}

func mapUpstream(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrUpstreamUnavailable
	}
	return err
}
