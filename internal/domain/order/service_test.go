package order

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/bazarhut/checkout/internal/domain/auth"
	"github.com/bazarhut/checkout/internal/domain/cart"
	"github.com/bazarhut/checkout/internal/domain/product"
	"github.com/bazarhut/checkout/internal/domain/promo"
	"github.com/bazarhut/checkout/internal/domain/shipping"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]product.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockShippingRepo struct {
	rates map[string]*shipping.Rate
}

func (m *mockShippingRepo) List(_ context.Context) ([]shipping.Rate, error) {
	return nil, nil
}

func (m *mockShippingRepo) GetByID(_ context.Context, id string) (*shipping.Rate, error) {
	r, ok := m.rates[id]
	if !ok {
		return nil, shipping.ErrInvalidArea
	}
	return r, nil
}

type mockPromoValidator struct {
	discount *promo.Discount
	err      error
}

func (m *mockPromoValidator) Validate(_ context.Context, _, _ string, _ []promo.Item) (*promo.Discount, error) {
	return m.discount, m.err
}

type mockOrderRepo struct {
	mu        sync.Mutex
	lastOrder *Order
	lastUsage *promo.Usage
	createErr error

	// remainingUses simulates the conditional increment: when usesLimited is
	// set, each Create with a usage consumes one slot and fails with
	// promo.ErrExhausted once none remain.
	usesLimited   bool
	remainingUses int

	byID map[string]*Order
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order, usage *promo.Usage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.createErr != nil {
		return m.createErr
	}
	if usage != nil && m.usesLimited {
		if m.remainingUses <= 0 {
			return promo.ErrExhausted
		}
		m.remainingUses--
	}
	m.lastOrder = o
	m.lastUsage = usage
	return nil
}

func (m *mockOrderRepo) GetByID(_ context.Context, id string) (*Order, error) {
	o, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return o, nil
}

func (m *mockOrderRepo) ListByUser(_ context.Context, userID string) ([]Order, error) {
	var out []Order
	for _, o := range m.byID {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *mockOrderRepo) UpdateStatus(_ context.Context, id string, status Status) error {
	o, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	o.Status = status
	return nil
}

// --- Helpers ---

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestProduct(id string, price string, salePrice *string) product.Product {
	p := product.Product{
		ID:     id,
		Name:   "Product " + id,
		Price:  d(price),
		Active: true,
	}
	if salePrice != nil {
		sp := d(*salePrice)
		p.SalePrice = &sp
	}
	return p
}

type testEnv struct {
	products *mockProductRepo
	shipping *mockShippingRepo
	promos   *mockPromoValidator
	orders   *mockOrderRepo
	carts    *cart.MemoryStore
	svc      *Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	days := 2
	env := &testEnv{
		products: &mockProductRepo{byID: map[string]product.Product{
			"p1": newTestProduct("p1", "1200.00", nil),
			"p2": newTestProduct("p2", "550.00", strPtr("450.00")),
		}},
		shipping: &mockShippingRepo{rates: map[string]*shipping.Rate{
			"area-dhaka": {
				ID:            "area-dhaka",
				AreaName:      "Dhaka",
				Rate:          d("60.00"),
				EstimatedDays: &days,
				Active:        true,
			},
		}},
		promos: &mockPromoValidator{},
		orders: &mockOrderRepo{byID: make(map[string]*Order)},
		carts:  cart.NewMemoryStore(),
	}

	svc, err := NewService(
		env.products,
		shipping.NewResolver(env.shipping),
		env.promos,
		env.orders,
		env.carts,
		time.Second,
		noop.NewMeterProvider().Meter("test"),
	)
	require.NoError(t, err)
	env.svc = svc
	return env
}

func strPtr(s string) *string { return &s }

func validRequest() PlaceOrderRequest {
	return PlaceOrderRequest{
		UserID: "u1",
		Cart: cart.Snapshot{Lines: []cart.Line{
			{ProductID: "p1", Quantity: 1},
		}},
		ShippingAreaID: "area-dhaka",
		PaymentMethod:  PaymentCashOnDelivery,
		Address: ShippingAddress{
			FullName: "Rahim Uddin",
			Phone:    "01700000000",
			Address:  "12 Green Road",
			City:     "Dhaka",
		},
	}
}

// --- Tests ---

func TestPlaceOrder_NotAuthenticated(t *testing.T) {
	env := newTestEnv(t)

	req := validRequest()
	req.UserID = ""

	_, err := env.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, auth.ErrNotAuthenticated)
}

func TestPlaceOrder_EmptyCart(t *testing.T) {
	env := newTestEnv(t)

	req := validRequest()
	req.Cart = cart.Snapshot{}

	_, err := env.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, ErrEmptyCart)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	env := newTestEnv(t)

	req := validRequest()
	req.Cart.Lines[0].Quantity = 0

	_, err := env.svc.PlaceOrder(context.Background(), req)

	var iqErr *InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
}

func TestPlaceOrder_InvalidPaymentMethod(t *testing.T) {
	env := newTestEnv(t)

	req := validRequest()
	req.PaymentMethod = "paypal"

	_, err := env.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, ErrInvalidPayment)
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	env := newTestEnv(t)

	req := validRequest()
	req.Cart.Lines[0].ProductID = "missing"

	_, err := env.svc.PlaceOrder(context.Background(), req)

	var pnfErr *ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, "missing", pnfErr.ProductID)
}

func TestPlaceOrder_InvalidShippingArea(t *testing.T) {
	env := newTestEnv(t)

	req := validRequest()
	req.ShippingAreaID = "area-mars"

	_, err := env.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, shipping.ErrInvalidArea)
	assert.Nil(t, env.orders.lastOrder, "no write should happen on validation failure")
}

func TestPlaceOrder_NoPromo(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	require.NoError(t, env.carts.Set(ctx, "u1", cart.Snapshot{Lines: []cart.Line{{ProductID: "p1", Quantity: 1}}}))

	result, err := env.svc.PlaceOrder(ctx, validRequest())
	require.NoError(t, err)

	o := result.Order
	assert.True(t, d("1260.00").Equal(o.TotalAmount), "got %s", o.TotalAmount)
	assert.True(t, d("60.00").Equal(o.ShippingCost))
	assert.True(t, o.DiscountAmount.IsZero())
	assert.Equal(t, StatusPending, o.Status)
	assert.Empty(t, o.PromoID)
	assert.Nil(t, env.orders.lastUsage)

	// Cart cleared only after the write committed.
	snap, err := env.carts.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)
}

func TestPlaceOrder_SnapshotsSalePrice(t *testing.T) {
	env := newTestEnv(t)

	req := validRequest()
	req.Cart.Lines = []cart.Line{
		// Cart claims an absurd display price; the catalog sale price wins.
		{ProductID: "p2", Quantity: 2, UnitPrice: d("1.00")},
	}

	result, err := env.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Order.Items, 1)
	assert.True(t, d("450.00").Equal(result.Order.Items[0].UnitPrice))
	assert.True(t, d("960.00").Equal(result.Order.TotalAmount), "2x450 + 60 shipping, got %s", result.Order.TotalAmount)
}

func TestPlaceOrder_MergesVariantLines(t *testing.T) {
	env := newTestEnv(t)

	req := validRequest()
	req.Cart.Lines = []cart.Line{
		{ProductID: "p1", Quantity: 1, SelectedOptions: cart.Options{Size: "M"}},
		{ProductID: "p1", Quantity: 2, SelectedOptions: cart.Options{Size: "L"}},
		{ProductID: "p2", Quantity: 1},
	}

	result, err := env.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, result.Order.Items, 2, "lines for the same product collapse into one item")
	assert.Equal(t, "p1", result.Order.Items[0].ProductID)
	assert.Equal(t, 3, result.Order.Items[0].Quantity)
	assert.Equal(t, "p2", result.Order.Items[1].ProductID)
	assert.Equal(t, 1, result.Order.Items[1].Quantity)
	// 3x1200 + 450 + 60 shipping.
	assert.True(t, d("4110.00").Equal(result.Order.TotalAmount), "got %s", result.Order.TotalAmount)
}

func TestPlaceOrder_WithPromo(t *testing.T) {
	env := newTestEnv(t)
	env.promos.discount = &promo.Discount{
		PromoID: "pr1",
		Code:    "SAVE10",
		Amount:  d("120.00"),
	}

	req := validRequest()
	req.PromoCode = "SAVE10"

	result, err := env.svc.PlaceOrder(context.Background(), req)
	require.NoError(t, err)

	o := result.Order
	assert.True(t, d("1140.00").Equal(o.TotalAmount), "1200 + 60 - 120, got %s", o.TotalAmount)
	assert.True(t, d("60.00").Equal(o.ShippingCost))
	assert.True(t, d("120.00").Equal(o.DiscountAmount))
	assert.Equal(t, "pr1", o.PromoID)
	assert.Equal(t, "SAVE10", o.PromoCode)

	usage := env.orders.lastUsage
	require.NotNil(t, usage)
	assert.Equal(t, "pr1", usage.PromoID)
	assert.Equal(t, "u1", usage.UserID)
	assert.Equal(t, o.ID, usage.OrderID)
}

func TestPlaceOrder_PromoRejectionKeepsCart(t *testing.T) {
	env := newTestEnv(t)
	env.promos.err = promo.ErrMinimumNotMet
	ctx := context.Background()
	require.NoError(t, env.carts.Set(ctx, "u1", cart.Snapshot{Lines: []cart.Line{{ProductID: "p1", Quantity: 1}}}))

	req := validRequest()
	req.PromoCode = "SAVE10"

	_, err := env.svc.PlaceOrder(ctx, req)
	require.ErrorIs(t, err, promo.ErrMinimumNotMet)
	assert.Nil(t, env.orders.lastOrder)

	snap, err := env.carts.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, snap.Lines, 1, "cart must survive a rejected promo")
}

func TestPlaceOrder_WriteFailureKeepsCart(t *testing.T) {
	env := newTestEnv(t)
	env.orders.createErr = errors.New("connection reset")
	ctx := context.Background()
	require.NoError(t, env.carts.Set(ctx, "u1", cart.Snapshot{Lines: []cart.Line{{ProductID: "p1", Quantity: 1}}}))

	_, err := env.svc.PlaceOrder(ctx, validRequest())

	var placement *PlacementError
	require.ErrorAs(t, err, &placement)

	snap, err := env.carts.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, snap.Lines, 1, "cart must survive a failed write")
}

func TestPlaceOrder_WriteTimeout(t *testing.T) {
	env := newTestEnv(t)
	env.orders.createErr = context.DeadlineExceeded

	_, err := env.svc.PlaceOrder(context.Background(), validRequest())
	require.ErrorIs(t, err, ErrUpstreamUnavailable)
}

func TestPlaceOrder_CommitTimeExhaustion(t *testing.T) {
	env := newTestEnv(t)
	env.promos.discount = &promo.Discount{PromoID: "pr1", Code: "LAST1", Amount: d("120.00")}
	env.orders.usesLimited = true
	env.orders.remainingUses = 0

	req := validRequest()
	req.PromoCode = "LAST1"

	_, err := env.svc.PlaceOrder(context.Background(), req)
	require.ErrorIs(t, err, promo.ErrExhausted)
}

func TestPlaceOrder_ExhaustionRace(t *testing.T) {
	env := newTestEnv(t)
	env.promos.discount = &promo.Discount{PromoID: "pr1", Code: "LAST1", Amount: d("120.00")}
	env.orders.usesLimited = true
	env.orders.remainingUses = 1

	req := validRequest()
	req.PromoCode = "LAST1"

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.PlaceOrder(context.Background(), req)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var succeeded, exhausted int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, promo.ErrExhausted):
			exhausted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded, "exactly one checkout wins the last redemption")
	assert.Equal(t, 1, exhausted)
	assert.Equal(t, 0, env.orders.remainingUses)
}

func TestGetOrder_OtherUsersOrderHidden(t *testing.T) {
	env := newTestEnv(t)
	env.orders.byID["o1"] = &Order{ID: "o1", UserID: "someone-else", Status: StatusPending}

	_, err := env.svc.GetOrder(context.Background(), "u1", "o1")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateStatus_Admin(t *testing.T) {
	env := newTestEnv(t)
	env.orders.byID["o1"] = &Order{ID: "o1", UserID: "u1", Status: StatusPending}
	admin := Actor{UserID: "staff-1", Admin: true}

	require.NoError(t, env.svc.UpdateStatus(context.Background(), admin, "o1", StatusConfirmed))
	assert.Equal(t, StatusConfirmed, env.orders.byID["o1"].Status)

	err := env.svc.UpdateStatus(context.Background(), admin, "o1", StatusDelivered)
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StatusConfirmed, env.orders.byID["o1"].Status)
}

func TestUpdateStatus_OwnerMayOnlyCancel(t *testing.T) {
	env := newTestEnv(t)
	env.orders.byID["o1"] = &Order{ID: "o1", UserID: "u1", Status: StatusPending}
	owner := Actor{UserID: "u1"}

	err := env.svc.UpdateStatus(context.Background(), owner, "o1", StatusConfirmed)
	require.ErrorIs(t, err, ErrNotAllowed)
	assert.Equal(t, StatusPending, env.orders.byID["o1"].Status)

	require.NoError(t, env.svc.UpdateStatus(context.Background(), owner, "o1", StatusCancelled))
	assert.Equal(t, StatusCancelled, env.orders.byID["o1"].Status)
}

func TestUpdateStatus_StrangerSeesNotFound(t *testing.T) {
	env := newTestEnv(t)
	env.orders.byID["o1"] = &Order{ID: "o1", UserID: "someone-else", Status: StatusPending}

	err := env.svc.UpdateStatus(context.Background(), Actor{UserID: "u1"}, "o1", StatusCancelled)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, StatusPending, env.orders.byID["o1"].Status, "another user's order must stay untouched")
}
