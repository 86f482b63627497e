package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazarhut/checkout/internal/domain/order"
	"github.com/bazarhut/checkout/internal/domain/promo"
)

const (
	insertOrderSQL = `INSERT INTO orders (id, user_id, total_amount, shipping_cost, discount_amount,
		full_name, phone, address, city, sender_number, transaction_id,
		payment_method, notes, promo_code_id, promo_code, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`

	insertOrderItemSQL = `INSERT INTO order_items (order_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)`

	// Increment-if-still-under-limit. Zero rows affected means the last
	// redemption was lost to a concurrent checkout; the caller rolls back.
	incrementPromoUsesSQL = `UPDATE promo_codes
		SET used_count = used_count + 1
		WHERE id = $1 AND (max_uses = 0 OR used_count < max_uses)`

	// Runs after incrementPromoUsesSQL, which holds the promo row lock, so
	// two checkouts racing on the same per-user cap are serialized.
	promoUserCapSQL = `SELECT usage_per_user,
		(SELECT COUNT(*) FROM promo_usages WHERE promo_code_id = $1 AND user_id = $2)
		FROM promo_codes WHERE id = $1`

	insertPromoUsageSQL = `INSERT INTO promo_usages (id, promo_code_id, user_id, order_id, used_at)
		VALUES ($1, $2, $3, $4, $5)`

	getOrderSQL = `SELECT id, user_id, total_amount, shipping_cost, discount_amount,
		full_name, phone, address, city, sender_number, transaction_id,
		payment_method, notes, COALESCE(promo_code_id, ''), promo_code, status, created_at
		FROM orders WHERE id = $1`

	listOrdersByUserSQL = `SELECT id, user_id, total_amount, shipping_cost, discount_amount,
		full_name, phone, address, city, sender_number, transaction_id,
		payment_method, notes, COALESCE(promo_code_id, ''), promo_code, status, created_at
		FROM orders WHERE user_id = $1 ORDER BY created_at DESC`

	getOrderItemsSQL = `SELECT product_id, quantity, unit_price
		FROM order_items WHERE order_id = $1 ORDER BY product_id`

	updateOrderStatusSQL = `UPDATE orders SET status = $2 WHERE id = $1`
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists the order header, its items, the conditional promo usage
// increment, and the ledger row in a single transaction. Any failure rolls
// the whole write back; a lost promo race surfaces as promo.ErrExhausted or
// promo.ErrUserLimitReached.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order, usage *promo.Usage) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var promoID *string
		if o.PromoID != "" {
			promoID = &o.PromoID
		}

		_, err := tx.Exec(ctx, insertOrderSQL,
			o.ID, o.UserID, o.TotalAmount, o.ShippingCost, o.DiscountAmount,
			o.Address.FullName, o.Address.Phone, o.Address.Address, o.Address.City,
			o.Address.SenderNumber, o.Address.TransactionID,
			string(o.PaymentMethod), o.Notes, promoID, o.PromoCode,
			string(o.Status), o.CreatedAt,
		)
		if err != nil {
			return errors.Wrap(err, "insert order")
		}

		for _, item := range o.Items {
			_, err := tx.Exec(ctx, insertOrderItemSQL,
				o.ID, item.ProductID, item.Quantity, item.UnitPrice,
			)
			if err != nil {
				return errors.Wrapf(err, "insert order item %s", item.ProductID)
			}
		}

		if usage == nil {
			return nil
		}

		tag, err := tx.Exec(ctx, incrementPromoUsesSQL, usage.PromoID)
		if err != nil {
			return errors.Wrap(err, "increment promo uses")
		}
		if tag.RowsAffected() == 0 {
			return promo.ErrExhausted
		}

		var perUser, used int
		if err := tx.QueryRow(ctx, promoUserCapSQL, usage.PromoID, usage.UserID).Scan(&perUser, &used); err != nil {
			return errors.Wrap(err, "check promo user cap")
		}
		if perUser > 0 && used >= perUser {
			return promo.ErrUserLimitReached
		}

		_, err = tx.Exec(ctx, insertPromoUsageSQL,
			usage.ID, usage.PromoID, usage.UserID, usage.OrderID, usage.UsedAt,
		)
		if err != nil {
			return errors.Wrap(err, "insert promo usage")
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, promo.ErrExhausted) || errors.Is(err, promo.ErrUserLimitReached) {
			return err
		}
		return fmt.Errorf("creating order %q: %w", o.ID, err)
	}
	return nil
}

// GetByID returns a single order with its items. It returns order.ErrNotFound
// when no matching order exists.
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*order.Order, error) {
	rows, err := r.pool.Query(ctx, getOrderSQL, id)
	if err != nil {
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	o, err := pgx.CollectExactlyOneRow(rows, scanOrder)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order %q: %w", id, err)
	}

	items, err := r.loadItems(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

// ListByUser returns the user's orders newest first, items included.
func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]order.Order, error) {
	rows, err := r.pool.Query(ctx, listOrdersByUserSQL, userID)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}

	orders, err := pgx.CollectRows(rows, scanOrder)
	if err != nil {
		return nil, fmt.Errorf("listing orders for user %q: %w", userID, err)
	}

	for i := range orders {
		items, err := r.loadItems(ctx, orders[i].ID)
		if err != nil {
			return nil, err
		}
		orders[i].Items = items
	}
	return orders, nil
}

// UpdateStatus sets the order's fulfilment status. It returns
// order.ErrNotFound when no matching order exists.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status order.Status) error {
	tag, err := r.pool.Exec(ctx, updateOrderStatusSQL, id, string(status))
	if err != nil {
		return fmt.Errorf("updating order %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

func (r *OrderRepository) loadItems(ctx context.Context, orderID string) ([]order.Item, error) {
	rows, err := r.pool.Query(ctx, getOrderItemsSQL, orderID)
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", orderID, err)
	}

	items, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (order.Item, error) {
		var item order.Item
		err := row.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice)
		return item, err
	})
	if err != nil {
		return nil, fmt.Errorf("getting items for order %q: %w", orderID, err)
	}
	return items, nil
}

func scanOrder(row pgx.CollectableRow) (order.Order, error) {
	var (
		o             order.Order
		paymentMethod string
		status        string
	)
	err := row.Scan(
		&o.ID, &o.UserID, &o.TotalAmount, &o.ShippingCost, &o.DiscountAmount,
		&o.Address.FullName, &o.Address.Phone, &o.Address.Address, &o.Address.City,
		&o.Address.SenderNumber, &o.Address.TransactionID,
		&paymentMethod, &o.Notes, &o.PromoID, &o.PromoCode, &status, &o.CreatedAt,
	)
	o.PaymentMethod = order.PaymentMethod(paymentMethod)
	o.Status = order.Status(status)
	return o, err
}
