// Command seed-db loads the catalog, shipping rates, and promo codes from a
// JSON file into the database, and optionally registers a session token so
// the API can be exercised right away.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazarhut/checkout/internal/domain/auth"
	"github.com/bazarhut/checkout/internal/postgres"
)

type seedFile struct {
	Products      []productJSON      `json:"products"`
	ShippingRates []shippingRateJSON `json:"shippingRates"`
	PromoCodes    []promoCodeJSON    `json:"promoCodes"`
}

type productJSON struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Price     decimal.Decimal  `json:"price"`
	SalePrice *decimal.Decimal `json:"salePrice,omitempty"`
	Category  string           `json:"category"`
}

type shippingRateJSON struct {
	ID            string          `json:"id"`
	AreaName      string          `json:"areaName"`
	Rate          decimal.Decimal `json:"rate"`
	EstimatedDays *int            `json:"estimatedDays,omitempty"`
}

type promoCodeJSON struct {
	Code           string          `json:"code"`
	DiscountType   string          `json:"discountType"`
	DiscountValue  decimal.Decimal `json:"discountValue"`
	MinOrderAmount decimal.Decimal `json:"minOrderAmount"`
	MaxUses        int             `json:"maxUses"`
	UsagePerUser   int             `json:"usagePerUser"`
	AppliesTo      string          `json:"appliesTo"`
	ProductIDs     []string        `json:"productIds,omitempty"`
	ExpiresAt      *time.Time      `json:"expiresAt,omitempty"`
}

func main() {
	var (
		databaseURL   string
		seedPath      string
		sessionToken  string
		sessionUser   string
		sessionRole   string
		sessionPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&seedPath, "seed-file", "db/seed/catalog.json", "path to seed JSON file")
	flag.StringVar(&sessionToken, "session-token", "", "session token to register (or CHECKOUT_SEED_TOKEN env)")
	flag.StringVar(&sessionUser, "session-user", "seed-user", "user id for the registered session")
	flag.StringVar(&sessionRole, "session-role", "customer", "role for the registered session (customer or admin)")
	flag.StringVar(&sessionPepper, "session-pepper", "", "HMAC pepper for session hashing (or CHECKOUT_SESSION_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if sessionToken == "" {
		sessionToken = os.Getenv("CHECKOUT_SEED_TOKEN")
	}
	if sessionPepper == "" {
		sessionPepper = os.Getenv("CHECKOUT_SESSION_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, seedPath, sessionToken, sessionUser, sessionRole, sessionPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, seedPath, sessionToken, sessionUser, sessionRole, sessionPepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "create pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	raw, err := os.ReadFile(seedPath)
	if err != nil {
		return errors.Wrapf(err, "read seed file %s", seedPath)
	}

	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		return errors.Wrap(err, "parse seed file")
	}

	for _, p := range seed.Products {
		_, err := pool.Exec(ctx, `INSERT INTO products (id, name, price, sale_price, category)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO UPDATE SET name = $2, price = $3, sale_price = $4, category = $5`,
			p.ID, p.Name, p.Price, p.SalePrice, p.Category,
		)
		if err != nil {
			return errors.Wrapf(err, "seed product %s", p.ID)
		}
	}
	slog.Info("seeded products", slog.Int("count", len(seed.Products)))

	for _, r := range seed.ShippingRates {
		_, err := pool.Exec(ctx, `INSERT INTO shipping_rates (id, area_name, rate, estimated_days)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET area_name = $2, rate = $3, estimated_days = $4`,
			r.ID, r.AreaName, r.Rate, r.EstimatedDays,
		)
		if err != nil {
			return errors.Wrapf(err, "seed shipping rate %s", r.ID)
		}
	}
	slog.Info("seeded shipping rates", slog.Int("count", len(seed.ShippingRates)))

	for _, c := range seed.PromoCodes {
		_, err := pool.Exec(ctx, `INSERT INTO promo_codes
			(id, code, discount_type, discount_value, min_order_amount, max_uses, usage_per_user, applies_to, product_ids, expires_at)
			VALUES ($1, UPPER($2), $3, $4, $5, $6, $7, $8, $9, $10)
			ON CONFLICT (UPPER(code)) DO UPDATE SET
				discount_type = $3, discount_value = $4, min_order_amount = $5,
				max_uses = $6, usage_per_user = $7, applies_to = $8, product_ids = $9, expires_at = $10`,
			uuid.New().String(), c.Code, c.DiscountType, c.DiscountValue, c.MinOrderAmount,
			c.MaxUses, c.UsagePerUser, c.AppliesTo, c.ProductIDs, c.ExpiresAt,
		)
		if err != nil {
			return errors.Wrapf(err, "seed promo code %s", c.Code)
		}
	}
	slog.Info("seeded promo codes", slog.Int("count", len(seed.PromoCodes)))

	if sessionToken != "" {
		authn := auth.NewAuthenticator(nil, []byte(sessionPepper))
		sessions := postgres.NewSessionRepository(pool)
		err := sessions.Upsert(ctx, auth.Session{
			TokenHash: authn.HashToken(sessionToken),
			UserID:    sessionUser,
			Role:      auth.Role(sessionRole),
			ExpiresAt: time.Now().Add(365 * 24 * time.Hour),
		})
		if err != nil {
			return errors.Wrap(err, "seed session")
		}
		slog.Info("registered session",
			slog.String("user", sessionUser),
			slog.String("role", sessionRole),
		)
	}

	return nil
}
