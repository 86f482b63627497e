// Package cart holds the checkout-time snapshot of a customer's cart.
package cart

import (
	"context"

	"github.com/shopspring/decimal"
)

// Options are the variant choices made for a cart line.
type Options struct {
	Color string
	Size  string
}

// Line is a single product entry in a cart snapshot. Name and UnitPrice are
// display values captured when the line was added; checkout re-reads live
// catalog prices and never trusts these for money.
type Line struct {
	ProductID       string
	Name            string
	UnitPrice       decimal.Decimal
	Quantity        int
	SelectedOptions Options
}

// Snapshot is the immutable cart state a checkout runs against. It is built
// before placement begins and cleared only after the order has committed.
type Snapshot struct {
	Lines []Line
}

// ProductIDs returns the distinct product ids in the snapshot, in line order.
func (s Snapshot) ProductIDs() []string {
	seen := make(map[string]struct{}, len(s.Lines))
	ids := make([]string, 0, len(s.Lines))
	for _, l := range s.Lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	return ids
}

// Store persists per-user cart snapshots. Clear is called by checkout only
// after the order transaction has committed; on any failure the cart must
// survive so the user can retry.
type Store interface {
	Get(ctx context.Context, userID string) (Snapshot, error)
	Set(ctx context.Context, userID string, snap Snapshot) error
	Clear(ctx context.Context, userID string) error
}
