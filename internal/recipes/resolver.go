package recipes

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sweetline/sweetline/internal/shared"
)

// Source loads the recipe rows of a sweet.
type Source interface {
	ListBySweet(ctx context.Context, sweetID int64) ([]Recipe, error)
}

// Resolver turns a production quantity into material requirements.
type Resolver struct {
	source Source
}

// NewResolver constructs a Resolver.
func NewResolver(source Source) *Resolver {
	return &Resolver{source: source}
}

// RequirementsFor returns quantity_required × quantity per material, ordered
// by material id. Duplicate rows for the same material are summed and every
// total is rounded up to the stock column scale, so a non-zero requirement is
// never dropped. A sweet without recipe rows needs nothing.
func (r *Resolver) RequirementsFor(ctx context.Context, sweetID int64, quantity float64) ([]Requirement, error) {
	if quantity <= 0 {
		return nil, shared.ErrInvalidQuantity
	}
	rows, err := r.source.ListBySweet(ctx, sweetID)
	if err != nil {
		return nil, fmt.Errorf("recipes: list for sweet %d: %w", sweetID, err)
	}
	qty := decimal.NewFromFloat(quantity)
	totals := make(map[int64]decimal.Decimal, len(rows))
	names := make(map[int64]string, len(rows))
	for _, row := range rows {
		if row.QuantityRequired <= 0 {
			continue
		}
		totals[row.MaterialID] = totals[row.MaterialID].Add(decimal.NewFromFloat(row.QuantityRequired).Mul(qty))
		names[row.MaterialID] = row.MaterialName
	}
	out := make([]Requirement, 0, len(totals))
	for id, total := range totals {
		out = append(out, Requirement{
			MaterialID:   id,
			MaterialName: names[id],
			Quantity:     roundUpQty(total),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MaterialID < out[j].MaterialID })
	return out, nil
}

// roundUpQty rounds q up to the NUMERIC(14,3) scale of stock columns.
func roundUpQty(q decimal.Decimal) float64 {
	return q.RoundCeil(shared.QuantityScale).InexactFloat64()
}
