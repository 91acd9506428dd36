package sales

import (
	"context"
	"math"

	"github.com/sweetline/sweetline/internal/inventory"
)

const qtyEpsilon = 1e-9

// allocate serves items from branch stock in line order and fills in the
// fulfilled quantity and total of every line. A line keeps the unit price it
// was created with; only unpriced lines take the current branch price. Lines are
// independent: a short line is reduced, never failed. All branch rows are
// locked up front so concurrent bills acquire them in the same order.
func allocate(ctx context.Context, ledger *inventory.Ledger, branchID int64, items []OrderItem) ([]StockWarning, error) {
	keys := make([]inventory.Key, 0, len(items))
	for _, it := range items {
		keys = append(keys, inventory.BranchStockKey(branchID, it.SweetID))
	}
	if err := ledger.Lock(ctx, keys...); err != nil {
		return nil, err
	}

	var shortages []StockWarning
	for i := range items {
		it := &items[i]
		key := inventory.BranchStockKey(branchID, it.SweetID)
		bal, err := ledger.Balance(ctx, key)
		if err != nil {
			return nil, err
		}
		available := math.Max(bal.Quantity, 0)
		fulfilled := math.Min(it.RequestedQuantity, available)
		if fulfilled <= qtyEpsilon {
			fulfilled = 0
		} else if _, err := ledger.Debit(ctx, key, fulfilled); err != nil {
			return nil, err
		}

		if it.SweetName == "" {
			it.SweetName = bal.Name
		}
		if it.UnitPrice.IsZero() {
			it.UnitPrice = bal.UnitPrice
		}
		it.Quantity = fulfilled
		it.Total = LineTotal(it.UnitPrice, fulfilled)
		it.PartialFulfillment = fulfilled+qtyEpsilon < it.RequestedQuantity
		if it.PartialFulfillment {
			shortages = append(shortages, StockWarning{
				SweetID:           it.SweetID,
				SweetName:         bal.Name,
				RequestedQuantity: it.RequestedQuantity,
				AvailableStock:    available,
				Shortfall:         round3(it.RequestedQuantity - fulfilled),
			})
		}
	}
	return shortages, nil
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func newItems(lines []LineInput) []OrderItem {
	items := make([]OrderItem, len(lines))
	for i, l := range lines {
		items[i] = OrderItem{LineNo: i + 1, SweetID: l.SweetID, RequestedQuantity: l.Quantity}
	}
	return items
}
