package shared

import (
	"math"

	"github.com/shopspring/decimal"
)

// QuantityScale is the number of decimal places stored for stock quantities.
const QuantityScale = 3

// maxQuantity is the exclusive upper bound of a NUMERIC(14,3) column.
const maxQuantity = 1e11

// FitsQuantityScale reports whether q is finite, below the column bound and
// has no more than QuantityScale decimal places.
func FitsQuantityScale(q float64) bool {
	if math.IsNaN(q) || math.IsInf(q, 0) || math.Abs(q) >= maxQuantity {
		return false
	}
	d := decimal.NewFromFloat(q)
	return d.Equal(d.Round(QuantityScale))
}

// ValidQuantity reports whether q can be moved through the stock ledger.
func ValidQuantity(q float64) bool {
	return q > 0 && FitsQuantityScale(q)
}
