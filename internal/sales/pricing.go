package sales

import "github.com/shopspring/decimal"

// LineTotal returns unitPrice × quantity rounded to cents.
func LineTotal(unitPrice decimal.Decimal, quantity float64) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromFloat(quantity)).Round(2)
}

// OrderTotal sums the line totals of items.
func OrderTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Total)
	}
	return total
}
