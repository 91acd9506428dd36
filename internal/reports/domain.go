// Package reports aggregates stored production, sales and ledger data into
// read-only summaries.
package reports

import (
	"time"

	"github.com/shopspring/decimal"
)

// Period is an inclusive calendar date range.
type Period struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ProductionLine totals one sweet's production on a day.
type ProductionLine struct {
	SweetID          int64   `json:"sweet_id"`
	SweetName        string  `json:"sweet_name"`
	QuantityProduced float64 `json:"quantity_produced"`
	Wastage          float64 `json:"wastage"`
	Count            int     `json:"count"`
}

// DailyProduction summarises the productions recorded on Date.
type DailyProduction struct {
	Date             time.Time        `json:"date"`
	Summary          []ProductionLine `json:"summary"`
	TotalProductions int              `json:"total_productions"`
}

// SalesLine is one order line of a completed order, as read from storage.
type SalesLine struct {
	OrderID    int64
	BranchID   int64
	BranchName string
	SweetID    int64
	SweetName  string
	Quantity   float64
	Total      decimal.Decimal
}

// ProductSales totals one sweet within a branch.
type ProductSales struct {
	SweetID   int64           `json:"sweet_id"`
	SweetName string          `json:"sweet_name"`
	Quantity  float64         `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}

// BranchSales totals completed orders of one branch.
type BranchSales struct {
	BranchID          int64           `json:"branch_id"`
	BranchName        string          `json:"branch_name"`
	TotalOrders       int             `json:"total_orders"`
	TotalRevenue      decimal.Decimal `json:"total_revenue"`
	AverageOrderValue decimal.Decimal `json:"average_order_value"`
	Products          []ProductSales  `json:"products"`
}

// SalesReport covers completed orders, quick bills included, in Period.
type SalesReport struct {
	Period Period        `json:"period"`
	Sales  []BranchSales `json:"sales"`
}

// MaterialUsage totals raw material consumed by production.
type MaterialUsage struct {
	MaterialID      int64   `json:"material_id"`
	MaterialName    string  `json:"material_name"`
	Unit            string  `json:"unit"`
	TotalUsed       float64 `json:"total_used"`
	ProductionCount int     `json:"production_count"`
}

// MaterialUsageReport covers production consumption in Period.
type MaterialUsageReport struct {
	Period Period          `json:"period"`
	Usage  []MaterialUsage `json:"usage"`
}

// SalesFilter scopes the sales report. BranchID 0 means every branch.
type SalesFilter struct {
	BranchID int64
	From     time.Time
	To       time.Time
}
