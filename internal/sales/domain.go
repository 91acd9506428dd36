package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sweetline/sweetline/internal/shared"
)

// DefaultCustomerName is used when a quick bill names no customer.
const DefaultCustomerName = "Walk-in Customer"

// ============================================================================
// ORDER
// ============================================================================

// OrderStatus enumerates order lifecycle states.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusCompleted  OrderStatus = "completed"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// IsValid reports whether s is a known status.
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPending, OrderStatusProcessing, OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusCancelled
}

// CanTransitionTo reports whether s may move to next.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if !s.IsValid() || s.IsTerminal() || !next.IsValid() {
		return false
	}
	switch next {
	case OrderStatusProcessing:
		return s == OrderStatusPending
	case OrderStatusCompleted, OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// Order is a sale against a branch. Quick bills are created completed.
type Order struct {
	ID               int64           `json:"id"`
	BranchID         int64           `json:"branch_id"`
	BranchName       string          `json:"branch_name,omitempty"`
	CustomerName     string          `json:"customer_name"`
	CustomerPhone    string          `json:"customer_phone,omitempty"`
	CustomerLocation string          `json:"customer_location,omitempty"`
	DeliveryDate     *time.Time      `json:"delivery_date,omitempty"`
	PackingCharges   decimal.Decimal `json:"packing_charges"`
	AdvancePaid      decimal.Decimal `json:"advance_paid"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Status           OrderStatus     `json:"status"`
	IsQuickBill      bool            `json:"is_quick_bill"`
	CreatedBy        int64           `json:"created_by"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Items            []OrderItem     `json:"items"`
}

// OrderItem is one line of an order. Quantity is what was fulfilled; it only
// differs from RequestedQuantity on a partially fulfilled line.
type OrderItem struct {
	ID                 int64           `json:"id"`
	OrderID            int64           `json:"order_id"`
	LineNo             int             `json:"line_no"`
	SweetID            int64           `json:"sweet_id"`
	SweetName          string          `json:"sweet_name,omitempty"`
	RequestedQuantity  float64         `json:"requested_quantity"`
	Quantity           float64         `json:"quantity"`
	UnitPrice          decimal.Decimal `json:"unit_price"`
	Total              decimal.Decimal `json:"total"`
	PartialFulfillment bool            `json:"partial_fulfillment"`
}

// LineInput is a requested line.
type LineInput struct {
	SweetID  int64
	Quantity float64
}

// QuickBillInput describes a point of sale bill.
type QuickBillInput struct {
	BranchID       int64
	CustomerName   string
	Items          []LineInput
	CreatedBy      int64
	IdempotencyKey string
}

// OrderInput describes a standard order.
type OrderInput struct {
	BranchID         int64
	CustomerName     string
	CustomerPhone    string
	CustomerLocation string
	DeliveryDate     time.Time
	PackingCharges   decimal.Decimal
	AdvancePaid      decimal.Decimal
	Status           OrderStatus
	Items            []LineInput
	CreatedBy        int64
}

// ListFilter narrows order listings.
type ListFilter struct {
	BranchID  int64
	Status    OrderStatus
	QuickBill *bool
	From      time.Time
	To        time.Time
	Page      shared.Page
}

// ============================================================================
// FULFILMENT RESULT
// ============================================================================

// Outcome summarises how an allocating operation went.
type Outcome string

const (
	OutcomeFulfilled             Outcome = "fulfilled"
	OutcomeFulfilledWithWarnings Outcome = "fulfilled_with_warnings"
)

// StockWarning describes one line that could not be fully served.
type StockWarning struct {
	SweetID           int64   `json:"sweet_id"`
	SweetName         string  `json:"sweet_name"`
	RequestedQuantity float64 `json:"requested_quantity"`
	AvailableStock    float64 `json:"available_stock"`
	Shortfall         float64 `json:"shortfall"`
}

// Warnings is the warning block of a partially fulfilled order.
type Warnings struct {
	Message           string         `json:"message"`
	InsufficientStock []StockWarning `json:"insufficient_stock"`
}

// Result is returned by operations that allocate branch stock.
type Result struct {
	Order    Order     `json:"data"`
	Outcome  Outcome   `json:"outcome,omitempty"`
	Warnings *Warnings `json:"warnings,omitempty"`
}

func newResult(order Order, shortages []StockWarning) Result {
	if len(shortages) == 0 {
		return Result{Order: order, Outcome: OutcomeFulfilled}
	}
	return Result{
		Order:   order,
		Outcome: OutcomeFulfilledWithWarnings,
		Warnings: &Warnings{
			Message:           "Some items could not be fully served from branch stock",
			InsufficientStock: shortages,
		},
	}
}
