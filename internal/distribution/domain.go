package distribution

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sweetline/sweetline/internal/shared"
)

// Status enumerates distribution lifecycle states.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// IsValid reports whether s is a known status.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transition is allowed.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// CanApprove checks if the distribution can be approved.
func (s Status) CanApprove() bool {
	return s.IsValid() && !s.IsTerminal()
}

// CanReject checks if the distribution can be rejected.
func (s Status) CanReject() bool {
	return s.IsValid() && !s.IsTerminal()
}

// CanDelete checks if the distribution can be deleted.
func (s Status) CanDelete() bool {
	return s.IsValid() && !s.IsTerminal()
}

// Distribution moves finished goods from the central store to a branch once
// approved.
type Distribution struct {
	ID           int64           `json:"id"`
	ToBranchID   int64           `json:"to_branch_id"`
	BranchName   string          `json:"branch_name,omitempty"`
	SweetID      int64           `json:"sweet_id"`
	SweetName    string          `json:"sweet_name,omitempty"`
	Quantity     float64         `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	DispatchDate time.Time       `json:"dispatch_date"`
	Status       Status          `json:"status"`
	Notes        string          `json:"notes,omitempty"`
	Reason       *string         `json:"reason"`
	CreatedBy    int64           `json:"created_by"`
	ApprovedBy   *int64          `json:"approved_by"`
	ApprovedAt   *time.Time      `json:"approved_at"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Value returns unit price × quantity.
func (d Distribution) Value() decimal.Decimal {
	return d.UnitPrice.Mul(decimal.NewFromFloat(d.Quantity))
}

// CreateInput describes a new distribution request.
type CreateInput struct {
	ToBranchID   int64
	SweetID      int64
	Quantity     float64
	DispatchDate time.Time
	Notes        string
	CreatedBy    int64
}

// ListFilter narrows distribution listings.
type ListFilter struct {
	Status   Status
	BranchID int64
	From     time.Time
	To       time.Time
	Page     shared.Page
}

// Summary aggregates a set of distributions.
type Summary struct {
	TotalDistributions int             `json:"total_distributions"`
	Pending            int             `json:"pending"`
	Approved           int             `json:"approved"`
	Rejected           int             `json:"rejected"`
	TotalQuantity      float64         `json:"total_quantity"`
	TotalValue         decimal.Decimal `json:"total_value"`
}

// GroupTotal aggregates distributions sharing a branch or product.
type GroupTotal struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	TotalDistributions int             `json:"total_distributions"`
	TotalQuantity      float64         `json:"total_quantity"`
	TotalValue         decimal.Decimal `json:"total_value"`
}

// History is the reporting view over distributions.
type History struct {
	Summary   Summary        `json:"summary"`
	ByBranch  []GroupTotal   `json:"by_branch"`
	ByProduct []GroupTotal   `json:"by_product"`
	Items     []Distribution `json:"history"`
}
