package returns

import (
	"time"

	"github.com/sweetline/sweetline/internal/shared"
)

// Return is an immutable record of goods handed back to a branch.
type Return struct {
	ID         int64     `json:"id"`
	BranchID   int64     `json:"branch_id"`
	BranchName string    `json:"branch_name,omitempty"`
	SweetID    int64     `json:"sweet_id"`
	SweetName  string    `json:"sweet_name,omitempty"`
	Quantity   float64   `json:"quantity"`
	Reason     string    `json:"reason"`
	ReturnDate time.Time `json:"return_date"`
	CreatedBy  int64     `json:"created_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateInput carries a return request.
type CreateInput struct {
	BranchID   int64
	SweetID    int64
	Quantity   float64
	Reason     string
	ReturnDate time.Time
	CreatedBy  int64
}

// ListFilter narrows return listings.
type ListFilter struct {
	BranchID int64
	From     time.Time
	To       time.Time
	Page     shared.Page
}
