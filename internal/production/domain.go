package production

import (
	"fmt"
	"strings"
	"time"

	"github.com/sweetline/sweetline/internal/shared"
)

// Production is an immutable record of a finished batch.
type Production struct {
	ID               int64     `json:"id"`
	SweetID          int64     `json:"sweet_id"`
	SweetName        string    `json:"sweet_name,omitempty"`
	QuantityProduced float64   `json:"quantity_produced"`
	Wastage          float64   `json:"wastage"`
	ProductionDate   time.Time `json:"production_date"`
	Notes            string    `json:"notes,omitempty"`
	CreatedBy        int64     `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
}

// ProduceInput carries a production request.
type ProduceInput struct {
	SweetID          int64
	QuantityProduced float64
	Wastage          float64
	ProductionDate   time.Time
	Notes            string
	CreatedBy        int64
}

// ListFilter narrows production listings.
type ListFilter struct {
	SweetID int64
	From    time.Time
	To      time.Time
	Page    shared.Page
}

// ShortageError names every raw material that cannot cover a batch.
type ShortageError struct {
	SweetID int64
	Items   []shared.InsufficientStockError
}

func (e *ShortageError) Error() string {
	parts := make([]string, 0, len(e.Items))
	for _, item := range e.Items {
		parts = append(parts, fmt.Sprintf("material %d short by %g", item.ID, item.Shortfall()))
	}
	return fmt.Sprintf("insufficient raw materials for sweet %d: %s", e.SweetID, strings.Join(parts, ", "))
}

// Is lets errors.Is(err, shared.ErrInsufficientStock) match.
func (e *ShortageError) Is(target error) bool {
	return target == shared.ErrInsufficientStock
}

// Shortages exposes the individual shortfalls.
func (e *ShortageError) Shortages() []shared.InsufficientStockError {
	return e.Items
}
