package shared

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidQuantity indicates a quantity that is not positive or does not
	// fit the stock column scale.
	ErrInvalidQuantity = errors.New("quantity must be greater than zero with at most 3 decimal places")
	// ErrInsufficientStock matches every *InsufficientStockError.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrInvalidStateTransition indicates the entity is not in a state that allows the action.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrMissingReason occurs when a rejection carries no reason.
	ErrMissingReason = errors.New("reason is required")
	// ErrValidation wraps request validation failures.
	ErrValidation = errors.New("validation failed")
)

// StockKind names the ledger pool an error refers to.
type StockKind string

const (
	StockKindRawMaterial  StockKind = "raw_material"
	StockKindFinishedGood StockKind = "finished_good"
	StockKindBranchStock  StockKind = "branch_stock"
)

// InsufficientStockError reports a debit that would take a row below zero.
type InsufficientStockError struct {
	Kind      StockKind `json:"resource_kind"`
	ID        int64     `json:"id"`
	BranchID  int64     `json:"branch_id,omitempty"`
	Requested float64   `json:"requested"`
	Available float64   `json:"available"`
}

func (e *InsufficientStockError) Error() string {
	if e.Kind == StockKindBranchStock {
		return fmt.Sprintf("insufficient %s for item %d at branch %d: requested %g, available %g", e.Kind, e.ID, e.BranchID, e.Requested, e.Available)
	}
	return fmt.Sprintf("insufficient %s for item %d: requested %g, available %g", e.Kind, e.ID, e.Requested, e.Available)
}

// Is lets errors.Is(err, ErrInsufficientStock) match.
func (e *InsufficientStockError) Is(target error) bool {
	return target == ErrInsufficientStock
}

// Shortfall returns how much stock is missing.
func (e *InsufficientStockError) Shortfall() float64 {
	return e.Requested - e.Available
}

// InsufficientStockDetails extracts every insufficient stock entry carried by err.
func InsufficientStockDetails(err error) []InsufficientStockError {
	var multi interface{ Shortages() []InsufficientStockError }
	if errors.As(err, &multi) {
		return multi.Shortages()
	}
	var single *InsufficientStockError
	if errors.As(err, &single) {
		return []InsufficientStockError{*single}
	}
	return nil
}
