package shared

import "errors"

// Outcomes reported to a StockObserver.
const (
	OutcomeOK           = "ok"
	OutcomeWarning      = "warning"
	OutcomeInsufficient = "insufficient"
	OutcomeRejected     = "rejected"
	OutcomeError        = "error"
)

// StockObserver receives the outcome of each stock-mutating operation.
type StockObserver interface {
	ObserveStockOperation(operation, outcome string)
}

// NopStockObserver discards observations.
type NopStockObserver struct{}

// ObserveStockOperation implements StockObserver.
func (NopStockObserver) ObserveStockOperation(string, string) {}

// OutcomeOf classifies err for a StockObserver.
func OutcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, ErrInsufficientStock):
		return OutcomeInsufficient
	case errors.Is(err, ErrInvalidStateTransition),
		errors.Is(err, ErrMissingReason),
		errors.Is(err, ErrInvalidQuantity),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrIdempotencyConflict):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}
