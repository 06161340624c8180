package production

import (
	"errors"
	"fmt"

	"feedmill-backend/internal/models"

	"github.com/shopspring/decimal"
)

var (
	ErrBatchNotFound   = errors.New("production batch not found")
	ErrFormulaNotFound = errors.New("formula not found")
)

// ValidationError rejects malformed input before anything is written.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// StateError reports a transition that is not in the state table, e.g.
// completing an already completed batch.
type StateError struct {
	From models.BatchStatus
	To   models.BatchStatus
}

func (e *StateError) Error() string {
	return fmt.Sprintf("cannot move batch from %s to %s", e.From, e.To)
}

// OverAllocationError means the packaging plan tries to pack more weight than
// the batch actually yielded (beyond the tolerance).
type OverAllocationError struct {
	ActualYield   decimal.Decimal
	PlannedWeight decimal.Decimal
}

func (e *OverAllocationError) Error() string {
	return fmt.Sprintf("packaging plan totals %s but actual yield is only %s", e.PlannedWeight, e.ActualYield)
}
