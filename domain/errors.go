package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy shared by every core package. Services wrap these with
// fmt.Errorf("%w: ...") so callers can branch with errors.Is.
var (
	ErrNotFound               = errors.New("not found")
	ErrValidation             = errors.New("validation failed")
	ErrInsufficientStock      = errors.New("insufficient stock")
	ErrHasSalesHistory        = errors.New("product has sales history")
	ErrUnauthorized           = errors.New("unauthorized")
	ErrInvalidStateTransition = errors.New("invalid state transition")
)

// PartialSaleError reports that a multi-item sale could not complete all of
// its stock movements. The transaction is rolled back before this surfaces,
// so no partial sale is ever observable.
type PartialSaleError struct {
	ProductID string
	Quantity  int64
	Err       error
}

func (e *PartialSaleError) Error() string {
	return fmt.Sprintf("sale aborted: movement of %d unit(s) of product %s failed: %v", e.Quantity, e.ProductID, e.Err)
}

func (e *PartialSaleError) Unwrap() error { return e.Err }

// StateTransitionError pinpoints a rejected purchase-plan status change.
type StateTransitionError struct {
	From PlanStatus
	To   PlanStatus
}

func (e *StateTransitionError) Error() string {
	return fmt.Sprintf("cannot transition plan from %s to %s", e.From, e.To)
}

func (e *StateTransitionError) Unwrap() error { return ErrInvalidStateTransition }
