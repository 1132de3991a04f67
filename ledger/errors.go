/*
errors.go - Centralized error types for the ledger

ERROR CATEGORIES:
  1. Validation errors - malformed records rejected at the boundary
  2. Payment errors - overpayment, non-positive amounts, closed sales
  3. Store errors - missing or duplicate records

USAGE:
  if errors.Is(err, ledger.ErrOverpayment) {
      var op *ledger.OverpaymentError
      errors.As(err, &op) // op.Remaining, op.Offered
  }
*/
package ledger

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when a record fails boundary validation.
	ErrValidation = errors.New("validation failed")

	// ErrOverpayment is returned when a payment exceeds the remaining balance.
	ErrOverpayment = errors.New("payment exceeds remaining amount")

	// ErrInvalidAmount is returned for zero or negative payment amounts.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrSaleAlreadyPaid is returned when appending to a closed sale.
	ErrSaleAlreadyPaid = errors.New("sale already paid")

	// ErrOrderNotPending is returned when converting or moving a closed order.
	ErrOrderNotPending = errors.New("order is not pending")

	// ErrNotFound is returned when a referenced record doesn't exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateID is returned when a record with the same ID already exists.
	ErrDuplicateID = errors.New("duplicate id")

	// ErrInvalidPeriod is returned when a period ends before it starts.
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field of a rejected record.
type ValidationError struct {
	Record string // "sale", "payment", "movement", "order"
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s %s", e.Record, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// OverpaymentError provides details about a rejected payment.
type OverpaymentError struct {
	SaleID    SaleID
	Remaining decimal.Decimal
	Offered   decimal.Decimal
}

func (e *OverpaymentError) Error() string {
	return fmt.Sprintf("payment of %s exceeds remaining %s on sale %s",
		e.Offered.String(), e.Remaining.String(), e.SaleID)
}

func (e *OverpaymentError) Unwrap() error {
	return ErrOverpayment
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrInvalidPeriod)
}

// IsConflict returns true if the request conflicts with recorded state.
func IsConflict(err error) bool {
	return errors.Is(err, ErrOverpayment) ||
		errors.Is(err, ErrSaleAlreadyPaid) ||
		errors.Is(err, ErrOrderNotPending) ||
		errors.Is(err, ErrDuplicateID)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
