/*
errors.go - Centralized error kinds for the procurement core

PURPOSE:
  All error kinds in one place. Every repository and workflow operation
  returns one of these kinds so callers can branch on errors.Is without
  string matching.

ERROR CATEGORIES:
  1. Validation errors  - malformed or missing input
  2. State errors       - illegal transition, non-editable aggregate
  3. Reference errors   - missing or duplicate records
  4. Budget errors      - allocation invariant violations
  5. Storage errors     - constraint backstops and fatal engine failures

USAGE:
  if errors.Is(err, procure.ErrInvalidTransition) { ... }

  var itErr *procure.InvalidTransitionError
  if errors.As(err, &itErr) {
      fmt.Println(itErr.From, itErr.To)
  }

SEE ALSO:
  - statemachine.go: Produces InvalidTransitionError
  - workflow: Wraps these with operation context
*/
package procure

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when a required field is missing or malformed.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a status change is not in the
	// legal successor set of the current status.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrNotEditable is returned when a mutation is attempted on an
	// aggregate that is no longer in draft.
	ErrNotEditable = errors.New("aggregate is not editable")

	// ErrNotFound is returned when an id does not resolve to a record.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateReference is returned on unique-constraint conflicts,
	// e.g. a duplicate vendor tax id or request number.
	ErrDuplicateReference = errors.New("duplicate reference")

	// ErrBudgetExceeded is returned when a reserve/consume would push
	// used + reserved past the allocation total, or a payment past the
	// contract value.
	ErrBudgetExceeded = errors.New("budget exceeded")

	// ErrVendorInUse is returned when deleting a vendor still referenced
	// by an active contract.
	ErrVendorInUse = errors.New("vendor referenced by active contract")

	// ErrConstraint is returned when a storage-level declarative constraint
	// fires that application checks did not catch. It signals a bug in the
	// first line of defense, not bad user input.
	ErrConstraint = errors.New("storage constraint violation")

	// ErrStorage is the unrecoverable kind: engine unreachable, disk full.
	// The core never retries these; retry policy belongs to the caller.
	ErrStorage = errors.New("storage failure")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidTransitionError reports an illegal status change.
type InvalidTransitionError struct {
	RequestID string
	From      Status
	To        Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition %s -> %s for request %s", e.From, e.To, e.RequestID)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// NotEditableError reports a mutation attempt on a non-draft aggregate.
type NotEditableError struct {
	RequestID string
	Status    Status
}

func (e *NotEditableError) Error() string {
	return fmt.Sprintf("request %s is %s and cannot be modified", e.RequestID, e.Status)
}

func (e *NotEditableError) Unwrap() error { return ErrNotEditable }

// BudgetExceededError reports an allocation shortfall.
type BudgetExceededError struct {
	Code      string
	Requested decimal.Decimal
	Remaining decimal.Decimal
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("budget %s exceeded: requested %s, remaining %s",
		e.Code, e.Requested, e.Remaining)
}

func (e *BudgetExceededError) Unwrap() error { return ErrBudgetExceeded }

// FieldError reports a validation failure on a specific field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *FieldError) Unwrap() error { return ErrValidation }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input
// rather than a system failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrNotEditable) ||
		errors.Is(err, ErrDuplicateReference) ||
		errors.Is(err, ErrBudgetExceeded) ||
		errors.Is(err, ErrVendorInUse)
}

// IsFatal returns true if the error indicates an unrecoverable storage failure.
func IsFatal(err error) bool {
	return errors.Is(err, ErrStorage)
}
