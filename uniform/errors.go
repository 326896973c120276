/*
errors.go - Centralized error types for the uniform engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  The API layer maps these onto HTTP status codes; the core never returns
  bare strings.

ERROR CATEGORIES:
  1. Validation errors - caller must correct the input, never retried
  2. Stock errors - insufficient stock, transaction conflicts
  3. Lookup errors - referenced documents absent
  4. Dual-write errors - one half of a roster saga failed

USAGE:
  if errors.Is(err, uniform.ErrInsufficientStock) {
      var stockErr *uniform.InsufficientStockError
      errors.As(err, &stockErr)
      // offer stockErr.CurrentStock to the caller
  }

SEE ALSO:
  - stock.go: produces stock errors
  - issue.go: produces validation errors
  - roster.go: produces dual-write errors
*/
package uniform

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is returned when input is malformed or missing required
	// fields. The caller must correct and resubmit.
	ErrValidation = errors.New("validation failed")

	// ErrInsufficientStock is returned when a deduction would overdraw a
	// size's quantity. Nothing is mutated when this is returned.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrTransactionConflict is returned when the store detects concurrent
	// modification. The stock ledger retries these internally a bounded
	// number of times before surfacing.
	ErrTransactionConflict = errors.New("transaction conflict")

	// ErrNotFound is the generic missing-document error.
	ErrNotFound = errors.New("not found")

	// ErrSchoolNotFound is returned when a referenced school is absent.
	ErrSchoolNotFound = errors.New("school not found")

	// ErrStudentNotFound is returned when a referenced student is absent.
	ErrStudentNotFound = errors.New("student not found")

	// ErrBatchNotFound is returned when no batch carries the uniform.
	ErrBatchNotFound = errors.New("batch not found")

	// ErrDualWrite is returned when one half of a roster dual-write failed
	// after the other succeeded, leaving the two representations
	// inconsistent. The caller should reconcile rather than proceed.
	ErrDualWrite = errors.New("dual write inconsistency")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// InsufficientStockError reports how much stock actually remains so the
// caller can offer a smaller quantity or a different size.
type InsufficientStockError struct {
	UniformID    UniformID
	Size         string
	Requested    int
	CurrentStock int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s size %s: requested %d, have %d",
		e.UniformID, e.Size, e.Requested, e.CurrentStock)
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// DualWriteError reports which half of a roster saga completed and which
// failed, so the caller can attempt reconciliation.
type DualWriteError struct {
	Op        string // "add-student", "delete-student"
	Completed string // the write that succeeded
	Failed    string // the write that did not
	Err       error
}

func (e *DualWriteError) Error() string {
	return fmt.Sprintf("%s: %s succeeded but %s failed: %v", e.Op, e.Completed, e.Failed, e.Err)
}

func (e *DualWriteError) Unwrap() error { return ErrDualWrite }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionConflict)
}

// IsClientError returns true if the error is due to invalid client input or
// a recoverable condition the client can act on.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInsufficientStock)
}

// IsNotFound returns true if the error indicates a missing document.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrSchoolNotFound) ||
		errors.Is(err, ErrStudentNotFound) ||
		errors.Is(err, ErrBatchNotFound)
}
