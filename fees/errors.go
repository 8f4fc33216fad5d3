/*
errors.go - Centralized error types for the fee engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Callers should test with errors.Is() and render a single human-readable
  message; the engine never surfaces raw stack traces.

ERROR CATEGORIES:
  1. Validation errors - Bulk generation preconditions (checked before any
     invoice is created; no partial batch ever results from one)
  2. Aggregation errors - Strict-mode input problems
  3. Persistence errors - Opaque failures from the external invoice store

USAGE:
  if errors.Is(err, fees.ErrMissingDueDate) {
      // ask the user for a due date before generating
  }

SEE ALSO:
  - generate.go: Validation that produces these errors
  - aggregate.go: Strict aggregation checks
*/
package fees

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrStructureNotFound is returned when a structure id does not resolve,
	// or the structure has no entry for the requested term.
	ErrStructureNotFound = errors.New("fee structure not found")

	// ErrInvalidGrade is returned when the grade selection is empty or
	// references an unknown grade.
	ErrInvalidGrade = errors.New("invalid grade selection")

	// ErrInvalidBucketSelection is returned when the bucket selection is
	// empty or not a subset of the resolved term's buckets.
	ErrInvalidBucketSelection = errors.New("invalid fee bucket selection")

	// ErrMissingDueDate is returned when generation is attempted without a
	// due date. This is a precondition, not a warning.
	ErrMissingDueDate = errors.New("due date is required")

	// ErrAggregationInputMalformed is returned by strict aggregation when an
	// item references a bucket id not declared anywhere in the input.
	ErrAggregationInputMalformed = errors.New("aggregation input malformed")

	// ErrPersistenceFailure wraps opaque failures from the external invoice
	// store. The whole batch failed; the caller decides whether to retry it.
	ErrPersistenceFailure = errors.New("persistence failure")

	// ErrGradeNotFound is returned by grade lookups for unknown ids.
	ErrGradeNotFound = errors.New("grade not found")

	// ErrInvoiceNotFound is returned by invoice lookups for unknown ids.
	ErrInvoiceNotFound = errors.New("invoice not found")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// BucketSelectionError reports which selected bucket ids are not part of the
// resolved term.
type BucketSelectionError struct {
	Term    Term
	Unknown []BucketID
}

func (e *BucketSelectionError) Error() string {
	return fmt.Sprintf("bucket selection invalid for %s: unknown buckets %v", e.Term, e.Unknown)
}

func (e *BucketSelectionError) Unwrap() error {
	return ErrInvalidBucketSelection
}

// GradeSelectionError reports which grade ids did not resolve.
type GradeSelectionError struct {
	Unknown []GradeID
}

func (e *GradeSelectionError) Error() string {
	return fmt.Sprintf("grade selection invalid: unknown grades %v", e.Unknown)
}

func (e *GradeSelectionError) Unwrap() error {
	return ErrInvalidGrade
}

// MalformedItemError reports an item referencing an undeclared bucket.
type MalformedItemError struct {
	RecordID string
	BucketID BucketID
}

func (e *MalformedItemError) Error() string {
	return fmt.Sprintf("record %s: item references undeclared bucket %q", e.RecordID, e.BucketID)
}

func (e *MalformedItemError) Unwrap() error {
	return ErrAggregationInputMalformed
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsValidationError returns true if the error is due to invalid caller input.
// Validation errors are detected before any mutation.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrStructureNotFound) ||
		errors.Is(err, ErrInvalidGrade) ||
		errors.Is(err, ErrInvalidBucketSelection) ||
		errors.Is(err, ErrMissingDueDate)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrStructureNotFound) ||
		errors.Is(err, ErrGradeNotFound) ||
		errors.Is(err, ErrInvoiceNotFound)
}
