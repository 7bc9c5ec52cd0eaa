/*
errors.go - Centralized error types for the invoice domain

ERROR CATEGORIES:
  1. Lookup errors - invoice does not exist
  2. Field errors - edit targets a field that cannot be edited that way
  3. Store errors - persistence primitive failed

Engine-level failures (validation, partial persistence) live in the
bulkedit package and wrap these where relevant.
*/
package invoice

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvoiceNotFound is returned when a referenced invoice doesn't exist.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInvoiceExists is returned when creating an invoice whose ID is taken.
	ErrInvoiceExists = errors.New("invoice already exists")

	// ErrUnknownField is returned when a field name is not part of Invoice.
	ErrUnknownField = errors.New("unknown invoice field")

	// ErrReadOnlyField is returned for fields that cannot be edited as a
	// scalar: the identity and the item collection.
	ErrReadOnlyField = errors.New("field cannot be edited directly")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// FieldError carries the invoice and field an error refers to.
type FieldError struct {
	InvoiceID ID
	Field     Field
	Err       error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invoice %s: field %s: %v", e.InvoiceID, e.Field, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// NotFoundError wraps ErrInvoiceNotFound with the missing id.
func NotFoundError(id ID) error {
	return fmt.Errorf("%w: %s", ErrInvoiceNotFound, id)
}
