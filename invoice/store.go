/*
store.go - Persistence interfaces for invoices

PURPOSE:
  Defines the boundary between the bulk-edit engine and whatever stores
  invoices. The engine only ever needs Updater; the HTTP surface and the
  selection screen use the full Store.

UPDATE CONTRACT:
  UpdateInvoice receives a partial field set for ONE invoice. The engine
  calls it once per atomic update command, so in practice the map has a
  single entry. Implementations must reject unknown or read-only fields
  with ErrUnknownField / ErrReadOnlyField and a missing invoice with
  ErrInvoiceNotFound.

IMPLEMENTATIONS:
  - invoice/store/memory.go: in-memory, for tests and development
  - store/sqlite/sqlite.go: SQLite with an append-only update audit log
*/
package invoice

import "context"

// Updater is the persistence primitive used by the commit stage.
type Updater interface {
	UpdateInvoice(ctx context.Context, id ID, fields map[Field]string) error
}

// Store is the full invoice persistence interface.
type Store interface {
	Updater

	// ListInvoices returns all invoices in creation order.
	ListInvoices(ctx context.Context) ([]Invoice, error)

	// GetInvoice returns the invoice or ErrInvoiceNotFound.
	GetInvoice(ctx context.Context, id ID) (*Invoice, error)

	// CreateInvoice stores a new invoice. Fails with ErrInvoiceExists.
	CreateInvoice(ctx context.Context, inv Invoice) error

	// DeleteInvoice removes the invoice and its items.
	DeleteInvoice(ctx context.Context, id ID) error
}

// ValidateUpdate checks a partial field set against the update contract.
func ValidateUpdate(id ID, fields map[Field]string) error {
	for f := range fields {
		if f == FieldID || f == FieldItems {
			return &FieldError{InvoiceID: id, Field: f, Err: ErrReadOnlyField}
		}
		if !f.IsScalar() {
			return &FieldError{InvoiceID: id, Field: f, Err: ErrUnknownField}
		}
	}
	return nil
}
