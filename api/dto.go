/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. Invoices and items
  travel in their domain shape (camelCase wire names shared with the
  engine); everything the HTTP layer adds uses snake_case.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Sessions:
    CreateSessionRequest, SessionDTO, ItemEditorDTO

  Session operations:
    SubmitEditRequest, OpenItemEditorRequest, SubmitItemEditRequest,
    CloseItemEditorRequest

  Commit:
    CommitResponse, InvoiceFailureDTO, CommandFailureDTO

  Invoices:
    BulkDeleteRequest, DeleteOutcomeDTO, UpdateRecordDTO

  Samples:
    SampleDTO, LoadSampleRequest

VALIDATION:
  Validation is done in handlers and in the engine, not in DTOs.

SEE ALSO:
  - handlers.go: Uses these types
  - invoice/types.go: Invoice, Item, PendingChange, UpdateCommand
*/
package api

import (
	"errors"
	"time"

	"github.com/warp/invoice-engine/bulkedit"
	"github.com/warp/invoice-engine/invoice"
	"github.com/warp/invoice-engine/store/sqlite"
)

// =============================================================================
// SESSIONS
// =============================================================================

// CreateSessionRequest starts a bulk-edit session over stored invoices.
type CreateSessionRequest struct {
	InvoiceIDs []string `json:"invoice_ids"`
}

// SessionDTO is the observable state of a session.
type SessionDTO struct {
	ID         string                  `json:"id"`
	State      string                  `json:"state"`
	Invoices   []invoice.Invoice       `json:"invoices"`
	Pending    []invoice.PendingChange `json:"pending"`
	ItemEditor *ItemEditorDTO          `json:"item_editor,omitempty"`
	Violations []string                `json:"violations,omitempty"`
}

// ItemEditorDTO is the open item working set.
type ItemEditorDTO struct {
	InvoiceID invoice.ID     `json:"invoice_id"`
	Items     []invoice.Item `json:"items"`
}

// SubmitEditRequest records one pending scalar edit.
type SubmitEditRequest struct {
	InvoiceID string `json:"invoice_id"`
	Field     string `json:"field"`
	Value     string `json:"value"`
}

// OpenItemEditorRequest opens the item editor for one invoice.
type OpenItemEditorRequest struct {
	InvoiceID string `json:"invoice_id"`
}

// SubmitItemEditRequest replaces one attribute of one row.
type SubmitItemEditRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// CloseItemEditorRequest closes the editor, folding it when Save is set.
type CloseItemEditorRequest struct {
	Save bool `json:"save"`
}

func toSessionDTO(id string, s *bulkedit.Session) SessionDTO {
	dto := SessionDTO{
		ID:       id,
		State:    s.State().String(),
		Invoices: s.Invoices(),
		Pending:  s.Pending(),
	}
	if dto.Pending == nil {
		dto.Pending = []invoice.PendingChange{}
	}
	if invoiceID, items, ok := s.ItemEditor(); ok {
		dto.ItemEditor = &ItemEditorDTO{InvoiceID: invoiceID, Items: items}
	}
	for _, v := range s.LastViolations() {
		dto.Violations = append(dto.Violations, v.String())
	}
	return dto
}

// =============================================================================
// COMMIT
// =============================================================================

// CommitResponse is the result of POST /api/sessions/{id}/commit.
//
//	200 {ok: true, commands}
//	422 {ok: false, violations}
//	502 {ok: false, failures, commands}
type CommitResponse struct {
	OK         bool                    `json:"ok"`
	Violations []string                `json:"violations,omitempty"`
	Failures   []InvoiceFailureDTO     `json:"failures,omitempty"`
	Commands   []invoice.UpdateCommand `json:"commands,omitempty"`
}

// InvoiceFailureDTO reports an invoice whose commands did not all apply.
type InvoiceFailureDTO struct {
	InvoiceID invoice.ID              `json:"invoice_id"`
	Applied   []invoice.UpdateCommand `json:"applied"`
	Failed    []CommandFailureDTO     `json:"failed"`
}

// CommandFailureDTO is one command that did not apply.
type CommandFailureDTO struct {
	invoice.UpdateCommand
	Error   string `json:"error"`
	Skipped bool   `json:"skipped"`
}

func toInvoiceFailureDTOs(outcomes []bulkedit.InvoiceOutcome) []InvoiceFailureDTO {
	out := make([]InvoiceFailureDTO, 0, len(outcomes))
	for _, o := range outcomes {
		dto := InvoiceFailureDTO{
			InvoiceID: o.InvoiceID,
			Applied:   o.Applied,
			Failed:    make([]CommandFailureDTO, len(o.Failed)),
		}
		if dto.Applied == nil {
			dto.Applied = []invoice.UpdateCommand{}
		}
		for i, f := range o.Failed {
			dto.Failed[i] = CommandFailureDTO{
				UpdateCommand: f.Command,
				Error:         f.Err.Error(),
				Skipped:       errors.Is(f.Err, bulkedit.ErrSkipped),
			}
		}
		out = append(out, dto)
	}
	return out
}

// =============================================================================
// INVOICES
// =============================================================================

// BulkDeleteRequest deletes several invoices.
type BulkDeleteRequest struct {
	IDs []string `json:"ids"`
}

// DeleteOutcomeDTO is the result of deleting one invoice.
type DeleteOutcomeDTO struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
	Error   string `json:"error,omitempty"`
}

// UpdateRecordDTO is one row of an invoice's audit log.
type UpdateRecordDTO struct {
	ID        string `json:"id"`
	InvoiceID string `json:"invoice_id"`
	Field     string `json:"field"`
	OldValue  string `json:"old_value"`
	NewValue  string `json:"new_value"`
	AppliedAt string `json:"applied_at"`
}

func toUpdateRecordDTO(r sqlite.UpdateRecord) UpdateRecordDTO {
	return UpdateRecordDTO{
		ID:        r.ID,
		InvoiceID: string(r.InvoiceID),
		Field:     string(r.Field),
		OldValue:  r.OldValue,
		NewValue:  r.NewValue,
		AppliedAt: r.AppliedAt.Format(time.RFC3339Nano),
	}
}

// =============================================================================
// SAMPLES
// =============================================================================

// SampleDTO describes a sample data set.
type SampleDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Invoices    int    `json:"invoices"`
}

// LoadSampleRequest selects a sample data set.
type LoadSampleRequest struct {
	SampleID string `json:"sample_id"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}
