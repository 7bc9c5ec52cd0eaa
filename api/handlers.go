/*
handlers.go - HTTP API handlers for the invoice bulk editor

PURPOSE:
  Exposes the invoice store and the bulk-edit engine via REST API.
  Handles HTTP request/response and JSON serialization, and delegates
  every decision to the bulkedit.Session of the request.

ENDPOINTS:
  Invoices:
    GET    /api/invoices                   List invoices (selection screen)
    POST   /api/invoices                   Create invoice from JSON
    GET    /api/invoices/{id}              Get invoice
    DELETE /api/invoices/{id}              Delete invoice
    POST   /api/invoices/bulk-delete       Delete several invoices
    GET    /api/invoices/{id}/updates      Audit log of applied updates

  Bulk-edit sessions:
    POST   /api/sessions                   Start a session over invoice_ids
    GET    /api/sessions/{id}              Session state
    PUT    /api/sessions/{id}/edits        submitEdit
    POST   /api/sessions/{id}/items/open   openItemEditor
    POST   /api/sessions/{id}/items        addItemRow
    PUT    /api/sessions/{id}/items/{item} submitItemEdit
    DELETE /api/sessions/{id}/items/{item} deleteItemRow
    POST   /api/sessions/{id}/items/close  closeItemEditor
    POST   /api/sessions/{id}/commit       commit
    POST   /api/sessions/{id}/cancel       cancel (session removed)

ERROR HANDLING:
  Errors are returned as ErrorResponse JSON with an HTTP status derived
  from the engine's sentinels (see statusFor):
  - 400: malformed input, unknown/read-only field, invoice not in session
  - 404: invoice or session not found
  - 409: item editor state conflicts, commit in progress, duplicate id
  - 422: validation failure (commit)
  - 502: partial persistence failure (commit)
  - 500: anything else

SEE ALSO:
  - dto.go: Request/response data structures
  - sessions.go: Session registry
  - scenarios.go: Sample data loader
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/warp/invoice-engine/bulkedit"
	"github.com/warp/invoice-engine/factory"
	"github.com/warp/invoice-engine/invoice"
	"github.com/warp/invoice-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Store is the persistence the HTTP surface needs.
type Store interface {
	invoice.Store
	Reset(ctx context.Context) error
}

// auditLog is implemented by stores that keep an update audit trail.
type auditLog interface {
	ListUpdates(ctx context.Context, id invoice.ID, limit int) ([]sqlite.UpdateRecord, error)
}

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store               Store
	Factory             *factory.InvoiceFactory
	Sessions            *SessionRegistry
	Logger              *slog.Logger
	DispatchConcurrency int

	// Track currently loaded sample set
	currentSample string
}

// NewHandler creates a new handler with the given store.
func NewHandler(store Store, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Store:               store,
		Factory:             factory.NewInvoiceFactory(),
		Sessions:            NewSessionRegistry(),
		Logger:              logger,
		DispatchConcurrency: bulkedit.DefaultDispatchConcurrency,
	}
}

// =============================================================================
// INVOICE HANDLERS
// =============================================================================

// ListInvoices returns all invoices in stored order.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Store.ListInvoices(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}
	if invoices == nil {
		invoices = []invoice.Invoice{}
	}
	writeJSON(w, http.StatusOK, invoices)
}

// GetInvoice returns one invoice.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	inv, err := h.Store.GetInvoice(r.Context(), invoice.ID(chi.URLParam(r, "id")))
	if err != nil {
		writeDomainError(w, "Failed to get invoice", err)
		return
	}
	writeJSON(w, http.StatusOK, inv)
}

// CreateInvoice creates an invoice from its JSON representation.
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	inv, err := h.Factory.ParseInvoice(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid invoice", err)
		return
	}
	if err := h.Store.CreateInvoice(r.Context(), inv); err != nil {
		writeDomainError(w, "Failed to create invoice", err)
		return
	}
	writeJSON(w, http.StatusCreated, inv)
}

// DeleteInvoice deletes one invoice.
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.DeleteInvoice(r.Context(), invoice.ID(chi.URLParam(r, "id"))); err != nil {
		writeDomainError(w, "Failed to delete invoice", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// BulkDeleteInvoices deletes several invoices and reports each outcome.
func (h *Handler) BulkDeleteInvoices(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required", nil)
		return
	}

	outcomes := make([]DeleteOutcomeDTO, len(req.IDs))
	for i, id := range req.IDs {
		outcomes[i] = DeleteOutcomeDTO{ID: id, Deleted: true}
		if err := h.Store.DeleteInvoice(r.Context(), invoice.ID(id)); err != nil {
			outcomes[i].Deleted = false
			outcomes[i].Error = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, outcomes)
}

// ListInvoiceUpdates returns the audit log of one invoice.
func (h *Handler) ListInvoiceUpdates(w http.ResponseWriter, r *http.Request) {
	audit, ok := h.Store.(auditLog)
	if !ok {
		writeError(w, http.StatusNotImplemented, "Store keeps no audit log", nil)
		return
	}
	records, err := audit.ListUpdates(r.Context(), invoice.ID(chi.URLParam(r, "id")), 0)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list updates", err)
		return
	}
	dtos := make([]UpdateRecordDTO, len(records))
	for i, rec := range records {
		dtos[i] = toUpdateRecordDTO(rec)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// SESSION HANDLERS
// =============================================================================

// CreateSession starts a bulk-edit session over the requested invoices,
// in request order.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(req.InvoiceIDs) == 0 {
		writeError(w, http.StatusBadRequest, "invoice_ids is required", nil)
		return
	}

	invoices := make([]invoice.Invoice, 0, len(req.InvoiceIDs))
	for _, id := range req.InvoiceIDs {
		inv, err := h.Store.GetInvoice(r.Context(), invoice.ID(id))
		if err != nil {
			writeDomainError(w, "Failed to load invoice", err)
			return
		}
		invoices = append(invoices, *inv)
	}

	id := NewSessionID()
	s := bulkedit.NewSession(invoices, h.Store,
		bulkedit.WithLogger(h.Logger.With(slog.String("session_id", id))),
		bulkedit.WithConcurrency(h.DispatchConcurrency),
	)
	h.Sessions.Add(id, s)

	h.Logger.Info("bulk edit session started",
		slog.String("session_id", id),
		slog.Int("invoices", len(invoices)),
	)
	writeJSON(w, http.StatusCreated, toSessionDTO(id, s))
}

// GetSession returns the state of a session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, s, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(id, s))
}

// SubmitEdit records a pending scalar edit.
func (h *Handler) SubmitEdit(w http.ResponseWriter, r *http.Request) {
	id, s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SubmitEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := s.SubmitEdit(invoice.ID(req.InvoiceID), invoice.Field(req.Field), req.Value); err != nil {
		writeDomainError(w, "Failed to submit edit", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(id, s))
}

// OpenItemEditor opens the item editor for one invoice.
func (h *Handler) OpenItemEditor(w http.ResponseWriter, r *http.Request) {
	id, s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req OpenItemEditorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := s.OpenItemEditor(invoice.ID(req.InvoiceID)); err != nil {
		writeDomainError(w, "Failed to open item editor", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(id, s))
}

// AddItemRow appends a default row and returns it.
func (h *Handler) AddItemRow(w http.ResponseWriter, r *http.Request) {
	_, s, ok := h.session(w, r)
	if !ok {
		return
	}
	item, err := s.AddItemRow()
	if err != nil {
		writeDomainError(w, "Failed to add item row", err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// SubmitItemEdit replaces one attribute of one row.
func (h *Handler) SubmitItemEdit(w http.ResponseWriter, r *http.Request) {
	id, s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req SubmitItemEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	itemID := invoice.ItemID(chi.URLParam(r, "itemId"))
	if err := s.SubmitItemEdit(itemID, invoice.ItemField(req.Field), req.Value); err != nil {
		writeDomainError(w, "Failed to edit item", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(id, s))
}

// DeleteItemRow removes one row.
func (h *Handler) DeleteItemRow(w http.ResponseWriter, r *http.Request) {
	id, s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.DeleteItemRow(invoice.ItemID(chi.URLParam(r, "itemId"))); err != nil {
		writeDomainError(w, "Failed to delete item row", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(id, s))
}

// CloseItemEditor closes the item editor, saving it when requested.
func (h *Handler) CloseItemEditor(w http.ResponseWriter, r *http.Request) {
	id, s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req CloseItemEditorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := s.CloseItemEditor(req.Save); err != nil {
		writeDomainError(w, "Failed to close item editor", err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionDTO(id, s))
}

// Commit validates and dispatches the session's pending changes.
func (h *Handler) Commit(w http.ResponseWriter, r *http.Request) {
	_, s, ok := h.session(w, r)
	if !ok {
		return
	}

	result, err := s.Commit(r.Context())

	var (
		vf *bulkedit.ValidationFailure
		pf *bulkedit.PersistenceFailure
	)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, CommitResponse{OK: true, Commands: result.Commands})
	case errors.As(err, &vf):
		writeJSON(w, http.StatusUnprocessableEntity, CommitResponse{OK: false, Violations: vf.Messages()})
	case errors.As(err, &pf):
		resp := CommitResponse{OK: false, Failures: toInvoiceFailureDTOs(pf.Invoices)}
		if result != nil {
			resp.Commands = result.Commands
		}
		writeJSON(w, http.StatusBadGateway, resp)
	default:
		writeDomainError(w, "Failed to commit", err)
	}
}

// CancelSession discards the session's pending state and removes it.
func (h *Handler) CancelSession(w http.ResponseWriter, r *http.Request) {
	id, s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.Cancel(); err != nil {
		writeDomainError(w, "Failed to cancel session", err)
		return
	}
	h.Sessions.Remove(id)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, *bulkedit.Session, bool) {
	id := chi.URLParam(r, "id")
	s, ok := h.Sessions.Get(id)
	if !ok {
		writeErrorCode(w, http.StatusNotFound, "Session not found", "SESSION_NOT_FOUND", nil)
		return "", nil, false
	}
	return id, s, true
}

// ResetDatabase clears all data and every live session.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.Sessions.Clear()
	h.currentSample = ""

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	writeErrorCode(w, status, message, "", err)
}

func writeErrorCode(w http.ResponseWriter, status int, message, code string, err error) {
	resp := ErrorResponse{Error: message, Code: code}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine and store errors onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	status, code := statusFor(err)
	writeErrorCode(w, status, message, code, err)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, invoice.ErrInvoiceNotFound):
		return http.StatusNotFound, "INVOICE_NOT_FOUND"
	case errors.Is(err, invoice.ErrUnknownField):
		return http.StatusBadRequest, "UNKNOWN_FIELD"
	case errors.Is(err, invoice.ErrReadOnlyField):
		return http.StatusBadRequest, "READ_ONLY_FIELD"
	case errors.Is(err, bulkedit.ErrNotInSession):
		return http.StatusBadRequest, "NOT_IN_SESSION"
	case errors.Is(err, factory.ErrInvalidInvoice):
		return http.StatusBadRequest, "INVALID_INVOICE"
	case errors.Is(err, invoice.ErrInvoiceExists):
		return http.StatusConflict, "INVOICE_EXISTS"
	case errors.Is(err, bulkedit.ErrItemEditorClosed):
		return http.StatusConflict, "ITEM_EDITOR_CLOSED"
	case errors.Is(err, bulkedit.ErrItemEditorBusy):
		return http.StatusConflict, "ITEM_EDITOR_BUSY"
	case errors.Is(err, bulkedit.ErrCommitInProgress):
		return http.StatusConflict, "COMMIT_IN_PROGRESS"
	case errors.Is(err, bulkedit.ErrValidation):
		return http.StatusUnprocessableEntity, "VALIDATION_FAILED"
	case errors.Is(err, bulkedit.ErrPersistence):
		return http.StatusBadGateway, "PERSISTENCE_FAILED"
	default:
		return http.StatusInternalServerError, ""
	}
}
