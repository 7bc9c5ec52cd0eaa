/*
Package bulkedit implements the edit-reconciliation and financial
recalculation engine behind the bulk invoice editor.

COMPONENTS (leaves first):
  ChangeLedger  ledger.go      pending (invoice, field) -> value
  WorkingSet    workingset.go  editable copy of one invoice's items
  Recalculate   recalc.go      subtotal/tax/discount/total
  Validate      validate.go    per-field rules
  Assemble      commit.go      snapshot -> ordered UpdateCommands
  Session       session.go     the operations exposed to callers

STATE MACHINE:
  Idle --Commit--> Validating --violations--> Rejected --> Idle
                              --clean-------> Committing --> Idle

  Rejected keeps every pending edit so the operator can fix and retry.
  Committing clears the ledger and the item editor once dispatch returns,
  whatever the outcome.

CONCURRENCY:
  A Session belongs to one interactive editing episode. Its methods are
  serialised by a mutex, and the commit stage reads an immutable ledger
  snapshot, so recalculation never observes a half-applied edit. While a
  commit is dispatching, mutations fail with ErrCommitInProgress.

USAGE:
  s := bulkedit.NewSession(selected, store, bulkedit.WithLogger(logger))
  _ = s.SubmitEdit("inv-1", invoice.FieldBillTo, "Ada Lovelace")
  _ = s.OpenItemEditor("inv-1")
  row, _ := s.AddItemRow()
  _ = s.SubmitItemEdit(row.ItemID, invoice.ItemFieldPrice, "12.50")
  _ = s.CloseItemEditor(true)
  result, err := s.Commit(ctx)
*/
package bulkedit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/warp/invoice-engine/invoice"
)

// =============================================================================
// STATE
// =============================================================================

type State int

const (
	StateIdle State = iota
	StateValidating
	StateRejected
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateRejected:
		return "rejected"
	case StateCommitting:
		return "committing"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// =============================================================================
// OPTIONS
// =============================================================================

type Option func(*Session)

// WithLogger sets the session logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithItemIDFunc overrides the generator used for new item rows.
func WithItemIDFunc(f ItemIDFunc) Option {
	return func(s *Session) { s.newItemID = f }
}

// WithConcurrency bounds how many invoices are dispatched at once.
func WithConcurrency(n int) Option {
	return func(s *Session) { s.concurrency = n }
}

// =============================================================================
// SESSION
// =============================================================================

// Session is one bulk-edit episode over a fixed set of invoices.
type Session struct {
	mu          sync.Mutex
	invoices    []invoice.Invoice
	index       map[invoice.ID]int
	ledger      *ChangeLedger
	editor      *WorkingSet
	updater     invoice.Updater
	state       State
	logger      *slog.Logger
	newItemID   ItemIDFunc
	concurrency int

	lastRejected []Violation
}

// CommitResult describes a commit that passed validation.
type CommitResult struct {
	Commands []invoice.UpdateCommand
	Invoices []InvoiceOutcome
}

// NewSession starts a session over invoices. The slice is copied; the
// caller's invoices are never modified. Duplicate ids keep the first.
func NewSession(invoices []invoice.Invoice, updater invoice.Updater, opts ...Option) *Session {
	s := &Session{
		index:       make(map[invoice.ID]int, len(invoices)),
		ledger:      NewChangeLedger(),
		updater:     updater,
		logger:      slog.Default(),
		newItemID:   NewItemID,
		concurrency: DefaultDispatchConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, inv := range invoices {
		if _, dup := s.index[inv.ID]; dup {
			continue
		}
		s.index[inv.ID] = len(s.invoices)
		s.invoices = append(s.invoices, inv.Clone())
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Invoices returns copies of the invoices in scope, in session order.
func (s *Session) Invoices() []invoice.Invoice {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]invoice.Invoice, len(s.invoices))
	for i, inv := range s.invoices {
		out[i] = inv.Clone()
	}
	return out
}

// Pending returns every pending change in first-write order.
func (s *Session) Pending() []invoice.PendingChange {
	return s.ledger.Snapshot().Changes()
}

// Resolve returns the pending value of a scalar field, or the stored one.
func (s *Session) Resolve(id invoice.ID, field invoice.Field) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inv, err := s.invoiceLocked(id)
	if err != nil {
		return "", err
	}
	stored, ok := inv.Get(field)
	if !ok {
		return "", &invoice.FieldError{InvoiceID: id, Field: field, Err: invoice.ErrUnknownField}
	}
	return s.ledger.Resolve(id, field, stored), nil
}

// -----------------------------------------------------------------------------
// Scalar edits
// -----------------------------------------------------------------------------

// SubmitEdit records a pending value for one field. The value is not
// validated until Commit.
func (s *Session) SubmitEdit(id invoice.ID, field invoice.Field, raw string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutableLocked(); err != nil {
		return err
	}
	if _, err := s.invoiceLocked(id); err != nil {
		return err
	}
	switch {
	case field == invoice.FieldID || field == invoice.FieldItems:
		return &invoice.FieldError{InvoiceID: id, Field: field, Err: invoice.ErrReadOnlyField}
	case !field.IsScalar():
		return &invoice.FieldError{InvoiceID: id, Field: field, Err: invoice.ErrUnknownField}
	}

	s.ledger.Upsert(id, field, raw)
	return nil
}

// -----------------------------------------------------------------------------
// Item editor
// -----------------------------------------------------------------------------

// OpenItemEditor opens the item editor for one invoice. The working set
// starts from the pending items of that invoice if they were already
// saved in this session, otherwise from its committed items.
func (s *Session) OpenItemEditor(id invoice.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.mutableLocked(); err != nil {
		return err
	}
	inv, err := s.invoiceLocked(id)
	if err != nil {
		return err
	}
	if s.editor != nil {
		return fmt.Errorf("%w for invoice %s", ErrItemEditorBusy, s.editor.InvoiceID())
	}

	items := inv.Items
	if pending, ok := s.ledger.Get(id, invoice.FieldItems); ok {
		items = pending.Items
	}
	s.editor = OpenWorkingSet(id, items, s.newItemID)
	return nil
}

// ItemEditor returns the invoice and rows of the open item editor.
// ok is false when no editor is open.
func (s *Session) ItemEditor() (id invoice.ID, items []invoice.Item, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.editor == nil {
		return "", nil, false
	}
	return s.editor.InvoiceID(), s.editor.Items(), true
}

// SubmitItemEdit replaces one attribute of one row. An unknown item id
// is a no-op.
func (s *Session) SubmitItemEdit(itemID invoice.ItemID, field invoice.ItemField, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.editorLocked()
	if err != nil {
		return err
	}
	if !(&invoice.Item{}).Set(field, value) {
		return &invoice.FieldError{InvoiceID: ws.InvoiceID(), Field: invoice.Field(field), Err: invoice.ErrUnknownField}
	}
	ws.Edit(itemID, field, value)
	return nil
}

// AddItemRow appends a default row and returns it.
func (s *Session) AddItemRow() (invoice.Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.editorLocked()
	if err != nil {
		return invoice.Item{}, err
	}
	return ws.AddRow(), nil
}

// DeleteItemRow removes a row. An unknown item id is a no-op.
func (s *Session) DeleteItemRow(itemID invoice.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.editorLocked()
	if err != nil {
		return err
	}
	ws.DeleteRow(itemID)
	return nil
}

// CloseItemEditor closes the editor. With save, the working set is folded
// into the ledger as the invoice's items change; otherwise it is dropped.
func (s *Session) CloseItemEditor(save bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ws, err := s.editorLocked()
	if err != nil {
		return err
	}
	if save {
		s.ledger.Put(ws.Fold())
	}
	s.editor = nil
	return nil
}

// -----------------------------------------------------------------------------
// Commit / cancel
// -----------------------------------------------------------------------------

// Commit validates the pending changes and, if they are clean, dispatches
// them as atomic update commands.
//
// Errors:
//   - *ValidationFailure: nothing dispatched, pending state kept.
//   - *PersistenceFailure: some commands failed; the result still lists
//     every outcome and the pending state is cleared.
//   - ErrCommitInProgress: another commit is running.
func (s *Session) Commit(ctx context.Context) (*CommitResult, error) {
	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return nil, ErrCommitInProgress
	}

	s.state = StateValidating
	// Rows in an editor that was never saved are not part of the batch.
	snap := s.ledger.Snapshot()
	batch, violations := Assemble(s.invoices, snap)

	if len(violations) > 0 {
		s.state = StateRejected
		s.logger.Info("bulk edit rejected",
			slog.Int("violations", len(violations)),
			slog.Int("pending", snap.Len()),
		)
		s.lastRejected = violations
		s.state = StateIdle
		s.mu.Unlock()
		return nil, &ValidationFailure{Violations: violations}
	}

	s.state = StateCommitting
	s.lastRejected = nil
	s.mu.Unlock()

	for _, ib := range batch.Invoices {
		if ib.Totals != nil && len(ib.Totals.Degraded) > 0 {
			s.logger.Debug("malformed numeric input counted as zero",
				slog.String("invoice_id", string(ib.InvoiceID)),
				slog.Any("inputs", ib.Totals.Degraded),
			)
		}
	}

	d := &Dispatcher{Updater: s.updater, Concurrency: s.concurrency, Logger: s.logger}
	outcomes := d.Dispatch(ctx, batch)

	s.mu.Lock()
	for _, o := range outcomes {
		for _, cmd := range o.Applied {
			s.invoices[s.index[cmd.InvoiceID]].Set(cmd.Field, cmd.Value)
		}
	}
	s.ledger.Clear()
	s.editor = nil
	s.state = StateIdle
	s.mu.Unlock()

	result := &CommitResult{Commands: batch.Commands(), Invoices: outcomes}

	var failed []InvoiceOutcome
	for _, o := range outcomes {
		if !o.OK() {
			failed = append(failed, o)
		}
	}
	s.logger.Info("bulk edit committed",
		slog.Int("invoices", len(outcomes)),
		slog.Int("commands", len(result.Commands)),
		slog.Int("failed_invoices", len(failed)),
	)
	if len(failed) > 0 {
		return result, &PersistenceFailure{Invoices: failed}
	}
	return result, nil
}

// Cancel discards every pending edit and the item editor. Nothing is
// dispatched.
func (s *Session) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateCommitting {
		return ErrCommitInProgress
	}
	s.ledger.Clear()
	s.editor = nil
	s.lastRejected = nil
	s.state = StateIdle
	return nil
}

// LastViolations returns the violations of the most recent rejected
// commit, or nil if the last commit attempt passed validation.
func (s *Session) LastViolations() []Violation {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Violation, len(s.lastRejected))
	copy(out, s.lastRejected)
	return out
}

// -----------------------------------------------------------------------------
// helpers (caller holds s.mu)
// -----------------------------------------------------------------------------

func (s *Session) mutableLocked() error {
	if s.state == StateCommitting {
		return ErrCommitInProgress
	}
	return nil
}

func (s *Session) invoiceLocked(id invoice.ID) (*invoice.Invoice, error) {
	i, ok := s.index[id]
	if !ok {
		return nil, notInSession(id)
	}
	return &s.invoices[i], nil
}

func (s *Session) editorLocked() (*WorkingSet, error) {
	if err := s.mutableLocked(); err != nil {
		return nil, err
	}
	if s.editor == nil {
		return nil, ErrItemEditorClosed
	}
	return s.editor, nil
}
