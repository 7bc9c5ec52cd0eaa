/*
errors.go - Error types for the bulk-edit engine

TAXONOMY:
  ValidationFailure   recoverable; nothing committed, nothing cleared.
                      The caller may re-edit and commit again.
  PersistenceFailure  one or more update commands failed at the storage
                      boundary. Reported per invoice, because sibling
                      invoices may already be committed.
  Malformed numbers   not an error at all; they count as zero (recalc.go).

Session misuse (editing while a commit runs, item edits with no editor
open, ids outside the session) is reported with the sentinels below.
*/
package bulkedit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/warp/invoice-engine/invoice"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrValidation is the sentinel behind ValidationFailure.
	ErrValidation = errors.New("validation failed")

	// ErrPersistence is the sentinel behind PersistenceFailure.
	ErrPersistence = errors.New("persistence failed")

	// ErrNotInSession is returned for an invoice id outside the session scope.
	ErrNotInSession = errors.New("invoice not part of this session")

	// ErrItemEditorClosed is returned for item operations with no editor open.
	ErrItemEditorClosed = errors.New("item editor is not open")

	// ErrItemEditorBusy is returned when opening a second item editor.
	ErrItemEditorBusy = errors.New("item editor already open")

	// ErrCommitInProgress is returned for any mutation while committing.
	ErrCommitInProgress = errors.New("commit in progress")

	// ErrSkipped marks a command that was not sent because an earlier
	// command of the same invoice failed.
	ErrSkipped = errors.New("not attempted after earlier failure")
)

// =============================================================================
// STRUCTURED ERRORS
// =============================================================================

// ValidationFailure carries every violation found across the batch.
type ValidationFailure struct {
	Violations []Violation
}

func (e *ValidationFailure) Error() string {
	if len(e.Violations) == 1 {
		return "validation: " + e.Violations[0].String()
	}
	return fmt.Sprintf("validation: %d violations", len(e.Violations))
}

func (e *ValidationFailure) Unwrap() error { return ErrValidation }

// Messages returns the violations rendered as strings.
func (e *ValidationFailure) Messages() []string {
	out := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		out[i] = v.String()
	}
	return out
}

// PersistenceFailure lists the invoices whose commands did not all apply.
type PersistenceFailure struct {
	Invoices []InvoiceOutcome
}

func (e *PersistenceFailure) Error() string {
	ids := make([]string, len(e.Invoices))
	for i, o := range e.Invoices {
		ids[i] = string(o.InvoiceID)
	}
	return fmt.Sprintf("persistence failed for %d invoice(s): %s", len(e.Invoices), strings.Join(ids, ", "))
}

func (e *PersistenceFailure) Unwrap() error { return ErrPersistence }

func notInSession(id invoice.ID) error {
	return fmt.Errorf("%w: %s", ErrNotInSession, id)
}
