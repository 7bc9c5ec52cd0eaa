package bulkedit_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/invoice-engine/bulkedit"
	"github.com/warp/invoice-engine/invoice"
	"github.com/warp/invoice-engine/invoice/store"
)

func newTestSession(t *testing.T, updater invoice.Updater) *bulkedit.Session {
	t.Helper()
	return bulkedit.NewSession(testInvoices(), updater)
}

// =============================================================================
// SUBMIT EDIT
// =============================================================================

func TestSession_SubmitEditLastWriteWins(t *testing.T) {
	s := newTestSession(t, &recordingUpdater{})

	require.NoError(t, s.SubmitEdit("inv-1", invoice.FieldBillTo, "Ada"))
	require.NoError(t, s.SubmitEdit("inv-1", invoice.FieldBillTo, "Ada King"))

	pending := s.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "Ada King", pending[0].Value)

	v, err := s.Resolve("inv-1", invoice.FieldBillTo)
	require.NoError(t, err)
	assert.Equal(t, "Ada King", v)

	v, err = s.Resolve("inv-1", invoice.FieldCurrency)
	require.NoError(t, err)
	assert.Equal(t, "$", v, "falls back to the stored value")
}

func TestSession_SubmitEditRejectsBadTargets(t *testing.T) {
	s := newTestSession(t, &recordingUpdater{})

	err := s.SubmitEdit("inv-9", invoice.FieldBillTo, "x")
	assert.ErrorIs(t, err, bulkedit.ErrNotInSession)

	err = s.SubmitEdit("inv-1", invoice.FieldID, "inv-7")
	assert.ErrorIs(t, err, invoice.ErrReadOnlyField)

	err = s.SubmitEdit("inv-1", invoice.FieldItems, "[]")
	assert.ErrorIs(t, err, invoice.ErrReadOnlyField)

	err = s.SubmitEdit("inv-1", "dueDate", "2024-01-01")
	assert.ErrorIs(t, err, invoice.ErrUnknownField)

	assert.Empty(t, s.Pending())
}

func TestSession_SubmitEditAcceptsInvalidValuesUntilCommit(t *testing.T) {
	s := newTestSession(t, &recordingUpdater{})

	assert.NoError(t, s.SubmitEdit("inv-1", invoice.FieldDateOfIssue, "not a date"))
	assert.Len(t, s.Pending(), 1)
}

// =============================================================================
// ITEM EDITOR
// =============================================================================

func TestSession_ItemEditorLifecycle(t *testing.T) {
	s := newTestSession(t, &recordingUpdater{})

	_, err := s.AddItemRow()
	assert.ErrorIs(t, err, bulkedit.ErrItemEditorClosed)

	require.NoError(t, s.OpenItemEditor("inv-1"))
	assert.ErrorIs(t, s.OpenItemEditor("inv-2"), bulkedit.ErrItemEditorBusy)

	id, items, ok := s.ItemEditor()
	require.True(t, ok)
	assert.Equal(t, invoice.ID("inv-1"), id)
	assert.Len(t, items, 2)

	row, err := s.AddItemRow()
	require.NoError(t, err)
	require.NoError(t, s.SubmitItemEdit(row.ItemID, invoice.ItemFieldPrice, "4.50"))
	require.NoError(t, s.DeleteItemRow("b"))
	require.NoError(t, s.DeleteItemRow("no-such-row"))
	require.NoError(t, s.SubmitItemEdit("no-such-row", invoice.ItemFieldName, "x"))

	require.NoError(t, s.CloseItemEditor(true))
	_, _, ok = s.ItemEditor()
	assert.False(t, ok)

	pending := s.Pending()
	require.Len(t, pending, 1)
	require.True(t, pending[0].IsItems())
	require.Len(t, pending[0].Items, 2)
	assert.Equal(t, invoice.ItemID("a"), pending[0].Items[0].ItemID)
	assert.Equal(t, "4.50", pending[0].Items[1].ItemPrice)
}

func TestSession_SubmitItemEditUnknownField(t *testing.T) {
	s := newTestSession(t, &recordingUpdater{})
	require.NoError(t, s.OpenItemEditor("inv-1"))

	err := s.SubmitItemEdit("a", "itemColour", "red")

	assert.ErrorIs(t, err, invoice.ErrUnknownField)
}

func TestSession_CloseWithoutSaveDiscardsRows(t *testing.T) {
	s := newTestSession(t, &recordingUpdater{})
	require.NoError(t, s.OpenItemEditor("inv-1"))
	_, err := s.AddItemRow()
	require.NoError(t, err)

	require.NoError(t, s.CloseItemEditor(false))

	assert.Empty(t, s.Pending())
	assert.ErrorIs(t, s.CloseItemEditor(true), bulkedit.ErrItemEditorClosed)
}

func TestSession_ReopenSeedsFromSavedItems(t *testing.T) {
	s := newTestSession(t, &recordingUpdater{})
	require.NoError(t, s.OpenItemEditor("inv-1"))
	require.NoError(t, s.DeleteItemRow("a"))
	require.NoError(t, s.CloseItemEditor(true))

	require.NoError(t, s.OpenItemEditor("inv-1"))
	_, items, _ := s.ItemEditor()

	require.Len(t, items, 1)
	assert.Equal(t, invoice.ItemID("b"), items[0].ItemID)
}

// =============================================================================
// COMMIT
// =============================================================================

func TestSession_CommitRecalculatesFromItemsAndPendingRates(t *testing.T) {
	// GIVEN: inv-2 stored with rates 0/0, pending rates 10/5, items folded
	// WHEN: Committing
	// THEN: The store receives the reference totals and the session copy
	//       reflects them

	mem := store.NewMemory(testInvoices()...)
	s := bulkedit.NewSession(testInvoices(), mem)

	require.NoError(t, s.SubmitEdit("inv-2", invoice.FieldTaxRate, "10"))
	require.NoError(t, s.SubmitEdit("inv-2", invoice.FieldDiscountRate, "5"))
	require.NoError(t, s.OpenItemEditor("inv-2"))
	require.NoError(t, s.DeleteItemRow("c"))
	for _, it := range sampleItems() {
		row, err := s.AddItemRow()
		require.NoError(t, err)
		require.NoError(t, s.SubmitItemEdit(row.ItemID, invoice.ItemFieldPrice, it.ItemPrice))
		require.NoError(t, s.SubmitItemEdit(row.ItemID, invoice.ItemFieldQuantity, string(it.ItemQuantity)))
	}
	require.NoError(t, s.CloseItemEditor(true))

	result, err := s.Commit(context.Background())

	require.NoError(t, err)
	require.Len(t, result.Invoices, 1)
	assert.True(t, result.Invoices[0].OK())

	stored, err := mem.GetInvoice(context.Background(), "inv-2")
	require.NoError(t, err)
	assert.Equal(t, "25.50", stored.SubTotal)
	assert.Equal(t, "10.00", stored.TaxRate)
	assert.Equal(t, "5.00", stored.DiscountRate)
	assert.Equal(t, "2.55", stored.TaxAmount)
	assert.Equal(t, "1.28", stored.DiscountAmount)
	assert.Equal(t, "26.77", stored.Total)

	for _, c := range mem.Applied() {
		assert.NotEqual(t, invoice.FieldItems, c.Field)
	}

	assert.Empty(t, s.Pending())
	assert.Equal(t, bulkedit.StateIdle, s.State())
	assert.Equal(t, "26.77", s.Invoices()[1].Total)
}

func TestSession_CommitValidationBlocksWholeBatch(t *testing.T) {
	// GIVEN: One invoice with a bad date and one clean invoice
	// WHEN: Committing
	// THEN: Nothing is dispatched, violations are reported, state is kept

	updater := &recordingUpdater{}
	s := newTestSession(t, updater)
	require.NoError(t, s.SubmitEdit("inv-1", invoice.FieldDateOfIssue, "2024-13-40"))
	require.NoError(t, s.SubmitEdit("inv-2", invoice.FieldBillTo, "Grace Brewster Hopper"))

	result, err := s.Commit(context.Background())

	assert.Nil(t, result)
	require.ErrorIs(t, err, bulkedit.ErrValidation)
	var vf *bulkedit.ValidationFailure
	require.True(t, errors.As(err, &vf))
	assert.Equal(t, []string{"Invoice with ID inv-1: date should be in the format yyyy-mm-dd"}, vf.Messages())

	assert.Empty(t, updater.Calls())
	assert.Len(t, s.Pending(), 2)
	assert.Equal(t, bulkedit.StateIdle, s.State())
	assert.Len(t, s.LastViolations(), 1)
}

func TestSession_CommitRetryAfterFix(t *testing.T) {
	updater := &recordingUpdater{}
	s := newTestSession(t, updater)
	require.NoError(t, s.SubmitEdit("inv-1", invoice.FieldBillToEmail, "ada@example.com"))

	_, err := s.Commit(context.Background())
	require.ErrorIs(t, err, bulkedit.ErrValidation)

	require.NoError(t, s.SubmitEdit("inv-1", invoice.FieldBillToEmail, "ada@gmail.com"))
	_, err = s.Commit(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []invoice.UpdateCommand{
		{InvoiceID: "inv-1", Field: invoice.FieldBillToEmail, Value: "ada@gmail.com"},
	}, updater.Calls())
	assert.Empty(t, s.LastViolations())
}

func TestSession_CommitBlankValueNamesField(t *testing.T) {
	s := newTestSession(t, &recordingUpdater{})
	require.NoError(t, s.SubmitEdit("inv-2", invoice.FieldBillFromEmail, "   "))

	_, err := s.Commit(context.Background())

	var vf *bulkedit.ValidationFailure
	require.True(t, errors.As(err, &vf))
	require.Len(t, vf.Violations, 1)
	assert.Equal(t, invoice.FieldBillFromEmail, vf.Violations[0].Field)
	assert.Contains(t, vf.Messages()[0], "billFromEmail cannot be empty")
}

func TestSession_CommitReportsPartialPersistenceFailure(t *testing.T) {
	updater := &recordingUpdater{failOn: func(id invoice.ID, _ invoice.Field) bool { return id == "inv-2" }}
	s := newTestSession(t, updater)
	require.NoError(t, s.SubmitEdit("inv-1", invoice.FieldCurrency, "EUR"))
	require.NoError(t, s.SubmitEdit("inv-2", invoice.FieldCurrency, "GBP"))

	result, err := s.Commit(context.Background())

	require.ErrorIs(t, err, bulkedit.ErrPersistence)
	var pf *bulkedit.PersistenceFailure
	require.True(t, errors.As(err, &pf))
	require.Len(t, pf.Invoices, 1)
	assert.Equal(t, invoice.ID("inv-2"), pf.Invoices[0].InvoiceID)

	require.NotNil(t, result)
	require.Len(t, result.Invoices, 2)
	assert.True(t, result.Invoices[0].OK())
	assert.False(t, result.Invoices[1].OK())

	invoices := s.Invoices()
	assert.Equal(t, "EUR", invoices[0].Currency)
	assert.Equal(t, "$", invoices[1].Currency, "failed update leaves the session copy untouched")
	assert.Empty(t, s.Pending())
}

func TestSession_CommitIgnoresUnsavedEditor(t *testing.T) {
	updater := &recordingUpdater{}
	s := newTestSession(t, updater)
	require.NoError(t, s.OpenItemEditor("inv-1"))
	require.NoError(t, s.DeleteItemRow("a"))

	result, err := s.Commit(context.Background())

	require.NoError(t, err)
	assert.Empty(t, result.Commands)
	assert.Empty(t, updater.Calls())
	_, _, open := s.ItemEditor()
	assert.False(t, open)
}

func TestSession_CommitWithNothingPending(t *testing.T) {
	s := newTestSession(t, &recordingUpdater{})

	result, err := s.Commit(context.Background())

	require.NoError(t, err)
	assert.Empty(t, result.Invoices)
}

// =============================================================================
// CANCEL
// =============================================================================

func TestSession_CancelLeavesSourceUnchanged(t *testing.T) {
	source := testInvoices()
	updater := &recordingUpdater{}
	s := bulkedit.NewSession(source, updater)

	require.NoError(t, s.SubmitEdit("inv-1", invoice.FieldBillTo, "Someone Else"))
	require.NoError(t, s.SubmitEdit("inv-2", invoice.FieldTotal, "1.00"))
	require.NoError(t, s.OpenItemEditor("inv-1"))
	require.NoError(t, s.SubmitItemEdit("a", invoice.ItemFieldPrice, "0.01"))

	require.NoError(t, s.Cancel())

	assert.Equal(t, testInvoices(), source)
	assert.Equal(t, testInvoices(), s.Invoices())
	assert.Empty(t, s.Pending())
	assert.Empty(t, updater.Calls())
	_, _, open := s.ItemEditor()
	assert.False(t, open)
}

// =============================================================================
// COMMITTING STATE
// =============================================================================

func TestSession_MutationsFailWhileCommitting(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	updater := updaterFunc(func(context.Context, invoice.ID, map[invoice.Field]string) error {
		close(entered)
		<-release
		return nil
	})
	s := bulkedit.NewSession(testInvoices(), updater)
	require.NoError(t, s.SubmitEdit("inv-1", invoice.FieldCurrency, "EUR"))

	done := make(chan error, 1)
	go func() {
		_, err := s.Commit(context.Background())
		done <- err
	}()
	<-entered

	assert.Equal(t, bulkedit.StateCommitting, s.State())
	assert.ErrorIs(t, s.SubmitEdit("inv-1", invoice.FieldBillTo, "x"), bulkedit.ErrCommitInProgress)
	assert.ErrorIs(t, s.OpenItemEditor("inv-1"), bulkedit.ErrCommitInProgress)
	assert.ErrorIs(t, s.Cancel(), bulkedit.ErrCommitInProgress)
	_, err := s.Commit(context.Background())
	assert.ErrorIs(t, err, bulkedit.ErrCommitInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, bulkedit.StateIdle, s.State())
}

func TestNewSession_DuplicateIDsKeepFirst(t *testing.T) {
	invs := testInvoices()
	dup := invs[0]
	dup.BillTo = "Duplicate"
	s := bulkedit.NewSession(append(invs, dup), &recordingUpdater{})

	got := s.Invoices()
	require.Len(t, got, 2)
	assert.Equal(t, "Ada Lovelace", got[0].BillTo)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", bulkedit.StateIdle.String())
	assert.Equal(t, "rejected", bulkedit.StateRejected.String())
	assert.Equal(t, "committing", bulkedit.StateCommitting.String())
}
