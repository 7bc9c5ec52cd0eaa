/*
workingset.go - Divergent, editable copy of one invoice's line items

PURPOSE:
  While the item editor is open the operator adds, edits and deletes
  rows freely. None of that touches the committed invoice: the working
  set is a deep copy, and it only reaches the ChangeLedger when folded
  into a single FieldItems pending change on explicit save.

LIFECYCLE:
  OpenWorkingSet   clone items         (editor opens)
  Edit/Add/Delete  diverge             (operator works)
  Fold             -> PendingChange    (save)
  discard          drop the value      (close, saved or cancelled)

DEFENSIVE LOOKUPS:
  Edit and DeleteRow on an absent item id are no-ops. They never fail.

ITEM IDS:
  New rows get a UUIDv7: a millisecond timestamp followed by random
  bits, monotonic within the process. Two adds in the same millisecond
  still produce distinct ids.
*/
package bulkedit

import (
	"github.com/google/uuid"
	"github.com/warp/invoice-engine/invoice"
)

const (
	// DefaultItemPrice is the price of a freshly added row.
	DefaultItemPrice = "1.00"

	// DefaultItemQuantity is the quantity of a freshly added row.
	DefaultItemQuantity invoice.Quantity = "1"
)

// ItemIDFunc generates item identifiers.
type ItemIDFunc func() invoice.ItemID

// NewItemID returns a fresh, time-ordered item identifier.
func NewItemID() invoice.ItemID {
	id, err := uuid.NewV7()
	if err != nil {
		return invoice.ItemID(uuid.NewString())
	}
	return invoice.ItemID(id.String())
}

// WorkingSet is a scratch copy of one invoice's items. Not safe for
// concurrent use; Session serialises access.
type WorkingSet struct {
	invoiceID invoice.ID
	items     []invoice.Item
	newID     ItemIDFunc
}

// OpenWorkingSet clones items into a new working set for invoice id.
func OpenWorkingSet(id invoice.ID, items []invoice.Item, newID ItemIDFunc) *WorkingSet {
	if newID == nil {
		newID = NewItemID
	}
	return &WorkingSet{
		invoiceID: id,
		items:     invoice.CloneItems(items),
		newID:     newID,
	}
}

// InvoiceID returns the owning invoice.
func (w *WorkingSet) InvoiceID() invoice.ID { return w.invoiceID }

// Items returns a copy of the current rows.
func (w *WorkingSet) Items() []invoice.Item { return invoice.CloneItems(w.items) }

// Edit replaces one attribute of the row with itemID.
// Returns false when the row or the attribute does not exist.
func (w *WorkingSet) Edit(itemID invoice.ItemID, field invoice.ItemField, value string) bool {
	i := w.indexOf(itemID)
	if i < 0 {
		return false
	}
	return w.items[i].Set(field, value)
}

// AddRow appends an empty row with a fresh id and returns it.
func (w *WorkingSet) AddRow() invoice.Item {
	it := invoice.Item{
		ItemID:       w.uniqueID(),
		ItemPrice:    DefaultItemPrice,
		ItemQuantity: DefaultItemQuantity,
	}
	w.items = append(w.items, it)
	return it
}

// DeleteRow removes the row with itemID. Returns false if absent.
func (w *WorkingSet) DeleteRow(itemID invoice.ItemID) bool {
	i := w.indexOf(itemID)
	if i < 0 {
		return false
	}
	w.items = append(w.items[:i], w.items[i+1:]...)
	return true
}

// Fold returns the working set as a single FieldItems pending change.
// The working set itself is left untouched.
func (w *WorkingSet) Fold() invoice.PendingChange {
	return invoice.PendingChange{
		InvoiceID: w.invoiceID,
		Field:     invoice.FieldItems,
		Items:     invoice.CloneItems(w.items),
	}
}

func (w *WorkingSet) indexOf(itemID invoice.ItemID) int {
	for i := range w.items {
		if w.items[i].ItemID == itemID {
			return i
		}
	}
	return -1
}

// uniqueID falls back to NewItemID when an injected generator repeats.
func (w *WorkingSet) uniqueID() invoice.ItemID {
	id := w.newID()
	if id == "" || w.indexOf(id) >= 0 {
		return NewItemID()
	}
	return id
}
