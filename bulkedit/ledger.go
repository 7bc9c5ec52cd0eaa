/*
ledger.go - Working set of uncommitted field edits

PURPOSE:
  The ChangeLedger captures operator intent during one bulk-edit session.
  It is a keyed mapping, not a log: at most one pending value exists per
  (invoice, field), and a later edit overwrites the earlier one in place.

INVARIANTS:
  1. UNIQUE: one entry per (InvoiceID, Field). Last write wins.
  2. STABLE ORDER: an overwrite keeps the position of the first write, so
     the emitted command order does not depend on how often a cell was
     touched.
  3. NO VALIDATION: Upsert never rejects a value. Validation happens at
     commit time, over the whole batch.

SNAPSHOTS:
  Recalculation reads rates through Resolve. To make sure it never
  interleaves with an in-flight Upsert, the commit stage works on an
  immutable Snapshot taken under the ledger lock.

SEE ALSO:
  - workingset.go: produces the FieldItems change folded in here
  - commit.go: consumes a Snapshot
*/
package bulkedit

import (
	"sync"

	"github.com/warp/invoice-engine/invoice"
)

// Resolver answers "pending value or stored fallback" lookups.
type Resolver interface {
	Resolve(id invoice.ID, field invoice.Field, fallback string) string
}

type changeKey struct {
	InvoiceID invoice.ID
	Field     invoice.Field
}

// =============================================================================
// CHANGE LEDGER
// =============================================================================

// ChangeLedger holds pending edits keyed by (invoice, field).
// Safe for concurrent use.
type ChangeLedger struct {
	mu      sync.RWMutex
	entries map[changeKey]invoice.PendingChange
	order   []changeKey
}

func NewChangeLedger() *ChangeLedger {
	return &ChangeLedger{entries: make(map[changeKey]invoice.PendingChange)}
}

// Upsert inserts or overwrites the entry for (id, field).
func (l *ChangeLedger) Upsert(id invoice.ID, field invoice.Field, value string) {
	l.Put(invoice.PendingChange{InvoiceID: id, Field: field, Value: value})
}

// Put inserts or overwrites the entry for (change.InvoiceID, change.Field).
// Item payloads are copied so later working-set edits never alias it.
func (l *ChangeLedger) Put(change invoice.PendingChange) {
	if change.IsItems() {
		change.Items = invoice.CloneItems(change.Items)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	k := changeKey{InvoiceID: change.InvoiceID, Field: change.Field}
	if _, exists := l.entries[k]; !exists {
		l.order = append(l.order, k)
	}
	l.entries[k] = change
}

// Resolve returns the pending value for (id, field), or fallback.
func (l *ChangeLedger) Resolve(id invoice.ID, field invoice.Field, fallback string) string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return resolve(l.entries, id, field, fallback)
}

// Get returns the pending change for (id, field), if any.
func (l *ChangeLedger) Get(id invoice.ID, field invoice.Field) (invoice.PendingChange, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	c, ok := l.entries[changeKey{InvoiceID: id, Field: field}]
	if ok && c.IsItems() {
		c.Items = invoice.CloneItems(c.Items)
	}
	return c, ok
}

// Len returns the number of pending entries.
func (l *ChangeLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.order)
}

// Clear empties the ledger.
func (l *ChangeLedger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[changeKey]invoice.PendingChange)
	l.order = nil
}

// Snapshot returns an immutable copy of the current entries.
func (l *ChangeLedger) Snapshot() *Snapshot {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := &Snapshot{
		entries: make(map[changeKey]invoice.PendingChange, len(l.entries)),
		order:   make([]changeKey, len(l.order)),
	}
	copy(s.order, l.order)
	for k, c := range l.entries {
		if c.IsItems() {
			c.Items = invoice.CloneItems(c.Items)
		}
		s.entries[k] = c
	}
	return s
}

// =============================================================================
// SNAPSHOT
// =============================================================================

// Snapshot is a point-in-time, read-only view of a ChangeLedger.
type Snapshot struct {
	entries map[changeKey]invoice.PendingChange
	order   []changeKey
}

// Resolve returns the pending value for (id, field), or fallback.
func (s *Snapshot) Resolve(id invoice.ID, field invoice.Field, fallback string) string {
	return resolve(s.entries, id, field, fallback)
}

// Changes returns every entry in first-write order.
func (s *Snapshot) Changes() []invoice.PendingChange {
	out := make([]invoice.PendingChange, 0, len(s.order))
	for _, k := range s.order {
		out = append(out, s.entries[k])
	}
	return out
}

// ChangesFor returns the entries of one invoice in first-write order.
func (s *Snapshot) ChangesFor(id invoice.ID) []invoice.PendingChange {
	var out []invoice.PendingChange
	for _, k := range s.order {
		if k.InvoiceID == id {
			out = append(out, s.entries[k])
		}
	}
	return out
}

// Len returns the number of entries.
func (s *Snapshot) Len() int { return len(s.order) }

func resolve(entries map[changeKey]invoice.PendingChange, id invoice.ID, field invoice.Field, fallback string) string {
	c, ok := entries[changeKey{InvoiceID: id, Field: field}]
	if !ok || c.IsItems() {
		return fallback
	}
	return c.Value
}
