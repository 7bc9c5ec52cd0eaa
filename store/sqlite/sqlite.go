/*
Package sqlite provides a SQLite-backed implementation of invoice.Store.

PURPOSE:
  Persists invoices and their items, and applies the engine's atomic
  per-field update commands. Every applied field is also written to an
  append-only audit table so a partially failed bulk commit can be
  inspected after the fact.

INTERFACES IMPLEMENTED:
  invoice.Store:   list/get/create/delete invoices
  invoice.Updater: UpdateInvoice(id, partial field set)

KEY TABLES:
  invoices:         one row per invoice, scalar fields as TEXT
  invoice_items:    ordered items, cascade-deleted with their invoice
  invoice_updates:  append-only log of applied field updates

APPEND-ONLY ENFORCEMENT:
  invoice_updates is never updated or deleted from, except by Reset.
  Deleting an invoice keeps its audit rows.

DYNAMIC UPDATES:
  UpdateInvoice builds its UPDATE with squirrel from a fixed
  field-to-column whitelist; field names never reach SQL text.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. ":memory:" databases are pinned
  to a single connection so every query sees the same database.

USAGE:
  store, err := sqlite.New("./data/invoices.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  session := bulkedit.NewSession(selected, store)

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - invoice/store.go: Interface definitions
  - invoice/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/invoice-engine/invoice"
)

// columns maps every scalar field to its column in the invoices table.
var columns = map[invoice.Field]string{
	invoice.FieldInvoiceNumber:   "invoice_number",
	invoice.FieldDateOfIssue:     "date_of_issue",
	invoice.FieldBillTo:          "bill_to",
	invoice.FieldBillToEmail:     "bill_to_email",
	invoice.FieldBillToAddress:   "bill_to_address",
	invoice.FieldBillFrom:        "bill_from",
	invoice.FieldBillFromEmail:   "bill_from_email",
	invoice.FieldBillFromAddress: "bill_from_address",
	invoice.FieldTaxRate:         "tax_rate",
	invoice.FieldDiscountRate:    "discount_rate",
	invoice.FieldTaxAmount:       "tax_amount",
	invoice.FieldDiscountAmount:  "discount_amount",
	invoice.FieldSubTotal:        "sub_total",
	invoice.FieldTotal:           "total",
	invoice.FieldCurrency:        "currency",
}

// Store implements invoice.Store using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
	sb squirrel.StatementBuilderType
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{
		db: db,
		sb: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Question),
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		position INTEGER NOT NULL,
		invoice_number TEXT NOT NULL DEFAULT '',
		date_of_issue TEXT NOT NULL DEFAULT '',
		bill_to TEXT NOT NULL DEFAULT '',
		bill_to_email TEXT NOT NULL DEFAULT '',
		bill_to_address TEXT NOT NULL DEFAULT '',
		bill_from TEXT NOT NULL DEFAULT '',
		bill_from_email TEXT NOT NULL DEFAULT '',
		bill_from_address TEXT NOT NULL DEFAULT '',
		tax_rate TEXT NOT NULL DEFAULT '',
		discount_rate TEXT NOT NULL DEFAULT '',
		tax_amount TEXT NOT NULL DEFAULT '',
		discount_amount TEXT NOT NULL DEFAULT '',
		sub_total TEXT NOT NULL DEFAULT '',
		total TEXT NOT NULL DEFAULT '',
		currency TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoices_position
		ON invoices(position);

	CREATE TABLE IF NOT EXISTS invoice_items (
		invoice_id TEXT NOT NULL REFERENCES invoices(id) ON DELETE CASCADE,
		item_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		item_name TEXT NOT NULL DEFAULT '',
		item_description TEXT NOT NULL DEFAULT '',
		item_price TEXT NOT NULL DEFAULT '',
		item_quantity TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (invoice_id, item_id)
	);

	CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice_position
		ON invoice_items(invoice_id, position);

	-- Audit log (append-only)
	CREATE TABLE IF NOT EXISTS invoice_updates (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL,
		field TEXT NOT NULL,
		old_value TEXT NOT NULL,
		new_value TEXT NOT NULL,
		applied_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_invoice_updates_invoice
		ON invoice_updates(invoice_id, applied_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// INVOICE STORE (invoice.Store interface)
// =============================================================================

// ListInvoices returns every invoice in creation order.
func (s *Store) ListInvoices(ctx context.Context) ([]invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := s.selectInvoices().OrderBy("position ASC").ToSql()
	if err != nil {
		return nil, err
	}
	invoices, err := s.queryInvoices(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	items, err := s.loadItems(ctx, nil)
	if err != nil {
		return nil, err
	}
	for i := range invoices {
		invoices[i].Items = itemsOrEmpty(items[invoices[i].ID])
	}
	return invoices, nil
}

// GetInvoice returns one invoice with its items.
func (s *Store) GetInvoice(ctx context.Context, id invoice.ID) (*invoice.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query, args, err := s.selectInvoices().Where(squirrel.Eq{"id": string(id)}).ToSql()
	if err != nil {
		return nil, err
	}
	invoices, err := s.queryInvoices(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(invoices) == 0 {
		return nil, invoice.NotFoundError(id)
	}

	items, err := s.loadItems(ctx, &id)
	if err != nil {
		return nil, err
	}
	inv := invoices[0]
	inv.Items = itemsOrEmpty(items[id])
	return &inv, nil
}

// CreateInvoice inserts an invoice and its items atomically.
func (s *Store) CreateInvoice(ctx context.Context, inv invoice.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		var position int64
		if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(position), 0) + 1 FROM invoices").Scan(&position); err != nil {
			return fmt.Errorf("failed to allocate position: %w", err)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		cols := []string{"id", "position"}
		vals := []any{string(inv.ID), position}
		for _, f := range invoice.ScalarFields {
			v, _ := inv.Get(f)
			cols = append(cols, columns[f])
			vals = append(vals, v)
		}
		cols = append(cols, "created_at", "updated_at")
		vals = append(vals, now, now)

		query, args, err := s.sb.Insert("invoices").Columns(cols...).Values(vals...).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %s", invoice.ErrInvoiceExists, inv.ID)
			}
			return fmt.Errorf("failed to insert invoice: %w", err)
		}

		if len(inv.Items) == 0 {
			return nil
		}
		insert := s.sb.Insert("invoice_items").
			Columns("invoice_id", "item_id", "position", "item_name", "item_description", "item_price", "item_quantity")
		for i, it := range inv.Items {
			insert = insert.Values(string(inv.ID), string(it.ItemID), i, it.ItemName, it.ItemDescription, it.ItemPrice, string(it.ItemQuantity))
		}
		query, args, err = insert.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("invoice %s: duplicate item id: %w", inv.ID, err)
			}
			return fmt.Errorf("failed to insert items: %w", err)
		}
		return nil
	})
}

// DeleteInvoice removes an invoice and its items. Audit rows are kept.
func (s *Store) DeleteInvoice(ctx context.Context, id invoice.ID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query, args, err := s.sb.Delete("invoices").Where(squirrel.Eq{"id": string(id)}).ToSql()
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete invoice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return invoice.NotFoundError(id)
	}
	return nil
}

// =============================================================================
// UPDATER (invoice.Updater interface)
// =============================================================================

// UpdateInvoice applies a partial field set in one transaction and records
// every changed field in invoice_updates. All fields or none.
func (s *Store) UpdateInvoice(ctx context.Context, id invoice.ID, fields map[invoice.Field]string) error {
	if err := invoice.ValidateUpdate(id, fields); err != nil {
		return err
	}
	if len(fields) == 0 {
		return nil
	}

	// Stable column order keeps statements and audit rows deterministic.
	ordered := make([]invoice.Field, 0, len(fields))
	for _, f := range invoice.ScalarFields {
		if _, ok := fields[f]; ok {
			ordered = append(ordered, f)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.withTx(ctx, func(tx *sql.Tx) error {
		cols := make([]string, len(ordered))
		for i, f := range ordered {
			cols[i] = columns[f]
		}
		query, args, err := s.sb.Select(cols...).From("invoices").Where(squirrel.Eq{"id": string(id)}).ToSql()
		if err != nil {
			return err
		}
		old := make([]string, len(ordered))
		dest := make([]any, len(ordered))
		for i := range old {
			dest[i] = &old[i]
		}
		if err := tx.QueryRowContext(ctx, query, args...).Scan(dest...); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return invoice.NotFoundError(id)
			}
			return fmt.Errorf("failed to read invoice: %w", err)
		}

		now := time.Now().UTC().Format(time.RFC3339Nano)
		update := s.sb.Update("invoices").Set("updated_at", now).Where(squirrel.Eq{"id": string(id)})
		for _, f := range ordered {
			update = update.Set(columns[f], fields[f])
		}
		query, args, err = update.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update invoice: %w", err)
		}

		audit := s.sb.Insert("invoice_updates").
			Columns("id", "invoice_id", "field", "old_value", "new_value", "applied_at")
		for i, f := range ordered {
			audit = audit.Values(newAuditID(), string(id), string(f), old[i], fields[f], now)
		}
		query, args, err = audit.ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to record update: %w", err)
		}
		return nil
	})
}

// =============================================================================
// AUDIT LOG
// =============================================================================

// UpdateRecord is one applied field update.
type UpdateRecord struct {
	ID        string
	InvoiceID invoice.ID
	Field     invoice.Field
	OldValue  string
	NewValue  string
	AppliedAt time.Time
}

// ListUpdates returns the audit rows of an invoice, oldest first.
// A limit of zero or less returns every row.
func (s *Store) ListUpdates(ctx context.Context, id invoice.ID, limit int) ([]UpdateRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q := s.sb.Select("id", "invoice_id", "field", "old_value", "new_value", "applied_at").
		From("invoice_updates").
		Where(squirrel.Eq{"invoice_id": string(id)}).
		OrderBy("applied_at ASC", "rowid ASC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query updates: %w", err)
	}
	defer rows.Close()

	var records []UpdateRecord
	for rows.Next() {
		var (
			r         UpdateRecord
			invoiceID string
			field     string
			appliedAt string
		)
		if err := rows.Scan(&r.ID, &invoiceID, &field, &r.OldValue, &r.NewValue, &appliedAt); err != nil {
			return nil, err
		}
		r.InvoiceID = invoice.ID(invoiceID)
		r.Field = invoice.Field(field)
		r.AppliedAt, _ = time.Parse(time.RFC3339Nano, appliedAt)
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"invoice_items", "invoices", "invoice_updates"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *Store) selectInvoices() squirrel.SelectBuilder {
	cols := []string{"id"}
	for _, f := range invoice.ScalarFields {
		cols = append(cols, columns[f])
	}
	return s.sb.Select(cols...).From("invoices")
}

func (s *Store) queryInvoices(ctx context.Context, query string, args ...any) ([]invoice.Invoice, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query invoices: %w", err)
	}
	defer rows.Close()

	var invoices []invoice.Invoice
	for rows.Next() {
		var (
			inv    invoice.Invoice
			id     string
			values = make([]string, len(invoice.ScalarFields))
			dest   = make([]any, 0, len(values)+1)
		)
		dest = append(dest, &id)
		for i := range values {
			dest = append(dest, &values[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		inv.ID = invoice.ID(id)
		for i, f := range invoice.ScalarFields {
			inv.Set(f, values[i])
		}
		invoices = append(invoices, inv)
	}
	return invoices, rows.Err()
}

// loadItems returns items grouped by invoice; only the given invoice's
// items when id is non-nil.
func (s *Store) loadItems(ctx context.Context, id *invoice.ID) (map[invoice.ID][]invoice.Item, error) {
	q := s.sb.Select("invoice_id", "item_id", "item_name", "item_description", "item_price", "item_quantity").
		From("invoice_items").
		OrderBy("invoice_id", "position ASC")
	if id != nil {
		q = q.Where(squirrel.Eq{"invoice_id": string(*id)})
	}
	query, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query items: %w", err)
	}
	defer rows.Close()

	out := make(map[invoice.ID][]invoice.Item)
	for rows.Next() {
		var invoiceID, itemID, qty string
		var it invoice.Item
		if err := rows.Scan(&invoiceID, &itemID, &it.ItemName, &it.ItemDescription, &it.ItemPrice, &qty); err != nil {
			return nil, err
		}
		it.ItemID = invoice.ItemID(itemID)
		it.ItemQuantity = invoice.Quantity(qty)
		out[invoice.ID(invoiceID)] = append(out[invoice.ID(invoiceID)], it)
	}
	return out, rows.Err()
}

func itemsOrEmpty(items []invoice.Item) []invoice.Item {
	if items == nil {
		return []invoice.Item{}
	}
	return items
}

func newAuditID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
