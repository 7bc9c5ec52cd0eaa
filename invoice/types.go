/*
Package invoice provides the domain types shared by the bulk-edit engine,
the persistence layer and the HTTP surface.

KEY CONCEPTS IN THIS FILE (types.go):
  - Invoice: a billing document with scalar fields and ordered line items
  - Item: one line of an invoice, owned exclusively by it
  - Field: the name of an editable invoice attribute (wire name, camelCase)
  - PendingChange: an uncommitted edit of one field of one invoice
  - UpdateCommand: a single {invoiceId, field, value} instruction for storage

MONEY REPRESENTATION:
  Amounts and rates are kept as the strings the operator typed or the
  store returned. They are only parsed (with decimal.Decimal) when the
  recalculation engine needs numbers, and always emitted back as strings
  with exactly two fraction digits.

INVARIANT (committed state):
  Total = SubTotal + TaxAmount - DiscountAmount, within rounding tolerance.

SEE ALSO:
  - errors.go: sentinel and structured errors
  - store.go: persistence interfaces
  - bulkedit/: the engine that produces UpdateCommands
*/
package invoice

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

// ID identifies an invoice. Immutable once created.
type ID string

// ItemID identifies an item within its invoice. Never reused.
type ItemID string

// =============================================================================
// FIELDS
// =============================================================================

// Field is the wire name of an invoice attribute.
type Field string

const (
	FieldID              Field = "id"
	FieldInvoiceNumber   Field = "invoiceNumber"
	FieldDateOfIssue     Field = "dateOfIssue"
	FieldBillTo          Field = "billTo"
	FieldBillToEmail     Field = "billToEmail"
	FieldBillToAddress   Field = "billToAddress"
	FieldBillFrom        Field = "billFrom"
	FieldBillFromEmail   Field = "billFromEmail"
	FieldBillFromAddress Field = "billFromAddress"
	FieldTaxRate         Field = "taxRate"
	FieldDiscountRate    Field = "discountRate"
	FieldTaxAmount       Field = "taxAmount"
	FieldDiscountAmount  Field = "discountAmount"
	FieldSubTotal        Field = "subTotal"
	FieldTotal           Field = "total"
	FieldCurrency        Field = "currency"
	FieldItems           Field = "items"
)

// ScalarFields lists every field that holds a single string value, in the
// order they are declared on Invoice.
var ScalarFields = []Field{
	FieldInvoiceNumber,
	FieldDateOfIssue,
	FieldBillTo,
	FieldBillToEmail,
	FieldBillToAddress,
	FieldBillFrom,
	FieldBillFromEmail,
	FieldBillFromAddress,
	FieldTaxRate,
	FieldDiscountRate,
	FieldTaxAmount,
	FieldDiscountAmount,
	FieldSubTotal,
	FieldTotal,
	FieldCurrency,
}

// IsScalar reports whether f is one of ScalarFields.
func (f Field) IsScalar() bool {
	for _, s := range ScalarFields {
		if s == f {
			return true
		}
	}
	return false
}

// ItemField is the wire name of an item attribute.
type ItemField string

const (
	ItemFieldName        ItemField = "itemName"
	ItemFieldDescription ItemField = "itemDescription"
	ItemFieldPrice       ItemField = "itemPrice"
	ItemFieldQuantity    ItemField = "itemQuantity"
)

// =============================================================================
// ITEM
// =============================================================================

// Item is one line of an invoice. It has no identity outside its invoice.
//
// Price and Quantity hold raw operator input; a malformed value is treated
// as zero by the recalculation engine rather than rejected.
type Item struct {
	ItemID          ItemID   `json:"itemId"`
	ItemName        string   `json:"itemName"`
	ItemDescription string   `json:"itemDescription"`
	ItemPrice       string   `json:"itemPrice"`
	ItemQuantity    Quantity `json:"itemQuantity"`
}

// Set replaces the named attribute. Returns false for an unknown field.
func (it *Item) Set(field ItemField, value string) bool {
	switch field {
	case ItemFieldName:
		it.ItemName = value
	case ItemFieldDescription:
		it.ItemDescription = value
	case ItemFieldPrice:
		it.ItemPrice = value
	case ItemFieldQuantity:
		it.ItemQuantity = Quantity(value)
	default:
		return false
	}
	return true
}

// CloneItems returns a deep copy of items. A nil input yields an empty,
// non-nil slice so folded working sets always serialise as [].
func CloneItems(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	return out
}

// Quantity is an item quantity as typed by the operator.
//
// The frontend sends numbers for untouched rows and strings for edited
// cells, so both JSON forms are accepted. Integers marshal back as numbers.
type Quantity string

// Int returns the quantity as a non-negative integer.
// ok is false when the value is not a non-negative integer.
func (q Quantity) Int() (n int64, ok bool) {
	n, err := strconv.ParseInt(strings.TrimSpace(string(q)), 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

func (q Quantity) MarshalJSON() ([]byte, error) {
	if n, ok := q.Int(); ok && strconv.FormatInt(n, 10) == string(q) {
		return []byte(string(q)), nil
	}
	return json.Marshal(string(q))
}

func (q *Quantity) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*q = Quantity(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("itemQuantity: %w", err)
	}
	*q = Quantity(n.String())
	return nil
}

// =============================================================================
// INVOICE
// =============================================================================

// Invoice is a billing document. ID is immutable once created.
type Invoice struct {
	ID              ID     `json:"id"`
	InvoiceNumber   string `json:"invoiceNumber"`
	DateOfIssue     string `json:"dateOfIssue"`
	BillTo          string `json:"billTo"`
	BillToEmail     string `json:"billToEmail"`
	BillToAddress   string `json:"billToAddress"`
	BillFrom        string `json:"billFrom"`
	BillFromEmail   string `json:"billFromEmail"`
	BillFromAddress string `json:"billFromAddress"`
	TaxRate         string `json:"taxRate"`
	DiscountRate    string `json:"discountRate"`
	TaxAmount       string `json:"taxAmount"`
	DiscountAmount  string `json:"discountAmount"`
	SubTotal        string `json:"subTotal"`
	Total           string `json:"total"`
	Currency        string `json:"currency"`
	Items           []Item `json:"items"`
}

// Get returns the value of a scalar field. ok is false for non-scalar or
// unknown fields.
func (inv *Invoice) Get(field Field) (value string, ok bool) {
	p := inv.scalar(field)
	if p == nil {
		return "", false
	}
	return *p, true
}

// Set assigns a scalar field. Returns false for non-scalar or unknown fields.
func (inv *Invoice) Set(field Field, value string) bool {
	p := inv.scalar(field)
	if p == nil {
		return false
	}
	*p = value
	return true
}

func (inv *Invoice) scalar(field Field) *string {
	switch field {
	case FieldInvoiceNumber:
		return &inv.InvoiceNumber
	case FieldDateOfIssue:
		return &inv.DateOfIssue
	case FieldBillTo:
		return &inv.BillTo
	case FieldBillToEmail:
		return &inv.BillToEmail
	case FieldBillToAddress:
		return &inv.BillToAddress
	case FieldBillFrom:
		return &inv.BillFrom
	case FieldBillFromEmail:
		return &inv.BillFromEmail
	case FieldBillFromAddress:
		return &inv.BillFromAddress
	case FieldTaxRate:
		return &inv.TaxRate
	case FieldDiscountRate:
		return &inv.DiscountRate
	case FieldTaxAmount:
		return &inv.TaxAmount
	case FieldDiscountAmount:
		return &inv.DiscountAmount
	case FieldSubTotal:
		return &inv.SubTotal
	case FieldTotal:
		return &inv.Total
	case FieldCurrency:
		return &inv.Currency
	}
	return nil
}

// Clone returns a deep copy of the invoice.
func (inv Invoice) Clone() Invoice {
	inv.Items = CloneItems(inv.Items)
	return inv
}

// =============================================================================
// CHANGES AND COMMANDS
// =============================================================================

// PendingChange is an uncommitted edit of one field of one invoice.
//
// For Field == FieldItems the payload is Items and Value is empty;
// for every other field the payload is Value.
type PendingChange struct {
	InvoiceID ID     `json:"invoiceId"`
	Field     Field  `json:"field"`
	Value     string `json:"value,omitempty"`
	Items     []Item `json:"items,omitempty"`
}

// IsItems reports whether the change carries a folded item working set.
func (c PendingChange) IsItems() bool { return c.Field == FieldItems }

// UpdateCommand is a single atomic instruction for the persistence layer.
type UpdateCommand struct {
	InvoiceID ID     `json:"invoiceId"`
	Field     Field  `json:"field"`
	Value     string `json:"value"`
}

func (c UpdateCommand) String() string {
	return fmt.Sprintf("%s.%s=%q", c.InvoiceID, c.Field, c.Value)
}
