/*
Package factory provides JSON to Go invoice conversion.

PURPOSE:
  Converts loosely typed invoice documents (as produced by the invoice
  form, seed files or other services) into invoice.Invoice values the
  engine and the stores can rely on.

WHY A FACTORY?
  Invoice JSON in the wild is not uniform:
  - amounts and rates arrive as numbers or as strings
  - itemQuantity arrives as 2 or "2"
  - freshly added rows may not carry an itemId yet

  The factory normalises all of that in one place, so everything past
  this boundary deals only with strings and unique ids.

JSON SCHEMA:
  {
    "id": "inv-1",
    "invoiceNumber": "1",
    "dateOfIssue": "2024-01-31",
    "billTo": "Ada Lovelace",
    "billToEmail": "ada@gmail.com",
    "taxRate": 10,
    "discountRate": "5",
    "currency": "$",
    "items": [
      {"itemId": "a", "itemName": "Widget", "itemPrice": "10.00", "itemQuantity": 2}
    ]
  }

  ParseInvoices accepts either a JSON array of invoices or an object
  {"invoices": [...]}.

USAGE:
  f := factory.NewInvoiceFactory()
  inv, err := f.ParseInvoice(body)
  invs, err := f.ParseInvoices(seedFile)

SEE ALSO:
  - invoice/types.go: Invoice type definition
  - api/scenarios.go: sample invoices built with this factory
*/
package factory

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/warp/invoice-engine/invoice"
)

// ErrInvalidInvoice is returned for documents that cannot become an Invoice.
var ErrInvalidInvoice = errors.New("invalid invoice document")

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// Text is a JSON value that may be written as a string or a number.
// Numbers keep their literal spelling ("10.50" stays "10.50").
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*t = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number: %w", err)
	}
	*t = Text(n.String())
	return nil
}

// InvoiceJSON is the JSON representation of an invoice.
type InvoiceJSON struct {
	ID              Text       `json:"id"`
	InvoiceNumber   Text       `json:"invoiceNumber"`
	DateOfIssue     Text       `json:"dateOfIssue"`
	BillTo          Text       `json:"billTo"`
	BillToEmail     Text       `json:"billToEmail"`
	BillToAddress   Text       `json:"billToAddress"`
	BillFrom        Text       `json:"billFrom"`
	BillFromEmail   Text       `json:"billFromEmail"`
	BillFromAddress Text       `json:"billFromAddress"`
	TaxRate         Text       `json:"taxRate"`
	DiscountRate    Text       `json:"discountRate"`
	TaxAmount       Text       `json:"taxAmount"`
	DiscountAmount  Text       `json:"discountAmount"`
	SubTotal        Text       `json:"subTotal"`
	Total           Text       `json:"total"`
	Currency        Text       `json:"currency"`
	Items           []ItemJSON `json:"items"`
}

// ItemJSON is the JSON representation of an item.
type ItemJSON struct {
	ItemID          Text `json:"itemId"`
	ItemName        Text `json:"itemName"`
	ItemDescription Text `json:"itemDescription"`
	ItemPrice       Text `json:"itemPrice"`
	ItemQuantity    Text `json:"itemQuantity"`
}

type invoicesEnvelope struct {
	Invoices []InvoiceJSON `json:"invoices"`
}

// =============================================================================
// INVOICE FACTORY
// =============================================================================

// InvoiceFactory converts JSON invoices to Go structs.
type InvoiceFactory struct {
	newID func() string
}

// NewInvoiceFactory creates a factory that fills missing ids with UUIDv7.
func NewInvoiceFactory() *InvoiceFactory {
	return &InvoiceFactory{newID: newUUID}
}

// WithIDFunc returns a copy of the factory using gen for missing ids.
func (f *InvoiceFactory) WithIDFunc(gen func() string) *InvoiceFactory {
	return &InvoiceFactory{newID: gen}
}

// ParseInvoice parses one JSON invoice.
func (f *InvoiceFactory) ParseInvoice(data []byte) (invoice.Invoice, error) {
	var ij InvoiceJSON
	if err := json.Unmarshal(data, &ij); err != nil {
		return invoice.Invoice{}, fmt.Errorf("%w: %v", ErrInvalidInvoice, err)
	}
	return f.FromJSON(ij)
}

// ParseInvoices parses a JSON array of invoices, or {"invoices": [...]}.
// Invoice ids must be unique across the document.
func (f *InvoiceFactory) ParseInvoices(data []byte) ([]invoice.Invoice, error) {
	var list []InvoiceJSON
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var env invoicesEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInvoice, err)
		}
		list = env.Invoices
	} else if err := json.Unmarshal(trimmed, &list); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInvoice, err)
	}

	seen := make(map[invoice.ID]bool, len(list))
	out := make([]invoice.Invoice, 0, len(list))
	for i, ij := range list {
		inv, err := f.FromJSON(ij)
		if err != nil {
			return nil, fmt.Errorf("invoice %d: %w", i, err)
		}
		if seen[inv.ID] {
			return nil, fmt.Errorf("%w: duplicate invoice id %s", ErrInvalidInvoice, inv.ID)
		}
		seen[inv.ID] = true
		out = append(out, inv)
	}
	return out, nil
}

// FromJSON converts InvoiceJSON to invoice.Invoice.
func (f *InvoiceFactory) FromJSON(ij InvoiceJSON) (invoice.Invoice, error) {
	inv := invoice.Invoice{
		ID:              invoice.ID(strings.TrimSpace(string(ij.ID))),
		InvoiceNumber:   string(ij.InvoiceNumber),
		DateOfIssue:     string(ij.DateOfIssue),
		BillTo:          string(ij.BillTo),
		BillToEmail:     string(ij.BillToEmail),
		BillToAddress:   string(ij.BillToAddress),
		BillFrom:        string(ij.BillFrom),
		BillFromEmail:   string(ij.BillFromEmail),
		BillFromAddress: string(ij.BillFromAddress),
		TaxRate:         string(ij.TaxRate),
		DiscountRate:    string(ij.DiscountRate),
		TaxAmount:       string(ij.TaxAmount),
		DiscountAmount:  string(ij.DiscountAmount),
		SubTotal:        string(ij.SubTotal),
		Total:           string(ij.Total),
		Currency:        string(ij.Currency),
		Items:           make([]invoice.Item, 0, len(ij.Items)),
	}
	if inv.ID == "" {
		inv.ID = invoice.ID(f.newID())
	}

	seen := make(map[invoice.ItemID]bool, len(ij.Items))
	for _, it := range ij.Items {
		item := invoice.Item{
			ItemID:          invoice.ItemID(strings.TrimSpace(string(it.ItemID))),
			ItemName:        string(it.ItemName),
			ItemDescription: string(it.ItemDescription),
			ItemPrice:       string(it.ItemPrice),
			ItemQuantity:    invoice.Quantity(it.ItemQuantity),
		}
		if item.ItemID == "" {
			item.ItemID = invoice.ItemID(f.newID())
		}
		if seen[item.ItemID] {
			return invoice.Invoice{}, fmt.Errorf("%w: invoice %s has duplicate item id %s", ErrInvalidInvoice, inv.ID, item.ItemID)
		}
		seen[item.ItemID] = true
		inv.Items = append(inv.Items, item)
	}

	return inv, nil
}

// ToJSON converts an invoice back to its JSON representation.
func (f *InvoiceFactory) ToJSON(inv invoice.Invoice) InvoiceJSON {
	ij := InvoiceJSON{
		ID:              Text(inv.ID),
		InvoiceNumber:   Text(inv.InvoiceNumber),
		DateOfIssue:     Text(inv.DateOfIssue),
		BillTo:          Text(inv.BillTo),
		BillToEmail:     Text(inv.BillToEmail),
		BillToAddress:   Text(inv.BillToAddress),
		BillFrom:        Text(inv.BillFrom),
		BillFromEmail:   Text(inv.BillFromEmail),
		BillFromAddress: Text(inv.BillFromAddress),
		TaxRate:         Text(inv.TaxRate),
		DiscountRate:    Text(inv.DiscountRate),
		TaxAmount:       Text(inv.TaxAmount),
		DiscountAmount:  Text(inv.DiscountAmount),
		SubTotal:        Text(inv.SubTotal),
		Total:           Text(inv.Total),
		Currency:        Text(inv.Currency),
		Items:           make([]ItemJSON, len(inv.Items)),
	}
	for i, it := range inv.Items {
		ij.Items[i] = ItemJSON{
			ItemID:          Text(it.ItemID),
			ItemName:        Text(it.ItemName),
			ItemDescription: Text(it.ItemDescription),
			ItemPrice:       Text(it.ItemPrice),
			ItemQuantity:    Text(it.ItemQuantity),
		}
	}
	return ij
}

func newUUID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
