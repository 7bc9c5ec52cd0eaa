/*
scenarios.go - Sample invoice data sets for demos and manual testing

PURPOSE:
  Populates the store with invoices that exercise the bulk editor: plain
  invoices, invoices whose numeric fields are malformed (they recalculate
  as zero), and a larger generated batch for concurrency.

AVAILABLE SAMPLES:
  starter:            Three well-formed invoices
  malformed-numbers:  Invoices with non-numeric rates, prices, quantities
  bulk:               Fifty generated invoices

HOW SAMPLES WORK:
  1. Reset database (clear all data) and cancel live sessions
  2. Parse the sample's JSON through the invoice factory
  3. Create each invoice in order

USAGE VIA API:
  POST /api/samples/load
  {"sample_id": "starter"}

NOTE:
  Samples reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: ResetDatabase
  - factory/invoice.go: Invoice JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/warp/invoice-engine/factory"
	"github.com/warp/invoice-engine/invoice"
)

// =============================================================================
// SAMPLE DEFINITIONS
// =============================================================================

type sample struct {
	SampleDTO
	build func(f *factory.InvoiceFactory) ([]invoice.Invoice, error)
}

var samples = []sample{
	{
		SampleDTO: SampleDTO{
			ID:          "starter",
			Name:        "Starter",
			Description: "Three well-formed invoices with items",
		},
		build: parseSample(starterJSON),
	},
	{
		SampleDTO: SampleDTO{
			ID:          "malformed-numbers",
			Name:        "Malformed Numbers",
			Description: "Rates, prices and quantities that are not numbers; totals treat them as zero",
		},
		build: parseSample(malformedJSON),
	},
	{
		SampleDTO: SampleDTO{
			ID:          "bulk",
			Name:        "Bulk",
			Description: "Fifty generated invoices for large batch edits",
		},
		build: generateBulk(50),
	},
}

func findSample(id string) (sample, bool) {
	for _, s := range samples {
		if s.ID == id {
			return s, true
		}
	}
	return sample{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListSamples returns all available sample sets.
func (h *Handler) ListSamples(w http.ResponseWriter, r *http.Request) {
	out := make([]SampleDTO, 0, len(samples))
	for _, s := range samples {
		dto := s.SampleDTO
		if invoices, err := s.build(h.Factory); err == nil {
			dto.Invoices = len(invoices)
		}
		out = append(out, dto)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetCurrentSample returns the id of the loaded sample, if any.
func (h *Handler) GetCurrentSample(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"sample_id": h.currentSample})
}

// LoadSample resets the database and loads a sample set.
func (h *Handler) LoadSample(w http.ResponseWriter, r *http.Request) {
	var req LoadSampleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	s, ok := findSample(req.SampleID)
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown sample", fmt.Errorf("sample %q", req.SampleID))
		return
	}

	n, err := h.loadSample(r.Context(), s)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load sample", err)
		return
	}

	h.Logger.Info("sample loaded", "sample_id", s.ID, "invoices", n)
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "ok",
		"sample_id": s.ID,
		"invoices":  n,
	})
}

func (h *Handler) loadSample(ctx context.Context, s sample) (int, error) {
	invoices, err := s.build(h.Factory)
	if err != nil {
		return 0, fmt.Errorf("build sample %s: %w", s.ID, err)
	}

	if err := h.Store.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset: %w", err)
	}
	h.Sessions.Clear()

	for _, inv := range invoices {
		if err := h.Store.CreateInvoice(ctx, inv); err != nil {
			return 0, fmt.Errorf("create invoice %s: %w", inv.ID, err)
		}
	}
	h.currentSample = s.ID
	return len(invoices), nil
}

// =============================================================================
// SAMPLE DATA
// =============================================================================

func parseSample(raw string) func(*factory.InvoiceFactory) ([]invoice.Invoice, error) {
	return func(f *factory.InvoiceFactory) ([]invoice.Invoice, error) {
		return f.ParseInvoices([]byte(raw))
	}
}

func generateBulk(n int) func(*factory.InvoiceFactory) ([]invoice.Invoice, error) {
	return func(f *factory.InvoiceFactory) ([]invoice.Invoice, error) {
		docs := make([]factory.InvoiceJSON, n)
		for i := range docs {
			docs[i] = factory.InvoiceJSON{
				ID:              factory.Text(fmt.Sprintf("bulk-%03d", i+1)),
				InvoiceNumber:   factory.Text(fmt.Sprintf("%d", 1000+i)),
				DateOfIssue:     factory.Text(fmt.Sprintf("2024-%02d-%02d", i%12+1, i%28+1)),
				BillTo:          "Bulk Customer",
				BillToEmail:     factory.Text(fmt.Sprintf("customer%d@gmail.com", i+1)),
				BillToAddress:   "1 Batch Street",
				BillFrom:        "Warp Supplies",
				BillFromEmail:   "billing@gmail.com",
				BillFromAddress: "99 Vendor Road",
				TaxRate:         factory.Text(fmt.Sprintf("%d", i%20)),
				DiscountRate:    factory.Text(fmt.Sprintf("%d", i%10)),
				Currency:        "$",
				Items: []factory.ItemJSON{
					{
						ItemID:       "1",
						ItemName:     "Widget",
						ItemPrice:    factory.Text(fmt.Sprintf("%d.50", 10+i)),
						ItemQuantity: factory.Text(fmt.Sprintf("%d", i%5+1)),
					},
				},
			}
		}
		body, err := json.Marshal(docs)
		if err != nil {
			return nil, err
		}
		return f.ParseInvoices(body)
	}
}

const starterJSON = `[
  {
    "id": "inv-1001",
    "invoiceNumber": "1001",
    "dateOfIssue": "2024-03-01",
    "billTo": "Jane Cooper",
    "billToEmail": "jane.cooper@gmail.com",
    "billToAddress": "12 Market Street",
    "billFrom": "Warp Supplies",
    "billFromEmail": "billing@gmail.com",
    "billFromAddress": "99 Vendor Road",
    "taxRate": "10",
    "discountRate": "5",
    "taxAmount": "2.55",
    "discountAmount": "1.28",
    "subTotal": "25.50",
    "total": "26.77",
    "currency": "$",
    "items": [
      {"itemId": "1", "itemName": "Paper", "itemDescription": "A4 ream", "itemPrice": "10.00", "itemQuantity": "2"},
      {"itemId": "2", "itemName": "Pens", "itemDescription": "Blue, box of 10", "itemPrice": "5.50", "itemQuantity": "1"}
    ]
  },
  {
    "id": "inv-1002",
    "invoiceNumber": "1002",
    "dateOfIssue": "2024-03-05",
    "billTo": "Devon Lane",
    "billToEmail": "devon.lane@gmail.com",
    "billToAddress": "4 Harbor View",
    "billFrom": "Warp Supplies",
    "billFromEmail": "billing@gmail.com",
    "billFromAddress": "99 Vendor Road",
    "taxRate": "0",
    "discountRate": "0",
    "taxAmount": "0.00",
    "discountAmount": "0.00",
    "subTotal": "100.00",
    "total": "100.00",
    "currency": "$",
    "items": [
      {"itemId": "1", "itemName": "Chair", "itemDescription": "Office chair", "itemPrice": "100.00", "itemQuantity": "1"}
    ]
  },
  {
    "id": "inv-1003",
    "invoiceNumber": "1003",
    "dateOfIssue": "2024-04-12",
    "billTo": "Esther Howard",
    "billToEmail": "esther.howard@gmail.com",
    "billToAddress": "77 Elm Avenue",
    "billFrom": "Warp Supplies",
    "billFromEmail": "billing@gmail.com",
    "billFromAddress": "99 Vendor Road",
    "taxRate": 20,
    "discountRate": 0,
    "taxAmount": "0.00",
    "discountAmount": "0.00",
    "subTotal": "0.00",
    "total": "0.00",
    "currency": "EUR",
    "items": []
  }
]`

const malformedJSON = `{
  "invoices": [
    {
      "id": "inv-2001",
      "invoiceNumber": "2001",
      "dateOfIssue": "2024-05-20",
      "billTo": "Cody Fisher",
      "billToEmail": "cody.fisher@gmail.com",
      "billToAddress": "8 Mill Lane",
      "billFrom": "Warp Supplies",
      "billFromEmail": "billing@gmail.com",
      "billFromAddress": "99 Vendor Road",
      "taxRate": "ten",
      "discountRate": "",
      "subTotal": "0.00",
      "total": "0.00",
      "currency": "$",
      "items": [
        {"itemId": "1", "itemName": "Lamp", "itemPrice": "abc", "itemQuantity": "2"},
        {"itemId": "2", "itemName": "Bulb", "itemPrice": "3.25", "itemQuantity": "-1"}
      ]
    },
    {
      "id": "inv-2002",
      "invoiceNumber": "2002",
      "dateOfIssue": "2024-05-21",
      "billTo": "Kristin Watson",
      "billToEmail": "kristin.watson@gmail.com",
      "billToAddress": "3 Orchard Road",
      "billFrom": "Warp Supplies",
      "billFromEmail": "billing@gmail.com",
      "billFromAddress": "99 Vendor Road",
      "taxRate": "8",
      "discountRate": "n/a",
      "currency": "$",
      "items": [
        {"itemId": "1", "itemName": "Desk", "itemPrice": "250.00", "itemQuantity": "one"}
      ]
    }
  ]
}`
