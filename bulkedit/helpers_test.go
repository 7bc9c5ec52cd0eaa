package bulkedit_test

import (
	"context"
	"errors"
	"sync"

	"github.com/warp/invoice-engine/invoice"
)

var errStoreDown = errors.New("store unavailable")

// recordingUpdater records every call and fails the ones matched by failOn.
type recordingUpdater struct {
	mu     sync.Mutex
	calls  []invoice.UpdateCommand
	failOn func(id invoice.ID, field invoice.Field) bool
}

func (u *recordingUpdater) UpdateInvoice(_ context.Context, id invoice.ID, fields map[invoice.Field]string) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	for f, v := range fields {
		u.calls = append(u.calls, invoice.UpdateCommand{InvoiceID: id, Field: f, Value: v})
		if u.failOn != nil && u.failOn(id, f) {
			return errStoreDown
		}
	}
	return nil
}

func (u *recordingUpdater) Calls() []invoice.UpdateCommand {
	u.mu.Lock()
	defer u.mu.Unlock()
	out := make([]invoice.UpdateCommand, len(u.calls))
	copy(out, u.calls)
	return out
}

func (u *recordingUpdater) CallsFor(id invoice.ID) []invoice.UpdateCommand {
	var out []invoice.UpdateCommand
	for _, c := range u.Calls() {
		if c.InvoiceID == id {
			out = append(out, c)
		}
	}
	return out
}

func testInvoices() []invoice.Invoice {
	return []invoice.Invoice{
		{
			ID:             "inv-1",
			InvoiceNumber:  "1",
			DateOfIssue:    "2024-01-31",
			BillTo:         "Ada Lovelace",
			BillToEmail:    "ada@gmail.com",
			TaxRate:        "10",
			DiscountRate:   "5",
			SubTotal:       "25.50",
			TaxAmount:      "2.55",
			DiscountAmount: "1.28",
			Total:          "26.77",
			Currency:       "$",
			Items:          sampleItems(),
		},
		{
			ID:             "inv-2",
			InvoiceNumber:  "2",
			DateOfIssue:    "2024-02-01",
			BillTo:         "Grace Hopper",
			BillToEmail:    "grace@gmail.com",
			TaxRate:        "0",
			DiscountRate:   "0",
			SubTotal:       "100.00",
			TaxAmount:      "0.00",
			DiscountAmount: "0.00",
			Total:          "100.00",
			Currency:       "$",
			Items:          []invoice.Item{
				{ItemID: "c", ItemName: "Consulting", ItemPrice: "100.00", ItemQuantity: "1"},
			},
		},
	}
}

func commandValues(cmds []invoice.UpdateCommand) map[invoice.Field]string {
	out := make(map[invoice.Field]string, len(cmds))
	for _, c := range cmds {
		out[c.Field] = c.Value
	}
	return out
}
