/*
recalc.go - Financial recalculation for invoices with folded items

PURPOSE:
  Derives subtotal, tax, discount and grand total from a folded item
  working set. Pure functions; the only input from the session is a
  Resolver used to pick pending rate edits over stored rates.

WHEN IT RUNS:
  Only for invoices whose batch contains a FieldItems change. Invoices
  edited on scalar fields alone are never recalculated.

FORMULAS:
  subtotal       = round2( sum(price_i * quantity_i) )
  taxAmount      = round2( subtotal * taxRate / 100 )
  discountAmount = round2( subtotal * discountRate / 100 )
  total          = round2( subtotal + taxAmount - discountAmount )

ROUNDING:
  decimal.Round rounds half away from zero (1.275 -> 1.28, -1.275 -> -1.28).
  Every emitted value is formatted with exactly two fraction digits.

MALFORMED INPUT:
  A price that is not a non-negative decimal, or a quantity that is not a
  non-negative integer, counts as zero. The same applies to rates. The
  batch is never failed for a bad number.

EXAMPLE:
  items [{10.00 x 2}, {5.50 x 1}], taxRate 10, discountRate 5
    subtotal 25.50, taxAmount 2.55, discountAmount 1.28, total 26.77
*/
package bulkedit

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/warp/invoice-engine/invoice"
)

var hundred = decimal.NewFromInt(100)

// Totals is the result of a recalculation.
type Totals struct {
	SubTotal       decimal.Decimal
	TaxRate        decimal.Decimal
	DiscountRate   decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	Total          decimal.Decimal

	// Degraded names the inputs that were malformed and counted as zero,
	// e.g. "taxRate" or "item 3f2a.itemPrice".
	Degraded []string
}

// Round2 rounds to two fraction digits, half away from zero.
func Round2(d decimal.Decimal) decimal.Decimal { return d.Round(2) }

// FormatAmount renders d rounded to exactly two fraction digits.
func FormatAmount(d decimal.Decimal) string { return d.StringFixed(2) }

// ParseAmount parses a non-negative decimal. ok is false for malformed or
// negative input, in which case the result is zero.
func ParseAmount(s string) (d decimal.Decimal, ok bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil || d.IsNegative() {
		return decimal.Zero, false
	}
	return d, true
}

// LineAmount returns price x quantity for one item, zero if either is malformed.
func LineAmount(it invoice.Item) decimal.Decimal {
	price, ok := ParseAmount(it.ItemPrice)
	if !ok {
		return decimal.Zero
	}
	qty, ok := it.ItemQuantity.Int()
	if !ok {
		return decimal.Zero
	}
	return price.Mul(decimal.NewFromInt(qty))
}

// Subtotal sums the line amounts of items and rounds to two digits.
func Subtotal(items []invoice.Item) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(LineAmount(it))
	}
	return Round2(sum)
}

// Recalculate derives the financial fields from a subtotal and the
// effective rates (percentages).
func Recalculate(subtotal, taxRate, discountRate decimal.Decimal) Totals {
	subtotal = Round2(subtotal)
	tax := Round2(subtotal.Mul(taxRate).Div(hundred))
	discount := Round2(subtotal.Mul(discountRate).Div(hundred))
	return Totals{
		SubTotal:       subtotal,
		TaxRate:        taxRate,
		DiscountRate:   discountRate,
		TaxAmount:      tax,
		DiscountAmount: discount,
		Total:          Round2(subtotal.Add(tax).Sub(discount)),
	}
}

// RecalculateInvoice computes totals for inv using items as the line set
// and r to resolve pending rate edits over the stored rates.
func RecalculateInvoice(inv invoice.Invoice, items []invoice.Item, r Resolver) Totals {
	var degraded []string

	taxRate, ok := ParseAmount(r.Resolve(inv.ID, invoice.FieldTaxRate, inv.TaxRate))
	if !ok {
		degraded = append(degraded, string(invoice.FieldTaxRate))
	}
	discountRate, ok := ParseAmount(r.Resolve(inv.ID, invoice.FieldDiscountRate, inv.DiscountRate))
	if !ok {
		degraded = append(degraded, string(invoice.FieldDiscountRate))
	}
	for _, it := range items {
		if _, ok := ParseAmount(it.ItemPrice); !ok {
			degraded = append(degraded, "item "+string(it.ItemID)+"."+string(invoice.ItemFieldPrice))
		}
		if _, ok := it.ItemQuantity.Int(); !ok {
			degraded = append(degraded, "item "+string(it.ItemID)+"."+string(invoice.ItemFieldQuantity))
		}
	}

	t := Recalculate(Subtotal(items), taxRate, discountRate)
	t.Degraded = degraded
	return t
}

// DerivedFields lists the fields produced by recalculation, in emit order.
var DerivedFields = []invoice.Field{
	invoice.FieldSubTotal,
	invoice.FieldTaxRate,
	invoice.FieldDiscountRate,
	invoice.FieldTaxAmount,
	invoice.FieldDiscountAmount,
	invoice.FieldTotal,
}

// Changes renders the totals as pending changes for invoice id, in the
// order of DerivedFields. Rates are re-asserted even when unchanged.
func (t Totals) Changes(id invoice.ID) []invoice.PendingChange {
	values := []decimal.Decimal{t.SubTotal, t.TaxRate, t.DiscountRate, t.TaxAmount, t.DiscountAmount, t.Total}
	out := make([]invoice.PendingChange, len(DerivedFields))
	for i, f := range DerivedFields {
		out[i] = invoice.PendingChange{InvoiceID: id, Field: f, Value: FormatAmount(values[i])}
	}
	return out
}

func isDerived(f invoice.Field) bool {
	for _, d := range DerivedFields {
		if d == f {
			return true
		}
	}
	return false
}
