package bulkedit_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/invoice-engine/bulkedit"
	"github.com/warp/invoice-engine/invoice"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRecalculate_ReferenceExample(t *testing.T) {
	// GIVEN: items 10.00 x 2 and 5.50 x 1, tax 10%, discount 5%
	// THEN: 25.50 / 2.55 / 1.28 (1.275 rounded away from zero) / 26.77

	totals := bulkedit.Recalculate(bulkedit.Subtotal(sampleItems()), dec("10"), dec("5"))

	assert.Equal(t, "25.50", bulkedit.FormatAmount(totals.SubTotal))
	assert.Equal(t, "2.55", bulkedit.FormatAmount(totals.TaxAmount))
	assert.Equal(t, "1.28", bulkedit.FormatAmount(totals.DiscountAmount))
	assert.Equal(t, "26.77", bulkedit.FormatAmount(totals.Total))
}

func TestRecalculate_EmptyItems(t *testing.T) {
	totals := bulkedit.Recalculate(bulkedit.Subtotal(nil), dec("10"), dec("5"))

	assert.Equal(t, "0.00", bulkedit.FormatAmount(totals.SubTotal))
	assert.Equal(t, "0.00", bulkedit.FormatAmount(totals.TaxAmount))
	assert.Equal(t, "0.00", bulkedit.FormatAmount(totals.DiscountAmount))
	assert.Equal(t, "0.00", bulkedit.FormatAmount(totals.Total))
}

func TestRound2_HalfAwayFromZero(t *testing.T) {
	cases := map[string]string{
		"1.275":  "1.28",
		"1.265":  "1.27",
		"1.2749": "1.27",
		"-1.275": "-1.28",
		"0.005":  "0.01",
		"2":      "2.00",
	}
	for in, want := range cases {
		assert.Equal(t, want, bulkedit.FormatAmount(bulkedit.Round2(dec(in))), "round2(%s)", in)
	}
}

func TestSubtotal_MalformedLinesCountAsZero(t *testing.T) {
	items := []invoice.Item{
		{ItemID: "a", ItemPrice: "abc", ItemQuantity: "3"},
		{ItemID: "b", ItemPrice: "4.00", ItemQuantity: "two"},
		{ItemID: "c", ItemPrice: "-1.00", ItemQuantity: "1"},
		{ItemID: "d", ItemPrice: "2.00", ItemQuantity: "1.5"},
		{ItemID: "e", ItemPrice: " 3.25 ", ItemQuantity: "2"},
	}

	assert.Equal(t, "6.50", bulkedit.FormatAmount(bulkedit.Subtotal(items)))
}

func TestParseAmount(t *testing.T) {
	d, ok := bulkedit.ParseAmount("12.345")
	assert.True(t, ok)
	assert.True(t, d.Equal(dec("12.345")))

	_, ok = bulkedit.ParseAmount("")
	assert.False(t, ok)

	d, ok = bulkedit.ParseAmount("-3")
	assert.False(t, ok)
	assert.True(t, d.IsZero())
}

func TestRecalculateInvoice_PendingRatesOverrideStored(t *testing.T) {
	inv := invoice.Invoice{ID: "inv-1", TaxRate: "0", DiscountRate: "0"}
	l := bulkedit.NewChangeLedger()
	l.Upsert("inv-1", invoice.FieldTaxRate, "10")
	l.Upsert("inv-1", invoice.FieldDiscountRate, "5")

	totals := bulkedit.RecalculateInvoice(inv, sampleItems(), l.Snapshot())

	assert.Equal(t, "26.77", bulkedit.FormatAmount(totals.Total))
}

func TestRecalculateInvoice_StoredRatesWhenNoPendingEdit(t *testing.T) {
	inv := invoice.Invoice{ID: "inv-1", TaxRate: "10", DiscountRate: "5"}

	totals := bulkedit.RecalculateInvoice(inv, sampleItems(), bulkedit.NewChangeLedger().Snapshot())

	assert.Equal(t, "26.77", bulkedit.FormatAmount(totals.Total))
	assert.Empty(t, totals.Degraded)
}

func TestRecalculateInvoice_MalformedRateIsZero(t *testing.T) {
	inv := invoice.Invoice{ID: "inv-1", TaxRate: "ten", DiscountRate: ""}

	totals := bulkedit.RecalculateInvoice(inv, sampleItems(), bulkedit.NewChangeLedger().Snapshot())

	assert.Equal(t, "0.00", bulkedit.FormatAmount(totals.TaxAmount))
	assert.Equal(t, "25.50", bulkedit.FormatAmount(totals.Total))
	assert.Equal(t, []string{"taxRate", "discountRate"}, totals.Degraded)
}

func TestRecalculateInvoice_ReportsDegradedItems(t *testing.T) {
	inv := invoice.Invoice{ID: "inv-1", TaxRate: "10", DiscountRate: "5"}
	items := []invoice.Item{
		{ItemID: "a", ItemPrice: "abc", ItemQuantity: "1"},
		{ItemID: "b", ItemPrice: "1.00", ItemQuantity: "1.5"},
		{ItemID: "c", ItemPrice: "1.00", ItemQuantity: "1"},
	}

	totals := bulkedit.RecalculateInvoice(inv, items, bulkedit.NewChangeLedger().Snapshot())

	assert.Equal(t, []string{"item a.itemPrice", "item b.itemQuantity"}, totals.Degraded)
	assert.Equal(t, "1.00", bulkedit.FormatAmount(totals.SubTotal))
}

func TestTotals_ChangesOrderAndFormat(t *testing.T) {
	totals := bulkedit.Recalculate(dec("25.5"), dec("10"), dec("5"))

	changes := totals.Changes("inv-1")

	require.Len(t, changes, 6)
	want := []struct {
		field invoice.Field
		value string
	}{
		{invoice.FieldSubTotal, "25.50"},
		{invoice.FieldTaxRate, "10.00"},
		{invoice.FieldDiscountRate, "5.00"},
		{invoice.FieldTaxAmount, "2.55"},
		{invoice.FieldDiscountAmount, "1.28"},
		{invoice.FieldTotal, "26.77"},
	}
	for i, w := range want {
		assert.Equal(t, invoice.ID("inv-1"), changes[i].InvoiceID)
		assert.Equal(t, w.field, changes[i].Field)
		assert.Equal(t, w.value, changes[i].Value)
	}
}

func TestTotals_InvariantHolds(t *testing.T) {
	totals := bulkedit.Recalculate(dec("199.99"), dec("7.5"), dec("12.5"))

	assert.True(t, totals.Total.Equal(totals.SubTotal.Add(totals.TaxAmount).Sub(totals.DiscountAmount)))
}
