/*
scenarios_test.go - Tests for sample data sets

Every sample must parse through the invoice factory and load into a
fresh store; loading replaces whatever was there before.
*/
package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/invoice-engine/bulkedit"
	"github.com/warp/invoice-engine/factory"
	"github.com/warp/invoice-engine/invoice"
)

func TestSamples_AllBuild(t *testing.T) {
	f := factory.NewInvoiceFactory()
	for _, s := range samples {
		t.Run(s.ID, func(t *testing.T) {
			invoices, err := s.build(f)
			require.NoError(t, err)
			assert.NotEmpty(t, invoices)
		})
	}
}

func TestListSamples(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/samples", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]SampleDTO](t, rec)
	require.Len(t, list, len(samples))
	counts := map[string]int{}
	for _, s := range list {
		counts[s.ID] = s.Invoices
	}
	assert.Equal(t, 3, counts["starter"])
	assert.Equal(t, 2, counts["malformed-numbers"])
	assert.Equal(t, 50, counts["bulk"])
}

func TestLoadSample_ReplacesData(t *testing.T) {
	ts := newTestServer(t)
	ts.loadStarter(t)
	ts.startSession(t, "inv-1001")

	rec := ts.do(t, http.MethodPost, "/api/samples/load", LoadSampleRequest{SampleID: "bulk"})

	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[[]invoice.Invoice](t, ts.do(t, http.MethodGet, "/api/invoices", nil))
	assert.Len(t, list, 50)
	assert.Equal(t, invoice.ID("bulk-001"), list[0].ID)
	assert.Equal(t, 0, ts.handler.Sessions.Len())

	current := decode[map[string]string](t, ts.do(t, http.MethodGet, "/api/samples/current", nil))
	assert.Equal(t, "bulk", current["sample_id"])
}

func TestLoadSample_Unknown(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/samples/load", LoadSampleRequest{SampleID: "nope"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMalformedSample_RecalculatesAsZero(t *testing.T) {
	// GIVEN: inv-2001 with taxRate "ten", empty discount, price "abc"
	ts := newTestServer(t)
	rec := ts.do(t, http.MethodPost, "/api/samples/load", LoadSampleRequest{SampleID: "malformed-numbers"})
	require.Equal(t, http.StatusOK, rec.Code)

	inv := ts.getInvoice(t, "inv-2001")
	totals := bulkedit.RecalculateInvoice(inv, inv.Items, bulkedit.NewChangeLedger())

	// THEN: Only the well-formed parts contribute
	assert.Equal(t, "0.00", bulkedit.FormatAmount(totals.SubTotal))
	assert.Equal(t, "0.00", bulkedit.FormatAmount(totals.Total))
	assert.Contains(t, totals.Degraded, "taxRate")
	assert.Contains(t, totals.Degraded, "discountRate")
	assert.Contains(t, totals.Degraded, "item 1.itemPrice")
}
