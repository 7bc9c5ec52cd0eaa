package api

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/invoice-engine/bulkedit"
	"github.com/warp/invoice-engine/config"
	"github.com/warp/invoice-engine/invoice"
	"github.com/warp/invoice-engine/invoice/store"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestRegistry() (*SessionRegistry, *fakeClock) {
	clock := &fakeClock{t: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)}
	r := NewSessionRegistry()
	r.now = clock.now
	return r, clock
}

func newTestSession() *bulkedit.Session {
	inv := invoice.Invoice{ID: "inv-1", BillTo: "Ada", Items: []invoice.Item{}}
	return bulkedit.NewSession([]invoice.Invoice{inv}, store.NewMemory(inv))
}

func TestNewSessionID_Unique(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}

func TestSessionRegistry_AddGetRemove(t *testing.T) {
	r, _ := newTestRegistry()
	s := newTestSession()

	r.Add("s1", s)

	got, ok := r.Get("s1")
	require.True(t, ok)
	assert.Same(t, s, got)
	assert.Equal(t, 1, r.Len())

	assert.True(t, r.Remove("s1"))
	assert.False(t, r.Remove("s1"))
	_, ok = r.Get("s1")
	assert.False(t, ok)
}

func TestSessionRegistry_ExpireIdle(t *testing.T) {
	// GIVEN: Two sessions, one touched recently
	r, clock := newTestRegistry()
	stale, fresh := newTestSession(), newTestSession()
	require.NoError(t, stale.SubmitEdit("inv-1", invoice.FieldBillTo, "Grace"))
	r.Add("stale", stale)
	r.Add("fresh", fresh)

	clock.advance(20 * time.Minute)
	r.Get("fresh")
	clock.advance(15 * time.Minute)

	// WHEN: Expiring sessions idle for 30 minutes
	expired := r.ExpireIdle(30 * time.Minute)

	// THEN: Only the stale one is cancelled and removed
	assert.Equal(t, []string{"stale"}, expired)
	assert.Empty(t, stale.Pending())
	_, ok := r.Get("fresh")
	assert.True(t, ok)
	assert.Equal(t, 1, r.Len())
}

func TestSessionRegistry_Clear(t *testing.T) {
	r, _ := newTestRegistry()
	r.Add("a", newTestSession())
	r.Add("b", newTestSession())

	r.Clear()

	assert.Equal(t, 0, r.Len())
}

func TestSessionSweeper_Sweep(t *testing.T) {
	r, clock := newTestRegistry()
	r.Add("old", newTestSession())
	clock.advance(time.Hour)

	sw := NewSessionSweeper(r, config.SessionConfig{IdleTTL: time.Minute, SweepInterval: time.Second},
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	assert.Equal(t, []string{"old"}, sw.Sweep())
	assert.Empty(t, sw.Sweep())
}

func TestSessionSweeper_StartStop(t *testing.T) {
	r, _ := newTestRegistry()
	sw := NewSessionSweeper(r, config.SessionConfig{IdleTTL: time.Minute, SweepInterval: 10 * time.Millisecond}, nil)

	sw.Start()
	sw.Start()
	sw.Stop()
	sw.Stop()

	sw.Enabled = false
	sw.Start()
	assert.Nil(t, sw.ticker)
}
