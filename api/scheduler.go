/*
scheduler.go - Idle bulk-edit session sweeper

PURPOSE:
  Operators close browser tabs without cancelling. The sweeper
  periodically cancels sessions that have not been touched for IdleTTL,
  discarding their pending edits exactly like an explicit cancel.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Skips sessions that are committing; they are retried next tick
  - Logs every expired session id

CONFIGURATION:
  - Interval: How often to check (session.sweep_interval)
  - IdleTTL: How long a session may stay unused (session.idle_ttl)
  - Enabled: Whether the sweeper is active (default: true)

USAGE:
  sweeper := NewSessionSweeper(handler.Sessions, cfg.Session, logger)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - sessions.go: SessionRegistry.ExpireIdle
*/
package api

import (
	"log/slog"
	"sync"
	"time"

	"github.com/warp/invoice-engine/config"
)

// SessionSweeper expires idle sessions in the background.
type SessionSweeper struct {
	Registry *SessionRegistry
	Interval time.Duration
	IdleTTL  time.Duration
	Enabled  bool
	Logger   *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSessionSweeper creates a sweeper from the session configuration.
func NewSessionSweeper(registry *SessionRegistry, cfg config.SessionConfig, logger *slog.Logger) *SessionSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionSweeper{
		Registry: registry,
		Interval: cfg.SweepInterval,
		IdleTTL:  cfg.IdleTTL,
		Enabled:  true,
		Logger:   logger,
	}
}

// Start begins the sweeper. Calling Start twice is a no-op.
func (ss *SessionSweeper) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		ss.Logger.Info("session sweeper disabled")
		return
	}
	if ss.ticker != nil {
		return
	}

	ss.ticker = time.NewTicker(ss.Interval)
	ss.stop = make(chan struct{})
	ss.wg.Add(1)

	go ss.run(ss.ticker, ss.stop)

	ss.Logger.Info("session sweeper started",
		slog.Duration("interval", ss.Interval),
		slog.Duration("idle_ttl", ss.IdleTTL),
	)
}

// Stop stops the sweeper and waits for the current pass to finish.
func (ss *SessionSweeper) Stop() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if ss.ticker != nil {
		ss.ticker.Stop()
		close(ss.stop)
		ss.wg.Wait()
		ss.ticker = nil
		ss.Logger.Info("session sweeper stopped")
	}
}

func (ss *SessionSweeper) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ss.wg.Done()

	for {
		select {
		case <-ticker.C:
			ss.Sweep()
		case <-stop:
			return
		}
	}
}

// Sweep runs one expiry pass and returns the expired session ids.
func (ss *SessionSweeper) Sweep() []string {
	expired := ss.Registry.ExpireIdle(ss.IdleTTL)
	for _, id := range expired {
		ss.Logger.Info("idle session cancelled", slog.String("session_id", id))
	}
	return expired
}
