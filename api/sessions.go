/*
sessions.go - Registry of live bulk-edit sessions

PURPOSE:
  Every operator who opens the bulk editor gets their own
  bulkedit.Session. The registry owns them between HTTP requests, keyed
  by a UUIDv7, and remembers when each was last used so the sweeper can
  cancel abandoned ones.

CONCURRENCY:
  The registry map is guarded by its own mutex. Each Session serialises
  its own operations, so two requests against the same session never
  interleave inside the engine.

SEE ALSO:
  - scheduler.go: SessionSweeper, expires idle sessions
  - bulkedit/session.go: the Session type
*/
package api

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/warp/invoice-engine/bulkedit"
)

// SessionRegistry holds the live sessions.
type SessionRegistry struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	now      func() time.Time
}

type sessionEntry struct {
	session  *bulkedit.Session
	created  time.Time
	lastUsed time.Time
}

// NewSessionRegistry creates an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

// NewSessionID returns a fresh session id.
func NewSessionID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Add registers s under id.
func (r *SessionRegistry) Add(id string, s *bulkedit.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	r.sessions[id] = &sessionEntry{session: s, created: now, lastUsed: now}
}

// Get returns the session and marks it as used.
func (r *SessionRegistry) Get(id string) (*bulkedit.Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = r.now()
	return e.session, true
}

// Remove drops a session. It reports whether the id was registered.
func (r *SessionRegistry) Remove(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.sessions[id]
	delete(r.sessions, id)
	return ok
}

// Len returns the number of live sessions.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Clear cancels and drops every session that is not committing.
func (r *SessionRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, e := range r.sessions {
		if err := e.session.Cancel(); errors.Is(err, bulkedit.ErrCommitInProgress) {
			continue
		}
		delete(r.sessions, id)
	}
}

// ExpireIdle cancels and removes sessions unused for longer than ttl.
// Sessions in the middle of a commit are left alone until the next pass.
func (r *SessionRegistry) ExpireIdle(ttl time.Duration) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := r.now().Add(-ttl)
	var expired []string
	for id, e := range r.sessions {
		if !e.lastUsed.Before(cutoff) {
			continue
		}
		if err := e.session.Cancel(); errors.Is(err, bulkedit.ErrCommitInProgress) {
			continue
		}
		delete(r.sessions, id)
		expired = append(expired, id)
	}
	return expired
}
