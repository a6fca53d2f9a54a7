/*
locks.go - Per-session serialization

PURPOSE:
  Membership rows are mutated concurrently by join/leave requests from many
  devices while a session is active. Finalization must see a consistent
  snapshot: "end session" cannot race with a late join that would otherwise
  be silently excluded from or wrongly included in the timeline.

  All membership mutations for a session and its finalization therefore
  take the same per-session exclusive lock. Different sessions never
  contend.
*/
package checkin

import (
	"sync"

	"github.com/venueworks/roomledger/billing"
)

// sessionLocks is a keyed mutex table. Locks are created on first use and
// kept for the process lifetime; sessions are short-lived and few enough
// that reclamation isn't worth the bookkeeping.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[billing.SessionID]*sync.Mutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[billing.SessionID]*sync.Mutex)}
}

// lock acquires the session's mutex and returns the unlock function.
func (sl *sessionLocks) lock(id billing.SessionID) func() {
	sl.mu.Lock()
	m, ok := sl.locks[id]
	if !ok {
		m = &sync.Mutex{}
		sl.locks[id] = m
	}
	sl.mu.Unlock()

	m.Lock()
	return m.Unlock
}
