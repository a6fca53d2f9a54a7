/*
sweeper.go - Automated stale-session sweeper

PURPOSE:
  Periodically scans for open sessions that have run past the maximum
  allowed duration and ends them, closing memberships and computing
  costs. Protects billing from sessions nobody remembered to close.

DESIGN:
  - Runs a background goroutine with configurable sweep interval
  - A session is stale when now - start_time exceeds MaxAge
  - Ending goes through the check-in service so the usual per-session
    lock and cost computation apply

CONFIGURATION:
  - Interval: How often to sweep (default: 10 minutes)
  - MaxAge:   Open-session age limit; zero disables the sweeper

USAGE:
  sweeper := NewSweeper(service, store, 12*time.Hour, 10*time.Minute)
  sweeper.Start()
  // ... later
  sweeper.Stop()

SEE ALSO:
  - checkin/service.go: EndSession
  - cmd/server/main.go: Wiring
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/venueworks/roomledger/checkin"
	"github.com/venueworks/roomledger/store/sqlite"
)

// Sweeper ends sessions left open longer than MaxAge.
type Sweeper struct {
	Service  *checkin.Service
	Store    *sqlite.Store
	MaxAge   time.Duration
	Interval time.Duration

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewSweeper creates a sweeper. A zero maxAge disables it.
func NewSweeper(service *checkin.Service, store *sqlite.Store, maxAge, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		Service:  service,
		Store:    store,
		MaxAge:   maxAge,
		Interval: interval,
		stop:     make(chan struct{}),
	}
}

// Start begins the background sweep loop.
func (sw *Sweeper) Start() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.MaxAge <= 0 {
		slog.Info("session sweeper disabled")
		return
	}

	sw.ticker = time.NewTicker(sw.Interval)
	sw.wg.Add(1)
	go sw.run()

	slog.Info("session sweeper started", "interval", sw.Interval, "max_age", sw.MaxAge)
}

// Stop stops the sweep loop and waits for an in-flight sweep.
func (sw *Sweeper) Stop() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	if sw.ticker != nil {
		sw.ticker.Stop()
		close(sw.stop)
		sw.wg.Wait()
		slog.Info("session sweeper stopped")
	}
}

func (sw *Sweeper) run() {
	defer sw.wg.Done()

	// Sweep immediately on start
	sw.sweep()

	for {
		select {
		case <-sw.ticker.C:
			sw.sweep()
		case <-sw.stop:
			return
		}
	}
}

func (sw *Sweeper) sweep() {
	ctx := context.Background()
	now := time.Now().UTC()

	sessions, err := sw.Store.ListOpenSessions(ctx)
	if err != nil {
		slog.Error("sweep failed to list open sessions", "error", err)
		return
	}

	ended := 0
	for _, s := range sessions {
		if now.Sub(s.StartTime) <= sw.MaxAge {
			continue
		}
		if _, err := sw.Service.EndSession(ctx, s.ID); err != nil {
			slog.Error("sweep failed to end stale session", "session_id", s.ID, "error", err)
			continue
		}
		slog.Warn("ended stale session", "session_id", s.ID, "started_at", s.StartTime)
		ended++
	}

	if ended > 0 {
		slog.Info("sweep completed", "ended", ended, "open", len(sessions))
	}
}

// RunNow triggers an immediate sweep (for testing/admin).
func (sw *Sweeper) RunNow() {
	sw.sweep()
}
