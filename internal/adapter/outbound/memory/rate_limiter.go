// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gatereg/registry/internal/domain/ratelimit"
)

// MemoryRateLimiter implements ratelimit.RateLimiter with one GCRA
// cell per scan-quota key. gatereg is a single-node control plane
// (no replication, no shared store), so a requester's quota lives
// only in this process's memory; a restart resets every requester's
// scan quota to full. A background sweep drops cells that have been
// idle past their TTL so a long-running registry doesn't accumulate
// one cell per requester forever.
type MemoryRateLimiter struct {
	mu    sync.Mutex
	cells map[string]gcraCell

	sweepEvery time.Duration
	cellTTL    time.Duration
	stop       chan struct{}
	stopOnce   sync.Once
	sweeper    sync.WaitGroup
}

// gcraCell is the whole per-key state GCRA needs: the theoretical
// arrival time of the next conforming request.
type gcraCell struct {
	tat time.Time
}

// NewRateLimiter creates an in-memory scan-quota limiter with default
// sweep settings: a 5 minute interval and a 1 hour cell TTL,
// comfortably wider than any scan_timeout_seconds/PerRequesterRate
// period an operator would configure for the scan orchestrator.
func NewRateLimiter() *MemoryRateLimiter {
	return NewRateLimiterWithConfig(5*time.Minute, 1*time.Hour)
}

// NewRateLimiterWithConfig creates an in-memory scan-quota limiter
// sweeping idle cells every sweepEvery and dropping cells idle longer
// than cellTTL.
func NewRateLimiterWithConfig(sweepEvery, cellTTL time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		cells:      make(map[string]gcraCell),
		stop:       make(chan struct{}),
		sweepEvery: sweepEvery,
		cellTTL:    cellTTL,
	}
}

// Allow checks whether the scan request named by key (one requester's
// scan-quota key, per ratelimit.FormatKey) conforms to config,
// advancing the key's GCRA cell if it does.
func (r *MemoryRateLimiter) Allow(_ context.Context, key string, config ratelimit.RateLimitConfig) (ratelimit.RateLimitResult, error) {
	rate := config.Rate
	if rate <= 0 {
		rate = 1
	}
	burst := config.Burst
	if burst <= 0 {
		burst = rate
	}
	// One request "costs" an emission interval; a full burst is worth
	// burst of them.
	emission := config.Period / time.Duration(rate)
	burstWindow := time.Duration(burst) * emission

	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cell, ok := r.cells[key]
	if !ok || cell.tat.Before(now) {
		cell.tat = now
	}

	// A request conforms when it arrives no earlier than TAT minus
	// the burst window.
	if earliest := cell.tat.Add(-burstWindow); now.Before(earliest) {
		return ratelimit.RateLimitResult{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: earliest.Sub(now),
			ResetAfter: cell.tat.Sub(now),
		}, nil
	}

	cell.tat = cell.tat.Add(emission)
	if cell.tat.Before(now) {
		cell.tat = now.Add(emission)
	}
	r.cells[key] = cell

	remaining := int((burstWindow - cell.tat.Sub(now)) / emission)
	switch {
	case remaining < 0:
		remaining = 0
	case remaining > burst:
		remaining = burst
	}
	return ratelimit.RateLimitResult{
		Allowed:    true,
		Remaining:  remaining,
		ResetAfter: cell.tat.Sub(now),
	}, nil
}

// StartCleanup launches the background sweep goroutine. It exits when
// ctx is cancelled or Stop is called.
func (r *MemoryRateLimiter) StartCleanup(ctx context.Context) {
	r.sweeper.Add(1)
	go func() {
		defer r.sweeper.Done()
		ticker := time.NewTicker(r.sweepEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-r.stop:
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
}

// sweep drops every cell whose TAT is older than cellTTL; such a cell
// would be reinitialized to a full quota on its next Allow anyway, so
// dropping it changes no answer.
func (r *MemoryRateLimiter) sweep() {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-r.cellTTL)
	swept := 0
	for key, cell := range r.cells {
		if cell.tat.Before(cutoff) {
			delete(r.cells, key)
			swept++
		}
	}
	if swept > 0 {
		slog.Debug("scan quota sweep",
			"swept_keys", swept,
			"live_keys", len(r.cells))
	}
}

// Stop terminates the sweep goroutine and waits for it to exit. Safe
// to call more than once.
func (r *MemoryRateLimiter) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.sweeper.Wait()
}

// Size reports the number of live cells, for tests and monitoring.
func (r *MemoryRateLimiter) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.cells)
}

var _ ratelimit.RateLimiter = (*MemoryRateLimiter)(nil)
