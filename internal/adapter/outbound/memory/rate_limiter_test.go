// Package memory provides in-memory implementations of outbound ports.
package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gatereg/registry/internal/domain/ratelimit"
	"go.uber.org/goleak"
)

func scanQuota(rate, burst int, period time.Duration) ratelimit.RateLimitConfig {
	return ratelimit.RateLimitConfig{Rate: rate, Burst: burst, Period: period}
}

func TestRateLimiter_FirstScanAllowed(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter()
	result, err := limiter.Allow(context.Background(), ratelimit.FormatKey("scan:alice"), scanQuota(10, 5, time.Second))
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !result.Allowed {
		t.Error("first scan for a fresh requester should be allowed")
	}
	if result.Remaining < 0 {
		t.Errorf("Remaining = %d, should be >= 0", result.Remaining)
	}
}

func TestRateLimiter_BurstAllowsConcurrentRescans(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter()
	key := ratelimit.FormatKey("scan:alice")
	config := scanQuota(1, 3, time.Second)

	allowedCount := 0
	for i := 0; i < 10; i++ {
		result, err := limiter.Allow(context.Background(), key, config)
		if err != nil {
			t.Fatalf("Allow() error on request %d: %v", i, err)
		}
		if result.Allowed {
			allowedCount++
		}
	}

	if allowedCount < 3 {
		t.Errorf("expected at least Burst=3 allowed scans, got %d", allowedCount)
	}
}

func TestRateLimiter_ExceedingQuotaDeniesFurtherScans(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter()
	key := ratelimit.FormatKey("scan:alice")
	config := scanQuota(10, 3, time.Second)

	allowedCount, deniedCount := 0, 0
	for i := 0; i < 20; i++ {
		result, err := limiter.Allow(context.Background(), key, config)
		if err != nil {
			t.Fatalf("Allow() error on request %d: %v", i, err)
		}
		if result.Allowed {
			allowedCount++
		} else {
			deniedCount++
		}
	}

	if deniedCount == 0 {
		t.Error("expected rescan_server spam past the burst quota to be denied, got 0 denied of 20")
	}
	if allowedCount < 3 {
		t.Errorf("expected at least Burst=3 allowed scans, got %d", allowedCount)
	}
}

func TestRateLimiter_RequestersHaveIndependentQuotas(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter()
	config := scanQuota(1, 1, time.Second)

	for i := 0; i < 5; i++ {
		_, _ = limiter.Allow(context.Background(), ratelimit.FormatKey("scan:alice"), config)
	}

	result, err := limiter.Allow(context.Background(), ratelimit.FormatKey("scan:bob"), config)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !result.Allowed {
		t.Error("bob's scan quota should be independent of alice's exhausted one")
	}
}

func TestRateLimiter_QuotaRecoversAfterPeriod(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter()
	key := ratelimit.FormatKey("scan:alice")
	config := scanQuota(2, 1, 100*time.Millisecond)

	result1, err := limiter.Allow(context.Background(), key, config)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !result1.Allowed {
		t.Error("first scan should be allowed")
	}

	time.Sleep(150 * time.Millisecond)

	result2, err := limiter.Allow(context.Background(), key, config)
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !result2.Allowed {
		t.Error("scan after the quota period elapses should be allowed")
	}
}

func TestRateLimiter_ZeroRateDefaultsToOne(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter()
	result, err := limiter.Allow(context.Background(), ratelimit.FormatKey("scan:alice"), scanQuota(0, 5, time.Second))
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !result.Allowed {
		t.Error("Rate=0 should default to 1 and still allow the first scan")
	}
}

func TestRateLimiter_ZeroBurstDefaultsToRate(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter()
	result, err := limiter.Allow(context.Background(), ratelimit.FormatKey("scan:alice"), scanQuota(5, 0, time.Second))
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !result.Allowed {
		t.Error("Burst=0 should default to Rate and still allow the first scan")
	}
}

func TestRateLimiter_RemainingNeverNegative(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter()
	key := ratelimit.FormatKey("scan:alice")
	config := scanQuota(10, 5, time.Second)

	for i := 0; i < 20; i++ {
		result, err := limiter.Allow(context.Background(), key, config)
		if err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
		if result.Remaining < 0 {
			t.Errorf("request %d: Remaining = %d, should never be negative", i, result.Remaining)
		}
	}
}

func TestRateLimiter_ConcurrentScansForSameRequester(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiter()
	key := ratelimit.FormatKey("scan:alice")
	config := scanQuota(100, 50, time.Second)

	var wg sync.WaitGroup
	errCh := make(chan error, 100)
	allowedCh := make(chan bool, 100)

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := limiter.Allow(context.Background(), key, config)
			if err != nil {
				errCh <- err
				return
			}
			allowedCh <- result.Allowed
		}()
	}
	wg.Wait()
	close(errCh)
	close(allowedCh)

	for err := range errCh {
		t.Errorf("concurrent Allow() error: %v", err)
	}
	allowed := 0
	for a := range allowedCh {
		if a {
			allowed++
		}
	}
	if allowed == 0 {
		t.Error("expected at least some concurrent scans to be allowed")
	}
}

func TestRateLimiterCleanupRemovesStaleRequesters(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiterWithConfig(100*time.Millisecond, 200*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter.StartCleanup(ctx)
	defer limiter.Stop()

	config := scanQuota(10, 5, time.Second)
	requesters := []string{"alice", "bob", "carol"}
	for _, r := range requesters {
		_, err := limiter.Allow(ctx, ratelimit.FormatKey("scan:"+r), config)
		if err != nil {
			t.Fatalf("Allow() error for %s: %v", r, err)
		}
	}

	if got := limiter.Size(); got != len(requesters) {
		t.Errorf("expected %d tracked requesters, got %d", len(requesters), got)
	}

	time.Sleep(400 * time.Millisecond)

	if got := limiter.Size(); got != 0 {
		t.Errorf("expected 0 tracked requesters after cleanup, got %d", got)
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	t.Parallel()

	limiter := NewRateLimiterWithConfig(100*time.Millisecond, time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	limiter.StartCleanup(ctx)
	limiter.Stop()
	limiter.Stop()
	limiter.Stop()
}

// TestRateLimiterCleanupGoroutineDoesNotLeak exercises gatereg's
// ambient-stack commitment to go.uber.org/goleak for long-running,
// background-goroutine code: StartCleanup's sweep loop must actually
// exit once its context is cancelled or Stop is called.
func TestRateLimiterCleanupGoroutineDoesNotLeak(t *testing.T) {
	defer goleak.VerifyNone(t)

	limiter := NewRateLimiterWithConfig(50*time.Millisecond, 100*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())

	limiter.StartCleanup(ctx)

	config := scanQuota(10, 5, time.Second)
	for i := 0; i < 10; i++ {
		_, _ = limiter.Allow(ctx, ratelimit.FormatKey("scan:alice"), config)
	}

	time.Sleep(150 * time.Millisecond)
	cancel()
	limiter.Stop()
}
