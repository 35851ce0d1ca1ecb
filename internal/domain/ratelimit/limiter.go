package ratelimit

import "context"

// RateLimiter is the port the scan orchestrator (C6) depends on to
// enforce its per-requester scan quota.
//
// Implementations should use the GCRA (Generic Cell Rate Algorithm)
// for smooth rate limiting without burst issues at window boundaries;
// GCRA spreads requests evenly over time rather than allowing a
// thundering herd at the start of each fixed window.
type RateLimiter interface {
	// Allow checks whether a scan request identified by key is
	// allowed under the given config, atomically decrementing the
	// quota if so. If the request is not allowed, RetryAfter in the
	// result indicates when the next one will be.
	Allow(ctx context.Context, key string, config RateLimitConfig) (RateLimitResult, error)
}
