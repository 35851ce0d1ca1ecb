// Package ratelimit provides the per-requester fairness quota the
// scan orchestrator enforces, so one tenant's scans cannot starve
// the worker pool for everyone else. Nothing else in gatereg rate-limits
// anything, so the vocabulary here is scoped to that one use case
// rather than a general-purpose HTTP rate limiter's full key space.
package ratelimit

import (
	"fmt"
	"time"
)

// RateLimitConfig defines the rate limiting parameters for one
// requester's scan quota.
type RateLimitConfig struct {
	// Rate is the number of allowed scans in the period.
	Rate int

	// Burst is the maximum number of scans that can occur at once.
	// Burst should be >= Rate for meaningful operation.
	Burst int

	// Period is the time window for the rate limit.
	Period time.Duration
}

// RateLimitResult contains the result of a scan-quota check.
type RateLimitResult struct {
	// Allowed indicates whether the scan request is allowed.
	Allowed bool

	// Remaining is the number of remaining scans in the current window.
	Remaining int

	// RetryAfter is the duration until the next scan will be allowed.
	// Only meaningful when Allowed is false.
	RetryAfter time.Duration

	// ResetAfter is the duration until the rate limit resets.
	ResetAfter time.Duration
}

// keyPrefix is the base prefix for every scan-quota key.
const keyPrefix = "scanquota"

// FormatKey returns a structured scan-quota key scoped to a
// requester: "scanquota:user:{requester}". The orchestrator passes
// "scan:"+requester for both entity kinds (see
// internal/service/scan_orchestrator.go's admit), so a requester's
// server and agent scans draw on one shared quota.
func FormatKey(requester string) string {
	return fmt.Sprintf("%s:user:%s", keyPrefix, requester)
}
