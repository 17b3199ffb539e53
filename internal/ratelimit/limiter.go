// Package ratelimit throttles inbound HTTP requests per client IP with a
// token bucket, and reports the bucket state in X-RateLimit-* headers.
package ratelimit

import "time"

// Limiter decides whether a keyed request may proceed. Implementations must
// be safe for concurrent use.
type Limiter interface {
	// Allow consumes one token for key and reports the bucket state.
	Allow(key string) (allowed bool, info Info)

	// Close stops background goroutines and releases resources.
	Close()
}

// Info is the bucket state after an Allow call.
type Info struct {
	Limit      int           // Requests per minute
	Remaining  int           // Whole tokens left
	ResetAt    time.Time     // When the bucket is full again
	RetryAfter time.Duration // Wait before the next token; zero when allowed
}
