package ratelimit

import (
	"math"
	"sync"
	"time"

	"opsdemo/internal/models"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// MemoryLimiter keeps one token bucket per key in memory. Buckets idle for
// twice the cleanup interval are evicted by a background goroutine.
type MemoryLimiter struct {
	perSecond       rate.Limit
	burst           int
	perMinute       int
	cleanupInterval time.Duration
	now             func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
	done    chan struct{}
	closed  bool
}

// NewMemoryLimiter creates a limiter admitting requestsPerMinute per key
// with bursts of up to burst requests.
func NewMemoryLimiter(requestsPerMinute int, burst int, cleanupInterval time.Duration) *MemoryLimiter {
	if requestsPerMinute <= 0 {
		requestsPerMinute = 1
	}
	if burst <= 0 {
		burst = 1
	}
	if cleanupInterval <= 0 {
		cleanupInterval = 5 * time.Minute
	}

	m := &MemoryLimiter{
		perSecond:       rate.Limit(float64(requestsPerMinute) / 60),
		burst:           burst,
		perMinute:       requestsPerMinute,
		cleanupInterval: cleanupInterval,
		now:             time.Now,
		buckets:         make(map[string]*bucket),
		done:            make(chan struct{}),
	}
	go m.evictLoop()
	return m
}

// NewFromConfig creates a MemoryLimiter from the security.rate_limit section.
func NewFromConfig(cfg models.RateLimitConfig) *MemoryLimiter {
	return NewMemoryLimiter(cfg.RequestsPerMinute, cfg.BurstSize, cfg.CleanupInterval)
}

// Allow consumes a token from key's bucket.
func (m *MemoryLimiter) Allow(key string) (bool, Info) {
	now := m.now()

	m.mu.Lock()
	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(m.perSecond, m.burst)}
		m.buckets[key] = b
	}
	b.lastSeen = now
	m.mu.Unlock()

	allowed := b.limiter.AllowN(now, 1)
	tokens := b.limiter.TokensAt(now)

	info := Info{
		Limit:     m.perMinute,
		Remaining: int(math.Max(0, math.Floor(tokens))),
		ResetAt:   now.Add(m.timeFor(float64(m.burst) - tokens)),
	}
	if !allowed {
		info.RetryAfter = m.timeFor(1 - tokens)
	}
	return allowed, info
}

// timeFor is how long the bucket takes to refill n tokens.
func (m *MemoryLimiter) timeFor(n float64) time.Duration {
	if n <= 0 {
		return 0
	}
	return time.Duration(n / float64(m.perSecond) * float64(time.Second))
}

// Len reports the number of tracked keys.
func (m *MemoryLimiter) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

// Close stops the eviction goroutine. It is safe to call more than once.
func (m *MemoryLimiter) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.done)
	}
}

func (m *MemoryLimiter) evictLoop() {
	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			m.evictIdle(m.now())
		}
	}
}

func (m *MemoryLimiter) evictIdle(now time.Time) {
	cutoff := now.Add(-2 * m.cleanupInterval)
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, b := range m.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(m.buckets, key)
		}
	}
}
