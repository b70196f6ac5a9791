package rate

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type Limiter interface {
	// Allow reports whether one more event for key fits in limit events
	// per window, and how long to wait before retrying if it does not.
	Allow(key string, limit int, window time.Duration) (bool, time.Duration)
}

// MemoryLimiter keeps one token bucket per key and evicts buckets that
// have been idle for longer than their window.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	limit    int
	window   time.Duration
	lastSeen time.Time
}

func NewMemory() *MemoryLimiter {
	return &MemoryLimiter{buckets: make(map[string]*bucket), now: time.Now}
}

func (m *MemoryLimiter) Allow(key string, limit int, window time.Duration) (bool, time.Duration) {
	if limit <= 0 || window <= 0 {
		return true, 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evict(now)

	b, ok := m.buckets[key]
	if !ok || b.limit != limit || b.window != window {
		every := window / time.Duration(limit)
		b = &bucket{limiter: rate.NewLimiter(rate.Every(every), limit), limit: limit, window: window}
		m.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

func (m *MemoryLimiter) evict(now time.Time) {
	for key, b := range m.buckets {
		if now.Sub(b.lastSeen) > b.window {
			delete(m.buckets, key)
		}
	}
}
