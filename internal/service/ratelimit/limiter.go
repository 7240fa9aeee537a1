package ratelimit

import (
	"sync"
	"time"
)

type bucket struct {
	tokens float64
	last   time.Time
}

// Limiter is a keyed token bucket. Every key shares the same capacity and refill rate.
type Limiter struct {
	mu       sync.Mutex
	m        map[string]*bucket
	capacity float64
	rate     float64 // tokens per second
	now      func() time.Time

	lastSweep time.Time
}

// sweepEvery is how often Allow drops buckets that have been idle that long.
const sweepEvery = 10 * time.Minute

func New(ratePerSec float64, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	return &Limiter{
		m:        make(map[string]*bucket),
		capacity: float64(burst),
		rate:     ratePerSec,
		now:      time.Now,
	}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if l.lastSweep.IsZero() {
		l.lastSweep = now
	} else if now.Sub(l.lastSweep) >= sweepEvery {
		l.prune(now.Add(-sweepEvery))
		l.lastSweep = now
	}
	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: l.capacity, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * l.rate
		if b.tokens > l.capacity {
			b.tokens = l.capacity
		}
		b.last = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

// Prune drops buckets idle for longer than idle.
func (l *Limiter) Prune(idle time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.prune(l.now().Add(-idle))
}

func (l *Limiter) prune(cutoff time.Time) {
	for k, b := range l.m {
		if b.last.Before(cutoff) {
			delete(l.m, k)
		}
	}
}
